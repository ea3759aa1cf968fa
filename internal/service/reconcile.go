package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/richardliu001/pharmacy-credit/internal/metrics"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Reconciliation compares a customer's stored balance with the sum of
// their ledger amounts.
type Reconciliation struct {
	CustomerID uuid.UUID       `json:"customer_id"`
	Balance    decimal.Decimal `json:"balance"`
	LedgerSum  decimal.Decimal `json:"ledger_sum"`
	Consistent bool            `json:"consistent"`
}

// Drift is how far the stored balance is from the ledger.
func (r Reconciliation) Drift() decimal.Decimal {
	return r.Balance.Sub(r.LedgerSum)
}

// Reconcile checks one customer. The row is locked while the ledger is
// summed so a concurrent write cannot produce a false mismatch.
func (s *LedgerService) Reconcile(ctx context.Context, id uuid.UUID) (*Reconciliation, error) {
	var res *Reconciliation
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.repo.GetCustomerForUpdate(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		sum, err := s.repo.SumTransactions(ctx, tx, id)
		if err != nil {
			return err
		}
		sum = sum.Round(2)
		res = &Reconciliation{
			CustomerID: id,
			Balance:    c.CreditBalance,
			LedgerSum:  sum,
			Consistent: c.CreditBalance.Equal(sum),
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, storageFailure(err)
	}
	return res, nil
}

// ReconcileAll checks every customer on a bounded worker pool and returns
// the inconsistent ones, ordered by customer id.
func (s *LedgerService) ReconcileAll(ctx context.Context) ([]Reconciliation, error) {
	ids, err := s.repo.ListCustomerIDs(ctx)
	if err != nil {
		return nil, storageFailure(err)
	}

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		mismatches []Reconciliation
		errs       []error
	)
	for _, id := range ids {
		id := id
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			res, err := s.Reconcile(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				errs = append(errs, err)
			case !res.Consistent:
				s.log.Warnw("ledger drift", "customer_id", id,
					"balance", res.Balance.StringFixed(2), "ledger_sum", res.LedgerSum.StringFixed(2))
				mismatches = append(mismatches, *res)
			}
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, submitErr)
			mu.Unlock()
		}
	}
	wg.Wait()

	sort.Slice(mismatches, func(i, j int) bool {
		return mismatches[i].CustomerID.String() < mismatches[j].CustomerID.String()
	})
	metrics.ReconcileMismatches.Set(float64(len(mismatches)))
	s.log.Infow("reconciliation finished", "checked", len(ids), "mismatches", len(mismatches), "errors", len(errs))
	return mismatches, errors.Join(errs...)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/pharmacy-credit/internal/metrics"
	"github.com/richardliu001/pharmacy-credit/internal/model"
	"github.com/richardliu001/pharmacy-credit/internal/repo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultPaymentDescription = "Credit payment received"
	DefaultChargeDescription  = "Credit sale charged"
)

// LedgerService owns customer credit balances and their transaction history.
type LedgerService struct {
	repo    repo.RepositoryInterface
	log     *zap.SugaredLogger
	workers int
}

// NewLedgerService returns LedgerService.
func NewLedgerService(r repo.RepositoryInterface, logger *zap.SugaredLogger) *LedgerService {
	return &LedgerService{repo: r, log: logger, workers: 8}
}

// SetReconcileWorkers sizes the pool used by ReconcileAll.
func (s *LedgerService) SetReconcileWorkers(n int) {
	if n > 0 {
		s.workers = n
	}
}

// RecordPayment lowers the customer's balance by amount and appends a
// PAYMENT row of -amount. A payment larger than the balance is rejected.
func (s *LedgerService) RecordPayment(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, description, actor string) (*model.Customer, error) {
	return s.apply(ctx, model.TxPayment, customerID, amount, description, actor)
}

// RecordCharge raises the customer's balance by amount and appends a
// CHARGE row of +amount.
func (s *LedgerService) RecordCharge(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, description, actor string) (*model.Customer, error) {
	return s.apply(ctx, model.TxCharge, customerID, amount, description, actor)
}

func (s *LedgerService) apply(ctx context.Context, typ model.TransactionType, customerID uuid.UUID, amount decimal.Decimal, description, actor string) (*model.Customer, error) {
	start := time.Now()
	c, err := s.applyTx(ctx, typ, customerID, amount, description, actor)
	metrics.ObserveLedgerOp(string(typ), Outcome(err), time.Since(start))
	if err != nil {
		if errors.Is(err, ErrStorageFailure) {
			s.log.Errorw("ledger write failed", "type", typ, "customer_id", customerID, "error", err)
		} else {
			s.log.Infow("ledger write rejected", "type", typ, "customer_id", customerID, "reason", err.Error())
		}
		return nil, err
	}

	if err := s.repo.CacheBalance(ctx, customerID, c.CreditBalance, c.Version); err != nil {
		s.log.Warnw("cache balance", "customer_id", customerID, "error", err)
		if err := s.repo.InvalidateBalance(ctx, customerID); err != nil {
			s.log.Warnw("invalidate cached balance", "customer_id", customerID, "error", err)
		}
	}
	s.log.Infow("ledger write applied",
		"type", typ, "customer_id", customerID, "amount", amount.StringFixed(2),
		"balance", c.CreditBalance.StringFixed(2), "actor", actor)
	return c, nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidArgument)
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: amount must have at most two decimal places", ErrInvalidArgument)
	}
	return nil
}

func (s *LedgerService) applyTx(ctx context.Context, typ model.TransactionType, customerID uuid.UUID, amount decimal.Decimal, description, actor string) (*model.Customer, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	description = strings.TrimSpace(description)
	if description == "" {
		description = DefaultChargeDescription
		if typ == model.TxPayment {
			description = DefaultPaymentDescription
		}
	}
	var createdBy *string
	if actor != "" {
		createdBy = &actor
	}

	var updated *model.Customer
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.repo.GetCustomerForUpdate(ctx, tx, customerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		delta := amount
		if typ == model.TxPayment {
			if amount.GreaterThan(c.CreditBalance) {
				return fmt.Errorf("%w: payment %s, balance %s",
					ErrOverpaymentRejected, amount.StringFixed(2), c.CreditBalance.StringFixed(2))
			}
			delta = amount.Neg()
		}
		newBal := c.CreditBalance.Add(delta)

		if err := s.repo.UpdateBalance(ctx, tx, customerID, newBal, c.Version); err != nil {
			return err
		}
		t := &model.CreditTransaction{
			CustomerID:   customerID,
			Type:         typ,
			Amount:       delta,
			BalanceAfter: newBal,
			Description:  description,
			CreatedBy:    createdBy,
		}
		if err := s.repo.CreateTransaction(ctx, tx, t); err != nil {
			return err
		}

		payload, err := json.Marshal(map[string]interface{}{
			"customer_id":    customerID,
			"transaction_id": t.ID,
			"type":           typ,
			"amount":         delta.StringFixed(2),
			"balance":        newBal.StringFixed(2),
			"created_by":     createdBy,
		})
		if err != nil {
			return err
		}
		eventType := model.EventChargeRecorded
		if typ == model.TxPayment {
			eventType = model.EventPaymentRecorded
		}
		evt := &model.OutboxEvent{
			Aggregate: "Customer", AggregateID: customerID, EventType: eventType, Payload: string(payload),
		}
		if err := s.repo.CreateOutboxEvent(ctx, tx, evt); err != nil {
			return err
		}

		updated, err = s.repo.GetCustomerForUpdate(ctx, tx, customerID)
		return err
	})
	if err != nil {
		if isLedgerError(err) {
			return nil, err
		}
		return nil, storageFailure(err)
	}
	return updated, nil
}

// GetCustomer returns the customer as stored.
func (s *LedgerService) GetCustomer(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	c, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, storageFailure(err)
	}
	return c, nil
}

// GetBalance returns current credit balance, from cache when possible.
func (s *LedgerService) GetBalance(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	bal, err := s.repo.GetCachedBalance(ctx, id)
	if err == nil {
		return bal, nil
	}
	c, err := s.GetCustomer(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	if err := s.repo.CacheBalance(ctx, id, c.CreditBalance, c.Version); err != nil {
		s.log.Warnw("cache balance", "customer_id", id, "error", err)
	}
	return c.CreditBalance, nil
}

// History fetches a customer's transactions since the given time, oldest first.
func (s *LedgerService) History(ctx context.Context, id uuid.UUID, limit int, since time.Time) ([]model.CreditTransaction, error) {
	if limit <= 0 || limit > 500 {
		return nil, fmt.Errorf("%w: limit must be between 1 and 500", ErrInvalidArgument)
	}
	if _, err := s.GetCustomer(ctx, id); err != nil {
		return nil, err
	}
	txs, err := s.repo.ListTransactions(ctx, id, limit, since)
	if err != nil {
		return nil, storageFailure(err)
	}
	return txs, nil
}

// CreateCustomer registers a customer with no outstanding credit.
func (s *LedgerService) CreateCustomer(ctx context.Context, name, phone string) (*model.Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	c := &model.Customer{Name: name, Phone: strings.TrimSpace(phone)}
	if err := s.repo.CreateCustomer(ctx, s.repo.DB(ctx), c); err != nil {
		return nil, storageFailure(err)
	}
	return c, nil
}

// Repo exposes underlying repository (unit tests helper).
func (s *LedgerService) Repo() repo.RepositoryInterface {
	return s.repo
}

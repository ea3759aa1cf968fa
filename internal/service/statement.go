package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/pharmacy-credit/internal/model"
	"github.com/richardliu001/pharmacy-credit/internal/statement"
	"gorm.io/gorm"
)

// MaxStatementRows caps how many ledger rows one statement lists.
const MaxStatementRows = 1000

// Statement renders the customer's newest transactions, at most limit of
// them, as an xlsx workbook. The customer row is locked while the ledger is
// read so the listed rows always lead to the printed balance.
func (s *LedgerService) Statement(ctx context.Context, id uuid.UUID, limit int, generatedAt time.Time) ([]byte, error) {
	if limit <= 0 || limit > MaxStatementRows {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidArgument, MaxStatementRows)
	}

	var (
		c   *model.Customer
		txs []model.CreditTransaction
	)
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if c, err = s.repo.GetCustomerForUpdate(ctx, tx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		txs, err = s.repo.ListRecentTransactions(ctx, tx, id, limit+1)
		return err
	})
	if err != nil {
		if isLedgerError(err) {
			return nil, err
		}
		return nil, storageFailure(err)
	}

	truncated := len(txs) > limit
	if truncated {
		txs = txs[:limit]
	}
	slices.Reverse(txs)

	data, err := statement.Render(c, txs, truncated, generatedAt)
	if err != nil {
		return nil, fmt.Errorf("render statement: %w", err)
	}
	return data, nil
}

package service

import (
	"errors"
	"fmt"
)

// Ledger error taxonomy. Every error returned by LedgerService matches
// exactly one of these with errors.Is.
var (
	ErrUnauthenticated     = errors.New("authentication required")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrNotFound            = errors.New("customer not found")
	ErrOverpaymentRejected = errors.New("payment exceeds outstanding credit balance")
	ErrStorageFailure      = errors.New("storage failure")
)

func storageFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrStorageFailure, err)
}

func isLedgerError(err error) bool {
	return errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrOverpaymentRejected) ||
		errors.Is(err, ErrStorageFailure)
}

// Outcome names the taxonomy bucket of err for metrics labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrOverpaymentRejected):
		return "overpayment_rejected"
	default:
		return "storage_failure"
	}
}

package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionType is the business reason for a balance change.
type TransactionType string

const (
	TxCharge  TransactionType = "CHARGE"
	TxPayment TransactionType = "PAYMENT"
)

// CreditTransaction is one append-only ledger row. Amount is the signed delta
// that was applied to the customer's balance: payments are negative.
type CreditTransaction struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"customer_id"`
	Type         TransactionType `gorm:"size:16;not null" json:"type"`
	Amount       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	BalanceAfter decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"balance_after"`
	Description  string          `gorm:"type:text;not null" json:"description"`
	CreatedBy    *string         `gorm:"type:text" json:"created_by,omitempty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (CreditTransaction) TableName() string { return "credit_transactions" }

func (t *CreditTransaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

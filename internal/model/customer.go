package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Customer is a pharmacy customer buying on account. Only the ledger
// service writes CreditBalance.
type Customer struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string          `gorm:"size:140;not null" json:"name"`
	Phone         string          `gorm:"size:60" json:"phone,omitempty"`
	CreditBalance decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"credit_balance"`
	Version       uint64          `gorm:"not null;default:0" json:"-"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }

func (c *Customer) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventPaymentRecorded = "CreditPaymentRecorded"
	EventChargeRecorded  = "CreditChargeRecorded"
)

type OutboxEvent struct {
	ID          uint64    `gorm:"primaryKey"`
	Aggregate   string    `gorm:"size:64;not null"`
	AggregateID uuid.UUID `gorm:"type:uuid;not null"`
	EventType   string    `gorm:"size:64;not null"`
	Payload     string    `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	Processed   bool      `gorm:"not null;default:false;index"`
	ProcessedAt *time.Time
}

func (OutboxEvent) TableName() string { return "credit_outbox" }

// All lists every table owned by this service, for AutoMigrate.
func All() []interface{} {
	return []interface{}{&Customer{}, &CreditTransaction{}, &OutboxEvent{}}
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vrumi/vrumi-backend/pkg/enums"
)

// InstructorTransaction is an append-only ledger row. Refund rows carry a
// negative amount.
type InstructorTransaction struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	InstructorID   uuid.UUID             `gorm:"column:instructor_id;type:uuid;not null"`
	BookingID      *uuid.UUID            `gorm:"column:booking_id;type:uuid"`
	Type           enums.TransactionType `gorm:"column:type;not null"`
	Amount         decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null"`
	Description    string                `gorm:"column:description;not null"`
	StripeRefundID *string               `gorm:"column:stripe_refund_id"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (InstructorTransaction) TableName() string { return "instructor_transactions" }

func (t *InstructorTransaction) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

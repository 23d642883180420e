package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vrumi/vrumi-backend/pkg/enums"
)

// RefundIntent is written before the processor call and resolved after the
// local booking/ledger update commits.
type RefundIntent struct {
	ID             uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	BookingID      uuid.UUID                `gorm:"column:booking_id;type:uuid;not null"`
	RequestedBy    uuid.UUID                `gorm:"column:requested_by;type:uuid;not null"`
	IdempotencyKey string                   `gorm:"column:idempotency_key;not null;uniqueIndex"`
	Reason         *string                  `gorm:"column:reason"`
	Status         enums.RefundIntentStatus `gorm:"column:status;not null"`
	StripeRefundID *string                  `gorm:"column:stripe_refund_id"`
	RefundStatus   *string                  `gorm:"column:refund_status"`
	AmountCents    *int64                   `gorm:"column:amount_cents"`
	LastError      *string                  `gorm:"column:last_error"`
	AttemptCount   int                      `gorm:"column:attempt_count;not null;default:0"`
	CreatedAt      time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                `gorm:"column:updated_at;autoUpdateTime"`
	ResolvedAt     *time.Time               `gorm:"column:resolved_at"`
}

func (RefundIntent) TableName() string { return "refund_intents" }

func (r *RefundIntent) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

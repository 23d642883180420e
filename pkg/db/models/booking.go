package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vrumi/vrumi-backend/pkg/enums"
)

// Booking is a purchased instructor lesson.
type Booking struct {
	ID                    uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	StudentID             uuid.UUID           `gorm:"column:student_id;type:uuid;not null"`
	InstructorID          *uuid.UUID          `gorm:"column:instructor_id;type:uuid"`
	Price                 decimal.Decimal     `gorm:"column:price;type:numeric(10,2);not null"`
	PaymentStatus         enums.PaymentStatus `gorm:"column:payment_status;not null"`
	StripePaymentIntentID *string             `gorm:"column:stripe_payment_intent_id"`
	Status                enums.BookingStatus `gorm:"column:status;not null"`
	CancellationReason    *string             `gorm:"column:cancellation_reason"`
	CancelledAt           *time.Time          `gorm:"column:cancelled_at"`
	ScheduledAt           time.Time           `gorm:"column:scheduled_at;not null"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Booking) TableName() string { return "bookings" }

func (b *Booking) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

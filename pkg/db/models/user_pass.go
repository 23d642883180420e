package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vrumi/vrumi-backend/pkg/enums"
)

// UserPass is a time-boxed entitlement. It grants access only while
// PaymentStatus is completed and ExpiresAt is in the future.
type UserPass struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	PassType        enums.PassType      `gorm:"column:pass_type;not null"`
	Price           decimal.Decimal     `gorm:"column:price;type:numeric(10,2);not null"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;not null"`
	ExpiresAt       time.Time           `gorm:"column:expires_at;not null"`
	PurchasedAt     time.Time           `gorm:"column:purchased_at;not null"`
	StripeSessionID *string             `gorm:"column:stripe_session_id"`
	StripeEventID   *string             `gorm:"column:stripe_event_id"`
	CouponCode      *string             `gorm:"column:coupon_code"`
}

func (UserPass) TableName() string { return "user_passes" }

func (p *UserPass) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// GrantsAccess reports whether the pass unlocks gated content at now.
func (p UserPass) GrantsAccess(now time.Time) bool {
	return p.PaymentStatus == enums.PaymentStatusCompleted && p.ExpiresAt.After(now)
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vrumi/vrumi-backend/pkg/enums"
)

// Coupon is a discount code. Code lookups are case-sensitive.
type Coupon struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Code          string             `gorm:"column:code;not null;uniqueIndex"`
	DiscountType  enums.DiscountType `gorm:"column:discount_type;not null"`
	DiscountValue decimal.Decimal    `gorm:"column:discount_value;type:numeric(10,2);not null"`
	IsActive      bool               `gorm:"column:is_active;not null;default:true"`
	ExpiresAt     *time.Time         `gorm:"column:expires_at"`
	MaxUses       *int               `gorm:"column:max_uses"`
	UsedCount     int                `gorm:"column:used_count;not null;default:0"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (Coupon) TableName() string { return "coupons" }

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// CouponRedemption records one consumed use of a coupon. StripeSessionID is
// unique so a redelivered checkout cannot count twice.
type CouponRedemption struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CouponID        uuid.UUID `gorm:"column:coupon_id;type:uuid;not null"`
	UserID          uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	StripeSessionID string    `gorm:"column:stripe_session_id;not null;uniqueIndex"`
	RedeemedAt      time.Time `gorm:"column:redeemed_at;autoCreateTime"`
}

func (CouponRedemption) TableName() string { return "coupon_redemptions" }

func (r *CouponRedemption) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

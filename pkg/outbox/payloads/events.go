package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/vrumi/vrumi-backend/pkg/enums"
)

// PassGrantedEvent is emitted once per pass row created from a paid checkout.
type PassGrantedEvent struct {
	PassID      uuid.UUID      `json:"pass_id"`
	UserID      uuid.UUID      `json:"user_id"`
	PurchaserID uuid.UUID      `json:"purchaser_id"`
	PassType    enums.PassType `json:"pass_type"`
	Price       string         `json:"price"`
	ExpiresAt   time.Time      `json:"expires_at"`
	SessionID   string         `json:"session_id"`
}

// FamilyBeneficiaryUnresolvedEvent flags a family checkout whose second
// beneficiary email matched no account. Only the purchaser row was created.
type FamilyBeneficiaryUnresolvedEvent struct {
	PurchaserID     uuid.UUID `json:"purchaser_id"`
	PassID          uuid.UUID `json:"pass_id"`
	SecondUserEmail string    `json:"second_user_email"`
	SessionID       string    `json:"session_id"`
}

// CouponRedeemedEvent records a consumed coupon use.
type CouponRedeemedEvent struct {
	CouponID  uuid.UUID `json:"coupon_id"`
	Code      string    `json:"code"`
	UserID    uuid.UUID `json:"user_id"`
	SessionID string    `json:"session_id"`
}

// BookingRefundedEvent is emitted when a refunded booking has been written
// locally.
type BookingRefundedEvent struct {
	BookingID       uuid.UUID  `json:"booking_id"`
	StudentID       uuid.UUID  `json:"student_id"`
	InstructorID    *uuid.UUID `json:"instructor_id,omitempty"`
	RefundID        string     `json:"refund_id"`
	AmountCents     int64      `json:"amount_cents"`
	InstructorDebit string     `json:"instructor_debit,omitempty"`
	Reason          string     `json:"reason,omitempty"`
	RefundedAt      time.Time  `json:"refunded_at"`
}

package passes

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vrumi/vrumi-backend/pkg/db/models"
	"github.com/vrumi/vrumi-backend/pkg/enums"
)

// PassDTO is the API shape of a pass row.
type PassDTO struct {
	ID            uuid.UUID           `json:"id"`
	UserID        uuid.UUID           `json:"user_id"`
	PassType      enums.PassType      `json:"pass_type"`
	Price         decimal.Decimal     `json:"price"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	PurchasedAt   time.Time           `json:"purchased_at"`
	ExpiresAt     time.Time           `json:"expires_at"`
	CouponCode    *string             `json:"coupon_code,omitempty"`
}

// ToDTO maps a pass row; nil stays nil.
func ToDTO(pass *models.UserPass) *PassDTO {
	if pass == nil {
		return nil
	}
	return &PassDTO{
		ID:            pass.ID,
		UserID:        pass.UserID,
		PassType:      pass.PassType,
		Price:         pass.Price,
		PaymentStatus: pass.PaymentStatus,
		PurchasedAt:   pass.PurchasedAt,
		ExpiresAt:     pass.ExpiresAt,
		CouponCode:    pass.CouponCode,
	}
}

// ToDTOs maps a list of pass rows.
func ToDTOs(rows []models.UserPass) []PassDTO {
	out := make([]PassDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *ToDTO(&rows[i]))
	}
	return out
}

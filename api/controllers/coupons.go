package controllers

import (
	"net/http"

	"github.com/vrumi/vrumi-backend/api/responses"
	"github.com/vrumi/vrumi-backend/api/validators"
	"github.com/vrumi/vrumi-backend/internal/coupons"
	pkgerrors "github.com/vrumi/vrumi-backend/pkg/errors"
	"github.com/vrumi/vrumi-backend/pkg/logger"
)

type couponValidateRequest struct {
	CouponCode string `json:"couponCode"`
	PassType   string `json:"passType" validate:"required,pass_type"`
}

type couponValidateResponse struct {
	Valid          bool     `json:"valid"`
	Message        string   `json:"message"`
	DiscountAmount *float64 `json:"discountAmount,omitempty"`
	NewPrice       *float64 `json:"newPrice,omitempty"`
	OriginalPrice  *float64 `json:"originalPrice,omitempty"`
}

// ValidateCoupon prices a pass with the coupon applied. Unusable coupons are
// a 200 with valid=false; only malformed input is an error.
func ValidateCoupon(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupons service unavailable"))
			return
		}

		var req couponValidateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Validate(r.Context(), validators.NormalizeCouponCode(req.CouponCode), req.PassType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := couponValidateResponse{Valid: result.Valid, Message: result.Message}
		if result.Valid {
			resp.DiscountAmount = money(result.DiscountAmount)
			resp.NewPrice = money(result.NewPrice)
			resp.OriginalPrice = money(result.OriginalPrice)
		}
		responses.WriteSuccess(w, resp)
	}
}

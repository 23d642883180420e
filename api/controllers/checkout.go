package controllers

import (
	"net/http"

	"github.com/vrumi/vrumi-backend/api/middleware"
	"github.com/vrumi/vrumi-backend/api/responses"
	"github.com/vrumi/vrumi-backend/api/validators"
	"github.com/vrumi/vrumi-backend/internal/checkout"
	pkgerrors "github.com/vrumi/vrumi-backend/pkg/errors"
	"github.com/vrumi/vrumi-backend/pkg/logger"
)

type checkoutSessionRequest struct {
	PassType        string `json:"passType" validate:"required,pass_type"`
	CouponCode      string `json:"couponCode,omitempty" validate:"max=64"`
	SecondUserEmail string `json:"secondUserEmail,omitempty" validate:"omitempty,email,max=254"`
	SuccessURL      string `json:"successUrl,omitempty" validate:"omitempty,url"`
	CancelURL       string `json:"cancelUrl,omitempty" validate:"omitempty,url"`
}

type checkoutSessionResponse struct {
	SessionID      string   `json:"session_id"`
	URL            string   `json:"url"`
	PassType       string   `json:"pass_type"`
	OriginalPrice  *float64 `json:"original_price"`
	DiscountAmount *float64 `json:"discount_amount"`
	Amount         *float64 `json:"amount"`
}

// CreateCheckoutSession starts a Stripe Checkout for a pass purchase.
func CreateCheckoutSession(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var req checkoutSessionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateSession(r.Context(), checkout.CreateSessionInput{
			UserID:          middleware.UserUUIDFromContext(r.Context()),
			Email:           middleware.EmailFromContext(r.Context()),
			PassType:        req.PassType,
			CouponCode:      validators.NormalizeCouponCode(req.CouponCode),
			SecondUserEmail: req.SecondUserEmail,
			SuccessURL:      req.SuccessURL,
			CancelURL:       req.CancelURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutSessionResponse{
			SessionID:      result.SessionID,
			URL:            result.URL,
			PassType:       string(result.PassType),
			OriginalPrice:  money(result.OriginalPrice),
			DiscountAmount: money(result.DiscountAmount),
			Amount:         money(result.Amount),
		})
	}
}

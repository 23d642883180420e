package admin

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vrumi/vrumi-backend/api/responses"
	"github.com/vrumi/vrumi-backend/api/validators"
	"github.com/vrumi/vrumi-backend/internal/coupons"
	"github.com/vrumi/vrumi-backend/pkg/db/models"
	pkgerrors "github.com/vrumi/vrumi-backend/pkg/errors"
	"github.com/vrumi/vrumi-backend/pkg/logger"
)

type couponResponse struct {
	ID            uuid.UUID  `json:"id"`
	Code          string     `json:"code"`
	DiscountType  string     `json:"discount_type"`
	DiscountValue float64    `json:"discount_value"`
	IsActive      bool       `json:"is_active"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	MaxUses       *int       `json:"max_uses,omitempty"`
	UsedCount     int        `json:"used_count"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toCouponResponse(c models.Coupon) couponResponse {
	value, _ := c.DiscountValue.Round(2).Float64()
	return couponResponse{
		ID:            c.ID,
		Code:          c.Code,
		DiscountType:  string(c.DiscountType),
		DiscountValue: value,
		IsActive:      c.IsActive,
		ExpiresAt:     c.ExpiresAt,
		MaxUses:       c.MaxUses,
		UsedCount:     c.UsedCount,
		CreatedAt:     c.CreatedAt,
	}
}

func CreateCoupon(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req coupons.CreateInput
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		coupon, err := svc.Create(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		logg.Info(logg.WithField(r.Context(), "coupon_code", coupon.Code), "admin.coupon_created")
		responses.WriteSuccessStatus(w, http.StatusCreated, toCouponResponse(*coupon))
	}
}

func ListCoupons(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 100, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.List(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]couponResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, toCouponResponse(row))
		}
		responses.WriteSuccess(w, out)
	}
}

type setCouponActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// SetCouponActive toggles a coupon on or off without touching its usage count.
func SetCouponActive(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimSpace(chi.URLParam(r, "code"))
		if code == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "coupon code required"))
			return
		}
		var req setCouponActiveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.SetActive(r.Context(), code, *req.Active); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"code": code, "active": *req.Active})
	}
}

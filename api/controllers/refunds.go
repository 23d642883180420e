package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/vrumi/vrumi-backend/api/middleware"
	"github.com/vrumi/vrumi-backend/api/responses"
	"github.com/vrumi/vrumi-backend/api/validators"
	"github.com/vrumi/vrumi-backend/internal/refunds"
	pkgerrors "github.com/vrumi/vrumi-backend/pkg/errors"
	"github.com/vrumi/vrumi-backend/pkg/logger"
)

type adminChecker interface {
	IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
}

type refundRequest struct {
	BookingID string `json:"bookingId" validate:"required,uuid"`
	Reason    string `json:"reason,omitempty" validate:"max=500"`
}

type refundResponse struct {
	Success        bool    `json:"success"`
	RefundID       string  `json:"refund_id"`
	RefundStatus   string  `json:"refund_status"`
	AmountRefunded float64 `json:"amount_refunded"`
}

// CreateRefund refunds a completed booking payment. Only POST is accepted.
func CreateRefund(svc refunds.Service, admins adminChecker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeMethodNotAllowed, "method not allowed"))
			return
		}
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refunds service unavailable"))
			return
		}

		callerID := middleware.UserUUIDFromContext(r.Context())
		if callerID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		var req refundRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bookingID, err := uuid.Parse(req.BookingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid booking id"))
			return
		}

		isAdmin := middleware.IsAdminFromContext(r.Context())
		if !isAdmin && admins != nil {
			isAdmin, err = admins.IsAdmin(r.Context(), callerID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := svc.Refund(r.Context(), refunds.RefundInput{
			BookingID:     bookingID,
			Reason:        validators.SanitizeString(req.Reason, 500),
			CallerID:      callerID,
			CallerIsAdmin: isAdmin,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, refundResponse{
			Success:        true,
			RefundID:       result.RefundID,
			RefundStatus:   result.RefundStatus,
			AmountRefunded: *money(result.AmountRefunded),
		})
	}
}

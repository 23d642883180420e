package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vrumi/vrumi-backend/api/middleware"
	"github.com/vrumi/vrumi-backend/api/responses"
	"github.com/vrumi/vrumi-backend/api/validators"
	"github.com/vrumi/vrumi-backend/internal/ledger"
	"github.com/vrumi/vrumi-backend/pkg/logger"
)

type ledgerEntry struct {
	ID             uuid.UUID  `json:"id"`
	BookingID      *uuid.UUID `json:"booking_id,omitempty"`
	Type           string     `json:"type"`
	Amount         *float64   `json:"amount"`
	Description    string     `json:"description"`
	StripeRefundID *string    `json:"stripe_refund_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type ledgerResponse struct {
	Balance *float64      `json:"balance"`
	Entries []ledgerEntry `json:"entries"`
}

// InstructorLedger shows the caller's instructor balance and recent entries.
func InstructorLedger(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		instructorID := middleware.UserUUIDFromContext(r.Context())
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.Balance(r.Context(), instructorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListByInstructor(r.Context(), instructorID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries := make([]ledgerEntry, 0, len(rows))
		for _, row := range rows {
			entries = append(entries, ledgerEntry{
				ID:             row.ID,
				BookingID:      row.BookingID,
				Type:           string(row.Type),
				Amount:         money(row.Amount),
				Description:    row.Description,
				StripeRefundID: row.StripeRefundID,
				CreatedAt:      row.CreatedAt,
			})
		}
		responses.WriteSuccess(w, ledgerResponse{Balance: money(balance), Entries: entries})
	}
}

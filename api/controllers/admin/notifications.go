package admin

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/vrumi/vrumi-backend/api/responses"
	"github.com/vrumi/vrumi-backend/api/validators"
	"github.com/vrumi/vrumi-backend/internal/notifications"
	pkgerrors "github.com/vrumi/vrumi-backend/pkg/errors"
	"github.com/vrumi/vrumi-backend/pkg/logger"
)

type sendNotificationRequest struct {
	UserIDs   []uuid.UUID `json:"user_ids" validate:"omitempty,max=1000"`
	Broadcast bool        `json:"broadcast"`
	Title     string      `json:"title" validate:"required,max=120"`
	Body      string      `json:"body" validate:"required,max=2000"`
	Link      string      `json:"link" validate:"omitempty,max=500"`
}

// SendNotification fans a notification out to explicit users or to everyone.
func SendNotification(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendNotificationRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.Broadcast == (len(req.UserIDs) > 0) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "provide either user_ids or broadcast"))
			return
		}

		sent, err := svc.Send(r.Context(), notifications.SendInput{
			UserIDs:   req.UserIDs,
			Broadcast: req.Broadcast,
			Title:     req.Title,
			Body:      req.Body,
			Link:      req.Link,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]int{"sent": sent})
	}
}

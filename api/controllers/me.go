package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/vrumi/vrumi-backend/api/middleware"
	"github.com/vrumi/vrumi-backend/api/responses"
	"github.com/vrumi/vrumi-backend/internal/users"
	"github.com/vrumi/vrumi-backend/pkg/logger"
)

type profileReader interface {
	Profile(ctx context.Context, userID uuid.UUID) (*users.ProfileDTO, error)
}

// Me returns the caller's directory profile and roles.
func Me(svc profileReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, err := svc.Profile(r.Context(), middleware.UserUUIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

// Package admin holds the handlers mounted under /api/admin/v1. Every route is
// wrapped by middleware.Auth and middleware.RequireAdmin.
package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vrumi/vrumi-backend/api/responses"
	"github.com/vrumi/vrumi-backend/internal/passes"
	pkgerrors "github.com/vrumi/vrumi-backend/pkg/errors"
	"github.com/vrumi/vrumi-backend/pkg/logger"
)

// UserPasses lists every pass held by the user in the path.
func UserPasses(svc passes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := parseUUIDParam(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListForUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, passes.ToDTOs(rows))
	}
}

// DeletePass removes a pass row. Payment history is untouched.
func DeletePass(svc passes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		passID, err := parseUUIDParam(r, "passId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.AdminDelete(r.Context(), passID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		logg.Info(logg.WithField(r.Context(), "pass_id", passID.String()), "admin.pass_deleted")
		responses.WriteSuccess(w, map[string]bool{"deleted": true})
	}
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}

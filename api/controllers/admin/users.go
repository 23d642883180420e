package admin

import (
	"net/http"

	"github.com/vrumi/vrumi-backend/api/responses"
	"github.com/vrumi/vrumi-backend/api/validators"
	"github.com/vrumi/vrumi-backend/internal/users"
	"github.com/vrumi/vrumi-backend/pkg/logger"
)

type grantRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin instructor student"`
}

func GrantRole(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := parseUUIDParam(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req grantRoleRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profile, err := svc.GrantRole(r.Context(), userID, req.Role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithFields(r.Context(), map[string]any{"target_user_id": userID.String(), "role": req.Role})
		logg.Info(ctx, "admin.role_granted")
		responses.WriteSuccess(w, profile)
	}
}

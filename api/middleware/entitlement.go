package middleware

import (
	"net/http"

	"github.com/vrumi/vrumi-backend/api/responses"
	"github.com/vrumi/vrumi-backend/internal/entitlements"
	pkgerrors "github.com/vrumi/vrumi-backend/pkg/errors"
	"github.com/vrumi/vrumi-backend/pkg/logger"
)

// RequireEntitlement lets a request through only while the caller holds an
// active pass. Blocked callers get the 402 paywall payload.
func RequireEntitlement(evaluator entitlements.Evaluator, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := evaluator.Evaluate(r.Context(), UserUUIDFromContext(r.Context()))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if !decision.Granted() {
				err := pkgerrors.New(pkgerrors.CodePaymentRequired, "an active pass is required").
					WithDetails(map[string]any{
						"state":    decision.State,
						"paywall":  true,
						"plans_at": "/api/v1/passes/plans",
					})
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

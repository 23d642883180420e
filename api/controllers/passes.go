package controllers

import (
	"net/http"

	"github.com/vrumi/vrumi-backend/api/middleware"
	"github.com/vrumi/vrumi-backend/api/responses"
	"github.com/vrumi/vrumi-backend/internal/passes"
	"github.com/vrumi/vrumi-backend/pkg/logger"
)

type planResponse struct {
	PassType     string   `json:"pass_type"`
	Name         string   `json:"name"`
	DurationDays int      `json:"duration_days"`
	Price        *float64 `json:"price"`
	Family       bool     `json:"family"`
}

// PassPlans lists the purchasable passes. It is public.
func PassPlans(catalog *passes.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plans := catalog.Plans()
		out := make([]planResponse, 0, len(plans))
		for _, plan := range plans {
			out = append(out, planResponse{
				PassType:     string(plan.Type),
				Name:         plan.Name,
				DurationDays: plan.DurationDays,
				Price:        money(plan.Price),
				Family:       plan.Family,
			})
		}
		responses.WriteSuccess(w, out)
	}
}

// MyPasses lists every pass the caller has held, newest first.
func MyPasses(svc passes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.ListForUser(r.Context(), middleware.UserUUIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, passes.ToDTOs(rows))
	}
}

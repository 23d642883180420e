package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vrumi/vrumi-backend/api/middleware"
	"github.com/vrumi/vrumi-backend/api/responses"
	"github.com/vrumi/vrumi-backend/internal/favorites"
	"github.com/vrumi/vrumi-backend/pkg/logger"
)

type favoritesResponse struct {
	Kind  string   `json:"kind"`
	Items []string `json:"items"`
}

func ListFavorites(svc favorites.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := chi.URLParam(r, "kind")
		items, err := svc.List(r.Context(), middleware.UserUUIDFromContext(r.Context()), kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, favoritesResponse{Kind: kind, Items: items})
	}
}

// PutFavorite is idempotent: saving an already saved item is a no-op.
func PutFavorite(svc favorites.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserUUIDFromContext(r.Context())
		if err := svc.Add(r.Context(), userID, chi.URLParam(r, "kind"), chi.URLParam(r, "itemId")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"saved": true})
	}
}

func DeleteFavorite(svc favorites.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserUUIDFromContext(r.Context())
		if err := svc.Remove(r.Context(), userID, chi.URLParam(r, "kind"), chi.URLParam(r, "itemId")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"removed": true})
	}
}

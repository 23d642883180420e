package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/vrumi/vrumi-backend/pkg/config"
)

const defaultCORSMaxAge = 300

// CORS echoes Access-Control-Allow-Origin only for configured origins.
// Requests from any other origin get no CORS headers at all.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	maxAge := cfg.MaxAgeSeconds
	if maxAge <= 0 {
		maxAge = defaultCORSMaxAge
	}
	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id", "apikey", "x-client-info"},
		ExposedHeaders:   []string{"X-Request-Id", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           maxAge,
	}).Handler
}

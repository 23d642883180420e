package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vrumi/vrumi-backend/api/controllers"
	admincontrollers "github.com/vrumi/vrumi-backend/api/controllers/admin"
	webhookcontrollers "github.com/vrumi/vrumi-backend/api/controllers/webhooks"
	"github.com/vrumi/vrumi-backend/api/middleware"
	"github.com/vrumi/vrumi-backend/internal/checkout"
	"github.com/vrumi/vrumi-backend/internal/coupons"
	"github.com/vrumi/vrumi-backend/internal/entitlements"
	"github.com/vrumi/vrumi-backend/internal/favorites"
	"github.com/vrumi/vrumi-backend/internal/ledger"
	"github.com/vrumi/vrumi-backend/internal/notifications"
	"github.com/vrumi/vrumi-backend/internal/passes"
	"github.com/vrumi/vrumi-backend/internal/ratelimit"
	"github.com/vrumi/vrumi-backend/internal/refunds"
	"github.com/vrumi/vrumi-backend/internal/users"
	"github.com/vrumi/vrumi-backend/pkg/config"
	"github.com/vrumi/vrumi-backend/pkg/logger"
	"github.com/vrumi/vrumi-backend/pkg/metrics"
)

// EntitlementWatcher streams gate transitions for one user.
type EntitlementWatcher interface {
	Watch(ctx context.Context, userID uuid.UUID, onChange func(entitlements.Decision)) error
}

// Dependencies carries everything the HTTP surface needs. Pingers are checked
// by /health/ready.
type Dependencies struct {
	Config  *config.Config
	Logger  *logger.Logger
	Pingers map[string]controllers.Pinger

	Idempotency    middleware.IdempotencyStore
	RateLimitStore ratelimit.Store
	Metrics        *metrics.PaymentMetrics
	MetricsHandler http.Handler

	Users         users.Service
	Passes        passes.Service
	Catalog       *passes.Catalog
	Coupons       coupons.Service
	Checkout      checkout.Service
	Refunds       refunds.Service
	Ledger        ledger.Service
	Favorites     favorites.Service
	Notifications notifications.Service
	Entitlements  entitlements.Evaluator
	Watcher       EntitlementWatcher

	StripeWebhook      webhookcontrollers.StripeWebhookService
	StripeSigner       interface{ SigningSecret() string }
	StripeWebhookGuard interface {
		CheckAndMark(ctx context.Context, eventID string) (bool, error)
		Delete(ctx context.Context, eventID string) error
	}
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	limit := func(name string, window time.Duration, max int) func(http.Handler) http.Handler {
		return middleware.RateLimit(middleware.RateLimitParams{
			Policy:  ratelimit.Policy{Name: name, Window: window, MaxRequests: max},
			Store:   deps.RateLimitStore,
			Logger:  logg,
			Metrics: deps.Metrics,
		})
	}
	checkoutLimit := limit("checkout", cfg.RateLimit.CheckoutWindow, cfg.RateLimit.CheckoutLimit)
	refundLimit := limit("refund", cfg.RateLimit.RefundWindow, cfg.RateLimit.RefundLimit)
	couponLimit := limit("coupon", cfg.RateLimit.CouponWindow, cfg.RateLimit.CouponLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, deps.StripeSigner, deps.StripeWebhookGuard, logg))
		r.Get("/passes/plans", controllers.PassPlans(deps.Catalog))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(deps.Idempotency, logg))

			r.Get("/me", controllers.Me(deps.Users, logg))
			r.Get("/passes/me", controllers.MyPasses(deps.Passes, logg))

			r.With(checkoutLimit).Post("/checkout/sessions", controllers.CreateCheckoutSession(deps.Checkout, logg))
			r.With(couponLimit).Post("/coupons/validate", controllers.ValidateCoupon(deps.Coupons, logg))
			r.With(refundLimit).HandleFunc("/connect/refunds", controllers.CreateRefund(deps.Refunds, deps.Users, logg))
			r.Get("/connect/ledger", controllers.InstructorLedger(deps.Ledger, logg))

			r.Route("/entitlements", func(r chi.Router) {
				r.Get("/me", controllers.MyEntitlement(deps.Entitlements, logg))
				r.Get("/me/stream", controllers.EntitlementStream(deps.Watcher, cfg.Entitlements.StreamHeartbeat, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
			})

			r.Route("/favorites/{kind}", func(r chi.Router) {
				r.Get("/", controllers.ListFavorites(deps.Favorites, logg))
				r.Put("/{itemId}", controllers.PutFavorite(deps.Favorites, logg))
				r.Delete("/{itemId}", controllers.DeleteFavorite(deps.Favorites, logg))
			})

			r.Route("/content", func(r chi.Router) {
				r.Use(middleware.RequireEntitlement(deps.Entitlements, logg))
				r.Get("/simulados", controllers.Simulados())
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAdmin(deps.Users, logg))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Get("/users/{userId}/passes", admincontrollers.UserPasses(deps.Passes, logg))
		r.Post("/users/{userId}/roles", admincontrollers.GrantRole(deps.Users, logg))
		r.Delete("/passes/{passId}", admincontrollers.DeletePass(deps.Passes, logg))
		r.Post("/notifications", admincontrollers.SendNotification(deps.Notifications, logg))
		r.Route("/coupons", func(r chi.Router) {
			r.Get("/", admincontrollers.ListCoupons(deps.Coupons, logg))
			r.Post("/", admincontrollers.CreateCoupon(deps.Coupons, logg))
			r.Patch("/{code}", admincontrollers.SetCouponActive(deps.Coupons, logg))
		})
	})

	return r
}

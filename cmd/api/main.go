package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/vrumi/vrumi-backend/api/controllers"
	"github.com/vrumi/vrumi-backend/api/routes"
	"github.com/vrumi/vrumi-backend/internal/bookings"
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
	stripewebhook "github.com/vrumi/vrumi-backend/internal/webhooks/stripe"
	"github.com/vrumi/vrumi-backend/pkg/config"
	"github.com/vrumi/vrumi-backend/pkg/db"
	"github.com/vrumi/vrumi-backend/pkg/instance"
	"github.com/vrumi/vrumi-backend/pkg/logger"
	"github.com/vrumi/vrumi-backend/pkg/metrics"
	"github.com/vrumi/vrumi-backend/pkg/migrate"
	"github.com/vrumi/vrumi-backend/pkg/outbox"
	"github.com/vrumi/vrumi-backend/pkg/redis"
	"github.com/vrumi/vrumi-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, watcher, err := buildDependencies(ctx, cfg, logg, dbClient, redisClient, stripeClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire api dependencies", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"instance":     instance.ID("local"),
		"stripe_env":   stripeClient.Environment(),
		"rate_limiter": cfg.RateLimit.Backend,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server.RegisterOnShutdown(watcher.Close)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
		logg.Info(shutdownCtx, "api server shut down gracefully")
	}
}

func buildDependencies(
	ctx context.Context,
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	stripeClient *stripe.Client,
) (routes.Dependencies, *entitlements.Watcher, error) {
	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	catalog, err := passes.NewCatalog(cfg.Passes)
	if err != nil {
		return routes.Dependencies{}, nil, err
	}

	usersRepo := users.NewRepository(dbClient.DB())
	usersService, err := users.NewService(usersRepo)
	if err != nil {
		return routes.Dependencies{}, nil, err
	}

	feed := entitlements.NewRedisFeed(redisClient)
	passesService, err := passes.NewService(passes.ServiceParams{
		Repo:      passes.NewRepository(dbClient.DB()),
		Directory: func(tx *gorm.DB) passes.Directory { return usersRepo.WithTx(tx) },
		Outbox:    outboxService,
		Catalog:   catalog,
		Notifier:  feed,
		Logger:    logg,
	})
	if err != nil {
		return routes.Dependencies{}, nil, err
	}

	couponsService, err := coupons.NewService(coupons.ServiceParams{
		Repo:    coupons.NewRepository(dbClient.DB()),
		Catalog: catalog,
		Outbox:  outboxService,
		Logger:  logg,
	})
	if err != nil {
		return routes.Dependencies{}, nil, err
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Stripe:  checkout.NewStripeClient(stripeClient),
		Catalog: catalog,
		Coupons: couponsService,
		Config:  cfg.Stripe,
		Metrics: paymentMetrics,
		Logger:  logg,
	})
	if err != nil {
		return routes.Dependencies{}, nil, err
	}

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()), cfg.Connect.PlatformFee())
	if err != nil {
		return routes.Dependencies{}, nil, err
	}

	refundsService, err := refunds.NewService(refunds.ServiceParams{
		Bookings:          bookings.NewRepository(dbClient.DB()),
		Intents:           refunds.NewIntentRepository(dbClient.DB()),
		Ledger:            ledgerService,
		Stripe:            refunds.NewStripeClient(stripeClient),
		Outbox:            outboxService,
		TransactionRunner: dbClient,
		Metrics:           paymentMetrics,
		Logger:            logg,
		StaleAfter:        cfg.Cron.RefundStaleAfter,
		MaxAttempts:       cfg.Cron.RefundMaxAttempts,
		BatchSize:         cfg.Cron.RefundBatchSize,
	})
	if err != nil {
		return routes.Dependencies{}, nil, err
	}

	favoritesService, err := favorites.NewService(favorites.NewRedisStore(redisClient))
	if err != nil {
		return routes.Dependencies{}, nil, err
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		return routes.Dependencies{}, nil, err
	}

	evaluator, err := entitlements.NewService(passesService, nil)
	if err != nil {
		return routes.Dependencies{}, nil, err
	}
	watcher, err := entitlements.NewWatcher(evaluator, feed, cfg.Entitlements.RecheckInterval, logg)
	if err != nil {
		return routes.Dependencies{}, nil, err
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Events:            stripewebhook.NewEventRepository(dbClient.DB()),
		Passes:            passesService,
		Coupons:           couponsService,
		Notifier:          feed,
		TransactionRunner: dbClient,
		Metrics:           paymentMetrics,
		Logger:            logg,
	})
	if err != nil {
		return routes.Dependencies{}, nil, err
	}
	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL, "stripe-webhook")
	if err != nil {
		return routes.Dependencies{}, nil, err
	}

	var limiter ratelimit.Store
	if cfg.RateLimit.UsesRedis() {
		limiter = ratelimit.NewRedisStore(redisClient, nil)
	} else {
		memory := ratelimit.NewMemoryStore(nil)
		go memory.RunSweeper(ctx, cfg.RateLimit.SweepInterval)
		limiter = memory
	}

	return routes.Dependencies{
		Config: cfg,
		Logger: logg,
		Pingers: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
		Idempotency:        redisClient,
		RateLimitStore:     limiter,
		Metrics:            paymentMetrics,
		Users:              usersService,
		Passes:             passesService,
		Catalog:            catalog,
		Coupons:            couponsService,
		Checkout:           checkoutService,
		Refunds:            refundsService,
		Ledger:             ledgerService,
		Favorites:          favoritesService,
		Notifications:      notificationsService,
		Entitlements:       evaluator,
		Watcher:            watcher,
		StripeWebhook:      webhookService,
		StripeSigner:       stripeClient,
		StripeWebhookGuard: webhookGuard,
	}, watcher, nil
}

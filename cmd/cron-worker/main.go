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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vrumi/vrumi-backend/internal/bookings"
	"github.com/vrumi/vrumi-backend/internal/cron"
	"github.com/vrumi/vrumi-backend/internal/ledger"
	"github.com/vrumi/vrumi-backend/internal/notifications"
	"github.com/vrumi/vrumi-backend/internal/refunds"
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

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)

	registry, err := buildRegistry(cfg, logg, dbClient, stripeClient, paymentMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID("cron-0"),
	})

	metricsServer := &http.Server{
		Addr:              cfg.Cron.MetricsAddr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "cron metrics server stopped", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	stripeClient *stripe.Client,
	paymentMetrics *metrics.PaymentMetrics,
) (*cron.Registry, error) {
	outboxRepo := outbox.NewRepository(dbClient.DB())

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()), cfg.Connect.PlatformFee())
	if err != nil {
		return nil, err
	}
	refundsService, err := refunds.NewService(refunds.ServiceParams{
		Bookings:          bookings.NewRepository(dbClient.DB()),
		Intents:           refunds.NewIntentRepository(dbClient.DB()),
		Ledger:            ledgerService,
		Stripe:            refunds.NewStripeClient(stripeClient),
		Outbox:            outbox.NewService(outboxRepo, logg),
		TransactionRunner: dbClient,
		Metrics:           paymentMetrics,
		Logger:            logg,
		StaleAfter:        cfg.Cron.RefundStaleAfter,
		MaxAttempts:       cfg.Cron.RefundMaxAttempts,
		BatchSize:         cfg.Cron.RefundBatchSize,
	})
	if err != nil {
		return nil, err
	}

	refundJob, err := cron.NewRefundReconcileJob(cron.RefundReconcileJobParams{
		Logger:     logg,
		Reconciler: refundsService,
	})
	if err != nil {
		return nil, err
	}
	outboxJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.RetentionDays,
	})
	if err != nil {
		return nil, err
	}
	notificationJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		Repository: notifications.NewRepository(dbClient.DB()),
		Retention:  cfg.Cron.NotificationRetentionDays,
	})
	if err != nil {
		return nil, err
	}
	webhookJob, err := cron.NewWebhookEventRetentionJob(cron.WebhookEventRetentionJobParams{
		Logger:     logg,
		Repository: stripewebhook.NewEventRepository(dbClient.DB()),
		Retention:  cfg.Eventing.WebhookEventRetention,
	})
	if err != nil {
		return nil, err
	}

	dlqJob, err := cron.NewOutboxDLQReplayJob(cron.OutboxDLQReplayJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outbox.NewDLQRepository(dbClient.DB()),
		ReplayAfter: cfg.Outbox.DLQReplayAfter,
	})
	if err != nil {
		return nil, err
	}

	return cron.NewRegistry(refundJob, outboxJob, notificationJob, webhookJob, dlqJob), nil
}

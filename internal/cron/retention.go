package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/vrumi/vrumi-backend/pkg/logger"
)

const (
	defaultRetentionBatch = 500
	maxRetentionBatches   = 40

	retentionCadence = time.Hour

	day                          = 24 * time.Hour
	outboxRetentionDays          = 30
	notificationRetentionDays    = 90
	defaultWebhookEventRetention = 90 * day
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type batchDeleteFunc func(ctx context.Context, cutoff time.Time, limit int) (int64, error)

// retentionJob removes rows older than window in bounded batches. Each
// table's job differs only in its delete query and log event.
type retentionJob struct {
	name     string
	event    string
	logg     *logger.Logger
	window   time.Duration
	batch    int
	deleteFn batchDeleteFunc
	now      func() time.Time
}

func newRetentionJob(name, event string, logg *logger.Logger, window time.Duration, batch int, fn batchDeleteFunc) (Job, error) {
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if batch <= 0 {
		batch = defaultRetentionBatch
	}
	return &retentionJob{
		name:     name,
		event:    event,
		logg:     logg,
		window:   window,
		batch:    batch,
		deleteFn: fn,
		now:      time.Now,
	}, nil
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Every() time.Duration { return retentionCadence }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.window)
	deleted, err := drainBatches(ctx, j.batch, func(ctx context.Context, limit int) (int64, error) {
		return j.deleteFn(ctx, cutoff, limit)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"window_hours": int(j.window / time.Hour),
		"rows_deleted": deleted,
	}), j.event)
	return nil
}

// drainBatches calls deleteBatch until a batch comes back short, the batch
// budget runs out, or the context ends. It returns the total rows removed.
func drainBatches(ctx context.Context, batchSize int, deleteBatch func(ctx context.Context, limit int) (int64, error)) (int64, error) {
	var total int64
	for i := 0; i < maxRetentionBatches; i++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		rows, err := deleteBatch(ctx, batchSize)
		if err != nil {
			return total, err
		}
		total += rows
		if rows < int64(batchSize) {
			break
		}
	}
	return total, nil
}

func daysOr(days, fallback int) time.Duration {
	if days <= 0 {
		days = fallback
	}
	return time.Duration(days) * day
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxRetentionRepo
	Retention  int
	BatchSize  int
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
}

// NewOutboxRetentionJob prunes published outbox rows older than Retention
// days, one transaction per batch. Unpublished rows are never touched.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.DB == nil {
		return nil, errors.New("db runner required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository required")
	}
	deleteFn := func(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
		var rows int64
		err := params.DB.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			rows, err = params.Repository.DeletePublishedBefore(tx, cutoff, limit)
			return err
		})
		return rows, err
	}
	return newRetentionJob("outbox-retention", "outbox.retention_complete", params.Logger,
		daysOr(params.Retention, outboxRetentionDays), params.BatchSize, deleteFn)
}

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	Repository readNotificationsRepo
	Retention  int
}

type readNotificationsRepo interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// NewNotificationCleanupJob deletes notifications read more than Retention
// days ago. Unread notifications stay.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, errors.New("notifications repository required")
	}
	return newRetentionJob("notification-cleanup", "notifications.cleanup_complete", params.Logger,
		daysOr(params.Retention, notificationRetentionDays), 0, params.Repository.DeleteReadBefore)
}

type WebhookEventRetentionJobParams struct {
	Logger     *logger.Logger
	Repository processedEventsRepo
	Retention  time.Duration
}

type processedEventsRepo interface {
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// NewWebhookEventRetentionJob prunes the processed-event dedupe table. The
// window must stay well above Stripe's redelivery horizon.
func NewWebhookEventRetentionJob(params WebhookEventRetentionJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, errors.New("webhook event repository required")
	}
	window := params.Retention
	if window <= 0 {
		window = defaultWebhookEventRetention
	}
	return newRetentionJob("webhook-event-retention", "webhooks.retention_complete", params.Logger,
		window, 0, params.Repository.DeleteProcessedBefore)
}

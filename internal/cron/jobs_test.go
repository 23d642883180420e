package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vrumi/vrumi-backend/internal/refunds"
	"github.com/vrumi/vrumi-backend/pkg/db/models"
)

var jobNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type passthroughTx struct {
	calls int
}

func (p *passthroughTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	p.calls++
	return fn(nil)
}

// batchDeleter hands out rows from a fixed backlog, limit at a time.
type batchDeleter struct {
	backlog int64
	cutoffs []time.Time
	limits  []int
	err     error
}

func (b *batchDeleter) take(cutoff time.Time, limit int) (int64, error) {
	b.cutoffs = append(b.cutoffs, cutoff)
	b.limits = append(b.limits, limit)
	if b.err != nil {
		return 0, b.err
	}
	rows := int64(limit)
	if b.backlog < rows {
		rows = b.backlog
	}
	b.backlog -= rows
	return rows, nil
}

func (b *batchDeleter) DeletePublishedBefore(_ *gorm.DB, cutoff time.Time, limit int) (int64, error) {
	return b.take(cutoff, limit)
}

func (b *batchDeleter) DeleteReadBefore(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	return b.take(cutoff, limit)
}

func (b *batchDeleter) DeleteProcessedBefore(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	return b.take(cutoff, limit)
}

func TestOutboxRetentionJobDrainsInBatches(t *testing.T) {
	repo := &batchDeleter{backlog: 25}
	tx := &passthroughTx{}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     testLogger(),
		DB:         tx,
		Repository: repo,
		BatchSize:  10,
	})
	require.NoError(t, err)
	job.(*retentionJob).now = func() time.Time { return jobNow }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []int{10, 10, 10}, repo.limits)
	assert.Equal(t, 3, tx.calls)
	assert.Zero(t, repo.backlog)
	assert.True(t, repo.cutoffs[0].Equal(jobNow.Add(-outboxRetentionDays*24*time.Hour)))
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     testLogger(),
		DB:         &passthroughTx{},
		Repository: &batchDeleter{err: errors.New("boom")},
	})
	require.NoError(t, err)
	require.Error(t, job.Run(context.Background()))
}

func TestNotificationCleanupJobUsesRetentionDays(t *testing.T) {
	repo := &batchDeleter{backlog: 3}
	job, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     testLogger(),
		Repository: repo,
		Retention:  7,
	})
	require.NoError(t, err)
	job.(*retentionJob).now = func() time.Time { return jobNow }

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, repo.cutoffs, 1)
	assert.True(t, repo.cutoffs[0].Equal(jobNow.Add(-7*24*time.Hour)))
}

func TestWebhookEventRetentionJobDefaultsWindow(t *testing.T) {
	repo := &batchDeleter{}
	job, err := NewWebhookEventRetentionJob(WebhookEventRetentionJobParams{
		Logger:     testLogger(),
		Repository: repo,
	})
	require.NoError(t, err)
	job.(*retentionJob).now = func() time.Time { return jobNow }

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, repo.cutoffs, 1)
	assert.True(t, repo.cutoffs[0].Equal(jobNow.Add(-defaultWebhookEventRetention)))
}

type stubReconciler struct {
	report refunds.ReconcileReport
	err    error
	calls  int
}

func (s *stubReconciler) Reconcile(context.Context) (refunds.ReconcileReport, error) {
	s.calls++
	return s.report, s.err
}

func TestRefundReconcileJob(t *testing.T) {
	reconciler := &stubReconciler{report: refunds.ReconcileReport{Finalized: 2, Abandoned: 1}}
	job, err := NewRefundReconcileJob(RefundReconcileJobParams{Logger: testLogger(), Reconciler: reconciler})
	require.NoError(t, err)
	assert.Equal(t, "refund-reconcile", job.Name())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, reconciler.calls)

	reconciler.err = errors.New("stripe down")
	require.Error(t, job.Run(context.Background()))
}

func TestDrainBatchesStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := drainBatches(ctx, 10, func(context.Context, int) (int64, error) {
		calls++
		return 10, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

type fakeDLQReplayRepo struct {
	entries  []models.OutboxDLQ
	missing  map[uuid.UUID]bool
	cutoff   time.Time
	replayed []uuid.UUID
}

func (f *fakeDLQReplayRepo) ListReplayableTx(_ *gorm.DB, cutoff time.Time, limit int) ([]models.OutboxDLQ, error) {
	f.cutoff = cutoff
	if len(f.entries) > limit {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

func (f *fakeDLQReplayRepo) ReplayTx(_ *gorm.DB, entry models.OutboxDLQ) (bool, error) {
	f.replayed = append(f.replayed, entry.EventID)
	return !f.missing[entry.EventID], nil
}

func TestOutboxDLQReplayJob(t *testing.T) {
	gone := uuid.New()
	repo := &fakeDLQReplayRepo{
		entries: []models.OutboxDLQ{{EventID: uuid.New()}, {EventID: gone}, {EventID: uuid.New()}},
		missing: map[uuid.UUID]bool{gone: true},
	}
	tx := &passthroughTx{}
	job, err := NewOutboxDLQReplayJob(OutboxDLQReplayJobParams{
		Logger:     testLogger(),
		DB:         tx,
		Repository: repo,
		BatchSize:  2,
	})
	require.NoError(t, err)
	assert.Equal(t, "outbox-dlq-replay", job.Name())
	job.(*outboxDLQReplayJob).now = func() time.Time { return jobNow }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, tx.calls)
	assert.Len(t, repo.replayed, 2)
	assert.True(t, repo.cutoff.Equal(jobNow.Add(-defaultDLQReplayAfter)))
}

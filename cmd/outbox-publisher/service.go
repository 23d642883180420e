package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vrumi/vrumi-backend/pkg/config"
	"github.com/vrumi/vrumi-backend/pkg/db/models"
	"github.com/vrumi/vrumi-backend/pkg/enums"
	"github.com/vrumi/vrumi-backend/pkg/logger"
	"github.com/vrumi/vrumi-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultMaxAttempts    = 10
	defaultPublishTimeout = 15 * time.Second
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type txRunner interface {
	Ping(ctx context.Context) error
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetters interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type RelayParams struct {
	Config   config.OutboxConfig
	Logger   *logger.Logger
	DB       txRunner
	Broker   interface{ Ping(ctx context.Context) error }
	Events   eventStore
	DLQ      deadLetters
	Registry eventResolver
	Topics   topicPublisher
}

// Relay moves committed outbox rows onto Pub/Sub. Rows are claimed with
// FOR UPDATE SKIP LOCKED so several relays can run side by side.
type Relay struct {
	logg        *logger.Logger
	db          txRunner
	broker      interface{ Ping(ctx context.Context) error }
	events      eventStore
	dlq         deadLetters
	registry    eventResolver
	topics      topicPublisher
	batchSize   int
	maxAttempts int
	interval    time.Duration
	jitter      func(time.Duration) time.Duration
}

func NewRelay(params RelayParams) (*Relay, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Events == nil:
		return nil, errors.New("outbox repository is required")
	case params.DLQ == nil:
		return nil, errors.New("dlq repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.Topics == nil:
		return nil, errors.New("topic publisher is required")
	}

	relay := &Relay{
		logg:        params.Logger,
		db:          params.DB,
		broker:      params.Broker,
		events:      params.Events,
		dlq:         params.DLQ,
		registry:    params.Registry,
		topics:      params.Topics,
		batchSize:   params.Config.BatchSize,
		maxAttempts: params.Config.MaxAttempts,
		interval:    time.Duration(params.Config.PollIntervalMS) * time.Millisecond,
		jitter:      withJitter,
	}
	if relay.batchSize <= 0 {
		relay.batchSize = defaultBatchSize
	}
	if relay.maxAttempts <= 0 {
		relay.maxAttempts = defaultMaxAttempts
	}
	if relay.interval <= 0 {
		relay.interval = defaultPollInterval
	}
	return relay, nil
}

// Run polls until ctx ends. A batch that settled rows is followed at once by
// the next poll. Empty polls sleep one interval. Failed polls and batches
// where every publish failed back off exponentially up to maxBackoff.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if r.broker != nil {
		if err := r.broker.Ping(ctx); err != nil {
			return fmt.Errorf("pubsub ping failed: %w", err)
		}
	}

	wait := r.interval
	for {
		if err := ctx.Err(); err != nil {
			r.logg.Info(ctx, "outbox.relay_stopped")
			return err
		}

		batch, err := r.drain(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox.batch_failed", err)
			wait = nextBackoff(wait, r.interval, maxBackoff)
		case batch.claimed > 0 && batch.settled == 0:
			r.logg.Warn(r.logg.WithField(ctx, "claimed", batch.claimed), "outbox.batch_stalled")
			wait = nextBackoff(wait, r.interval, maxBackoff)
		case batch.claimed > 0:
			wait = r.interval
			continue
		default:
			wait = r.interval
		}

		if err := sleep(ctx, r.jitter(wait)); err != nil {
			return err
		}
	}
}

// batchResult counts the rows a drain claimed and how many of them left the
// queue, either published or dead-lettered.
type batchResult struct {
	claimed int
	settled int
}

// drain claims and dispatches one batch inside a single transaction.
func (r *Relay) drain(ctx context.Context) (batchResult, error) {
	var batch batchResult
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.events.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		batch = batchResult{claimed: len(rows)}
		for _, row := range rows {
			settled, err := r.dispatch(ctx, tx, row)
			if err != nil {
				return err
			}
			if settled {
				batch.settled++
			}
		}
		return nil
	})
	return batch, err
}

// dispatch publishes one row and records the outcome. It reports whether the
// row left the queue. Only bookkeeping failures are returned; publish failures
// are recorded on the row.
func (r *Relay) dispatch(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) (bool, error) {
	fields := map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID.String(),
		"attempt_count":  row.AttemptCount,
	}

	resolved, err := r.registry.Resolve(row)
	if err != nil {
		return true, r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonUnresolvable, err, fields)
	}
	fields["event_id"] = resolved.Envelope.EventID
	fields["topic"] = resolved.Descriptor.Topic

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	serverID, err := r.topics.Publish(publishCtx, resolved.Descriptor.Topic, &gcppubsub.Message{
		Data:       row.Payload,
		Attributes: row.Attributes(resolved.Envelope.EventID),
	})
	cancel()

	if err == nil {
		if markErr := r.events.MarkPublishedTx(tx, row.ID); markErr != nil {
			return false, fmt.Errorf("mark published %s: %w", row.ID, markErr)
		}
		fields["message_id"] = serverID
		r.logg.Info(r.logg.WithFields(ctx, fields), "outbox.event_published")
		return true, nil
	}

	var nonRetryable registry.NonRetryableError
	var missing errTopicMissing
	switch {
	case errors.As(err, &missing):
		return true, r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonTopicMissing, err, fields)
	case errors.As(err, &nonRetryable):
		return true, r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonPublishRejected, err, fields)
	}
	if row.AttemptCount+1 >= r.maxAttempts {
		return true, r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonMaxAttempts, fmt.Errorf("max publish attempts reached: %w", err), fields)
	}

	fields["error"] = err.Error()
	r.logg.Warn(r.logg.WithFields(ctx, fields), "outbox.publish_retry")
	if markErr := r.events.MarkFailedTx(tx, row.ID, err); markErr != nil {
		return false, fmt.Errorf("mark failure %s: %w", row.ID, markErr)
	}
	return false, nil
}

func (r *Relay) deadLetter(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, fields map[string]any) error {
	fields["error_reason"] = reason
	fields["error"] = cause.Error()
	r.logg.Warn(r.logg.WithFields(ctx, fields), "outbox.event_dead_lettered")

	message := cause.Error()
	if err := r.dlq.InsertTx(tx, models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &message,
		AttemptCount:  row.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("insert dlq %s: %w", row.ID, err)
	}
	if err := r.events.MarkTerminalTx(tx, row.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	if next := current * 2; next < max {
		return next
	}
	return max
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(rand.Int63n(int64(jitterWindow)))
}

package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/vrumi/vrumi-backend/pkg/db/models"
	"github.com/vrumi/vrumi-backend/pkg/logger"
)

const (
	defaultDLQReplayAfter = time.Hour
	defaultDLQReplayBatch = 50
)

type dlqReplayRepo interface {
	ListReplayableTx(tx *gorm.DB, cutoff time.Time, limit int) ([]models.OutboxDLQ, error)
	ReplayTx(tx *gorm.DB, entry models.OutboxDLQ) (bool, error)
}

type OutboxDLQReplayJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Repository  dlqReplayRepo
	ReplayAfter time.Duration
	BatchSize   int
}

// NewOutboxDLQReplayJob requeues dead-lettered events whose failure was
// environmental (exhausted retries, missing topic) once they have sat in the
// DLQ for ReplayAfter. Unresolvable payloads stay parked.
func NewOutboxDLQReplayJob(params OutboxDLQReplayJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("dlq repository required")
	}
	after := params.ReplayAfter
	if after <= 0 {
		after = defaultDLQReplayAfter
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultDLQReplayBatch
	}
	return &outboxDLQReplayJob{
		logg:  params.Logger,
		db:    params.DB,
		repo:  params.Repository,
		after: after,
		batch: batch,
		now:   time.Now,
	}, nil
}

type outboxDLQReplayJob struct {
	logg  *logger.Logger
	db    txRunner
	repo  dlqReplayRepo
	after time.Duration
	batch int
	now   func() time.Time
}

func (j *outboxDLQReplayJob) Name() string { return "outbox-dlq-replay" }

func (j *outboxDLQReplayJob) Every() time.Duration { return j.after / 4 }

func (j *outboxDLQReplayJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.after)
	var requeued, dropped int
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		requeued, dropped = 0, 0
		entries, err := j.repo.ListReplayableTx(tx, cutoff, j.batch)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			ok, err := j.repo.ReplayTx(tx, entry)
			if err != nil {
				return fmt.Errorf("replay %s: %w", entry.EventID, err)
			}
			if ok {
				requeued++
			} else {
				dropped++
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("outbox dlq replay: %w", err)
	}
	if requeued+dropped == 0 {
		return nil
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":   cutoff,
		"requeued": requeued,
		"dropped":  dropped,
	}), "outbox.dlq_replayed")
	return nil
}

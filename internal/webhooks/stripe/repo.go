package stripewebhook

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vrumi/vrumi-backend/pkg/db/models"
)

// EventRepository records processed Stripe event ids.
type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) WithTx(tx *gorm.DB) *EventRepository {
	if tx == nil {
		return r
	}
	return &EventRepository{db: tx}
}

// MarkProcessed inserts the event id. It reports false when the id was
// already recorded.
func (r *EventRepository) MarkProcessed(ctx context.Context, eventID, eventType string, now time.Time) (bool, error) {
	row := models.ProcessedWebhookEvent{
		EventID:     eventID,
		EventType:   eventType,
		ProcessedAt: now.UTC(),
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeleteProcessedBefore prunes up to limit rows older than cutoff.
func (r *EventRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = 500
	}
	sub := r.db.Session(&gorm.Session{NewDB: true}).Model(&models.ProcessedWebhookEvent{}).
		Select("event_id").
		Where("processed_at < ?", cutoff.UTC()).
		Order("processed_at ASC").
		Limit(limit)
	res := r.db.WithContext(ctx).
		Where("event_id IN (?)", sub).
		Delete(&models.ProcessedWebhookEvent{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

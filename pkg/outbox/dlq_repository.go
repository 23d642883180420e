package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vrumi/vrumi-backend/pkg/db/models"
	"github.com/vrumi/vrumi-backend/pkg/enums"
)

const maxDLQErrorLen = 1024

var replayableReasons = []enums.OutboxDLQErrorReason{
	enums.OutboxDLQReasonMaxAttempts,
	enums.OutboxDLQReasonTopicMissing,
}

type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if !entry.ErrorReason.IsValid() {
		return fmt.Errorf("invalid dlq reason %q", entry.ErrorReason)
	}
	if entry.ErrorMessage != nil {
		msg := truncateDLQError(*entry.ErrorMessage)
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

// FindByEventID returns nil when the event was never dead-lettered.
func (r *DLQRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	var dlq models.OutboxDLQ
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&dlq).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &dlq, nil
}

// ListReplayableTx locks dead-lettered rows that failed before cutoff for a
// reason a plain retry can fix. Oldest failures come first.
func (r *DLQRepository) ListReplayableTx(tx *gorm.DB, cutoff time.Time, limit int) ([]models.OutboxDLQ, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if limit <= 0 {
		limit = 50
	}
	var rows []models.OutboxDLQ
	err := lockSkipLocked(tx).
		Where("error_reason IN ?", replayableReasons).
		Where("failed_at < ?", cutoff).
		Order("failed_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ReplayTx hands a dead-lettered event back to the relay: its outbox row is
// reset to a fresh pending state and the DLQ entry is removed. Rows that were
// published or pruned in the meantime only lose their DLQ entry.
func (r *DLQRepository) ReplayTx(tx *gorm.DB, entry models.OutboxDLQ) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	if !entry.Replayable() {
		return false, fmt.Errorf("dlq entry %s (%s) is not replayable", entry.ID, entry.ErrorReason)
	}
	res := tx.Model(&models.OutboxEvent{}).
		Where("id = ? AND published_at IS NULL", entry.EventID).
		Updates(map[string]any{
			"attempt_count": 0,
			"last_error":    nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if err := tx.Delete(&models.OutboxDLQ{}, "id = ?", entry.ID).Error; err != nil {
		return false, err
	}
	return res.RowsAffected > 0, nil
}

func truncateDLQError(message string) string {
	if len(message) <= maxDLQErrorLen {
		return message
	}
	cut := maxDLQErrorLen
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut]
}

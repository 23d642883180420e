package refunds

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vrumi/vrumi-backend/pkg/db/models"
	"github.com/vrumi/vrumi-backend/pkg/enums"
)

const maxErrorLength = 1000

// IntentRepository persists refund intents.
type IntentRepository struct {
	db *gorm.DB
}

func NewIntentRepository(db *gorm.DB) *IntentRepository {
	return &IntentRepository{db: db}
}

func (r *IntentRepository) WithTx(tx *gorm.DB) *IntentRepository {
	if tx == nil {
		return r
	}
	return &IntentRepository{db: tx}
}

func (r *IntentRepository) Create(ctx context.Context, intent *models.RefundIntent) error {
	return r.db.WithContext(ctx).Create(intent).Error
}

func (r *IntentRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.RefundIntent, error) {
	var intent models.RefundIntent
	if err := r.db.WithContext(ctx).First(&intent, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

// FindOpenForBooking returns the newest intent still pending or awaiting the
// local write, or nil when none exists.
func (r *IntentRepository) FindOpenForBooking(ctx context.Context, bookingID uuid.UUID) (*models.RefundIntent, error) {
	var intent models.RefundIntent
	err := r.db.WithContext(ctx).
		Where("booking_id = ? AND status IN ?", bookingID, []enums.RefundIntentStatus{
			enums.RefundIntentPending,
			enums.RefundIntentProcessorSucceeded,
		}).
		Order("created_at DESC").
		First(&intent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

// ListByStatus returns intents in status last touched before cutoff.
func (r *IntentRepository) ListByStatus(ctx context.Context, status enums.RefundIntentStatus, cutoff time.Time, limit int) ([]models.RefundIntent, error) {
	var rows []models.RefundIntent
	if err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at <= ?", status, cutoff.UTC()).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// RecordAttempt bumps the processor attempt counter.
func (r *IntentRepository) RecordAttempt(ctx context.Context, id uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.RefundIntent{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"updated_at":    now.UTC(),
		}).Error
}

func (r *IntentRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string, now time.Time) error {
	if len(message) > maxErrorLength {
		message = message[:maxErrorLength]
	}
	return r.db.WithContext(ctx).
		Model(&models.RefundIntent{}).
		Where("id = ? AND status = ?", id, enums.RefundIntentPending).
		UpdateColumns(map[string]any{
			"status":     enums.RefundIntentFailed,
			"last_error": message,
			"updated_at": now.UTC(),
		}).Error
}

func (r *IntentRepository) MarkProcessorSucceeded(ctx context.Context, id uuid.UUID, refundID, refundStatus string, amountCents int64, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.RefundIntent{}).
		Where("id = ? AND status = ?", id, enums.RefundIntentPending).
		UpdateColumns(map[string]any{
			"status":           enums.RefundIntentProcessorSucceeded,
			"stripe_refund_id": refundID,
			"refund_status":    refundStatus,
			"amount_cents":     amountCents,
			"last_error":       nil,
			"updated_at":       now.UTC(),
		}).Error
}

// MarkResolved closes an intent whose local write committed. It reports false
// when another worker resolved it first.
func (r *IntentRepository) MarkResolved(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.RefundIntent{}).
		Where("id = ? AND status = ?", id, enums.RefundIntentProcessorSucceeded).
		UpdateColumns(map[string]any{
			"status":      enums.RefundIntentResolved,
			"resolved_at": now.UTC(),
			"updated_at":  now.UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

package bookings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vrumi/vrumi-backend/pkg/db/models"
	"github.com/vrumi/vrumi-backend/pkg/enums"
)

// Repository persists instructor bookings.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.WithContext(ctx).First(&booking, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

// FindByIDForUpdate locks the booking row for the rest of the transaction.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&booking, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

// MarkRefunded cancels a completed booking. It reports false when the booking
// was not in the completed payment state.
func (r *Repository) MarkRefunded(ctx context.Context, id uuid.UUID, reason string, now time.Time) (bool, error) {
	updates := map[string]any{
		"payment_status": enums.PaymentStatusRefunded,
		"status":         enums.BookingStatusCancelled,
		"cancelled_at":   now.UTC(),
		"updated_at":     now.UTC(),
	}
	if reason != "" {
		updates["cancellation_reason"] = reason
	}
	res := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ? AND payment_status = ?", id, enums.PaymentStatusCompleted).
		UpdateColumns(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

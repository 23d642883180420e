package passes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vrumi/vrumi-backend/pkg/db/models"
	"github.com/vrumi/vrumi-backend/pkg/enums"
)

// Repository persists user passes.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the passes repository to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, pass *models.UserPass) error {
	return r.db.WithContext(ctx).Create(pass).Error
}

// ActiveForUser returns the completed pass with the latest expiry that is
// still valid at now, or nil when the user holds none.
func (r *Repository) ActiveForUser(ctx context.Context, userID uuid.UUID, now time.Time) (*models.UserPass, error) {
	var rows []models.UserPass
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND payment_status = ? AND expires_at > ?", userID, enums.PaymentStatusCompleted, now.UTC()).
		Order("expires_at DESC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// ListByUser returns every pass held by userID, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.UserPass, error) {
	var rows []models.UserPass
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("purchased_at DESC, id DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByID returns gorm.ErrRecordNotFound when no pass has id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.UserPass, error) {
	var pass models.UserPass
	if err := r.db.WithContext(ctx).First(&pass, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &pass, nil
}

// Delete removes a pass. It reports false when no row matched.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.UserPass{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ExistsForSession reports whether a checkout session already produced passes.
func (r *Repository) ExistsForSession(ctx context.Context, sessionID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.UserPass{}).
		Where("stripe_session_id = ?", sessionID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

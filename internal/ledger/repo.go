package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vrumi/vrumi-backend/pkg/db/models"
)

// Repository manages persistence for instructor ledger rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.InstructorTransaction) error
	ListByInstructor(ctx context.Context, instructorID uuid.UUID, limit int) ([]models.InstructorTransaction, error)
	Balance(ctx context.Context, instructorID uuid.UUID) (decimal.Decimal, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.InstructorTransaction) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListByInstructor(ctx context.Context, instructorID uuid.UUID, limit int) ([]models.InstructorTransaction, error) {
	var rows []models.InstructorTransaction
	if err := r.db.WithContext(ctx).
		Where("instructor_id = ?", instructorID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Balance(ctx context.Context, instructorID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	if err := r.db.WithContext(ctx).
		Model(&models.InstructorTransaction{}).
		Select("SUM(amount)").
		Where("instructor_id = ?", instructorID).
		Row().
		Scan(&total); err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal.Round(2), nil
}

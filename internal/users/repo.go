package users

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vrumi/vrumi-backend/pkg/db/models"
	"github.com/vrumi/vrumi-backend/pkg/enums"
)

// Repository exposes account directory persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
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

// NormalizeEmail trims and lowercases an address for directory lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts a new profile and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateProfileDTO) (*models.Profile, error) {
	profile := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		return nil, err
	}
	return profile, nil
}

// FindByEmail looks up a profile by email, ignoring case and surrounding whitespace.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var profile models.Profile
	if err := r.db.WithContext(ctx).
		Where("lower(trim(email)) = ?", normalized).
		First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// FindByID returns the profile with the provided ID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).First(&profile, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// Roles lists the roles granted to userID.
func (r *Repository) Roles(ctx context.Context, userID uuid.UUID) ([]enums.UserRole, error) {
	var rows []models.UserRole
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("role ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	roles := make([]enums.UserRole, 0, len(rows))
	for _, row := range rows {
		roles = append(roles, row.Role)
	}
	return roles, nil
}

// HasRole reports whether userID holds role.
func (r *Repository) HasRole(ctx context.Context, userID uuid.UUID, role enums.UserRole) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.UserRole{}).
		Where("user_id = ? AND role = ?", userID, role).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GrantRole assigns role to userID. Granting an already held role is a no-op.
func (r *Repository) GrantRole(ctx context.Context, userID uuid.UUID, role enums.UserRole) error {
	if !role.IsValid() {
		return errors.New("invalid role")
	}
	row := models.UserRole{UserID: userID, Role: role}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}

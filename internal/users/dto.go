package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/vrumi/vrumi-backend/pkg/db/models"
	"github.com/vrumi/vrumi-backend/pkg/enums"
)

// ProfileDTO is the transport shape for an account directory entry.
type ProfileDTO struct {
	ID        uuid.UUID        `json:"id"`
	Email     string           `json:"email"`
	FullName  string           `json:"full_name"`
	Roles     []enums.UserRole `json:"roles"`
	CreatedAt time.Time        `json:"created_at"`
}

// CreateProfileDTO holds the data required to mirror a provider account.
type CreateProfileDTO struct {
	ID       uuid.UUID
	Email    string
	FullName string
}

// ToModel converts the DTO into a persistence model with a normalized email.
func (dto CreateProfileDTO) ToModel() *models.Profile {
	return &models.Profile{
		ID:       dto.ID,
		Email:    NormalizeEmail(dto.Email),
		FullName: dto.FullName,
	}
}

// FromModel maps a profile and its roles to the transport shape.
func FromModel(p *models.Profile, roles []enums.UserRole) *ProfileDTO {
	if p == nil {
		return nil
	}
	if roles == nil {
		roles = []enums.UserRole{}
	}
	return &ProfileDTO{
		ID:        p.ID,
		Email:     p.Email,
		FullName:  p.FullName,
		Roles:     roles,
		CreatedAt: p.CreatedAt,
	}
}

package users

import (
	"context"

	"github.com/google/uuid"

	"github.com/vrumi/vrumi-backend/pkg/db"
	"github.com/vrumi/vrumi-backend/pkg/enums"
	pkgerrors "github.com/vrumi/vrumi-backend/pkg/errors"
)

// Service answers directory and role questions for the API layer.
type Service interface {
	Profile(ctx context.Context, userID uuid.UUID) (*ProfileDTO, error)
	IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
	GrantRole(ctx context.Context, userID uuid.UUID, role string) (*ProfileDTO, error)
}

type service struct {
	repo *Repository
}

// NewService wires the directory service.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Profile(ctx context.Context, userID uuid.UUID) (*ProfileDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	profile, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	roles, err := s.repo.Roles(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user roles")
	}
	return FromModel(profile, roles), nil
}

func (s *service) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	ok, err := s.repo.HasRole(ctx, userID, enums.UserRoleAdmin)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check admin role")
	}
	return ok, nil
}

func (s *service) GrantRole(ctx context.Context, userID uuid.UUID, role string) (*ProfileDTO, error) {
	parsed, err := enums.ParseUserRole(role)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role")
	}
	if _, err := s.Profile(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.repo.GrantRole(ctx, userID, parsed); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "grant role")
	}
	return s.Profile(ctx, userID)
}

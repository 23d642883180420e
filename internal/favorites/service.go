package favorites

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/vrumi/vrumi-backend/pkg/enums"
	pkgerrors "github.com/vrumi/vrumi-backend/pkg/errors"
)

const maxItemIDLength = 64

// Service exposes favorite management for study content.
type Service interface {
	List(ctx context.Context, userID uuid.UUID, kind string) ([]string, error)
	Add(ctx context.Context, userID uuid.UUID, kind, itemID string) error
	Remove(ctx context.Context, userID uuid.UUID, kind, itemID string) error
}

type service struct {
	store Store
}

func NewService(store Store) (Service, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "favorites store required")
	}
	return &service{store: store}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, kind string) ([]string, error) {
	parsed, err := validate(userID, kind)
	if err != nil {
		return nil, err
	}
	items, err := s.store.Get(ctx, userID.String(), parsed.String())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load favorites")
	}
	if items == nil {
		items = []string{}
	}
	return items, nil
}

func (s *service) Add(ctx context.Context, userID uuid.UUID, kind, itemID string) error {
	parsed, item, err := validateItem(userID, kind, itemID)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, userID.String(), parsed.String(), item); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save favorite")
	}
	return nil
}

func (s *service) Remove(ctx context.Context, userID uuid.UUID, kind, itemID string) error {
	parsed, item, err := validateItem(userID, kind, itemID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, userID.String(), parsed.String(), item); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove favorite")
	}
	return nil
}

func validate(userID uuid.UUID, kind string) (enums.FavoriteKind, error) {
	if userID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	parsed, err := enums.ParseFavoriteKind(strings.ToLower(strings.TrimSpace(kind)))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "kind must be signs or questions")
	}
	return parsed, nil
}

func validateItem(userID uuid.UUID, kind, itemID string) (enums.FavoriteKind, string, error) {
	parsed, err := validate(userID, kind)
	if err != nil {
		return "", "", err
	}
	item := strings.TrimSpace(itemID)
	if item == "" || len(item) > maxItemIDLength {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "invalid item id")
	}
	return parsed, item, nil
}

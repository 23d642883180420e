package notifications

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/vrumi/vrumi-backend/pkg/db/models"
	pkgerrors "github.com/vrumi/vrumi-backend/pkg/errors"
	"github.com/vrumi/vrumi-backend/pkg/pagination"
)

const (
	maxTitleLength  = 120
	maxBodyLength   = 2000
	maxDirectTarget = 500
	recipientPage   = 1000
)

// Service defines notification list/read operations plus the admin send path.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Send(ctx context.Context, input SendInput) (int, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// ListParams configures pagination for notifications.
type ListParams struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []NotificationDTO `json:"items"`
	Cursor string            `json:"cursor"`
}

// SendInput addresses a notification to explicit users or to everyone.
type SendInput struct {
	UserIDs   []uuid.UUID
	Broadcast bool
	Title     string
	Body      string
	Link      string
}

// NewService wires notifications dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	query := listNotificationsParams{
		UserID:     params.UserID,
		Limit:      params.Limit,
		UnreadOnly: params.UnreadOnly,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{
		Items:  toDTOs(rows),
		Cursor: cursor,
	}, nil
}

func (s *service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, userID, notificationID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	count, err := s.repo.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}

// Send stores one notification per recipient and returns how many were
// written. Broadcasts page through every account.
func (s *service) Send(ctx context.Context, input SendInput) (int, error) {
	title := strings.TrimSpace(input.Title)
	body := strings.TrimSpace(input.Body)
	switch {
	case title == "" || body == "":
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "title and body are required")
	case utf8.RuneCountInString(title) > maxTitleLength:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "title is too long")
	case utf8.RuneCountInString(body) > maxBodyLength:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "body is too long")
	case input.Broadcast && len(input.UserIDs) > 0:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "choose either user_ids or broadcast")
	case !input.Broadcast && len(input.UserIDs) == 0:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user_ids or broadcast is required")
	case len(input.UserIDs) > maxDirectTarget:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "too many recipients, use broadcast")
	}

	var link *string
	if trimmed := strings.TrimSpace(input.Link); trimmed != "" {
		link = &trimmed
	}
	build := func(ids []uuid.UUID) []models.Notification {
		rows := make([]models.Notification, 0, len(ids))
		for _, id := range ids {
			rows = append(rows, models.Notification{UserID: id, Title: title, Body: body, Link: link})
		}
		return rows
	}

	if !input.Broadcast {
		ids := dedupe(input.UserIDs)
		if len(ids) == 0 {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "user_ids must contain valid ids")
		}
		if err := s.repo.CreateBatch(ctx, build(ids)); err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notifications")
		}
		return len(ids), nil
	}

	sent := 0
	after := uuid.Nil
	for {
		ids, err := s.repo.RecipientIDs(ctx, after, recipientPage)
		if err != nil {
			return sent, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list recipients")
		}
		if len(ids) == 0 {
			return sent, nil
		}
		if err := s.repo.CreateBatch(ctx, build(ids)); err != nil {
			return sent, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notifications")
		}
		sent += len(ids)
		if len(ids) < recipientPage {
			return sent, nil
		}
		after = ids[len(ids)-1]
	}
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrumi/vrumi-backend/pkg/db/dbtest"
	"github.com/vrumi/vrumi-backend/pkg/db/models"
)

func TestRepositoryListPagesAndMarksRead(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	userID := uuid.New()
	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &models.Notification{
			UserID:    userID,
			Title:     "t",
			Body:      "b",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Create(ctx, &models.Notification{UserID: uuid.New(), Title: "other", Body: "b"}))

	page, next, err := repo.List(ctx, listNotificationsParams{UserID: userID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, next)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))

	rest, next, err := repo.List(ctx, listNotificationsParams{UserID: userID, Limit: 2, Cursor: next})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Nil(t, next)
	assert.True(t, rest[0].CreatedAt.Equal(base))

	mark, err := repo.MarkRead(ctx, userID, rest[0].ID, base.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, mark.Found && mark.Updated)

	mark, err = repo.MarkRead(ctx, uuid.New(), rest[0].ID, base.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, mark.Found)

	count, err := repo.MarkAllRead(ctx, userID, base.Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestRepositoryRecipientIDs(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	for _, email := range []string{"a@vrumi.test", "b@vrumi.test", "c@vrumi.test"} {
		require.NoError(t, conn.Create(&models.Profile{Email: email}).Error)
	}

	first, err := repo.RecipientIDs(ctx, uuid.Nil, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)

	rest, err := repo.RecipientIDs(ctx, first[1], 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.NotContains(t, first, rest[0])
}

func TestRepositoryDeleteReadBeforeKeepsUnread(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	userID := uuid.New()
	readAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	old := models.Notification{UserID: userID, Title: "old", Body: "b", ReadAt: &readAt}
	unread := models.Notification{UserID: userID, Title: "unread", Body: "b"}
	require.NoError(t, repo.Create(ctx, &old))
	require.NoError(t, repo.Create(ctx, &unread))

	deleted, err := repo.DeleteReadBefore(ctx, readAt.Add(24*time.Hour), 100)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	page, _, err := repo.List(ctx, listNotificationsParams{UserID: userID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, unread.ID, page[0].ID)
}

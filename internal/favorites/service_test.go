package favorites

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/vrumi/vrumi-backend/pkg/errors"
)

func TestServiceRoundTrip(t *testing.T) {
	svc, err := NewService(NewMemoryStore())
	require.NoError(t, err)
	ctx := context.Background()
	user := uuid.New()

	require.NoError(t, svc.Add(ctx, user, "signs", "R-1"))
	require.NoError(t, svc.Add(ctx, user, "SIGNS", "A-12"))
	require.NoError(t, svc.Add(ctx, user, "signs", "R-1"))
	require.NoError(t, svc.Add(ctx, user, "questions", "q-7"))

	items, err := svc.List(ctx, user, "signs")
	require.NoError(t, err)
	assert.Equal(t, []string{"A-12", "R-1"}, items)

	require.NoError(t, svc.Remove(ctx, user, "signs", "R-1"))
	items, err = svc.List(ctx, user, "signs")
	require.NoError(t, err)
	assert.Equal(t, []string{"A-12"}, items)

	other, err := svc.List(ctx, uuid.New(), "signs")
	require.NoError(t, err)
	assert.Empty(t, other)
	assert.NotNil(t, other)
}

func TestServiceValidation(t *testing.T) {
	svc, err := NewService(NewMemoryStore())
	require.NoError(t, err)
	ctx := context.Background()

	err = svc.Add(ctx, uuid.New(), "videos", "x")
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	err = svc.Add(ctx, uuid.New(), "signs", strings.Repeat("x", maxItemIDLength+1))
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = svc.List(ctx, uuid.Nil, "signs")
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
}

type failingStore struct{ MemoryStore }

func (f *failingStore) Get(ctx context.Context, userID, kind string) ([]string, error) {
	return nil, errors.New("redis down")
}

func TestServiceStoreFailure(t *testing.T) {
	svc, err := NewService(&failingStore{})
	require.NoError(t, err)
	_, err = svc.List(context.Background(), uuid.New(), "signs")
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())
}

type fakeSetClient struct {
	sets map[string][]string
}

func (f *fakeSetClient) SAdd(ctx context.Context, key string, members ...string) error {
	f.sets[key] = append(f.sets[key], members...)
	return nil
}

func (f *fakeSetClient) SRem(ctx context.Context, key string, members ...string) error {
	kept := f.sets[key][:0]
	for _, existing := range f.sets[key] {
		if existing != members[0] {
			kept = append(kept, existing)
		}
	}
	f.sets[key] = kept
	return nil
}

func (f *fakeSetClient) SMembers(ctx context.Context, key string) ([]string, error) {
	return append([]string(nil), f.sets[key]...), nil
}

func (f *fakeSetClient) FavoritesKey(userID, kind string) string {
	return "favorites:" + userID + ":" + kind
}

func TestRedisStoreUsesUserKindKey(t *testing.T) {
	client := &fakeSetClient{sets: map[string][]string{}}
	store := NewRedisStore(client)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "u1", "signs", "b"))
	require.NoError(t, store.Set(ctx, "u1", "signs", "a"))
	require.NoError(t, store.Delete(ctx, "u1", "signs", "b"))

	assert.Equal(t, []string{"a"}, client.sets["favorites:u1:signs"])
	items, err := store.Get(ctx, "u1", "signs")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, items)
}

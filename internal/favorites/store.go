package favorites

import (
	"context"
	"sort"
	"sync"
)

// Store persists one set of item ids per user and kind.
type Store interface {
	Get(ctx context.Context, userID, kind string) ([]string, error)
	Set(ctx context.Context, userID, kind, itemID string) error
	Delete(ctx context.Context, userID, kind, itemID string) error
}

type setClient interface {
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	FavoritesKey(userID, kind string) string
}

// RedisStore keeps favorites in a Redis set per user and kind.
type RedisStore struct {
	client setClient
}

func NewRedisStore(client setClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, userID, kind string) ([]string, error) {
	members, err := s.client.SMembers(ctx, s.client.FavoritesKey(userID, kind))
	if err != nil {
		return nil, err
	}
	sort.Strings(members)
	return members, nil
}

func (s *RedisStore) Set(ctx context.Context, userID, kind, itemID string) error {
	return s.client.SAdd(ctx, s.client.FavoritesKey(userID, kind), itemID)
}

func (s *RedisStore) Delete(ctx context.Context, userID, kind, itemID string) error {
	return s.client.SRem(ctx, s.client.FavoritesKey(userID, kind), itemID)
}

// MemoryStore is a process-local Store for tests and single-node development.
type MemoryStore struct {
	mu   sync.Mutex
	sets map[string]map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sets: make(map[string]map[string]struct{})}
}

func (m *MemoryStore) Get(ctx context.Context, userID, kind string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sets[userID+":"+kind]))
	for item := range m.sets[userID+":"+kind] {
		out = append(out, item)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) Set(ctx context.Context, userID, kind, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userID + ":" + kind
	if m.sets[key] == nil {
		m.sets[key] = make(map[string]struct{})
	}
	m.sets[key][itemID] = struct{}{}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, userID, kind, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sets[userID+":"+kind], itemID)
	return nil
}

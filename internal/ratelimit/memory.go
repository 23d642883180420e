package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int64
	startAt time.Time
	length  time.Duration
}

// MemoryStore keeps windows in process memory. Counts are per replica and
// lost on restart.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{windows: make(map[string]*window), now: now}
}

func (m *MemoryStore) Check(ctx context.Context, key string, policy Policy) (Result, error) {
	now := m.now()
	id := policy.NormalizedName() + ":" + key

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[id]
	if !ok || !now.Before(w.startAt.Add(w.length)) {
		w = &window{count: 1, startAt: now, length: policy.Window}
		m.windows[id] = w
		return Result{
			Allowed:   true,
			Limit:     policy.MaxRequests,
			Remaining: remaining(policy.MaxRequests, 1),
			ResetAt:   now.Add(policy.Window),
		}, nil
	}

	resetAt := w.startAt.Add(w.length)
	if w.count >= int64(policy.MaxRequests) {
		return Result{Allowed: false, Limit: policy.MaxRequests, Remaining: 0, ResetAt: resetAt}, nil
	}
	w.count++
	return Result{
		Allowed:   true,
		Limit:     policy.MaxRequests,
		Remaining: remaining(policy.MaxRequests, w.count),
		ResetAt:   resetAt,
	}, nil
}

// Sweep drops windows that have elapsed and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, w := range m.windows {
		if !now.Before(w.startAt.Add(w.length)) {
			delete(m.windows, id)
			removed++
		}
	}
	return removed
}

// Len is the number of tracked windows.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

// RunSweeper sweeps every interval until ctx ends.
func (m *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

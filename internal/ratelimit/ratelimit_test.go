package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func TestMemoryStoreFixedWindow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(clock.Now)
	policy := Policy{Name: "checkout", Window: time.Minute, MaxRequests: 2}
	ctx := context.Background()

	first, err := store.Check(ctx, "user-1", policy)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !first.Allowed || first.Remaining != 1 {
		t.Fatalf("unexpected first result %+v", first)
	}
	if !first.ResetAt.Equal(clock.now.Add(time.Minute)) {
		t.Fatalf("unexpected reset %v", first.ResetAt)
	}

	clock.now = clock.now.Add(10 * time.Second)
	second, _ := store.Check(ctx, "user-1", policy)
	if !second.Allowed || second.Remaining != 0 {
		t.Fatalf("unexpected second result %+v", second)
	}

	third, _ := store.Check(ctx, "user-1", policy)
	if third.Allowed {
		t.Fatal("expected third request denied")
	}
	if got := third.RetryAfter(clock.now); got != 50*time.Second {
		t.Fatalf("expected 50s retry-after, got %v", got)
	}

	other, _ := store.Check(ctx, "user-2", policy)
	if !other.Allowed {
		t.Fatal("keys must not share windows")
	}

	clock.now = clock.now.Add(50 * time.Second)
	fresh, _ := store.Check(ctx, "user-1", policy)
	if !fresh.Allowed || fresh.Remaining != 1 {
		t.Fatalf("expected a new window, got %+v", fresh)
	}
}

func TestMemoryStorePoliciesAreIndependent(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()
	refund := Policy{Name: "refund", Window: time.Hour, MaxRequests: 1}
	coupon := Policy{Name: "coupon", Window: time.Hour, MaxRequests: 1}

	if res, _ := store.Check(ctx, "1.2.3.4", refund); !res.Allowed {
		t.Fatal("expected refund allowed")
	}
	if res, _ := store.Check(ctx, "1.2.3.4", coupon); !res.Allowed {
		t.Fatal("expected coupon allowed under its own policy")
	}
	if res, _ := store.Check(ctx, "1.2.3.4", refund); res.Allowed {
		t.Fatal("expected refund denied")
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(clock.Now)
	ctx := context.Background()
	_, _ = store.Check(ctx, "a", Policy{Name: "short", Window: time.Second, MaxRequests: 5})
	_, _ = store.Check(ctx, "b", Policy{Name: "long", Window: time.Hour, MaxRequests: 5})

	clock.now = clock.now.Add(2 * time.Second)
	if removed := store.Sweep(); removed != 1 {
		t.Fatalf("expected 1 window swept, got %d", removed)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 window left, got %d", store.Len())
	}
}

type fakeFixedWindow struct {
	counts map[string]int64
	scopes []string
	err    error
}

func (f *fakeFixedWindow) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, time.Duration, error) {
	if f.err != nil {
		return false, 0, 0, f.err
	}
	f.scopes = append(f.scopes, scope)
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], window, nil
}

func TestRedisStore(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	client := &fakeFixedWindow{counts: map[string]int64{}}
	store := NewRedisStore(client, func() time.Time { return now })
	policy := Policy{Name: "Coupon", Window: time.Minute, MaxRequests: 1}

	res, err := store.Check(context.Background(), "user-1", policy)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !res.Allowed || res.Remaining != 0 || !res.ResetAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("unexpected result %+v", res)
	}
	if client.scopes[0] != "coupon:user-1" {
		t.Fatalf("unexpected scope %q", client.scopes[0])
	}

	res, _ = store.Check(context.Background(), "user-1", policy)
	if res.Allowed || res.Remaining != 0 {
		t.Fatalf("expected denial, got %+v", res)
	}

	client.err = errors.New("redis down")
	if _, err := store.Check(context.Background(), "user-1", policy); err == nil {
		t.Fatal("expected redis error to surface")
	}
}

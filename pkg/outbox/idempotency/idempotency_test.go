package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeStore struct {
	setNXResult bool
	setNXError  error
	lastKey     string
	lastTTL     time.Duration
	lastDeleted string
}

func (f *fakeStore) Get(context.Context, string) (string, error) {
	return "", nil
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.lastKey = key
	f.lastTTL = ttl
	return f.setNXResult, f.setNXError
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "vrumi:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	if len(keys) > 0 {
		f.lastDeleted = keys[0]
	}
	return nil
}

func TestCheckAndMarkProcessed_FirstTime(t *testing.T) {
	store := &fakeStore{setNXResult: true}
	manager, err := NewManager(store, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	eventID := uuid.NewString()
	already, err := manager.CheckAndMarkProcessed(context.Background(), "notifications-worker", eventID)
	if err != nil {
		t.Fatalf("CheckAndMarkProcessed: %v", err)
	}
	if already {
		t.Fatalf("expected first call to return false, got true")
	}

	expectedKey := "vrumi:idempotency:evt:processed:notifications-worker:" + eventID
	if store.lastKey != expectedKey {
		t.Fatalf("unexpected key: %q", store.lastKey)
	}
	if store.lastTTL != 24*time.Hour {
		t.Fatalf("unexpected ttl: %v", store.lastTTL)
	}
}

func TestCheckAndMarkProcessed_AlreadyProcessed(t *testing.T) {
	manager, err := NewManager(&fakeStore{setNXResult: false}, 12*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	already, err := manager.CheckAndMarkProcessed(context.Background(), "notifications-worker", uuid.NewString())
	if err != nil {
		t.Fatalf("CheckAndMarkProcessed: %v", err)
	}
	if !already {
		t.Fatalf("expected already processed, got false")
	}
}

func TestCheckAndMarkProcessed_Errors(t *testing.T) {
	manager, err := NewManager(&fakeStore{setNXError: errors.New("boom")}, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if _, err := manager.CheckAndMarkProcessed(context.Background(), "notifications-worker", uuid.NewString()); err == nil {
		t.Fatal("expected store error")
	}
	if _, err := manager.CheckAndMarkProcessed(context.Background(), "", uuid.NewString()); err == nil {
		t.Fatal("expected consumer name error")
	}
	if _, err := manager.CheckAndMarkProcessed(context.Background(), "notifications-worker", " "); err == nil {
		t.Fatal("expected event id error")
	}
}

func TestRelease(t *testing.T) {
	store := &fakeStore{}
	manager, err := NewManager(store, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	eventID := uuid.NewString()
	if err := manager.Release(context.Background(), "notifications-worker", eventID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	expected := "vrumi:idempotency:evt:processed:notifications-worker:" + eventID
	if store.lastDeleted != expected {
		t.Fatalf("unexpected deleted key %q", store.lastDeleted)
	}
}

func TestConsumerClaims(t *testing.T) {
	store := &fakeStore{setNXResult: true}
	manager, err := NewManager(store, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := manager.For(" "); !errors.Is(err, errConsumerRequired) {
		t.Fatalf("expected consumer error, got %v", err)
	}

	claims, err := manager.For("stripe-webhook")
	if err != nil {
		t.Fatalf("For: %v", err)
	}
	already, err := claims.CheckAndMark(context.Background(), "evt_123")
	if err != nil || already {
		t.Fatalf("expected fresh claim, got %v %v", already, err)
	}
	if store.lastKey != "vrumi:idempotency:evt:processed:stripe-webhook:evt_123" {
		t.Fatalf("unexpected key %q", store.lastKey)
	}
	if err := claims.Delete(context.Background(), "evt_123"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if store.lastDeleted != store.lastKey {
		t.Fatalf("expected claim released, deleted %q", store.lastDeleted)
	}
}

func TestNewManagerRejectsNegativeTTL(t *testing.T) {
	if _, err := NewManager(&fakeStore{}, -time.Second); err == nil {
		t.Fatal("expected ttl error")
	}
	if _, err := NewManager(nil, time.Hour); err == nil {
		t.Fatal("expected store error")
	}
}

// Package idempotency records which events a consumer already handled so
// at-least-once deliveries are applied once.
package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vrumi/vrumi-backend/pkg/redis"
)

const processedScopePrefix = "evt:processed:"

var (
	errConsumerRequired = errors.New("consumer name is required")
	errEventIDRequired  = errors.New("event id is required")
)

// Manager claims event ids with SETNX so only the first delivery wins.
// Claims expire after ttl; a zero ttl keeps them forever. Keys look like
// `vrumi:idempotency:evt:processed:<consumer>:<event_id>`.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	now   func() time.Time
}

func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}, nil
}

// CheckAndMarkProcessed reports true when the event was already claimed by
// consumer; otherwise it claims it.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	claimed, err := m.store.SetNX(ctx, key, m.now().UTC().Format(time.RFC3339), m.ttl)
	if err != nil {
		return false, err
	}
	return !claimed, nil
}

// Release drops a claim so a redelivery is handled again. Consumers call it
// when processing failed after the claim was taken.
func (m *Manager) Release(ctx context.Context, consumer, eventID string) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

// For binds the manager to one consumer name.
func (m *Manager) For(consumer string) (*ConsumerClaims, error) {
	if strings.TrimSpace(consumer) == "" {
		return nil, errConsumerRequired
	}
	return &ConsumerClaims{manager: m, consumer: consumer}, nil
}

func (m *Manager) key(consumer, eventID string) (string, error) {
	if strings.TrimSpace(consumer) == "" {
		return "", errConsumerRequired
	}
	if strings.TrimSpace(eventID) == "" {
		return "", errEventIDRequired
	}
	return m.store.IdempotencyKey(processedScopePrefix+consumer, eventID), nil
}

// ConsumerClaims is a Manager scoped to a single consumer.
type ConsumerClaims struct {
	manager  *Manager
	consumer string
}

func (c *ConsumerClaims) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	return c.manager.CheckAndMarkProcessed(ctx, c.consumer, eventID)
}

func (c *ConsumerClaims) Delete(ctx context.Context, eventID string) error {
	return c.manager.Release(ctx, c.consumer, eventID)
}

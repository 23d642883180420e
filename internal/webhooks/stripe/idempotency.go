package stripewebhook

import (
	"time"

	"github.com/vrumi/vrumi-backend/pkg/outbox/idempotency"
	"github.com/vrumi/vrumi-backend/pkg/redis"
)

const (
	// GuardScope namespaces webhook event ids in the idempotency store.
	GuardScope      = "stripe-webhook"
	defaultGuardTTL = 72 * time.Hour
)

// NewIdempotencyGuard returns the Redis fast path in front of the durable
// processed_webhook_events table. A lost key only costs a database round
// trip, so the TTL just needs to cover Stripe's retry burst.
func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*idempotency.ConsumerClaims, error) {
	if ttl == 0 {
		ttl = defaultGuardTTL
	}
	if scope == "" {
		scope = GuardScope
	}
	manager, err := idempotency.NewManager(store, ttl)
	if err != nil {
		return nil, err
	}
	return manager.For(scope)
}

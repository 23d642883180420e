package entitlements

import (
	"context"

	"github.com/google/uuid"

	"github.com/vrumi/vrumi-backend/pkg/redis"
)

// Feed carries "entitlements changed" signals between the webhook handler
// and live watchers.
type Feed interface {
	NotifyChanged(ctx context.Context, userID uuid.UUID) error
	Subscribe(ctx context.Context, userID uuid.UUID) (redis.Subscription, error)
}

type pubsubClient interface {
	Publish(ctx context.Context, channel string, message string) error
	Subscribe(ctx context.Context, channel string) (redis.Subscription, error)
	EntitlementChannel(userID string) string
}

// RedisFeed fans change signals out over Redis pub/sub so every API replica
// holding a stream for the user re-evaluates.
type RedisFeed struct {
	client pubsubClient
}

func NewRedisFeed(client pubsubClient) *RedisFeed {
	return &RedisFeed{client: client}
}

func (f *RedisFeed) NotifyChanged(ctx context.Context, userID uuid.UUID) error {
	return f.client.Publish(ctx, f.client.EntitlementChannel(userID.String()), "changed")
}

func (f *RedisFeed) Subscribe(ctx context.Context, userID uuid.UUID) (redis.Subscription, error) {
	return f.client.Subscribe(ctx, f.client.EntitlementChannel(userID.String()))
}

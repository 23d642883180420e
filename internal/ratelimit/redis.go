package ratelimit

import (
	"context"
	"time"
)

type fixedWindowClient interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, time.Duration, error)
}

// RedisStore shares windows across replicas through INCR + EXPIRE.
type RedisStore struct {
	client fixedWindowClient
	now    func() time.Time
}

func NewRedisStore(client fixedWindowClient, now func() time.Time) *RedisStore {
	if now == nil {
		now = time.Now
	}
	return &RedisStore{client: client, now: now}
}

func (r *RedisStore) Check(ctx context.Context, key string, policy Policy) (Result, error) {
	allowed, count, ttl, err := r.client.FixedWindowAllow(ctx, policy.NormalizedName()+":"+key, int64(policy.MaxRequests), policy.Window)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Allowed:   allowed,
		Limit:     policy.MaxRequests,
		Remaining: remaining(policy.MaxRequests, count),
		ResetAt:   r.now().Add(ttl),
	}, nil
}

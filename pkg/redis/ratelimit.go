package redis

import (
	"context"
	"fmt"
	"time"
)

// FixedWindowAllow counts one hit against scope's current window. It returns
// whether the hit is within limit, the hits so far and the time until the
// window resets.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, time.Duration, error) {
	if c.store == nil {
		return false, 0, 0, errNotInitialized
	}
	key := c.RateLimitKey(scope)

	count, err := c.store.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, 0, fmt.Errorf("incr %s: %w", key, err)
	}
	if count == 1 {
		if err := c.store.Expire(ctx, key, window).Err(); err != nil {
			return false, count, 0, fmt.Errorf("expire %s: %w", key, err)
		}
	}

	reset, err := c.store.PTTL(ctx, key).Result()
	if err != nil {
		return false, count, 0, fmt.Errorf("pttl %s: %w", key, err)
	}
	// a negative TTL means the first EXPIRE never landed; without it the
	// counter would never reset
	if reset < 0 {
		if err := c.store.Expire(ctx, key, window).Err(); err != nil {
			return false, count, 0, fmt.Errorf("expire %s: %w", key, err)
		}
		reset = window
	}
	return count <= limit, count, reset, nil
}

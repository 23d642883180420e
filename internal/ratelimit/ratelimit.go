// Package ratelimit implements fixed-window request limits keyed by caller.
package ratelimit

import (
	"context"
	"strings"
	"time"
)

// Policy is one endpoint's limit: at most MaxRequests per Window per key.
type Policy struct {
	Name        string
	Window      time.Duration
	MaxRequests int
}

// Enabled reports whether the policy limits anything.
func (p Policy) Enabled() bool {
	return p.Window > 0 && p.MaxRequests > 0
}

// NormalizedName is the policy name used in keys and metrics.
func (p Policy) NormalizedName() string {
	name := strings.ToLower(strings.TrimSpace(p.Name))
	if name == "" {
		return "default"
	}
	return name
}

// Result describes the window after a check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the wait until the window resets, never negative.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if d := r.ResetAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Store counts requests per key.
type Store interface {
	Check(ctx context.Context, key string, policy Policy) (Result, error)
}

func remaining(limit int, count int64) int {
	left := int64(limit) - count
	if left < 0 {
		return 0
	}
	return int(left)
}

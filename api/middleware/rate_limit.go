package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vrumi/vrumi-backend/api/responses"
	"github.com/vrumi/vrumi-backend/internal/ratelimit"
	pkgerrors "github.com/vrumi/vrumi-backend/pkg/errors"
	"github.com/vrumi/vrumi-backend/pkg/logger"
	"github.com/vrumi/vrumi-backend/pkg/metrics"
)

// RateLimitParams bind one policy to a counter store.
type RateLimitParams struct {
	Policy  ratelimit.Policy
	Store   ratelimit.Store
	Logger  *logger.Logger
	Metrics *metrics.PaymentMetrics
	Now     func() time.Time
}

// RateLimit enforces a fixed window per caller. Authenticated requests are
// keyed by account id and anonymous ones by client IP. Every response carries
// the X-RateLimit-* headers; denied requests get 429 with Retry-After.
func RateLimit(params RateLimitParams) func(http.Handler) http.Handler {
	now := params.Now
	if now == nil {
		now = time.Now
	}
	policy := params.Policy
	logg := params.Logger
	return func(next http.Handler) http.Handler {
		if !policy.Enabled() || params.Store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := rateLimitKey(r)

			result, err := params.Store.Check(ctx, key, policy)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}

			header := w.Header()
			header.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			header.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			header.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				retry := result.RetryAfter(now())
				header.Set("Retry-After", strconv.Itoa(retryAfterSeconds(retry)))
				params.Metrics.RateLimited(policy.NormalizedName())
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{
						"policy":         policy.NormalizedName(),
						"limit":          result.Limit,
						"window_seconds": int(policy.Window.Seconds()),
						"retry_after_ms": retry.Milliseconds(),
					})
					logg.Warn(logCtx, "rate_limit.blocked")
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitKey(r *http.Request) string {
	if userID := UserIDFromContext(r.Context()); userID != "" {
		return "user:" + userID
	}
	return "ip:" + clientIP(r)
}

// retryAfterSeconds rounds up so clients never retry inside the window.
func retryAfterSeconds(d time.Duration) int {
	seconds := int((d + time.Second - 1) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

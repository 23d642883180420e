package redis

import "strings"

const keyNamespace = "vrumi"

// IdempotencyKey is vrumi:idempotency:<scope>:<id>.
func (c *Client) IdempotencyKey(scope, id string) string {
	return buildKey("idempotency", scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return buildKey("rate_limit", scope)
}

// LockKey names a cron lease.
func (c *Client) LockKey(name string) string {
	return buildKey("lock", name)
}

// FavoritesKey holds one user's favorites of a kind (signs, questions).
func (c *Client) FavoritesKey(userID, kind string) string {
	return buildKey("favorites", userID, kind)
}

// EntitlementChannel announces pass changes for one user.
func (c *Client) EntitlementChannel(userID string) string {
	return buildKey("events", "entitlements", userID)
}

// buildKey joins the namespace and the non-blank parts with ":".
func buildKey(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vrumi/vrumi-backend/pkg/config"
)

const (
	authenticatedRole = "authenticated"
	clockSkew         = 30 * time.Second
)

var (
	signingMethod = jwt.SigningMethodHS256

	errSecretRequired   = errors.New("jwt secret is required")
	errIssuerRequired   = errors.New("jwt issuer is required")
	errTTLNotPositive   = errors.New("jwt ttl must be positive")
	errUserIDRequired   = errors.New("user id is required")
	errNotAuthenticated = errors.New("token does not belong to a signed-in user")
)

// MintAccessToken signs a token with the same claims the auth provider
// issues. Real sessions never go through here; tooling and tests do.
func MintAccessToken(cfg config.JWTConfig, now time.Time, ttl time.Duration, payload AccessTokenPayload) (string, error) {
	switch {
	case cfg.Secret == "":
		return "", errSecretRequired
	case cfg.Issuer == "":
		return "", errIssuerRequired
	case ttl <= 0:
		return "", errTTLNotPositive
	case payload.UserID == uuid.Nil:
		return "", errUserIDRequired
	}

	registered := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    cfg.Issuer,
		Subject:   payload.UserID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if cfg.Audience != "" {
		registered.Audience = jwt.ClaimStrings{cfg.Audience}
	}

	signed, err := jwt.NewWithClaims(signingMethod, AccessTokenClaims{
		Email:            payload.Email,
		Role:             authenticatedRole,
		RegisteredClaims: registered,
	}).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer, audience and expiry, then
// checks the subject is a user id. Anonymous-role tokens are rejected.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, errSecretRequired
	}

	claims := &AccessTokenClaims{}
	if _, err := jwt.ParseWithClaims(raw, claims, secretKey(cfg.Secret), parserOptions(cfg)...); err != nil {
		return nil, err
	}
	if claims.Role != "" && claims.Role != authenticatedRole {
		return nil, errNotAuthenticated
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}

func parserOptions(cfg config.JWTConfig) []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockSkew),
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return opts
}

func secretKey(secret string) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if token.Method != signingMethod {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}
}

package stripe

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/vrumi/vrumi-backend/pkg/config"
	"github.com/vrumi/vrumi-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	appName = "vrumi-backend"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
	errInvalidCurrency  = errors.New("stripe currency must be a three letter ISO code")

	currencyPattern = regexp.MustCompile(`^[a-z]{3}$`)

	// secret and restricted keys are both accepted
	keyPrefixes = map[string][]string{
		testEnv: {"sk_test_", "rk_test_"},
		liveEnv: {"sk_live_", "rk_live_"},
	}
)

// Client carries the Stripe credentials for checkout, refunds and webhook
// verification. The package-level stripe.Key is set as well since the
// checkout and refund calls go through the resource packages.
type Client struct {
	api           *stripe.Client
	environment   string
	signingSecret string
	currency      stripe.Currency
}

func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	signingSecret := strings.TrimSpace(cfg.Secret)
	if signingSecret == "" {
		return nil, errSecretRequired
	}

	currency, err := normalizeCurrency(cfg.Currency)
	if err != nil {
		return nil, err
	}

	stripe.Key = apiKey
	stripe.SetAppInfo(&stripe.AppInfo{Name: appName})

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"stripe_env": env,
			"currency":   string(currency),
		}), "stripe client initialized")
	}

	return &Client{
		api:           stripe.NewClient(apiKey),
		environment:   env,
		signingSecret: signingSecret,
		currency:      currency,
	}, nil
}

func (c *Client) API() *stripe.Client {
	if c == nil {
		return nil
	}
	return c.api
}

// Environment reports "test" or "live".
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

func (c *Client) IsLive() bool {
	return c.Environment() == liveEnv
}

// SigningSecret returns the webhook endpoint secret (whsec_...).
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// Currency is the charge currency for passes and bookings.
func (c *Client) Currency() stripe.Currency {
	if c == nil {
		return ""
	}
	return c.currency
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		return testEnv, nil
	}
	if _, ok := keyPrefixes[env]; !ok {
		return "", errInvalidStripeEnv
	}
	return env, nil
}

func normalizeCurrency(raw string) (stripe.Currency, error) {
	code := strings.TrimSpace(strings.ToLower(raw))
	if code == "" {
		return stripe.CurrencyBRL, nil
	}
	if !currencyPattern.MatchString(code) {
		return "", errInvalidCurrency
	}
	return stripe.Currency(code), nil
}

func validateAPIKey(env, key string) error {
	prefixes, ok := keyPrefixes[env]
	if !ok {
		return errInvalidStripeEnv
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(key, prefix) {
			return nil
		}
	}
	return fmt.Errorf("stripe environment %q requires a key starting with %s", env, strings.Join(prefixes, " or "))
}

package stripe

import (
	"context"
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v84"

	"github.com/vrumi/vrumi-backend/pkg/config"
)

func TestNewClient(t *testing.T) {
	client, err := NewClient(context.Background(), config.StripeConfig{
		APIKey: "sk_test_123",
		Secret: "whsec_abc",
		Env:    "TEST",
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Environment() != testEnv || client.IsLive() {
		t.Fatalf("expected test environment, got %q", client.Environment())
	}
	if client.SigningSecret() != "whsec_abc" {
		t.Fatalf("unexpected signing secret %q", client.SigningSecret())
	}
	if client.Currency() != stripe.CurrencyBRL {
		t.Fatalf("expected brl default, got %q", client.Currency())
	}
	if client.API() == nil {
		t.Fatal("expected api client")
	}
}

func TestNewClientRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StripeConfig
		want error
	}{
		{name: "missing key", cfg: config.StripeConfig{Secret: "whsec"}, want: errAPIKeyRequired},
		{name: "missing secret", cfg: config.StripeConfig{APIKey: "sk_test_1"}, want: errSecretRequired},
		{name: "bad env", cfg: config.StripeConfig{APIKey: "sk_test_1", Secret: "whsec", Env: "staging"}, want: errInvalidStripeEnv},
		{name: "bad currency", cfg: config.StripeConfig{APIKey: "sk_test_1", Secret: "whsec", Currency: "reais"}, want: errInvalidCurrency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(context.Background(), tt.cfg, nil)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateAPIKeyMatchesEnvironment(t *testing.T) {
	if err := validateAPIKey(liveEnv, "sk_test_123"); err == nil {
		t.Fatal("test key must be rejected in live mode")
	}
	if err := validateAPIKey(liveEnv, "rk_live_123"); err != nil {
		t.Fatalf("restricted live key should pass: %v", err)
	}
	if err := validateAPIKey(testEnv, "sk_live_123"); err == nil {
		t.Fatal("live key must be rejected in test mode")
	}
}

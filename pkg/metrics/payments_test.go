package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPaymentMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPaymentMetrics(reg)

	m.WebhookEvent("checkout.session.completed", "granted")
	m.WebhookEvent("checkout.session.completed", "granted")
	m.Refund("succeeded")
	m.RateLimited("refunds")
	m.CheckoutSession("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "vrumi_stripe_webhook_events_total", map[string]string{"outcome": "granted"}); err != nil || got != 2 {
		t.Fatalf("expected 2 granted webhook events, got %v (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "vrumi_connect_refunds_total", map[string]string{"outcome": "succeeded"}); err != nil || got != 1 {
		t.Fatalf("expected 1 refund, got %v (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "vrumi_http_rate_limit_rejections_total", map[string]string{"policy": "refunds"}); err != nil || got != 1 {
		t.Fatalf("expected 1 rejection, got %v (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "vrumi_checkout_sessions_total", map[string]string{"pass_type": "unknown"}); err != nil || got != 1 {
		t.Fatalf("expected empty label to normalize, got %v (%v)", got, err)
	}
}

func TestPaymentMetricsNilSafe(t *testing.T) {
	var m *PaymentMetrics
	m.WebhookEvent("x", "y")
	m.Refund("failed")
	NewPaymentMetrics(nil).RateLimited("coupons")
}

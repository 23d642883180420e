package metrics

import "github.com/prometheus/client_golang/prometheus"

// PaymentMetrics tracks the checkout, webhook and refund lifecycle.
type PaymentMetrics struct {
	webhookEvents  *prometheus.CounterVec
	refunds        *prometheus.CounterVec
	checkouts      *prometheus.CounterVec
	rateLimitDenys *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on reg. A nil registerer
// yields a no-op recorder.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stripe",
		Name:      "webhook_events_total",
		Help:      "Stripe webhook events by type and outcome.",
	}, []string{"type", "outcome"})
	refunds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "connect",
		Name:      "refunds_total",
		Help:      "Booking refund attempts by outcome.",
	}, []string{"outcome"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "sessions_total",
		Help:      "Checkout sessions created by pass type.",
	}, []string{"pass_type"})
	rateLimitDenys := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "rate_limit_rejections_total",
		Help:      "Requests rejected by the rate limiter per policy.",
	}, []string{"policy"})
	reg.MustRegister(webhookEvents, refunds, checkouts, rateLimitDenys)
	return &PaymentMetrics{
		webhookEvents:  webhookEvents,
		refunds:        refunds,
		checkouts:      checkouts,
		rateLimitDenys: rateLimitDenys,
	}
}

func (p *PaymentMetrics) WebhookEvent(eventType, outcome string) {
	if p == nil || p.webhookEvents == nil {
		return
	}
	p.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func (p *PaymentMetrics) Refund(outcome string) {
	if p == nil || p.refunds == nil {
		return
	}
	p.refunds.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (p *PaymentMetrics) CheckoutSession(passType string) {
	if p == nil || p.checkouts == nil {
		return
	}
	p.checkouts.WithLabelValues(normalizeLabel(passType)).Inc()
}

func (p *PaymentMetrics) RateLimited(policy string) {
	if p == nil || p.rateLimitDenys == nil {
		return
	}
	p.rateLimitDenys.WithLabelValues(normalizeLabel(policy)).Inc()
}

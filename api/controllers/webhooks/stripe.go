package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/vrumi/vrumi-backend/api/responses"
	pkgerrors "github.com/vrumi/vrumi-backend/pkg/errors"
	"github.com/vrumi/vrumi-backend/pkg/logger"
)

const (
	maxWebhookBodyBytes = 1 << 16
	signatureHeader     = "Stripe-Signature"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type stripeClient interface {
	SigningSecret() string
}

// acceptedBody is what Stripe gets for applied, duplicate and ignored events.
type acceptedBody struct {
	Success bool `json:"success"`
}

// StripeWebhook applies signed Stripe events at most once. A failed event
// releases its claim so Stripe's retry can apply it.
func StripeWebhook(svc StripeWebhookService, client stripeClient, guard stripeWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || client == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook not configured"))
			return
		}

		event, err := verifyEvent(r, client.SigningSecret())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		ctx = logg.WithStripeEventID(ctx, event.ID)

		duplicate, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if duplicate {
			logg.Debug(ctx, "stripe.webhook_duplicate")
			responses.WriteSuccess(w, acceptedBody{Success: true})
			return
		}

		// the claim is released unless the event was applied, including when
		// HandleEvent panics
		applied := false
		defer func() {
			if applied {
				return
			}
			if releaseErr := guard.Delete(context.WithoutCancel(ctx), event.ID); releaseErr != nil {
				logg.Error(ctx, "stripe.webhook_release_failed", releaseErr)
			}
		}()

		if err := svc.HandleEvent(ctx, &event); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		applied = true

		logg.Info(logg.WithField(ctx, "event_type", string(event.Type)), "stripe.webhook_processed")
		responses.WriteSuccess(w, acceptedBody{Success: true})
	}
}

// verifyEvent reads the body and checks its signature before anything in it
// is trusted.
func verifyEvent(r *http.Request, secret string) (stripe.Event, error) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes+1))
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body")
	}
	if len(payload) > maxWebhookBodyBytes {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeValidation, "request body too large")
	}

	signature := r.Header.Get(signatureHeader)
	if signature == "" {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing")
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stripe signature")
	}
	return event, nil
}

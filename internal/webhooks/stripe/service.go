package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/vrumi/vrumi-backend/internal/coupons"
	"github.com/vrumi/vrumi-backend/internal/passes"
	"github.com/vrumi/vrumi-backend/pkg/enums"
	pkgerrors "github.com/vrumi/vrumi-backend/pkg/errors"
	"github.com/vrumi/vrumi-backend/pkg/logger"
	"github.com/vrumi/vrumi-backend/pkg/metrics"
	"github.com/vrumi/vrumi-backend/pkg/types"
)

// Metadata keys written by the checkout service.
const (
	metadataPassType        = "pass_type"
	metadataUserID          = "user_id"
	metadataCouponCode      = "coupon_code"
	metadataSecondUserEmail = "second_user_email"
)

// Outcome labels how an event was handled.
type Outcome string

const (
	OutcomeGranted   Outcome = "granted"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeNotPaid   Outcome = "not_paid"
	OutcomeFailed    Outcome = "failed"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// EntitlementNotifier tells live entitlement watchers to re-evaluate a user.
type EntitlementNotifier interface {
	NotifyChanged(ctx context.Context, userID uuid.UUID) error
}

type ServiceParams struct {
	Events            *EventRepository
	Passes            passes.Service
	Coupons           coupons.Service
	Notifier          EntitlementNotifier
	TransactionRunner txRunner
	Metrics           *metrics.PaymentMetrics
	Logger            *logger.Logger
	Now               func() time.Time
}

type Service struct {
	events   *EventRepository
	passes   passes.Service
	coupons  coupons.Service
	notifier EntitlementNotifier
	txRunner txRunner
	metrics  *metrics.PaymentMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook event repository required")
	}
	if params.Passes == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "passes service required")
	}
	if params.Coupons == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "coupons service required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		events:   params.Events,
		passes:   params.Passes,
		coupons:  params.Coupons,
		notifier: params.Notifier,
		txRunner: params.TransactionRunner,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// HandleEvent applies a verified Stripe event. Only completed or async-paid
// checkout sessions grant passes; every other event is acknowledged untouched.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithFields(s.logg.WithStripeEventID(ctx, event.ID), map[string]any{"event_type": string(event.Type)})

	var (
		outcome Outcome
		err     error
	)
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		var sess stripe.CheckoutSession
		if decodeErr := json.Unmarshal(event.Data.Raw, &sess); decodeErr != nil {
			err = pkgerrors.Wrap(pkgerrors.CodeValidation, decodeErr, "decode checkout session")
			break
		}
		outcome, err = s.handleCheckoutSession(ctx, event, &sess)
	default:
		outcome = OutcomeIgnored
	}

	if err != nil {
		outcome = OutcomeFailed
	}
	s.metrics.WebhookEvent(string(event.Type), string(outcome))
	return err
}

type checkoutMetadata struct {
	userID          uuid.UUID
	passType        enums.PassType
	couponCode      string
	secondUserEmail string
}

func parseMetadata(metadata map[string]string) (*checkoutMetadata, error) {
	rawPass := strings.TrimSpace(metadata[metadataPassType])
	rawUser := strings.TrimSpace(metadata[metadataUserID])
	if rawPass == "" || rawUser == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "missing pass_type or user_id metadata")
	}
	passType, err := enums.ParsePassType(rawPass)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pass_type metadata")
	}
	userID, err := uuid.Parse(rawUser)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user_id metadata")
	}
	return &checkoutMetadata{
		userID:          userID,
		passType:        passType,
		couponCode:      strings.TrimSpace(metadata[metadataCouponCode]),
		secondUserEmail: strings.TrimSpace(metadata[metadataSecondUserEmail]),
	}, nil
}

func (s *Service) handleCheckoutSession(ctx context.Context, event *stripe.Event, sess *stripe.CheckoutSession) (Outcome, error) {
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		s.logg.Info(s.logg.WithField(ctx, "payment_status", string(sess.PaymentStatus)), "stripe.checkout_not_paid")
		return OutcomeNotPaid, nil
	}
	meta, err := parseMetadata(sess.Metadata)
	if err != nil {
		return "", err
	}
	if event.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "stripe event id required")
	}

	var (
		granted   *passes.GrantResult
		duplicate bool
	)
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		fresh, err := s.events.WithTx(tx).MarkProcessed(ctx, event.ID, string(event.Type), s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record webhook event")
		}
		if !fresh {
			duplicate = true
			return nil
		}

		granted, err = s.passes.Grant(ctx, tx, passes.GrantInput{
			UserID:          meta.userID,
			PassType:        meta.passType,
			SessionID:       sess.ID,
			EventID:         event.ID,
			SecondUserEmail: meta.secondUserEmail,
			CouponCode:      meta.couponCode,
			PaidAmount:      types.FromMinorUnits(sess.AmountTotal),
		})
		if err != nil {
			return err
		}
		if granted.AlreadyGranted {
			duplicate = true
			return nil
		}

		if meta.couponCode == "" {
			return nil
		}
		redeemed, err := s.coupons.Redeem(ctx, tx, coupons.RedeemInput{
			Code:      meta.couponCode,
			UserID:    meta.userID,
			SessionID: sess.ID,
		})
		if err != nil {
			return err
		}
		if !redeemed.Redeemed && !redeemed.Duplicate {
			// payment already captured; the pass stands
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"coupon_code": meta.couponCode,
				"reason":      redeemed.Reason,
			}), "stripe.coupon_not_redeemed")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if duplicate {
		s.logg.Info(ctx, "stripe.event_already_processed")
		return OutcomeDuplicate, nil
	}

	s.notifyBeneficiaries(ctx, granted.Beneficiaries())
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"user_id":   meta.userID.String(),
		"pass_type": string(meta.passType),
		"passes":    len(granted.Passes),
	}), "stripe.passes_granted")
	return OutcomeGranted, nil
}

func (s *Service) notifyBeneficiaries(ctx context.Context, userIDs []uuid.UUID) {
	if s.notifier == nil {
		return
	}
	for _, userID := range userIDs {
		if err := s.notifier.NotifyChanged(ctx, userID); err != nil {
			s.logg.Error(s.logg.WithUserID(ctx, userID.String()), "stripe.entitlement_notify_failed", err)
		}
	}
}

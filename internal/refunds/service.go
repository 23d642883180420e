package refunds

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/vrumi/vrumi-backend/internal/bookings"
	"github.com/vrumi/vrumi-backend/internal/ledger"
	"github.com/vrumi/vrumi-backend/pkg/db"
	"github.com/vrumi/vrumi-backend/pkg/db/models"
	"github.com/vrumi/vrumi-backend/pkg/enums"
	pkgerrors "github.com/vrumi/vrumi-backend/pkg/errors"
	"github.com/vrumi/vrumi-backend/pkg/logger"
	"github.com/vrumi/vrumi-backend/pkg/metrics"
	"github.com/vrumi/vrumi-backend/pkg/outbox"
	"github.com/vrumi/vrumi-backend/pkg/outbox/payloads"
	"github.com/vrumi/vrumi-backend/pkg/types"
)

const (
	defaultStaleAfter  = 10 * time.Minute
	defaultMaxAttempts = 5
	defaultBatchSize   = 25

	metadataBookingID = "booking_id"
)

// Outcomes recorded on the refund counter.
const (
	outcomeSucceeded = "succeeded"
	outcomeFailed    = "failed"
	outcomeResumed   = "resumed"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service runs the booking refund saga.
type Service interface {
	Refund(ctx context.Context, input RefundInput) (*RefundResult, error)
	Reconcile(ctx context.Context) (ReconcileReport, error)
}

// RefundInput identifies the booking to refund and who is asking.
type RefundInput struct {
	BookingID     uuid.UUID
	Reason        string
	CallerID      uuid.UUID
	CallerIsAdmin bool
}

// RefundResult summarizes the processor refund.
type RefundResult struct {
	RefundID       string
	RefundStatus   string
	AmountRefunded decimal.Decimal
}

// ReconcileReport counts what one reconciliation sweep did.
type ReconcileReport struct {
	Finalized int
	Retried   int
	Abandoned int
}

type ServiceParams struct {
	Bookings          *bookings.Repository
	Intents           *IntentRepository
	Ledger            ledger.Service
	Stripe            StripeRefundClient
	Outbox            outbox.Emitter
	TransactionRunner txRunner
	Metrics           *metrics.PaymentMetrics
	Logger            *logger.Logger
	Now               func() time.Time
	StaleAfter        time.Duration
	MaxAttempts       int
	BatchSize         int
}

type service struct {
	bookings    *bookings.Repository
	intents     *IntentRepository
	ledger      ledger.Service
	stripe      StripeRefundClient
	outbox      outbox.Emitter
	txRunner    txRunner
	metrics     *metrics.PaymentMetrics
	logg        *logger.Logger
	now         func() time.Time
	staleAfter  time.Duration
	maxAttempts int
	batchSize   int
}

func NewService(params ServiceParams) (Service, error) {
	if params.Bookings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "bookings repository required")
	}
	if params.Intents == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "refund intent repository required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe refund client required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
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
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &service{
		bookings:    params.Bookings,
		intents:     params.Intents,
		ledger:      params.Ledger,
		stripe:      params.Stripe,
		outbox:      params.Outbox,
		txRunner:    params.TransactionRunner,
		metrics:     params.Metrics,
		logg:        params.Logger,
		now:         now,
		staleAfter:  staleAfter,
		maxAttempts: maxAttempts,
		batchSize:   batchSize,
	}, nil
}

// IdempotencyKey is the processor idempotency key for one intent. Retries of
// the same intent reuse it so Stripe never refunds twice.
func IdempotencyKey(bookingID, intentID uuid.UUID) string {
	return fmt.Sprintf("refund:%s:%s", bookingID, intentID)
}

// Refund checks every precondition before touching the processor, then
// records an intent, refunds through Stripe and applies the local write.
func (s *service) Refund(ctx context.Context, input RefundInput) (*RefundResult, error) {
	if input.BookingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bookingId is required")
	}
	if input.CallerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	ctx = s.logg.WithFields(s.logg.WithUserID(ctx, input.CallerID.String()), map[string]any{
		"booking_id": input.BookingID.String(),
	})

	booking, err := s.bookings.FindByID(ctx, input.BookingID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
	}
	if !canRefund(booking, input) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the student, the instructor or an admin can refund this booking")
	}
	if err := checkRefundable(booking); err != nil {
		return nil, err
	}

	intent, err := s.openIntent(ctx, booking.ID, input)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithField(ctx, "refund_intent_id", intent.ID.String())

	if intent.Status == enums.RefundIntentPending {
		if err := s.callProcessor(ctx, booking, intent); err != nil {
			return nil, err
		}
	} else {
		s.logg.Info(ctx, "refunds.resume_processor_succeeded")
		s.metrics.Refund(outcomeResumed)
	}

	if err := s.finalize(ctx, intent.ID); err != nil {
		return nil, err
	}
	resolved, err := s.intents.FindByID(ctx, intent.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load refund intent")
	}
	return resultFromIntent(resolved), nil
}

func canRefund(booking *models.Booking, input RefundInput) bool {
	if input.CallerIsAdmin {
		return true
	}
	if booking.StudentID == input.CallerID {
		return true
	}
	return booking.InstructorID != nil && *booking.InstructorID == input.CallerID
}

func checkRefundable(booking *models.Booking) error {
	if booking.PaymentStatus != enums.PaymentStatusCompleted {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "booking payment is not completed").
			WithDetails(map[string]any{"payment_status": booking.PaymentStatus})
	}
	if booking.StripePaymentIntentID == nil || strings.TrimSpace(*booking.StripePaymentIntentID) == "" {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "booking has no payment intent")
	}
	return nil
}

// openIntent reuses the booking's open intent or creates a new one. The
// booking row lock serializes concurrent requests for the same booking.
func (s *service) openIntent(ctx context.Context, bookingID uuid.UUID, input RefundInput) (*models.RefundIntent, error) {
	var intent *models.RefundIntent
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		booking, err := s.bookings.WithTx(tx).FindByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := checkRefundable(booking); err != nil {
			return err
		}
		intents := s.intents.WithTx(tx)
		existing, err := intents.FindOpenForBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if existing != nil {
			intent = existing
			return nil
		}
		id := uuid.New()
		created := &models.RefundIntent{
			ID:             id,
			BookingID:      bookingID,
			RequestedBy:    input.CallerID,
			IdempotencyKey: IdempotencyKey(bookingID, id),
			Status:         enums.RefundIntentPending,
		}
		if reason := strings.TrimSpace(input.Reason); reason != "" {
			created.Reason = &reason
		}
		if err := intents.Create(ctx, created); err != nil {
			return err
		}
		intent = created
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "record refund intent")
	}
	return intent, nil
}

// callProcessor issues the Stripe refund for a pending intent.
func (s *service) callProcessor(ctx context.Context, booking *models.Booking, intent *models.RefundIntent) error {
	if err := s.intents.RecordAttempt(ctx, intent.ID, s.now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund attempt")
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(*booking.StripePaymentIntentID),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.SetIdempotencyKey(intent.IdempotencyKey)
	params.AddMetadata(metadataBookingID, booking.ID.String())

	rf, err := s.stripe.Create(ctx, params)
	if err != nil {
		s.metrics.Refund(outcomeFailed)
		s.logg.Error(ctx, "refunds.processor_failed", err)
		if markErr := s.intents.MarkFailed(ctx, intent.ID, err.Error(), s.now()); markErr != nil {
			s.logg.Error(ctx, "refunds.mark_failed", markErr)
		}
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, err.Error())
	}

	if err := s.intents.MarkProcessorSucceeded(ctx, intent.ID, rf.ID, string(rf.Status), rf.Amount, s.now()); err != nil {
		// the reconciliation sweep retries with the same idempotency key
		s.logg.Error(ctx, "refunds.mark_processor_succeeded", err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record processor refund")
	}
	s.metrics.Refund(outcomeSucceeded)
	s.logg.Info(s.logg.WithField(ctx, "stripe_refund_id", rf.ID), "refunds.processor_succeeded")
	return nil
}

// finalize applies the local write for an intent the processor accepted:
// booking cancelled, instructor debited, intent resolved and the outbox event
// stored, all in one transaction.
func (s *service) finalize(ctx context.Context, intentID uuid.UUID) error {
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		now := s.now()
		intents := s.intents.WithTx(tx)
		intent, err := intents.FindByID(ctx, intentID)
		if err != nil {
			return err
		}
		if intent.Status == enums.RefundIntentResolved {
			return nil
		}
		if intent.Status != enums.RefundIntentProcessorSucceeded {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "refund intent is not ready to finalize")
		}

		bookingRepo := s.bookings.WithTx(tx)
		booking, err := bookingRepo.FindByIDForUpdate(ctx, intent.BookingID)
		if err != nil {
			return err
		}
		reason := ""
		if intent.Reason != nil {
			reason = *intent.Reason
		}
		updated, err := bookingRepo.MarkRefunded(ctx, booking.ID, reason, now)
		if err != nil {
			return err
		}

		refundID := ""
		if intent.StripeRefundID != nil {
			refundID = *intent.StripeRefundID
		}
		var debit string
		if updated && booking.InstructorID != nil {
			entry, err := s.ledger.RecordRefund(ctx, tx, ledger.RecordRefundInput{
				BookingID:      booking.ID,
				InstructorID:   *booking.InstructorID,
				Price:          booking.Price,
				StripeRefundID: refundID,
			})
			if err != nil {
				return err
			}
			debit = entry.Amount.StringFixed(2)
		}

		if _, err := intents.MarkResolved(ctx, intent.ID, now); err != nil {
			return err
		}
		if !updated {
			s.logg.Warn(ctx, "refunds.booking_already_settled")
			return nil
		}

		var amountCents int64
		if intent.AmountCents != nil {
			amountCents = *intent.AmountCents
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBookingRefunded,
			AggregateType: enums.AggregateBooking,
			AggregateID:   booking.ID,
			Actor:         &outbox.ActorRef{UserID: intent.RequestedBy},
			OccurredAt:    now,
			Data: payloads.BookingRefundedEvent{
				BookingID:       booking.ID,
				StudentID:       booking.StudentID,
				InstructorID:    booking.InstructorID,
				RefundID:        refundID,
				AmountCents:     amountCents,
				InstructorDebit: debit,
				Reason:          reason,
				RefundedAt:      now,
			},
		})
	})
	if err != nil {
		// processor already refunded: the intent stays processor_succeeded
		// and the reconciliation sweep retries the local write
		s.logg.Error(ctx, "refunds.finalize_failed", err)
		return pkgerrors.Ensure(err, pkgerrors.CodeDependency, "finalize refund")
	}
	s.logg.Info(ctx, "refunds.finalized")
	return nil
}

func resultFromIntent(intent *models.RefundIntent) *RefundResult {
	result := &RefundResult{AmountRefunded: decimal.Zero}
	if intent.StripeRefundID != nil {
		result.RefundID = *intent.StripeRefundID
	}
	if intent.RefundStatus != nil {
		result.RefundStatus = *intent.RefundStatus
	}
	if intent.AmountCents != nil {
		result.AmountRefunded = types.FromMinorUnits(*intent.AmountCents)
	}
	return result
}

// Reconcile finishes intents the processor accepted but the local write never
// committed, and retries stale pending intents with their original
// idempotency key. Intents past the attempt budget are abandoned as failed.
func (s *service) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var (
		report ReconcileReport
		errs   error
	)
	now := s.now()

	accepted, err := s.intents.ListByStatus(ctx, enums.RefundIntentProcessorSucceeded, now, s.batchSize)
	if err != nil {
		return report, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list processor_succeeded intents")
	}
	for _, intent := range accepted {
		intentCtx := s.logg.WithField(ctx, "refund_intent_id", intent.ID.String())
		if err := s.finalize(intentCtx, intent.ID); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		report.Finalized++
	}

	stale, err := s.intents.ListByStatus(ctx, enums.RefundIntentPending, now.Add(-s.staleAfter), s.batchSize)
	if err != nil {
		return report, multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale intents"))
	}
	for i := range stale {
		intent := &stale[i]
		intentCtx := s.logg.WithField(ctx, "refund_intent_id", intent.ID.String())
		if intent.AttemptCount >= s.maxAttempts {
			if err := s.intents.MarkFailed(intentCtx, intent.ID, "max refund attempts exceeded", now); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			s.logg.Warn(intentCtx, "refunds.intent_abandoned")
			report.Abandoned++
			continue
		}

		booking, err := s.bookings.FindByID(intentCtx, intent.BookingID)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if checkErr := checkRefundable(booking); checkErr != nil {
			if err := s.intents.MarkFailed(intentCtx, intent.ID, checkErr.Error(), now); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			report.Abandoned++
			continue
		}
		if err := s.callProcessor(intentCtx, booking, intent); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := s.finalize(intentCtx, intent.ID); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		report.Retried++
	}
	return report, errs
}

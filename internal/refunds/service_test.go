package refunds

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/vrumi/vrumi-backend/internal/bookings"
	"github.com/vrumi/vrumi-backend/internal/ledger"
	"github.com/vrumi/vrumi-backend/pkg/db/dbtest"
	"github.com/vrumi/vrumi-backend/pkg/db/models"
	"github.com/vrumi/vrumi-backend/pkg/enums"
	pkgerrors "github.com/vrumi/vrumi-backend/pkg/errors"
	"github.com/vrumi/vrumi-backend/pkg/logger"
	"github.com/vrumi/vrumi-backend/pkg/outbox"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type stubStripe struct {
	mu     sync.Mutex
	calls  []*stripe.RefundParams
	amount int64
	err    error
}

func (s *stubStripe) Create(ctx context.Context, params *stripe.RefundParams) (*stripe.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, params)
	if s.err != nil {
		return nil, s.err
	}
	return &stripe.Refund{
		ID:     "re_" + *params.IdempotencyKey,
		Status: stripe.RefundStatusSucceeded,
		Amount: s.amount,
	}, nil
}

func (s *stubStripe) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type harness struct {
	db       *gorm.DB
	svc      Service
	stripe   *stubStripe
	bookings *bookings.Repository
	intents  *IntentRepository
	ledger   ledger.Service
}

func (h *harness) intentsFor(t *testing.T, bookingID uuid.UUID) []models.RefundIntent {
	t.Helper()
	var rows []models.RefundIntent
	require.NoError(t, h.db.Where("booking_id = ?", bookingID).Order("created_at ASC").Find(&rows).Error)
	return rows
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn), decimal.RequireFromString("0.15"))
	require.NoError(t, err)

	h := &harness{
		db:       conn,
		stripe:   &stubStripe{amount: 12000},
		bookings: bookings.NewRepository(conn),
		intents:  NewIntentRepository(conn),
		ledger:   ledgerSvc,
	}
	h.svc, err = NewService(ServiceParams{
		Bookings:          h.bookings,
		Intents:           h.intents,
		Ledger:            ledgerSvc,
		Stripe:            h.stripe,
		Outbox:            outbox.NewService(outbox.NewRepository(conn), logg),
		TransactionRunner: gormTxRunner{db: conn},
		Logger:            logg,
		StaleAfter:        10 * time.Minute,
		MaxAttempts:       3,
	})
	require.NoError(t, err)
	return h
}

func (h *harness) seedBooking(t *testing.T, status enums.PaymentStatus, paymentIntent string, instructor *uuid.UUID) *models.Booking {
	t.Helper()
	booking := &models.Booking{
		StudentID:     uuid.New(),
		InstructorID:  instructor,
		Price:         decimal.RequireFromString("120.00"),
		PaymentStatus: status,
		Status:        enums.BookingStatusScheduled,
		ScheduledAt:   time.Now().UTC().Add(72 * time.Hour),
	}
	if paymentIntent != "" {
		booking.StripePaymentIntentID = &paymentIntent
	}
	require.NoError(t, h.bookings.Create(context.Background(), booking))
	return booking
}

func TestRefundCompletesSaga(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	instructorID := uuid.New()
	booking := h.seedBooking(t, enums.PaymentStatusCompleted, "pi_123", &instructorID)

	result, err := h.svc.Refund(ctx, RefundInput{
		BookingID: booking.ID,
		Reason:    "Imprevisto",
		CallerID:  booking.StudentID,
	})
	require.NoError(t, err)
	assert.True(t, result.AmountRefunded.Equal(decimal.NewFromInt(120)))
	assert.Equal(t, "succeeded", result.RefundStatus)

	require.Equal(t, 1, h.stripe.callCount())
	params := h.stripe.calls[0]
	assert.Equal(t, "pi_123", *params.PaymentIntent)
	assert.Equal(t, string(stripe.RefundReasonRequestedByCustomer), *params.Reason)
	assert.Equal(t, booking.ID.String(), params.Metadata["booking_id"])

	intents := h.intentsFor(t, booking.ID)
	require.Len(t, intents, 1)
	assert.Equal(t, enums.RefundIntentResolved, intents[0].Status)
	assert.Equal(t, IdempotencyKey(booking.ID, intents[0].ID), *params.IdempotencyKey)
	assert.Equal(t, "re_"+intents[0].IdempotencyKey, result.RefundID)

	stored, err := h.bookings.FindByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusRefunded, stored.PaymentStatus)
	assert.Equal(t, enums.BookingStatusCancelled, stored.Status)
	require.NotNil(t, stored.CancellationReason)
	assert.Equal(t, "Imprevisto", *stored.CancellationReason)

	entries, err := h.ledger.ListByInstructor(ctx, instructorID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Amount.Equal(decimal.RequireFromString("-102")), "got %s", entries[0].Amount)

	var events []models.OutboxEvent
	require.NoError(t, h.db.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventBookingRefunded, events[0].EventType)
}

func TestRefundWithoutInstructorSkipsLedger(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	booking := h.seedBooking(t, enums.PaymentStatusCompleted, "pi_456", nil)

	_, err := h.svc.Refund(ctx, RefundInput{BookingID: booking.ID, CallerID: uuid.New(), CallerIsAdmin: true})
	require.NoError(t, err)

	var count int64
	require.NoError(t, h.db.Model(&models.InstructorTransaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRefundPreconditionsNeverCallProcessor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	instructorID := uuid.New()
	paid := h.seedBooking(t, enums.PaymentStatusCompleted, "pi_1", &instructorID)
	pending := h.seedBooking(t, enums.PaymentStatusPending, "pi_2", nil)
	refunded := h.seedBooking(t, enums.PaymentStatusRefunded, "pi_3", nil)
	noIntent := h.seedBooking(t, enums.PaymentStatusCompleted, "", nil)

	cases := []struct {
		name  string
		input RefundInput
		code  pkgerrors.Code
	}{
		{name: "unknown booking", input: RefundInput{BookingID: uuid.New(), CallerID: uuid.New()}, code: pkgerrors.CodeNotFound},
		{name: "stranger", input: RefundInput{BookingID: paid.ID, CallerID: uuid.New()}, code: pkgerrors.CodeForbidden},
		{name: "payment pending", input: RefundInput{BookingID: pending.ID, CallerID: pending.StudentID}, code: pkgerrors.CodeStateConflict},
		{name: "already refunded", input: RefundInput{BookingID: refunded.ID, CallerID: refunded.StudentID}, code: pkgerrors.CodeStateConflict},
		{name: "missing payment intent", input: RefundInput{BookingID: noIntent.ID, CallerID: noIntent.StudentID}, code: pkgerrors.CodeStateConflict},
		{name: "missing booking id", input: RefundInput{CallerID: uuid.New()}, code: pkgerrors.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.Refund(ctx, tc.input)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed, "expected typed error, got %v", err)
			assert.Equal(t, tc.code, typed.Code())
		})
	}
	assert.Zero(t, h.stripe.callCount())

	var count int64
	require.NoError(t, h.db.Model(&models.RefundIntent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRefundInstructorMayRefund(t *testing.T) {
	h := newHarness(t)
	instructorID := uuid.New()
	booking := h.seedBooking(t, enums.PaymentStatusCompleted, "pi_9", &instructorID)

	_, err := h.svc.Refund(context.Background(), RefundInput{BookingID: booking.ID, CallerID: instructorID})
	require.NoError(t, err)
}

func TestRefundProcessorFailureSurfacesRawMessage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	booking := h.seedBooking(t, enums.PaymentStatusCompleted, "pi_err", nil)
	h.stripe.err = errors.New("Charge ch_1 has already been refunded.")

	_, err := h.svc.Refund(ctx, RefundInput{BookingID: booking.ID, CallerID: booking.StudentID})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeUpstream, typed.Code())
	assert.Equal(t, "Charge ch_1 has already been refunded.", typed.Message())

	stored, err := h.bookings.FindByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, stored.PaymentStatus)

	// a failed intent is terminal; the next request opens a fresh one
	h.stripe.err = nil
	_, err = h.svc.Refund(ctx, RefundInput{BookingID: booking.ID, CallerID: booking.StudentID})
	require.NoError(t, err)

	intents := h.intentsFor(t, booking.ID)
	require.Len(t, intents, 2)
	statuses := []enums.RefundIntentStatus{intents[0].Status, intents[1].Status}
	assert.ElementsMatch(t, []enums.RefundIntentStatus{enums.RefundIntentFailed, enums.RefundIntentResolved}, statuses)
	assert.NotEqual(t, intents[0].IdempotencyKey, intents[1].IdempotencyKey)
}

func TestReconcile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	old := time.Now().UTC().Add(-time.Hour)

	accepted := h.seedBooking(t, enums.PaymentStatusCompleted, "pi_a", nil)
	acceptedIntentID := uuid.New()
	refundID := "re_accepted"
	refundStatus := "succeeded"
	amount := int64(12000)
	require.NoError(t, h.intents.Create(ctx, &models.RefundIntent{
		ID:             acceptedIntentID,
		BookingID:      accepted.ID,
		RequestedBy:    accepted.StudentID,
		IdempotencyKey: IdempotencyKey(accepted.ID, acceptedIntentID),
		Status:         enums.RefundIntentProcessorSucceeded,
		StripeRefundID: &refundID,
		RefundStatus:   &refundStatus,
		AmountCents:    &amount,
		UpdatedAt:      old,
	}))

	stale := h.seedBooking(t, enums.PaymentStatusCompleted, "pi_b", nil)
	staleIntentID := uuid.New()
	staleKey := IdempotencyKey(stale.ID, staleIntentID)
	require.NoError(t, h.intents.Create(ctx, &models.RefundIntent{
		ID:             staleIntentID,
		BookingID:      stale.ID,
		RequestedBy:    stale.StudentID,
		IdempotencyKey: staleKey,
		Status:         enums.RefundIntentPending,
		AttemptCount:   1,
		UpdatedAt:      old,
	}))

	exhausted := h.seedBooking(t, enums.PaymentStatusCompleted, "pi_c", nil)
	exhaustedIntentID := uuid.New()
	require.NoError(t, h.intents.Create(ctx, &models.RefundIntent{
		ID:             exhaustedIntentID,
		BookingID:      exhausted.ID,
		RequestedBy:    exhausted.StudentID,
		IdempotencyKey: IdempotencyKey(exhausted.ID, exhaustedIntentID),
		Status:         enums.RefundIntentPending,
		AttemptCount:   3,
		UpdatedAt:      old,
	}))

	report, err := h.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Finalized: 1, Retried: 1, Abandoned: 1}, report)

	require.Equal(t, 1, h.stripe.callCount())
	assert.Equal(t, staleKey, *h.stripe.calls[0].IdempotencyKey)

	for _, id := range []uuid.UUID{accepted.ID, stale.ID} {
		stored, err := h.bookings.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, enums.PaymentStatusRefunded, stored.PaymentStatus)
	}
	stored, err := h.bookings.FindByID(ctx, exhausted.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, stored.PaymentStatus)

	abandoned, err := h.intents.FindByID(ctx, exhaustedIntentID)
	require.NoError(t, err)
	assert.Equal(t, enums.RefundIntentFailed, abandoned.Status)

	// a second sweep has nothing left to do
	report, err = h.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{}, report)
}

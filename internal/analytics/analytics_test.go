package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/vrumi/vrumi-backend/pkg/enums"
	"github.com/vrumi/vrumi-backend/pkg/logger"
	"github.com/vrumi/vrumi-backend/pkg/outbox"
	"github.com/vrumi/vrumi-backend/pkg/outbox/idempotency"
	"github.com/vrumi/vrumi-backend/pkg/outbox/payloads"
)

type memoryStore struct {
	keys map[string]bool
}

func (m *memoryStore) Get(context.Context, string) (string, error) { return "", nil }

func (m *memoryStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

type recordingWriter struct {
	rows []RevenueEventRow
	err  error
}

func (w *recordingWriter) Insert(_ context.Context, row RevenueEventRow) error {
	if w.err != nil {
		return w.err
	}
	w.rows = append(w.rows, row)
	return nil
}

type flakyInserter struct {
	errs  []error
	calls int
}

func (f *flakyInserter) InsertRows(context.Context, string, []any) error {
	f.calls++
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func envelope(t *testing.T, data any) outbox.PayloadEnvelope {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Data:       raw,
	}
}

func newTestConsumer(t *testing.T, writer rowWriter) (*Consumer, *memoryStore) {
	t.Helper()
	store := &memoryStore{keys: map[string]bool{}}
	manager, err := idempotency.NewManager(store, time.Hour)
	require.NoError(t, err)
	return &Consumer{
		writer:      writer,
		idempotency: manager,
		logg:        logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	}, store
}

func TestBuildRowPassGranted(t *testing.T) {
	userID := uuid.New()
	env := envelope(t, payloads.PassGrantedEvent{
		PassID:    uuid.New(),
		UserID:    userID,
		PassType:  enums.PassTypeFamily90,
		Price:     "49.95",
		SessionID: "cs_test_1",
	})

	row, err := BuildRow(enums.EventPassGranted, env)
	require.NoError(t, err)
	require.Equal(t, env.EventID, row.EventID)
	require.Equal(t, int64(4995), row.GrossRevenueCents)
	require.Equal(t, int64(4995), row.NetRevenueCents)
	require.Equal(t, "BRL", row.Currency)
	require.Equal(t, userID.String(), *row.UserID)
	require.Equal(t, "cs_test_1", *row.SessionID)
	require.True(t, row.Payload.Valid)
	require.True(t, env.OccurredAt.Equal(row.OccurredAt))
}

func TestBuildRowBookingRefunded(t *testing.T) {
	instructor := uuid.New()
	refundedAt := time.Date(2025, 3, 2, 9, 30, 0, 0, time.UTC)
	env := envelope(t, payloads.BookingRefundedEvent{
		BookingID:    uuid.New(),
		StudentID:    uuid.New(),
		InstructorID: &instructor,
		RefundID:     "re_1",
		AmountCents:  15000,
		RefundedAt:   refundedAt,
	})

	row, err := BuildRow(enums.EventBookingRefunded, env)
	require.NoError(t, err)
	require.Equal(t, int64(15000), row.RefundCents)
	require.Equal(t, int64(-15000), row.NetRevenueCents)
	require.Equal(t, instructor.String(), *row.InstructorID)
	require.True(t, refundedAt.Equal(row.OccurredAt))
}

func TestBuildRowRejectsBadInput(t *testing.T) {
	_, err := BuildRow(enums.EventFamilyBeneficiaryUnresolved, outbox.PayloadEnvelope{})
	require.ErrorIs(t, err, ErrUnsupportedEventType)

	_, err = BuildRow(enums.EventPassGranted, envelope(t, map[string]any{"price": "abc"}))
	require.Error(t, err)
}

func TestConsumerInsertsOnceAndSkipsRedelivery(t *testing.T) {
	writer := &recordingWriter{}
	consumer, _ := newTestConsumer(t, writer)
	env := envelope(t, payloads.CouponRedeemedEvent{CouponID: uuid.New(), Code: "BEMVINDO10", UserID: uuid.New(), SessionID: "cs_1"})
	data, err := json.Marshal(env)
	require.NoError(t, err)
	attrs := map[string]string{"event_type": string(enums.EventCouponRedeemed)}

	require.True(t, consumer.handle(context.Background(), "m1", attrs, data))
	require.True(t, consumer.handle(context.Background(), "m2", attrs, data))
	require.Len(t, writer.rows, 1)
	require.Equal(t, "BEMVINDO10", *writer.rows[0].CouponCode)
}

func TestConsumerAcksUnsupportedAndMalformed(t *testing.T) {
	writer := &recordingWriter{}
	consumer, _ := newTestConsumer(t, writer)

	require.True(t, consumer.handle(context.Background(), "m1", map[string]string{"event_type": "family_beneficiary_unresolved"}, []byte(`{}`)))
	require.True(t, consumer.handle(context.Background(), "m2", map[string]string{"event_type": "pass_granted"}, []byte(`not json`)))
	require.Empty(t, writer.rows)
}

func TestConsumerNacksAndReleasesOnInsertFailure(t *testing.T) {
	writer := &recordingWriter{err: errors.New("bigquery unavailable")}
	consumer, store := newTestConsumer(t, writer)
	env := envelope(t, payloads.PassGrantedEvent{UserID: uuid.New(), PassType: enums.PassTypeIndividual30, Price: "29.90"})
	data, err := json.Marshal(env)
	require.NoError(t, err)

	ok := consumer.handle(context.Background(), "m1", map[string]string{"event_type": "pass_granted"}, data)
	require.False(t, ok)
	require.Empty(t, store.keys, "marker should be released for redelivery")
}

func TestWriterRetriesTransientErrors(t *testing.T) {
	inserter := &flakyInserter{errs: []error{&googleapi.Error{Code: http.StatusServiceUnavailable}}}
	writer, err := NewWriter(inserter, "revenue_events", RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaximumBackoff: time.Millisecond})
	require.NoError(t, err)

	require.NoError(t, writer.Insert(context.Background(), RevenueEventRow{EventID: "evt"}))
	require.Equal(t, 2, inserter.calls)
}

func TestWriterStopsOnPermanentErrors(t *testing.T) {
	inserter := &flakyInserter{errs: []error{&googleapi.Error{Code: http.StatusBadRequest}}}
	writer, err := NewWriter(inserter, "revenue_events", RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond})
	require.NoError(t, err)

	require.Error(t, writer.Insert(context.Background(), RevenueEventRow{EventID: "evt"}))
	require.Equal(t, 1, inserter.calls)
}

func TestWriterGivesUpAfterMaxAttempts(t *testing.T) {
	unavailable := &googleapi.Error{Code: http.StatusServiceUnavailable}
	inserter := &flakyInserter{errs: []error{unavailable, unavailable, unavailable}}
	writer, err := NewWriter(inserter, "revenue_events", RetryPolicy{MaxAttempts: 2, InitialBackoff: time.Millisecond})
	require.NoError(t, err)

	err = writer.Insert(context.Background(), RevenueEventRow{EventID: "evt"})
	require.ErrorIs(t, err, unavailable)
	require.Equal(t, 2, inserter.calls)
}

func TestWriterBatchSkipsEmpty(t *testing.T) {
	inserter := &flakyInserter{}
	writer, err := NewWriter(inserter, "revenue_events", RetryPolicy{})
	require.NoError(t, err)

	require.NoError(t, writer.InsertBatch(context.Background(), nil))
	require.Zero(t, inserter.calls)
}

func TestRetryPolicyDelay(t *testing.T) {
	policy := RetryPolicy{InitialBackoff: 100 * time.Millisecond, MaximumBackoff: 300 * time.Millisecond}.withDefaults()
	require.Equal(t, 3, policy.MaxAttempts)
	require.Equal(t, 100*time.Millisecond, policy.delay(1))
	require.Equal(t, 200*time.Millisecond, policy.delay(2))
	require.Equal(t, 300*time.Millisecond, policy.delay(3))
	require.Equal(t, 300*time.Millisecond, policy.delay(10))
}

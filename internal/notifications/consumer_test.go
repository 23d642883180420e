package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/vrumi/vrumi-backend/pkg/db/models"
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

func (m *memoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
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

type recordingRepo struct {
	rows []models.Notification
	err  error
}

func (r *recordingRepo) Create(ctx context.Context, n *models.Notification) error {
	if r.err != nil {
		return r.err
	}
	r.rows = append(r.rows, *n)
	return nil
}

func newTestConsumer(t *testing.T, repo repository) (*Consumer, *memoryStore) {
	t.Helper()
	store := &memoryStore{keys: map[string]bool{}}
	manager, err := idempotency.NewManager(store, time.Hour)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return &Consumer{
		repo:        repo,
		idempotency: manager,
		logg:        logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	}, store
}

func domainMessage(t *testing.T, eventType enums.OutboxEventType, data any) *pubsub.Message {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	envelope, err := json.Marshal(outbox.PayloadEnvelope{Version: 1, EventID: uuid.NewString(), Data: raw})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &pubsub.Message{
		ID:         "msg-1",
		Data:       envelope,
		Attributes: map[string]string{"event_type": string(eventType)},
	}
}

func TestConsumerPassGrantedOnce(t *testing.T) {
	repo := &recordingRepo{}
	consumer, _ := newTestConsumer(t, repo)
	purchaser := uuid.New()
	beneficiary := uuid.New()
	msg := domainMessage(t, enums.EventPassGranted, payloads.PassGrantedEvent{
		PassID:      uuid.New(),
		UserID:      beneficiary,
		PurchaserID: purchaser,
		PassType:    enums.PassTypeFamily90,
		ExpiresAt:   time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
	})

	if res := consumer.process(context.Background(), msg); !res.ack {
		t.Fatalf("expected ack, got %+v", res)
	}
	if res := consumer.process(context.Background(), msg); !res.ack {
		t.Fatalf("expected ack on redelivery, got %+v", res)
	}
	if len(repo.rows) != 1 {
		t.Fatalf("expected one notification, got %d", len(repo.rows))
	}
	got := repo.rows[0]
	if got.UserID != beneficiary {
		t.Fatalf("expected beneficiary recipient, got %s", got.UserID)
	}
	if !strings.Contains(got.Body, "Passe Família") || !strings.Contains(got.Body, "30/06/2026") {
		t.Fatalf("unexpected body %q", got.Body)
	}
}

func TestConsumerBookingRefundedNotifiesBothSides(t *testing.T) {
	repo := &recordingRepo{}
	consumer, _ := newTestConsumer(t, repo)
	instructor := uuid.New()
	msg := domainMessage(t, enums.EventBookingRefunded, payloads.BookingRefundedEvent{
		BookingID:    uuid.New(),
		StudentID:    uuid.New(),
		InstructorID: &instructor,
		AmountCents:  12000,
	})

	if res := consumer.process(context.Background(), msg); !res.ack {
		t.Fatalf("expected ack, got %+v", res)
	}
	if len(repo.rows) != 2 {
		t.Fatalf("expected student and instructor notifications, got %d", len(repo.rows))
	}
	if !strings.Contains(repo.rows[0].Body, "R$ 120,00") {
		t.Fatalf("expected formatted amount, got %q", repo.rows[0].Body)
	}
	if repo.rows[1].UserID != instructor {
		t.Fatalf("expected instructor recipient, got %s", repo.rows[1].UserID)
	}
}

func TestConsumerSkipsUnrelatedEvents(t *testing.T) {
	repo := &recordingRepo{}
	consumer, store := newTestConsumer(t, repo)
	msg := domainMessage(t, enums.EventCouponRedeemed, payloads.CouponRedeemedEvent{Code: "X"})

	if res := consumer.process(context.Background(), msg); !res.ack {
		t.Fatalf("expected ack, got %+v", res)
	}
	if len(repo.rows) != 0 || len(store.keys) != 0 {
		t.Fatal("unrelated events must not be marked or stored")
	}
}

func TestConsumerReleasesMarkerOnFailure(t *testing.T) {
	repo := &recordingRepo{err: errors.New("db down")}
	consumer, store := newTestConsumer(t, repo)
	msg := domainMessage(t, enums.EventFamilyBeneficiaryUnresolved, payloads.FamilyBeneficiaryUnresolvedEvent{
		PurchaserID:     uuid.New(),
		SecondUserEmail: "irmao@vrumi.test",
	})

	if res := consumer.process(context.Background(), msg); !res.nack {
		t.Fatalf("expected nack, got %+v", res)
	}
	if len(store.keys) != 0 {
		t.Fatal("expected idempotency marker released for redelivery")
	}
}

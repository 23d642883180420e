package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrumi/vrumi-backend/pkg/db/dbtest"
	"github.com/vrumi/vrumi-backend/pkg/db/models"
	"github.com/vrumi/vrumi-backend/pkg/enums"
	"github.com/vrumi/vrumi-backend/pkg/outbox/payloads"
)

func TestEmitWritesEnvelope(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	passID := uuid.New()
	actor := &ActorRef{UserID: uuid.New(), Role: "student"}
	err := svc.Emit(context.Background(), db, DomainEvent{
		EventType:     enums.EventPassGranted,
		AggregateType: enums.AggregatePass,
		AggregateID:   passID,
		Actor:         actor,
		Data:          payloads.PassGrantedEvent{PassID: passID, PassType: enums.PassTypeIndividual30},
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, passID, rows[0].AggregateID)
	assert.Equal(t, enums.EventPassGranted, rows[0].EventType)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, actor.UserID, envelope.Actor.UserID)

	var data payloads.PassGrantedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, enums.PassTypeIndividual30, data.PassType)
}

func TestEmitRejectsUnknownTypesAndMissingTx(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)

	err := svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventPassGranted, AggregateType: enums.AggregatePass})
	assert.Error(t, err)

	err = svc.Emit(context.Background(), db, DomainEvent{EventType: "order_created", AggregateType: enums.AggregatePass, AggregateID: uuid.New()})
	assert.Error(t, err)

	err = svc.Emit(context.Background(), db, DomainEvent{EventType: enums.EventPassGranted, AggregateType: enums.AggregatePass})
	assert.Error(t, err, "aggregate id is required")

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitStampsOccurredAt(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("BRT", -3*3600))
	svc.now = func() time.Time { return fixed }

	require.NoError(t, svc.Emit(context.Background(), db, DomainEvent{
		EventType:     enums.EventPassGranted,
		AggregateType: enums.AggregatePass,
		AggregateID:   uuid.New(),
		Data:          payloads.PassGrantedEvent{},
	}))

	var row models.OutboxEvent
	require.NoError(t, db.First(&row).Error)
	envelope, err := DecodeEnvelope(row.Payload)
	require.NoError(t, err)
	assert.True(t, envelope.OccurredAt.Equal(fixed))
	assert.Equal(t, time.UTC, envelope.OccurredAt.Location())
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)

	first := models.OutboxEvent{
		EventType:     enums.EventCouponRedeemed,
		AggregateType: enums.AggregateCoupon,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		CreatedAt:     time.Now().UTC().Add(-2 * time.Minute),
	}
	second := models.OutboxEvent{
		EventType:     enums.EventBookingRefunded,
		AggregateType: enums.AggregateBooking,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		CreatedAt:     time.Now().UTC().Add(-time.Minute),
	}
	exhausted := models.OutboxEvent{
		EventType:     enums.EventBookingRefunded,
		AggregateType: enums.AggregateBooking,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		AttemptCount:  5,
	}
	for _, row := range []models.OutboxEvent{first, second, exhausted} {
		require.NoError(t, repo.Insert(db, row))
	}

	rows, err := repo.FetchUnpublishedForPublish(db, 10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, first.AggregateID, rows[0].AggregateID)

	require.NoError(t, repo.MarkPublishedTx(db, rows[0].ID))
	require.NoError(t, repo.MarkFailedTx(db, rows[1].ID, errors.New("pubsub unavailable")))

	rows, err = repo.FetchUnpublishedForPublish(db, 10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].AttemptCount)
	require.NotNil(t, rows[0].LastError)
	assert.Equal(t, "pubsub unavailable", *rows[0].LastError)

	require.NoError(t, repo.MarkTerminalTx(db, rows[0].ID, errors.New("bad payload"), 5))
	rows, err = repo.FetchUnpublishedForPublish(db, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRepositoryDeletePublishedBefore(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)

	old := time.Now().UTC().Add(-40 * 24 * time.Hour)
	recent := time.Now().UTC().Add(-time.Hour)
	for _, publishedAt := range []*time.Time{&old, &recent, nil} {
		row := models.OutboxEvent{
			EventType:     enums.EventPassGranted,
			AggregateType: enums.AggregatePass,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			PublishedAt:   publishedAt,
		}
		require.NoError(t, repo.Insert(db, row))
	}

	deleted, err := repo.DeletePublishedBefore(db, time.Now().UTC().Add(-30*24*time.Hour), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&remaining).Error)
	assert.Equal(t, int64(2), remaining)
}

func TestDLQRepositoryTruncatesMessage(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewDLQRepository(db)

	long := make([]byte, maxDLQErrorLen+100)
	for i := range long {
		long[i] = 'x'
	}
	msg := string(long)
	eventID := uuid.New()
	require.NoError(t, repo.InsertTx(db, models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventPassGranted,
		AggregateType: enums.AggregatePass,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.OutboxDLQReasonUnresolvable,
		ErrorMessage:  &msg,
	}))

	stored, err := repo.FindByEventID(context.Background(), eventID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.NotNil(t, stored.ErrorMessage)
	assert.Len(t, *stored.ErrorMessage, maxDLQErrorLen)

	missing, err := repo.FindByEventID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDLQRepositoryReplaysRetryableEntries(t *testing.T) {
	db := dbtest.Open(t)
	events := NewRepository(db)
	dlq := NewDLQRepository(db)

	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventPassGranted,
		AggregateType: enums.AggregatePass,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
	}
	require.NoError(t, events.Insert(db, event))
	require.NoError(t, events.MarkTerminalTx(db, event.ID, errors.New("topic not found"), 5))

	now := time.Now().UTC()
	entries := []struct {
		eventID  uuid.UUID
		reason   enums.OutboxDLQErrorReason
		failedAt time.Time
	}{
		{eventID: event.ID, reason: enums.OutboxDLQReasonTopicMissing, failedAt: now.Add(-2 * time.Hour)},
		{eventID: uuid.New(), reason: enums.OutboxDLQReasonUnresolvable, failedAt: now.Add(-2 * time.Hour)},
		{eventID: uuid.New(), reason: enums.OutboxDLQReasonMaxAttempts, failedAt: now.Add(-10 * time.Minute)},
	}
	for _, e := range entries {
		require.NoError(t, dlq.InsertTx(db, models.OutboxDLQ{
			EventID:       e.eventID,
			EventType:     enums.EventPassGranted,
			AggregateType: enums.AggregatePass,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			ErrorReason:   e.reason,
			FailedAt:      e.failedAt,
		}))
	}

	replayable, err := dlq.ListReplayableTx(db, now.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, replayable, 1)
	assert.Equal(t, event.ID, replayable[0].EventID)

	requeued, err := dlq.ReplayTx(db, replayable[0])
	require.NoError(t, err)
	assert.True(t, requeued)

	pending, err := events.FetchUnpublishedForPublish(db, 10, 5)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Zero(t, pending[0].AttemptCount)
	assert.Nil(t, pending[0].LastError)

	stored, err := dlq.FindByEventID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestDLQRepositoryRejectsUnknownReason(t *testing.T) {
	db := dbtest.Open(t)
	err := NewDLQRepository(db).InsertTx(db, models.OutboxDLQ{
		EventID:     uuid.New(),
		ErrorReason: enums.OutboxDLQErrorReason("non_retryable"),
	})
	require.Error(t, err)
}

package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vrumi/vrumi-backend/pkg/enums"
)

// EnvelopeVersion is the newest envelope layout this build understands.
const EnvelopeVersion = 1

var ErrPayloadMissing = errors.New("envelope data missing")

// ActorRef identifies who produced the event.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role,omitempty"`
}

// StudentActor is the actor for purchases and refunds a student initiated.
func StudentActor(userID uuid.UUID) *ActorRef {
	return &ActorRef{UserID: userID, Role: enums.UserRoleStudent.String()}
}

// PayloadEnvelope is the stable payload structure stored in outbox_events
// and published as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses raw and rejects envelopes from a newer producer or
// without a usable event id, since consumers key idempotency on it.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.Version < 1 || envelope.Version > EnvelopeVersion {
		return PayloadEnvelope{}, fmt.Errorf("unsupported envelope version %d", envelope.Version)
	}
	if _, err := uuid.Parse(envelope.EventID); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("invalid envelope event id %q: %w", envelope.EventID, err)
	}
	return envelope, nil
}

// DecodeData unmarshals the event payload into dest.
func (e PayloadEnvelope) DecodeData(dest any) error {
	trimmed := bytes.TrimSpace(e.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ErrPayloadMissing
	}
	return json.Unmarshal(trimmed, dest)
}

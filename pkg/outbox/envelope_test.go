package outbox

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope(t *testing.T) {
	id := uuid.NewString()
	envelope, err := DecodeEnvelope([]byte(`{"version":1,"eventId":"` + id + `","data":{"code":"PROMO"}}`))
	require.NoError(t, err)
	assert.Equal(t, id, envelope.EventID)

	var data struct {
		Code string `json:"code"`
	}
	require.NoError(t, envelope.DecodeData(&data))
	assert.Equal(t, "PROMO", data.Code)
}

func TestDecodeEnvelopeRejects(t *testing.T) {
	cases := map[string]string{
		"not json":       `{"version":`,
		"future version": `{"version":2,"eventId":"` + uuid.NewString() + `"}`,
		"no version":     `{"eventId":"` + uuid.NewString() + `"}`,
		"bad event id":   `{"version":1,"eventId":"evt_123"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeEnvelope([]byte(raw))
			require.Error(t, err)
		})
	}
}

func TestDecodeDataMissing(t *testing.T) {
	var dest map[string]any
	err := PayloadEnvelope{Data: []byte(" null ")}.DecodeData(&dest)
	assert.True(t, errors.Is(err, ErrPayloadMissing))
	assert.ErrorIs(t, PayloadEnvelope{}.DecodeData(&dest), ErrPayloadMissing)
}

package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/vrumi/vrumi-backend/pkg/errors"
	"github.com/vrumi/vrumi-backend/pkg/types"
)

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) types.APIError {
	t.Helper()
	var envelope types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	return envelope.Error
}

func TestWriteSuccessWrapsData(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccessStatus(rec, http.StatusCreated, map[string]bool{"success": true})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"success":true}}`, rec.Body.String())
}

func TestWriteErrorBodies(t *testing.T) {
	upstream := errors.New("Charge ch_123 has already been refunded.")

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    pkgerrors.Code
		wantMessage string
		wantTitle   string
	}{
		{
			name:        "client error echoes its message",
			err:         pkgerrors.New(pkgerrors.CodeValidation, "invalid pass type").WithDetails(map[string]string{"field": "passType"}),
			wantStatus:  http.StatusBadRequest,
			wantCode:    pkgerrors.CodeValidation,
			wantMessage: "invalid pass type",
			wantTitle:   "Dados Inválidos",
		},
		{
			name:        "untyped error hides its cause",
			err:         errors.New("boom"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    pkgerrors.CodeInternal,
			wantMessage: "internal server error",
			wantTitle:   "Erro",
		},
		{
			name:        "upstream error surfaces the processor text",
			err:         pkgerrors.Wrap(pkgerrors.CodeUpstream, upstream, "create refund"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    pkgerrors.CodeUpstream,
			wantMessage: upstream.Error(),
		},
		{
			name:        "blank message falls back to the public one",
			err:         pkgerrors.New(pkgerrors.CodeForbidden, ""),
			wantStatus:  http.StatusForbidden,
			wantCode:    pkgerrors.CodeForbidden,
			wantMessage: "access denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(context.Background(), nil, rec, tt.err)

			require.Equal(t, tt.wantStatus, rec.Code)
			apiErr := decodeAPIError(t, rec)
			assert.Equal(t, string(tt.wantCode), apiErr.Code)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			if tt.wantTitle != "" {
				assert.Equal(t, tt.wantTitle, apiErr.Title)
			}
		})
	}
}

func TestWriteErrorKeepsDetailsAndRetryable(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec,
		pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{"couponCode": "is required"}))

	apiErr := decodeAPIError(t, rec)
	assert.Equal(t, map[string]any{"couponCode": "is required"}, apiErr.Details)
	assert.False(t, apiErr.Retryable, "client errors are not retryable")
}

func TestWriteErrorEchoesRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set(types.RequestIDHeader, "req-42")
	WriteError(context.Background(), nil, rec, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found"))

	assert.Equal(t, "req-42", decodeAPIError(t, rec).RequestID)
}

func TestWriteSuccessFallsBackWhenPayloadCannotEncode(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]any{"bad": make(chan int)})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeInternal), decodeAPIError(t, rec).Code)
}

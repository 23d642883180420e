package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"

	pkgerrors "github.com/vrumi/vrumi-backend/pkg/errors"
)

// idempotencyRecord is the value stored under an idempotency key. A pending
// record holds only the request fingerprint.
type idempotencyRecord struct {
	Pending     bool   `json:"pending,omitempty"`
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

func pendingRecord(fingerprint string) idempotencyRecord {
	return idempotencyRecord{Pending: true, RequestHash: fingerprint}
}

func (r idempotencyRecord) encode() string {
	raw, _ := json.Marshal(r)
	return string(raw)
}

// conflict reports why a stored record cannot be replayed for this request.
func (r idempotencyRecord) conflict(fingerprint string) error {
	if r.RequestHash != fingerprint {
		return pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body")
	}
	if r.Pending {
		return pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is in progress")
	}
	return nil
}

func (r idempotencyRecord) replay(w http.ResponseWriter) {
	if r.ContentType != "" {
		w.Header().Set("Content-Type", r.ContentType)
	}
	w.Header().Set(idempotencyReplayHeader, "true")
	w.WriteHeader(r.Status)
	_, _ = w.Write(r.Body)
}

// responseCapture tees the handler's response so it can be stored.
type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func (c *responseCapture) record(fingerprint string) idempotencyRecord {
	return idempotencyRecord{
		RequestHash: fingerprint,
		Status:      c.statusCode(),
		ContentType: c.Header().Get("Content-Type"),
		Body:        c.body.Bytes(),
	}
}

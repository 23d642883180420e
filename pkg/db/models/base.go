package models

import "github.com/google/uuid"

// ensureID assigns a v4 id when the caller has not set one. Postgres also
// defaults ids server-side; the hook keeps sqlite-backed tests and batch
// inserts consistent.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

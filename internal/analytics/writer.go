package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/vrumi/vrumi-backend/pkg/bigquery"
)

// RetryPolicy bounds how long a transient BigQuery failure is retried.
// Zero values fall back to 3 attempts with 250ms doubling up to 2s.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 250 * time.Millisecond
	}
	if p.MaximumBackoff < p.InitialBackoff {
		p.MaximumBackoff = max(2*time.Second, p.InitialBackoff)
	}
	return p
}

// delay returns the wait before the given retry (1-based).
func (p RetryPolicy) delay(retry int) time.Duration {
	d := p.InitialBackoff
	for i := 1; i < retry && d < p.MaximumBackoff; i++ {
		d *= 2
	}
	return min(d, p.MaximumBackoff)
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// Writer streams revenue rows into one BigQuery table.
type Writer struct {
	client tableInserter
	table  string
	retry  RetryPolicy
}

func NewWriter(client tableInserter, table string, retry RetryPolicy) (*Writer, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, errors.New("revenue table is required")
	}
	return &Writer{client: client, table: table, retry: retry.withDefaults()}, nil
}

// Insert writes a single row.
func (w *Writer) Insert(ctx context.Context, row RevenueEventRow) error {
	return w.InsertBatch(ctx, []RevenueEventRow{row})
}

// InsertBatch writes rows keyed by event id so BigQuery drops duplicates
// from a retried request.
func (w *Writer) InsertBatch(ctx context.Context, rows []RevenueEventRow) error {
	if len(rows) == 0 {
		return nil
	}
	savers := make([]any, len(rows))
	for i := range rows {
		savers[i] = &cbigquery.StructSaver{Struct: &rows[i], InsertID: rows[i].EventID}
	}

	for attempt := 1; ; attempt++ {
		err := w.client.InsertRows(ctx, w.table, savers)
		if err == nil {
			return nil
		}
		if attempt >= w.retry.MaxAttempts || !bigquery.IsRetryable(err) {
			return fmt.Errorf("insert %d rows into %s: %w", len(rows), w.table, err)
		}

		timer := time.NewTimer(w.retry.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

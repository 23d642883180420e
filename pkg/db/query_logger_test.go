package db

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vrumi/vrumi-backend/pkg/logger"
)

func TestQueryLoggerDiscardsWithoutLogger(t *testing.T) {
	if newQueryLogger(nil, time.Second) != gormlogger.Discard {
		t.Fatal("expected discard logger")
	}
}

func TestQueryLoggerTrace(t *testing.T) {
	sqlFn := func() (string, int64) { return "SELECT 1", 1 }

	tests := []struct {
		name    string
		begin   time.Time
		err     error
		wantMsg string
	}{
		{name: "fast and clean", begin: time.Now()},
		{name: "not found is quiet", begin: time.Now(), err: gorm.ErrRecordNotFound},
		{name: "failure", begin: time.Now(), err: errors.New("relation missing"), wantMsg: "db.query_failed"},
		{name: "slow", begin: time.Now().Add(-time.Second), wantMsg: "db.slow_query"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logg := logger.New(logger.Options{ServiceName: "db-test", Output: &buf})
			ql := newQueryLogger(logg, 100*time.Millisecond)

			ql.Trace(context.Background(), tt.begin, sqlFn, tt.err)

			out := buf.String()
			if tt.wantMsg == "" {
				if out != "" {
					t.Fatalf("expected no output, got %s", out)
				}
				return
			}
			if !strings.Contains(out, tt.wantMsg) || !strings.Contains(out, "SELECT 1") {
				t.Fatalf("expected %s with sql, got %s", tt.wantMsg, out)
			}
		})
	}
}

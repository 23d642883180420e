package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerCarriesContextFields(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "api", Output: &buf})

	ctx := logg.WithRequestID(context.Background(), "req-1")
	ctx = logg.WithFields(ctx, map[string]any{"pass_type": "family_90_days"})
	logg.Info(ctx, "pass.granted")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["request_id"] != "req-1" {
		t.Fatalf("expected request_id, got %v", entry["request_id"])
	}
	if entry["pass_type"] != "family_90_days" {
		t.Fatalf("expected pass_type, got %v", entry["pass_type"])
	}
	if entry["service"] != "api" {
		t.Fatalf("expected service field, got %v", entry["service"])
	}
}

func TestLoggerErrorIncludesStack(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "api", Output: &buf})

	logg.Error(context.Background(), "refund.failed", errors.New("boom"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["error"] != "boom" {
		t.Fatalf("expected error field, got %v", entry["error"])
	}
	if _, ok := entry["stack"]; !ok {
		t.Fatal("expected stack on error entries")
	}
}

func TestParseLevel(t *testing.T) {
	if got := ParseLevel("DEBUG"); got != zerolog.DebugLevel {
		t.Fatalf("expected debug, got %v", got)
	}
	if got := ParseLevel(""); got != zerolog.InfoLevel {
		t.Fatalf("expected info for blank, got %v", got)
	}
	if got := ParseLevel("nonsense"); got != zerolog.InfoLevel {
		t.Fatalf("expected info fallback, got %v", got)
	}
}

func TestLoggerMasksEmails(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "api", Format: FormatJSON, Output: &buf})

	ctx := logg.WithField(context.Background(), "second_user_email", "maria@vrumi.com.br")
	logg.Warn(ctx, "passes.family_beneficiary_unresolved")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["second_user_email"] != "m***@vrumi.com.br" {
		t.Fatalf("expected masked email, got %v", entry["second_user_email"])
	}
}

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"joao@gmail.com": "j***@gmail.com",
		"not-an-email":   "***",
		"":               "",
		"@domain.com":    "***",
	}
	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoggerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "api", Format: FormatJSON, Output: &buf, Fields: map[string]any{"instance": "web.1"}})

	ctx := logg.WithFields(context.Background(), map[string]any{
		"refresh_token": "eyJhbGciOi",
		"Authorization": "Bearer abc",
		"coupon_code":   "VRUMI10",
	})
	logg.Info(ctx, "auth.refreshed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["refresh_token"] != redacted || entry["Authorization"] != redacted {
		t.Fatalf("expected secrets redacted, got %v / %v", entry["refresh_token"], entry["Authorization"])
	}
	if entry["coupon_code"] != "VRUMI10" {
		t.Fatalf("unexpected coupon_code %v", entry["coupon_code"])
	}
	if entry["instance"] != "web.1" {
		t.Fatalf("expected static field, got %v", entry["instance"])
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "api", Level: zerolog.WarnLevel, Output: &buf})

	logg.Info(context.Background(), "quiet")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %s", buf.String())
	}
	logg.Warn(context.Background(), "loud")
	if buf.Len() == 0 {
		t.Fatal("expected warn entry")
	}
}

func TestWithFieldOnNilContext(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "api", Output: &buf})

	ctx := logg.WithField(nil, "job", "outbox-retention")
	logg.Info(ctx, "cron.job_completed")
	if !bytes.Contains(buf.Bytes(), []byte(`"job":"outbox-retention"`)) {
		t.Fatalf("expected field on entry, got %s", buf.String())
	}
}

func TestNilLoggerDiscards(t *testing.T) {
	var logg *Logger
	ctx := logg.WithField(context.Background(), "user_id", "u-1")
	if ctx == nil {
		t.Fatal("expected a usable context")
	}
	logg.Info(ctx, "ignored")
	logg.Warn(ctx, "ignored")
	logg.Error(ctx, "ignored", errors.New("boom"))
}

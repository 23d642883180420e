package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/vrumi/vrumi-backend/pkg/migrate"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	if err := migrate.ValidateFS(migrate.Embedded()); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
	entries, err := os.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	embedded, err := fs.ReadDir(migrate.Embedded(), ".")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(embedded) != len(entries) {
		t.Fatalf("embedded %d migrations, directory has %d", len(embedded), len(entries))
	}
}

func TestPaymentMigrationsCarryConstraints(t *testing.T) {
	cases := map[string][]string{
		"*_create_user_passes.sql": {
			"CREATE TABLE IF NOT EXISTS user_passes",
			"CHECK (pass_type IN ('individual_30_days', 'individual_90_days', 'family_90_days'))",
			"WHERE payment_status = 'completed'",
			"DROP TABLE IF EXISTS user_passes",
		},
		"*_create_coupons.sql": {
			"CONSTRAINT coupons_code_key UNIQUE (code)",
			"CONSTRAINT coupon_redemptions_session_key UNIQUE (stripe_session_id)",
		},
		"*_create_refund_intents.sql": {
			"CONSTRAINT refund_intents_idempotency_key_key UNIQUE (idempotency_key)",
			"refund_intents_open_booking_idx",
		},
		"*_create_eventing_tables.sql": {
			"event_id text PRIMARY KEY",
			"CREATE TABLE IF NOT EXISTS outbox_events",
		},
	}

	for pattern, checks := range cases {
		matches, err := filepath.Glob(filepath.Join("migrations", pattern))
		if err != nil {
			t.Fatalf("glob migrations: %v", err)
		}
		if len(matches) != 1 {
			t.Fatalf("expected one migration for %s, got %d", pattern, len(matches))
		}
		data, err := os.ReadFile(matches[0])
		if err != nil {
			t.Fatalf("read migration file: %v", err)
		}
		content := string(data)
		for _, sub := range checks {
			if !strings.Contains(content, sub) {
				t.Errorf("%s: missing expected statement %q", matches[0], sub)
			}
		}
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()

	path, err := migrate.CreateSQLMigration(dir, "Add Coupon Owner!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_coupon_owner.sql") {
		t.Fatalf("unexpected migration path %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_bad.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename error")
	}
}

func TestCreateSQLMigrationBumpsCollidingVersion(t *testing.T) {
	dir := t.TempDir()
	future := filepath.Join(dir, "29991231235959_from_the_future.sql")
	if err := os.WriteFile(future, []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	path, err := migrate.CreateSQLMigration(dir, "next")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if filepath.Base(path) != "29991231235960_next.sql" {
		t.Fatalf("expected version after the newest file, got %s", filepath.Base(path))
	}
}

func TestValidateFSRejectsDownBeforeUp(t *testing.T) {
	source := fstest.MapFS{
		"20260101000000_swapped.sql": {Data: []byte("-- +goose Down\n-- +goose Up\n")},
	}
	if err := migrate.ValidateFS(source); err == nil {
		t.Fatal("expected ordering error")
	}
}

func TestValidateDirRejectsEmpty(t *testing.T) {
	if err := migrate.ValidateDir(t.TempDir()); err == nil {
		t.Fatal("expected empty dir error")
	}
}

// Package dbtest opens isolated sqlite databases carrying the service schema
// for repository and service tests.
package dbtest

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// schema mirrors the goose migrations in sqlite dialect.
var schema = []string{
	`CREATE TABLE profiles (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  full_name TEXT,
  created_at DATETIME
);`,
	`CREATE TABLE user_roles (
  user_id TEXT NOT NULL,
  role TEXT NOT NULL,
  created_at DATETIME,
  PRIMARY KEY (user_id, role)
);`,
	`CREATE TABLE user_passes (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  pass_type TEXT NOT NULL,
  price NUMERIC NOT NULL,
  payment_status TEXT NOT NULL,
  expires_at DATETIME NOT NULL,
  purchased_at DATETIME NOT NULL,
  stripe_session_id TEXT,
  stripe_event_id TEXT,
  coupon_code TEXT
);`,
	`CREATE TABLE coupons (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  discount_type TEXT NOT NULL,
  discount_value NUMERIC NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  expires_at DATETIME,
  max_uses INTEGER,
  used_count INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME
);`,
	`CREATE TABLE coupon_redemptions (
  id TEXT PRIMARY KEY,
  coupon_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  stripe_session_id TEXT NOT NULL,
  redeemed_at DATETIME,
  CONSTRAINT coupon_redemptions_session_key UNIQUE (stripe_session_id)
);`,
	`CREATE TABLE bookings (
  id TEXT PRIMARY KEY,
  student_id TEXT NOT NULL,
  instructor_id TEXT,
  price NUMERIC NOT NULL,
  payment_status TEXT NOT NULL,
  stripe_payment_intent_id TEXT,
  status TEXT NOT NULL,
  cancellation_reason TEXT,
  cancelled_at DATETIME,
  scheduled_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE instructor_transactions (
  id TEXT PRIMARY KEY,
  instructor_id TEXT NOT NULL,
  booking_id TEXT,
  type TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  description TEXT NOT NULL,
  stripe_refund_id TEXT,
  created_at DATETIME
);`,
	`CREATE TABLE refund_intents (
  id TEXT PRIMARY KEY,
  booking_id TEXT NOT NULL,
  requested_by TEXT NOT NULL,
  idempotency_key TEXT NOT NULL UNIQUE,
  reason TEXT,
  status TEXT NOT NULL,
  stripe_refund_id TEXT,
  refund_status TEXT,
  amount_cents INTEGER,
  last_error TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME,
  resolved_at DATETIME
);`,
	`CREATE TABLE processed_webhook_events (
  event_id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  processed_at DATETIME NOT NULL
);`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	`CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
);`,
	`CREATE TABLE notifications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  title TEXT NOT NULL,
  body TEXT NOT NULL,
  link TEXT,
  read_at DATETIME,
  created_at DATETIME
);`,
}

// Open returns a fresh in-memory database with every table created. Each
// call gets its own database so parallel tests never share rows.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	// a single connection keeps the shared-cache db alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return conn
}

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	Passes       PassesConfig
	Connect      ConnectConfig
	Entitlements EntitlementsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Connect.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VRUMI_APP_ENV" required:"true"`
	Port         string `envconfig:"VRUMI_APP_PORT" required:"true"`
	PublicURL    string `envconfig:"VRUMI_APP_PUBLIC_URL" default:"http://localhost:5173"`
	LogLevel     string `envconfig:"VRUMI_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VRUMI_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VRUMI_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"VRUMI_DB_DSN"`
	Driver string `envconfig:"VRUMI_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VRUMI_DB_HOST"`
	LegacyPort     int    `envconfig:"VRUMI_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VRUMI_DB_USER"`
	LegacyPassword string `envconfig:"VRUMI_DB_PASSWORD"`
	LegacyName     string `envconfig:"VRUMI_DB_NAME"`
	LegacySSLMode  string `envconfig:"VRUMI_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VRUMI_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VRUMI_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VRUMI_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VRUMI_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"VRUMI_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VRUMI_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VRUMI_REDIS_ADDR"`
	Password     string        `envconfig:"VRUMI_REDIS_PASSWORD"`
	DB           int           `envconfig:"VRUMI_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VRUMI_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VRUMI_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VRUMI_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VRUMI_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VRUMI_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies access tokens minted by the hosted auth provider.
type JWTConfig struct {
	Secret   string `envconfig:"VRUMI_JWT_SECRET" required:"true"`
	Issuer   string `envconfig:"VRUMI_JWT_ISSUER" required:"true"`
	Audience string `envconfig:"VRUMI_JWT_AUDIENCE" default:"authenticated"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"VRUMI_CORS_ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:8080"`
	MaxAgeSeconds  int      `envconfig:"VRUMI_CORS_MAX_AGE_SECONDS" default:"300"`
}

// RateLimitConfig holds the per-endpoint fixed windows.
type RateLimitConfig struct {
	Backend string `envconfig:"VRUMI_RATE_LIMIT_BACKEND" default:"memory"`

	CheckoutWindow time.Duration `envconfig:"VRUMI_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutLimit  int           `envconfig:"VRUMI_RATE_LIMIT_CHECKOUT_LIMIT" default:"5"`
	RefundWindow   time.Duration `envconfig:"VRUMI_RATE_LIMIT_REFUND_WINDOW" default:"1h"`
	RefundLimit    int           `envconfig:"VRUMI_RATE_LIMIT_REFUND_LIMIT" default:"3"`
	CouponWindow   time.Duration `envconfig:"VRUMI_RATE_LIMIT_COUPON_WINDOW" default:"1m"`
	CouponLimit    int           `envconfig:"VRUMI_RATE_LIMIT_COUPON_LIMIT" default:"10"`
	SweepInterval  time.Duration `envconfig:"VRUMI_RATE_LIMIT_SWEEP_INTERVAL" default:"5m"`
}

func (r RateLimitConfig) UsesRedis() bool {
	return strings.EqualFold(strings.TrimSpace(r.Backend), RateLimitBackendRedis)
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"VRUMI_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey     string `envconfig:"VRUMI_STRIPE_API_KEY"`
	Secret     string `envconfig:"VRUMI_STRIPE_SECRET"`
	Env        string `envconfig:"VRUMI_STRIPE_ENV" default:"test"`
	Currency   string `envconfig:"VRUMI_STRIPE_CURRENCY" default:"brl"`
	SuccessURL string `envconfig:"VRUMI_STRIPE_SUCCESS_URL" default:"http://localhost:5173/pagamento/sucesso?session_id={CHECKOUT_SESSION_ID}"`
	CancelURL  string `envconfig:"VRUMI_STRIPE_CANCEL_URL" default:"http://localhost:5173/planos"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// PassesConfig overrides catalog prices. Empty values keep the built-in table.
type PassesConfig struct {
	Individual30Price string `envconfig:"VRUMI_PASS_INDIVIDUAL_30_PRICE"`
	Individual90Price string `envconfig:"VRUMI_PASS_INDIVIDUAL_90_PRICE"`
	Family90Price     string `envconfig:"VRUMI_PASS_FAMILY_90_PRICE"`
}

type ConnectConfig struct {
	PlatformFeeRate string `envconfig:"VRUMI_CONNECT_PLATFORM_FEE_RATE" default:"0.15"`
}

// PlatformFee parses the configured fee rate. Load has already validated it.
func (c ConnectConfig) PlatformFee() decimal.Decimal {
	rate, err := decimal.NewFromString(strings.TrimSpace(c.PlatformFeeRate))
	if err != nil {
		return decimal.RequireFromString(DefaultPlatformFeeRate)
	}
	return rate
}

func (c ConnectConfig) validate() error {
	raw := strings.TrimSpace(c.PlatformFeeRate)
	if raw == "" {
		return nil
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("%s must be a decimal: %w", EnvConnectPlatformFee, err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be in [0, 1)", EnvConnectPlatformFee)
	}
	return nil
}

type EntitlementsConfig struct {
	RecheckInterval time.Duration `envconfig:"VRUMI_ENTITLEMENT_RECHECK_INTERVAL" default:"1m"`
	StreamHeartbeat time.Duration `envconfig:"VRUMI_ENTITLEMENT_STREAM_HEARTBEAT" default:"25s"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL  time.Duration `envconfig:"VRUMI_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	WebhookIdempotencyTTL time.Duration `envconfig:"VRUMI_EVENTING_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
	WebhookEventRetention time.Duration `envconfig:"VRUMI_WEBHOOK_EVENT_RETENTION" default:"2160h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"VRUMI_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"VRUMI_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"VRUMI_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic           string `envconfig:"VRUMI_PUBSUB_DOMAIN_TOPIC" default:"vrumi-domain-events"`
	DomainSubscription    string `envconfig:"VRUMI_PUBSUB_DOMAIN_SUBSCRIPTION"`
	AnalyticsSubscription string `envconfig:"VRUMI_PUBSUB_ANALYTICS_SUBSCRIPTION"`
}

type BigQueryConfig struct {
	Dataset            string `envconfig:"VRUMI_BIGQUERY_DATASET"`
	RevenueEventsTable string `envconfig:"VRUMI_BIGQUERY_REVENUE_TABLE" default:"revenue_events"`
}

// AnalyticsEnabled reports whether the revenue analytics sink is configured.
func (c *Config) AnalyticsEnabled() bool {
	return strings.TrimSpace(c.BigQuery.Dataset) != "" && strings.TrimSpace(c.PubSub.AnalyticsSubscription) != ""
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"VRUMI_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"VRUMI_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"VRUMI_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int           `envconfig:"VRUMI_OUTBOX_RETENTION_DAYS" default:"30"`
	DLQReplayAfter time.Duration `envconfig:"VRUMI_OUTBOX_DLQ_REPLAY_AFTER" default:"1h"`
}

type CronConfig struct {
	Interval                  time.Duration `envconfig:"VRUMI_CRON_INTERVAL" default:"5m"`
	RefundStaleAfter          time.Duration `envconfig:"VRUMI_CRON_REFUND_STALE_AFTER" default:"10m"`
	RefundBatchSize           int           `envconfig:"VRUMI_CRON_REFUND_BATCH_SIZE" default:"25"`
	RefundMaxAttempts         int           `envconfig:"VRUMI_CRON_REFUND_MAX_ATTEMPTS" default:"5"`
	NotificationRetentionDays int           `envconfig:"VRUMI_CRON_NOTIFICATION_RETENTION_DAYS" default:"90"`
	MetricsAddr               string        `envconfig:"VRUMI_CRON_METRICS_ADDR" default:":9102"`
	LockTTL                   time.Duration `envconfig:"VRUMI_CRON_LOCK_TTL" default:"10m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

package config

const (
	EnvPrefix = "VRUMI"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"

	DefaultPlatformFeeRate = "0.15"
)

const (
	EnvAppEnv   = "VRUMI_APP_ENV"
	EnvPort     = "VRUMI_APP_PORT"
	EnvLogLevel = "VRUMI_LOG_LEVEL"

	EnvDBDSN  = "VRUMI_DB_DSN"
	EnvDBHost = "VRUMI_DB_HOST"
	EnvDBUser = "VRUMI_DB_USER"
	EnvDBName = "VRUMI_DB_NAME"

	EnvRedisURL = "VRUMI_REDIS_URL"

	EnvJWTSecret = "VRUMI_JWT_SECRET"
	EnvJWTIssuer = "VRUMI_JWT_ISSUER"

	EnvCORSAllowedOrigins = "VRUMI_CORS_ALLOWED_ORIGINS"
	EnvRateLimitBackend   = "VRUMI_RATE_LIMIT_BACKEND"

	EnvStripeAPIKey = "VRUMI_STRIPE_API_KEY"
	EnvStripeSecret = "VRUMI_STRIPE_SECRET"

	EnvConnectPlatformFee = "VRUMI_CONNECT_PLATFORM_FEE_RATE"

	EnvPubSubDomainTopic = "VRUMI_PUBSUB_DOMAIN_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

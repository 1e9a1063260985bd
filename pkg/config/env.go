package config

// EnvPrefix is passed to envconfig; every field carries its full variable name.
const EnvPrefix = "AURA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

const (
	EnvAppEnv   = "AURA_APP_ENV"
	EnvPort     = "AURA_APP_PORT"
	EnvLogLevel = "AURA_LOG_LEVEL"

	EnvDBDSN  = "AURA_DB_DSN"
	EnvDBHost = "AURA_DB_HOST"
	EnvDBUser = "AURA_DB_USER"
	EnvDBName = "AURA_DB_NAME"

	EnvRedisURL  = "AURA_REDIS_URL"
	EnvRedisAddr = "AURA_REDIS_ADDR"

	EnvJWTSecret   = "AURA_JWT_SECRET"
	EnvJWTIssuer   = "AURA_JWT_ISSUER"
	EnvJWTAudience = "AURA_JWT_AUDIENCE"

	EnvRevenueCatWebhookSecret = "AURA_REVENUECAT_WEBHOOK_SECRET"
	EnvRevenueCatAPIKey        = "AURA_REVENUECAT_API_KEY"

	EnvReferralRewardDays = "AURA_REFERRAL_REWARD_DAYS"

	EnvRateLimitBackend      = "AURA_RATE_LIMIT_BACKEND"
	EnvRateLimitRedeemLimit  = "AURA_RATE_LIMIT_REDEEM_LIMIT"
	EnvRateLimitRedeemWindow = "AURA_RATE_LIMIT_REDEEM_WINDOW"
	EnvRateLimitShareLimit   = "AURA_RATE_LIMIT_SHARE_LIMIT"

	EnvShareFallbackURL = "AURA_SHARE_FALLBACK_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

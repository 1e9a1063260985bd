package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RevenueCat   RevenueCatConfig
	Referral     ReferralConfig
	RateLimit    RateLimitConfig
	Share        ShareConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.RateLimit.validate(cfg.Redis); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"AURA_APP_ENV" required:"true"`
	Port         string `envconfig:"AURA_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"AURA_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"AURA_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"AURA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"AURA_DB_DSN"`

	LegacyHost     string `envconfig:"AURA_DB_HOST"`
	LegacyPort     int    `envconfig:"AURA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AURA_DB_USER"`
	LegacyPassword string `envconfig:"AURA_DB_PASSWORD"`
	LegacyName     string `envconfig:"AURA_DB_NAME"`
	LegacySSLMode  string `envconfig:"AURA_DB_SSLMODE" default:"require"`

	MaxOpenConns    int           `envconfig:"AURA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AURA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AURA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AURA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"AURA_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AURA_REDIS_URL"`
	Address      string        `envconfig:"AURA_REDIS_ADDR"`
	Password     string        `envconfig:"AURA_REDIS_PASSWORD"`
	DB           int           `envconfig:"AURA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AURA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AURA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AURA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AURA_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"AURA_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Configured reports whether enough settings exist to dial Redis.
func (r RedisConfig) Configured() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// JWTConfig describes how user bearer tokens are verified. Tokens are minted
// by the identity provider; the subject claim carries the user id.
type JWTConfig struct {
	Secret   string `envconfig:"AURA_JWT_SECRET" required:"true"`
	Issuer   string `envconfig:"AURA_JWT_ISSUER"`
	Audience string `envconfig:"AURA_JWT_AUDIENCE" default:"authenticated"`
}

type RevenueCatConfig struct {
	WebhookSecret string        `envconfig:"AURA_REVENUECAT_WEBHOOK_SECRET"`
	APIKey        string        `envconfig:"AURA_REVENUECAT_API_KEY"`
	BaseURL       string        `envconfig:"AURA_REVENUECAT_BASE_URL" default:"https://api.revenuecat.com"`
	EntitlementID string        `envconfig:"AURA_REVENUECAT_ENTITLEMENT_ID" default:"premium"`
	Timeout       time.Duration `envconfig:"AURA_REVENUECAT_TIMEOUT" default:"10s"`
}

type ReferralConfig struct {
	RewardDays int `envconfig:"AURA_REFERRAL_REWARD_DAYS" default:"7"`
}

// RewardDuration converts the configured reward days into a duration.
func (r ReferralConfig) RewardDuration() time.Duration {
	if r.RewardDays <= 0 {
		return 0
	}
	return time.Duration(r.RewardDays) * 24 * time.Hour
}

// RateLimitConfig selects the limiter backend and the two request policies.
// The memory backend only guards a single process.
type RateLimitConfig struct {
	Backend      string        `envconfig:"AURA_RATE_LIMIT_BACKEND" default:"memory"`
	RedeemLimit  int           `envconfig:"AURA_RATE_LIMIT_REDEEM_LIMIT" default:"5"`
	RedeemWindow time.Duration `envconfig:"AURA_RATE_LIMIT_REDEEM_WINDOW" default:"1m"`
	ShareLimit   int           `envconfig:"AURA_RATE_LIMIT_SHARE_LIMIT" default:"30"`
	ShareWindow  time.Duration `envconfig:"AURA_RATE_LIMIT_SHARE_WINDOW" default:"1m"`
}

// UsesRedis reports whether counters should live in Redis.
func (r RateLimitConfig) UsesRedis() bool {
	return strings.EqualFold(strings.TrimSpace(r.Backend), RateLimitBackendRedis)
}

func (r RateLimitConfig) validate(redis RedisConfig) error {
	backend := strings.ToLower(strings.TrimSpace(r.Backend))
	switch backend {
	case RateLimitBackendMemory:
		return nil
	case RateLimitBackendRedis:
		if !redis.Configured() {
			return fmt.Errorf("%s=redis requires %s or %s", EnvRateLimitBackend, EnvRedisURL, EnvRedisAddr)
		}
		return nil
	default:
		return fmt.Errorf("unsupported rate limit backend %q", r.Backend)
	}
}

type ShareConfig struct {
	ShareBaseURL string `envconfig:"AURA_SHARE_BASE_URL" default:"https://aura.xadev.com/share"`
	AppOpenURL   string `envconfig:"AURA_SHARE_APP_OPEN_URL" default:"https://aura.xadev.com/open"`
	FallbackURL  string `envconfig:"AURA_SHARE_FALLBACK_URL" default:"https://apps.apple.com/app/aura-horoscope/id0000000000"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"AURA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"AURA_AUTO_MIGRATE" default:"false"`
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

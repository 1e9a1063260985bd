package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Kopi-Koubou/aura-backend/pkg/config"
	"github.com/Kopi-Koubou/aura-backend/pkg/logger"
)

const keyPrefix = "aura:rate_limit"

var errNotConnected = errors.New("redis client not initialized")

// counters is the slice of the go-redis API the window counters need.
type counters interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	ExpireNX(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// Client keeps fixed-window counters shared by every API instance.
type Client struct {
	cmd    counters
	closer func() error
}

// New dials Redis and fails unless a PING succeeds. EXPIRE NX requires
// Redis 7 or newer.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"addr":      opts.Addr,
			"db":        opts.DB,
			"pool_size": opts.PoolSize,
		}), "redis connection established")
	}
	return &Client{cmd: rdb, closer: rdb.Close}, nil
}

// optionsFromConfig prefers AURA_REDIS_URL; explicit pool and timeout settings
// fill whatever the URL leaves unset.
func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	case cfg.Address != "":
		opts = &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	default:
		return nil, errors.New("redis url or address is required")
	}

	setIfZero(&opts.DB, cfg.DB)
	setIfZero(&opts.PoolSize, cfg.PoolSize)
	setIfZero(&opts.MinIdleConns, cfg.MinIdleConns)
	setIfZero(&opts.DialTimeout, cfg.DialTimeout)
	setIfZero(&opts.ReadTimeout, cfg.ReadTimeout)
	setIfZero(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func setIfZero[T comparable](dst *T, v T) {
	var zero T
	if *dst == zero {
		*dst = v
	}
}

// FixedWindowAllow counts one hit for scope and reports whether the count is
// still within limit. The window opens on the first hit; EXPIRE NX leaves a
// running window alone and restores one that lost its TTL.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if c.cmd == nil {
		return false, 0, errNotConnected
	}
	key := counterKey(scope)

	count, err := c.cmd.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("incr %s: %w", key, err)
	}
	if window > 0 {
		if err := c.cmd.ExpireNX(ctx, key, window).Err(); err != nil {
			return false, count, fmt.Errorf("expire %s: %w", key, err)
		}
	}
	return count <= limit, count, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c.cmd == nil {
		return errNotConnected
	}
	return c.cmd.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// counterKey keeps scope intact; IPv6 callers put colons in it.
func counterKey(scope string) string {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return keyPrefix
	}
	return keyPrefix + ":" + scope
}

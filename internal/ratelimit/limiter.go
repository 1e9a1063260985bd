// Package ratelimit throttles requests per caller key with fixed windows.
//
// Two backends exist. MemoryLimiter keeps counters inside the process and only
// protects a single instance; counters vanish on restart. RedisLimiter keeps
// counters in Redis so every instance of a horizontally scaled deployment
// enforces the same budget. The backend is chosen by configuration.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Kopi-Koubou/aura-backend/pkg/config"
)

const (
	PolicyReferralRedeem = "referral_redeem"
	PolicyTrackShare     = "track_share"
)

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Policy is a named request budget: at most Limit calls per Window per key.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

func (p Policy) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("policy name is required")
	}
	if p.Limit <= 0 {
		return fmt.Errorf("policy %s: limit must be positive", p.Name)
	}
	if p.Window <= 0 {
		return fmt.Errorf("policy %s: window must be positive", p.Name)
	}
	return nil
}

// Set holds one limiter per protected surface. Each limiter owns an isolated
// key space.
type Set struct {
	Redeem Limiter
	Share  Limiter
}

// Policies returns the redeem and share policies described by cfg.
func Policies(cfg config.RateLimitConfig) (Policy, Policy) {
	redeem := Policy{Name: PolicyReferralRedeem, Limit: cfg.RedeemLimit, Window: cfg.RedeemWindow}
	share := Policy{Name: PolicyTrackShare, Limit: cfg.ShareLimit, Window: cfg.ShareWindow}
	return redeem, share
}

// NewSet builds the limiters for the configured backend. store is only
// consulted for the redis backend.
func NewSet(cfg config.RateLimitConfig, store CounterStore) (*Set, error) {
	redeem, share := Policies(cfg)
	if err := redeem.validate(); err != nil {
		return nil, err
	}
	if err := share.validate(); err != nil {
		return nil, err
	}

	if cfg.UsesRedis() {
		if store == nil {
			return nil, errors.New("redis rate limit backend requires a redis client")
		}
		return &Set{
			Redeem: NewRedis(redeem, store),
			Share:  NewRedis(share, store),
		}, nil
	}

	return &Set{
		Redeem: NewMemory(redeem),
		Share:  NewMemory(share),
	}, nil
}

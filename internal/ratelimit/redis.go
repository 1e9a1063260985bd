package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// CounterStore is the shared counter surface, implemented by pkg/redis.Client.
type CounterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RedisLimiter enforces the policy across instances. Unlike MemoryLimiter it
// counts denied requests too (INCR runs first), which does not change any
// decision inside a window.
type RedisLimiter struct {
	policy Policy
	store  CounterStore
}

func NewRedis(policy Policy, store CounterStore) *RedisLimiter {
	return &RedisLimiter{policy: policy, store: store}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	allowed, _, err := l.store.FixedWindowAllow(ctx, l.policy.Name+":"+key, int64(l.policy.Limit), l.policy.Window)
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", l.policy.Name, err)
	}
	return allowed, nil
}

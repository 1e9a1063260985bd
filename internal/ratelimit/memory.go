package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a per-process fixed-window counter. It is safe for
// concurrent use.
type MemoryLimiter struct {
	policy Policy
	now    func() time.Time

	mu        sync.Mutex
	windows   map[string]*window
	lastSweep time.Time
}

// MemoryOption configures a MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

// WithClock injects the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

func NewMemory(policy Policy, opts ...MemoryOption) *MemoryLimiter {
	l := &MemoryLimiter{
		policy:  policy,
		now:     time.Now,
		windows: make(map[string]*window),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastSweep = l.now()
	return l
}

// Allow opens a new window when none exists or the previous one has ended.
// Requests over the limit are denied without being counted.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweepLocked(now)

	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		l.windows[key] = &window{count: 1, resetAt: now.Add(l.policy.Window)}
		return true, nil
	}
	if w.count >= l.policy.Limit {
		return false, nil
	}
	w.count++
	return true, nil
}

// sweepLocked drops ended windows at most once per policy window so idle keys
// do not accumulate.
func (l *MemoryLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.policy.Window {
		return
	}
	for key, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, key)
		}
	}
	l.lastSweep = now
}

func (l *MemoryLimiter) count(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok := l.windows[key]; ok {
		return w.count
	}
	return 0
}

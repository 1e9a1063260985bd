package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Kopi-Koubou/aura-backend/api/responses"
	"github.com/Kopi-Koubou/aura-backend/internal/ratelimit"
	pkgerrors "github.com/Kopi-Koubou/aura-backend/pkg/errors"
	"github.com/Kopi-Koubou/aura-backend/pkg/logger"
	"github.com/Kopi-Koubou/aura-backend/pkg/metrics"
)

// RateLimit throttles callers by authenticated user id, falling back to the
// client IP for anonymous requests. A nil limiter disables the guard.
//
// When the limiter backend fails the request is let through; an outage of the
// counter store must not take the growth endpoints down with it.
func RateLimit(policy string, limiter ratelimit.Limiter, m *metrics.Growth, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := callerKey(r)

			allowed, err := limiter.Allow(ctx, key)
			if err != nil {
				if logg != nil {
					logg.Error(logg.WithField(ctx, "policy", policy), "rate_limit.backend_failed", err)
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				m.IncRateLimitRejection(policy)
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{"policy": policy, "key": key}), "rate_limit.blocked")
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "Too many requests. Please try again later."))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func callerKey(r *http.Request) string {
	if userID := UserIDFromContext(r.Context()); userID != uuid.Nil {
		return "user:" + userID.String()
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

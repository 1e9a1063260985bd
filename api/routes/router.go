package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Kopi-Koubou/aura-backend/api/controllers"
	referralcontrollers "github.com/Kopi-Koubou/aura-backend/api/controllers/referrals"
	sharecontrollers "github.com/Kopi-Koubou/aura-backend/api/controllers/shares"
	subscriptioncontrollers "github.com/Kopi-Koubou/aura-backend/api/controllers/subscriptions"
	webhookcontrollers "github.com/Kopi-Koubou/aura-backend/api/controllers/webhooks"
	"github.com/Kopi-Koubou/aura-backend/api/middleware"
	"github.com/Kopi-Koubou/aura-backend/internal/ratelimit"
	"github.com/Kopi-Koubou/aura-backend/internal/referrals"
	"github.com/Kopi-Koubou/aura-backend/internal/shares"
	"github.com/Kopi-Koubou/aura-backend/internal/subscriptions"
	"github.com/Kopi-Koubou/aura-backend/pkg/config"
	"github.com/Kopi-Koubou/aura-backend/pkg/logger"
	"github.com/Kopi-Koubou/aura-backend/pkg/metrics"
)

// NewRouter wires every HTTP surface. redisP may be nil when the memory rate
// limit backend is in use.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisP controllers.Pinger,
	gatherer prometheus.Gatherer,
	growthMetrics *metrics.Growth,
	limiters *ratelimit.Set,
	referralService referrals.Service,
	subscriptionService subscriptions.Service,
	shareService shares.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, growthMetrics),
		middleware.CORS(),
	)

	var redeemLimiter, shareLimiter ratelimit.Limiter
	if limiters != nil {
		redeemLimiter, shareLimiter = limiters.Redeem, limiters.Share
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": dbP,
			"redis":    redisP,
		}))
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.With(middleware.WebhookSecret(cfg.RevenueCat.WebhookSecret, logg)).
		Post("/sync-subscription", webhookcontrollers.RevenueCatWebhook(subscriptionService, logg))

	r.Get("/track-share/{id}", sharecontrollers.Resolve(shareService))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.With(middleware.RateLimit(ratelimit.PolicyReferralRedeem, redeemLimiter, growthMetrics, logg)).
			Post("/referral-redeem", referralcontrollers.Redeem(referralService, logg))
		r.Get("/referral-code", referralcontrollers.GetCode(referralService, logg))

		r.With(middleware.RateLimit(ratelimit.PolicyTrackShare, shareLimiter, growthMetrics, logg)).
			Post("/track-share", sharecontrollers.Track(shareService, logg))

		r.Post("/validate-receipt", subscriptioncontrollers.ValidateReceipt(subscriptionService, logg))
	})

	return r
}

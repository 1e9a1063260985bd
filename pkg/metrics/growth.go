package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Growth records referral, subscription, share and rate-limit activity.
// A nil *Growth is valid and records nothing.
type Growth struct {
	redemptions      *prometheus.CounterVec
	rewardFailures   *prometheus.CounterVec
	webhookEvents    *prometheus.CounterVec
	sharesCreated    *prometheus.CounterVec
	shareClicks      *prometheus.CounterVec
	rateLimitRejects *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

// NewGrowth registers the growth metrics on the provided registerer.
func NewGrowth(reg prometheus.Registerer) *Growth {
	if reg == nil {
		return &Growth{}
	}
	g := &Growth{
		redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "referral_redemptions_total",
			Help: "Referral redemption attempts by outcome.",
		}, []string{"outcome"}),
		rewardFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "referral_reward_step_failures_total",
			Help: "Reward steps that failed after a redemption was recorded.",
		}, []string{"step"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "subscription_webhook_events_total",
			Help: "Billing webhook events by type and outcome.",
		}, []string{"type", "outcome"}),
		sharesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "share_events_created_total",
			Help: "Share links minted per platform.",
		}, []string{"platform"}),
		shareClicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "share_clicks_total",
			Help: "Share link clicks by resolution result.",
		}, []string{"result"}),
		rateLimitRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Requests rejected by a rate limit policy.",
		}, []string{"policy"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(
		g.redemptions,
		g.rewardFailures,
		g.webhookEvents,
		g.sharesCreated,
		g.shareClicks,
		g.rateLimitRejects,
		g.requestDuration,
	)
	return g
}

func (g *Growth) IncRedemption(outcome string) {
	if g == nil || g.redemptions == nil {
		return
	}
	g.redemptions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (g *Growth) IncRewardStepFailure(step string) {
	if g == nil || g.rewardFailures == nil {
		return
	}
	g.rewardFailures.WithLabelValues(normalizeLabel(step)).Inc()
}

func (g *Growth) IncWebhookEvent(eventType, outcome string) {
	if g == nil || g.webhookEvents == nil {
		return
	}
	g.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func (g *Growth) IncShareCreated(platform string) {
	if g == nil || g.sharesCreated == nil {
		return
	}
	g.sharesCreated.WithLabelValues(normalizeLabel(platform)).Inc()
}

func (g *Growth) IncShareClick(result string) {
	if g == nil || g.shareClicks == nil {
		return
	}
	g.shareClicks.WithLabelValues(normalizeLabel(result)).Inc()
}

func (g *Growth) IncRateLimitRejection(policy string) {
	if g == nil || g.rateLimitRejects == nil {
		return
	}
	g.rateLimitRejects.WithLabelValues(normalizeLabel(policy)).Inc()
}

// ObserveRequest records latency for a routed request. route should be the
// chi route pattern, never the raw path, to keep cardinality bounded.
func (g *Growth) ObserveRequest(method, route string, status int, duration time.Duration) {
	if g == nil || g.requestDuration == nil {
		return
	}
	g.requestDuration.
		WithLabelValues(method, normalizeLabel(route), strconv.Itoa(status)).
		Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

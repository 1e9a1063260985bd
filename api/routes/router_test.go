package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kopi-Koubou/aura-backend/internal/ratelimit"
	"github.com/Kopi-Koubou/aura-backend/internal/referrals"
	"github.com/Kopi-Koubou/aura-backend/internal/shares"
	"github.com/Kopi-Koubou/aura-backend/internal/subscriptions"
	pkgAuth "github.com/Kopi-Koubou/aura-backend/pkg/auth"
	"github.com/Kopi-Koubou/aura-backend/pkg/config"
	"github.com/Kopi-Koubou/aura-backend/pkg/db/models"
	"github.com/Kopi-Koubou/aura-backend/pkg/logger"
	"github.com/Kopi-Koubou/aura-backend/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubReferralService struct{ redeemed int }

func (s *stubReferralService) Redeem(context.Context, uuid.UUID, string) (*referrals.RedeemResult, error) {
	s.redeemed++
	return &referrals.RedeemResult{Message: "ok", PremiumGranted: true, PremiumDays: 7}, nil
}

func (s *stubReferralService) EnsureCode(context.Context, uuid.UUID) (*models.ReferralCode, error) {
	return &models.ReferralCode{Code: "AB3DEFGH"}, nil
}

type stubSubscriptionService struct{ events int }

func (s *stubSubscriptionService) HandleEvent(context.Context, *subscriptions.WebhookPayload, []byte) (subscriptions.Outcome, error) {
	s.events++
	return subscriptions.OutcomeApplied, nil
}

func (s *stubSubscriptionService) ValidateReceipt(context.Context, uuid.UUID, string) (*subscriptions.ReceiptResult, error) {
	return &subscriptions.ReceiptResult{}, nil
}

type stubShareService struct{}

func (stubShareService) CreateShare(context.Context, uuid.UUID, shares.CreateShareInput) (*shares.ShareLink, error) {
	return &shares.ShareLink{DeepLinkID: "Ab3dEf7h"}, nil
}

func (stubShareService) ResolveClick(_ context.Context, id string, _ shares.ClickContext) string {
	return "https://aura.xadev.com/open?ref=" + id
}

type fixture struct {
	handler       http.Handler
	referrals     *stubReferralService
	subscriptions *stubSubscriptionService
	token         string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cfg := &config.Config{
		App:        config.AppConfig{Env: "test"},
		JWT:        config.JWTConfig{Secret: "test-secret", Issuer: "aura"},
		RevenueCat: config.RevenueCatConfig{WebhookSecret: "whsec"},
		RateLimit: config.RateLimitConfig{
			Backend:      config.RateLimitBackendMemory,
			RedeemLimit:  5,
			RedeemWindow: time.Minute,
			ShareLimit:   30,
			ShareWindow:  time.Minute,
		},
	}
	limiters, err := ratelimit.NewSet(cfg.RateLimit, nil)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	referralSvc := &stubReferralService{}
	subscriptionSvc := &stubSubscriptionService{}

	handler := NewRouter(cfg, logger.Nop(), stubPinger{}, nil, reg, metrics.NewGrowth(reg), limiters, referralSvc, subscriptionSvc, stubShareService{})

	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), time.Hour, uuid.New())
	require.NoError(t, err)

	return fixture{handler: handler, referrals: referralSvc, subscriptions: subscriptionSvc, token: token}
}

func (f fixture) do(method, path, body, authorization string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthRoutes(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health/live", "", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health/ready", "", "").Code)
}

func TestUserRoutesRequireAuth(t *testing.T) {
	f := newFixture(t)
	cases := []struct{ method, path string }{
		{http.MethodPost, "/referral-redeem"},
		{http.MethodGet, "/referral-code"},
		{http.MethodPost, "/track-share"},
		{http.MethodPost, "/validate-receipt"},
	}
	for _, tc := range cases {
		rec := f.do(tc.method, tc.path, `{}`, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
	}
}

func TestRedeemIsRateLimited(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		rec := f.do(http.MethodPost, "/referral-redeem", `{"referral_code":"AB3DEFGH"}`, "Bearer "+f.token)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}
	rec := f.do(http.MethodPost, "/referral-redeem", `{"referral_code":"AB3DEFGH"}`, "Bearer "+f.token)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 5, f.referrals.redeemed)

	metricsRec := f.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, metricsRec.Code)
	assert.Contains(t, metricsRec.Body.String(), `rate_limit_rejections_total{policy="referral_redeem"} 1`)
	assert.Contains(t, metricsRec.Body.String(), `route="/referral-redeem"`)
}

func TestWebhookRequiresSecret(t *testing.T) {
	f := newFixture(t)
	body := `{"api_version":"1.0","event":{"type":"RENEWAL","app_user_id":"rc_1"}}`

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/sync-subscription", body, "Bearer "+f.token).Code)
	assert.Zero(t, f.subscriptions.events)

	rec := f.do(http.MethodPost, "/sync-subscription", body, "Bearer whsec")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.subscriptions.events)
}

func TestShareRedirectIsPublic(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/track-share/Ab3dEf7h", "", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://aura.xadev.com/open?ref=Ab3dEf7h", rec.Header().Get("Location"))
}

func TestPreflight(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/track-share", nil)
	req.Header.Set("Origin", "https://aura.xadev.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

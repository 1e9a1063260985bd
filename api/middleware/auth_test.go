package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Kopi-Koubou/aura-backend/pkg/auth"
	"github.com/Kopi-Koubou/aura-backend/pkg/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "issuer"}
	handler := Auth(cfg, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "issuer"}
	handler := Auth(cfg, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsTokenSignedWithOtherSecret(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "issuer"}
	token, err := auth.MintAccessToken(config.JWTConfig{Secret: "other", Issuer: "issuer"}, time.Now(), time.Hour, uuid.New())
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	handler := Auth(cfg, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthAllowsValidToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "issuer", Audience: "authenticated"}
	userID := uuid.New()
	token, err := auth.MintAccessToken(cfg, time.Now(), time.Hour, userID)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	var captured uuid.UUID
	handler := Auth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured != userID {
		t.Fatalf("expected user %s got %s", userID, captured)
	}
}

func TestWebhookSecret(t *testing.T) {
	cases := []struct {
		name   string
		secret string
		header string
		want   int
	}{
		{name: "match", secret: "whsec", header: "Bearer whsec", want: http.StatusOK},
		{name: "lowercase scheme", secret: "whsec", header: "bearer whsec", want: http.StatusOK},
		{name: "wrong", secret: "whsec", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "missing scheme", secret: "whsec", header: "whsec", want: http.StatusUnauthorized},
		{name: "missing header", secret: "whsec", header: "", want: http.StatusUnauthorized},
		{name: "unconfigured", secret: "", header: "Bearer ", want: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := WebhookSecret(tc.secret, nil)(okHandler())
			req := httptest.NewRequest(http.MethodPost, "/sync-subscription", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)
			if resp.Code != tc.want {
				t.Fatalf("expected %d got %d", tc.want, resp.Code)
			}
		})
	}
}

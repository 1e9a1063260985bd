package shares

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Kopi-Koubou/aura-backend/api/middleware"
	"github.com/Kopi-Koubou/aura-backend/api/responses"
	"github.com/Kopi-Koubou/aura-backend/api/validators"
	"github.com/Kopi-Koubou/aura-backend/internal/shares"
	pkgerrors "github.com/Kopi-Koubou/aura-backend/pkg/errors"
	"github.com/Kopi-Koubou/aura-backend/pkg/logger"
)

type trackRequest struct {
	ContentType   string          `json:"content_type"`
	ContentID     string          `json:"content_id"`
	SharePlatform string          `json:"share_platform"`
	UTMCampaign   string          `json:"utm_campaign"`
	Metadata      json.RawMessage `json:"metadata"`
}

type trackResponse struct {
	DeepLinkID  string `json:"deep_link_id"`
	ShareURL    string `json:"share_url"`
	UTMURL      string `json:"utm_url"`
	PlatformURL string `json:"platform_url,omitempty"`
}

// Track handles POST /track-share.
func Track(svc shares.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "share service unavailable"))
			return
		}

		var req trackRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		link, err := svc.CreateShare(ctx, middleware.UserIDFromContext(ctx), shares.CreateShareInput{
			ContentType:   validators.SanitizeString(req.ContentType, 64),
			ContentID:     validators.SanitizeString(req.ContentID, 256),
			SharePlatform: validators.SanitizeString(req.SharePlatform, 64),
			UTMCampaign:   validators.SanitizeString(req.UTMCampaign, 128),
			Metadata:      req.Metadata,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, trackResponse{
			DeepLinkID:  link.DeepLinkID,
			ShareURL:    link.ShareURL,
			UTMURL:      link.UTMURL,
			PlatformURL: link.PlatformURL,
		})
	}
}

// Resolve handles GET /track-share/{id}. It always redirects.
func Resolve(svc shares.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		location := svc.ResolveClick(r.Context(), chi.URLParam(r, "id"), shares.ClickContext{
			UserAgent: r.Header.Get("User-Agent"),
			Referrer:  r.Header.Get("Referer"),
			IPCountry: r.Header.Get("CF-IPCountry"),
		})
		responses.WriteRedirect(w, location)
	}
}

package shares

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kopi-Koubou/aura-backend/pkg/db"
	"github.com/Kopi-Koubou/aura-backend/pkg/db/models"
	"github.com/Kopi-Koubou/aura-backend/pkg/enums"
	pkgerrors "github.com/Kopi-Koubou/aura-backend/pkg/errors"
	"github.com/Kopi-Koubou/aura-backend/pkg/logger"
	"github.com/Kopi-Koubou/aura-backend/pkg/metrics"
)

const maxDeepLinkAttempts = 3

// Click results recorded on share_clicks_total.
const (
	ClickHit   = "hit"
	ClickMiss  = "miss"
	ClickError = "error"
)

type referralCodeFinder interface {
	FindActiveCodeByOwner(ctx context.Context, userID uuid.UUID) (*models.ReferralCode, error)
}

// Service mints share links and resolves their clicks.
type Service interface {
	CreateShare(ctx context.Context, userID uuid.UUID, input CreateShareInput) (*ShareLink, error)
	ResolveClick(ctx context.Context, deepLinkID string, click ClickContext) string
}

// ServiceParams groups dependencies for the share service.
type ServiceParams struct {
	Repo          Repository
	ReferralCodes referralCodeFinder
	ShareBaseURL  string
	AppOpenURL    string
	FallbackURL   string
	Logger        *logger.Logger
	Metrics       *metrics.Growth
	IDGenerator   func() (string, error)
}

// CreateShareInput is a validated-at-service-boundary share request.
type CreateShareInput struct {
	ContentType   string
	ContentID     string
	SharePlatform string
	UTMCampaign   string
	Metadata      json.RawMessage
}

// ShareLink is the set of URLs returned for a new share.
type ShareLink struct {
	DeepLinkID  string
	ShareURL    string
	UTMURL      string
	PlatformURL string
}

// ClickContext carries the request details stored with a click.
type ClickContext struct {
	UserAgent string
	Referrer  string
	IPCountry string
}

type service struct {
	repo         Repository
	codes        referralCodeFinder
	shareBaseURL string
	appOpenURL   string
	fallbackURL  string
	logg         *logger.Logger
	metrics      *metrics.Growth
	newID        func() (string, error)
}

// NewService builds a share service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("share repo required")
	}
	if params.ReferralCodes == nil {
		return nil, fmt.Errorf("referral code finder required")
	}
	for name, raw := range map[string]string{
		"share base url": params.ShareBaseURL,
		"app open url":   params.AppOpenURL,
		"fallback url":   params.FallbackURL,
	} {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%s must be an absolute url", name)
		}
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	newID := params.IDGenerator
	if newID == nil {
		newID = GenerateDeepLinkID
	}
	return &service{
		repo:         params.Repo,
		codes:        params.ReferralCodes,
		shareBaseURL: strings.TrimSpace(params.ShareBaseURL),
		appOpenURL:   strings.TrimSpace(params.AppOpenURL),
		fallbackURL:  strings.TrimSpace(params.FallbackURL),
		logg:         logg,
		metrics:      params.Metrics,
		newID:        newID,
	}, nil
}

func (s *service) CreateShare(ctx context.Context, userID uuid.UUID, input CreateShareInput) (*ShareLink, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Unauthorized")
	}
	if strings.TrimSpace(input.ContentType) == "" || strings.TrimSpace(input.SharePlatform) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content_type and share_platform are required")
	}
	contentType, err := enums.ParseShareContentType(strings.TrimSpace(input.ContentType))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid content_type")
	}
	platform, err := enums.ParseSharePlatform(strings.TrimSpace(input.SharePlatform))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid share_platform")
	}
	metadata, err := normalizeMetadata(input.Metadata)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithOperation(ctx, "share.create")

	// Shared links double as referral links when the caller has a code.
	code, err := s.codes.FindActiveCodeByOwner(ctx, userID)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "share.referral_code_lookup_failed")
		code = nil
	}

	campaign := strings.TrimSpace(input.UTMCampaign)
	if campaign == "" {
		campaign = DefaultCampaign(contentType)
	}
	event := &models.ShareEvent{
		UserID:        userID,
		ContentType:   contentType,
		ContentID:     optionalString(input.ContentID),
		SharePlatform: platform,
		UTMCampaign:   campaign,
		Metadata:      metadata,
	}
	if code != nil {
		event.ReferralCodeID = &code.ID
	}

	if err := s.insertWithFreshID(ctx, event); err != nil {
		return nil, err
	}

	shareURL := ShareURL(s.shareBaseURL, event.DeepLinkID)
	extra := url.Values{}
	if code != nil {
		extra.Set("ref", code.Code)
	}
	utmURL, err := BuildUTMURL(shareURL, platform, contentType, campaign, extra)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build share url")
	}

	s.metrics.IncShareCreated(platform.String())
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"deep_link_id":   event.DeepLinkID,
		"share_platform": platform.String(),
		"content_type":   contentType.String(),
	}), "share.created")

	return &ShareLink{
		DeepLinkID:  event.DeepLinkID,
		ShareURL:    shareURL,
		UTMURL:      utmURL,
		PlatformURL: PlatformURL(utmURL, platform),
	}, nil
}

// insertWithFreshID retries the insert when the deep link id collides with an
// existing row; the unique index is the only uniqueness check.
func (s *service) insertWithFreshID(ctx context.Context, event *models.ShareEvent) error {
	for attempt := 0; attempt < maxDeepLinkAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate deep link id")
		}
		event.ID = uuid.Nil
		event.DeepLinkID = id
		err = s.repo.CreateShareEvent(ctx, event)
		if err == nil {
			return nil
		}
		if !db.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "Failed to create share event")
		}
		s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt+1), "share.deep_link_collision")
	}
	return pkgerrors.New(pkgerrors.CodeInternal, "could not allocate a unique deep link id")
}

// ResolveClick returns where a click on deepLinkID should land. It never
// fails: unknown ids and store errors fall back to the app store listing.
func (s *service) ResolveClick(ctx context.Context, deepLinkID string, click ClickContext) string {
	ctx = s.logg.WithFields(s.logg.WithOperation(ctx, "share.resolve"), map[string]any{
		"deep_link_id": deepLinkID,
	})
	if !ValidDeepLinkID(deepLinkID) {
		s.metrics.IncShareClick(ClickMiss)
		return s.fallbackURL
	}

	event, err := s.repo.FindByDeepLinkID(ctx, deepLinkID)
	if err != nil {
		s.logg.Error(ctx, "share.lookup_failed", err)
		s.metrics.IncShareClick(ClickError)
		return s.fallbackURL
	}
	if event == nil {
		s.metrics.IncShareClick(ClickMiss)
		return s.fallbackURL
	}

	// Attribution failures are logged; the visitor is still redirected.
	if err := s.repo.IncrementClickCount(ctx, event.ID); err != nil {
		s.logg.Error(ctx, "share.click_count_failed", err)
	}
	if err := s.repo.CreateClickEvent(ctx, &models.ShareClickEvent{
		ShareEventID: event.ID,
		UserAgent:    optionalString(click.UserAgent),
		Referrer:     optionalString(click.Referrer),
		IPCountry:    optionalString(click.IPCountry),
		CreatedAt:    time.Now().UTC(),
	}); err != nil {
		s.logg.Error(ctx, "share.click_event_failed", err)
	}

	extra := url.Values{
		"ref":  {event.DeepLinkID},
		"type": {event.ContentType.String()},
	}
	if event.ContentID != nil {
		extra.Set("id", *event.ContentID)
	}
	if event.ReferralCode != nil && event.ReferralCode.IsActive {
		extra.Set("referral", event.ReferralCode.Code)
	}
	target, err := BuildUTMURL(s.appOpenURL, event.SharePlatform, event.ContentType, event.UTMCampaign, extra)
	if err != nil {
		s.logg.Error(ctx, "share.redirect_build_failed", err)
		s.metrics.IncShareClick(ClickError)
		return s.fallbackURL
	}
	s.metrics.IncShareClick(ClickHit)
	return target
}

func normalizeMetadata(raw json.RawMessage) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "metadata must be a JSON object")
	}
	return append([]byte(nil), trimmed...), nil
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

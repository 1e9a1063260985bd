package subscriptions

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Kopi-Koubou/aura-backend/pkg/enums"
)

// WebhookPayload is the envelope RevenueCat posts to the webhook.
type WebhookPayload struct {
	Event      Event  `json:"event"`
	APIVersion string `json:"api_version"`
}

// HasEvent reports whether the body carried an event object at all. A body
// without one is malformed, not a no-op.
func (p *WebhookPayload) HasEvent() bool {
	return p != nil && (p.Event.Type != "" || p.Event.AppUserID != "")
}

// Event is a RevenueCat lifecycle event. Only the fields the state machine or
// the audit log reads are decoded; the raw body is kept verbatim in the log.
type Event struct {
	ID                string                     `json:"id"`
	Type              enums.RevenueCatEventType  `json:"type"`
	AppUserID         string                     `json:"app_user_id"`
	OriginalAppUserID string                     `json:"original_app_user_id"`
	ProductID         string                     `json:"product_id"`
	EntitlementIDs    []string                   `json:"entitlement_ids"`
	PeriodType        enums.RevenueCatPeriodType `json:"period_type"`
	PurchasedAtMs     *int64                     `json:"purchased_at_ms"`
	ExpirationAtMs    *int64                     `json:"expiration_at_ms"`
	Environment       string                     `json:"environment"`
	Price             *decimal.Decimal           `json:"price"`
	Currency          string                     `json:"currency"`
	EventTimestampMs  *int64                     `json:"event_timestamp_ms"`
}

// OwnerUserID resolves the account the event belongs to. RevenueCat aliases
// can rotate app_user_id, so the original id wins when it is a user id.
func (e Event) OwnerUserID() (uuid.UUID, bool) {
	for _, candidate := range []string{e.OriginalAppUserID, e.AppUserID} {
		if id, err := uuid.Parse(strings.TrimSpace(candidate)); err == nil && id != uuid.Nil {
			return id, true
		}
	}
	return uuid.Nil, false
}

func (e Event) PurchasedAt() *time.Time {
	return fromMillis(e.PurchasedAtMs)
}

func (e Event) ExpiresAt() *time.Time {
	return fromMillis(e.ExpirationAtMs)
}

// TrialEndsAt is the expiry of a trial period, nil for paid periods.
func (e Event) TrialEndsAt() *time.Time {
	if !e.PeriodType.IsTrial() {
		return nil
	}
	return e.ExpiresAt()
}

func fromMillis(ms *int64) *time.Time {
	if ms == nil || *ms <= 0 {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

package subscriptions

import (
	"time"

	"github.com/google/uuid"

	"github.com/Kopi-Koubou/aura-backend/pkg/db/models"
	"github.com/Kopi-Koubou/aura-backend/pkg/enums"
)

// Transition is the effect an event type has on an existing subscription.
type Transition string

const (
	TransitionActivate Transition = "activate"
	TransitionGrace    Transition = "grace"
	TransitionExpire   Transition = "expire"
	TransitionNone     Transition = "none"
)

// TransitionFor maps an event type to its transition. Unknown types change
// nothing.
func TransitionFor(eventType enums.RevenueCatEventType) Transition {
	switch eventType {
	case enums.RevenueCatEventInitialPurchase, enums.RevenueCatEventRenewal, enums.RevenueCatEventUncancellation:
		return TransitionActivate
	case enums.RevenueCatEventCancellation, enums.RevenueCatEventBillingIssue:
		// Access persists until the natural expiry.
		return TransitionGrace
	case enums.RevenueCatEventExpiration:
		return TransitionExpire
	default:
		return TransitionNone
	}
}

// transitionUpdates returns the columns to write for a transition. Every
// value is absolute so replaying an event converges on the same row.
func transitionUpdates(t Transition, ev Event, now time.Time) map[string]any {
	switch t {
	case TransitionActivate:
		return map[string]any{
			"tier":       enums.SubscriptionTierPremium,
			"product_id": optionalString(ev.ProductID),
			"expires_at": ev.ExpiresAt(),
			"is_trial":   ev.PeriodType.IsTrial(),
			"is_active":  true,
			"updated_at": now,
		}
	case TransitionGrace:
		return map[string]any{"updated_at": now}
	case TransitionExpire:
		return map[string]any{
			"tier":       enums.SubscriptionTierFree,
			"is_active":  false,
			"is_trial":   false,
			"updated_at": now,
		}
	default:
		return nil
	}
}

// BuildFromInitialPurchase maps a first purchase into a new subscription row.
func BuildFromInitialPurchase(ev Event, userID uuid.UUID, now time.Time) *models.Subscription {
	return &models.Subscription{
		UserID:               userID,
		Tier:                 enums.SubscriptionTierPremium,
		IsActive:             true,
		ProductID:            optionalString(ev.ProductID),
		OriginalPurchaseDate: ev.PurchasedAt(),
		ExpiresAt:            ev.ExpiresAt(),
		IsTrial:              ev.PeriodType.IsTrial(),
		TrialEndsAt:          ev.TrialEndsAt(),
		RevenueCatCustomerID: optionalString(ev.AppUserID),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// BuildWebhookLog maps an event and its raw body into an audit row.
func BuildWebhookLog(ev Event, raw []byte) *models.SubscriptionWebhookLog {
	return &models.SubscriptionWebhookLog{
		EventID:     optionalString(ev.ID),
		EventType:   ev.Type.String(),
		CustomerID:  ev.AppUserID,
		ProductID:   optionalString(ev.ProductID),
		Environment: optionalString(ev.Environment),
		Price:       ev.Price,
		Currency:    optionalString(ev.Currency),
		Payload:     append([]byte(nil), raw...),
	}
}

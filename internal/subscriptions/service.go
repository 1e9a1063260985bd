package subscriptions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Kopi-Koubou/aura-backend/pkg/db/models"
	"github.com/Kopi-Koubou/aura-backend/pkg/enums"
	pkgerrors "github.com/Kopi-Koubou/aura-backend/pkg/errors"
	"github.com/Kopi-Koubou/aura-backend/pkg/logger"
	"github.com/Kopi-Koubou/aura-backend/pkg/metrics"
	"github.com/Kopi-Koubou/aura-backend/pkg/revenuecat"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SubscriberFetcher reads the billing provider's view of a customer.
type SubscriberFetcher interface {
	GetSubscriber(ctx context.Context, customerID string) (*revenuecat.Subscriber, error)
}

// Outcome labels how a webhook event was handled.
type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeApplied  Outcome = "applied"
	OutcomeUnlinked Outcome = "unlinked"
	OutcomeIgnored  Outcome = "ignored"
	OutcomeFailed   Outcome = "error"
)

// Service applies billing events and receipt checks to subscription rows.
type Service interface {
	HandleEvent(ctx context.Context, payload *WebhookPayload, raw []byte) (Outcome, error)
	ValidateReceipt(ctx context.Context, userID uuid.UUID, customerID string) (*ReceiptResult, error)
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo              Repository
	TransactionRunner txRunner
	Subscribers       SubscriberFetcher
	Logger            *logger.Logger
	Metrics           *metrics.Growth
	Clock             func() time.Time
}

// ReceiptResult is the caller's billing entitlement after a receipt check.
type ReceiptResult struct {
	IsPremium bool
	ExpiresAt *time.Time
}

type service struct {
	repo        Repository
	txRunner    txRunner
	subscribers SubscriberFetcher
	logg        *logger.Logger
	metrics     *metrics.Growth
	now         func() time.Time
}

// NewService builds a subscription service. Subscribers may be nil when
// receipt validation is not configured.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("subscription repo required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:        params.Repo,
		txRunner:    params.TransactionRunner,
		subscribers: params.Subscribers,
		logg:        logg,
		metrics:     params.Metrics,
		now:         now,
	}, nil
}

// HandleEvent logs the event and then applies it. The audit row is written
// before any state change and is kept even when the change fails.
func (s *service) HandleEvent(ctx context.Context, payload *WebhookPayload, raw []byte) (outcome Outcome, err error) {
	if payload == nil {
		return OutcomeFailed, pkgerrors.New(pkgerrors.CodeValidation, "webhook payload required")
	}
	ev := payload.Event
	defer func() {
		if err != nil {
			outcome = OutcomeFailed
		}
		s.metrics.IncWebhookEvent(eventTypeLabel(ev.Type), string(outcome))
	}()

	ctx = s.logg.WithFields(s.logg.WithOperation(ctx, "subscription.webhook"), map[string]any{
		"event_id":    ev.ID,
		"event_type":  ev.Type.String(),
		"customer_id": ev.AppUserID,
	})

	if err := s.repo.CreateWebhookLog(ctx, BuildWebhookLog(ev, raw)); err != nil {
		return OutcomeFailed, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record webhook event")
	}

	if strings.TrimSpace(ev.AppUserID) == "" || !ev.Type.IsKnown() {
		s.logg.Info(ctx, "subscription.webhook.ignored")
		return OutcomeIgnored, nil
	}

	now := s.now().UTC()
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sub, err := repo.FindByCustomerID(ctx, ev.AppUserID, true)
		if err != nil {
			return err
		}
		if sub == nil {
			outcome, err = s.handleUnlinked(ctx, repo, ev, now)
			return err
		}
		outcome = OutcomeApplied
		return repo.ApplyUpdates(ctx, sub.ID, transitionUpdates(TransitionFor(ev.Type), ev, now))
	})
	if err != nil {
		return OutcomeFailed, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply subscription event")
	}

	s.logg.Info(s.logg.WithField(ctx, "outcome", string(outcome)), "subscription.webhook.processed")
	return outcome, nil
}

// eventTypeLabel keeps the metric label set closed; any type RevenueCat adds
// later is counted as "unknown".
func eventTypeLabel(t enums.RevenueCatEventType) string {
	if !t.IsKnown() {
		return "unknown"
	}
	return t.String()
}

// handleUnlinked covers events for customers without a linked row. Only a
// first purchase can create one; anything else is acknowledged and left for
// reconciliation, since delivery order is not guaranteed.
func (s *service) handleUnlinked(ctx context.Context, repo Repository, ev Event, now time.Time) (Outcome, error) {
	if ev.Type != enums.RevenueCatEventInitialPurchase {
		s.logg.Warn(ctx, "subscription.webhook.unlinked_customer")
		return OutcomeUnlinked, nil
	}
	userID, ok := ev.OwnerUserID()
	if !ok {
		s.logg.Warn(ctx, "subscription.webhook.unresolvable_user")
		return OutcomeUnlinked, nil
	}
	if err := repo.UpsertPurchase(ctx, BuildFromInitialPurchase(ev, userID, now)); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeCreated, nil
}

// ValidateReceipt asks the billing provider for the caller's entitlement and
// stores the result on the caller's row.
func (s *service) ValidateReceipt(ctx context.Context, userID uuid.UUID, customerID string) (*ReceiptResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Unauthorized")
	}
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "revenuecat_customer_id is required")
	}
	if s.subscribers == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "receipt validation not configured")
	}
	ctx = s.logg.WithOperation(ctx, "subscription.validate_receipt")

	subscriber, err := s.subscribers.GetSubscriber(ctx, customerID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ent := subscriber.Entitlement
	active := ent.ActiveAt(now)
	result := &ReceiptResult{IsPremium: active}

	row := &models.Subscription{
		UserID:               userID,
		Tier:                 enums.SubscriptionTierFree,
		IsActive:             active,
		RevenueCatCustomerID: &customerID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if ent != nil {
		row.ProductID = optionalString(ent.ProductID)
		row.ExpiresAt = ent.ExpiresAt
		row.IsTrial = strings.EqualFold(ent.PeriodType, string(enums.RevenueCatPeriodTrial))
		result.ExpiresAt = ent.ExpiresAt
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindByUserID(ctx, userID, true)
		if err != nil {
			return err
		}
		// Unexpired referral premium survives a lapsed store purchase.
		referralActive := existing != nil && existing.ReferralPremiumExpiresAt != nil && existing.ReferralPremiumExpiresAt.After(now)
		if active || referralActive {
			row.Tier = enums.SubscriptionTierPremium
			row.IsActive = true
		}
		return repo.UpsertBillingState(ctx, row)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store subscription state")
	}

	s.logg.Info(s.logg.WithField(ctx, "is_premium", active), "subscription.receipt_validated")
	return result, nil
}

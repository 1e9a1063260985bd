package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/Kopi-Koubou/aura-backend/pkg/db/types"
	"github.com/Kopi-Koubou/aura-backend/pkg/enums"
)

// Subscription is the single entitlement row per user. It is upserted on
// user_id and never duplicated.
type Subscription struct {
	ID                       uuid.UUID              `gorm:"type:uuid;primaryKey"`
	UserID                   uuid.UUID              `gorm:"column:user_id;type:uuid;not null;uniqueIndex:uq_subscriptions_user_id"`
	Tier                     enums.SubscriptionTier `gorm:"column:tier;type:text;not null;default:'free'"`
	IsActive                 bool                   `gorm:"column:is_active;not null;default:false"`
	ProductID                *string                `gorm:"column:product_id"`
	OriginalPurchaseDate     *time.Time             `gorm:"column:original_purchase_date"`
	ExpiresAt                *time.Time             `gorm:"column:expires_at"`
	IsTrial                  bool                   `gorm:"column:is_trial;not null;default:false"`
	TrialEndsAt              *time.Time             `gorm:"column:trial_ends_at"`
	IsReferralReward         bool                   `gorm:"column:is_referral_reward;not null;default:false"`
	ReferralPremiumExpiresAt *time.Time             `gorm:"column:referral_premium_expires_at"`
	RevenueCatCustomerID     *string                `gorm:"column:revenuecat_customer_id;index"`
	CreatedAt                time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (Subscription) TableName() string { return "subscriptions" }

func (s *Subscription) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// SubscriptionWebhookLog is the append-only audit row for every billing event.
type SubscriptionWebhookLog struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey"`
	EventID     *string          `gorm:"column:event_id;index"`
	EventType   string           `gorm:"column:event_type;not null"`
	CustomerID  string           `gorm:"column:customer_id;not null;index"`
	ProductID   *string          `gorm:"column:product_id"`
	Environment *string          `gorm:"column:environment"`
	Price       *decimal.Decimal `gorm:"column:price;type:numeric(12,4)"`
	Currency    *string          `gorm:"column:currency"`
	Payload     dbtypes.JSON     `gorm:"column:payload;not null"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (SubscriptionWebhookLog) TableName() string { return "subscription_webhooks" }

func (l *SubscriptionWebhookLog) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

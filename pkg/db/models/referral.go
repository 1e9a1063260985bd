package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReferralCode is a user's shareable invite code. Codes are deactivated rather
// than deleted. Among active rows a code is unique and a user owns at most one.
type ReferralCode struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Code        string     `gorm:"column:code;type:text;not null;index:idx_referral_codes_active_code,unique,where:is_active = true"`
	OwnerUserID uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index:idx_referral_codes_active_owner,unique,where:is_active = true"`
	IsActive    bool       `gorm:"column:is_active;not null"`
	MaxUses     *int       `gorm:"column:max_uses"`
	TimesUsed   int        `gorm:"column:times_used;not null;default:0"`
	ExpiresAt   *time.Time `gorm:"column:expires_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (ReferralCode) TableName() string { return "referral_codes" }

func (r *ReferralCode) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ReferralRedemption records that a user redeemed a code. The unique index on
// redeemed_by_user_id guarantees a user is rewarded at most once.
type ReferralRedemption struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	ReferralCodeID   uuid.UUID `gorm:"column:referral_code_id;type:uuid;not null;index"`
	ReferrerUserID   uuid.UUID `gorm:"column:referrer_user_id;type:uuid;not null;index"`
	RedeemedByUserID uuid.UUID `gorm:"column:redeemed_by_user_id;type:uuid;not null;uniqueIndex:uq_referral_redemptions_redeemed_by"`
	RewardDays       int       `gorm:"column:reward_days;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ReferralRedemption) TableName() string { return "referral_redemptions" }

func (r *ReferralRedemption) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

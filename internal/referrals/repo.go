package referrals

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Kopi-Koubou/aura-backend/pkg/db/models"
	"github.com/Kopi-Koubou/aura-backend/pkg/enums"
)

// Repository handles referral persistence, including the referral-reward
// columns of the subscriptions table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindRedemptionByRedeemer(ctx context.Context, userID uuid.UUID) (*models.ReferralRedemption, error)
	FindActiveCode(ctx context.Context, code string) (*models.ReferralCode, error)
	FindActiveCodeByOwner(ctx context.Context, userID uuid.UUID) (*models.ReferralCode, error)
	CreateCode(ctx context.Context, code *models.ReferralCode) error
	CreateRedemption(ctx context.Context, redemption *models.ReferralRedemption) error
	ClaimUse(ctx context.Context, codeID uuid.UUID) (bool, error)
	FindSubscription(ctx context.Context, userID uuid.UUID, forUpdate bool) (*models.Subscription, error)
	UpsertReferralPremium(ctx context.Context, userID uuid.UUID, expiresAt, now time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a referral repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindRedemptionByRedeemer(ctx context.Context, userID uuid.UUID) (*models.ReferralRedemption, error) {
	var redemption models.ReferralRedemption
	err := r.db.WithContext(ctx).
		Where("redeemed_by_user_id = ?", userID).
		First(&redemption).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &redemption, nil
}

func (r *repository) FindActiveCode(ctx context.Context, code string) (*models.ReferralCode, error) {
	var rc models.ReferralCode
	err := r.db.WithContext(ctx).
		Where("code = ? AND is_active = ?", code, true).
		First(&rc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *repository) FindActiveCodeByOwner(ctx context.Context, userID uuid.UUID) (*models.ReferralCode, error) {
	var rc models.ReferralCode
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		First(&rc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *repository) CreateCode(ctx context.Context, code *models.ReferralCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}

func (r *repository) CreateRedemption(ctx context.Context, redemption *models.ReferralRedemption) error {
	return r.db.WithContext(ctx).Create(redemption).Error
}

// ClaimUse counts one use of an active code in a single conditional UPDATE and
// reports false when the code is exhausted or no longer active. The row lock
// the UPDATE takes makes concurrent claims queue, and each re-evaluates the
// max_uses guard against the committed counter.
func (r *repository) ClaimUse(ctx context.Context, codeID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ReferralCode{}).
		Where("id = ? AND is_active = ? AND (max_uses IS NULL OR times_used < max_uses)", codeID, true).
		UpdateColumn("times_used", gorm.Expr("times_used + ?", 1))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FindSubscription(ctx context.Context, userID uuid.UUID, forUpdate bool) (*models.Subscription, error) {
	q := r.db.WithContext(ctx)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var sub models.Subscription
	err := q.Where("user_id = ?", userID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpsertReferralPremium grants premium until expiresAt. Only the referral and
// tier columns are touched on conflict; billing fields stay as they are.
func (r *repository) UpsertReferralPremium(ctx context.Context, userID uuid.UUID, expiresAt, now time.Time) error {
	sub := models.Subscription{
		UserID:                   userID,
		Tier:                     enums.SubscriptionTierPremium,
		IsActive:                 true,
		IsReferralReward:         true,
		ReferralPremiumExpiresAt: &expiresAt,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"tier",
				"is_active",
				"is_referral_reward",
				"referral_premium_expires_at",
				"updated_at",
			}),
		}).
		Create(&sub).Error
}

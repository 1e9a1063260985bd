package referrals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Kopi-Koubou/aura-backend/pkg/db"
	"github.com/Kopi-Koubou/aura-backend/pkg/db/models"
	pkgerrors "github.com/Kopi-Koubou/aura-backend/pkg/errors"
	"github.com/Kopi-Koubou/aura-backend/pkg/logger"
	"github.com/Kopi-Koubou/aura-backend/pkg/metrics"
)

const maxCodeAttempts = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service redeems referral codes and issues them.
type Service interface {
	Redeem(ctx context.Context, userID uuid.UUID, rawCode string) (*RedeemResult, error)
	EnsureCode(ctx context.Context, userID uuid.UUID) (*models.ReferralCode, error)
}

// ServiceParams groups dependencies for the referral service.
type ServiceParams struct {
	Repo              Repository
	TransactionRunner txRunner
	RewardDays        int
	Logger            *logger.Logger
	Metrics           *metrics.Growth
	Clock             func() time.Time
}

// RedeemResult is returned when a redemption was recorded.
type RedeemResult struct {
	RedemptionID   uuid.UUID
	Message        string
	PremiumGranted bool
	PremiumDays    int
	Report         PartialFailureReport
}

type service struct {
	repo       Repository
	txRunner   txRunner
	rewardDays int
	logg       *logger.Logger
	metrics    *metrics.Growth
	now        func() time.Time
}

// NewService builds a referral service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("referral repo required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.RewardDays <= 0 {
		return nil, fmt.Errorf("reward days must be positive")
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
		repo:       params.Repo,
		txRunner:   params.TransactionRunner,
		rewardDays: params.RewardDays,
		logg:       logg,
		metrics:    params.Metrics,
		now:        now,
	}, nil
}

func (s *service) Redeem(ctx context.Context, userID uuid.UUID, rawCode string) (result *RedeemResult, err error) {
	defer func() { s.metrics.IncRedemption(outcomeOf(err)) }()

	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Unauthorized")
	}
	ctx = s.logg.WithOperation(ctx, "referral.redeem")

	code := NormalizeCode(rawCode)
	if !ValidCode(code) {
		return nil, reject(ErrInvalidFormat)
	}

	existing, err := s.repo.FindRedemptionByRedeemer(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing redemption")
	}
	if existing != nil {
		return nil, reject(ErrAlreadyRedeemed)
	}

	rc, err := s.repo.FindActiveCode(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup referral code")
	}
	if rc == nil {
		return nil, reject(ErrCodeNotFound)
	}
	if rc.OwnerUserID == userID {
		return nil, reject(ErrSelfReferral)
	}
	if rc.MaxUses != nil && rc.TimesUsed >= *rc.MaxUses {
		return nil, reject(ErrMaxUsesReached)
	}
	now := s.now().UTC()
	if rc.ExpiresAt != nil && rc.ExpiresAt.Before(now) {
		return nil, reject(ErrExpired)
	}

	// The checks above are advisory. Inside the transaction the unique index
	// on redeemed_by_user_id stops a second redemption by the same user, and
	// the conditional claim stops the code going past max_uses.
	redemption := &models.ReferralRedemption{
		ReferralCodeID:   rc.ID,
		ReferrerUserID:   rc.OwnerUserID,
		RedeemedByUserID: userID,
		RewardDays:       s.rewardDays,
	}
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateRedemption(ctx, redemption); err != nil {
			return err
		}
		claimed, err := repo.ClaimUse(ctx, rc.ID)
		if err != nil {
			return err
		}
		if !claimed {
			return ErrMaxUsesReached
		}
		return nil
	})
	switch {
	case errors.Is(err, ErrMaxUsesReached):
		return nil, reject(ErrMaxUsesReached)
	case db.IsUniqueViolation(err, ""):
		return nil, reject(ErrAlreadyRedeemed)
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record redemption")
	}

	// The redemption is committed; finish the reward even if the caller
	// disconnects.
	report := s.applyReward(context.WithoutCancel(ctx), rewardGrant{
		RedemptionID:   redemption.ID,
		RedeemerUserID: userID,
		ReferrerUserID: rc.OwnerUserID,
		Days:           s.rewardDays,
		Now:            now,
	})

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"redemption_id":    redemption.ID.String(),
		"referral_code_id": rc.ID.String(),
		"referrer_user_id": rc.OwnerUserID.String(),
		"reward_days":      s.rewardDays,
	})
	if !report.OK() {
		for _, step := range report.Failed {
			s.metrics.IncRewardStepFailure(string(step))
		}
		s.logg.Error(s.logg.WithField(logCtx, "failed_steps", report.failedNames()), "referral.reward.partial_failure", report.Err)
	} else {
		s.logg.Info(logCtx, "referral.redeemed")
	}

	return &RedeemResult{
		RedemptionID:   redemption.ID,
		Message:        fmt.Sprintf("Referral code redeemed! You and the referrer both get %d days of premium.", s.rewardDays),
		PremiumGranted: true,
		PremiumDays:    s.rewardDays,
		Report:         report,
	}, nil
}

// EnsureCode returns the caller's active code, issuing one when missing.
func (s *service) EnsureCode(ctx context.Context, userID uuid.UUID) (*models.ReferralCode, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Unauthorized")
	}
	ctx = s.logg.WithOperation(ctx, "referral.ensure_code")

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		existing, err := s.repo.FindActiveCodeByOwner(ctx, userID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup referral code")
		}
		if existing != nil {
			return existing, nil
		}

		code, err := GenerateCode()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate referral code")
		}
		rc := &models.ReferralCode{
			Code:        code,
			OwnerUserID: userID,
			IsActive:    true,
			CreatedAt:   s.now().UTC(),
		}
		err = s.repo.CreateCode(ctx, rc)
		if err == nil {
			s.logg.Info(s.logg.WithField(ctx, "referral_code_id", rc.ID.String()), "referral.code_issued")
			return rc, nil
		}
		// Either the code collided or a concurrent request issued this
		// user's code first; the next pass sorts out which.
		if !db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create referral code")
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "could not allocate a unique referral code")
}

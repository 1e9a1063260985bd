package referrals

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// RewardStep names one premium grant applied after a redemption is committed.
type RewardStep string

const (
	StepRedeemerPremium RewardStep = "redeemer_premium"
	StepReferrerPremium RewardStep = "referrer_premium"
)

// rewardGrant is everything applyReward needs once the redemption row exists.
type rewardGrant struct {
	RedemptionID   uuid.UUID
	RedeemerUserID uuid.UUID
	ReferrerUserID uuid.UUID
	Days           int
	Now            time.Time
}

func (g rewardGrant) duration() time.Duration {
	return time.Duration(g.Days) * 24 * time.Hour
}

// PartialFailureReport lists reward steps that failed after the redemption
// was committed. The redemption itself is never rolled back, so a non-empty
// report means the users were under-granted and need reconciliation.
type PartialFailureReport struct {
	RedemptionID uuid.UUID
	Failed       []RewardStep
	Err          error
}

func (r PartialFailureReport) OK() bool {
	return len(r.Failed) == 0
}

func (r PartialFailureReport) failedNames() []string {
	names := make([]string, 0, len(r.Failed))
	for _, step := range r.Failed {
		names = append(names, string(step))
	}
	return names
}

func (r *PartialFailureReport) record(step RewardStep, err error) {
	if err == nil {
		return
	}
	r.Failed = append(r.Failed, step)
	r.Err = multierr.Append(r.Err, fmt.Errorf("%s: %w", step, err))
}

// applyReward runs every step even when an earlier one fails.
func (s *service) applyReward(ctx context.Context, grant rewardGrant) PartialFailureReport {
	report := PartialFailureReport{RedemptionID: grant.RedemptionID}

	redeemerExpiry := grant.Now.Add(grant.duration())
	report.record(StepRedeemerPremium, s.repo.UpsertReferralPremium(ctx, grant.RedeemerUserID, redeemerExpiry, grant.Now))

	report.record(StepReferrerPremium, s.extendReferrer(ctx, grant))

	return report
}

// extendReferrer stacks the reward on top of any referral premium the referrer
// still has. The row lock serializes concurrent rewards for the same referrer.
func (s *service) extendReferrer(ctx context.Context, grant rewardGrant) error {
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sub, err := repo.FindSubscription(ctx, grant.ReferrerUserID, true)
		if err != nil {
			return err
		}
		base := grant.Now
		if sub != nil && sub.ReferralPremiumExpiresAt != nil && sub.ReferralPremiumExpiresAt.After(grant.Now) {
			base = *sub.ReferralPremiumExpiresAt
		}
		return repo.UpsertReferralPremium(ctx, grant.ReferrerUserID, base.Add(grant.duration()), grant.Now)
	})
}

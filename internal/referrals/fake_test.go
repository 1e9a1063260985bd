package referrals

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Kopi-Koubou/aura-backend/pkg/db/models"
	"github.com/Kopi-Koubou/aura-backend/pkg/enums"
)

// fakeRepo is an in-memory Repository that enforces the same unique
// constraints as the schema.
type fakeRepo struct {
	mu            sync.Mutex
	txMu          sync.Mutex
	codes         map[uuid.UUID]*models.ReferralCode
	redemptions   map[uuid.UUID]*models.ReferralRedemption
	subscriptions map[uuid.UUID]*models.Subscription

	// lookupDelay stretches FindActiveCode so concurrent callers all read the
	// code before any of them commits.
	lookupDelay        time.Duration
	failClaim          error
	failUpsertFor      map[uuid.UUID]error
	failCreate         error
	codeCollisions     int
	createCodeAttempts int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		codes:         map[uuid.UUID]*models.ReferralCode{},
		redemptions:   map[uuid.UUID]*models.ReferralRedemption{},
		subscriptions: map[uuid.UUID]*models.Subscription{},
		failUpsertFor: map[uuid.UUID]error{},
	}
}

func (f *fakeRepo) WithTx(*gorm.DB) Repository { return f }

func (f *fakeRepo) addCode(owner uuid.UUID, code string) *models.ReferralCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	rc := &models.ReferralCode{ID: uuid.New(), Code: code, OwnerUserID: owner, IsActive: true}
	f.codes[rc.ID] = rc
	return rc
}

func (f *fakeRepo) code(id uuid.UUID) models.ReferralCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.codes[id]
}

func (f *fakeRepo) subscription(userID uuid.UUID) *models.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subscriptions[userID]
	if !ok {
		return nil
	}
	cp := *sub
	return &cp
}

func (f *fakeRepo) redemptionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.redemptions)
}

func (f *fakeRepo) FindRedemptionByRedeemer(_ context.Context, userID uuid.UUID) (*models.ReferralRedemption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.redemptions {
		if r.RedeemedByUserID == userID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) FindActiveCode(_ context.Context, code string) (*models.ReferralCode, error) {
	if f.lookupDelay > 0 {
		time.Sleep(f.lookupDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rc := range f.codes {
		if rc.Code == code && rc.IsActive {
			cp := *rc
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) FindActiveCodeByOwner(_ context.Context, userID uuid.UUID) (*models.ReferralCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rc := range f.codes {
		if rc.OwnerUserID == userID && rc.IsActive {
			cp := *rc
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) CreateCode(_ context.Context, code *models.ReferralCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCodeAttempts++
	if f.codeCollisions > 0 {
		f.codeCollisions--
		return gorm.ErrDuplicatedKey
	}
	for _, rc := range f.codes {
		if rc.IsActive && (rc.Code == code.Code || rc.OwnerUserID == code.OwnerUserID) {
			return gorm.ErrDuplicatedKey
		}
	}
	if code.ID == uuid.Nil {
		code.ID = uuid.New()
	}
	cp := *code
	f.codes[code.ID] = &cp
	return nil
}

func (f *fakeRepo) CreateRedemption(_ context.Context, redemption *models.ReferralRedemption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return f.failCreate
	}
	for _, r := range f.redemptions {
		if r.RedeemedByUserID == redemption.RedeemedByUserID {
			return gorm.ErrDuplicatedKey
		}
	}
	if redemption.ID == uuid.Nil {
		redemption.ID = uuid.New()
	}
	cp := *redemption
	f.redemptions[redemption.ID] = &cp
	return nil
}

func (f *fakeRepo) ClaimUse(_ context.Context, codeID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failClaim != nil {
		return false, f.failClaim
	}
	rc, ok := f.codes[codeID]
	if !ok || !rc.IsActive || (rc.MaxUses != nil && rc.TimesUsed >= *rc.MaxUses) {
		return false, nil
	}
	rc.TimesUsed++
	return true, nil
}

func (f *fakeRepo) FindSubscription(_ context.Context, userID uuid.UUID, _ bool) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subscriptions[userID]
	if !ok {
		return nil, nil
	}
	cp := *sub
	return &cp, nil
}

func (f *fakeRepo) UpsertReferralPremium(_ context.Context, userID uuid.UUID, expiresAt, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failUpsertFor[userID]; err != nil {
		return err
	}
	sub, ok := f.subscriptions[userID]
	if !ok {
		sub = &models.Subscription{ID: uuid.New(), UserID: userID, CreatedAt: now}
		f.subscriptions[userID] = sub
	}
	sub.Tier = enums.SubscriptionTierPremium
	sub.IsActive = true
	sub.IsReferralReward = true
	exp := expiresAt
	sub.ReferralPremiumExpiresAt = &exp
	sub.UpdatedAt = now
	return nil
}

// fakeTx runs transactions one at a time and restores codes and redemptions
// when fn fails, which is what the database does on rollback.
type fakeTx struct {
	repo *fakeRepo
}

func (t fakeTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	t.repo.txMu.Lock()
	defer t.repo.txMu.Unlock()

	codes, redemptions := t.repo.snapshot()
	if err := fn(nil); err != nil {
		t.repo.mu.Lock()
		t.repo.codes, t.repo.redemptions = codes, redemptions
		t.repo.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeRepo) snapshot() (map[uuid.UUID]*models.ReferralCode, map[uuid.UUID]*models.ReferralRedemption) {
	f.mu.Lock()
	defer f.mu.Unlock()
	codes := make(map[uuid.UUID]*models.ReferralCode, len(f.codes))
	for id, rc := range f.codes {
		cp := *rc
		codes[id] = &cp
	}
	redemptions := make(map[uuid.UUID]*models.ReferralRedemption, len(f.redemptions))
	for id, r := range f.redemptions {
		cp := *r
		redemptions[id] = &cp
	}
	return codes, redemptions
}

var errStore = errors.New("store unavailable")

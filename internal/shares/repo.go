package shares

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Kopi-Koubou/aura-backend/pkg/db/models"
)

// Repository persists share events and their clicks.
type Repository interface {
	CreateShareEvent(ctx context.Context, event *models.ShareEvent) error
	FindByDeepLinkID(ctx context.Context, deepLinkID string) (*models.ShareEvent, error)
	IncrementClickCount(ctx context.Context, id uuid.UUID) error
	CreateClickEvent(ctx context.Context, click *models.ShareClickEvent) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a share repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateShareEvent(ctx context.Context, event *models.ShareEvent) error {
	return r.db.WithContext(ctx).Omit("ReferralCode").Create(event).Error
}

// FindByDeepLinkID loads the event with the referral code it was shared with.
func (r *repository) FindByDeepLinkID(ctx context.Context, deepLinkID string) (*models.ShareEvent, error) {
	var event models.ShareEvent
	err := r.db.WithContext(ctx).
		Preload("ReferralCode").
		Where("deep_link_id = ?", deepLinkID).
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) IncrementClickCount(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.ShareEvent{}).
		Where("id = ?", id).
		UpdateColumn("click_count", gorm.Expr("click_count + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) CreateClickEvent(ctx context.Context, click *models.ShareClickEvent) error {
	return r.db.WithContext(ctx).Create(click).Error
}

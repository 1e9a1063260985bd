package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Kopi-Koubou/aura-backend/pkg/db/models"
)

// Repository persists subscription rows and the webhook audit log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateWebhookLog(ctx context.Context, entry *models.SubscriptionWebhookLog) error
	FindByCustomerID(ctx context.Context, customerID string, forUpdate bool) (*models.Subscription, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, forUpdate bool) (*models.Subscription, error)
	UpsertPurchase(ctx context.Context, sub *models.Subscription) error
	UpsertBillingState(ctx context.Context, sub *models.Subscription) error
	ApplyUpdates(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a subscription repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateWebhookLog(ctx context.Context, entry *models.SubscriptionWebhookLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindByCustomerID(ctx context.Context, customerID string, forUpdate bool) (*models.Subscription, error) {
	return r.findOne(ctx, forUpdate, "revenuecat_customer_id = ?", customerID)
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID, forUpdate bool) (*models.Subscription, error) {
	return r.findOne(ctx, forUpdate, "user_id = ?", userID)
}

func (r *repository) findOne(ctx context.Context, forUpdate bool, query string, args ...any) (*models.Subscription, error) {
	q := r.db.WithContext(ctx)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var sub models.Subscription
	err := q.Where(query, args...).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpsertPurchase writes a first purchase keyed on user_id. A row created
// earlier by a referral reward gets linked to the billing customer.
func (r *repository) UpsertPurchase(ctx context.Context, sub *models.Subscription) error {
	return r.upsert(ctx, sub, []string{
		"tier",
		"is_active",
		"product_id",
		"original_purchase_date",
		"expires_at",
		"is_trial",
		"trial_ends_at",
		"revenuecat_customer_id",
		"updated_at",
	})
}

// UpsertBillingState writes the result of a receipt validation keyed on user_id.
func (r *repository) UpsertBillingState(ctx context.Context, sub *models.Subscription) error {
	return r.upsert(ctx, sub, []string{
		"tier",
		"is_active",
		"product_id",
		"expires_at",
		"is_trial",
		"revenuecat_customer_id",
		"updated_at",
	})
}

func (r *repository) upsert(ctx context.Context, sub *models.Subscription, columns []string) error {
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).
		Create(sub).Error
}

func (r *repository) ApplyUpdates(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

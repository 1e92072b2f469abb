package repository

import (
	"context"
	"time"

	"github.com/remnashop/backoffice/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// GetActive returns the user's active subscription, locked for update.
func (r *subscriptionRepository) GetActive(ctx context.Context, tx *gorm.DB, userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := conn(ctx, r.db, tx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND status = ?", userID, models.SubscriptionStatusActive).
		Order("expire_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) Create(ctx context.Context, tx *gorm.DB, sub *models.Subscription) error {
	if sub.Status == "" {
		sub.Status = models.SubscriptionStatusActive
	}
	return conn(ctx, r.db, tx).Create(sub).Error
}

func (r *subscriptionRepository) Extend(ctx context.Context, tx *gorm.DB, id uint, planID string, expireAt time.Time) error {
	result := conn(ctx, r.db, tx).
		Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"plan_id":   planID,
			"expire_at": expireAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *subscriptionRepository) ListByUser(ctx context.Context, tx *gorm.DB, userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := conn(ctx, r.db, tx).Where("user_id = ?", userID).Order("id ASC").Find(&subs).Error
	return subs, err
}

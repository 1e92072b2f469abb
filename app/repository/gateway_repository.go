package repository

import (
	"context"
	"strings"

	"github.com/remnashop/backoffice/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gatewayRepository struct {
	db *gorm.DB
}

// NewGatewayRepository creates a new payment gateway repository
func NewGatewayRepository(db *gorm.DB) GatewayRepository {
	return &gatewayRepository{db: db}
}

func (r *gatewayRepository) GetByName(ctx context.Context, tx *gorm.DB, name string) (*models.PaymentGateway, error) {
	var gw models.PaymentGateway
	err := conn(ctx, r.db, tx).Where("name = ?", strings.ToLower(strings.TrimSpace(name))).First(&gw).Error
	if err != nil {
		return nil, err
	}
	return &gw, nil
}

// Seed inserts a row for every name that is not configured yet. Existing
// rows, including disabled ones, are left alone.
func (r *gatewayRepository) Seed(ctx context.Context, names []string) error {
	for _, name := range names {
		gw := &models.PaymentGateway{Name: name, IsActive: true}
		if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(gw).Error; err != nil {
			return err
		}
	}
	return nil
}

package repository

import (
	"context"

	"github.com/remnashop/backoffice/app/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type partnerRepository struct {
	db *gorm.DB
}

// NewPartnerRepository creates a new partner repository
func NewPartnerRepository(db *gorm.DB) PartnerRepository {
	return &partnerRepository{db: db}
}

// GetByID returns a live partner. Soft-deleted partners resolve to
// gorm.ErrRecordNotFound.
func (r *partnerRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Partner, error) {
	var partner models.Partner
	err := conn(ctx, r.db, tx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&partner, id).Error
	if err != nil {
		return nil, err
	}
	return &partner, nil
}

func (r *partnerRepository) Create(ctx context.Context, tx *gorm.DB, partner *models.Partner) error {
	if partner.CommissionRate.IsZero() {
		partner.CommissionRate = models.DefaultPartnerCommissionRate
	}
	return conn(ctx, r.db, tx).Create(partner).Error
}

func (r *partnerRepository) CreateEarning(ctx context.Context, tx *gorm.DB, earning *models.PartnerEarning) error {
	if earning.Status == "" {
		earning.Status = models.PartnerEarningStatusPending
	}
	return conn(ctx, r.db, tx).Create(earning).Error
}

// Credit adds amount to both the spendable balance and the lifetime total.
func (r *partnerRepository) Credit(ctx context.Context, tx *gorm.DB, id uint, amount decimal.Decimal) error {
	result := conn(ctx, r.db, tx).
		Model(&models.Partner{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"balance":      gorm.Expr("balance + ?", amount),
			"total_earned": gorm.Expr("total_earned + ?", amount),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *partnerRepository) ListEarnings(ctx context.Context, tx *gorm.DB, partnerID uint) ([]models.PartnerEarning, error) {
	var earnings []models.PartnerEarning
	err := conn(ctx, r.db, tx).Where("partner_id = ?", partnerID).Order("id ASC").Find(&earnings).Error
	return earnings, err
}

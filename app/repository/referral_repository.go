package repository

import (
	"context"
	"time"

	"github.com/remnashop/backoffice/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type referralRepository struct {
	db *gorm.DB
}

// NewReferralRepository creates a new referral accrual repository
func NewReferralRepository(db *gorm.DB) ReferralRepository {
	return &referralRepository{db: db}
}

// Accrue adds points to the (referrer, referred) row, creating it on the
// first payment. Zero points still count as a payment.
func (r *referralRepository) Accrue(ctx context.Context, tx *gorm.DB, referrerID, referredID uint, points int64) error {
	accrual := &models.ReferralAccrual{
		ReferrerID:    referrerID,
		ReferredID:    referredID,
		Points:        points,
		PaymentsCount: 1,
	}
	return conn(ctx, r.db, tx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "referrer_id"}, {Name: "referred_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"points":         gorm.Expr("referral_accruals.points + ?", points),
			"payments_count": gorm.Expr("referral_accruals.payments_count + ?", 1),
			"updated_at":     time.Now(),
		}),
	}).Create(accrual).Error
}

func (r *referralRepository) Get(ctx context.Context, tx *gorm.DB, referrerID, referredID uint) (*models.ReferralAccrual, error) {
	var accrual models.ReferralAccrual
	err := conn(ctx, r.db, tx).
		Where("referrer_id = ? AND referred_id = ?", referrerID, referredID).
		First(&accrual).Error
	if err != nil {
		return nil, err
	}
	return &accrual, nil
}

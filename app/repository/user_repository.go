package repository

import (
	"context"

	"github.com/remnashop/backoffice/app/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// GetByID loads the user and locks the row for the surrounding transaction
func (r *userRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.User, error) {
	var user models.User
	err := conn(ctx, r.db, tx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, tx *gorm.DB, user *models.User) error {
	if user.Status == "" {
		user.Status = models.STATUS_ACTIVE
	}
	if err := user.Validate(); err != nil {
		return err
	}
	return conn(ctx, r.db, tx).Create(user).Error
}

// AddBalance increments the stored balance in place
func (r *userRepository) AddBalance(ctx context.Context, tx *gorm.DB, id uint, amount decimal.Decimal) error {
	result := conn(ctx, r.db, tx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("balance", gorm.Expr("balance + ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

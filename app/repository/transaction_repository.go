package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/remnashop/backoffice/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new payment transaction repository
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

// GetByExternalID resolves the row through the (gateway_id, external_id)
// fence and locks it FOR UPDATE.
func (r *transactionRepository) GetByExternalID(ctx context.Context, tx *gorm.DB, externalID string, gatewayID uint) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := conn(ctx, r.db, tx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("external_id = ? AND gateway_id = ?", externalID, gatewayID).
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// GetByID loads a row by primary key and locks it FOR UPDATE.
func (r *transactionRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := conn(ctx, r.db, tx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *transactionRepository) Create(ctx context.Context, tx *gorm.DB, txn *models.PaymentTransaction) error {
	if strings.TrimSpace(txn.ID) == "" {
		txn.ID = uuid.NewString()
	}
	if txn.Status == "" {
		txn.Status = models.TransactionStatusPending
	}
	if txn.Type == "" {
		txn.Type = models.PaymentTypeOther
	}
	return conn(ctx, r.db, tx).Create(txn).Error
}

func (r *transactionRepository) Update(ctx context.Context, tx *gorm.DB, id string, fields map[string]interface{}) error {
	result := conn(ctx, r.db, tx).
		Model(&models.PaymentTransaction{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

package repository

import (
	"context"
	"time"

	"github.com/remnashop/backoffice/app/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repositories taking a tx run inside the caller's transaction. A nil tx
// falls back to the repository's own connection.

// UserRepository defines the interface for user data access
type UserRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.User, error)
	Create(ctx context.Context, tx *gorm.DB, user *models.User) error
	AddBalance(ctx context.Context, tx *gorm.DB, id uint, amount decimal.Decimal) error
}

// TransactionRepository defines the ledger of payment transactions
type TransactionRepository interface {
	GetByExternalID(ctx context.Context, tx *gorm.DB, externalID string, gatewayID uint) (*models.PaymentTransaction, error)
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.PaymentTransaction, error)
	Create(ctx context.Context, tx *gorm.DB, txn *models.PaymentTransaction) error
	Update(ctx context.Context, tx *gorm.DB, id string, fields map[string]interface{}) error
}

// GatewayRepository defines the interface for payment gateway rows
type GatewayRepository interface {
	GetByName(ctx context.Context, tx *gorm.DB, name string) (*models.PaymentGateway, error)
	Seed(ctx context.Context, names []string) error
}

// SubscriptionRepository defines the interface for subscription data access
type SubscriptionRepository interface {
	GetActive(ctx context.Context, tx *gorm.DB, userID uint) (*models.Subscription, error)
	Create(ctx context.Context, tx *gorm.DB, sub *models.Subscription) error
	Extend(ctx context.Context, tx *gorm.DB, id uint, planID string, expireAt time.Time) error
	ListByUser(ctx context.Context, tx *gorm.DB, userID uint) ([]models.Subscription, error)
}

// ReferralRepository defines the interface for referral point accruals
type ReferralRepository interface {
	Accrue(ctx context.Context, tx *gorm.DB, referrerID, referredID uint, points int64) error
	Get(ctx context.Context, tx *gorm.DB, referrerID, referredID uint) (*models.ReferralAccrual, error)
}

// PartnerRepository defines the interface for partners and their earnings
type PartnerRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Partner, error)
	Create(ctx context.Context, tx *gorm.DB, partner *models.Partner) error
	CreateEarning(ctx context.Context, tx *gorm.DB, earning *models.PartnerEarning) error
	Credit(ctx context.Context, tx *gorm.DB, id uint, amount decimal.Decimal) error
	ListEarnings(ctx context.Context, tx *gorm.DB, partnerID uint) ([]models.PartnerEarning, error)
}

// WebhookEventRepository defines the interface for the webhook delivery log
type WebhookEventRepository interface {
	CreateIfNotExists(ctx context.Context, event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error)
	MarkProcessed(ctx context.Context, id uint, processingError string) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Transaction  TransactionRepository
	Gateway      GatewayRepository
	Subscription SubscriptionRepository
	Referral     ReferralRepository
	Partner      PartnerRepository
	WebhookEvent WebhookEventRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Transaction:  NewTransactionRepository(db),
		Gateway:      NewGatewayRepository(db),
		Subscription: NewSubscriptionRepository(db),
		Referral:     NewReferralRepository(db),
		Partner:      NewPartnerRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
	}
}

func conn(ctx context.Context, db, tx *gorm.DB) *gorm.DB {
	if tx == nil {
		tx = db
	}
	return tx.WithContext(ctx)
}

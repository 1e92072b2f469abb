package repository

import (
	"context"
	"testing"

	"github.com/remnashop/backoffice/app/models"
	"github.com/remnashop/backoffice/internal/pkg/database/dbtest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestGatewaySeedKeepsDisabledRows(t *testing.T) {
	db := dbtest.New(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	require.NoError(t, repos.Gateway.Seed(ctx, []string{models.GatewayWata, models.GatewayPal24}))
	require.NoError(t, db.Model(&models.PaymentGateway{}).Where("name = ?", models.GatewayWata).Update("is_active", false).Error)
	require.NoError(t, repos.Gateway.Seed(ctx, []string{models.GatewayWata, models.GatewayPal24}))

	var count int64
	require.NoError(t, db.Model(&models.PaymentGateway{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)

	wata, err := repos.Gateway.GetByName(ctx, nil, " WATA ")
	require.NoError(t, err)
	assert.False(t, wata.IsActive)
}

func TestTransactionLedger(t *testing.T) {
	db := dbtest.New(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	txn := &models.PaymentTransaction{UserID: 1, GatewayID: 3, Amount: decimal.RequireFromString("99.90"), Currency: "RUB"}
	require.NoError(t, repos.Transaction.Create(ctx, nil, txn))
	assert.Len(t, txn.ID, 36)
	assert.Equal(t, models.TransactionStatusPending, txn.Status)
	assert.Equal(t, models.PaymentTypeOther, txn.Type)

	require.NoError(t, repos.Transaction.Update(ctx, nil, txn.ID, map[string]interface{}{"external_id": "ext-1"}))
	found, err := repos.Transaction.GetByExternalID(ctx, nil, "ext-1", 3)
	require.NoError(t, err)
	assert.Equal(t, txn.ID, found.ID)
	assert.Equal(t, "99.90", found.Amount.StringFixed(2))

	_, err = repos.Transaction.GetByExternalID(ctx, nil, "ext-1", 4)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	assert.ErrorIs(t, repos.Transaction.Update(ctx, nil, "missing", map[string]interface{}{"status": "failed"}), gorm.ErrRecordNotFound)

	other := &models.PaymentTransaction{UserID: 2, GatewayID: 3, Amount: decimal.NewFromInt(1), Currency: "RUB"}
	require.NoError(t, repos.Transaction.Create(ctx, nil, other))
	err = repos.Transaction.Update(ctx, nil, other.ID, map[string]interface{}{"external_id": "ext-1"})
	assert.Error(t, err, "external id is unique per gateway")
}

func TestTransactionUpdateInsideRolledBackTx(t *testing.T) {
	db := dbtest.New(t)
	repos := NewRepositories(db)
	ctx := context.Background()
	txn := &models.PaymentTransaction{ID: "tx-1", UserID: 1, GatewayID: 1, Amount: decimal.NewFromInt(5), Currency: "XTR"}
	require.NoError(t, repos.Transaction.Create(ctx, nil, txn))

	_ = db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, repos.Transaction.Update(ctx, tx, "tx-1", map[string]interface{}{"status": models.TransactionStatusCompleted}))
		return gorm.ErrInvalidTransaction
	})

	stored, err := repos.Transaction.GetByID(ctx, nil, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, stored.Status)
}

func TestUserCreateValidates(t *testing.T) {
	db := dbtest.New(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	assert.Error(t, repos.User.Create(ctx, nil, &models.User{}))

	u := &models.User{TelegramID: 42}
	require.NoError(t, repos.User.Create(ctx, nil, u))
	assert.Equal(t, models.STATUS_ACTIVE, u.Status)

	require.NoError(t, repos.User.AddBalance(ctx, nil, u.ID, decimal.RequireFromString("12.35")))
	require.NoError(t, repos.User.AddBalance(ctx, nil, u.ID, decimal.RequireFromString("0.65")))
	stored, err := repos.User.GetByID(ctx, nil, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "13.00", stored.Balance.StringFixed(2))
}

func TestWebhookEventDedup(t *testing.T) {
	db := dbtest.New(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	event := func() *models.PaymentWebhookEvent {
		return &models.PaymentWebhookEvent{Gateway: models.GatewayHeleket, EventKey: "hash:abc", PayloadJSON: "{}"}
	}
	created, stored, err := repos.WebhookEvent.CreateIfNotExists(ctx, event())
	require.NoError(t, err)
	assert.True(t, created)
	require.NoError(t, repos.WebhookEvent.MarkProcessed(ctx, stored.ID, ""))

	created, again, err := repos.WebhookEvent.CreateIfNotExists(ctx, event())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, stored.ID, again.ID)
	assert.NotNil(t, again.ProcessedAt)
}

func TestPartnerDefaultsAndCredit(t *testing.T) {
	db := dbtest.New(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	p := &models.Partner{UserID: 5}
	require.NoError(t, repos.Partner.Create(ctx, nil, p))
	assert.True(t, p.CommissionRate.Equal(models.DefaultPartnerCommissionRate))

	require.NoError(t, repos.Partner.Credit(ctx, nil, p.ID, decimal.RequireFromString("2.50")))
	stored, err := repos.Partner.GetByID(ctx, nil, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "2.50", stored.Balance.StringFixed(2))
	assert.Equal(t, "2.50", stored.TotalEarned.StringFixed(2))

	require.NoError(t, db.Delete(&models.Partner{}, p.ID).Error)
	_, err = repos.Partner.GetByID(ctx, nil, p.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

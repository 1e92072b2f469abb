package controllers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/remnashop/backoffice/app/models"
	"github.com/remnashop/backoffice/app/repository"
	"github.com/remnashop/backoffice/internal/pkg/database/dbtest"
	"github.com/remnashop/backoffice/internal/pkg/gateway"
	"github.com/remnashop/backoffice/internal/pkg/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	plategaSecret  = "merchant-secret"
	yookassaSecret = "yk-secret"
)

type webhookEnv struct {
	app     *fiber.App
	db      *gorm.DB
	repos   *repository.Repositories
	results *resultRecorder
}

type resultRecorder struct {
	mu      sync.Mutex
	results []string
}

func (r *resultRecorder) Record(_ context.Context, gateway, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, gateway+":"+result)
}

func newWebhookEnv(t *testing.T) *webhookEnv {
	t.Helper()
	ctx := context.Background()
	db := dbtest.New(t)
	repos := repository.NewRepositories(db)
	require.NoError(t, repos.Gateway.Seed(ctx, []string{models.GatewayPlatega, models.GatewayTelegramStars, models.GatewayYooKassa}))
	platega, err := repos.Gateway.GetByName(ctx, nil, models.GatewayPlatega)
	require.NoError(t, err)

	require.NoError(t, repos.User.Create(ctx, nil, &models.User{ID: 7, TelegramID: 7007, Status: models.STATUS_ACTIVE}))
	require.NoError(t, repos.Transaction.Create(ctx, nil, &models.PaymentTransaction{
		ID:        "tx-7",
		UserID:    7,
		GatewayID: platega.ID,
		Amount:    decimal.RequireFromString("150.50"),
		Currency:  "RUB",
		Type:      models.PaymentTypeBalance,
	}))

	results := &resultRecorder{}
	ctl := NewPaymentWebhookController(
		gateway.DefaultRegistry(),
		payment.NewService(db, repos, nil),
		repos,
		map[string]string{models.GatewayPlatega: plategaSecret, models.GatewayTelegramStars: "tg-secret", models.GatewayYooKassa: yookassaSecret},
	).WithCounter(results)
	app := fiber.New()
	app.Post("/webhook/payments/:gateway", ctl.HandleWebhook)
	return &webhookEnv{app: app, db: db, repos: repos, results: results}
}

func (e *webhookEnv) post(t *testing.T, gatewayName, body string, headers map[string]string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/webhook/payments/"+gatewayName, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func plategaBody(status, extra string) string {
	return fmt.Sprintf(`{"id":"pl-1","amount":150.5,"currency":"RUB","status":%q,"payload":"tx-7"%s}`, status, extra)
}

var plategaHeaders = map[string]string{"X-Secret": plategaSecret}

func TestWebhookProcessesPayment(t *testing.T) {
	env := newWebhookEnv(t)

	code, body := env.post(t, models.GatewayPlatega, plategaBody("CONFIRMED", ""), plategaHeaders)
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "processed", body["status"])
	assert.Equal(t, "tx-7", body["transaction_id"])

	user, err := env.repos.User.GetByID(context.Background(), nil, 7)
	require.NoError(t, err)
	assert.Equal(t, "150.50", user.Balance.StringFixed(2))

	var event models.PaymentWebhookEvent
	require.NoError(t, env.db.First(&event).Error)
	assert.True(t, event.SignatureValid)
	assert.NotNil(t, event.ProcessedAt)
	assert.Empty(t, event.ProcessingError)
	assert.True(t, strings.HasPrefix(event.EventKey, "hash:"))
}

func TestWebhookRedeliveryIsDuplicate(t *testing.T) {
	env := newWebhookEnv(t)

	code, _ := env.post(t, models.GatewayPlatega, plategaBody("CONFIRMED", ""), plategaHeaders)
	require.Equal(t, fiber.StatusOK, code)

	code, body := env.post(t, models.GatewayPlatega, plategaBody("CONFIRMED", ""), plategaHeaders)
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, true, body["duplicate"])

	// Same payment, different bytes: the ledger fence catches it.
	code, body = env.post(t, models.GatewayPlatega, plategaBody("CONFIRMED", `,"retry":1`), plategaHeaders)
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "duplicate", body["status"])

	user, err := env.repos.User.GetByID(context.Background(), nil, 7)
	require.NoError(t, err)
	assert.Equal(t, "150.50", user.Balance.StringFixed(2))
	assert.Equal(t, []string{"platega:processed", "platega:duplicate", "platega:duplicate"}, env.results.results)
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	env := newWebhookEnv(t)

	code, body := env.post(t, models.GatewayPlatega, plategaBody("CONFIRMED", ""), map[string]string{"X-Secret": "guess"})
	assert.Equal(t, fiber.StatusUnauthorized, code)
	assert.Equal(t, "invalid_signature", body["error"])
	assert.Equal(t, []string{"platega:invalid_signature"}, env.results.results)

	txn, err := env.repos.Transaction.GetByID(context.Background(), nil, "tx-7")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, txn.Status)

	var stored int64
	require.NoError(t, env.db.Model(&models.PaymentWebhookEvent{}).Count(&stored).Error)
	assert.Zero(t, stored)

	// A correctly signed redelivery of the same body is still processed.
	code, body = env.post(t, models.GatewayPlatega, plategaBody("CONFIRMED", ""), plategaHeaders)
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "processed", body["status"])
}

func TestWebhookYooKassaSubscriptionEndToEnd(t *testing.T) {
	env := newWebhookEnv(t)
	ctx := context.Background()
	yookassa, err := env.repos.Gateway.GetByName(ctx, nil, models.GatewayYooKassa)
	require.NoError(t, err)

	require.NoError(t, env.repos.User.Create(ctx, nil, &models.User{ID: 3, TelegramID: 3003, Status: models.STATUS_ACTIVE}))
	referrer := uint(3)
	require.NoError(t, env.repos.User.Create(ctx, nil, &models.User{ID: 8, TelegramID: 8008, Status: models.STATUS_ACTIVE, ReferredBy: &referrer}))
	require.NoError(t, env.repos.Transaction.Create(ctx, nil, &models.PaymentTransaction{
		ID:        "tx-1",
		UserID:    8,
		GatewayID: yookassa.ID,
		Amount:    decimal.RequireFromString("9.99"),
		Currency:  "USD",
		Type:      models.PaymentTypeSubscription,
	}))

	body := `{"status":"succeeded","paid":true,"amount":{"value":"9.99","currency":"USD"},` +
		`"metadata":{"payment_id":"tx-1","type":"subscription","planId":"p1","durationDays":"30"}}`
	mac := hmac.New(sha256.New, []byte(yookassaSecret))
	mac.Write([]byte(body))
	headers := map[string]string{"X-Yookassa-Signature": hex.EncodeToString(mac.Sum(nil))}

	start := time.Now()
	code, resp := env.post(t, models.GatewayYooKassa, body, headers)
	require.Equal(t, fiber.StatusOK, code, resp)
	assert.Equal(t, "processed", resp["status"])
	assert.Equal(t, "tx-1", resp["transaction_id"])
	assert.Nil(t, resp["failed_side_effects"])

	txn, err := env.repos.Transaction.GetByID(ctx, nil, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, txn.Status)

	subs, err := env.repos.Subscription.ListByUser(ctx, nil, 8)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "p1", subs[0].PlanID)
	assert.WithinDuration(t, start.AddDate(0, 0, 30), subs[0].ExpireAt, time.Minute)

	accrual, err := env.repos.Referral.Get(ctx, nil, 3, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(0), accrual.Points)
	assert.Equal(t, int64(1), accrual.PaymentsCount)
}

func TestWebhookUnknownAndDisabledGateways(t *testing.T) {
	env := newWebhookEnv(t)

	code, body := env.post(t, "paypal", `{}`, nil)
	assert.Equal(t, fiber.StatusNotFound, code)
	assert.Equal(t, "unknown_gateway", body["error"])

	code, body = env.post(t, models.GatewayWata, `{}`, nil)
	assert.Equal(t, fiber.StatusNotFound, code)
	assert.Equal(t, "gateway_disabled", body["error"])

	require.NoError(t, env.db.Model(&models.PaymentGateway{}).Where("name = ?", models.GatewayPlatega).Update("is_active", false).Error)
	code, body = env.post(t, models.GatewayPlatega, plategaBody("CONFIRMED", ""), plategaHeaders)
	assert.Equal(t, fiber.StatusNotFound, code)
	assert.Equal(t, "gateway_disabled", body["error"])
}

func TestWebhookMalformedPayload(t *testing.T) {
	env := newWebhookEnv(t)

	code, body := env.post(t, models.GatewayPlatega, `{"id":"pl-1","amount":"lots","currency":"RUB","status":"CONFIRMED"}`, plategaHeaders)
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, "invalid_payload", body["error"])

	var event models.PaymentWebhookEvent
	require.NoError(t, env.db.First(&event).Error)
	assert.NotEmpty(t, event.ProcessingError)
}

func TestWebhookIgnoresUnsupportedEvents(t *testing.T) {
	env := newWebhookEnv(t)

	code, body := env.post(t, models.GatewayTelegramStars, `{"update_id":10,"message":{"message_id":1,"text":"hi"}}`,
		map[string]string{"X-Telegram-Bot-Api-Secret-Token": "tg-secret"})
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, true, body["ignored"])
}

func TestWebhookFailureAndUnknownTransaction(t *testing.T) {
	env := newWebhookEnv(t)

	unknown := `{"id":"pl-9","amount":10,"currency":"RUB","status":"CONFIRMED","payload":"tx-missing"}`
	code, body := env.post(t, models.GatewayPlatega, unknown, plategaHeaders)
	assert.Equal(t, fiber.StatusInternalServerError, code)
	assert.Equal(t, "transaction_not_found", body["error"])

	canceled := `{"id":"pl-9","amount":10,"currency":"RUB","status":"CANCELED","payload":"tx-missing"}`
	code, body = env.post(t, models.GatewayPlatega, canceled, plategaHeaders)
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "acknowledged", body["status"])

	code, body = env.post(t, models.GatewayPlatega, plategaBody("CANCELED", ""), plategaHeaders)
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "processed", body["status"])

	txn, err := env.repos.Transaction.GetByID(context.Background(), nil, "tx-7")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, txn.Status)
}

func TestWebhookStatusCode(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{err: payment.ErrSignatureInvalid, status: fiber.StatusUnauthorized, code: "invalid_signature"},
		{err: payment.Malformed("bad amount"), status: fiber.StatusBadRequest, code: "invalid_payload"},
		{err: fmt.Errorf("%w: tx-1", payment.ErrTransactionNotFound), status: fiber.StatusInternalServerError, code: "transaction_not_found"},
		{err: fmt.Errorf("%w: user 7", payment.ErrUserNotFound), status: fiber.StatusInternalServerError, code: "user_not_found"},
		{err: payment.ErrLedger, status: fiber.StatusInternalServerError, code: "processing_failed"},
	}
	for _, tt := range tests {
		status, code := webhookStatusCode(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}

// Package notification publishes payment events for the bot process that
// talks to users.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/remnashop/backoffice/internal/pkg/payment"
	"github.com/shopspring/decimal"
)

const (
	DefaultChannel = "notifications:events"
	publishTimeout = 3 * time.Second
)

// Event types carried in Envelope.Type.
const (
	EventPaymentReceived   = "payment.received"
	EventPaymentFailed     = "payment.failed"
	EventPartnerCommission = "partner.commission"
)

// Publisher is the subset of *redis.Client the emitter needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Envelope is the JSON message published on the channel.
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	UserID    uint            `json:"user_id"`
	CreatedAt time.Time       `json:"created_at"`
	Data      json.RawMessage `json:"data"`
}

type paymentFailedData struct {
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}

type partnerCommissionData struct {
	OrderID  string          `json:"order_id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// RedisEmitter implements payment.NotificationEmitter over Redis pub/sub.
// Publishing happens in the background; failures are logged only.
type RedisEmitter struct {
	pub     Publisher
	channel string
	timeout time.Duration
	now     func() time.Time
	wg      sync.WaitGroup
}

var _ payment.NotificationEmitter = (*RedisEmitter)(nil)

func NewRedisEmitter(pub Publisher, channel string) *RedisEmitter {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisEmitter{
		pub:     pub,
		channel: channel,
		timeout: publishTimeout,
		now:     time.Now,
	}
}

func (e *RedisEmitter) EmitPaymentReceived(ctx context.Context, userID uint, event payment.PaymentReceivedEvent) error {
	return e.publish(ctx, EventPaymentReceived, userID, event)
}

func (e *RedisEmitter) EmitPaymentFailed(ctx context.Context, userID uint, transactionID, reason string) error {
	return e.publish(ctx, EventPaymentFailed, userID, paymentFailedData{TransactionID: transactionID, Reason: reason})
}

func (e *RedisEmitter) EmitPartnerCommission(ctx context.Context, userID uint, amount decimal.Decimal, orderID, currency string) error {
	return e.publish(ctx, EventPartnerCommission, userID, partnerCommissionData{OrderID: orderID, Amount: amount, Currency: currency})
}

// Wait blocks until every queued publish has finished.
func (e *RedisEmitter) Wait() {
	e.wg.Wait()
}

func (e *RedisEmitter) publish(ctx context.Context, eventType string, userID uint, data interface{}) error {
	msg, err := e.envelope(eventType, userID, data)
	if err != nil {
		return err
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
		defer cancel()
		if err := e.pub.Publish(pubCtx, e.channel, msg).Err(); err != nil {
			log.Warnf("[Notify] Failed to publish %s for user %d: %v", eventType, userID, err)
			return
		}
		log.Debugf("[Notify] Published %s for user %d", eventType, userID)
	}()
	return nil
}

func (e *RedisEmitter) envelope(eventType string, userID uint, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", eventType, err)
	}
	return json.Marshal(Envelope{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		CreatedAt: e.now().UTC(),
		Data:      raw,
	})
}

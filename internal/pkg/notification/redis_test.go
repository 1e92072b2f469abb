package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/remnashop/backoffice/internal/pkg/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu       sync.Mutex
	channels []string
	messages [][]byte
	err      error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewIntCmd(ctx, "publish", channel, message)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.channels = append(f.channels, channel)
	f.messages = append(f.messages, message.([]byte))
	cmd.SetVal(1)
	return cmd
}

func decode(t *testing.T, raw []byte) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func TestRedisEmitterPublishesEnvelopes(t *testing.T) {
	pub := &fakePublisher{}
	e := NewRedisEmitter(pub, "")
	ctx := context.Background()

	require.NoError(t, e.EmitPaymentReceived(ctx, 7, payment.PaymentReceivedEvent{
		TransactionID: "tx-1",
		Gateway:       "yookassa",
		Amount:        decimal.RequireFromString("100.00"),
		Currency:      "RUB",
		PaymentType:   "subscription",
		PlanID:        "2",
		DurationDays:  30,
	}))
	require.NoError(t, e.EmitPartnerCommission(ctx, 20, decimal.RequireFromString("10.50"), "tx-1", "RUB"))
	e.Wait()

	require.Len(t, pub.messages, 2)
	assert.Equal(t, []string{DefaultChannel, DefaultChannel}, pub.channels)

	byType := map[string]Envelope{}
	for _, raw := range pub.messages {
		env := decode(t, raw)
		_, err := uuid.Parse(env.ID)
		assert.NoError(t, err)
		byType[env.Type] = env
	}

	received := byType[EventPaymentReceived]
	assert.Equal(t, uint(7), received.UserID)
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(received.Data, &data))
	assert.Equal(t, "tx-1", data["transaction_id"])
	assert.Equal(t, "100", data["amount"])

	commission := byType[EventPartnerCommission]
	assert.Equal(t, uint(20), commission.UserID)
	assert.JSONEq(t, `{"order_id":"tx-1","amount":"10.5","currency":"RUB"}`, string(commission.Data))
}

func TestRedisEmitterPublishErrorIsNotReturned(t *testing.T) {
	pub := &fakePublisher{err: errors.New("connection refused")}
	e := NewRedisEmitter(pub, "custom:events")

	assert.NoError(t, e.EmitPaymentFailed(context.Background(), 7, "tx-2", "declined"))
	e.Wait()
	assert.Empty(t, pub.messages)
}

func TestRedisEmitterOutlivesCanceledContext(t *testing.T) {
	pub := &fakePublisher{}
	e := NewRedisEmitter(pub, "custom:events")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, e.EmitPaymentFailed(ctx, 7, "tx-3", "declined"))
	e.Wait()

	require.Len(t, pub.messages, 1)
	assert.Equal(t, "custom:events", pub.channels[0])
	env := decode(t, pub.messages[0])
	assert.Equal(t, EventPaymentFailed, env.Type)
	assert.JSONEq(t, `{"transaction_id":"tx-3","reason":"declined"}`, string(env.Data))
}

package counter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

const (
	webhookKeyPrefix = "payments:webhooks"
	retention        = 14 * 24 * time.Hour
)

// Webhook results counted per gateway.
const (
	ResultProcessed        = "processed"
	ResultDuplicate        = "duplicate"
	ResultAcknowledged     = "acknowledged"
	ResultIgnored          = "ignored"
	ResultInvalidSignature = "invalid_signature"
	ResultInvalidPayload   = "invalid_payload"
	ResultError            = "error"
)

// Store is the subset of *redis.Client the counters use.
type Store interface {
	HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// WebhookCounter keeps one Redis hash per UTC day with a "gateway:result"
// field per outcome.
type WebhookCounter struct {
	store Store
	now   func() time.Time
}

func NewWebhookCounter(store Store) *WebhookCounter {
	return &WebhookCounter{store: store, now: time.Now}
}

// Record increments the counter for gateway and result. Failures are logged
// and never reach the webhook response.
func (c *WebhookCounter) Record(ctx context.Context, gateway, result string) {
	key := dayKey(c.now())
	if err := c.store.HIncrBy(ctx, key, gateway+":"+result, 1).Err(); err != nil {
		log.Warnf("[Metrics] Failed to count %s %s webhook: %v", gateway, result, err)
		return
	}
	if err := c.store.Expire(ctx, key, retention).Err(); err != nil {
		log.Debugf("[Metrics] Failed to set expiry on %s: %v", key, err)
	}
}

// Day returns gateway -> result -> count for the UTC day containing t.
func (c *WebhookCounter) Day(ctx context.Context, t time.Time) (map[string]map[string]int64, error) {
	data, err := c.store.HGetAll(ctx, dayKey(t)).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]map[string]int64)
	for field, raw := range data {
		gateway, result, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		if out[gateway] == nil {
			out[gateway] = make(map[string]int64)
		}
		out[gateway][result] = n
	}
	return out, nil
}

// Today is Day for the current time.
func (c *WebhookCounter) Today(ctx context.Context) (map[string]map[string]int64, error) {
	return c.Day(ctx, c.now())
}

func dayKey(t time.Time) string {
	return fmt.Sprintf("%s:%s", webhookKeyPrefix, t.UTC().Format("2006-01-02"))
}

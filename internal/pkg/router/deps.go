package router

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/remnashop/backoffice/app/controllers"
	"github.com/remnashop/backoffice/internal/pkg/config"
)

// Deps carries what the route groups need from main.
type Deps struct {
	Config   *config.Config
	Webhooks *controllers.PaymentWebhookController
	// LimiterStorage backs the webhook rate limiter. Nil keeps the counters
	// in memory.
	LimiterStorage fiber.Storage
	// WebhookStats serves today's webhook counters on /metrics/webhooks.
	WebhookStats func(ctx context.Context) (map[string]map[string]int64, error)
	// Ping reports readiness of the backing services for /health.
	Ping func() error
}

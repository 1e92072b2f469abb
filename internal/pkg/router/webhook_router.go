package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type WebhookRouter struct {
	deps Deps
}

func (w WebhookRouter) InstallRouter(app *fiber.App) {
	limit, window := 120, time.Minute
	if w.deps.Config != nil {
		if p := w.deps.Config.Payments; p.WebhookRateLimit > 0 {
			limit = p.WebhookRateLimit
		}
		if p := w.deps.Config.Payments; p.WebhookRateWindow > 0 {
			window = p.WebhookRateWindow
		}
	}

	webhooks := app.Group("/webhook/payments", limiter.New(limiter.Config{
		Max:        limit,
		Expiration: window,
		Storage:    w.deps.LimiterStorage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited"})
		},
	}))
	webhooks.Post("/:gateway", w.deps.Webhooks.HandleWebhook)
}

func NewWebhookRouter(deps Deps) *WebhookRouter {
	return &WebhookRouter{deps: deps}
}

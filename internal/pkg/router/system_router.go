package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/monitor"
)

type SystemRouter struct {
	deps Deps
}

func (s SystemRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", s.health)

	if s.deps.Config == nil || s.deps.Config.App.MetricsPassword == "" {
		log.Warn("[Router] METRICS_PASSWORD is empty, /metrics is disabled")
		return
	}
	auth := basicauth.New(basicauth.Config{
		Users: map[string]string{
			s.deps.Config.App.MetricsUser: s.deps.Config.App.MetricsPassword,
		},
	})
	if s.deps.WebhookStats != nil {
		app.Get("/metrics/webhooks", auth, s.webhookStats)
	}
	app.Get("/metrics", auth, monitor.New(monitor.Config{Title: "Backoffice Metrics"}))
}

func (s SystemRouter) webhookStats(c *fiber.Ctx) error {
	stats, err := s.deps.WebhookStats(c.UserContext())
	if err != nil {
		log.Warnf("[Router] Reading webhook counters failed: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "counters_unavailable"})
	}
	return c.Status(fiber.StatusOK).JSON(stats)
}

func (s SystemRouter) health(c *fiber.Ctx) error {
	if s.deps.Ping != nil {
		if err := s.deps.Ping(); err != nil {
			log.Warnf("[Router] Health check failed: %v", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
}

func NewSystemRouter(deps Deps) *SystemRouter {
	return &SystemRouter{deps: deps}
}

package router

import (
	"github.com/gofiber/fiber/v2"
)

// Router registers one group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter registers the system routes first so /health stays outside
// the webhook rate limiter.
func InstallRouter(app *fiber.App, deps Deps) {
	setup(app, NewSystemRouter(deps), NewWebhookRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/remnashop/backoffice/app/controllers"
	"github.com/remnashop/backoffice/app/repository"
	"github.com/remnashop/backoffice/internal/pkg/cache"
	"github.com/remnashop/backoffice/internal/pkg/config"
	"github.com/remnashop/backoffice/internal/pkg/database"
	"github.com/remnashop/backoffice/internal/pkg/env"
	"github.com/remnashop/backoffice/internal/pkg/gateway"
	"github.com/remnashop/backoffice/internal/pkg/metrics/counter"
	"github.com/remnashop/backoffice/internal/pkg/notification"
	"github.com/remnashop/backoffice/internal/pkg/payment"
	"github.com/remnashop/backoffice/internal/pkg/router"
)

const shutdownTimeout = 10 * time.Second

func main() {
	env.SetupEnvFile()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Config] %v", err)
	}
	if cfg.App.IsDev() {
		log.SetLevel(log.LevelDebug)
	}

	app, emitter := NewApplication(cfg)

	go func() {
		if err := app.Listen(fmt.Sprintf("%s:%s", cfg.App.Host, cfg.App.Port)); err != nil {
			log.Fatalf("[Server] %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("[Server] Shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Errorf("[Server] Shutdown: %v", err)
	}
	emitter.Wait()
	if err := cache.Close(); err != nil {
		log.Warnf("[Cache] Close: %v", err)
	}
}

func NewApplication(cfg *config.Config) (*fiber.App, *notification.RedisEmitter) {
	database.SetupDatabase(cfg.Database)
	db := database.GetDB()
	repository.InitializeFactory(db)
	repos := repository.GetGlobalRepositories()

	registry := gateway.DefaultRegistry()
	if err := repos.Gateway.Seed(context.Background(), registry.Names()); err != nil {
		log.Errorf("[Database] Seeding gateways failed: %v", err)
	}

	redisClient := cache.SetupCache(cfg.Cache)
	emitter := notification.NewRedisEmitter(redisClient, cfg.Payments.NotificationChannel)
	svc := payment.NewService(db, repos, emitter, payment.WithTimeout(cfg.Payments.ProcessingTimeout))
	webhookCounter := counter.NewWebhookCounter(redisClient)
	webhooks := controllers.NewPaymentWebhookController(registry, svc, repos, cfg.Gateways.Secrets()).
		WithCounter(webhookCounter)

	app := fiber.New(fiber.Config{
		AppName:   "backoffice",
		BodyLimit: 1 << 20,
	})
	app.Use(recover.New(), logger.New())

	if _, err := os.Stat(cfg.App.DocsFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: cfg.App.DocsFile,
			Path:     "v1",
		}))
	} else {
		log.Warnf("[Server] API docs not found at %s", cfg.App.DocsFile)
	}

	router.InstallRouter(app, router.Deps{
		Config:         cfg,
		Webhooks:       webhooks,
		LimiterStorage: limiterStorage(cfg.Cache),
		WebhookStats:   webhookCounter.Today,
		Ping: func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Ping()
		},
	})

	return app, emitter
}

// limiterStorage keeps webhook rate limit counters in Redis so every
// replica shares them. It returns nil when Redis is unreachable.
func limiterStorage(cfg config.Cache) fiber.Storage {
	client := cache.GetClient()
	if client == nil || client.Ping(context.Background()).Err() != nil {
		log.Warn("[Cache] Webhook rate limiter falls back to memory storage")
		return nil
	}
	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		log.Warnf("[Cache] Invalid CACHE_PORT %q, rate limiter uses memory storage", cfg.Port)
		return nil
	}
	return redisstorage.New(redisstorage.Config{
		Host:     cfg.Host,
		Port:     port,
		Password: cfg.Password,
		Database: cfg.LimiterDB,
		Reset:    false,
	})
}

package cache

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"github.com/remnashop/backoffice/internal/pkg/config"
)

var (
	client *redis.Client
	ctx    = context.Background()
)

// SetupCache connects to the Redis compatible cache used for notifications
// and webhook rate limiting.
func SetupCache(cfg config.Cache) *redis.Client {
	client = redis.NewClient(&redis.Options{
		Addr:     Addr(cfg),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Warnf("[Cache] Could not connect to %s: %v", Addr(cfg), err)
	} else {
		log.Infof("[Cache] Connected to %s: %s", Addr(cfg), pong)
	}
	return client
}

// Addr returns host:port for cfg.
func Addr(cfg config.Cache) string {
	return fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
}

// GetClient returns the Redis client instance. It is nil until SetupCache ran.
func GetClient() *redis.Client {
	return client
}

// Close releases the connection pool.
func Close() error {
	if client == nil {
		return nil
	}
	return client.Close()
}

package config

import (
	"os"
	"strings"
	"time"

	envparse "github.com/caarlos0/env/v10"
	"github.com/remnashop/backoffice/app/models"
	"github.com/remnashop/backoffice/internal/pkg/env"
)

type Config struct {
	App      App
	Database Database
	Cache    Cache
	Payments Payments
	Gateways Gateways `envPrefix:"GATEWAY_"`
}

type App struct {
	Env             string `env:"APP_ENV" envDefault:"prod"`
	Host            string `env:"APP_HOST" envDefault:"localhost"`
	Port            string `env:"APP_PORT" envDefault:"4000"`
	MetricsUser     string `env:"METRICS_USER" envDefault:"admin"`
	MetricsPassword string `env:"METRICS_PASSWORD"`
	DocsFile        string `env:"API_DOCS_FILE" envDefault:"./docs/openapi.yml"`
}

type Database struct {
	Host         string `env:"DB_HOST" envDefault:"127.0.0.1"`
	Port         string `env:"DB_PORT" envDefault:"3306"`
	User         string `env:"DB_USER"`
	Password     string `env:"DB_PASSWORD"`
	Name         string `env:"DB_NAME"`
	MaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int    `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
}

type Cache struct {
	Host      string `env:"CACHE_HOST" envDefault:"localhost"`
	Port      string `env:"CACHE_PORT" envDefault:"6379"`
	Password  string `env:"CACHE_PASSWORD"`
	DB        int    `env:"CACHE_DB" envDefault:"0"`
	LimiterDB int    `env:"CACHE_LIMITER_DB" envDefault:"2"`
}

type Payments struct {
	ProcessingTimeout   time.Duration `env:"PAYMENT_PROCESSING_TIMEOUT" envDefault:"5s"`
	WebhookRateLimit    int           `env:"PAYMENT_WEBHOOK_RATE_LIMIT" envDefault:"120"`
	WebhookRateWindow   time.Duration `env:"PAYMENT_WEBHOOK_RATE_WINDOW" envDefault:"1m"`
	NotificationChannel string        `env:"NOTIFICATION_CHANNEL" envDefault:"notifications:events"`
}

// Gateways holds the webhook verification secret of every gateway. An
// empty secret makes every delivery for that gateway fail verification.
type Gateways struct {
	CryptopayToken      string `env:"CRYPTOPAY_TOKEN"`
	YooKassaSecret      string `env:"YOOKASSA_SECRET"`
	HeleketAPIKey       string `env:"HELEKET_API_KEY"`
	Pal24Token          string `env:"PAL24_TOKEN"`
	PlategaSecret       string `env:"PLATEGA_SECRET"`
	WataPublicKey       string `env:"WATA_PUBLIC_KEY"`
	TelegramStarsSecret string `env:"TELEGRAM_STARS_SECRET"`
}

// Secrets returns the gateway name to secret table used by the webhook handler.
func (g Gateways) Secrets() map[string]string {
	return map[string]string{
		models.GatewayCryptopay:     g.CryptopayToken,
		models.GatewayYooKassa:      g.YooKassaSecret,
		models.GatewayHeleket:       g.HeleketAPIKey,
		models.GatewayPal24:         g.Pal24Token,
		models.GatewayPlatega:       g.PlategaSecret,
		models.GatewayWata:          strings.ReplaceAll(g.WataPublicKey, `\n`, "\n"),
		models.GatewayTelegramStars: g.TelegramStarsSecret,
	}
}

func (a App) IsDev() bool {
	return a.Env == "dev"
}

// Load parses the configuration from the loaded .env map, falling back to
// the process environment for keys the file does not set.
func Load() (*Config, error) {
	return Parse(environment())
}

// Parse builds a Config from an explicit key/value set.
func Parse(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := envparse.ParseWithOptions(cfg, envparse.Options{Environment: vars}); err != nil {
		return nil, err
	}
	return cfg, nil
}

func environment() map[string]string {
	vars := make(map[string]string, len(env.Env))
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	for k, v := range env.Env {
		vars[k] = v
	}
	return vars
}

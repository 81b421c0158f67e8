package shared

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"prod"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	MetricsAddr string `env:"METRICS_ADDR"`

	MySQLDSN  string `env:"MYSQL_DSN" envDefault:"root:root@tcp(localhost:3306)/croffers?parseTime=true&charset=utf8mb4,utf8&loc=UTC"`
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	CacheTTL     time.Duration `env:"CACHE_TTL" envDefault:"15m"`
	EventsStream string        `env:"EVENTS_STREAM" envDefault:"croffers:events"`

	BookingTTL          time.Duration `env:"BOOKING_TTL" envDefault:"30m"`
	ExpirySweepInterval time.Duration `env:"EXPIRY_SWEEP_INTERVAL" envDefault:"1m"`

	PaymentBase     string `env:"PAYMENT_BASE_URL" envDefault:"https://api.payments.example/v1"`
	PaymentKey      string `env:"PAYMENT_API_KEY"`
	PaymentCurrency string `env:"PAYMENT_CURRENCY" envDefault:"EUR"`

	SignalsBase string `env:"SIGNALS_BASE_URL" envDefault:"https://signals.croffers.example/v1"`
	SignalsKey  string `env:"SIGNALS_API_KEY"`
	SignalsRPS  int    `env:"SIGNALS_RPS" envDefault:"5"`

	CrowdWorkers         int           `env:"CROWD_WORKERS" envDefault:"8"`
	CrowdRefreshInterval time.Duration `env:"CROWD_REFRESH_INTERVAL" envDefault:"0s"`
}

// Load reads the environment, optionally seeded from a .env file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file, using process environment")
	}
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := validate(c); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	if c.PaymentKey == "" {
		log.Warn().Msg("PAYMENT_API_KEY is empty")
	}
	return c, nil
}

func MustLoad() Config {
	c, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return c
}

func validate(c Config) error {
	if c.MySQLDSN == "" {
		return fmt.Errorf("MYSQL_DSN is required")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.BookingTTL <= 0 {
		return fmt.Errorf("BOOKING_TTL must be positive")
	}
	if c.ExpirySweepInterval <= 0 {
		return fmt.Errorf("EXPIRY_SWEEP_INTERVAL must be positive")
	}
	if c.CrowdWorkers < 1 {
		return fmt.Errorf("CROWD_WORKERS must be at least 1, got %d", c.CrowdWorkers)
	}
	if c.SignalsRPS < 1 {
		return fmt.Errorf("SIGNALS_RPS must be at least 1, got %d", c.SignalsRPS)
	}
	if len(c.PaymentCurrency) != 3 {
		return fmt.Errorf("PAYMENT_CURRENCY must be an ISO 4217 code, got %q", c.PaymentCurrency)
	}
	return nil
}

func (c Config) IsDev() bool { return c.AppEnv == "dev" || c.AppEnv == "development" }

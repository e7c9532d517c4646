package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config keeps runtime settings for the reminder service.
type Config struct {
	TelegramToken string `env:"TELEGRAM_TOKEN"`
	DatabaseURL   string `env:"DATABASE_URL" env-default:"duekeeper.db"`

	LedgerBackend string        `env:"LEDGER_BACKEND" env-default:"sqlite"`
	RedisURL      string        `env:"REDIS_URL"`
	LedgerTTL     time.Duration `env:"LEDGER_TTL" env-default:"0"`

	Dispatch DispatchConfig

	// DigestTime is the HH:MM at which Telegram users get their digest. Empty disables it.
	DigestTime      string `env:"DIGEST_TIME"`
	DefaultTimezone string `env:"DEFAULT_TIMEZONE" env-default:"UTC"`

	LogLevel  string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `env:"LOG_FORMAT" env-default:"console"`
}

type DispatchConfig struct {
	Interval    time.Duration `env:"DISPATCH_INTERVAL" env-default:"1h"`
	Workers     int           `env:"DISPATCH_WORKERS" env-default:"4"`
	RatePerSec  int           `env:"SEND_RATE_PER_SEC" env-default:"5"`
	SendTimeout time.Duration `env:"SEND_TIMEOUT" env-default:"10s"`
}

const (
	LedgerSQLite = "sqlite"
	LedgerRedis  = "redis"
)

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	cfg.LedgerBackend = strings.ToLower(strings.TrimSpace(cfg.LedgerBackend))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.LedgerBackend {
	case LedgerSQLite:
	case LedgerRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis ledger")
		}
	default:
		return fmt.Errorf("LEDGER_BACKEND must be %s or %s, got %q", LedgerSQLite, LedgerRedis, c.LedgerBackend)
	}
	if c.Dispatch.Interval <= 0 {
		return fmt.Errorf("DISPATCH_INTERVAL must be positive")
	}
	if c.Dispatch.Workers <= 0 {
		return fmt.Errorf("DISPATCH_WORKERS must be positive")
	}
	if c.Dispatch.SendTimeout <= 0 {
		return fmt.Errorf("SEND_TIMEOUT must be positive")
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("DEFAULT_TIMEZONE: %w", err)
	}
	return nil
}

// Location resolves DefaultTimezone. Validate has already checked it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Load reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TELEGRAM_TOKEN", "DATABASE_URL", "LEDGER_BACKEND", "REDIS_URL", "LEDGER_TTL",
		"DISPATCH_INTERVAL", "DISPATCH_WORKERS", "SEND_RATE_PER_SEC", "SEND_TIMEOUT",
		"DIGEST_TIME", "DEFAULT_TIMEZONE", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "duekeeper.db", cfg.DatabaseURL)
	assert.Equal(t, LedgerSQLite, cfg.LedgerBackend)
	assert.Equal(t, time.Hour, cfg.Dispatch.Interval)
	assert.Equal(t, 4, cfg.Dispatch.Workers)
	assert.Equal(t, 5, cfg.Dispatch.RatePerSec)
	assert.Equal(t, 10*time.Second, cfg.Dispatch.SendTimeout)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "  123:abc  ")
	t.Setenv("LEDGER_BACKEND", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("LEDGER_TTL", "720h")
	t.Setenv("DISPATCH_INTERVAL", "15m")
	t.Setenv("DISPATCH_WORKERS", "8")
	t.Setenv("DEFAULT_TIMEZONE", "Europe/Berlin")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.TelegramToken)
	assert.Equal(t, LedgerRedis, cfg.LedgerBackend)
	assert.Equal(t, 720*time.Hour, cfg.LedgerTTL)
	assert.Equal(t, 15*time.Minute, cfg.Dispatch.Interval)
	assert.Equal(t, 8, cfg.Dispatch.Workers)
	assert.Equal(t, "Europe/Berlin", cfg.Location().String())
}

func TestLoadRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown ledger", env: map[string]string{"LEDGER_BACKEND": "etcd"}},
		{name: "redis without url", env: map[string]string{"LEDGER_BACKEND": "redis"}},
		{name: "zero workers", env: map[string]string{"DISPATCH_WORKERS": "0"}},
		{name: "negative interval", env: map[string]string{"DISPATCH_INTERVAL": "-1m"}},
		{name: "unknown timezone", env: map[string]string{"DEFAULT_TIMEZONE": "Mars/Olympus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

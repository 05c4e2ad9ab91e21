package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookup(env map[string]string) func(string) string {
	return func(key string) string { return env[key] }
}

func TestFromLookup(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := FromLookup(lookup(map[string]string{"STORAGE_DRIVER": "memory"}))
		require.NoError(t, err)

		assert.Equal(t, "8080", cfg.HTTPPort)
		assert.Equal(t, ProviderMock, cfg.Payments.Provider)
		assert.Equal(t, "https://securepay.tinkoff.ru/v2", cfg.Payments.TBank.APIURL)
		assert.Equal(t, 15*time.Second, cfg.Payments.TBank.Timeout)
		assert.Equal(t, 20*time.Minute, cfg.Reconcile.StuckAfter)
		assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
		assert.False(t, cfg.Payments.LiveEnabled())
	})

	t.Run("Live Gateway", func(t *testing.T) {
		cfg, err := FromLookup(lookup(map[string]string{
			"STORAGE_DRIVER":             "memory",
			"PAYMENT_PROVIDER":           "TBank",
			"TBANK_TERMINAL_KEY":         "term",
			"TBANK_PASSWORD":             "secret",
			"TBANK_API_URL":              "https://example.test/v2/",
			"TBANK_ALLOW_MANUAL_CONFIRM": "true",
			"LOG_LEVEL":                  "debug",
		}))
		require.NoError(t, err)

		assert.True(t, cfg.Payments.LiveEnabled())
		assert.True(t, cfg.Payments.TBank.AllowManualConfirm)
		assert.Equal(t, "https://example.test/v2", cfg.Payments.TBank.APIURL)
		assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	})

	t.Run("Live Provider Without Credentials", func(t *testing.T) {
		cfg, err := FromLookup(lookup(map[string]string{
			"STORAGE_DRIVER":   "memory",
			"PAYMENT_PROVIDER": "tbank",
		}))
		require.NoError(t, err)
		assert.False(t, cfg.Payments.LiveEnabled())
	})

	t.Run("Invalid Values", func(t *testing.T) {
		_, err := FromLookup(lookup(map[string]string{
			"PAYMENT_PROVIDER":      "paypal",
			"RECONCILE_STUCK_AFTER": "soon",
		}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PAYMENT_PROVIDER")
		assert.Contains(t, err.Error(), "RECONCILE_STUCK_AFTER")
		assert.Contains(t, err.Error(), "DATABASE_URL")
	})
}

func TestRequireJWTSecret(t *testing.T) {
	assert.Error(t, Config{}.RequireJWTSecret())
	assert.NoError(t, Config{JWTSecret: "s"}.RequireJWTSecret())
}

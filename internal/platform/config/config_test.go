package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("WALLET_BASE_URL", "")
	t.Setenv("MERCHANT_BASE_URL", "")
	t.Setenv("RETURN_STATE_KEY", "")

	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "USD", cfg.Payment.DefaultCurrency)
	assert.True(t, cfg.Payment.Sandbox, "missing provider URLs select sandbox gateways")
	assert.NotEmpty(t, cfg.Payment.ReturnStateKey)
	assert.Equal(t, "hosted_fields", cfg.Payment.HostedCardMode)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("REMITFLOW_ADDR", ":9090")
	t.Setenv("DEFAULT_CURRENCY", "eur")
	t.Setenv("WALLET_BASE_URL", "https://wallet.example.com/")
	t.Setenv("MERCHANT_BASE_URL", "https://merchant.example.com")
	t.Setenv("NOTIFY_KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("RETURN_STATE_TTL", "30m")
	t.Setenv("NOTIFY_BUFFER", "not-a-number")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "EUR", cfg.Payment.DefaultCurrency)
	assert.False(t, cfg.Payment.Sandbox)
	assert.Equal(t, "https://wallet.example.com", cfg.Payment.WalletBaseURL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Notification.KafkaBrokers)
	assert.Equal(t, 30*time.Minute, cfg.Payment.ReturnStateTTL)
	assert.Equal(t, 256, cfg.Notification.Buffer)
}

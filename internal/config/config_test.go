package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SERVICE", "payment")
	t.Setenv("APP_PORT", "")
	t.Setenv("CALL_TIMEOUT", "")
	t.Setenv("CALL_MAX_CONCURRENT", "")

	cfg := LoadConfig()

	assert.Equal(t, ServicePayment, cfg.Service)
	assert.Equal(t, "3003", cfg.AppPort)
	assert.Equal(t, 3*time.Second, cfg.CallTimeout)
	assert.Equal(t, int64(32), cfg.CallMaxConc)
	assert.Equal(t, 500*time.Millisecond, cfg.GatewayDelay)
	assert.Equal(t, "wallet_saga_payment", cfg.DBName)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SERVICE", "Wallet")
	t.Setenv("CALL_TIMEOUT", "750")
	t.Setenv("NOTIFY_TIMEOUT", "250ms")
	t.Setenv("CALL_MAX_CONCURRENT", "8")
	t.Setenv("GATEWAY_FAILURE_RATE", "0.25")
	t.Setenv("IS_PROD", "true")

	cfg := LoadConfig()

	assert.Equal(t, ServiceWallet, cfg.Service)
	assert.Equal(t, 750*time.Millisecond, cfg.CallTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.NotifyTimeout)
	assert.Equal(t, int64(8), cfg.CallMaxConc)
	assert.Equal(t, 0.25, cfg.GatewayFail)
	assert.True(t, cfg.IsProd)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("CALL_TIMEOUT", "soon")
	t.Setenv("GATEWAY_FAILURE_RATE", "3")
	t.Setenv("REDIS_DB", "-1")
	t.Setenv("CALL_MAX_CONCURRENT", "0")
	t.Setenv("DB_MAX_OPEN_CONNS", "-4")

	cfg := LoadConfig()

	assert.Equal(t, 3*time.Second, cfg.CallTimeout)
	assert.Equal(t, 0.0, cfg.GatewayFail)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, int64(32), cfg.CallMaxConc)
	assert.Equal(t, 20, cfg.DBMaxOpen)
}

func TestPeerURLs(t *testing.T) {
	t.Setenv("USER_SERVICE_URL", "")
	t.Setenv("PAYMENT_SERVICE_URL", "")
	t.Setenv("CREDIT_SERVICE_URL", "http://credit:3005")

	cfg := LoadConfig()

	assert.Equal(t, "http://localhost:3001", cfg.UserURL)
	assert.Equal(t, "http://localhost:3003", cfg.PaymentURL)
	assert.Equal(t, "http://credit:3005", cfg.CreditURL)
}

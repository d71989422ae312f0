package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoad_Defaults verifies that default values are used when env vars are missing.
func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("APP_ENV")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("SERVER_PORT")
	os.Unsetenv("KAFKA_BROKERS")

	os.Setenv("PAYMENT_API_URL", "https://payments.test")
	os.Setenv("PAYMENT_API_KEY", "sk_default")
	defer func() {
		os.Unsetenv("PAYMENT_API_URL")
		os.Unsetenv("PAYMENT_API_KEY")
	}()

	cfg, err := Load(".")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "fulfillment", cfg.Kafka.TopicPrefix)
	assert.Equal(t, 8*time.Second, cfg.Carriers.Timeout)
	assert.True(t, cfg.Carriers.FlatRateEnabled)
	assert.Equal(t, 50.0, cfg.Carriers.FreeShippingThreshold)
	assert.False(t, cfg.Carriers.Proxy.HasProxy())
	assert.Equal(t, "78597", cfg.Origin.Zip)
	assert.Equal(t, 8.0, cfg.Fulfillment.ItemWeightOz)
	assert.Equal(t, 8, cfg.Fulfillment.BulkWorkers)
	assert.Equal(t, 5*time.Minute, cfg.Fulfillment.LabelReservationTTL)
	assert.Equal(t, 720*time.Hour, cfg.Returns.Window)
	assert.False(t, cfg.Returns.IncludeTax)
	assert.Equal(t, 10.0, cfg.Checkout.ConservationPercent)
}

// TestLoad_EnvVars verifies that environment variables override defaults.
func TestLoad_EnvVars(t *testing.T) {
	os.Setenv("APP_ENV", "production")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("SERVER_PORT", "9090")
	os.Setenv("PAYMENT_API_URL", "https://payments.example.com")
	os.Setenv("PAYMENT_API_KEY", "sk_123")
	os.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	os.Setenv("CARRIER_TIMEOUT", "3s")
	os.Setenv("UPS_API_URL", "https://ups.test")
	os.Setenv("REFUND_INCLUDE_TAX", "true")
	os.Setenv("CARRIER_PROXY_ENABLED", "true")
	os.Setenv("CARRIER_PROXY_HOST", "egress")
	os.Setenv("CARRIER_PROXY_PORT", "3128")
	defer func() {
		os.Unsetenv("APP_ENV")
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("SERVER_PORT")
		os.Unsetenv("PAYMENT_API_URL")
		os.Unsetenv("PAYMENT_API_KEY")
		os.Unsetenv("KAFKA_BROKERS")
		os.Unsetenv("CARRIER_TIMEOUT")
		os.Unsetenv("UPS_API_URL")
		os.Unsetenv("REFUND_INCLUDE_TAX")
		os.Unsetenv("CARRIER_PROXY_ENABLED")
		os.Unsetenv("CARRIER_PROXY_HOST")
		os.Unsetenv("CARRIER_PROXY_PORT")
	}()

	cfg, err := Load(".")
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "https://payments.example.com", cfg.Payments.URL)
	assert.Equal(t, "sk_123", cfg.Payments.APIKey)
	assert.Equal(t, 15*time.Second, cfg.Payments.Timeout)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 3*time.Second, cfg.Carriers.Timeout)
	assert.Equal(t, "https://ups.test", cfg.Carriers.UPSURL)
	assert.True(t, cfg.Returns.IncludeTax)
	assert.True(t, cfg.Carriers.Proxy.HasProxy())
	assert.Equal(t, "http://egress:3128", cfg.Carriers.Proxy.HostPort())
}

// TestLoad_File verifies that values are loaded from a .env file.
func TestLoad_File(t *testing.T) {
	content := []byte(`
APP_ENV=staging
LOG_LEVEL=warn
SERVER_PORT=7070
PAYMENT_API_URL=https://staging.payments.test
PAYMENT_API_KEY=sk_staging
RETURN_WINDOW=336h
`)
	err := os.WriteFile(".env", content, 0644)
	require.NoError(t, err)
	defer os.Remove(".env")

	cfg, err := Load(".")
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 7070, cfg.ServerPort)
	assert.Equal(t, 336*time.Hour, cfg.Returns.Window)
}

// TestLoad_ValidationFailure verifies that missing required fields return an error.
func TestLoad_ValidationFailure(t *testing.T) {
	os.Unsetenv("PAYMENT_API_URL")
	os.Unsetenv("PAYMENT_API_KEY")

	cfg, err := Load(".")
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "missing required configuration")
}

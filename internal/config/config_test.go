package config_test

import (
	"ms-checkin/internal/config"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CHECKIN_STORE_BACKEND", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("TICKET_PREFIX", "")

	cfg := config.Load()

	assert.Equal(t, config.BackendFile, cfg.Checkin.StoreBackend)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "CONF", cfg.Tickets.Prefix)
	assert.NotEmpty(t, cfg.Checkin.FallbackDir)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CHECKIN_STORE_BACKEND", "Redis")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("AUTH_MODE", "HMAC")

	cfg := config.Load()

	assert.Equal(t, config.BackendRedis, cfg.Checkin.StoreBackend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, config.AuthHMAC, cfg.Auth.Mode)
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		cfg := config.Load()
		cfg.Database.DSN = "postgres://localhost/checkin"
		cfg.Checkin.StoreBackend = config.BackendFile
		cfg.Checkin.StatusFile = "/tmp/checkins.json"
		cfg.Auth.Mode = config.AuthNone
		return cfg
	}

	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Checkin.StoreBackend = "firestore"
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Auth.Mode = config.AuthOIDC
	cfg.Auth.OIDCIssuer = ""
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Auth.Mode = config.AuthHMAC
	cfg.Auth.HMACSecret = "s3cret"
	assert.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.Database.DSN = ""
	assert.Error(t, cfg.Validate())
}

package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arc-self/neatoo/config"
)

func TestLoadServerConfigPrefersSecretsOverEnv(t *testing.T) {
	t.Setenv("NEATOO_PG_URL", "postgres://env")
	cfg := config.LoadServerConfig(map[string]interface{}{"PG_URL": "postgres://vault"})
	assert.Equal(t, "postgres://vault", cfg.PostgresURL)
}

func TestLoadServerConfigFallsBackToEnvWhenSecretMissing(t *testing.T) {
	os.Unsetenv("NEATOO_REDIS_ADDR")
	t.Setenv("NEATOO_REDIS_ADDR", "redis.internal:6379")
	cfg := config.LoadServerConfig(nil)
	assert.Equal(t, "redis.internal:6379", cfg.RedisAddr)
}

func TestLoadServerConfigFallsBackToDefault(t *testing.T) {
	os.Unsetenv("NEATOO_HTTP_ADDR")
	cfg := config.LoadServerConfig(nil)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
}

func TestLoadClientConfigDefaults(t *testing.T) {
	os.Unsetenv("NEATOO_SERVER_URL")
	cfg := config.LoadClientConfig()
	assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
}

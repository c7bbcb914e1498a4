// Package config loads server/client configuration, including secrets,
// the way go-core/config/vault.go does: a thin wrapper over
// hashicorp/vault/api plus env-var fallbacks for local development.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/vault/api"
)

// vaultSecrets is a KV2 Vault client scoped to one use: loading the
// unwrapped secret data LoadServerConfig's stringOr chain consumes.
// Unlike a general-purpose secrets manager it exposes one call, not a
// raw-read plus a separate KV2-unwrap step the caller has to know to chain.
type vaultSecrets struct {
	client *api.Client
}

// dialVault connects to Vault at address and authenticates with token.
func dialVault(address, token string) (*vaultSecrets, error) {
	cfg := api.DefaultConfig()
	cfg.Address = address

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("config: vault client init at %s: %w", address, err)
	}
	client.SetToken(token)

	return &vaultSecrets{client: client}, nil
}

// load reads the KV v2 secret at path and returns its unwrapped "data"
// map, folding the raw-read and the v2-envelope-unwrap into one call.
func (v *vaultSecrets) load(path string) (map[string]interface{}, error) {
	secret, err := v.client.Logical().Read(path)
	if err != nil {
		return nil, fmt.Errorf("config: read secret at %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("config: no data at %s", path)
	}
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("config: %s is not a KV2 secret (missing nested \"data\")", path)
	}
	return data, nil
}

// LoadVaultSecrets connects to Vault at address, authenticates with token,
// and returns the unwrapped KV2 secret data at path — the single
// entrypoint cmd/neatoo-server needs; there is no exported client type to
// juggle separately from the read.
func LoadVaultSecrets(address, token, path string) (map[string]interface{}, error) {
	v, err := dialVault(address, token)
	if err != nil {
		return nil, err
	}
	return v.load(path)
}

// ServerConfig is the demo server's runtime configuration.
type ServerConfig struct {
	HTTPAddr    string
	PostgresURL string
	RedisAddr   string
	JWKSURL     string
	NATSURL     string
}

// ClientConfig is the demo CLI client's runtime configuration.
type ClientConfig struct {
	ServerURL string
	AuthToken string
}

// LoadServerConfig builds a ServerConfig from Vault KV2 data, falling back
// to environment variables for any key Vault doesn't supply — the same
// pattern iam-service/cmd/api/main.go uses for PG_URL/NATS_URL, generalized
// to every setting this runtime needs.
func LoadServerConfig(secrets map[string]interface{}) ServerConfig {
	return ServerConfig{
		HTTPAddr:    stringOr(secrets, "HTTP_ADDR", "NEATOO_HTTP_ADDR", ":8080"),
		PostgresURL: stringOr(secrets, "PG_URL", "NEATOO_PG_URL", ""),
		RedisAddr:   stringOr(secrets, "REDIS_ADDR", "NEATOO_REDIS_ADDR", "localhost:6379"),
		JWKSURL:     stringOr(secrets, "JWKS_URL", "NEATOO_JWKS_URL", ""),
		NATSURL:     stringOr(secrets, "NATS_URL", "NEATOO_NATS_URL", "nats://localhost:4222"),
	}
}

// LoadClientConfig builds a ClientConfig purely from environment variables
// — the CLI client is a developer tool, not a deployed service, so it has
// no Vault dependency of its own.
func LoadClientConfig() ClientConfig {
	return ClientConfig{
		ServerURL: envOr("NEATOO_SERVER_URL", "http://localhost:8080"),
		AuthToken: os.Getenv("NEATOO_AUTH_TOKEN"),
	}
}

func stringOr(secrets map[string]interface{}, secretKey, envKey, fallback string) string {
	if secrets != nil {
		if v, ok := secrets[secretKey].(string); ok && v != "" {
			return v
		}
	}
	return envOr(envKey, fallback)
}

func envOr(envKey, fallback string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return fallback
}

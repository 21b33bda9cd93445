package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"endpoint_addr_grpc": "www.example:9000",
		"database_dsn":       "postgres://db",
		"secret_key":         "my_secret_key",
		"session_ttl":        "2h",
		"recovery_grant_ttl": 300000000000,
		"pin_length":         8,
		"argon2":             map[string]any{"memory_kb": 32768, "time": 2, "parallelism": 2},
		"login_limit":        map[string]any{"max_attempts": 3, "window": "10m"},
		"shared_link_limit":  map[string]any{"max_attempts": 20, "window": "1h"},
		"rate_limit_backend": "redis",
		"redis_addr":         "redis:6379",
		"trusted_proxies":    []string{"10.0.0.1"},
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		var cfg Config
		cfg.LoadDefaults()
		parseJson(&cfg)

		assert.Equal(t, "www.example:9000", cfg.EndpointAddrGRPC)
		assert.Equal(t, "postgres://db", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
		assert.Equal(t, 5*time.Minute, cfg.RecoveryGrantTTL)
		assert.Equal(t, 8, cfg.PINLength)
		assert.Equal(t, Argon2{MemoryKB: 32768, Time: 2, Parallelism: 2}, cfg.Argon2)
		assert.Equal(t, RateLimit{MaxAttempts: 3, Window: 10 * time.Minute}, cfg.LoginLimit)
		assert.Equal(t, RateLimit{MaxAttempts: 20, Window: time.Hour}, cfg.SharedLinkLimit)
		// untouched sections keep their defaults
		assert.Equal(t, RateLimit{MaxAttempts: 5, Window: 15 * time.Minute}, cfg.RecoveryLimit)
		assert.Equal(t, "redis", cfg.RateLimitBackend)
		assert.Equal(t, "redis:6379", cfg.RedisAddr)
		assert.Equal(t, []string{"10.0.0.1"}, cfg.TrustedProxies)
	})

	t.Run("short flag", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", pathFlag}

		var cfg Config
		parseJson(&cfg)
		assert.Equal(t, "www.example:9000", cfg.EndpointAddrGRPC)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		var cfg, want Config
		cfg.LoadDefaults()
		want.LoadDefaults()
		parseJson(&cfg)
		assert.Equal(t, want, cfg)
	})

	t.Run("missing file panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", filepath.Join(dir, "nope.json")}
		assert.Panics(t, func() { parseJson(&Config{}) })
	})

	t.Run("invalid json panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
		os.Args = []string{"testbin", "-c", bad}
		assert.Panics(t, func() { parseJson(&Config{}) })
	})
}

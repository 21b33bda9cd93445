package config

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	// Test cases
	tests := []struct {
		base        Config
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-d", "db", "-s", "secret", "-l", "debug",
			"-t", "60", "-g", "5", "-n", "8", "-b", "redis", "-r", "redis:6379",
			"-p", "10.0.0.0/8, 192.0.2.1",
		}, expectPanic: false,
			expected: &Config{
				EndpointAddrGRPC: "127.0.0.1:9090",
				DatabaseDSN:      "db",
				SecretKey:        "secret",
				LogLevel:         "debug",
				SessionTTL:       time.Hour,
				RecoveryGrantTTL: 5 * time.Minute,
				PINLength:        8,
				RateLimitBackend: "redis",
				RedisAddr:        "redis:6379",
				TrustedProxies:   []string{"10.0.0.0/8", "192.0.2.1"},
			}},
		{name: "unset minute flags keep finer values", args: []string{"cmd", "-a", ":1"},
			base: Config{SessionTTL: 90 * time.Second, RecoveryGrantTTL: 30 * time.Second},
			expected: &Config{
				EndpointAddrGRPC: ":1",
				SessionTTL:       90 * time.Second,
				RecoveryGrantTTL: 30 * time.Second,
			}},
		{name: "unrelated flags ignored", args: []string{"cmd", "-c", "cfg.json", "-x", "-n", "7"},
			expected: &Config{PINLength: 7}},
		{name: "bad number panics", args: []string{"cmd", "-n", "six"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.PanicOnError)

			os.Args = tt.args

			config := tt.base

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(&config) })
				assert.Empty(t, cmp.Diff(&config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(&config) })
			}
		})
	}
}

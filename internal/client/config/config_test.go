package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "127.0.0.1:50051", c.ServerEndpointAddr)
	assert.Equal(t, "pinvault.db", c.StatePath)
	assert.Equal(t, 10*time.Second, c.RequestTimeout)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"pinvault"}

	cfg := LoadConfig()

	require.NotNil(t, cfg)
	assert.Equal(t, "127.0.0.1:50051", cfg.ServerEndpointAddr)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
}

func TestLoadConfig_FlagsOverrideJSON(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempJSON(t, "", "", map[string]any{
		"server_endpoint_addr": "json:1",
		"state_path":           "/tmp/json.db",
	})
	os.Args = []string{"pinvault", "-c", path, "-a", "flag:2"}

	cfg := LoadConfig()

	assert.Equal(t, "flag:2", cfg.ServerEndpointAddr)
	assert.Equal(t, "/tmp/json.db", cfg.StatePath)
}

package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/pinvault/internal/flagx"
	"github.com/dmitrijs2005/pinvault/internal/timex"
)

// JsonConfig is the on-disk shape. Durations accept "10s" or nanoseconds.
type JsonConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr"`
	StatePath          string         `json:"state_path"`
	RequestTimeout     timex.Duration `json:"request_timeout"`
}

// parseJson overlays cfg with the file named by -c/-config. Only fields
// present in the file replace the defaults. It panics on unreadable or
// malformed files.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.StatePath != "" {
		cfg.StatePath = jc.StatePath
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
}

// Package config loads runtime configuration for the pinvault CLI.
//
// Values are layered: built-in defaults, then an optional JSON file given
// with -c or -config, then command-line flags.
package config

import "time"

// Config holds runtime settings for the CLI.
type Config struct {
	ServerEndpointAddr string
	// StatePath is the SQLite file that keeps the account id and the
	// current session token between runs.
	StatePath      string
	RequestTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.StatePath = "pinvault.db"
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig applies defaults, then JSON, then flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/flagx"
	"github.com/dmitrijs2005/pinvault/internal/timex"
)

// JsonRateLimit is the JSON form of RateLimit.
type JsonRateLimit struct {
	MaxAttempts int            `json:"max_attempts"`
	Window      timex.Duration `json:"window"`
}

// JsonArgon2 is the JSON form of Argon2.
type JsonArgon2 struct {
	MemoryKB    uint32 `json:"memory_kb"`
	Time        uint32 `json:"time"`
	Parallelism uint8  `json:"parallelism"`
}

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "15m" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. Fields absent from the file leave the runtime
// Config untouched.
type JsonConfig struct {
	EndpointAddrGRPC string         `json:"endpoint_addr_grpc"`
	DatabaseDSN      string         `json:"database_dsn"`
	SecretKey        string         `json:"secret_key"`
	LogLevel         string         `json:"log_level"`
	SessionTTL       timex.Duration `json:"session_ttl"`
	RecoveryGrantTTL timex.Duration `json:"recovery_grant_ttl"`
	PINLength        int            `json:"pin_length"`
	Argon2           *JsonArgon2    `json:"argon2"`
	LoginLimit       *JsonRateLimit `json:"login_limit"`
	RecoveryLimit    *JsonRateLimit `json:"recovery_limit"`
	ReauthLimit      *JsonRateLimit `json:"reauth_limit"`
	SharedLinkLimit  *JsonRateLimit `json:"shared_link_limit"`
	RateLimitBackend string         `json:"rate_limit_backend"`
	RedisAddr        string         `json:"redis_addr"`
	AuditBufferSize  int            `json:"audit_buffer_size"`
	TrustedProxies   []string       `json:"trusted_proxies"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The JSON file path comes from the -c or -config command-line flags.
// If neither is set, no JSON file is loaded.
// If the file cannot be read or contains invalid JSON, the function panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.RateLimitBackend, c.RateLimitBackend)
	setString(&config.RedisAddr, c.RedisAddr)
	setDuration(&config.SessionTTL, c.SessionTTL)
	setDuration(&config.RecoveryGrantTTL, c.RecoveryGrantTTL)

	if c.PINLength != 0 {
		config.PINLength = c.PINLength
	}
	if c.AuditBufferSize != 0 {
		config.AuditBufferSize = c.AuditBufferSize
	}
	if c.TrustedProxies != nil {
		config.TrustedProxies = c.TrustedProxies
	}
	if c.Argon2 != nil {
		config.Argon2 = Argon2{MemoryKB: c.Argon2.MemoryKB, Time: c.Argon2.Time, Parallelism: c.Argon2.Parallelism}
	}

	setLimit(&config.LoginLimit, c.LoginLimit)
	setLimit(&config.RecoveryLimit, c.RecoveryLimit)
	setLimit(&config.ReauthLimit, c.ReauthLimit)
	setLimit(&config.SharedLinkLimit, c.SharedLinkLimit)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}

func setLimit(dst *RateLimit, v *JsonRateLimit) {
	if v == nil {
		return
	}
	*dst = RateLimit{MaxAttempts: v.MaxAttempts, Window: v.Window.Duration}
}

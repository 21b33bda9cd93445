package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/flagx"
	"github.com/joho/godotenv"
)

const envPrefix = "PINVAULT_"

// parseEnv overlays PINVAULT_* environment variables. Outside production
// (APP_ENV=production) a dotenv file is loaded first: the -env flag path,
// or ./.env when present. Variables already set in the process win over
// the file, as godotenv.Load never overrides them.
//
// Malformed numeric or duration values panic, like the other layers.
func parseEnv(config *Config) {
	if os.Getenv("APP_ENV") != "production" {
		file := flagx.EnvFileFlags()
		explicit := file != ""
		if !explicit {
			file = ".env"
		}
		if err := godotenv.Load(file); err != nil && (explicit || !errors.Is(err, fs.ErrNotExist)) {
			panic(err)
		}
	}

	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				panic(err)
			}
			*dst = d
		}
	}
	num := func(name string, dst *int) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				panic(err)
			}
			*dst = n
		}
	}

	str("GRPC_ADDR", &config.EndpointAddrGRPC)
	str("DATABASE_DSN", &config.DatabaseDSN)
	str("SECRET_KEY", &config.SecretKey)
	str("LOG_LEVEL", &config.LogLevel)
	str("RATE_LIMIT_BACKEND", &config.RateLimitBackend)
	str("REDIS_ADDR", &config.RedisAddr)
	dur("SESSION_TTL", &config.SessionTTL)
	dur("RECOVERY_GRANT_TTL", &config.RecoveryGrantTTL)
	num("PIN_LENGTH", &config.PINLength)
	num("AUDIT_BUFFER_SIZE", &config.AuditBufferSize)

	if v, ok := os.LookupEnv(envPrefix + "TRUSTED_PROXIES"); ok {
		config.TrustedProxies = splitList(v)
	}
}

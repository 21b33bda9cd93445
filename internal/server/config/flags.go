package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-s string   root secret key
//	-l string   log level (debug, info, warn, error)
//	-t int      session lifetime, minutes
//	-g int      recovery grant lifetime, minutes
//	-n int      PIN length
//	-b string   rate limit backend (postgres, redis)
//	-r string   Redis address
//	-p string   trusted proxies, comma separated
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes using
//     flagx.FilterArgs, avoiding collisions with other components.
//   - Duration flags are accepted as integers in minutes and then converted
//     to time.Duration values.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-l", "-t", "-g", "-n", "-b", "-r", "-p"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	sessionTTL := fs.Int("t", int(config.SessionTTL.Minutes()), "session lifetime (in minutes)")
	grantTTL := fs.Int("g", int(config.RecoveryGrantTTL.Minutes()), "recovery grant lifetime (in minutes)")

	fs.IntVar(&config.PINLength, "n", config.PINLength, "PIN length")
	fs.StringVar(&config.RateLimitBackend, "b", config.RateLimitBackend, "rate limit backend (postgres or redis)")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	proxies := fs.String("p", strings.Join(config.TrustedProxies, ","), "trusted proxies (comma separated addresses or CIDRs)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// Minute flags only apply when given, so finer JSON values survive.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.SessionTTL = time.Duration(*sessionTTL) * time.Minute
		case "g":
			config.RecoveryGrantTTL = time.Duration(*grantTTL) * time.Minute
		case "p":
			config.TrustedProxies = splitList(*proxies)
		}
	})
}

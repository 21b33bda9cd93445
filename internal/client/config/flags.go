package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/flagx"
)

// parseFlags overlays cfg with -a (server address), -f (state file) and
// -t (request timeout in seconds). Unknown flags are filtered out first so
// that the JSON loader's -c flag does not trip the parser.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-f", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	fs.StringVar(&cfg.StatePath, "f", cfg.StatePath, "path to local state file")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
}

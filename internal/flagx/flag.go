// Package flagx contains helpers that let several config layers each parse
// only their own command-line flags out of os.Args.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs returns the subset of args that belong to allowedFlags,
// together with their values.
//
// Supported forms:
//
//	-c conf.json
//	--config=conf.json
//
// A flag followed by something that itself looks like a flag is kept
// without a value. The result is never nil.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, found := strings.Cut(arg, "="); found && strings.HasPrefix(arg, "-") {
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// JsonConfigFlags returns the JSON config path given via -c or -config,
// or an empty string when neither is present.
func JsonConfigFlags() string {
	return stringFlag([]string{"c", "config"}, "path to JSON config file")
}

// EnvFileFlags returns the dotenv path given via -env, or an empty string.
func EnvFileFlags() string {
	return stringFlag([]string{"env"}, "path to .env file")
}

func stringFlag(names []string, usage string) string {
	var value string

	allowed := make([]string, 0, len(names))
	fs := flag.NewFlagSet(names[0], flag.ContinueOnError)
	fs.SetOutput(nopWriter{})
	for _, n := range names {
		allowed = append(allowed, "-"+n)
		fs.StringVar(&value, n, "", usage)
	}

	_ = fs.Parse(FilterArgs(os.Args[1:], allowed))
	return value
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/flagx"
	"github.com/dmitrijs2005/pinvault/internal/server"
	"github.com/dmitrijs2005/pinvault/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

	// "purge" runs one retention pass instead of serving.
	if len(os.Args) > 1 && os.Args[1] == "purge" {
		fs := flag.NewFlagSet("purge", flag.ContinueOnError)
		retention := fs.Duration("retention", 30*24*time.Hour, "delete rows older than this")
		if err := fs.Parse(flagx.FilterArgs(os.Args[2:], []string{"-retention"})); err != nil {
			log.Printf("%v", err)
			os.Exit(2)
		}

		err := app.Purge(ctx, *retention)
		app.Close()
		if err != nil {
			log.Printf("%v", err)
			os.Exit(1)
		}
		return
	}

	// "throttle" reports whether one rate-limit identifier is blocked.
	if len(os.Args) > 1 && os.Args[1] == "throttle" {
		fs := flag.NewFlagSet("throttle", flag.ContinueOnError)
		id := fs.String("id", "", "identifier, e.g. ip:203.0.113.7 or account:<user id>")
		name := fs.String("policy", "login", "login, recovery, reauth or shared_link")
		if err := fs.Parse(flagx.FilterArgs(os.Args[2:], []string{"-id", "-policy"})); err != nil || *id == "" {
			log.Printf("usage: server throttle -id <identifier> [-policy login]")
			os.Exit(2)
		}

		allowed, err := app.ThrottleStatus(ctx, *id, *name)
		app.Close()
		if err != nil {
			log.Printf("%v", err)
			os.Exit(1)
		}
		if allowed {
			fmt.Println("allowed")
		} else {
			fmt.Println("throttled")
		}
		return
	}

	app.Run(ctx)

}

package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/api"
)

const timeLayout = "2006-01-02 15:04"

func (a *App) Sessions(ctx context.Context) error {
	ctx, cancel := a.call(ctx)
	defer cancel()

	list, err := a.svc.Sessions(ctx)
	if err != nil {
		return a.report(err)
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No sessions.")
		return nil
	}

	// The mode column only carries information when both kinds are listed.
	mixed := false
	for _, s := range list[1:] {
		if s.IsDecoy != list[0].IsDecoy {
			mixed = true
			break
		}
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	header := "\tID\tSTATUS\tDEVICE\tIP\tLOCATION\tLAST ACTIVE"
	if mixed {
		header += "\tMODE"
	}
	fmt.Fprintln(tw, header)
	for _, s := range list {
		line := fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%s\t%s",
			marker(s.Current), s.ID, sessionStatus(s), device(s), dash(s.IPAddress), dash(s.Location),
			s.LastActivity.Local().Format(timeLayout))
		if mixed {
			mode := "real"
			if s.IsDecoy {
				mode = "decoy"
			}
			line += "\t" + mode
		}
		fmt.Fprintln(tw, line)
	}
	return tw.Flush()
}

func (a *App) Terminate(ctx context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(a.out, "Usage: terminate <session-id>")
		return nil
	}

	ctx, cancel := a.call(ctx)
	defer cancel()

	if err := a.svc.Terminate(ctx, args[0]); err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Session terminated.")
	return nil
}

func (a *App) TerminateOthers(ctx context.Context) error {
	ctx, cancel := a.call(ctx)
	defer cancel()

	n, err := a.svc.TerminateOthers(ctx)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "Terminated %d other session(s).\n", n)
	return nil
}

func marker(current bool) string {
	if current {
		return "*"
	}
	return ""
}

func sessionStatus(s api.Session) string {
	switch {
	case s.Active:
		return "active"
	case s.LogoutAt != nil:
		return "signed out"
	case time.Now().After(s.ExpiresAt):
		return "expired"
	default:
		return "inactive"
	}
}

func device(s api.Session) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{s.DeviceType, s.Browser, s.OS} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " / ")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

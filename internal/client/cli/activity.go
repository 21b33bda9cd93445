package cli

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/pinvault/internal/api"
)

const activityLimit = 50

var activityCategories = []string{"auth", "credential", "recovery", "session"}

// Activity prints the newest security events, optionally narrowed to the
// given categories.
func (a *App) Activity(ctx context.Context, args []string) error {
	for _, c := range args {
		if !slices.Contains(activityCategories, c) {
			fmt.Fprintf(a.out, "Unknown category %q. Use: %s\n", c, strings.Join(activityCategories, ", "))
			return nil
		}
	}

	ctx, cancel := a.call(ctx)
	defer cancel()

	events, err := a.svc.Activity(ctx, &api.ListSecurityEventsRequest{Categories: args, Limit: activityLimit})
	if err != nil {
		return a.report(err)
	}
	if len(events) == 0 {
		fmt.Fprintln(a.out, "No activity.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tEVENT\tIP\tDETAILS")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			e.CreatedAt.Local().Format(timeLayout), e.EventType, dash(e.IPAddress), details(e.Details))
	}
	return tw.Flush()
}

func details(d map[string]string) string {
	if len(d) == 0 {
		return ""
	}
	keys := slices.Sorted(maps.Keys(d))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+d[k])
	}
	return strings.Join(parts, " ")
}

// ABOUTME: Metrics and demo data CLI commands
// ABOUTME: Prints the dashboard figures and seeds the local database
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/harperreed/touchpoint/db"
	"github.com/harperreed/touchpoint/kpi"
	"github.com/harperreed/touchpoint/models"
)

// KPICommand prints the interaction metrics, optionally for recent days only.
func KPICommand(ctx context.Context, source kpi.Source, args []string, out io.Writer, now func() time.Time) error {
	fs := flag.NewFlagSet("kpi", flag.ContinueOnError)
	fs.SetOutput(out)
	days := fs.Int("days", 0, "Only count interactions from the last N days")
	org := fs.String("org", "", "Only count one organization's interactions")
	if err := fs.Parse(args); err != nil {
		return err
	}

	filter := models.KPIFilter{OrganizationID: *org}
	if *days > 0 {
		since := now().AddDate(0, 0, -*days)
		filter.Since = &since
	}

	state := kpi.Load(ctx, source, filter)
	if state.Err != nil {
		return state.Err
	}
	m := state.Metrics

	_, _ = fmt.Fprintln(out, "INTERACTION METRICS")
	_, _ = fmt.Fprintln(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	_, _ = fmt.Fprintf(out, "  Total:            %d\n", m.Total)
	_, _ = fmt.Fprintf(out, "  This week:        %d\n", m.ThisWeek)
	_, _ = fmt.Fprintf(out, "  Completed:        %d (%s)\n", m.Completed, m.CompletionRate.Percent())
	_, _ = fmt.Fprintf(out, "  Follow-ups due:   %d\n", m.FollowUpsDue)
	_, _ = fmt.Fprintf(out, "  Follow-up rate:   %s\n", m.FollowUpRate.Percent())
	_, _ = fmt.Fprintf(out, "  Average rating:   %s\n", m.AvgRating.Format("%.1f / 5"))
	_, _ = fmt.Fprintf(out, "  Average duration: %s\n", m.AvgDuration.Format("%.0f min"))

	_, _ = fmt.Fprintln(out, "\nBY STATUS")
	for _, s := range models.Statuses {
		_, _ = fmt.Fprintf(out, "  %-10s %d\n", models.Label(string(s)), m.Raw.ByStatus[s])
	}
	return nil
}

// SeedCommand fills an empty local database with demo records.
func SeedCommand(ctx context.Context, store *db.Store, out io.Writer) error {
	n, err := store.Seed(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed database: %w", err)
	}
	if n == 0 {
		_, _ = fmt.Fprintln(out, "Database already has data; nothing seeded.")
		return nil
	}
	_, _ = fmt.Fprintf(out, "Seeded %d records.\n", n)
	return nil
}

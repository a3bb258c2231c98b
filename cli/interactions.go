// ABOUTME: Interaction CLI commands
// ABOUTME: Lists interactions with the same filter, sort and paging rules as the TUI list
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/harperreed/touchpoint/models"
	"github.com/harperreed/touchpoint/remote"
)

// InteractionsListCommand prints one page of interactions.
func InteractionsListCommand(ctx context.Context, store remote.Store, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("interactions list", flag.ContinueOnError)
	fs.SetOutput(out)
	search := fs.String("q", "", "Search title, notes and organization")
	typ := fs.String("type", "", "Filter by interaction type (e.g. phone_call)")
	status := fs.String("status", "", "Filter by status (e.g. completed)")
	org := fs.String("org", "", "Filter by organization id")
	sortCol := fs.String("sort", string(models.SortDate), "Sort column: interaction_date, title, type, status, organization_name")
	desc := fs.Bool("desc", false, "Sort descending")
	page := fs.Int("page", 1, "Page number")
	pageSize := fs.Int("limit", models.DefaultPageSize, "Rows per page")
	if err := fs.Parse(args); err != nil {
		return err
	}

	q := models.ListQuery{
		Search:         strings.TrimSpace(*search),
		OrganizationID: *org,
		SortColumn:     models.SortColumn(*sortCol),
		SortDesc:       *desc,
		Page:           *page,
		PageSize:       *pageSize,
	}
	if !q.SortColumn.Valid() {
		return fmt.Errorf("unknown sort column %q", *sortCol)
	}
	if *typ != "" {
		t, err := models.ParseInteractionType(*typ)
		if err != nil {
			return err
		}
		q.Type = t
	}
	if *status != "" {
		s, err := models.ParseStatus(*status)
		if err != nil {
			return err
		}
		q.Status = s
	}
	q = q.Normalized()

	result, err := store.List(ctx, q)
	if err != nil {
		return fmt.Errorf("failed to list interactions: %w", err)
	}

	if len(result.Items) == 0 {
		_, _ = fmt.Fprintln(out, "No interactions found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDATE\tTYPE\tTITLE\tORGANIZATION\tSTATUS")
	_, _ = fmt.Fprintln(w, "--\t----\t----\t-----\t------------\t------")
	for _, in := range result.Items {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			in.ID.String()[:8],
			in.InteractionDate.Local().Format("2006-01-02 15:04"),
			models.Label(string(in.Type)),
			truncate(in.Title, 40),
			in.OrganizationName,
			models.Label(string(in.Status)),
		)
	}
	_ = w.Flush()

	pages := (result.Total + q.PageSize - 1) / q.PageSize
	_, _ = fmt.Fprintf(out, "\nPage %d of %d · %d interactions\n", q.Page, max(pages, 1), result.Total)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

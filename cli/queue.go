// ABOUTME: Offline queue CLI commands
// ABOUTME: Inspect, replay, retry and discard queued mutations without the TUI
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/harperreed/touchpoint/queue"
)

// QueueCommand routes `queue list|sync|retry|remove`.
func QueueCommand(ctx context.Context, q *queue.Queue, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("queue requires a subcommand: list, sync, retry <id>, remove <id>")
	}

	switch args[0] {
	case "list":
		return queueList(q, out)
	case "sync":
		report, err := q.SyncAll(ctx)
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		_, _ = fmt.Fprintf(out, "Synced %d, retrying %d, failed %d\n", report.Synced, report.Retrying, report.Failed)
		for _, m := range q.List() {
			if m.State == queue.StateFailed {
				_, _ = fmt.Fprintf(out, "  ✗ %s: %s\n", m.Summary, m.ErrorKind.Message())
			}
		}
		return nil
	case "retry":
		if len(args) < 2 {
			return errors.New("queue retry requires a mutation id")
		}
		if err := q.Retry(ctx, args[1]); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Mutation %s returned to pending\n", args[1])
		return nil
	case "remove":
		if len(args) < 2 {
			return errors.New("queue remove requires a mutation id")
		}
		if err := q.Remove(ctx, args[1]); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Mutation %s discarded\n", args[1])
		return nil
	}
	return fmt.Errorf("unknown queue command: %s", args[0])
}

func queueList(q *queue.Queue, out io.Writer) error {
	items := q.List()
	if len(items) == 0 {
		_, _ = fmt.Fprintln(out, "Queue is empty.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATE\tATTEMPTS\tCHANGE\tERROR")
	_, _ = fmt.Fprintln(w, "--\t-----\t--------\t------\t-----")
	for _, m := range items {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			m.ID, m.State, m.Attempts, m.Summary, m.ErrorKind.Message())
	}
	return w.Flush()
}

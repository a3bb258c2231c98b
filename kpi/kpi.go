// ABOUTME: Dashboard metrics loaded from the store's pre-aggregated KPIs
// ABOUTME: Derives rates and averages; loading and error states pass through unchanged
package kpi

import (
	"context"
	"fmt"

	"github.com/harperreed/touchpoint/models"
)

// Source serves aggregate metrics.
type Source interface {
	KPIs(ctx context.Context, f models.KPIFilter) (models.KPIs, error)
}

// Figure is a derived number that may be undefined (division by zero).
type Figure struct {
	Value   float64
	Defined bool
}

const undefined = "—"

func ratio(num, den int) Figure {
	if den == 0 {
		return Figure{}
	}
	return Figure{Value: float64(num) / float64(den), Defined: true}
}

// Percent renders the figure as a whole percentage.
func (f Figure) Percent() string {
	if !f.Defined {
		return undefined
	}
	return fmt.Sprintf("%.0f%%", f.Value*100)
}

func (f Figure) Format(format string) string {
	if !f.Defined {
		return undefined
	}
	return fmt.Sprintf(format, f.Value)
}

type Metrics struct {
	Raw models.KPIs

	Total          int
	Completed      int
	ThisWeek       int
	FollowUpsDue   int
	CompletionRate Figure
	// FollowUpRate is the share of interactions that asked for a follow-up.
	FollowUpRate Figure
	AvgRating    Figure
	AvgDuration  Figure
}

func Derive(k models.KPIs) Metrics {
	completed := k.ByStatus[models.StatusCompleted]
	return Metrics{
		Raw:            k,
		Total:          k.Total,
		Completed:      completed,
		ThisWeek:       k.ThisWeek,
		FollowUpsDue:   k.FollowUpsDue,
		CompletionRate: ratio(completed, k.Total),
		FollowUpRate:   ratio(k.FollowUpsTotal, k.Total),
		AvgRating:      ratio(k.RatingSum, k.RatedCount),
		AvgDuration:    ratio(k.DurationMinutes, k.Total),
	}
}

type State struct {
	Loading bool
	Err     error
	Metrics *Metrics
}

// Load fetches and derives the metrics. Errors are reported in the state,
// never retried.
func Load(ctx context.Context, source Source, filter models.KPIFilter) State {
	k, err := source.KPIs(ctx, filter)
	if err != nil {
		return State{Err: fmt.Errorf("failed to load metrics: %w", err)}
	}
	m := Derive(k)
	return State{Metrics: &m}
}

// ABOUTME: Aggregate interaction metrics for the dashboard
// ABOUTME: Counts by status, follow-ups due, rating and duration totals
package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/touchpoint/models"
)

// FollowUpWindow is how far ahead a follow-up counts as due.
const FollowUpWindow = 7 * 24 * time.Hour

func (s *Store) KPIs(ctx context.Context, f models.KPIFilter) (models.KPIs, error) {
	var where []string
	var args []any
	if f.Since != nil {
		where = append(where, "interaction_date >= ?")
		args = append(args, f.Since.UTC())
	}
	if f.OrganizationID != "" {
		where = append(where, "organization_id = ?")
		args = append(args, f.OrganizationID)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	k := models.KPIs{ByStatus: make(map[models.Status]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM interactions`+clause+` GROUP BY status`, args...)
	if err != nil {
		return models.KPIs{}, fmt.Errorf("failed to count by status: %w", err)
	}
	for rows.Next() {
		var status models.Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return models.KPIs{}, err
		}
		k.ByStatus[status] = n
		k.Total += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return models.KPIs{}, err
	}

	now := s.now().UTC()
	aggregate := `
		SELECT
			COALESCE(SUM(CASE WHEN follow_up_required = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN follow_up_required = 1 AND follow_up_date <= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN rating > 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(rating), 0),
			COALESCE(SUM(duration_minutes), 0),
			COALESCE(SUM(CASE WHEN interaction_date >= ? AND interaction_date <= ? THEN 1 ELSE 0 END), 0)
		FROM interactions` + clause

	aggArgs := append([]any{now.Add(FollowUpWindow), now.Add(-7 * 24 * time.Hour), now}, args...)
	err = s.db.QueryRowContext(ctx, aggregate, aggArgs...).Scan(
		&k.FollowUpsTotal,
		&k.FollowUpsDue,
		&k.RatedCount,
		&k.RatingSum,
		&k.DurationMinutes,
		&k.ThisWeek,
	)
	if err != nil {
		return models.KPIs{}, fmt.Errorf("failed to aggregate interactions: %w", err)
	}
	return k, nil
}

// ABOUTME: Interaction database operations for the local store
// ABOUTME: Handles CRUD, filtered and sorted paging, and bulk delete
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/harperreed/touchpoint/models"
)

const interactionColumns = `
	id, type, title, status, outcome, rating, notes, duration_minutes, location,
	contact_method, interaction_date, participants, tags,
	follow_up_required, follow_up_date, follow_up_notes, follow_up_next_action,
	organization_id, organization_name, opportunity_id, opportunity_name,
	contact_id, contact_name, principal_id, created_at, updated_at`

// sortExpressions whitelists the ORDER BY clause per sortable column.
var sortExpressions = map[models.SortColumn]string{
	models.SortDate:         "interaction_date",
	models.SortTitle:        "title COLLATE NOCASE",
	models.SortType:         "type",
	models.SortStatus:       "status",
	models.SortOrganization: "organization_name COLLATE NOCASE",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInteraction(row rowScanner) (*models.Interaction, error) {
	var (
		in                 models.Interaction
		idStr              string
		participants, tags string
		followUpRequired   bool
		followUpDate       sql.NullTime
	)

	err := row.Scan(
		&idStr, &in.Type, &in.Title, &in.Status, &in.Outcome, &in.Rating, &in.Notes,
		&in.DurationMinutes, &in.Location, &in.ContactMethod, &in.InteractionDate,
		&participants, &tags,
		&followUpRequired, &followUpDate, &in.FollowUp.Notes, &in.FollowUp.NextAction,
		&in.OrganizationID, &in.OrganizationName, &in.OpportunityID, &in.OpportunityName,
		&in.ContactID, &in.ContactName, &in.PrincipalID, &in.CreatedAt, &in.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	in.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse interaction ID: %w", err)
	}
	if err := json.Unmarshal([]byte(participants), &in.Participants); err != nil {
		return nil, fmt.Errorf("failed to decode participants: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &in.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	in.FollowUp.Required = followUpRequired
	if followUpDate.Valid {
		d := followUpDate.Time
		in.FollowUp.Date = &d
	}
	return &in, nil
}

func validateInteraction(in models.Interaction) error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidRecord)
	case !in.Type.Valid():
		return fmt.Errorf("%w: unknown type %q", ErrInvalidRecord, in.Type)
	case !in.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", ErrInvalidRecord, in.Status)
	case in.InteractionDate.IsZero():
		return fmt.Errorf("%w: interaction date is required", ErrInvalidRecord)
	}
	return nil
}

// interactionArgs returns the values for every column after id, in column order.
func interactionArgs(in models.Interaction) ([]any, error) {
	participants, err := json.Marshal(nonNil(in.Participants))
	if err != nil {
		return nil, err
	}
	tags, err := json.Marshal(nonNil(models.NormalizeTags(in.Tags)))
	if err != nil {
		return nil, err
	}
	var followUpDate any
	if in.FollowUp.Date != nil {
		followUpDate = in.FollowUp.Date.UTC()
	}

	return []any{
		in.Type, in.Title, in.Status, in.Outcome, in.Rating, in.Notes,
		in.DurationMinutes, in.Location, in.ContactMethod, in.InteractionDate.UTC(),
		string(participants), string(tags),
		in.FollowUp.Required, followUpDate, in.FollowUp.Notes, in.FollowUp.NextAction,
		in.OrganizationID, in.OrganizationName, in.OpportunityID, in.OpportunityName,
		in.ContactID, in.ContactName, in.PrincipalID,
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Create inserts an interaction. A create replayed with an id that already
// exists is a no-op so queued creates can be delivered more than once.
func (s *Store) Create(ctx context.Context, in models.Interaction) (uuid.UUID, error) {
	if err := validateInteraction(in); err != nil {
		return uuid.Nil, err
	}
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	if err := s.resolveNames(ctx, &in); err != nil {
		return uuid.Nil, err
	}

	args, err := interactionArgs(in)
	if err != nil {
		return uuid.Nil, err
	}
	now := s.now().UTC()
	args = append([]any{in.ID.String()}, args...)
	args = append(args, now, now)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO interactions (`+interactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, args...)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert interaction: %w", err)
	}
	return in.ID, nil
}

// Get returns nil, nil when the interaction does not exist.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*models.Interaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+interactionColumns+` FROM interactions WHERE id = ?`, id.String())
	in, err := scanInteraction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return in, nil
}

func (s *Store) Update(ctx context.Context, id uuid.UUID, in models.Interaction) error {
	if err := validateInteraction(in); err != nil {
		return err
	}
	if err := s.resolveNames(ctx, &in); err != nil {
		return err
	}
	args, err := interactionArgs(in)
	if err != nil {
		return err
	}
	args = append(args, s.now().UTC(), id.String())

	res, err := s.db.ExecContext(ctx, `
		UPDATE interactions SET
			type = ?, title = ?, status = ?, outcome = ?, rating = ?, notes = ?,
			duration_minutes = ?, location = ?, contact_method = ?, interaction_date = ?,
			participants = ?, tags = ?,
			follow_up_required = ?, follow_up_date = ?, follow_up_notes = ?, follow_up_next_action = ?,
			organization_id = ?, organization_name = ?, opportunity_id = ?, opportunity_name = ?,
			contact_id = ?, contact_name = ?, principal_id = ?, updated_at = ?
		WHERE id = ?
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to update interaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("interaction %s: %w", id, ErrNotFound)
	}
	return nil
}

// Delete removes an interaction. Deleting a missing row is not an error.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM interactions WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete interaction: %w", err)
	}
	return nil
}

func (s *Store) DeleteMany(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id.String()
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM interactions WHERE id IN (`+strings.Join(placeholders, ", ")+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete interactions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *Store) List(ctx context.Context, q models.ListQuery) (models.Page, error) {
	q = q.Normalized()

	var where []string
	var args []any
	if search := strings.TrimSpace(q.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(notes) LIKE ? OR LOWER(organization_name) LIKE ? OR LOWER(contact_name) LIKE ?)")
		args = append(args, like, like, like, like)
	}
	if q.Type != "" {
		where = append(where, "type = ?")
		args = append(args, q.Type)
	}
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, q.Status)
	}
	if q.OrganizationID != "" {
		where = append(where, "organization_id = ?")
		args = append(args, q.OrganizationID)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM interactions`+clause, args...).Scan(&total); err != nil {
		return models.Page{}, fmt.Errorf("failed to count interactions: %w", err)
	}

	direction := "ASC"
	if q.SortDesc {
		direction = "DESC"
	}
	order := fmt.Sprintf(" ORDER BY %s %s, id %s", sortExpressions[q.SortColumn], direction, direction)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+interactionColumns+` FROM interactions`+clause+order+` LIMIT ? OFFSET ?`,
		append(args, q.PageSize, q.Offset())...)
	if err != nil {
		return models.Page{}, fmt.Errorf("failed to list interactions: %w", err)
	}
	defer rows.Close()

	page := models.Page{Items: []models.Interaction{}, Total: total}
	for rows.Next() {
		in, err := scanInteraction(rows)
		if err != nil {
			return models.Page{}, err
		}
		page.Items = append(page.Items, *in)
	}
	return page, rows.Err()
}

// resolveNames fills denormalized display names from the related tables
// when the caller supplied only ids.
func (s *Store) resolveNames(ctx context.Context, in *models.Interaction) error {
	lookups := []struct {
		id    string
		name  *string
		query string
	}{
		{in.OrganizationID, &in.OrganizationName, `SELECT name FROM organizations WHERE id = ?`},
		{in.OpportunityID, &in.OpportunityName, `SELECT name FROM opportunities WHERE id = ?`},
		{in.ContactID, &in.ContactName, `SELECT name FROM contacts WHERE id = ?`},
	}
	for _, l := range lookups {
		if l.id == "" || *l.name != "" {
			continue
		}
		err := s.db.QueryRowContext(ctx, l.query, l.id).Scan(l.name)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to resolve name: %w", err)
		}
	}
	return nil
}

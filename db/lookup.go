// ABOUTME: Organization, contact and opportunity operations for the local store
// ABOUTME: Serves lookup candidates and quick-creates entities from the lookup widget
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/harperreed/touchpoint/models"
)

const defaultSearchLimit = 10

func (s *Store) CreateOrganization(ctx context.Context, org *models.Organization) error {
	if strings.TrimSpace(org.Name) == "" {
		return fmt.Errorf("%w: organization name is required", ErrInvalidRecord)
	}
	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	org.CreatedAt = s.now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, domain, industry, city, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, org.ID.String(), org.Name, org.Domain, org.Industry, org.City, org.CreatedAt)
	return err
}

func (s *Store) CreateContact(ctx context.Context, contact *models.Contact) error {
	if strings.TrimSpace(contact.Name) == "" {
		return fmt.Errorf("%w: contact name is required", ErrInvalidRecord)
	}
	if contact.ID == uuid.Nil {
		contact.ID = uuid.New()
	}
	contact.CreatedAt = s.now().UTC()

	var orgID *string
	if contact.OrganizationID != nil {
		id := contact.OrganizationID.String()
		orgID = &id
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (id, name, email, phone, title, organization_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, contact.ID.String(), contact.Name, contact.Email, contact.Phone, contact.Title, orgID, contact.CreatedAt)
	return err
}

func (s *Store) CreateOpportunity(ctx context.Context, opp *models.Opportunity) error {
	if strings.TrimSpace(opp.Name) == "" {
		return fmt.Errorf("%w: opportunity name is required", ErrInvalidRecord)
	}
	if opp.OrganizationID == uuid.Nil {
		return fmt.Errorf("%w: opportunity requires an organization", ErrInvalidRecord)
	}
	if opp.ID == uuid.Nil {
		opp.ID = uuid.New()
	}
	if opp.Stage == "" {
		opp.Stage = models.StageProspecting
	}
	opp.CreatedAt = s.now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO opportunities (id, name, stage, amount, organization_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, opp.ID.String(), opp.Name, opp.Stage, opp.Amount, opp.OrganizationID.String(), opp.CreatedAt)
	return err
}

// Search returns candidates of one kind whose name (or contact email) contains query.
func (s *Store) Search(ctx context.Context, kind models.CandidateKind, query string, limit int) ([]models.Candidate, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	like := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"

	switch kind {
	case models.KindOrganization:
		return s.searchOrganizations(ctx, like, limit)
	case models.KindContact:
		return s.searchContacts(ctx, like, limit)
	case models.KindOpportunity:
		return s.searchOpportunities(ctx, like, limit)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownLookup, kind)
	}
}

func (s *Store) searchOrganizations(ctx context.Context, like string, limit int) ([]models.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(domain, ''), COALESCE(industry, ''), COALESCE(city, ''), created_at
		FROM organizations
		WHERE LOWER(name) LIKE ? OR LOWER(domain) LIKE ?
		ORDER BY name COLLATE NOCASE
		LIMIT ?
	`, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search organizations: %w", err)
	}
	defer rows.Close()

	var out []models.Candidate
	for rows.Next() {
		var org models.Organization
		var id string
		if err := rows.Scan(&id, &org.Name, &org.Domain, &org.Industry, &org.City, &org.CreatedAt); err != nil {
			return nil, err
		}
		if org.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("failed to parse organization ID: %w", err)
		}
		out = append(out, org.Candidate())
	}
	return out, rows.Err()
}

func (s *Store) searchContacts(ctx context.Context, like string, limit int) ([]models.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, COALESCE(c.email, ''), COALESCE(c.phone, ''), COALESCE(c.title, ''),
		       c.organization_id, COALESCE(o.name, ''), c.created_at
		FROM contacts c
		LEFT JOIN organizations o ON o.id = c.organization_id
		WHERE LOWER(c.name) LIKE ? OR LOWER(c.email) LIKE ?
		ORDER BY c.name COLLATE NOCASE
		LIMIT ?
	`, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search contacts: %w", err)
	}
	defer rows.Close()

	var out []models.Candidate
	for rows.Next() {
		var c models.Contact
		var id, orgName string
		var orgID sql.NullString
		if err := rows.Scan(&id, &c.Name, &c.Email, &c.Phone, &c.Title, &orgID, &orgName, &c.CreatedAt); err != nil {
			return nil, err
		}
		if c.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("failed to parse contact ID: %w", err)
		}
		if orgID.Valid {
			if oid, err := uuid.Parse(orgID.String); err == nil {
				c.OrganizationID = &oid
			}
		}
		out = append(out, c.Candidate(orgName))
	}
	return out, rows.Err()
}

func (s *Store) searchOpportunities(ctx context.Context, like string, limit int) ([]models.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.stage, COALESCE(p.amount, 0), p.organization_id, COALESCE(o.name, ''), p.created_at
		FROM opportunities p
		LEFT JOIN organizations o ON o.id = p.organization_id
		WHERE LOWER(p.name) LIKE ?
		ORDER BY p.name COLLATE NOCASE
		LIMIT ?
	`, like, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search opportunities: %w", err)
	}
	defer rows.Close()

	var out []models.Candidate
	for rows.Next() {
		var p models.Opportunity
		var id, orgID, orgName string
		if err := rows.Scan(&id, &p.Name, &p.Stage, &p.Amount, &orgID, &orgName, &p.CreatedAt); err != nil {
			return nil, err
		}
		if p.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("failed to parse opportunity ID: %w", err)
		}
		if p.OrganizationID, err = uuid.Parse(orgID); err != nil {
			return nil, fmt.Errorf("failed to parse organization ID: %w", err)
		}
		out = append(out, p.Candidate(orgName))
	}
	return out, rows.Err()
}

// CreateCandidate quick-creates an entity by name from a lookup. Opportunities
// need a parent organization id in parent.
func (s *Store) CreateCandidate(ctx context.Context, kind models.CandidateKind, name, parent string) (models.Candidate, error) {
	switch kind {
	case models.KindOrganization:
		org := models.Organization{Name: name}
		if err := s.CreateOrganization(ctx, &org); err != nil {
			return models.Candidate{}, err
		}
		return org.Candidate(), nil

	case models.KindContact:
		c := models.Contact{Name: name}
		orgName := ""
		if oid, err := uuid.Parse(parent); err == nil {
			c.OrganizationID = &oid
			orgName = s.organizationName(ctx, parent)
		}
		if err := s.CreateContact(ctx, &c); err != nil {
			return models.Candidate{}, err
		}
		return c.Candidate(orgName), nil

	case models.KindOpportunity:
		oid, err := uuid.Parse(parent)
		if err != nil {
			return models.Candidate{}, fmt.Errorf("%w: choose an organization first", ErrInvalidRecord)
		}
		p := models.Opportunity{Name: name, OrganizationID: oid}
		if err := s.CreateOpportunity(ctx, &p); err != nil {
			return models.Candidate{}, err
		}
		return p.Candidate(s.organizationName(ctx, parent)), nil
	}
	return models.Candidate{}, fmt.Errorf("%w: %q", ErrUnknownLookup, kind)
}

func (s *Store) organizationName(ctx context.Context, id string) string {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM organizations WHERE id = ?`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return ""
	}
	return name
}

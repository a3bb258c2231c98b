// ABOUTME: Demo data for local mode
// ABOUTME: Creates a few organizations, contacts, opportunities and interactions
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/harperreed/touchpoint/models"
)

// Seed fills an empty database with demo records. It does nothing when
// organizations already exist.
func (s *Store) Seed(ctx context.Context) (int, error) {
	var existing int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM organizations`).Scan(&existing); err != nil {
		return 0, err
	}
	if existing > 0 {
		return 0, nil
	}

	orgs := []models.Organization{
		{Name: "Acme Foods", Domain: "acmefoods.com", Industry: "Distribution", City: "Chicago"},
		{Name: "Northwind Traders", Domain: "northwind.example", Industry: "Wholesale", City: "Seattle"},
		{Name: "Blue Harbor Grill", Domain: "blueharbor.example", Industry: "Restaurant", City: "Boston"},
	}
	for i := range orgs {
		if err := s.CreateOrganization(ctx, &orgs[i]); err != nil {
			return 0, fmt.Errorf("failed to seed organization: %w", err)
		}
	}

	acme := orgs[0].ID
	contacts := []models.Contact{
		{Name: "Dana Whitfield", Email: "dana@acmefoods.com", Title: "Buyer", OrganizationID: &acme},
		{Name: "Sam Ortega", Email: "sam@acmefoods.com", Title: "Category Manager", OrganizationID: &acme},
	}
	for i := range contacts {
		if err := s.CreateContact(ctx, &contacts[i]); err != nil {
			return 0, fmt.Errorf("failed to seed contact: %w", err)
		}
	}

	opp := models.Opportunity{Name: "Acme spring menu rollout", Stage: models.StageProposal, Amount: 4_500_000, OrganizationID: acme}
	if err := s.CreateOpportunity(ctx, &opp); err != nil {
		return 0, fmt.Errorf("failed to seed opportunity: %w", err)
	}

	now := s.now()
	nextWeek := now.Add(5 * 24 * time.Hour)
	interactions := []models.Interaction{
		{
			Type: models.TypePhoneCall, Title: "Intro call", Status: models.StatusCompleted,
			Outcome: models.OutcomePositive, Rating: 4, DurationMinutes: 15, ContactMethod: models.MethodPhone,
			InteractionDate: now.Add(-48 * time.Hour), OrganizationID: acme.String(),
			ContactID: contacts[0].ID.String(), Tags: []string{"intro"},
			FollowUp: models.FollowUp{Required: true, Date: &nextWeek, NextAction: "Send pricing"},
		},
		{
			Type: models.TypeDemo, Title: "Product demo", Status: models.StatusScheduled,
			DurationMinutes: 45, ContactMethod: models.MethodVideo,
			InteractionDate: now.Add(72 * time.Hour), OrganizationID: acme.String(),
			OpportunityID: opp.ID.String(), Participants: []string{"Dana Whitfield", "Sam Ortega"},
		},
		{
			Type: models.TypeInPerson, Title: "Site visit", Status: models.StatusPlanned,
			DurationMinutes: 60, ContactMethod: models.MethodInPerson, Location: "Boston",
			InteractionDate: now.Add(10 * 24 * time.Hour), OrganizationID: orgs[2].ID.String(),
		},
	}
	for _, in := range interactions {
		if _, err := s.Create(ctx, in); err != nil {
			return 0, fmt.Errorf("failed to seed interaction: %w", err)
		}
	}

	return len(orgs) + len(contacts) + 1 + len(interactions), nil
}

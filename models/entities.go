// ABOUTME: Associated CRM entities referenced by interactions
// ABOUTME: Organization, Contact and Opportunity plus their lookup projections
package models

import (
	"time"

	"github.com/google/uuid"
)

type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain,omitempty"`
	Industry  string    `json:"industry,omitempty"`
	City      string    `json:"city,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Contact struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	Title          string     `json:"title,omitempty"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type Opportunity struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Stage          string    `json:"stage"`
	Amount         int64     `json:"amount,omitempty"` // in cents
	OrganizationID uuid.UUID `json:"organization_id"`
	CreatedAt      time.Time `json:"created_at"`
}

const (
	StageProspecting   = "prospecting"
	StageQualification = "qualification"
	StageProposal      = "proposal"
	StageNegotiation   = "negotiation"
	StageClosedWon     = "closed_won"
	StageClosedLost    = "closed_lost"
)

func (o Organization) Candidate() Candidate {
	detail := map[string]string{}
	if o.Domain != "" {
		detail["domain"] = o.Domain
	}
	if o.Industry != "" {
		detail["industry"] = o.Industry
	}
	if o.City != "" {
		detail["city"] = o.City
	}
	return Candidate{ID: o.ID.String(), Kind: KindOrganization, Name: o.Name, Detail: detail}
}

func (c Contact) Candidate(organizationName string) Candidate {
	detail := map[string]string{}
	if c.Email != "" {
		detail["email"] = c.Email
	}
	if c.Title != "" {
		detail["title"] = c.Title
	}
	if organizationName != "" {
		detail["organization"] = organizationName
	}
	if c.OrganizationID != nil {
		detail["organization_id"] = c.OrganizationID.String()
	}
	return Candidate{ID: c.ID.String(), Kind: KindContact, Name: c.Name, Detail: detail}
}

func (o Opportunity) Candidate(organizationName string) Candidate {
	detail := map[string]string{"stage": o.Stage, "organization_id": o.OrganizationID.String()}
	if organizationName != "" {
		detail["organization"] = organizationName
	}
	return Candidate{ID: o.ID.String(), Kind: KindOpportunity, Name: o.Name, Detail: detail}
}

// ABOUTME: Form draft state split into per-step slices, and its local cache
// ABOUTME: Drafts persist to the shared key-value store so an unfinished wizard can resume
package form

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/harperreed/touchpoint/kv"
	"github.com/harperreed/touchpoint/models"
)

type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

type ContextFields struct {
	Type             models.InteractionType `json:"type"`
	Title            string                 `json:"title"`
	OrganizationID   string                 `json:"organization_id"`
	OrganizationName string                 `json:"organization_name"`
	OpportunityID    string                 `json:"opportunity_id"`
	OpportunityName  string                 `json:"opportunity_name"`
	ContactID        string                 `json:"contact_id"`
	ContactName      string                 `json:"contact_name"`
	PrincipalID      string                 `json:"principal_id"`
}

type DetailFields struct {
	Status          models.Status        `json:"status"`
	InteractionDate time.Time            `json:"interaction_date"`
	DurationMinutes int                  `json:"duration_minutes"`
	ContactMethod   models.ContactMethod `json:"contact_method"`
	Location        string               `json:"location"`
	Participants    []string             `json:"participants"`
	Tags            []string             `json:"tags"`
}

type OutcomeFields struct {
	Outcome  models.Outcome  `json:"outcome"`
	Rating   int             `json:"rating"`
	Notes    string          `json:"notes"`
	FollowUp models.FollowUp `json:"follow_up"`
}

// Draft is an in-progress interaction owned by one wizard.
type Draft struct {
	ID     uuid.UUID `json:"id"`
	Mode   Mode      `json:"mode"`
	EditID uuid.UUID `json:"edit_id,omitempty"`

	Context ContextFields `json:"context"`
	Details DetailFields  `json:"details"`
	Outcome OutcomeFields `json:"outcome"`

	Valid  [3]bool     `json:"valid"`
	Errors [3][]string `json:"errors"`

	// ParseErrors holds the message for fields whose last input did not parse.
	ParseErrors map[string]string `json:"parse_errors,omitempty"`

	CurrentStep Step      `json:"current_step"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newDraft(now time.Time) Draft {
	return Draft{
		ID:   uuid.New(),
		Mode: ModeCreate,
		Details: DetailFields{
			Status:          models.StatusPlanned,
			InteractionDate: now.Truncate(time.Minute),
		},
		UpdatedAt: now,
	}
}

func draftFromInteraction(in models.Interaction, now time.Time) Draft {
	d := Draft{
		ID:     uuid.New(),
		Mode:   ModeEdit,
		EditID: in.ID,
		Context: ContextFields{
			Type:             in.Type,
			Title:            in.Title,
			OrganizationID:   in.OrganizationID,
			OrganizationName: in.OrganizationName,
			OpportunityID:    in.OpportunityID,
			OpportunityName:  in.OpportunityName,
			ContactID:        in.ContactID,
			ContactName:      in.ContactName,
			PrincipalID:      in.PrincipalID,
		},
		Details: DetailFields{
			Status:          in.Status,
			InteractionDate: in.InteractionDate,
			DurationMinutes: in.DurationMinutes,
			ContactMethod:   in.ContactMethod,
			Location:        in.Location,
			Participants:    append([]string(nil), in.Participants...),
			Tags:            append([]string(nil), in.Tags...),
		},
		Outcome: OutcomeFields{
			Outcome:  in.Outcome,
			Rating:   in.Rating,
			Notes:    in.Notes,
			FollowUp: in.FollowUp,
		},
		UpdatedAt: now,
	}
	if in.FollowUp.Date != nil {
		date := *in.FollowUp.Date
		d.Outcome.FollowUp.Date = &date
	}
	return d
}

// Interaction merges the step slices into one payload.
func (d Draft) Interaction() models.Interaction {
	in := models.Interaction{
		Type:             d.Context.Type,
		Title:            d.Context.Title,
		OrganizationID:   d.Context.OrganizationID,
		OrganizationName: d.Context.OrganizationName,
		OpportunityID:    d.Context.OpportunityID,
		OpportunityName:  d.Context.OpportunityName,
		ContactID:        d.Context.ContactID,
		ContactName:      d.Context.ContactName,
		PrincipalID:      d.Context.PrincipalID,

		Status:          d.Details.Status,
		InteractionDate: d.Details.InteractionDate,
		DurationMinutes: d.Details.DurationMinutes,
		ContactMethod:   d.Details.ContactMethod,
		Location:        d.Details.Location,
		Participants:    append([]string(nil), d.Details.Participants...),
		Tags:            models.NormalizeTags(d.Details.Tags),

		Outcome:  d.Outcome.Outcome,
		Rating:   d.Outcome.Rating,
		Notes:    d.Outcome.Notes,
		FollowUp: d.Outcome.FollowUp,
	}
	if d.Mode == ModeEdit {
		in.ID = d.EditID
	}
	return in
}

func (d Draft) clone() Draft {
	c := d
	c.Details.Participants = append([]string(nil), d.Details.Participants...)
	c.Details.Tags = append([]string(nil), d.Details.Tags...)
	for i := range d.Errors {
		c.Errors[i] = append([]string(nil), d.Errors[i]...)
	}
	if d.Outcome.FollowUp.Date != nil {
		date := *d.Outcome.FollowUp.Date
		c.Outcome.FollowUp.Date = &date
	}
	if d.ParseErrors != nil {
		c.ParseErrors = make(map[string]string, len(d.ParseErrors))
		for k, v := range d.ParseErrors {
			c.ParseErrors[k] = v
		}
	}
	return c
}

// DraftPrefix namespaces drafts in the shared key-value store.
const DraftPrefix = "draft/"

var ErrDraftNotFound = errors.New("draft not found")

// DraftCache persists unfinished drafts.
type DraftCache struct {
	store kv.Store
}

func NewDraftCache(store kv.Store) *DraftCache {
	return &DraftCache{store: store}
}

func (c *DraftCache) Save(d Draft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	return c.store.Put(DraftPrefix+d.ID.String(), data)
}

func (c *DraftCache) Load(id uuid.UUID) (Draft, error) {
	data, err := c.store.Get(DraftPrefix + id.String())
	if errors.Is(err, kv.ErrNotFound) {
		return Draft{}, ErrDraftNotFound
	}
	if err != nil {
		return Draft{}, err
	}
	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return Draft{}, fmt.Errorf("failed to decode draft: %w", err)
	}
	return d, nil
}

func (c *DraftCache) Delete(id uuid.UUID) error {
	return c.store.Delete(DraftPrefix + id.String())
}

// List returns saved drafts, most recently updated first.
func (c *DraftCache) List() ([]Draft, error) {
	entries, err := c.store.List(DraftPrefix)
	if err != nil {
		return nil, err
	}
	drafts := make([]Draft, 0, len(entries))
	for _, e := range entries {
		var d Draft
		if err := json.Unmarshal(e.Value, &d); err != nil {
			continue
		}
		drafts = append(drafts, d)
	}
	sort.Slice(drafts, func(i, j int) bool { return drafts[i].UpdatedAt.After(drafts[j].UpdatedAt) })
	return drafts, nil
}

// ABOUTME: Wizard steps, field keys and raw-string parsing into typed draft slots
// ABOUTME: Each field belongs to exactly one step; parse failures become step errors
package form

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/harperreed/touchpoint/models"
)

type Step int

const (
	StepContext Step = iota
	StepDetails
	StepOutcome
)

// Steps lists wizard steps in order.
var Steps = []Step{StepContext, StepDetails, StepOutcome}

func (s Step) String() string {
	switch s {
	case StepContext:
		return "Context"
	case StepDetails:
		return "Details"
	case StepOutcome:
		return "Outcome"
	default:
		return fmt.Sprintf("Step(%d)", int(s))
	}
}

func (s Step) valid() bool {
	return s >= StepContext && s <= StepOutcome
}

// Patch maps field keys to values exactly as typed.
type Patch map[string]string

const (
	FieldType             = "type"
	FieldTitle            = "title"
	FieldOrganizationID   = "organization_id"
	FieldOrganizationName = "organization_name"
	FieldOpportunityID    = "opportunity_id"
	FieldOpportunityName  = "opportunity_name"
	FieldContactID        = "contact_id"
	FieldContactName      = "contact_name"
	FieldPrincipalID      = "principal_id"

	FieldStatus          = "status"
	FieldInteractionDate = "interaction_date"
	FieldDuration        = "duration_minutes"
	FieldContactMethod   = "contact_method"
	FieldLocation        = "location"
	FieldParticipants    = "participants"
	FieldTags            = "tags"

	FieldOutcome            = "outcome"
	FieldRating             = "rating"
	FieldNotes              = "notes"
	FieldFollowUpRequired   = "follow_up_required"
	FieldFollowUpDate       = "follow_up_date"
	FieldFollowUpNotes      = "follow_up_notes"
	FieldFollowUpNextAction = "follow_up_next_action"
)

var fieldSteps = map[string]Step{
	FieldType:             StepContext,
	FieldTitle:            StepContext,
	FieldOrganizationID:   StepContext,
	FieldOrganizationName: StepContext,
	FieldOpportunityID:    StepContext,
	FieldOpportunityName:  StepContext,
	FieldContactID:        StepContext,
	FieldContactName:      StepContext,
	FieldPrincipalID:      StepContext,

	FieldStatus:          StepDetails,
	FieldInteractionDate: StepDetails,
	FieldDuration:        StepDetails,
	FieldContactMethod:   StepDetails,
	FieldLocation:        StepDetails,
	FieldParticipants:    StepDetails,
	FieldTags:            StepDetails,

	FieldOutcome:            StepOutcome,
	FieldRating:             StepOutcome,
	FieldNotes:              StepOutcome,
	FieldFollowUpRequired:   StepOutcome,
	FieldFollowUpDate:       StepOutcome,
	FieldFollowUpNotes:      StepOutcome,
	FieldFollowUpNextAction: StepOutcome,
}

// StepOf reports which step owns a field.
func StepOf(field string) (Step, bool) {
	s, ok := fieldSteps[field]
	return s, ok
}

// Accepted date inputs, tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate accepts ISO-like dates plus "today", "tomorrow" and "+Nd".
func ParseDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch {
	case s == "now":
		return now.Truncate(time.Minute), nil
	case s == "today":
		return day, nil
	case s == "tomorrow":
		return day.AddDate(0, 0, 1), nil
	case strings.HasPrefix(s, "+") && strings.HasSuffix(s, "d"):
		n, err := strconv.Atoi(s[1 : len(s)-1])
		if err == nil && n >= 0 {
			return day.AddDate(0, 0, n), nil
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "false", "no", "n", "0", "off":
		return false, nil
	case "true", "yes", "y", "1", "on":
		return true, nil
	}
	return false, fmt.Errorf("expected yes or no, got %q", s)
}

// apply parses one raw value into the draft. The returned message is the
// validation text for a parse failure.
func (d *Draft) apply(field, raw string, now time.Time) (string, error) {
	trimmed := strings.TrimSpace(raw)

	switch field {
	case FieldType:
		if trimmed == "" {
			d.Context.Type = ""
			return "", nil
		}
		t, err := models.ParseInteractionType(trimmed)
		if err != nil {
			return "Choose a known interaction type", nil
		}
		d.Context.Type = t
	case FieldTitle:
		d.Context.Title = raw
	case FieldOrganizationID:
		d.Context.OrganizationID = trimmed
	case FieldOrganizationName:
		d.Context.OrganizationName = trimmed
	case FieldOpportunityID:
		d.Context.OpportunityID = trimmed
	case FieldOpportunityName:
		d.Context.OpportunityName = trimmed
	case FieldContactID:
		d.Context.ContactID = trimmed
	case FieldContactName:
		d.Context.ContactName = trimmed
	case FieldPrincipalID:
		d.Context.PrincipalID = trimmed

	case FieldStatus:
		if trimmed == "" {
			d.Details.Status = ""
			return "", nil
		}
		st, err := models.ParseStatus(trimmed)
		if err != nil {
			return "Choose a known status", nil
		}
		d.Details.Status = st
	case FieldInteractionDate:
		if trimmed == "" {
			d.Details.InteractionDate = time.Time{}
			return "", nil
		}
		t, err := ParseDate(trimmed, now)
		if err != nil {
			return "Interaction date must look like 2006-01-02 15:04", nil
		}
		d.Details.InteractionDate = t
	case FieldDuration:
		if trimmed == "" {
			d.Details.DurationMinutes = 0
			return "", nil
		}
		n, err := strconv.Atoi(trimmed)
		if err != nil {
			return "Duration must be a whole number of minutes", nil
		}
		d.Details.DurationMinutes = n
	case FieldContactMethod:
		m, err := models.ParseContactMethod(trimmed)
		if err != nil {
			return "Choose a known contact method", nil
		}
		d.Details.ContactMethod = m
	case FieldLocation:
		d.Details.Location = trimmed
	case FieldParticipants:
		d.Details.Participants = models.SplitList(raw)
	case FieldTags:
		d.Details.Tags = models.NormalizeTags(models.SplitList(raw))

	case FieldOutcome:
		o, err := models.ParseOutcome(trimmed)
		if err != nil {
			return "Choose a known outcome", nil
		}
		d.Outcome.Outcome = o
	case FieldRating:
		if trimmed == "" {
			d.Outcome.Rating = 0
			return "", nil
		}
		n, err := strconv.Atoi(trimmed)
		if err != nil {
			return "Rating must be a number from 1 to 5", nil
		}
		d.Outcome.Rating = n
	case FieldNotes:
		d.Outcome.Notes = raw
	case FieldFollowUpRequired:
		b, err := parseBool(trimmed)
		if err != nil {
			return "Follow-up required must be yes or no", nil
		}
		d.Outcome.FollowUp.Required = b
	case FieldFollowUpDate:
		if trimmed == "" {
			d.Outcome.FollowUp.Date = nil
			return "", nil
		}
		t, err := ParseDate(trimmed, now)
		if err != nil {
			return "Follow-up date must look like 2006-01-02", nil
		}
		d.Outcome.FollowUp.Date = &t
	case FieldFollowUpNotes:
		d.Outcome.FollowUp.Notes = raw
	case FieldFollowUpNextAction:
		d.Outcome.FollowUp.NextAction = trimmed

	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return "", nil
}

// Value formats a field of the draft back into its editable text form.
func (d Draft) Value(field string) string {
	switch field {
	case FieldType:
		return string(d.Context.Type)
	case FieldTitle:
		return d.Context.Title
	case FieldOrganizationID:
		return d.Context.OrganizationID
	case FieldOrganizationName:
		return d.Context.OrganizationName
	case FieldOpportunityID:
		return d.Context.OpportunityID
	case FieldOpportunityName:
		return d.Context.OpportunityName
	case FieldContactID:
		return d.Context.ContactID
	case FieldContactName:
		return d.Context.ContactName
	case FieldPrincipalID:
		return d.Context.PrincipalID
	case FieldStatus:
		return string(d.Details.Status)
	case FieldInteractionDate:
		if d.Details.InteractionDate.IsZero() {
			return ""
		}
		return d.Details.InteractionDate.Format("2006-01-02 15:04")
	case FieldDuration:
		return strconv.Itoa(d.Details.DurationMinutes)
	case FieldContactMethod:
		return string(d.Details.ContactMethod)
	case FieldLocation:
		return d.Details.Location
	case FieldParticipants:
		return strings.Join(d.Details.Participants, ", ")
	case FieldTags:
		return strings.Join(d.Details.Tags, ", ")
	case FieldOutcome:
		return string(d.Outcome.Outcome)
	case FieldRating:
		if d.Outcome.Rating == 0 {
			return ""
		}
		return strconv.Itoa(d.Outcome.Rating)
	case FieldNotes:
		return d.Outcome.Notes
	case FieldFollowUpRequired:
		if d.Outcome.FollowUp.Required {
			return "yes"
		}
		return "no"
	case FieldFollowUpDate:
		if d.Outcome.FollowUp.Date == nil {
			return ""
		}
		return d.Outcome.FollowUp.Date.Format("2006-01-02")
	case FieldFollowUpNotes:
		return d.Outcome.FollowUp.Notes
	case FieldFollowUpNextAction:
		return d.Outcome.FollowUp.NextAction
	}
	return ""
}

// ABOUTME: Declarative validation rules for each wizard step
// ABOUTME: Every failing rule contributes one message to its step's error list
package form

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/harperreed/touchpoint/models"
)

// Rule is one validation predicate. Check sees the whole draft because some
// rules span steps (outcome depends on the status chosen earlier).
type Rule struct {
	Field   string
	Message string
	Check   func(d *Draft, now time.Time) bool
}

var contextRules = []Rule{
	{
		Field:   FieldType,
		Message: "Choose an interaction type",
		Check:   func(d *Draft, _ time.Time) bool { return d.Context.Type.Valid() },
	},
	{
		Field:   FieldTitle,
		Message: "Title must be at least 3 characters",
		Check: func(d *Draft, _ time.Time) bool {
			return utf8.RuneCountInString(strings.TrimSpace(d.Context.Title)) >= models.MinTitleLength
		},
	},
	{
		Field:   FieldOrganizationID,
		Message: "Choose an organization",
		Check:   func(d *Draft, _ time.Time) bool { return d.Context.OrganizationID != "" },
	},
}

var detailRules = []Rule{
	{
		Field:   FieldStatus,
		Message: "Choose a status",
		Check:   func(d *Draft, _ time.Time) bool { return d.Details.Status.Valid() },
	},
	{
		Field:   FieldInteractionDate,
		Message: "Interaction date is required",
		Check:   func(d *Draft, _ time.Time) bool { return !d.Details.InteractionDate.IsZero() },
	},
	{
		Field:   FieldDuration,
		Message: "Duration must be between 0 and 480 minutes",
		Check: func(d *Draft, _ time.Time) bool {
			return d.Details.DurationMinutes >= 0 && d.Details.DurationMinutes <= models.MaxDurationMinutes
		},
	},
}

var outcomeRules = []Rule{
	{
		Field:   FieldOutcome,
		Message: "Outcome is required when the interaction is completed",
		Check: func(d *Draft, _ time.Time) bool {
			return d.Details.Status != models.StatusCompleted || d.Outcome.Outcome != models.OutcomeNone
		},
	},
	{
		Field:   FieldRating,
		Message: "Rating must be between 1 and 5",
		Check: func(d *Draft, _ time.Time) bool {
			return d.Outcome.Rating >= 0 && d.Outcome.Rating <= models.MaxRating
		},
	},
	{
		Field:   FieldNotes,
		Message: "Notes must be 2000 characters or fewer",
		Check: func(d *Draft, _ time.Time) bool {
			return utf8.RuneCountInString(d.Outcome.Notes) <= models.MaxNotesLength
		},
	},
	{
		Field:   FieldFollowUpDate,
		Message: "Follow-up date is required",
		Check: func(d *Draft, _ time.Time) bool {
			return !d.Outcome.FollowUp.Required || d.Outcome.FollowUp.Date != nil
		},
	},
	{
		Field:   FieldFollowUpDate,
		Message: "Follow-up date must be in the future",
		Check: func(d *Draft, now time.Time) bool {
			fu := d.Outcome.FollowUp
			return !fu.Required || fu.Date == nil || fu.Date.After(now)
		},
	},
}

// RulesFor returns the rules evaluated for a step.
func RulesFor(s Step) []Rule {
	switch s {
	case StepContext:
		return contextRules
	case StepDetails:
		return detailRules
	case StepOutcome:
		return outcomeRules
	default:
		return nil
	}
}

// Validate runs parse checks and rules for one step and returns its messages.
func Validate(d *Draft, s Step, now time.Time) []string {
	var errs []string

	// Parse failures come first, in a stable order.
	var fields []string
	for field := range d.ParseErrors {
		if st, ok := fieldSteps[field]; ok && st == s {
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)
	failed := make(map[string]bool, len(fields))
	for _, f := range fields {
		errs = append(errs, d.ParseErrors[f])
		failed[f] = true
	}

	for _, r := range RulesFor(s) {
		if failed[r.Field] {
			continue
		}
		if !r.Check(d, now) {
			errs = append(errs, r.Message)
		}
	}
	return errs
}

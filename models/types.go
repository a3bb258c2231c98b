// ABOUTME: Data models for logged sales interactions and their supporting views
// ABOUTME: Defines Interaction, FollowUp, Candidate, list query and KPI types plus closed enums
package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Field bounds enforced by the form rules and the local store.
const (
	MinTitleLength     = 3
	MaxNotesLength     = 2000
	MaxDurationMinutes = 480
	MaxRating          = 5
)

type InteractionType string

const (
	TypePhoneCall InteractionType = "PHONE_CALL"
	TypeEmail     InteractionType = "EMAIL"
	TypeInPerson  InteractionType = "IN_PERSON"
	TypeDemo      InteractionType = "DEMO"
	TypeFollowUp  InteractionType = "FOLLOW_UP"
	TypeVideoCall InteractionType = "VIDEO_CALL"
)

// InteractionTypes lists every type in display order.
var InteractionTypes = []InteractionType{
	TypePhoneCall, TypeEmail, TypeInPerson, TypeDemo, TypeFollowUp, TypeVideoCall,
}

type Status string

const (
	StatusPlanned   Status = "PLANNED"
	StatusScheduled Status = "SCHEDULED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusNoShow    Status = "NO_SHOW"
)

var Statuses = []Status{
	StatusPlanned, StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow,
}

type Outcome string

const (
	OutcomeNone          Outcome = ""
	OutcomePositive      Outcome = "POSITIVE"
	OutcomeNeutral       Outcome = "NEUTRAL"
	OutcomeNegative      Outcome = "NEGATIVE"
	OutcomeNeedsFollowUp Outcome = "NEEDS_FOLLOW_UP"
	OutcomeClosedWon     Outcome = "CLOSED_WON"
	OutcomeClosedLost    Outcome = "CLOSED_LOST"
)

var Outcomes = []Outcome{
	OutcomePositive, OutcomeNeutral, OutcomeNegative, OutcomeNeedsFollowUp, OutcomeClosedWon, OutcomeClosedLost,
}

type ContactMethod string

const (
	MethodNone     ContactMethod = ""
	MethodPhone    ContactMethod = "PHONE"
	MethodEmail    ContactMethod = "EMAIL"
	MethodInPerson ContactMethod = "IN_PERSON"
	MethodVideo    ContactMethod = "VIDEO"
)

var ContactMethods = []ContactMethod{MethodPhone, MethodEmail, MethodInPerson, MethodVideo}

// normalizeEnum upper-cases input and accepts spaces or dashes in place of underscores.
func normalizeEnum(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}

func (t InteractionType) Valid() bool {
	for _, v := range InteractionTypes {
		if v == t {
			return true
		}
	}
	return false
}

func ParseInteractionType(s string) (InteractionType, error) {
	t := InteractionType(normalizeEnum(s))
	if !t.Valid() {
		return "", fmt.Errorf("invalid interaction type: %q", s)
	}
	return t, nil
}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

func ParseStatus(s string) (Status, error) {
	st := Status(normalizeEnum(s))
	if !st.Valid() {
		return "", fmt.Errorf("invalid status: %q", s)
	}
	return st, nil
}

func (o Outcome) Valid() bool {
	for _, v := range Outcomes {
		if v == o {
			return true
		}
	}
	return false
}

// ParseOutcome accepts an empty string as "no outcome".
func ParseOutcome(s string) (Outcome, error) {
	if strings.TrimSpace(s) == "" {
		return OutcomeNone, nil
	}
	o := Outcome(normalizeEnum(s))
	if !o.Valid() {
		return "", fmt.Errorf("invalid outcome: %q", s)
	}
	return o, nil
}

func (m ContactMethod) Valid() bool {
	for _, v := range ContactMethods {
		if v == m {
			return true
		}
	}
	return false
}

func ParseContactMethod(s string) (ContactMethod, error) {
	if strings.TrimSpace(s) == "" {
		return MethodNone, nil
	}
	m := ContactMethod(normalizeEnum(s))
	if !m.Valid() {
		return "", fmt.Errorf("invalid contact method: %q", s)
	}
	return m, nil
}

// Label renders an enum value for display ("PHONE_CALL" -> "Phone call").
func Label(v string) string {
	if v == "" {
		return ""
	}
	s := strings.ToLower(strings.ReplaceAll(v, "_", " "))
	return strings.ToUpper(s[:1]) + s[1:]
}

// TypeDefaults are the step-two values suggested when an interaction type is chosen.
type TypeDefaults struct {
	DurationMinutes int
	ContactMethod   ContactMethod
}

// DefaultsFor returns the suggested duration and contact method for a type.
func DefaultsFor(t InteractionType) TypeDefaults {
	switch t {
	case TypePhoneCall:
		return TypeDefaults{DurationMinutes: 15, ContactMethod: MethodPhone}
	case TypeEmail:
		return TypeDefaults{DurationMinutes: 5, ContactMethod: MethodEmail}
	case TypeInPerson:
		return TypeDefaults{DurationMinutes: 60, ContactMethod: MethodInPerson}
	case TypeDemo:
		return TypeDefaults{DurationMinutes: 45, ContactMethod: MethodVideo}
	case TypeFollowUp:
		return TypeDefaults{DurationMinutes: 15, ContactMethod: MethodPhone}
	case TypeVideoCall:
		return TypeDefaults{DurationMinutes: 30, ContactMethod: MethodVideo}
	default:
		return TypeDefaults{DurationMinutes: 30, ContactMethod: MethodNone}
	}
}

type FollowUp struct {
	Required   bool       `json:"required"`
	Date       *time.Time `json:"date,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	NextAction string     `json:"next_action,omitempty"`
}

type Interaction struct {
	ID               uuid.UUID       `json:"id"`
	Type             InteractionType `json:"type"`
	Title            string          `json:"title"`
	Status           Status          `json:"status"`
	Outcome          Outcome         `json:"outcome,omitempty"`
	Rating           int             `json:"rating,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	DurationMinutes  int             `json:"duration_minutes,omitempty"`
	Location         string          `json:"location,omitempty"`
	ContactMethod    ContactMethod   `json:"contact_method,omitempty"`
	InteractionDate  time.Time       `json:"interaction_date"`
	Participants     []string        `json:"participants,omitempty"`
	Tags             []string        `json:"tags,omitempty"`
	FollowUp         FollowUp        `json:"follow_up"`
	OrganizationID   string          `json:"organization_id,omitempty"`
	OrganizationName string          `json:"organization_name,omitempty"`
	OpportunityID    string          `json:"opportunity_id,omitempty"`
	OpportunityName  string          `json:"opportunity_name,omitempty"`
	ContactID        string          `json:"contact_id,omitempty"`
	ContactName      string          `json:"contact_name,omitempty"`
	PrincipalID      string          `json:"principal_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Duplicate returns a copy suitable for a new record: no id, no timestamps, planned again.
func (i Interaction) Duplicate() Interaction {
	d := i
	d.ID = uuid.Nil
	d.Status = StatusPlanned
	d.Outcome = OutcomeNone
	d.Rating = 0
	d.CreatedAt = time.Time{}
	d.UpdatedAt = time.Time{}
	d.Participants = append([]string(nil), i.Participants...)
	d.Tags = append([]string(nil), i.Tags...)
	return d
}

// Summary is a short plain-text description used for clipboard export.
func (i Interaction) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s (%s)", Label(string(i.Type)), i.Title, Label(string(i.Status)))
	if !i.InteractionDate.IsZero() {
		fmt.Fprintf(&b, " on %s", i.InteractionDate.Format("2006-01-02 15:04"))
	}
	if i.OrganizationName != "" {
		fmt.Fprintf(&b, " with %s", i.OrganizationName)
	}
	if i.Outcome != OutcomeNone {
		fmt.Fprintf(&b, "\nOutcome: %s", Label(string(i.Outcome)))
	}
	if i.FollowUp.Required && i.FollowUp.Date != nil {
		fmt.Fprintf(&b, "\nFollow-up: %s", i.FollowUp.Date.Format("2006-01-02"))
		if i.FollowUp.NextAction != "" {
			fmt.Fprintf(&b, " - %s", i.FollowUp.NextAction)
		}
	}
	if i.Notes != "" {
		fmt.Fprintf(&b, "\n%s", i.Notes)
	}
	return b.String()
}

// NormalizeTags lower-cases, trims, deduplicates and sorts tags.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// SplitList splits a comma separated input into trimmed, non-empty items.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type CandidateKind string

const (
	KindOrganization CandidateKind = "organization"
	KindContact      CandidateKind = "contact"
	KindOpportunity  CandidateKind = "opportunity"
)

// Candidate is a lightweight projection of a remote entity used by lookups.
type Candidate struct {
	ID     string            `json:"id"`
	Kind   CandidateKind     `json:"kind"`
	Name   string            `json:"name"`
	Detail map[string]string `json:"detail,omitempty"`
}

type SortColumn string

const (
	SortDate         SortColumn = "interaction_date"
	SortTitle        SortColumn = "title"
	SortType         SortColumn = "type"
	SortStatus       SortColumn = "status"
	SortOrganization SortColumn = "organization_name"
)

var SortColumns = []SortColumn{SortDate, SortTitle, SortType, SortStatus, SortOrganization}

func (c SortColumn) Valid() bool {
	for _, v := range SortColumns {
		if v == c {
			return true
		}
	}
	return false
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// ListQuery is the filter/sort/page state of one list view.
type ListQuery struct {
	Search         string          `json:"search,omitempty"`
	Type           InteractionType `json:"type,omitempty"`
	Status         Status          `json:"status,omitempty"`
	OrganizationID string          `json:"organization_id,omitempty"`
	SortColumn     SortColumn      `json:"sort,omitempty"`
	SortDesc       bool            `json:"desc,omitempty"`
	Page           int             `json:"page,omitempty"`
	PageSize       int             `json:"page_size,omitempty"`
}

// Normalized fills defaults and clamps paging values.
func (q ListQuery) Normalized() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	if !q.SortColumn.Valid() {
		q.SortColumn = SortDate
	}
	return q
}

func (q ListQuery) Offset() int {
	n := q.Normalized()
	return (n.Page - 1) * n.PageSize
}

type Page struct {
	Items []Interaction `json:"items"`
	Total int           `json:"total"`
}

// KPIFilter narrows the aggregate metrics.
type KPIFilter struct {
	Since          *time.Time `json:"since,omitempty"`
	OrganizationID string     `json:"organization_id,omitempty"`
}

// KPIs are pre-aggregated metrics returned by the store.
type KPIs struct {
	Total           int            `json:"total"`
	ByStatus        map[Status]int `json:"by_status"`
	FollowUpsDue    int            `json:"follow_ups_due"`
	FollowUpsTotal  int            `json:"follow_ups_total"`
	RatedCount      int            `json:"rated_count"`
	RatingSum       int            `json:"rating_sum"`
	DurationMinutes int            `json:"duration_minutes"`
	ThisWeek        int            `json:"this_week"`
}

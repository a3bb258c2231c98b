// ABOUTME: Tests for interaction models and enum parsing
// ABOUTME: Covers type defaults, tag normalization, list query paging and summaries
package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInteractionType(t *testing.T) {
	tests := []struct {
		in      string
		want    InteractionType
		wantErr bool
	}{
		{"PHONE_CALL", TypePhoneCall, false},
		{"phone call", TypePhoneCall, false},
		{"in-person", TypeInPerson, false},
		{"demo", TypeDemo, false},
		{"carrier pigeon", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseInteractionType(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOutcomeAllowsEmpty(t *testing.T) {
	o, err := ParseOutcome("  ")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNone, o)

	o, err = ParseOutcome("closed won")
	require.NoError(t, err)
	assert.Equal(t, OutcomeClosedWon, o)

	_, err = ParseOutcome("meh")
	assert.Error(t, err)
}

func TestDefaultsForCoversEveryType(t *testing.T) {
	for _, typ := range InteractionTypes {
		d := DefaultsFor(typ)
		assert.Greater(t, d.DurationMinutes, 0, "type %s should suggest a duration", typ)
		assert.True(t, d.ContactMethod.Valid(), "type %s should suggest a contact method", typ)
	}

	unknown := DefaultsFor(InteractionType("SMOKE_SIGNAL"))
	assert.Equal(t, 30, unknown.DurationMinutes)
	assert.Equal(t, MethodNone, unknown.ContactMethod)
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Renewal", "renewal", "", "Q4", "budget "})
	assert.Equal(t, []string{"budget", "q4", "renewal"}, got)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"Ann", "Bob Lee"}, SplitList(" Ann, ,Bob Lee ,"))
	assert.Nil(t, SplitList(""))
}

func TestListQueryNormalized(t *testing.T) {
	q := ListQuery{Page: 0, PageSize: 0, SortColumn: "bogus"}.Normalized()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, DefaultPageSize, q.PageSize)
	assert.Equal(t, SortDate, q.SortColumn)

	q = ListQuery{Page: 3, PageSize: 1000}.Normalized()
	assert.Equal(t, MaxPageSize, q.PageSize)
	assert.Equal(t, 2*MaxPageSize, q.Offset())
}

func TestDuplicateResetsIdentity(t *testing.T) {
	orig := Interaction{
		ID:        uuid.New(),
		Title:     "Quarterly review",
		Status:    StatusCompleted,
		Outcome:   OutcomePositive,
		Rating:    4,
		Tags:      []string{"qbr"},
		CreatedAt: time.Now(),
	}

	dup := orig.Duplicate()
	assert.Equal(t, uuid.Nil, dup.ID)
	assert.Equal(t, StatusPlanned, dup.Status)
	assert.Equal(t, OutcomeNone, dup.Outcome)
	assert.Zero(t, dup.Rating)
	assert.Equal(t, orig.Title, dup.Title)

	dup.Tags[0] = "changed"
	assert.Equal(t, "qbr", orig.Tags[0], "duplicate must not share tag storage")
}

func TestSummary(t *testing.T) {
	due := time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC)
	i := Interaction{
		Type:             TypePhoneCall,
		Title:            "Intro call",
		Status:           StatusCompleted,
		Outcome:          OutcomeNeedsFollowUp,
		InteractionDate:  time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC),
		OrganizationName: "Acme",
		FollowUp:         FollowUp{Required: true, Date: &due, NextAction: "send pricing"},
	}

	s := i.Summary()
	assert.Contains(t, s, "Phone call: Intro call (Completed) on 2026-10-14 09:30 with Acme")
	assert.Contains(t, s, "Outcome: Needs follow up")
	assert.Contains(t, s, "Follow-up: 2026-11-02 - send pricing")
}

func TestOrganizationCandidate(t *testing.T) {
	org := Organization{ID: uuid.New(), Name: "Acme", Domain: "acme.com"}
	c := org.Candidate()
	assert.Equal(t, KindOrganization, c.Kind)
	assert.Equal(t, org.ID.String(), c.ID)
	assert.Equal(t, "acme.com", c.Detail["domain"])
}

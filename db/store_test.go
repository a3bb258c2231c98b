// ABOUTME: Tests for the local interaction store
// ABOUTME: Uses in-memory SQLite with a fixed clock
package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/touchpoint/models"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	database.SetMaxOpenConns(1)
	require.NoError(t, InitSchema(database))
	t.Cleanup(func() { _ = database.Close() })

	return NewStore(database).WithClock(func() time.Time { return fixedNow })
}

func newInteraction(title string) models.Interaction {
	return models.Interaction{
		Type:            models.TypePhoneCall,
		Title:           title,
		Status:          models.StatusPlanned,
		InteractionDate: fixedNow.Add(-time.Hour),
		OrganizationID:  "org-1",
	}
}

func TestCreateAndGetInteraction(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	due := fixedNow.Add(48 * time.Hour)
	in := newInteraction("Intro call")
	in.Tags = []string{"Intro", "intro ", "pricing"}
	in.Participants = []string{"Dana"}
	in.FollowUp = models.FollowUp{Required: true, Date: &due, NextAction: "Send pricing"}

	id, err := s.Create(ctx, in)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Intro call", got.Title)
	assert.Equal(t, models.TypePhoneCall, got.Type)
	assert.Equal(t, []string{"intro", "pricing"}, got.Tags)
	assert.Equal(t, []string{"Dana"}, got.Participants)
	assert.True(t, got.FollowUp.Required)
	require.NotNil(t, got.FollowUp.Date)
	assert.True(t, due.Equal(*got.FollowUp.Date))
	assert.True(t, fixedNow.Equal(got.CreatedAt))
}

func TestGetMissingInteractionReturnsNil(t *testing.T) {
	s := setupTestStore(t)
	got, err := s.Get(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestCreateRejectsInvalidInteraction(t *testing.T) {
	s := setupTestStore(t)
	in := newInteraction("")
	_, err := s.Create(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestCreateWithExistingIDIsIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	in := newInteraction("Intro call")
	in.ID = uuid.New()
	_, err := s.Create(ctx, in)
	require.NoError(t, err)
	_, err = s.Create(ctx, in)
	require.NoError(t, err)

	page, err := s.List(ctx, models.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestUpdateInteraction(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, newInteraction("Intro call"))
	require.NoError(t, err)

	in := newInteraction("Intro call, round two")
	in.Status = models.StatusCompleted
	in.Outcome = models.OutcomePositive
	in.Rating = 5
	require.NoError(t, s.Update(ctx, id, in))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Intro call, round two", got.Title)
	assert.Equal(t, models.OutcomePositive, got.Outcome)
	assert.Equal(t, 5, got.Rating)

	err = s.Update(ctx, uuid.New(), in)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteAndDeleteMany(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	var ids []uuid.UUID
	for _, title := range []string{"One call", "Two call", "Three call"} {
		id, err := s.Create(ctx, newInteraction(title))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.NoError(t, s.Delete(ctx, ids[0]))
	require.NoError(t, s.Delete(ctx, ids[0]))

	n, err := s.DeleteMany(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.DeleteMany(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestListFiltersSortsAndPages(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	titles := []string{"Charlie sync", "alpha call", "Bravo demo", "Delta review", "Echo lunch"}
	for i, title := range titles {
		in := newInteraction(title)
		in.InteractionDate = fixedNow.Add(time.Duration(i) * time.Hour)
		if i%2 == 0 {
			in.Status = models.StatusScheduled
		}
		_, err := s.Create(ctx, in)
		require.NoError(t, err)
	}

	page, err := s.List(ctx, models.ListQuery{SortColumn: models.SortTitle, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "alpha call", page.Items[0].Title)
	assert.Equal(t, "Bravo demo", page.Items[1].Title)

	page, err = s.List(ctx, models.ListQuery{SortColumn: models.SortTitle, PageSize: 2, Page: 3})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Echo lunch", page.Items[0].Title)

	page, err = s.List(ctx, models.ListQuery{SortColumn: models.SortDate, SortDesc: true})
	require.NoError(t, err)
	assert.Equal(t, "Echo lunch", page.Items[0].Title)

	page, err = s.List(ctx, models.ListQuery{Status: models.StatusScheduled})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)

	page, err = s.List(ctx, models.ListQuery{Search: "DEMO"})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "Bravo demo", page.Items[0].Title)
}

func TestKPIs(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	soon := fixedNow.Add(24 * time.Hour)
	later := fixedNow.Add(30 * 24 * time.Hour)

	completed := newInteraction("Done call")
	completed.Status = models.StatusCompleted
	completed.Outcome = models.OutcomeNeutral
	completed.Rating = 4
	completed.DurationMinutes = 30
	completed.FollowUp = models.FollowUp{Required: true, Date: &soon}

	planned := newInteraction("Planned call")
	planned.DurationMinutes = 15
	planned.FollowUp = models.FollowUp{Required: true, Date: &later}

	old := newInteraction("Old call")
	old.InteractionDate = fixedNow.Add(-30 * 24 * time.Hour)

	for _, in := range []models.Interaction{completed, planned, old} {
		_, err := s.Create(ctx, in)
		require.NoError(t, err)
	}

	k, err := s.KPIs(ctx, models.KPIFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, k.Total)
	assert.Equal(t, 1, k.ByStatus[models.StatusCompleted])
	assert.Equal(t, 2, k.ByStatus[models.StatusPlanned])
	assert.Equal(t, 2, k.FollowUpsTotal)
	assert.Equal(t, 1, k.FollowUpsDue)
	assert.Equal(t, 1, k.RatedCount)
	assert.Equal(t, 4, k.RatingSum)
	assert.Equal(t, 45, k.DurationMinutes)
	assert.Equal(t, 2, k.ThisWeek)

	since := fixedNow.Add(-7 * 24 * time.Hour)
	k, err = s.KPIs(ctx, models.KPIFilter{Since: &since})
	require.NoError(t, err)
	assert.Equal(t, 2, k.Total)
}

func TestSearchAndResolveNames(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	org := models.Organization{Name: "Acme Foods", Domain: "acmefoods.com"}
	require.NoError(t, s.CreateOrganization(ctx, &org))
	contact, err := s.CreateCandidate(ctx, models.KindContact, "Dana Whitfield", org.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Acme Foods", contact.Detail["organization"])

	got, err := s.Search(ctx, models.KindOrganization, "acm", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, org.ID.String(), got[0].ID)
	assert.Equal(t, "acmefoods.com", got[0].Detail["domain"])

	got, err = s.Search(ctx, models.KindContact, "dana", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Dana Whitfield", got[0].Name)

	_, err = s.CreateCandidate(ctx, models.KindOpportunity, "Spring rollout", "")
	assert.ErrorIs(t, err, ErrInvalidRecord)
	opp, err := s.CreateCandidate(ctx, models.KindOpportunity, "Spring rollout", org.ID.String())
	require.NoError(t, err)

	_, err = s.Search(ctx, models.CandidateKind("vendor"), "x", 5)
	assert.ErrorIs(t, err, ErrUnknownLookup)

	in := newInteraction("Intro call")
	in.OrganizationID = org.ID.String()
	in.OpportunityID = opp.ID
	id, err := s.Create(ctx, in)
	require.NoError(t, err)

	stored, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Acme Foods", stored.OrganizationName)
	assert.Equal(t, "Spring rollout", stored.OpportunityName)
}

func TestSeedOnlyOnce(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	n, err := s.Seed(ctx)
	require.NoError(t, err)
	assert.Greater(t, n, 0)

	n, err = s.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	page, err := s.List(ctx, models.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
}

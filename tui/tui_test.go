// ABOUTME: Tests for the top-level TUI model and its screens
// ABOUTME: Drives the model with key messages against an in-memory store and queue
package tui

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/touchpoint/capture"
	"github.com/harperreed/touchpoint/config"
	"github.com/harperreed/touchpoint/db"
	"github.com/harperreed/touchpoint/form"
	"github.com/harperreed/touchpoint/kv"
	"github.com/harperreed/touchpoint/listview"
	"github.com/harperreed/touchpoint/lookup"
	"github.com/harperreed/touchpoint/models"
	"github.com/harperreed/touchpoint/queue"
	"github.com/harperreed/touchpoint/remote"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

type fakeClipboard struct {
	text string
}

func (f *fakeClipboard) WriteAll(text string) error {
	f.text = text
	return nil
}

type harness struct {
	store     *db.Store
	queue     *queue.Queue
	drafts    *form.DraftCache
	clipboard *fakeClipboard
	org       models.Organization
}

func setupHarness(t *testing.T, sender queue.Sender) *harness {
	t.Helper()
	database, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	database.SetMaxOpenConns(1)
	require.NoError(t, db.InitSchema(database))
	t.Cleanup(func() { _ = database.Close() })
	store := db.NewStore(database).WithClock(clock)

	org := models.Organization{Name: "Acme"}
	require.NoError(t, store.CreateOrganization(context.Background(), &org))

	if sender == nil {
		sender = remote.StoreSender{Store: store}
	}
	logger := log.New(io.Discard)
	q := queue.New(kv.NewMemory(), sender, queue.Options{MaxRetries: 1, Now: clock, Logger: logger})

	return &harness{
		store:     store,
		queue:     q,
		drafts:    form.NewDraftCache(kv.NewMemory()),
		clipboard: &fakeClipboard{},
		org:       org,
	}
}

func (h *harness) deps() Deps {
	return Deps{
		Store:     h.store,
		Lookups:   h.store,
		Creator:   h.store,
		Queue:     h.queue,
		Drafts:    h.drafts,
		Clipboard: h.clipboard,
		Config:    config.DefaultConfig(),
		Logger:    log.New(io.Discard),
		Now:       clock,
	}
}

func (h *harness) model(t *testing.T, deps Deps) Model {
	t.Helper()
	m := NewModel(deps)
	t.Cleanup(m.Close)
	model, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = model.(Model)
	return settle(t, m, m.list.Init())
}

func (h *harness) addInteraction(t *testing.T, title string) models.Interaction {
	t.Helper()
	in := models.Interaction{
		Type:            models.TypePhoneCall,
		Title:           title,
		Status:          models.StatusPlanned,
		InteractionDate: testNow.Add(-time.Hour),
		OrganizationID:  h.org.ID.String(),
	}
	id, err := h.store.Create(context.Background(), in)
	require.NoError(t, err)
	in.ID = id
	return in
}

// collect runs a command and flattens batches. Commands that have not
// answered quickly (cursor blinks, the event wait) are dropped.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	select {
	case msg := <-done:
		if batch, ok := msg.(tea.BatchMsg); ok {
			var out []tea.Msg
			for _, c := range batch {
				out = append(out, collect(c)...)
			}
			return out
		}
		if msg == nil {
			return nil
		}
		return []tea.Msg{msg}
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// settle feeds the results of cmd back into the model a few rounds deep.
func settle(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	pending := []tea.Cmd{cmd}
	for round := 0; round < 6 && len(pending) > 0; round++ {
		var next []tea.Cmd
		for _, c := range pending {
			for _, msg := range collect(c) {
				var model tea.Model
				var out tea.Cmd
				model, out = m.Update(msg)
				m = model.(Model)
				next = append(next, out)
			}
		}
		pending = next
	}
	return m
}

func press(t *testing.T, m Model, msg tea.KeyMsg) Model {
	t.Helper()
	model, cmd := m.Update(msg)
	return settle(t, model.(Model), cmd)
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func keyOf(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

func TestListLoadsInteractions(t *testing.T) {
	h := setupHarness(t, nil)
	h.addInteraction(t, "Intro call")
	h.addInteraction(t, "Pricing call")

	m := h.model(t, h.deps())

	assert.Equal(t, 2, m.list.Total())
	view := m.View()
	assert.Contains(t, view, "TOUCHPOINT")
	assert.Contains(t, view, "1 Interactions")
	assert.Contains(t, view, "Pricing call")
	assert.Contains(t, view, "● online")
}

func TestOpenDetailAndGoBack(t *testing.T) {
	h := setupHarness(t, nil)
	h.addInteraction(t, "Intro call")
	m := h.model(t, h.deps())

	m = press(t, m, runes("o"))
	require.Equal(t, ScreenDetail, m.screen)
	view := m.View()
	assert.Contains(t, view, "INTERACTION")
	assert.Contains(t, view, "Intro call")
	assert.Contains(t, view, "Acme")

	m = press(t, m, keyOf(tea.KeyEsc))
	assert.Equal(t, ScreenList, m.screen)
}

func TestDeleteFromDetailOnline(t *testing.T) {
	h := setupHarness(t, nil)
	in := h.addInteraction(t, "Intro call")
	m := h.model(t, h.deps())

	m = press(t, m, runes("o"))
	m = press(t, m, runes("x"))
	require.Equal(t, ScreenConfirmDelete, m.screen)
	assert.Contains(t, m.View(), "DELETE CONFIRMATION")

	m = press(t, m, runes("y"))
	assert.Equal(t, ScreenList, m.screen)
	assert.Equal(t, `Deleted "Intro call"`, m.status)

	got, err := h.store.Get(context.Background(), in.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, m.list.Total())
}

func TestDeleteCancelReturnsToDetail(t *testing.T) {
	h := setupHarness(t, nil)
	h.addInteraction(t, "Intro call")
	m := h.model(t, h.deps())

	m = press(t, m, runes("o"))
	m = press(t, m, runes("x"))
	m = press(t, m, runes("n"))
	assert.Equal(t, ScreenDetail, m.screen)
	assert.Nil(t, m.deleteTarget)
}

func TestDeleteOfflineIsQueued(t *testing.T) {
	h := setupHarness(t, nil)
	in := h.addInteraction(t, "Intro call")
	m := h.model(t, h.deps())
	h.queue.SetOnline(false)
	m = settle(t, m, m.waitForEvent())
	require.False(t, m.online)

	m = press(t, m, runes("o"))
	m = press(t, m, runes("x"))
	assert.Contains(t, m.View(), "You are offline")
	m = press(t, m, runes("y"))

	assert.Equal(t, `Queued delete of "Intro call"`, m.status)
	assert.Equal(t, 1, h.queue.Len())
	got, err := h.store.Get(context.Background(), in.ID)
	require.NoError(t, err)
	assert.NotNil(t, got, "delete waits for the connection")
}

func TestCopySummaryFromList(t *testing.T) {
	h := setupHarness(t, nil)
	h.addInteraction(t, "Intro call")
	m := h.model(t, h.deps())

	m = press(t, m, runes("y"))
	assert.Contains(t, h.clipboard.text, "Intro call")
	assert.Equal(t, "Copied summary to clipboard", m.status)
}

// fillContext completes the first wizard step.
func fillContext(t *testing.T, h *harness, m Model, title string) Model {
	t.Helper()
	m = press(t, m, keyOf(tea.KeyRight)) // first interaction type
	m = press(t, m, keyOf(tea.KeyTab))
	m = press(t, m, runes(title))
	model, cmd := m.Update(lookup.SelectedMsg{
		Kind:      models.KindOrganization,
		Candidate: models.Candidate{ID: h.org.ID.String(), Kind: models.KindOrganization, Name: h.org.Name},
	})
	return settle(t, model.(Model), cmd)
}

func TestWizardCreatesInteraction(t *testing.T) {
	h := setupHarness(t, nil)
	m := h.model(t, h.deps())

	m = press(t, m, runes("n"))
	require.Equal(t, ScreenWizard, m.screen)
	assert.Contains(t, m.View(), "NEW INTERACTION")

	m = fillContext(t, h, m, "Intro call")
	assert.True(t, m.wizard.snap.Valid[form.StepContext])

	m = press(t, m, keyOf(tea.KeyCtrlF))
	require.Equal(t, form.StepDetails, m.wizard.step())
	assert.Equal(t, "15", m.wizard.field(form.FieldDuration).value())
	assert.Equal(t, string(models.MethodPhone), m.wizard.field(form.FieldContactMethod).value())

	m = press(t, m, keyOf(tea.KeyCtrlF))
	require.Equal(t, form.StepOutcome, m.wizard.step())

	m = press(t, m, keyOf(tea.KeyCtrlS))
	assert.Equal(t, ScreenList, m.screen)
	assert.Nil(t, m.wizard)
	assert.Equal(t, "Saved", m.status)

	page, err := h.store.List(context.Background(), models.ListQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Intro call", page.Items[0].Title)
	assert.Equal(t, models.TypePhoneCall, page.Items[0].Type)
	assert.Equal(t, 1, m.list.Total())
}

func TestWizardRecordsPrincipal(t *testing.T) {
	h := setupHarness(t, nil)
	m := h.model(t, h.deps())

	m = press(t, m, runes("n"))
	m = fillContext(t, h, m, "Distributor review")
	for i := 0; i < 4; i++ {
		m = press(t, m, keyOf(tea.KeyTab))
	}
	require.Equal(t, form.FieldPrincipalID, m.wizard.current().key)
	m = press(t, m, runes("principal-42"))
	assert.Equal(t, "principal-42", m.wizard.snap.Draft.Context.PrincipalID)

	m = press(t, m, keyOf(tea.KeyCtrlF))
	m = press(t, m, keyOf(tea.KeyCtrlF))
	require.Equal(t, form.StepOutcome, m.wizard.step())
	m = press(t, m, keyOf(tea.KeyCtrlS))
	require.Equal(t, ScreenList, m.screen)

	page, err := h.store.List(context.Background(), models.ListQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "principal-42", page.Items[0].PrincipalID)
}

func TestWizardBlocksInvalidStep(t *testing.T) {
	h := setupHarness(t, nil)
	m := h.model(t, h.deps())

	m = press(t, m, runes("n"))
	m = press(t, m, keyOf(tea.KeyCtrlF))

	assert.Equal(t, form.StepContext, m.wizard.step())
	view := m.View()
	assert.Contains(t, view, "Fix the highlighted fields before continuing")
	assert.Contains(t, view, "Choose an interaction type")
}

func TestWizardOfflineSubmitIsQueued(t *testing.T) {
	h := setupHarness(t, nil)
	m := h.model(t, h.deps())
	h.queue.SetOnline(false)
	m = settle(t, m, m.waitForEvent())

	m = press(t, m, runes("n"))
	m = fillContext(t, h, m, "Site visit")
	m = press(t, m, keyOf(tea.KeyCtrlF))
	m = press(t, m, keyOf(tea.KeyCtrlF))
	m = press(t, m, keyOf(tea.KeyCtrlS))

	assert.Equal(t, "Queued for sync", m.status)
	assert.Equal(t, 1, h.queue.Len())
	assert.Contains(t, m.View(), "1 queued")
}

func TestWizardCloseKeepsDraftForResume(t *testing.T) {
	h := setupHarness(t, nil)
	m := h.model(t, h.deps())

	m = press(t, m, runes("n"))
	m = press(t, m, keyOf(tea.KeyRight))
	assert.Contains(t, m.View(), "duration set to 15 min")
	m = press(t, m, keyOf(tea.KeyEsc))
	assert.Equal(t, ScreenList, m.screen)
	assert.Equal(t, "Draft kept: press R to resume", m.status)

	m = press(t, m, runes("R"))
	require.Equal(t, ScreenWizard, m.screen)
	assert.Equal(t, models.TypePhoneCall, m.wizard.snap.Draft.Context.Type)
}

func TestWizardDiscardDropsDraft(t *testing.T) {
	h := setupHarness(t, nil)
	m := h.model(t, h.deps())

	m = press(t, m, runes("n"))
	m = press(t, m, keyOf(tea.KeyRight))
	m = press(t, m, keyOf(tea.KeyCtrlD))
	assert.Equal(t, "Draft discarded", m.status)

	drafts, err := h.drafts.List()
	require.NoError(t, err)
	assert.Empty(t, drafts)

	m = press(t, m, runes("R"))
	assert.Equal(t, "No saved drafts", m.status)
}

func TestWizardFillsLocation(t *testing.T) {
	h := setupHarness(t, nil)
	deps := h.deps()
	deps.Locator = capture.NewStaticLocator(&config.Location{Latitude: 41.88, Longitude: -87.63, Label: "Office"})
	m := h.model(t, deps)

	m = press(t, m, runes("n"))
	m = press(t, m, keyOf(tea.KeyCtrlL))

	assert.Contains(t, m.wizard.snap.Draft.Details.Location, "Office")
	assert.Equal(t, "Location filled in", m.wizard.message)
}

func TestWizardLocationUnavailable(t *testing.T) {
	h := setupHarness(t, nil)
	m := h.model(t, h.deps())

	m = press(t, m, runes("n"))
	m = press(t, m, keyOf(tea.KeyCtrlL))

	assert.Empty(t, m.wizard.snap.Draft.Details.Location)
	assert.Equal(t, capture.Explain(capture.ErrUnsupported), m.wizard.message)
}

func TestWizardDictatesIntoFocusedField(t *testing.T) {
	h := setupHarness(t, nil)
	deps := h.deps()
	deps.Recognizer = capture.NewStreamRecognizer(strings.NewReader("~hello\nhello world\n"))
	m := h.model(t, deps)

	m = press(t, m, runes("n"))
	m = press(t, m, keyOf(tea.KeyTab)) // title
	m = press(t, m, keyOf(tea.KeyCtrlR))

	assert.Equal(t, "Hello world", m.wizard.snap.Draft.Context.Title)
	assert.False(t, m.wizard.dictating)
}

func TestWizardDictationUnsupported(t *testing.T) {
	h := setupHarness(t, nil)
	m := h.model(t, h.deps())

	m = press(t, m, runes("n"))
	m = press(t, m, keyOf(tea.KeyTab))
	m = press(t, m, keyOf(tea.KeyCtrlR))

	assert.False(t, m.wizard.dictating)
	assert.Equal(t, capture.Explain(capture.ErrUnsupported), m.wizard.message)
}

func TestWizardCreatesOrganizationFromLookup(t *testing.T) {
	h := setupHarness(t, nil)
	m := h.model(t, h.deps())

	m = press(t, m, runes("n"))
	model, cmd := m.Update(lookup.CreateRequestedMsg{Kind: models.KindOrganization, Query: "Globex"})
	m = settle(t, model.(Model), cmd)

	assert.Equal(t, "Globex", m.wizard.snap.Draft.Context.OrganizationName)
	assert.NotEmpty(t, m.wizard.snap.Draft.Context.OrganizationID)

	found, err := h.store.Search(context.Background(), models.KindOrganization, "Glob", 5)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, m.wizard.snap.Draft.Context.OrganizationID, found[0].ID)
}

func TestRowActionsOpenWizards(t *testing.T) {
	h := setupHarness(t, nil)
	in := h.addInteraction(t, "Intro call")
	m := h.model(t, h.deps())

	model, _ := m.Update(listview.RowActionMsg{Action: listview.ActionDuplicate, Interaction: in})
	m = model.(Model)
	require.Equal(t, ScreenWizard, m.screen)
	assert.Equal(t, form.ModeCreate, m.wizard.snap.Draft.Mode)
	assert.Equal(t, "Intro call", m.wizard.snap.Draft.Context.Title)

	model, _ = m.Update(listview.RowActionMsg{Action: listview.ActionEdit, Interaction: in})
	m = model.(Model)
	assert.Equal(t, form.ModeEdit, m.wizard.snap.Draft.Mode)
	assert.Equal(t, in.ID, m.wizard.snap.Draft.EditID)

	model, _ = m.Update(listview.RowActionMsg{Action: listview.ActionFollowUp, Interaction: in})
	m = model.(Model)
	assert.Equal(t, models.TypeFollowUp, m.wizard.snap.Draft.Context.Type)
}

func TestEditFromDetailUpdatesStore(t *testing.T) {
	h := setupHarness(t, nil)
	in := h.addInteraction(t, "Intro call")
	m := h.model(t, h.deps())

	m = press(t, m, runes("o"))
	m = press(t, m, runes("e"))
	require.Equal(t, ScreenWizard, m.screen)

	m = press(t, m, keyOf(tea.KeyTab))
	m = press(t, m, runes(" (rescheduled)"))
	m = press(t, m, keyOf(tea.KeyCtrlS))
	assert.Equal(t, "Saved", m.status)

	got, err := h.store.Get(context.Background(), in.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Intro call (rescheduled)", got.Title)
}

func TestOutboxSyncAllReplaysQueue(t *testing.T) {
	h := setupHarness(t, nil)
	mu, err := remote.CreateMutation(models.Interaction{
		Type:            models.TypeEmail,
		Title:           "Sent deck",
		Status:          models.StatusCompleted,
		Outcome:         models.OutcomePositive,
		InteractionDate: testNow,
		OrganizationID:  h.org.ID.String(),
	})
	require.NoError(t, err)
	_, err = h.queue.Enqueue(context.Background(), mu)
	require.NoError(t, err)

	m := h.model(t, h.deps())
	m = press(t, m, runes("3"))
	require.Equal(t, ScreenQueue, m.screen)
	assert.Contains(t, m.View(), "Create Sent deck")

	m = press(t, m, runes("s"))
	assert.False(t, m.sync.syncing)
	assert.Equal(t, 0, h.queue.Len())
	assert.Contains(t, m.View(), "Everything is synced")

	page, err := h.store.List(context.Background(), models.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

type statusErr int

func (e statusErr) Error() string   { return "rejected" }
func (e statusErr) StatusCode() int { return int(e) }

func TestOutboxShowsFailuresAndDiscards(t *testing.T) {
	h := setupHarness(t, queue.SenderFunc(func(context.Context, queue.Mutation) error {
		return statusErr(403)
	}))
	_, err := h.queue.Enqueue(context.Background(), remote.DeleteMutation(uuid.New(), "Old call"))
	require.NoError(t, err)

	m := h.model(t, h.deps())
	m = press(t, m, runes("3"))
	m = press(t, m, runes("s"))

	items := h.queue.List()
	require.Len(t, items, 1)
	require.Equal(t, queue.StateFailed, items[0].State)
	view := m.View()
	assert.Contains(t, view, "failed")
	assert.Contains(t, view, queue.ErrorPermission.Message())

	m = press(t, m, keyOf(tea.KeyEnter))
	assert.Equal(t, queue.StatePending, h.queue.List()[0].State)

	m = press(t, m, runes("x"))
	assert.Equal(t, 0, h.queue.Len())
	assert.Contains(t, m.sync.messages[len(m.sync.messages)-1], "Discarded: Delete Old call")
}

func TestOutboxWithoutQueue(t *testing.T) {
	h := setupHarness(t, nil)
	deps := h.deps()
	deps.Queue = nil
	m := h.model(t, deps)

	m = press(t, m, runes("3"))
	assert.Contains(t, m.View(), "nothing to sync")
	m = press(t, m, runes("s"))
	assert.Equal(t, ScreenQueue, m.screen)
}

func TestConnectivityEventsReachStatusBar(t *testing.T) {
	h := setupHarness(t, nil)
	m := h.model(t, h.deps())

	h.queue.SetOnline(false)
	m = settle(t, m, m.waitForEvent())
	assert.Contains(t, m.View(), "○ offline")

	h.queue.SetOnline(true)
	m = settle(t, m, m.waitForEvent())
	assert.Contains(t, m.View(), "● online")
	assert.Contains(t, m.sync.messages[len(m.sync.messages)-1], "Connection restored")
}

func TestDashboardLoadsMetrics(t *testing.T) {
	h := setupHarness(t, nil)
	h.addInteraction(t, "Intro call")
	m := h.model(t, h.deps())

	m = press(t, m, runes("2"))
	require.Equal(t, ScreenDashboard, m.screen)
	assert.Contains(t, m.View(), "INTERACTION METRICS")
	assert.Equal(t, 1, m.dashboard.State().Metrics.Total)

	m = press(t, m, keyOf(tea.KeyEsc))
	assert.Equal(t, ScreenList, m.screen)
}

func TestDetailLoadFailureFallsBackToRow(t *testing.T) {
	h := setupHarness(t, nil)
	in := h.addInteraction(t, "Intro call")
	m := h.model(t, h.deps())

	model, _ := m.Update(detailLoadedMsg{id: in.ID, err: errors.New("boom")})
	m = model.(Model)
	assert.Equal(t, ScreenDetail, m.screen)
	assert.Equal(t, "Could not load interaction: boom", m.status)
}

func TestQuitOnlyFromList(t *testing.T) {
	h := setupHarness(t, nil)
	m := h.model(t, h.deps())

	m = press(t, m, runes("n"))
	_, cmd := m.Update(runes("q"))
	if cmd != nil {
		_, quit := cmd().(tea.QuitMsg)
		assert.False(t, quit, "q is text inside the wizard")
	}

	_, cmd = m.Update(keyOf(tea.KeyCtrlC))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

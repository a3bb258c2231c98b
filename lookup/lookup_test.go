// ABOUTME: Tests for the debounced lookup widget
// ABOUTME: Drives the bubbletea model by hand, executing its commands synchronously
package lookup

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/touchpoint/models"
)

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	ctxs    []context.Context
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, kind models.CandidateKind, query string, limit int) ([]models.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	f.ctxs = append(f.ctxs, ctx)
	if f.err != nil {
		return nil, f.err
	}
	return []models.Candidate{
		{ID: "org-" + query + "-1", Kind: kind, Name: strings.ToUpper(query) + " One"},
		{ID: "org-" + query + "-2", Kind: kind, Name: strings.ToUpper(query) + " Two"},
	}, nil
}

func (f *fakeSearcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

// collect runs cmd and flattens batches. Commands that do not finish quickly
// (cursor blink timers) are dropped.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()

	select {
	case msg := <-ch:
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
	case <-time.After(50 * time.Millisecond):
		return nil
	}
}

// drive feeds msg and every internal message it produces, returning the
// messages meant for the parent.
func drive(m Model, msg tea.Msg) (Model, []tea.Msg) {
	var emitted []tea.Msg
	pending := []tea.Msg{msg}
	for len(pending) > 0 {
		next := pending[0]
		pending = pending[1:]

		var cmd tea.Cmd
		m, cmd = m.Update(next)
		for _, out := range collect(cmd) {
			switch out.(type) {
			case debounceMsg, resultsMsg:
				pending = append(pending, out)
			default:
				emitted = append(emitted, out)
			}
		}
	}
	return m, emitted
}

func typeText(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel(s *fakeSearcher, allowCreate bool) Model {
	m := New(models.KindOrganization, s, Options{
		Debounce:    time.Millisecond,
		AllowCreate: allowCreate,
		Logger:      log.New(io.Discard),
	})
	m.Focus()
	return m
}

func TestShortQueryShowsHintWithoutSearching(t *testing.T) {
	s := &fakeSearcher{}
	m := newTestModel(s, false)

	m, _ = drive(m, typeText("a"))
	assert.Equal(t, 0, s.calls())
	assert.Contains(t, m.Hint(), "at least 2")
	assert.False(t, m.IsOpen())
}

func TestDebouncedSearchOpensResults(t *testing.T) {
	s := &fakeSearcher{}
	m := newTestModel(s, false)

	m, _ = drive(m, typeText("ac"))
	assert.Equal(t, []string{"ac"}, s.queries)
	assert.True(t, m.IsOpen())
	assert.Len(t, m.Results(), 2)
	assert.Equal(t, 0, m.Cursor())
}

func TestOnlyLatestDebounceTickSearches(t *testing.T) {
	s := &fakeSearcher{}
	m := newTestModel(s, false)

	m, _ = m.Update(typeText("ac"))
	first := m.seq
	m, _ = m.Update(typeText("m"))
	require.Greater(t, m.seq, first)

	m, cmd := m.Update(debounceMsg{id: m.id, seq: first})
	assert.Nil(t, cmd)
	assert.Equal(t, 0, s.calls())

	m, _ = drive(m, debounceMsg{id: m.id, seq: m.seq})
	assert.Equal(t, []string{"acm"}, s.queries)
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	s := &fakeSearcher{}
	m := newTestModel(s, false)

	m, _ = m.Update(typeText("ac"))
	m, older := m.Update(debounceMsg{id: m.id, seq: m.seq})
	require.NotNil(t, older)

	m, _ = m.Update(typeText("me"))
	m, newer := m.Update(debounceMsg{id: m.id, seq: m.seq})
	require.NotNil(t, newer)

	olderMsgs := collect(older)
	newerMsgs := collect(newer)
	require.Len(t, newerMsgs, 1)
	require.Len(t, olderMsgs, 1)

	// Deliver out of order: the newer response lands first.
	m, _ = m.Update(newerMsgs[0])
	m, _ = m.Update(olderMsgs[0])

	require.Len(t, m.Results(), 2)
	assert.Equal(t, "ACME One", m.Results()[0].Name)

	// The superseded request was cancelled when the newer one was issued.
	require.Len(t, s.ctxs, 2)
	assert.ErrorIs(t, s.ctxs[0].Err(), context.Canceled)
}

func TestKeyboardNavigationIncludesCreateRow(t *testing.T) {
	s := &fakeSearcher{}
	m := newTestModel(s, true)
	m, _ = drive(m, typeText("ac"))
	require.True(t, m.IsOpen())

	m, _ = drive(m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = drive(m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 2, m.Cursor(), "create row follows the results")
	m, _ = drive(m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 0, m.Cursor())
	m, _ = drive(m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 2, m.Cursor())

	m, out := drive(m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Len(t, out, 1)
	assert.Equal(t, CreateRequestedMsg{Kind: models.KindOrganization, Query: "ac"}, out[0])
	assert.False(t, m.IsOpen())
	assert.Empty(t, m.SelectedID())
}

func TestSelectThenClearRoundTrip(t *testing.T) {
	s := &fakeSearcher{}
	m := newTestModel(s, false)
	m, _ = drive(m, typeText("ac"))

	m, _ = drive(m, tea.KeyMsg{Type: tea.KeyDown})
	m, out := drive(m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Len(t, out, 1)
	sel, ok := out[0].(SelectedMsg)
	require.True(t, ok)
	assert.Equal(t, "org-ac-2", sel.Candidate.ID)
	assert.Equal(t, "org-ac-2", m.SelectedID())
	assert.Equal(t, "AC Two", m.Query())
	assert.False(t, m.IsOpen())

	m, out = drive(m, tea.KeyMsg{Type: tea.KeyCtrlX})
	assert.Contains(t, out, tea.Msg(ClearedMsg{Kind: models.KindOrganization}))
	assert.Empty(t, m.SelectedID())
	assert.Nil(t, m.Selected())
	assert.Empty(t, m.Query())
	assert.True(t, m.Focused())
}

func TestEscapeClosesWithoutChangingSelection(t *testing.T) {
	s := &fakeSearcher{}
	m := newTestModel(s, false)
	m.SetSelected(models.Candidate{ID: "org-1", Name: "Acme"})

	m, _ = drive(m, typeText("xy"))
	require.True(t, m.IsOpen())

	m, out := drive(m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, []tea.Msg{ClosedMsg{Kind: models.KindOrganization}}, out)
	assert.False(t, m.IsOpen())
	assert.Equal(t, "org-1", m.SelectedID())
}

func TestSearchFailureKeepsLastResults(t *testing.T) {
	s := &fakeSearcher{}
	m := newTestModel(s, false)
	m, _ = drive(m, typeText("ac"))
	require.Len(t, m.Results(), 2)

	s.mu.Lock()
	s.err = errors.New("gateway timeout")
	s.mu.Unlock()

	m, out := drive(m, typeText("m"))
	assert.Empty(t, out)
	assert.Len(t, m.Results(), 2)
	assert.Equal(t, "AC One", m.Results()[0].Name)
	assert.EqualError(t, m.LastError(), "gateway timeout")
	assert.False(t, m.Loading())
}

func TestMessagesForOtherInstancesAreIgnored(t *testing.T) {
	s := &fakeSearcher{}
	a := newTestModel(s, false)
	b := newTestModel(s, false)
	a, _ = a.Update(typeText("ac"))

	_, cmd := a.Update(debounceMsg{id: b.id, seq: a.seq})
	assert.Nil(t, cmd)
	assert.Equal(t, 0, s.calls())
}

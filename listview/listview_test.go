// ABOUTME: Tests for list view paging, sorting, selection and bulk delete
// ABOUTME: Uses a fake source that records every List and DeleteMany call
package listview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/touchpoint/models"
)

type fakeSource struct {
	mu       sync.Mutex
	items    []models.Interaction
	queries  []models.ListQuery
	deletes  [][]uuid.UUID
	listErr  error
	deleteEr error
}

func newFakeSource(n int) *fakeSource {
	s := &fakeSource{}
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		s.items = append(s.items, models.Interaction{
			ID:              uuid.New(),
			Type:            models.TypePhoneCall,
			Title:           fmt.Sprintf("Call %02d", i+1),
			Status:          models.StatusPlanned,
			InteractionDate: base.Add(time.Duration(i) * time.Hour),
		})
	}
	return s
}

func (s *fakeSource) List(ctx context.Context, q models.ListQuery) (models.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	if s.listErr != nil {
		return models.Page{}, s.listErr
	}
	q = q.Normalized()
	start := q.Offset()
	if start > len(s.items) {
		start = len(s.items)
	}
	end := start + q.PageSize
	if end > len(s.items) {
		end = len(s.items)
	}
	return models.Page{Items: append([]models.Interaction(nil), s.items[start:end]...), Total: len(s.items)}, nil
}

func (s *fakeSource) DeleteMany(ctx context.Context, ids []uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, ids)
	if s.deleteEr != nil {
		return 0, s.deleteEr
	}
	gone := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		gone[id] = true
	}
	kept := s.items[:0]
	for _, it := range s.items {
		if !gone[it.ID] {
			kept = append(kept, it)
		}
	}
	s.items = kept
	return len(ids), nil
}

func (s *fakeSource) lastQuery() models.ListQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[len(s.queries)-1]
}

func (s *fakeSource) listCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

// run executes cmd and feeds its message back until the model goes quiet,
// returning messages the list does not consume itself.
func run(m Model, cmd tea.Cmd) (Model, []tea.Msg) {
	var out []tea.Msg
	for cmd != nil {
		msg := cmd()
		switch msg.(type) {
		case loadedMsg, BulkDeletedMsg:
			m, cmd = m.Update(msg)
			if _, ok := msg.(BulkDeletedMsg); ok {
				out = append(out, msg)
			}
		default:
			out = append(out, msg)
			cmd = nil
		}
	}
	return m, out
}

func newLoaded(t *testing.T, src *fakeSource, pageSize int) Model {
	t.Helper()
	m := New(src, Options{PageSize: pageSize, Logger: log.New(io.Discard)})
	m, _ = run(m, m.Init())
	require.False(t, m.Loading())
	return m
}

func TestInitLoadsFirstPage(t *testing.T) {
	src := newFakeSource(7)
	m := newLoaded(t, src, 3)

	assert.Len(t, m.Rows(), 3)
	assert.Equal(t, 7, m.Total())
	assert.Equal(t, 3, m.PageCount())
	assert.False(t, m.HasPrev())
	assert.True(t, m.HasNext())
	assert.Equal(t, models.SortDate, src.lastQuery().SortColumn)
}

func TestToggleSortFlipsSameColumnAndResetsNewColumn(t *testing.T) {
	src := newFakeSource(2)
	m := newLoaded(t, src, 10)

	m, _ = run(m, m.ToggleSort(models.SortTitle))
	q := src.lastQuery()
	assert.Equal(t, models.SortTitle, q.SortColumn)
	assert.False(t, q.SortDesc)

	m, _ = run(m, m.ToggleSort(models.SortTitle))
	assert.True(t, src.lastQuery().SortDesc)

	m, _ = run(m, m.ToggleSort(models.SortStatus))
	q = src.lastQuery()
	assert.Equal(t, models.SortStatus, q.SortColumn)
	assert.False(t, q.SortDesc)
	assert.Equal(t, q, m.Query())
}

func TestPagingAlwaysRefetches(t *testing.T) {
	src := newFakeSource(5)
	m := newLoaded(t, src, 2)
	calls := src.listCalls()

	m, _ = run(m, m.NextPage())
	assert.Equal(t, 2, src.lastQuery().Page)
	m, _ = run(m, m.NextPage())
	assert.Equal(t, 3, m.Query().Page)
	assert.False(t, m.HasNext())
	assert.Nil(t, m.NextPage(), "no page past the last one")

	m, _ = run(m, m.PrevPage())
	assert.Equal(t, 2, m.Query().Page)
	assert.Equal(t, calls+3, src.listCalls())
	assert.Equal(t, "Call 03", m.Rows()[0].Title)
}

func TestFiltersReturnToFirstPage(t *testing.T) {
	src := newFakeSource(5)
	m := newLoaded(t, src, 2)
	m, _ = run(m, m.NextPage())

	m, _ = run(m, m.SetStatusFilter(models.StatusCompleted))
	q := src.lastQuery()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, models.StatusCompleted, q.Status)

	m, _ = run(m, m.SetSearch("  acme "))
	assert.Equal(t, "acme", src.lastQuery().Search)

	_, _ = run(m, m.ClearFilters())
	q = src.lastQuery()
	assert.Empty(t, q.Search)
	assert.Empty(t, q.Status)
}

func TestSelectionStates(t *testing.T) {
	src := newFakeSource(3)
	m := newLoaded(t, src, 10)
	rows := m.Rows()

	assert.Equal(t, SelectNone, m.SelectionState())
	m.ToggleRow(rows[0].ID)
	assert.Equal(t, SelectPartial, m.SelectionState())

	m.ToggleSelectAll()
	assert.Equal(t, SelectAll, m.SelectionState())
	assert.Len(t, m.SelectedIDs(), 3)

	m.ToggleSelectAll()
	assert.Equal(t, SelectNone, m.SelectionState())
}

func TestSelectionIsPrunedToLoadedRows(t *testing.T) {
	src := newFakeSource(4)
	m := newLoaded(t, src, 2)
	m.ToggleSelectAll()
	require.Len(t, m.SelectedIDs(), 2)

	m, _ = run(m, m.NextPage())
	assert.Equal(t, SelectNone, m.SelectionState())
}

func TestBulkDeleteNeedsConfirmation(t *testing.T) {
	src := newFakeSource(4)
	m := newLoaded(t, src, 10)

	assert.False(t, m.RequestBulkDelete(), "nothing selected")
	assert.Nil(t, m.ConfirmBulkDelete(context.Background()), "not armed")

	rows := m.Rows()
	m.ToggleRow(rows[1].ID)
	m.ToggleRow(rows[2].ID)
	require.True(t, m.RequestBulkDelete())
	m.CancelBulkDelete()
	assert.False(t, m.Confirming())
	assert.Nil(t, m.ConfirmBulkDelete(context.Background()))
	assert.Empty(t, src.deletes)

	require.True(t, m.RequestBulkDelete())
	m, out := run(m, m.ConfirmBulkDelete(context.Background()))

	require.Len(t, src.deletes, 1)
	assert.ElementsMatch(t, []uuid.UUID{rows[1].ID, rows[2].ID}, src.deletes[0])
	require.Len(t, out, 1)
	assert.Equal(t, BulkDeletedMsg{Requested: 2, Deleted: 2}, out[0])
	assert.Len(t, m.Rows(), 2)
	assert.Equal(t, SelectNone, m.SelectionState())
}

func TestBulkDeleteKeysAndFailure(t *testing.T) {
	src := newFakeSource(2)
	src.deleteEr = errors.New("forbidden")
	m := newLoaded(t, src, 10)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("X")})
	require.True(t, m.Confirming())

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	m, _ = run(m, cmd)
	assert.Len(t, src.deletes, 1)
	assert.ErrorContains(t, m.Err(), "forbidden")
	assert.Equal(t, SelectAll, m.SelectionState(), "selection kept after a failed delete")
}

func TestRowActionsAreEmittedNotHandled(t *testing.T) {
	src := newFakeSource(2)
	m := newLoaded(t, src, 10)

	cases := map[string]RowAction{
		"e": ActionEdit,
		"d": ActionDuplicate,
		"x": ActionDelete,
		"u": ActionFollowUp,
	}
	for k, want := range cases {
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
		require.NotNil(t, cmd, k)
		msg, ok := cmd().(RowActionMsg)
		require.True(t, ok, k)
		assert.Equal(t, want, msg.Action)
		assert.Equal(t, m.Rows()[0].ID, msg.Interaction.ID)
	}
	assert.Empty(t, src.deletes)
}

func TestStaleLoadIsIgnored(t *testing.T) {
	src := newFakeSource(5)
	m := newLoaded(t, src, 2)

	stale := m.NextPage()
	fresh := m.Refresh()
	staleMsg := stale()
	freshMsg := fresh()

	m, _ = m.Update(freshMsg)
	m, _ = m.Update(staleMsg)
	assert.False(t, m.Loading())
	assert.Equal(t, "Call 03", m.Rows()[0].Title)
}

func TestLoadErrorKeepsRows(t *testing.T) {
	src := newFakeSource(3)
	m := newLoaded(t, src, 10)
	src.listErr = errors.New("timeout")

	m, _ = run(m, m.Refresh())
	assert.Len(t, m.Rows(), 3)
	assert.EqualError(t, m.Err(), "timeout")
	assert.Contains(t, m.View(), "timeout")
}

func TestEmptiedLastPageStepsBack(t *testing.T) {
	src := newFakeSource(3)
	m := newLoaded(t, src, 2)
	m, _ = run(m, m.NextPage())
	require.Len(t, m.Rows(), 1)

	m.ToggleSelectAll()
	require.True(t, m.RequestBulkDelete())
	m, _ = run(m, m.ConfirmBulkDelete(context.Background()))

	assert.Equal(t, 1, m.Query().Page)
	assert.Len(t, m.Rows(), 2)
}

func TestEmptyPageWithinTotalDoesNotRefetch(t *testing.T) {
	src := newFakeSource(5)
	m := newLoaded(t, src, 2)
	m, _ = run(m, m.NextPage())
	m, _ = run(m, m.NextPage())
	require.Equal(t, 3, m.Query().Page)
	calls := src.listCalls()

	// The store counts five rows but serves none for the last page.
	m, cmd := m.Update(loadedMsg{seq: m.seq, page: models.Page{Total: 5}})
	assert.Nil(t, cmd)
	assert.Equal(t, 3, m.Query().Page)
	assert.Empty(t, m.Rows())
	assert.Equal(t, calls, src.listCalls())
}

func TestViewShowsSortAndSelection(t *testing.T) {
	src := newFakeSource(3)
	m := newLoaded(t, src, 10)
	m.ToggleRow(m.Rows()[0].ID)

	view := m.View()
	assert.Contains(t, view, "Date ▼")
	assert.Contains(t, view, "[-] 1 selected")
	assert.Contains(t, view, "Page 1 of 1")
}

// ABOUTME: Interaction list screen built on the listview component
// ABOUTME: Opens the detail view by fetching the row fresh from the store
package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/harperreed/touchpoint/models"
)

type detailLoadedMsg struct {
	id          uuid.UUID
	interaction *models.Interaction
	err         error
}

func (m Model) renderListView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("TOUCHPOINT"))
	s.WriteString("\n")
	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")
	s.WriteString(m.list.View())

	return s.String()
}

// loadDetail re-reads the row so the detail view is never staler than the store.
func (m Model) loadDetail(row models.Interaction) tea.Cmd {
	store := m.deps.Store
	return func() tea.Msg {
		ctx, cancel := requestContext()
		defer cancel()
		in, err := store.Get(ctx, row.ID)
		return detailLoadedMsg{id: row.ID, interaction: in, err: err}
	}
}

func (m Model) handleDetailLoaded(msg detailLoadedMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.err != nil:
		m.status = "Could not load interaction: " + msg.err.Error()
		// Fall back to the list row so the user can still read it offline.
		if row, ok := m.list.Current(); ok && row.ID == msg.id {
			m.detail = &row
			m.screen = ScreenDetail
		}
		return m, nil
	case msg.interaction == nil:
		m.status = "That interaction no longer exists"
		return m, m.list.Refresh()
	}
	m.detail = msg.interaction
	m.screen = ScreenDetail
	return m, nil
}

// ABOUTME: Delete confirmation view for TUI
// ABOUTME: Deletes one interaction after confirmation, queueing the delete when offline
package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/touchpoint/models"
)

var (
	confirmBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("9")).
			Padding(1, 2).
			Width(60).
			Align(lipgloss.Center)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	confirmButtonStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("9")).
				Padding(0, 2).
				MarginRight(2)

	cancelButtonStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("8")).
				Padding(0, 2)
)

type deletedMsg struct {
	interaction models.Interaction
	queued      bool
	err         error
}

func (m Model) renderConfirmDeleteView() string {
	if m.deleteTarget == nil {
		return "Nothing to delete"
	}
	in := m.deleteTarget

	title := warningStyle.Render("⚠  DELETE CONFIRMATION  ⚠")
	message := "Are you sure you want to delete this interaction?"
	info := fmt.Sprintf("\n%s\n", in.Title)
	if in.OrganizationName != "" {
		info = fmt.Sprintf("\n%s with %s\n", in.Title, in.OrganizationName)
	}
	warning := "\nThis action cannot be undone!"
	if !m.online {
		warning = "\nYou are offline. The delete will be sent when you reconnect."
	}

	buttons := lipgloss.JoinHorizontal(
		lipgloss.Left,
		confirmButtonStyle.Render("Yes, Delete (y)"),
		cancelButtonStyle.Render("Cancel (n/esc)"),
	)

	content := lipgloss.JoinVertical(
		lipgloss.Center,
		title,
		"",
		message,
		info,
		warning,
		"",
		buttons,
	)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		confirmBoxStyle.Render(content),
	)
}

func (m Model) handleConfirmDeleteKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		if m.deleteTarget == nil {
			m.screen = ScreenList
			return m, nil
		}
		in := *m.deleteTarget
		out := m.out
		return m, func() tea.Msg {
			ctx, cancel := requestContext()
			defer cancel()
			queued, err := out.Delete(ctx, in)
			return deletedMsg{interaction: in, queued: queued, err: err}
		}
	case key.Matches(msg, m.keys.Cancel):
		m.deleteTarget = nil
		m.screen = m.deleteReturn
	}
	return m, nil
}

func (m Model) handleDeleted(msg deletedMsg) (tea.Model, tea.Cmd) {
	m.deleteTarget = nil
	if msg.err != nil {
		m.status = "Error: " + msg.err.Error()
		m.logger.Error("delete failed", "id", msg.interaction.ID, "err", msg.err)
		m.screen = m.deleteReturn
		return m, nil
	}
	if msg.queued {
		m.status = fmt.Sprintf("Queued delete of %q", msg.interaction.Title)
	} else {
		m.status = fmt.Sprintf("Deleted %q", msg.interaction.Title)
	}
	m.detail = nil
	m.screen = ScreenList
	return m, m.list.Refresh()
}

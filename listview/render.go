// ABOUTME: Table rendering for the interaction list
// ABOUTME: Builds bubbles/table rows, sort indicators, filter summary and pager footer
package listview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/touchpoint/models"
)

var (
	filterStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	confirmStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(0, 1)
)

type column struct {
	sort  models.SortColumn
	title string
	width int
}

var columns = []column{
	{title: "", width: 3},
	{sort: models.SortDate, title: "Date", width: 16},
	{sort: models.SortType, title: "Type", width: 11},
	{sort: models.SortTitle, title: "Title", width: 30},
	{sort: models.SortOrganization, title: "Organization", width: 20},
	{sort: models.SortStatus, title: "Status", width: 10},
}

func (m *Model) syncTable() {
	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		title := c.title
		if c.sort != "" && c.sort == m.query.SortColumn {
			if m.query.SortDesc {
				title += " ▼"
			} else {
				title += " ▲"
			}
		}
		cols[i] = table.Column{Title: title, Width: c.width}
	}

	rows := make([]table.Row, 0, len(m.rows))
	for _, r := range m.rows {
		mark := "[ ]"
		if m.selected[r.ID] {
			mark = "[x]"
		}
		date := ""
		if !r.InteractionDate.IsZero() {
			date = r.InteractionDate.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, table.Row{
			mark,
			date,
			models.Label(string(r.Type)),
			r.Title,
			r.OrganizationName,
			models.Label(string(r.Status)),
		})
	}

	cursor := m.table.Cursor()
	m.table.SetColumns(cols)
	m.table.SetRows(rows)
	if len(rows) == 0 {
		return
	}
	if cursor >= len(rows) {
		cursor = len(rows) - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	m.table.SetCursor(cursor)
}

func (m Model) selectAllBox() string {
	switch m.SelectionState() {
	case SelectAll:
		return "[x]"
	case SelectPartial:
		return "[-]"
	default:
		return "[ ]"
	}
}

func (m Model) filterSummary() string {
	var parts []string
	if m.query.Search != "" {
		parts = append(parts, fmt.Sprintf("search %q", m.query.Search))
	}
	if m.query.Type != "" {
		parts = append(parts, "type "+models.Label(string(m.query.Type)))
	}
	if m.query.Status != "" {
		parts = append(parts, "status "+models.Label(string(m.query.Status)))
	}
	if len(parts) == 0 {
		return mutedStyle.Render("No filters")
	}
	return filterStyle.Render("Filtered by " + strings.Join(parts, ", "))
}

func (m Model) footer() string {
	prev, next := "‹ prev", "next ›"
	if !m.HasPrev() {
		prev = mutedStyle.Render(prev)
	}
	if !m.HasNext() {
		next = mutedStyle.Render(next)
	}
	sel := fmt.Sprintf("%s %d selected", m.selectAllBox(), len(m.SelectedIDs()))
	return fmt.Sprintf("%s  Page %d of %d · %d interactions  %s  %s",
		prev, m.query.Page, m.PageCount(), m.total, next, sel)
}

func (m Model) View() string {
	var s strings.Builder

	if m.searching {
		s.WriteString(m.search.View())
	} else {
		s.WriteString(m.filterSummary())
	}
	s.WriteString("\n\n")

	switch {
	case m.loading && len(m.rows) == 0:
		s.WriteString(mutedStyle.Render("Loading interactions…"))
	case len(m.rows) == 0:
		s.WriteString(mutedStyle.Render("No interactions match."))
	default:
		s.WriteString(m.table.View())
	}
	s.WriteString("\n\n")
	s.WriteString(m.footer())

	if m.err != nil {
		s.WriteString("\n" + errorStyle.Render("Error: "+m.err.Error()))
	}
	if m.confirming {
		prompt := fmt.Sprintf("Delete %d selected interactions? (y/n)", len(m.SelectedIDs()))
		s.WriteString("\n\n" + confirmStyle.Render(prompt))
	}
	return s.String()
}

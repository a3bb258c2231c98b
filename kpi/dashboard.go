// ABOUTME: Terminal KPI dashboard: headline cards and per-status bars
// ABOUTME: A small bubbletea model shows a spinner while metrics load
package kpi

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/touchpoint/models"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	cardStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(18)
	valueStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

const barWidth = 20

// LoadedMsg carries a finished load back to the model.
type LoadedMsg struct {
	State State
}

// Fetch loads the metrics off the UI loop.
func Fetch(source Source, filter models.KPIFilter) tea.Cmd {
	return func() tea.Msg {
		return LoadedMsg{State: Load(context.Background(), source, filter)}
	}
}

type Model struct {
	source  Source
	filter  models.KPIFilter
	state   State
	spinner spinner.Model
}

func NewModel(source Source, filter models.KPIFilter) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		source:  source,
		filter:  filter,
		state:   State{Loading: true},
		spinner: sp,
	}
}

func (m Model) State() State { return m.state }

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, Fetch(m.source, m.filter))
}

// Reload keeps the previous metrics on screen until the new ones arrive.
func (m *Model) Reload() tea.Cmd {
	m.state.Loading = true
	m.state.Err = nil
	return tea.Batch(m.spinner.Tick, Fetch(m.source, m.filter))
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.state = msg.State
		return m, nil
	case spinner.TickMsg:
		if !m.state.Loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	var out strings.Builder
	out.WriteString(headerStyle.Render("INTERACTION METRICS"))
	if m.state.Loading {
		out.WriteString("  " + m.spinner.View() + labelStyle.Render(" loading"))
	}
	out.WriteString("\n\n")

	if m.state.Err != nil {
		out.WriteString(errStyle.Render(m.state.Err.Error()))
		out.WriteString("\n")
	}
	if m.state.Metrics != nil {
		out.WriteString(Render(*m.state.Metrics))
	}
	return out.String()
}

func card(value, label string) string {
	return cardStyle.Render(valueStyle.Render(value) + "\n" + labelStyle.Render(label))
}

// Render draws the cards and status breakdown for a set of metrics.
func Render(m Metrics) string {
	var out strings.Builder

	row1 := lipgloss.JoinHorizontal(lipgloss.Top,
		card(fmt.Sprintf("%d", m.Total), "interactions"),
		card(fmt.Sprintf("%d", m.ThisWeek), "this week"),
		card(m.CompletionRate.Percent(), "completed"),
	)
	row2 := lipgloss.JoinHorizontal(lipgloss.Top,
		card(fmt.Sprintf("%d", m.FollowUpsDue), "follow-ups due"),
		card(m.AvgRating.Format("%.1f / 5"), "avg rating"),
		card(m.AvgDuration.Format("%.0f min"), "avg duration"),
	)
	out.WriteString(row1 + "\n" + row2 + "\n\n")

	out.WriteString(headerStyle.Render("BY STATUS"))
	out.WriteString("\n")
	renderStatusBars(&out, m.Raw.ByStatus)
	out.WriteString(fmt.Sprintf("\n  %s of interactions asked for a follow-up\n", m.FollowUpRate.Percent()))
	return out.String()
}

func renderStatusBars(out *strings.Builder, byStatus map[models.Status]int) {
	maxCount := 0
	for _, n := range byStatus {
		if n > maxCount {
			maxCount = n
		}
	}
	if maxCount == 0 {
		maxCount = 1
	}

	for _, st := range models.Statuses {
		n := byStatus[st]
		length := (n * barWidth) / maxCount
		bar := strings.Repeat("█", length) + strings.Repeat("░", barWidth-length)
		out.WriteString(fmt.Sprintf("  %-10s %s %3d\n", models.Label(string(st)), barStyle.Render(bar), n))
	}
}

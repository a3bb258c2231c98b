// ABOUTME: Read-only view of one interaction
// ABOUTME: Offers edit, duplicate, follow-up, delete and copy from the detail screen
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/touchpoint/form"
	"github.com/harperreed/touchpoint/models"
)

var (
	fieldLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Width(20)

	fieldValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
)

func (m Model) renderDetailView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("INTERACTION"))
	s.WriteString("\n\n")

	if m.detail == nil {
		s.WriteString("Nothing selected")
		return s.String()
	}
	in := m.detail

	field := func(label, value string) {
		if value == "" {
			return
		}
		s.WriteString(fieldLabelStyle.Render(label))
		s.WriteString(fieldValueStyle.Render(value))
		s.WriteString("\n")
	}

	field("Title:", in.Title)
	field("Type:", models.Label(string(in.Type)))
	field("Status:", models.Label(string(in.Status)))
	if !in.InteractionDate.IsZero() {
		field("When:", in.InteractionDate.Local().Format("Mon 2006-01-02 15:04"))
	}
	if in.DurationMinutes > 0 {
		field("Duration:", fmt.Sprintf("%d min", in.DurationMinutes))
	}
	field("Contact method:", models.Label(string(in.ContactMethod)))
	field("Organization:", in.OrganizationName)
	field("Contact:", in.ContactName)
	field("Opportunity:", in.OpportunityName)
	field("Location:", in.Location)
	field("Participants:", strings.Join(in.Participants, ", "))
	field("Tags:", strings.Join(in.Tags, ", "))
	field("Outcome:", models.Label(string(in.Outcome)))
	if in.Rating > 0 {
		field("Rating:", strings.Repeat("★", in.Rating)+strings.Repeat("☆", models.MaxRating-in.Rating))
	}
	if in.FollowUp.Required {
		due := "no date"
		if in.FollowUp.Date != nil {
			due = in.FollowUp.Date.Local().Format("2006-01-02")
		}
		field("Follow-up:", due)
		field("Next action:", in.FollowUp.NextAction)
		field("Follow-up notes:", in.FollowUp.Notes)
	}
	if in.Notes != "" {
		s.WriteString("\n")
		s.WriteString(fieldLabelStyle.Render("Notes:"))
		s.WriteString("\n")
		s.WriteString(fieldValueStyle.Render(in.Notes))
		s.WriteString("\n")
	}

	return s.String()
}

func (m Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.detail == nil {
		m.screen = ScreenList
		return m, nil
	}
	in := *m.detail

	switch {
	case key.Matches(msg, m.keys.Back):
		m.screen = ScreenList
		return m, nil
	case key.Matches(msg, m.keys.Edit):
		return m.openWizard(form.NewFromInteraction(m.formDeps(), in), "Edit interaction")
	case key.Matches(msg, m.keys.Duplicate):
		return m.openWizard(form.NewDuplicate(m.formDeps(), in), "Duplicate interaction")
	case key.Matches(msg, m.keys.FollowUp):
		return m.openWizard(form.NewFollowUp(m.formDeps(), in), "Schedule follow-up")
	case key.Matches(msg, m.keys.Delete):
		m.deleteTarget = &in
		m.deleteReturn = ScreenDetail
		m.screen = ScreenConfirmDelete
		return m, nil
	case key.Matches(msg, m.keys.Copy):
		m.copySummary(in)
		return m, nil
	}
	return m, nil
}

// ABOUTME: TUI view for the offline outbox and its sync controls
// ABOUTME: Lists queued mutations with their state and lets the user sync, retry or discard them
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/touchpoint/queue"
)

var (
	syncTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	syncHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Underline(true)

	syncStateStyle = lipgloss.NewStyle().
			Bold(true).
			Width(12)

	syncIdleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	syncSyncingStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("11")).
				Bold(true)

	syncErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	syncSelectedStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("235")).
				Foreground(lipgloss.Color("255")).
				Bold(true)

	syncMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true)
)

// maxSyncMessages bounds the activity log.
const maxSyncMessages = 50

type syncDoneMsg struct {
	report queue.Report
	err    error
}

// syncView is the state of the outbox screen. The mutations themselves are
// always read from the queue.
type syncView struct {
	cursor   int
	messages []string
	spinner  spinner.Model
	bar      progress.Model
	progress queue.Progress
	syncing  bool
}

func newSyncView() syncView {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = syncSyncingStyle
	return syncView{
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (v *syncView) addMessage(now time.Time, msg string) {
	v.messages = append(v.messages, fmt.Sprintf("[%s] %s", now.Format("15:04:05"), msg))
	if len(v.messages) > maxSyncMessages {
		v.messages = v.messages[len(v.messages)-maxSyncMessages:]
	}
}

// observe records queue activity in the log.
func (v *syncView) observe(e queue.Event, now time.Time) {
	switch e.Kind {
	case queue.EventEnqueued:
		v.addMessage(now, "Queued: "+describeMutation(e.Mutation))
	case queue.EventProgress:
		v.progress = e.Progress
		v.syncing = e.Progress.Running
	case queue.EventChanged:
		if e.Mutation.State == queue.StateFailed {
			v.addMessage(now, fmt.Sprintf("✗ %s: %s", describeMutation(e.Mutation), e.Mutation.ErrorKind.Message()))
		}
	case queue.EventSyncDone:
		v.syncing = false
		if e.Report.Attempted() > 0 {
			v.addMessage(now, formatReport(e.Report))
		}
	case queue.EventConnectivity:
		if e.Online {
			v.addMessage(now, "Connection restored")
		} else {
			v.addMessage(now, "Connection lost")
		}
	}
}

func (v *syncView) finish(msg syncDoneMsg) {
	v.syncing = false
	if msg.err != nil {
		v.addMessage(time.Now(), "✗ Sync failed: "+msg.err.Error())
	}
}

func (v syncView) update(msg tea.Msg) (syncView, tea.Cmd) {
	if _, ok := msg.(spinner.TickMsg); ok && v.syncing {
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd
	}
	return v, nil
}

func (m Model) renderSyncView() string {
	var s strings.Builder

	s.WriteString(syncTitleStyle.Render("OUTBOX"))
	s.WriteString("\n")
	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")

	if m.deps.Queue == nil {
		s.WriteString(syncMessageStyle.Render("Changes are written directly to the local database; nothing to sync."))
		return s.String()
	}

	if m.sync.syncing {
		s.WriteString(m.sync.spinner.View())
		s.WriteString(fmt.Sprintf(" Syncing %d of %d\n", m.sync.progress.Done, m.sync.progress.Total))
		pct := 0.0
		if m.sync.progress.Total > 0 {
			pct = float64(m.sync.progress.Done) / float64(m.sync.progress.Total)
		}
		s.WriteString(m.sync.bar.ViewAs(pct))
		s.WriteString("\n\n")
	}

	items := m.deps.Queue.List()
	s.WriteString(syncHeaderStyle.Render("Pending changes"))
	s.WriteString("\n\n")
	if len(items) == 0 {
		s.WriteString(syncIdleStyle.Render("  ✓ Everything is synced"))
		s.WriteString("\n")
	}

	now := m.deps.Now()
	for i, mu := range items {
		var row strings.Builder
		if i == m.sync.cursor {
			row.WriteString("▶ ")
		} else {
			row.WriteString("  ")
		}

		label := describeMutation(mu)
		if i == m.sync.cursor {
			row.WriteString(syncSelectedStyle.Render(label))
		} else {
			row.WriteString(label)
		}
		row.WriteString("  ")

		switch mu.State {
		case queue.StateSyncing:
			row.WriteString(syncSyncingStyle.Render(syncStateStyle.Render("⟳ syncing")))
		case queue.StateFailed:
			row.WriteString(syncErrorStyle.Render(syncStateStyle.Render("✗ failed")))
		default:
			row.WriteString(syncStateStyle.Render("• pending"))
		}

		if mu.Attempts > 0 {
			row.WriteString(syncMessageStyle.Render(fmt.Sprintf(" %d attempts", mu.Attempts)))
		}
		if mu.State == queue.StatePending && mu.NextAttemptAt.After(now) {
			row.WriteString(syncMessageStyle.Render(" • next try " + formatTimeUntil(mu.NextAttemptAt, now)))
		}
		row.WriteString(syncMessageStyle.Render(" • queued " + formatTimeSince(mu.CreatedAt, now)))
		if msg := mu.ErrorKind.Message(); msg != "" {
			row.WriteString("\n    ")
			row.WriteString(syncErrorStyle.Render(msg))
		}

		s.WriteString(row.String())
		s.WriteString("\n")
	}
	s.WriteString("\n")

	if len(m.sync.messages) > 0 {
		s.WriteString(syncHeaderStyle.Render("Recent Activity"))
		s.WriteString("\n\n")
		start := 0
		if len(m.sync.messages) > 5 {
			start = len(m.sync.messages) - 5
		}
		for _, line := range m.sync.messages[start:] {
			s.WriteString(syncMessageStyle.Render("  " + line))
			s.WriteString("\n")
		}
	}

	return s.String()
}

func (m Model) handleSyncKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Back) {
		m.screen = ScreenList
		return m, nil
	}
	q := m.deps.Queue
	if q == nil {
		return m, nil
	}
	items := q.List()
	if m.sync.cursor >= len(items) {
		m.sync.cursor = max(len(items)-1, 0)
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.sync.cursor > 0 {
			m.sync.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.sync.cursor < len(items)-1 {
			m.sync.cursor++
		}
	case key.Matches(msg, m.keys.SyncAll):
		if m.sync.syncing || len(items) == 0 {
			return m, nil
		}
		if !m.online {
			m.status = "Offline: sync will start when the connection returns"
			return m, nil
		}
		m.sync.syncing = true
		m.sync.addMessage(m.deps.Now(), fmt.Sprintf("Syncing %d changes...", len(items)))
		return m, tea.Batch(m.sync.spinner.Tick, func() tea.Msg {
			ctx, cancel := requestContext()
			defer cancel()
			report, err := q.SyncAll(ctx)
			return syncDoneMsg{report: report, err: err}
		})
	case key.Matches(msg, m.keys.Retry):
		if len(items) == 0 {
			return m, nil
		}
		target := items[m.sync.cursor]
		if target.State != queue.StateFailed {
			m.status = "Only failed changes need a retry"
			return m, nil
		}
		if err := q.Retry(context.Background(), target.ID); err != nil {
			m.status = "Retry failed: " + err.Error()
			return m, nil
		}
		m.sync.addMessage(m.deps.Now(), "Retrying: "+describeMutation(target))
	case key.Matches(msg, m.keys.Remove):
		if len(items) == 0 {
			return m, nil
		}
		target := items[m.sync.cursor]
		if err := q.Remove(context.Background(), target.ID); err != nil {
			m.status = "Discard failed: " + err.Error()
			return m, nil
		}
		m.sync.addMessage(m.deps.Now(), "Discarded: "+describeMutation(target))
		if m.sync.cursor > 0 && m.sync.cursor >= len(items)-1 {
			m.sync.cursor--
		}
	}
	return m, nil
}

func describeMutation(mu queue.Mutation) string {
	if mu.Summary != "" {
		return mu.Summary
	}
	return mu.Method + " " + mu.Target
}

func formatReport(r queue.Report) string {
	parts := []string{fmt.Sprintf("%d synced", r.Synced)}
	if r.Retrying > 0 {
		parts = append(parts, fmt.Sprintf("%d will retry", r.Retrying))
	}
	if r.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", r.Failed))
	}
	return "Sync finished: " + strings.Join(parts, ", ")
}

// formatTimeSince formats a time duration in a human-readable way.
func formatTimeSince(t, now time.Time) string {
	duration := now.Sub(t)

	if duration < time.Minute {
		return "just now"
	} else if duration < time.Hour {
		minutes := int(duration.Minutes())
		if minutes == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", minutes)
	} else if duration < 24*time.Hour {
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	}
	days := int(duration.Hours() / 24)
	if days == 1 {
		return "1 day ago"
	}
	return fmt.Sprintf("%d days ago", days)
}

func formatTimeUntil(t, now time.Time) string {
	d := t.Sub(now).Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("in %ds", int(d.Seconds()))
	}
	return fmt.Sprintf("in %dm", int(d.Minutes()))
}

// ABOUTME: Terminal User Interface using bubbletea framework
// ABOUTME: Routes between the interaction list, wizard, dashboard and offline queue screens
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/harperreed/touchpoint/capture"
	"github.com/harperreed/touchpoint/config"
	"github.com/harperreed/touchpoint/form"
	"github.com/harperreed/touchpoint/kpi"
	"github.com/harperreed/touchpoint/listview"
	"github.com/harperreed/touchpoint/models"
	"github.com/harperreed/touchpoint/netstatus"
	"github.com/harperreed/touchpoint/queue"
	"github.com/harperreed/touchpoint/remote"
)

// Screen is the active top-level view.
type Screen int

const (
	ScreenList Screen = iota
	ScreenDetail
	ScreenWizard
	ScreenConfirmDelete
	ScreenQueue
	ScreenDashboard
)

// Deps are the collaborators the interface drives. Queue, Monitor and the
// capture helpers are optional.
type Deps struct {
	Store      remote.Store
	Lookups    remote.Searcher
	Creator    remote.Creator
	Queue      *queue.Queue
	Monitor    *netstatus.Monitor
	Drafts     *form.DraftCache
	Locator    capture.Locator
	Recognizer capture.SpeechRecognizer
	Clipboard  capture.Clipboard
	Config     *config.Config
	Logger     *log.Logger
	Now        func() time.Time
}

// queueEventMsg and connectivityMsg bridge observer callbacks into the program.
type queueEventMsg queue.Event

type connectivityMsg struct {
	online bool
}

// Model is the main bubbletea model
type Model struct {
	deps   Deps
	logger *log.Logger
	out    outbox

	screen Screen
	keys   keyMap
	help   help.Model

	list      listview.Model
	detail    *models.Interaction
	wizard    *wizard
	dashboard kpi.Model
	sync      syncView

	deleteTarget *models.Interaction
	deleteReturn Screen

	events chan tea.Msg
	unsub  []func()

	online bool
	status string

	width  int
	height int
}

// NewModel wires the screens to their dependencies.
func NewModel(deps Deps) Model {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Locator == nil {
		deps.Locator = capture.NewStaticLocator(nil)
	}
	if deps.Recognizer == nil {
		deps.Recognizer = capture.Unsupported{}
	}
	if deps.Clipboard == nil {
		deps.Clipboard = capture.SystemClipboard{}
	}
	pageSize := 0
	if deps.Config != nil {
		pageSize = deps.Config.PageSize
	}

	out := outbox{store: deps.Store, queue: deps.Queue}
	m := Model{
		deps:      deps,
		logger:    deps.Logger.WithPrefix("tui"),
		out:       out,
		screen:    ScreenList,
		keys:      defaultKeyMap(),
		help:      help.New(),
		list:      listview.New(out, listview.Options{PageSize: pageSize, Logger: deps.Logger}),
		dashboard: kpi.NewModel(out, models.KPIFilter{}),
		sync:      newSyncView(),
		events:    make(chan tea.Msg, 64),
		online:    out.Online(),
		width:     80,
		height:    24,
	}

	if deps.Queue != nil {
		m.unsub = append(m.unsub, deps.Queue.Subscribe(func(e queue.Event) {
			m.post(queueEventMsg(e))
		}))
	}
	if deps.Monitor != nil {
		m.unsub = append(m.unsub, deps.Monitor.Subscribe(func(online bool) {
			m.post(connectivityMsg{online: online})
		}))
	}
	return m
}

// post never blocks an observer; views re-read state on the next message anyway.
func (m Model) post(msg tea.Msg) {
	select {
	case m.events <- msg:
	default:
	}
}

func (m Model) waitForEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg { return <-events }
}

// Close detaches observers. Call it after the program exits.
func (m Model) Close() {
	for _, u := range m.unsub {
		u()
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.list.Init(), m.waitForEvent())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.list.SetSize(msg.Width, msg.Height-2)
		if m.wizard != nil {
			m.wizard.setWidth(msg.Width)
		}
		return m, nil

	case queueEventMsg:
		cmd := m.handleQueueEvent(queue.Event(msg))
		return m, tea.Batch(cmd, m.waitForEvent())

	case connectivityMsg:
		m.online = msg.online
		if msg.online {
			m.status = "Back online"
		} else {
			m.status = "Offline: changes will be queued"
		}
		if m.deps.Queue == nil {
			// The queue normally reports this itself.
			m.logger.Info("connectivity changed", "online", msg.online)
		}
		return m, m.waitForEvent()

	case listview.RowActionMsg:
		return m.handleRowAction(msg)

	case listview.BulkDeletedMsg:
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		switch {
		case msg.Err != nil:
			m.status = "Bulk delete failed: " + msg.Err.Error()
		case !m.online:
			m.status = fmt.Sprintf("Queued delete of %d interactions", msg.Requested)
		default:
			m.status = fmt.Sprintf("Deleted %d interactions", msg.Deleted)
		}
		return m, cmd

	case deletedMsg:
		return m.handleDeleted(msg)

	case detailLoadedMsg:
		return m.handleDetailLoaded(msg)

	case submittedMsg, candidateCreatedMsg, locationMsg, capture.SpeechMsg:
		if m.wizard == nil {
			return m, nil
		}
		return m.updateWizard(msg)

	case syncDoneMsg:
		m.sync.finish(msg)
		return m, nil

	case kpi.LoadedMsg:
		var cmd tea.Cmd
		m.dashboard, cmd = m.dashboard.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}

	// Timers, lookups and list loads route to whichever component owns them.
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	cmds = append(cmds, cmd)
	m.dashboard, cmd = m.dashboard.Update(msg)
	cmds = append(cmds, cmd)
	m.sync, cmd = m.sync.update(msg)
	cmds = append(cmds, cmd)
	if m.wizard != nil {
		var next tea.Model
		next, cmd = m.updateWizard(msg)
		m = next.(Model)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	// Text entry screens keep every other key for themselves.
	if m.screen == ScreenWizard {
		return m.updateWizard(msg)
	}
	if m.screen == ScreenList && (m.list.Searching() || m.list.Confirming()) {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.QuitList) && m.screen == ScreenList:
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.List):
		m.screen = ScreenList
		return m, m.list.Refresh()
	case key.Matches(msg, m.keys.Dashboard):
		m.screen = ScreenDashboard
		return m, m.dashboard.Reload()
	case key.Matches(msg, m.keys.Queue):
		m.screen = ScreenQueue
		return m, nil
	case key.Matches(msg, m.keys.New) && m.screen != ScreenConfirmDelete:
		return m.openWizard(form.New(m.formDeps()), "New interaction")
	case key.Matches(msg, m.keys.Resume) && m.screen == ScreenList:
		return m.resumeDraft()
	}

	switch m.screen {
	case ScreenList:
		if key.Matches(msg, m.keys.Open) {
			if row, ok := m.list.Current(); ok {
				return m, m.loadDetail(row)
			}
		}
		if key.Matches(msg, m.keys.Copy) {
			if row, ok := m.list.Current(); ok {
				m.copySummary(row)
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	case ScreenDetail:
		return m.handleDetailKeys(msg)
	case ScreenConfirmDelete:
		return m.handleConfirmDeleteKeys(msg)
	case ScreenQueue:
		return m.handleSyncKeys(msg)
	case ScreenDashboard:
		if key.Matches(msg, m.keys.Back) {
			m.screen = ScreenList
		}
		if key.Matches(msg, m.keys.Refresh) {
			return m, m.dashboard.Reload()
		}
	}
	return m, nil
}

func (m Model) handleRowAction(msg listview.RowActionMsg) (tea.Model, tea.Cmd) {
	in := msg.Interaction
	switch msg.Action {
	case listview.ActionEdit:
		return m.openWizard(form.NewFromInteraction(m.formDeps(), in), "Edit interaction")
	case listview.ActionDuplicate:
		return m.openWizard(form.NewDuplicate(m.formDeps(), in), "Duplicate interaction")
	case listview.ActionFollowUp:
		return m.openWizard(form.NewFollowUp(m.formDeps(), in), "Schedule follow-up")
	case listview.ActionDelete:
		m.deleteTarget = &in
		m.deleteReturn = m.screen
		m.screen = ScreenConfirmDelete
	}
	return m, nil
}

func (m Model) formDeps() form.Deps {
	d := form.Deps{
		Store:        m.deps.Store,
		Connectivity: m.out,
		Drafts:       m.deps.Drafts,
		Logger:       m.deps.Logger,
		Now:          m.deps.Now,
	}
	if m.deps.Queue != nil {
		d.Queue = m.deps.Queue
	}
	return d
}

func (m Model) resumeDraft() (tea.Model, tea.Cmd) {
	if m.deps.Drafts == nil {
		return m, nil
	}
	drafts, err := m.deps.Drafts.List()
	if err != nil {
		m.status = "Could not read drafts: " + err.Error()
		return m, nil
	}
	if len(drafts) == 0 {
		m.status = "No saved drafts"
		return m, nil
	}
	title := "Resume draft"
	if drafts[0].Mode == form.ModeEdit {
		title = "Resume edit"
	}
	return m.openWizard(form.Resume(m.formDeps(), drafts[0]), title)
}

func (m *Model) copySummary(in models.Interaction) {
	if _, err := capture.CopySummary(m.deps.Clipboard, in); err != nil {
		m.status = capture.Explain(err)
		return
	}
	m.status = "Copied summary to clipboard"
}

func (m *Model) handleQueueEvent(e queue.Event) tea.Cmd {
	m.sync.observe(e, m.deps.Now())
	switch e.Kind {
	case queue.EventConnectivity:
		m.online = e.Online
	case queue.EventSyncDone:
		if e.Report.Synced > 0 {
			// Replayed changes are now on the server.
			return m.list.Refresh()
		}
	}
	return nil
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Background(lipgloss.Color("235")).
			Padding(0, 2)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	onlineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	offlineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Italic(true)
)

func (m Model) View() string {
	var body string
	switch m.screen {
	case ScreenList:
		body = m.renderListView()
	case ScreenDetail:
		body = m.renderDetailView()
	case ScreenWizard:
		body = m.renderWizardView()
	case ScreenConfirmDelete:
		return m.renderConfirmDeleteView()
	case ScreenQueue:
		body = m.renderSyncView()
	case ScreenDashboard:
		body = m.renderDashboardView()
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, m.renderStatusBar(), m.help.View(m.helpKeys()))
}

func (m Model) renderTabs() string {
	tabs := []struct {
		name   string
		screen Screen
	}{
		{"1 Interactions", ScreenList},
		{"2 Dashboard", ScreenDashboard},
		{"3 Outbox", ScreenQueue},
	}
	var rendered []string
	for _, t := range tabs {
		if t.screen == m.screen {
			rendered = append(rendered, tabActiveStyle.Render(t.name))
		} else {
			rendered = append(rendered, tabInactiveStyle.Render(t.name))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m Model) renderStatusBar() string {
	conn := onlineStyle.Render("● online")
	if !m.online {
		conn = offlineStyle.Render("○ offline")
	}
	parts := conn
	if m.deps.Queue != nil {
		counts := m.deps.Queue.Counts()
		if n := counts[queue.StatePending] + counts[queue.StateSyncing]; n > 0 {
			parts += fmt.Sprintf("  %d queued", n)
		}
		if n := counts[queue.StateFailed]; n > 0 {
			parts += offlineStyle.Render(fmt.Sprintf("  %d failed", n))
		}
	}
	if m.status != "" {
		parts += "  " + statusStyle.Render(m.status)
	}
	return helpStyle.Render(parts)
}

func (m Model) renderDashboardView() string {
	return m.renderTabs() + "\n\n" + m.dashboard.View()
}

// requestContext bounds a single store call made from a command.
func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

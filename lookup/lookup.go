// ABOUTME: Debounced search-as-you-type selector for organizations, contacts and opportunities
// ABOUTME: Tags every search with a sequence number and drops responses that are no longer current
package lookup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/harperreed/touchpoint/models"
	"github.com/harperreed/touchpoint/remote"
)

const (
	DefaultDebounce = 300 * time.Millisecond
	DefaultMinChars = 2
	DefaultLimit    = 8
)

var lastID int64

func nextID() int {
	return int(atomic.AddInt64(&lastID, 1))
}

// SelectedMsg is emitted when a candidate is chosen.
type SelectedMsg struct {
	Kind      models.CandidateKind
	Candidate models.Candidate
}

// CreateRequestedMsg is emitted when the synthetic "create new" row is chosen.
type CreateRequestedMsg struct {
	Kind  models.CandidateKind
	Query string
}

// ClearedMsg is emitted when the bound value is removed.
type ClearedMsg struct {
	Kind models.CandidateKind
}

// ClosedMsg is emitted when the dropdown is dismissed without a choice.
type ClosedMsg struct {
	Kind models.CandidateKind
}

type debounceMsg struct {
	id  int
	seq int
}

type resultsMsg struct {
	id         int
	seq        int
	candidates []models.Candidate
	err        error
}

type KeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Close  key.Binding
	Clear  key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "ctrl+p"),
			key.WithHelp("↑", "previous"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "ctrl+n"),
			key.WithHelp("↓", "next"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		Close: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("ctrl+x", "clear"),
		),
	}
}

type Options struct {
	Debounce    time.Duration
	MinChars    int
	Limit       int
	AllowCreate bool
	Placeholder string
	Logger      *log.Logger
}

type Model struct {
	Kind models.CandidateKind
	Keys KeyMap

	id       int
	searcher remote.Searcher
	opts     Options
	logger   *log.Logger
	input    textinput.Model

	// seq counts edits; issued is the seq of the newest search sent.
	seq    int
	issued int
	cancel context.CancelFunc

	results  []models.Candidate
	cursor   int
	open     bool
	loading  bool
	hint     string
	lastErr  error
	selected *models.Candidate
}

func New(kind models.CandidateKind, searcher remote.Searcher, opts Options) Model {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.MinChars <= 0 {
		opts.MinChars = DefaultMinChars
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	ti := textinput.New()
	ti.Prompt = ""
	ti.CharLimit = 120
	ti.Placeholder = opts.Placeholder
	if ti.Placeholder == "" {
		ti.Placeholder = fmt.Sprintf("Search %ss…", kind)
	}

	return Model{
		Kind:     kind,
		Keys:     DefaultKeyMap(),
		id:       nextID(),
		searcher: searcher,
		opts:     opts,
		logger:   logger.WithPrefix("lookup"),
		input:    ti,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}

func (m *Model) Blur() {
	m.input.Blur()
	m.open = false
}

func (m Model) Focused() bool {
	return m.input.Focused()
}

func (m Model) Query() string {
	return m.input.Value()
}

// Selected is the bound candidate, or nil.
func (m Model) Selected() *models.Candidate {
	if m.selected == nil {
		return nil
	}
	c := *m.selected
	return &c
}

// SelectedID is the bound entity id, empty when nothing is selected.
func (m Model) SelectedID() string {
	if m.selected == nil {
		return ""
	}
	return m.selected.ID
}

func (m Model) IsOpen() bool { return m.open }

func (m Model) Loading() bool { return m.loading }

func (m Model) Hint() string { return m.hint }

func (m Model) Cursor() int { return m.cursor }

func (m Model) Results() []models.Candidate {
	return append([]models.Candidate(nil), m.results...)
}

// LastError is the most recent search failure; results from before it stay visible.
func (m Model) LastError() error { return m.lastErr }

func (m *Model) SetAllowCreate(allow bool) { m.opts.AllowCreate = allow }

func (m *Model) SetWidth(w int) { m.input.Width = w }

// SetSelected binds a candidate without emitting a message, for prefilled forms.
func (m *Model) SetSelected(c models.Candidate) {
	m.selected = &c
	m.input.SetValue(c.Name)
	m.open = false
}

// rowCount includes the synthetic create row when it is offered.
func (m Model) rowCount() int {
	n := len(m.results)
	if m.showCreateRow() {
		n++
	}
	return n
}

func (m Model) showCreateRow() bool {
	return m.opts.AllowCreate && len([]rune(strings.TrimSpace(m.input.Value()))) >= m.opts.MinChars
}

// Select binds the candidate, closes the list and emits SelectedMsg.
func (m *Model) Select(c models.Candidate) tea.Cmd {
	m.selected = &c
	m.input.SetValue(c.Name)
	m.open = false
	m.cursor = 0
	kind := m.Kind
	return func() tea.Msg { return SelectedMsg{Kind: kind, Candidate: c} }
}

// Clear removes the bound value and the text, then refocuses the input.
func (m *Model) Clear() tea.Cmd {
	m.selected = nil
	m.input.SetValue("")
	m.results = nil
	m.open = false
	m.cursor = 0
	m.hint = ""
	m.seq++
	m.stopSearch()
	kind := m.Kind
	return tea.Batch(
		m.input.Focus(),
		func() tea.Msg { return ClearedMsg{Kind: kind} },
	)
}

func (m *Model) stopSearch() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.issued = 0
	m.loading = false
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case debounceMsg:
		if msg.id != m.id || msg.seq != m.seq {
			return m, nil
		}
		return m, m.search()

	case resultsMsg:
		if msg.id != m.id || msg.seq != m.issued {
			// Superseded by a newer search.
			return m, nil
		}
		m.loading = false
		m.cancel = nil
		if msg.err != nil {
			if !errors.Is(msg.err, context.Canceled) {
				m.lastErr = msg.err
				m.logger.Warn("lookup search failed", "kind", m.Kind, "err", msg.err)
			}
			return m, nil
		}
		m.lastErr = nil
		m.results = msg.candidates
		m.cursor = 0
		m.open = true
		if len(m.results) == 0 {
			m.hint = "No matches"
		} else {
			m.hint = ""
		}
		return m, nil

	case tea.KeyMsg:
		if !m.input.Focused() {
			return m, nil
		}
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Down):
		if m.open && m.rowCount() > 0 {
			m.cursor = (m.cursor + 1) % m.rowCount()
		}
		return m, nil

	case key.Matches(msg, m.Keys.Up):
		if m.open && m.rowCount() > 0 {
			m.cursor = (m.cursor - 1 + m.rowCount()) % m.rowCount()
		}
		return m, nil

	case key.Matches(msg, m.Keys.Select):
		if !m.open || m.rowCount() == 0 {
			return m, nil
		}
		if m.cursor < len(m.results) {
			cmd := m.Select(m.results[m.cursor])
			return m, cmd
		}
		query := strings.TrimSpace(m.input.Value())
		m.open = false
		kind := m.Kind
		return m, func() tea.Msg { return CreateRequestedMsg{Kind: kind, Query: query} }

	case key.Matches(msg, m.Keys.Close):
		if !m.open {
			return m, nil
		}
		m.open = false
		kind := m.Kind
		return m, func() tea.Msg { return ClosedMsg{Kind: kind} }

	case key.Matches(msg, m.Keys.Clear):
		cmd := m.Clear()
		return m, cmd
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() == before {
		return m, cmd
	}
	return m, tea.Batch(cmd, m.queryChanged())
}

// queryChanged restarts the debounce window for the current text.
func (m *Model) queryChanged() tea.Cmd {
	m.seq++
	query := strings.TrimSpace(m.input.Value())

	if len([]rune(query)) < m.opts.MinChars {
		m.stopSearch()
		m.open = false
		m.hint = fmt.Sprintf("Type at least %d characters to search", m.opts.MinChars)
		return nil
	}

	m.hint = ""
	id, seq := m.id, m.seq
	return tea.Tick(m.opts.Debounce, func(time.Time) tea.Msg {
		return debounceMsg{id: id, seq: seq}
	})
}

// search cancels any in-flight request and issues a new one for the current text.
func (m *Model) search() tea.Cmd {
	if m.cancel != nil {
		m.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.issued = m.seq
	m.loading = true

	id, seq := m.id, m.seq
	kind := m.Kind
	query := strings.TrimSpace(m.input.Value())
	limit := m.opts.Limit
	searcher := m.searcher

	return func() tea.Msg {
		candidates, err := searcher.Search(ctx, kind, query, limit)
		return resultsMsg{id: id, seq: seq, candidates: candidates, err: err}
	}
}

var (
	rowStyle      = lipgloss.NewStyle().PaddingLeft(2)
	activeStyle   = lipgloss.NewStyle().PaddingLeft(1).Foreground(lipgloss.Color("205")).Bold(true)
	detailStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	boundStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dropdownStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240"))
)

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.input.View())
	if m.selected != nil {
		b.WriteString(" " + boundStyle.Render("✓"))
	}
	if m.loading {
		b.WriteString(" " + hintStyle.Render("searching…"))
	}

	if m.hint != "" && m.input.Focused() {
		b.WriteString("\n" + hintStyle.Render(m.hint))
	}

	if m.open && m.rowCount() > 0 {
		var rows []string
		for i, c := range m.results {
			line := c.Name + describe(c)
			if i == m.cursor {
				rows = append(rows, activeStyle.Render("› "+line))
			} else {
				rows = append(rows, rowStyle.Render(line))
			}
		}
		if m.showCreateRow() {
			line := fmt.Sprintf("+ Create %s %q", m.Kind, strings.TrimSpace(m.input.Value()))
			if m.cursor == len(m.results) {
				rows = append(rows, activeStyle.Render("› "+line))
			} else {
				rows = append(rows, rowStyle.Render(line))
			}
		}
		b.WriteString("\n" + dropdownStyle.Render(strings.Join(rows, "\n")))
	}

	if m.lastErr != nil && m.input.Focused() {
		b.WriteString("\n" + errorStyle.Render("Search unavailable, showing last results"))
	}
	return b.String()
}

// describe renders the denormalized fields shown next to a candidate.
func describe(c models.Candidate) string {
	var parts []string
	for _, k := range []string{"organization", "domain", "title", "stage", "city"} {
		if v := c.Detail[k]; v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return detailStyle.Render("  " + strings.Join(parts, " · "))
}

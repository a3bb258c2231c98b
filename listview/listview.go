// ABOUTME: Paged, sortable interaction table with multi-select and bulk delete
// ABOUTME: Emits row actions to its parent instead of navigating on its own
package listview

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/harperreed/touchpoint/models"
)

// Source is the slice of the store the list needs.
type Source interface {
	List(ctx context.Context, q models.ListQuery) (models.Page, error)
	DeleteMany(ctx context.Context, ids []uuid.UUID) (int, error)
}

type RowAction int

const (
	ActionEdit RowAction = iota
	ActionDuplicate
	ActionDelete
	ActionFollowUp
)

func (a RowAction) String() string {
	switch a {
	case ActionEdit:
		return "edit"
	case ActionDuplicate:
		return "duplicate"
	case ActionDelete:
		return "delete"
	case ActionFollowUp:
		return "follow-up"
	default:
		return "unknown"
	}
}

// RowActionMsg asks the parent to act on one row.
type RowActionMsg struct {
	Action      RowAction
	Interaction models.Interaction
}

// BulkDeletedMsg reports the outcome of a confirmed bulk delete.
type BulkDeletedMsg struct {
	Requested int
	Deleted   int
	Err       error
}

type loadedMsg struct {
	seq  int
	page models.Page
	err  error
}

type SelectionState int

const (
	SelectNone SelectionState = iota
	SelectPartial
	SelectAll
)

type KeyMap struct {
	Up          key.Binding
	Down        key.Binding
	NextPage    key.Binding
	PrevPage    key.Binding
	Toggle      key.Binding
	ToggleAll   key.Binding
	Sort        key.Binding
	SortDir     key.Binding
	Search      key.Binding
	TypeFilter  key.Binding
	StatusFilt  key.Binding
	ClearFilter key.Binding
	Refresh     key.Binding
	Edit        key.Binding
	Duplicate   key.Binding
	Delete      key.Binding
	FollowUp    key.Binding
	BulkDelete  key.Binding
	Confirm     key.Binding
	Cancel      key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		NextPage:    key.NewBinding(key.WithKeys("right", "]"), key.WithHelp("→", "next page")),
		PrevPage:    key.NewBinding(key.WithKeys("left", "["), key.WithHelp("←", "prev page")),
		Toggle:      key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "select")),
		ToggleAll:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "select all")),
		Sort:        key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort column")),
		SortDir:     key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "flip sort")),
		Search:      key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		TypeFilter:  key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "type filter")),
		StatusFilt:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "status filter")),
		ClearFilter: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear filters")),
		Refresh:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Edit:        key.NewBinding(key.WithKeys("enter", "e"), key.WithHelp("enter", "edit")),
		Duplicate:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "duplicate")),
		Delete:      key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "delete")),
		FollowUp:    key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "follow-up")),
		BulkDelete:  key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "delete selected")),
		Confirm:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "confirm")),
		Cancel:      key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n/esc", "cancel")),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Edit, k.Toggle, k.ToggleAll, k.Search, k.Sort, k.NextPage, k.BulkDelete}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.NextPage, k.PrevPage, k.Refresh},
		{k.Toggle, k.ToggleAll, k.BulkDelete, k.Confirm, k.Cancel},
		{k.Search, k.TypeFilter, k.StatusFilt, k.ClearFilter, k.Sort, k.SortDir},
		{k.Edit, k.Duplicate, k.Delete, k.FollowUp},
	}
}

type Options struct {
	PageSize int
	Logger   *log.Logger
}

type Model struct {
	Keys KeyMap

	source Source
	logger *log.Logger

	query    models.ListQuery
	rows     []models.Interaction
	total    int
	selected map[uuid.UUID]bool

	confirming bool
	loading    bool
	deleting   bool
	err        error

	// seq tags loads so a slow response for an old query is ignored.
	seq int

	searching bool
	search    textinput.Model
	table     table.Model
	width     int
	height    int
}

func New(source Source, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "title, notes or organization"
	search.CharLimit = 100

	t := table.New(
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	t.SetStyles(styles)

	m := Model{
		Keys:     DefaultKeyMap(),
		source:   source,
		logger:   logger.WithPrefix("list"),
		query:    models.ListQuery{PageSize: opts.PageSize, SortDesc: true}.Normalized(),
		selected: make(map[uuid.UUID]bool),
		loading:  true,
		seq:      1,
		search:   search,
		table:    t,
	}
	m.syncTable()
	return m
}

// Init loads the first page.
func (m Model) Init() tea.Cmd {
	return m.load()
}

func (m Model) Query() models.ListQuery { return m.query }

func (m Model) Rows() []models.Interaction {
	return append([]models.Interaction(nil), m.rows...)
}

func (m Model) Total() int { return m.total }

func (m Model) Loading() bool { return m.loading }

func (m Model) Err() error { return m.err }

func (m Model) Confirming() bool { return m.confirming }

func (m Model) Searching() bool { return m.searching }

// Current is the highlighted row, if any.
func (m Model) Current() (models.Interaction, bool) {
	c := m.table.Cursor()
	if c < 0 || c >= len(m.rows) {
		return models.Interaction{}, false
	}
	return m.rows[c], true
}

func (m *Model) SetSize(width, height int) {
	m.width, m.height = width, height
	if height > 8 {
		m.table.SetHeight(height - 8)
	}
	m.table.SetWidth(width)
	m.syncTable()
}

// Refresh re-fetches the current page.
func (m *Model) Refresh() tea.Cmd {
	m.seq++
	m.loading = true
	return m.load()
}

func (m Model) load() tea.Cmd {
	source, q, seq := m.source, m.query, m.seq
	return func() tea.Msg {
		page, err := source.List(context.Background(), q)
		return loadedMsg{seq: seq, page: page, err: err}
	}
}

// ToggleSort flips the direction when col is already active, otherwise
// switches to col ascending. Sorting always returns to the first page.
func (m *Model) ToggleSort(col models.SortColumn) tea.Cmd {
	if m.query.SortColumn == col {
		m.query.SortDesc = !m.query.SortDesc
	} else {
		m.query.SortColumn = col
		m.query.SortDesc = false
	}
	m.query.Page = 1
	return m.Refresh()
}

func (m Model) PageCount() int {
	if m.total == 0 {
		return 1
	}
	return (m.total + m.query.PageSize - 1) / m.query.PageSize
}

func (m Model) HasNext() bool {
	return m.query.Page*m.query.PageSize < m.total
}

func (m Model) HasPrev() bool {
	return m.query.Page > 1
}

func (m *Model) NextPage() tea.Cmd {
	if !m.HasNext() {
		return nil
	}
	m.query.Page++
	return m.Refresh()
}

func (m *Model) PrevPage() tea.Cmd {
	if !m.HasPrev() {
		return nil
	}
	m.query.Page--
	return m.Refresh()
}

func (m *Model) SetSearch(text string) tea.Cmd {
	m.query.Search = strings.TrimSpace(text)
	m.query.Page = 1
	return m.Refresh()
}

func (m *Model) SetTypeFilter(t models.InteractionType) tea.Cmd {
	m.query.Type = t
	m.query.Page = 1
	return m.Refresh()
}

func (m *Model) SetStatusFilter(s models.Status) tea.Cmd {
	m.query.Status = s
	m.query.Page = 1
	return m.Refresh()
}

func (m *Model) ClearFilters() tea.Cmd {
	m.query.Search = ""
	m.query.Type = ""
	m.query.Status = ""
	m.query.OrganizationID = ""
	m.query.Page = 1
	m.search.SetValue("")
	return m.Refresh()
}

func (m Model) IsSelected(id uuid.UUID) bool { return m.selected[id] }

func (m Model) SelectedIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(m.selected))
	for _, r := range m.rows {
		if m.selected[r.ID] {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

func (m *Model) ToggleRow(id uuid.UUID) {
	if m.selected[id] {
		delete(m.selected, id)
	} else {
		m.selected[id] = true
	}
	m.syncTable()
}

// ToggleSelectAll selects every loaded row, or clears them when all are selected.
func (m *Model) ToggleSelectAll() {
	if m.SelectionState() == SelectAll {
		m.selected = make(map[uuid.UUID]bool)
	} else {
		for _, r := range m.rows {
			m.selected[r.ID] = true
		}
	}
	m.syncTable()
}

func (m Model) SelectionState() SelectionState {
	n := len(m.SelectedIDs())
	switch {
	case n == 0:
		return SelectNone
	case n == len(m.rows):
		return SelectAll
	default:
		return SelectPartial
	}
}

// RequestBulkDelete arms the confirmation prompt when something is selected.
func (m *Model) RequestBulkDelete() bool {
	if len(m.SelectedIDs()) == 0 || m.deleting {
		return false
	}
	m.confirming = true
	return true
}

func (m *Model) CancelBulkDelete() {
	m.confirming = false
}

// ConfirmBulkDelete dispatches a single DeleteMany for the selection. It does
// nothing unless a request is pending confirmation.
func (m *Model) ConfirmBulkDelete(ctx context.Context) tea.Cmd {
	if !m.confirming {
		return nil
	}
	m.confirming = false
	ids := m.SelectedIDs()
	if len(ids) == 0 {
		return nil
	}
	m.deleting = true
	source := m.source
	return func() tea.Msg {
		n, err := source.DeleteMany(ctx, ids)
		return BulkDeletedMsg{Requested: len(ids), Deleted: n, Err: err}
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			m.logger.Error("failed to load interactions", "err", msg.err)
			return m, nil
		}
		m.err = nil
		// A delete can empty the last page; step back to one that exists.
		if len(msg.page.Items) == 0 && msg.page.Total > 0 && m.query.Page > 1 {
			m.total = msg.page.Total
			if last := m.PageCount(); m.query.Page > last {
				m.query.Page = last
				return m, m.Refresh()
			}
		}
		m.rows = msg.page.Items
		m.total = msg.page.Total
		m.pruneSelection()
		m.syncTable()
		return m, nil

	case BulkDeletedMsg:
		m.deleting = false
		if msg.Err != nil {
			m.err = fmt.Errorf("bulk delete failed: %w", msg.Err)
			m.logger.Error("bulk delete failed", "count", msg.Requested, "err", msg.Err)
			return m, nil
		}
		m.logger.Info("bulk delete", "requested", msg.Requested, "deleted", msg.Deleted)
		m.selected = make(map[uuid.UUID]bool)
		return m, m.Refresh()

	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.handleSearchKey(msg)
		}
		if m.confirming {
			return m.handleConfirmKey(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searching = false
		m.search.Blur()
		return m, m.SetSearch(m.search.Value())
	case "esc":
		m.searching = false
		m.search.Blur()
		m.search.SetValue(m.query.Search)
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Confirm):
		return m, m.ConfirmBulkDelete(context.Background())
	case key.Matches(msg, m.Keys.Cancel):
		m.CancelBulkDelete()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Search):
		m.searching = true
		return m, m.search.Focus()
	case key.Matches(msg, m.Keys.NextPage):
		return m, m.NextPage()
	case key.Matches(msg, m.Keys.PrevPage):
		return m, m.PrevPage()
	case key.Matches(msg, m.Keys.Refresh):
		return m, m.Refresh()
	case key.Matches(msg, m.Keys.Sort):
		return m, m.ToggleSort(nextSortColumn(m.query.SortColumn))
	case key.Matches(msg, m.Keys.SortDir):
		return m, m.ToggleSort(m.query.SortColumn)
	case key.Matches(msg, m.Keys.TypeFilter):
		return m, m.SetTypeFilter(nextType(m.query.Type))
	case key.Matches(msg, m.Keys.StatusFilt):
		return m, m.SetStatusFilter(nextStatus(m.query.Status))
	case key.Matches(msg, m.Keys.ClearFilter):
		return m, m.ClearFilters()
	case key.Matches(msg, m.Keys.ToggleAll):
		m.ToggleSelectAll()
		return m, nil
	case key.Matches(msg, m.Keys.Toggle):
		if row, ok := m.Current(); ok {
			m.ToggleRow(row.ID)
		}
		return m, nil
	case key.Matches(msg, m.Keys.BulkDelete):
		m.RequestBulkDelete()
		return m, nil
	case key.Matches(msg, m.Keys.Edit):
		return m, m.emit(ActionEdit)
	case key.Matches(msg, m.Keys.Duplicate):
		return m, m.emit(ActionDuplicate)
	case key.Matches(msg, m.Keys.Delete):
		return m, m.emit(ActionDelete)
	case key.Matches(msg, m.Keys.FollowUp):
		return m, m.emit(ActionFollowUp)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) emit(action RowAction) tea.Cmd {
	row, ok := m.Current()
	if !ok {
		return nil
	}
	return func() tea.Msg { return RowActionMsg{Action: action, Interaction: row} }
}

func (m *Model) pruneSelection() {
	loaded := make(map[uuid.UUID]bool, len(m.rows))
	for _, r := range m.rows {
		loaded[r.ID] = true
	}
	for id := range m.selected {
		if !loaded[id] {
			delete(m.selected, id)
		}
	}
}

func nextSortColumn(c models.SortColumn) models.SortColumn {
	for i, v := range models.SortColumns {
		if v == c {
			return models.SortColumns[(i+1)%len(models.SortColumns)]
		}
	}
	return models.SortDate
}

// nextType cycles through the types and then back to "any".
func nextType(t models.InteractionType) models.InteractionType {
	if t == "" {
		return models.InteractionTypes[0]
	}
	for i, v := range models.InteractionTypes {
		if v == t && i+1 < len(models.InteractionTypes) {
			return models.InteractionTypes[i+1]
		}
	}
	return ""
}

func nextStatus(s models.Status) models.Status {
	if s == "" {
		return models.Statuses[0]
	}
	for i, v := range models.Statuses {
		if v == s && i+1 < len(models.Statuses) {
			return models.Statuses[i+1]
		}
	}
	return ""
}

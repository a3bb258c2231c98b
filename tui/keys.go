// ABOUTME: Key bindings for the top-level screens
// ABOUTME: Builds the contextual help shown at the bottom of every screen
package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	Quit      key.Binding
	QuitList  key.Binding
	Help      key.Binding
	List      key.Binding
	Dashboard key.Binding
	Queue     key.Binding
	New       key.Binding
	Resume    key.Binding
	Open      key.Binding
	Copy      key.Binding
	Back      key.Binding
	Refresh   key.Binding

	// Detail screen
	Edit      key.Binding
	Duplicate key.Binding
	FollowUp  key.Binding
	Delete    key.Binding

	// Delete confirmation
	Confirm key.Binding
	Cancel  key.Binding

	// Outbox screen
	Up      key.Binding
	Down    key.Binding
	SyncAll key.Binding
	Retry   key.Binding
	Remove  key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit:      key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		QuitList:  key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
		List:      key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "interactions")),
		Dashboard: key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "dashboard")),
		Queue:     key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "outbox")),
		New:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new")),
		Resume:    key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "resume draft")),
		Open:      key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open")),
		Copy:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy summary")),
		Back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),

		Edit:      key.NewBinding(key.WithKeys("e", "enter"), key.WithHelp("e", "edit")),
		Duplicate: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "duplicate")),
		FollowUp:  key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "follow-up")),
		Delete:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "delete")),

		Confirm: key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "delete")),
		Cancel:  key.NewBinding(key.WithKeys("n", "N", "esc"), key.WithHelp("n/esc", "cancel")),

		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		SyncAll: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sync all")),
		Retry:   key.NewBinding(key.WithKeys("enter", "t"), key.WithHelp("enter", "retry")),
		Remove:  key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "discard")),
	}
}

// helpSet adapts a fixed list of bindings to help.KeyMap.
type helpSet struct {
	short []key.Binding
	full  [][]key.Binding
}

func (h helpSet) ShortHelp() []key.Binding  { return h.short }
func (h helpSet) FullHelp() [][]key.Binding { return h.full }

func (m Model) helpKeys() help.KeyMap {
	k := m.keys
	nav := []key.Binding{k.List, k.Dashboard, k.Queue, k.New, k.Help, k.Quit}

	switch m.screen {
	case ScreenList:
		lk := m.list.Keys
		return helpSet{
			short: []key.Binding{k.Open, lk.Edit, k.New, lk.Search, lk.ToggleAll, lk.BulkDelete, k.Help},
			full:  append(lk.FullHelp(), []key.Binding{k.Open, k.Copy, k.Resume, k.QuitList}, nav),
		}
	case ScreenDetail:
		row := []key.Binding{k.Edit, k.Duplicate, k.FollowUp, k.Delete, k.Copy, k.Back}
		return helpSet{short: row, full: [][]key.Binding{row, nav}}
	case ScreenWizard:
		if m.wizard != nil {
			return m.wizard.keys
		}
	case ScreenConfirmDelete:
		return helpSet{short: []key.Binding{k.Confirm, k.Cancel}}
	case ScreenQueue:
		row := []key.Binding{k.Up, k.Down, k.SyncAll, k.Retry, k.Remove}
		return helpSet{short: row, full: [][]key.Binding{row, nav}}
	case ScreenDashboard:
		return helpSet{short: []key.Binding{k.Refresh, k.Back, k.List, k.Queue}, full: [][]key.Binding{nav}}
	}
	return helpSet{short: nav}
}

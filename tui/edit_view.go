// ABOUTME: Three-step interaction wizard driven by the form controller
// ABOUTME: Hosts text, choice and lookup fields plus location fill and dictation
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/touchpoint/capture"
	"github.com/harperreed/touchpoint/form"
	"github.com/harperreed/touchpoint/lookup"
	"github.com/harperreed/touchpoint/models"
)

type fieldKind int

const (
	fieldText fieldKind = iota
	fieldChoice
	fieldLookup
	fieldArea
)

// wizardField is one editable row. Lookups write both an id and a name field.
type wizardField struct {
	kind    fieldKind
	key     string
	nameKey string
	label   string

	input   textinput.Model
	area    textarea.Model
	lookup  lookup.Model
	options []string
	choice  int
}

func (f *wizardField) value() string {
	switch f.kind {
	case fieldChoice:
		return f.options[f.choice]
	case fieldArea:
		return f.area.Value()
	case fieldLookup:
		return f.lookup.SelectedID()
	}
	return f.input.Value()
}

func (f *wizardField) setValue(v string) {
	switch f.kind {
	case fieldChoice:
		f.choice = 0
		for i, o := range f.options {
			if o == v {
				f.choice = i
			}
		}
	case fieldArea:
		f.area.SetValue(v)
	case fieldText:
		f.input.SetValue(v)
	}
}

func (f *wizardField) focus() tea.Cmd {
	switch f.kind {
	case fieldText:
		return f.input.Focus()
	case fieldArea:
		return f.area.Focus()
	case fieldLookup:
		return f.lookup.Focus()
	}
	return nil
}

func (f *wizardField) blur() {
	switch f.kind {
	case fieldText:
		f.input.Blur()
	case fieldArea:
		f.area.Blur()
	case fieldLookup:
		f.lookup.Blur()
	}
}

type wizardKeyMap struct {
	Next     key.Binding
	Prev     key.Binding
	Left     key.Binding
	Right    key.Binding
	Enter    key.Binding
	NextStep key.Binding
	PrevStep key.Binding
	Submit   key.Binding
	Close    key.Binding
	Discard  key.Binding
	Locate   key.Binding
	Dictate  key.Binding
}

func defaultWizardKeyMap() wizardKeyMap {
	return wizardKeyMap{
		Next:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		Prev:     key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous field")),
		Left:     key.NewBinding(key.WithKeys("left"), key.WithHelp("←/→", "change option")),
		Right:    key.NewBinding(key.WithKeys("right")),
		Enter:    key.NewBinding(key.WithKeys("enter")),
		NextStep: key.NewBinding(key.WithKeys("ctrl+f"), key.WithHelp("ctrl+f", "next step")),
		PrevStep: key.NewBinding(key.WithKeys("ctrl+b"), key.WithHelp("ctrl+b", "previous step")),
		Submit:   key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
		Close:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close, keep draft")),
		Discard:  key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "discard")),
		Locate:   key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "use my location")),
		Dictate:  key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "dictate")),
	}
}

type submittedMsg struct {
	result form.SubmitResult
	err    error
}

type candidateCreatedMsg struct {
	kind      models.CandidateKind
	candidate models.Candidate
	err       error
}

type locationMsg struct {
	value   string
	message string
}

type wizard struct {
	ctrl  *form.Controller
	deps  Deps
	title string
	keys  helpSet
	km    wizardKeyMap

	steps [3][]wizardField
	focus int
	snap  form.Snapshot

	message    string
	submitting bool

	dictating bool
	dictField string
	dictation capture.Dictation
	speech    <-chan capture.SpeechEvent
}

// noLookups backs lookups when no searcher is configured.
type noLookups struct{}

func (noLookups) Search(context.Context, models.CandidateKind, string, int) ([]models.Candidate, error) {
	return nil, nil
}

func newWizard(ctrl *form.Controller, deps Deps, title string, width int) *wizard {
	w := &wizard{
		ctrl:  ctrl,
		deps:  deps,
		title: title,
		km:    defaultWizardKeyMap(),
		snap:  ctrl.Snapshot(),
	}
	k := w.km
	w.keys = helpSet{
		short: []key.Binding{k.Next, k.NextStep, k.PrevStep, k.Submit, k.Close},
		full: [][]key.Binding{
			{k.Next, k.Prev, k.Left},
			{k.NextStep, k.PrevStep, k.Submit},
			{k.Locate, k.Dictate, k.Close, k.Discard},
		},
	}

	d := w.snap.Draft
	text := func(fieldKey, label, placeholder string) wizardField {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = placeholder
		ti.CharLimit = 200
		ti.SetValue(d.Value(fieldKey))
		return wizardField{kind: fieldText, key: fieldKey, label: label, input: ti}
	}
	choice := func(fieldKey, label string, options []string) wizardField {
		f := wizardField{kind: fieldChoice, key: fieldKey, label: label, options: options}
		f.setValue(d.Value(fieldKey))
		return f
	}

	var searcher = deps.Lookups
	if searcher == nil {
		searcher = noLookups{}
	}
	opts := lookup.Options{AllowCreate: deps.Creator != nil, Logger: deps.Logger}
	if deps.Config != nil {
		opts.Debounce = deps.Config.Debounce
		opts.MinChars = deps.Config.MinQueryLength
	}
	related := func(kind models.CandidateKind, idKey, nameKey, label string) wizardField {
		lk := lookup.New(kind, searcher, opts)
		if id := d.Value(idKey); id != "" {
			lk.SetSelected(models.Candidate{ID: id, Kind: kind, Name: d.Value(nameKey)})
		}
		return wizardField{kind: fieldLookup, key: idKey, nameKey: nameKey, label: label, lookup: lk}
	}

	notes := textarea.New()
	notes.Placeholder = "What happened?"
	notes.CharLimit = models.MaxNotesLength
	notes.ShowLineNumbers = false
	notes.SetHeight(4)
	notes.SetValue(d.Value(form.FieldNotes))

	w.steps[form.StepContext] = []wizardField{
		choice(form.FieldType, "Type", enumOptions(models.InteractionTypes)),
		text(form.FieldTitle, "Title", "Intro call with the buyer"),
		related(models.KindOrganization, form.FieldOrganizationID, form.FieldOrganizationName, "Organization"),
		related(models.KindContact, form.FieldContactID, form.FieldContactName, "Contact"),
		related(models.KindOpportunity, form.FieldOpportunityID, form.FieldOpportunityName, "Opportunity"),
		text(form.FieldPrincipalID, "Principal", "principal id (optional)"),
	}
	w.steps[form.StepDetails] = []wizardField{
		choice(form.FieldStatus, "Status", enumOptions(models.Statuses)),
		text(form.FieldInteractionDate, "When", "2006-01-02 15:04"),
		text(form.FieldDuration, "Duration (min)", "30"),
		choice(form.FieldContactMethod, "Contact method", enumOptions(models.ContactMethods)),
		text(form.FieldLocation, "Location", "ctrl+l to fill"),
		text(form.FieldParticipants, "Participants", "comma separated"),
		text(form.FieldTags, "Tags", "comma separated"),
	}
	w.steps[form.StepOutcome] = []wizardField{
		choice(form.FieldOutcome, "Outcome", enumOptions(models.Outcomes)),
		text(form.FieldRating, "Rating (1-5)", ""),
		{kind: fieldArea, key: form.FieldNotes, label: "Notes", area: notes},
		choice(form.FieldFollowUpRequired, "Follow-up", []string{"no", "yes"}),
		text(form.FieldFollowUpDate, "Follow-up date", "2006-01-02"),
		text(form.FieldFollowUpNextAction, "Next action", ""),
		text(form.FieldFollowUpNotes, "Follow-up notes", ""),
	}

	w.setWidth(width)
	return w
}

// enumOptions lists the values of a closed enum with a leading blank choice.
func enumOptions[T ~string](values []T) []string {
	out := []string{""}
	for _, v := range values {
		out = append(out, string(v))
	}
	return out
}

func (w *wizard) setWidth(width int) {
	inner := max(width-24, 20)
	for s := range w.steps {
		for i := range w.steps[s] {
			f := &w.steps[s][i]
			switch f.kind {
			case fieldText:
				f.input.Width = inner
			case fieldArea:
				f.area.SetWidth(inner)
			case fieldLookup:
				f.lookup.SetWidth(inner)
			}
		}
	}
}

func (w *wizard) step() form.Step { return w.snap.Step }

func (w *wizard) current() *wizardField {
	fields := w.steps[w.step()]
	if w.focus < 0 || w.focus >= len(fields) {
		return nil
	}
	return &w.steps[w.step()][w.focus]
}

// field finds a field by its form key on any step.
func (w *wizard) field(fieldKey string) *wizardField {
	for s := range w.steps {
		for i := range w.steps[s] {
			if w.steps[s][i].key == fieldKey {
				return &w.steps[s][i]
			}
		}
	}
	return nil
}

func (w *wizard) lookupField(kind models.CandidateKind) *wizardField {
	for i := range w.steps[form.StepContext] {
		f := &w.steps[form.StepContext][i]
		if f.kind == fieldLookup && f.lookup.Kind == kind {
			return f
		}
	}
	return nil
}

func (w *wizard) focusCurrent() tea.Cmd {
	for s := range w.steps {
		for i := range w.steps[s] {
			w.steps[s][i].blur()
		}
	}
	if f := w.current(); f != nil {
		return f.focus()
	}
	return nil
}

// patch sends raw values to the controller and re-reads its state.
func (w *wizard) patch(p form.Patch) {
	var step form.Step
	for k := range p {
		step, _ = form.StepOf(k)
		break
	}
	prevType := w.snap.Draft.Context.Type
	if err := w.ctrl.UpdateStepField(step, p); err != nil {
		w.message = err.Error()
	}
	w.snap = w.ctrl.Snapshot()
	if w.snap.Draft.Context.Type != prevType {
		// The controller filled in suggestions for the new type.
		for _, k := range []string{form.FieldDuration, form.FieldContactMethod} {
			if f := w.field(k); f != nil {
				f.setValue(w.snap.Draft.Value(k))
			}
		}
	}
}

func (w *wizard) commit(f *wizardField) {
	w.patch(form.Patch{f.key: f.value()})
}

func (w *wizard) moveFocus(delta int) tea.Cmd {
	n := len(w.steps[w.step()])
	w.focus = (w.focus + delta + n) % n
	return w.focusCurrent()
}

func (w *wizard) changeStep(forward bool) tea.Cmd {
	var ok bool
	if forward {
		ok = w.ctrl.Advance()
	} else {
		ok = w.ctrl.Retreat()
	}
	w.snap = w.ctrl.Snapshot()
	if !ok {
		if forward {
			w.message = "Fix the highlighted fields before continuing"
		}
		return nil
	}
	w.message = ""
	w.focus = 0
	return w.focusCurrent()
}

func (w *wizard) submit() tea.Cmd {
	if w.submitting {
		return nil
	}
	w.submitting = true
	w.message = ""
	ctrl := w.ctrl
	return func() tea.Msg {
		ctx, cancel := requestContext()
		defer cancel()
		result, err := ctrl.Submit(ctx)
		return submittedMsg{result: result, err: err}
	}
}

func (w *wizard) locate() tea.Cmd {
	locator := w.deps.Locator
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		value, message := capture.FillLocation(ctx, locator)
		return locationMsg{value: value, message: message}
	}
}

// toggleDictation starts dictating into the focused text field, or stops.
func (w *wizard) toggleDictation() tea.Cmd {
	if w.dictating {
		w.deps.Recognizer.Stop()
		return nil
	}
	f := w.current()
	if f == nil || (f.kind != fieldText && f.kind != fieldArea) {
		w.message = "Move to a text field to dictate"
		return nil
	}
	events, err := w.deps.Recognizer.Start(context.Background())
	if err != nil {
		w.message = capture.Explain(err)
		return nil
	}
	w.dictating = true
	w.dictField = f.key
	w.dictation = capture.Dictation{Text: f.value()}
	w.speech = events
	w.message = "Listening… ctrl+r to stop"
	return capture.WaitForSpeech(events)
}

func (w *wizard) handleSpeech(msg capture.SpeechMsg) tea.Cmd {
	if !w.dictating {
		return nil
	}
	if msg.Done {
		w.dictating = false
		w.speech = nil
		w.dictation.Preview = ""
		if w.dictation.Message != "" {
			w.message = w.dictation.Message
		} else {
			w.message = "Dictation stopped"
		}
		return nil
	}

	before := w.dictation.Text
	w.dictation.Handle(msg.Event)
	if w.dictation.Message != "" {
		w.message = w.dictation.Message
	}
	if w.dictation.Text != before {
		if f := w.field(w.dictField); f != nil {
			f.setValue(w.dictation.Text)
			w.commit(f)
		}
	}
	return capture.WaitForSpeech(w.speech)
}

func (w *wizard) stopDictation() {
	if w.dictating {
		w.deps.Recognizer.Stop()
		w.dictating = false
	}
}

func (w *wizard) createCandidate(msg lookup.CreateRequestedMsg) tea.Cmd {
	creator := w.deps.Creator
	if creator == nil {
		w.message = "Creating new records is not available here"
		return nil
	}
	parent := ""
	if msg.Kind != models.KindOrganization {
		parent = w.snap.Draft.Context.OrganizationID
	}
	w.message = fmt.Sprintf("Creating %s %q…", msg.Kind, msg.Query)
	return func() tea.Msg {
		ctx, cancel := requestContext()
		defer cancel()
		c, err := creator.CreateCandidate(ctx, msg.Kind, msg.Query, parent)
		return candidateCreatedMsg{kind: msg.Kind, candidate: c, err: err}
	}
}

// wizardOutcome tells the parent model whether the wizard is finished.
type wizardOutcome int

const (
	wizardOpen wizardOutcome = iota
	wizardClosed
	wizardDiscarded
	wizardSaved
)

func (w *wizard) handleKey(msg tea.KeyMsg) (tea.Cmd, wizardOutcome) {
	f := w.current()
	lookupOpen := f != nil && f.kind == fieldLookup && f.lookup.IsOpen()

	switch {
	case key.Matches(msg, w.km.Submit):
		return w.submit(), wizardOpen
	case key.Matches(msg, w.km.Discard):
		w.stopDictation()
		w.ctrl.Discard()
		return nil, wizardDiscarded
	case key.Matches(msg, w.km.Close) && !lookupOpen:
		w.stopDictation()
		return nil, wizardClosed
	case key.Matches(msg, w.km.NextStep):
		return w.changeStep(true), wizardOpen
	case key.Matches(msg, w.km.PrevStep):
		return w.changeStep(false), wizardOpen
	case key.Matches(msg, w.km.Next):
		return w.moveFocus(1), wizardOpen
	case key.Matches(msg, w.km.Prev):
		return w.moveFocus(-1), wizardOpen
	case key.Matches(msg, w.km.Locate):
		return w.locate(), wizardOpen
	case key.Matches(msg, w.km.Dictate):
		return w.toggleDictation(), wizardOpen
	}

	if f == nil {
		return nil, wizardOpen
	}

	switch f.kind {
	case fieldChoice:
		switch {
		case key.Matches(msg, w.km.Left):
			f.choice = (f.choice - 1 + len(f.options)) % len(f.options)
			w.commit(f)
		case key.Matches(msg, w.km.Right):
			f.choice = (f.choice + 1) % len(f.options)
			w.commit(f)
		case key.Matches(msg, w.km.Enter):
			return w.enterNext(), wizardOpen
		}
		return nil, wizardOpen

	case fieldText:
		if key.Matches(msg, w.km.Enter) {
			return w.enterNext(), wizardOpen
		}
		before := f.input.Value()
		var cmd tea.Cmd
		f.input, cmd = f.input.Update(msg)
		if f.input.Value() != before {
			w.commit(f)
		}
		return cmd, wizardOpen

	case fieldArea:
		before := f.area.Value()
		var cmd tea.Cmd
		f.area, cmd = f.area.Update(msg)
		if f.area.Value() != before {
			w.commit(f)
		}
		return cmd, wizardOpen

	case fieldLookup:
		var cmd tea.Cmd
		f.lookup, cmd = f.lookup.Update(msg)
		return cmd, wizardOpen
	}
	return nil, wizardOpen
}

// enterNext moves to the next field, or the next step from the last field.
func (w *wizard) enterNext() tea.Cmd {
	if w.focus < len(w.steps[w.step()])-1 {
		return w.moveFocus(1)
	}
	if w.step() < form.StepOutcome {
		return w.changeStep(true)
	}
	return nil
}

// update handles everything except keys.
func (w *wizard) update(msg tea.Msg) (tea.Cmd, wizardOutcome) {
	switch msg := msg.(type) {
	case submittedMsg:
		w.submitting = false
		w.snap = w.ctrl.Snapshot()
		if msg.err != nil {
			w.message = ""
			return nil, wizardOpen
		}
		w.stopDictation()
		return nil, wizardSaved

	case lookup.SelectedMsg:
		if f := w.lookupField(msg.Kind); f != nil {
			w.patch(form.Patch{f.key: msg.Candidate.ID, f.nameKey: msg.Candidate.Name})
		}
		return nil, wizardOpen

	case lookup.ClearedMsg:
		if f := w.lookupField(msg.Kind); f != nil {
			w.patch(form.Patch{f.key: "", f.nameKey: ""})
		}
		return nil, wizardOpen

	case lookup.CreateRequestedMsg:
		return w.createCandidate(msg), wizardOpen

	case candidateCreatedMsg:
		if msg.err != nil {
			w.message = fmt.Sprintf("Could not create %s: %v", msg.kind, msg.err)
			return nil, wizardOpen
		}
		w.message = fmt.Sprintf("Created %s %q", msg.kind, msg.candidate.Name)
		if f := w.lookupField(msg.kind); f != nil {
			return f.lookup.Select(msg.candidate), wizardOpen
		}
		return nil, wizardOpen

	case locationMsg:
		if msg.value == "" {
			w.message = msg.message
			return nil, wizardOpen
		}
		if f := w.field(form.FieldLocation); f != nil {
			f.setValue(msg.value)
			w.commit(f)
		}
		w.message = "Location filled in"
		return nil, wizardOpen

	case capture.SpeechMsg:
		return w.handleSpeech(msg), wizardOpen
	}

	// Search timers and results go to every lookup; each ignores the others'.
	var cmds []tea.Cmd
	for i := range w.steps[form.StepContext] {
		f := &w.steps[form.StepContext][i]
		if f.kind != fieldLookup {
			continue
		}
		var cmd tea.Cmd
		f.lookup, cmd = f.lookup.Update(msg)
		cmds = append(cmds, cmd)
	}
	if f := w.current(); f != nil {
		var cmd tea.Cmd
		switch f.kind {
		case fieldText:
			f.input, cmd = f.input.Update(msg)
		case fieldArea:
			f.area, cmd = f.area.Update(msg)
		}
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...), wizardOpen
}

func (m Model) openWizard(ctrl *form.Controller, title string) (tea.Model, tea.Cmd) {
	m.wizard = newWizard(ctrl, m.deps, title, m.width)
	m.screen = ScreenWizard
	m.status = ""
	return m, m.wizard.focusCurrent()
}

func (m Model) updateWizard(msg tea.Msg) (tea.Model, tea.Cmd) {
	w := m.wizard
	if w == nil {
		return m, nil
	}

	var cmd tea.Cmd
	var outcome wizardOutcome
	if k, ok := msg.(tea.KeyMsg); ok {
		cmd, outcome = w.handleKey(k)
	} else {
		cmd, outcome = w.update(msg)
	}

	switch outcome {
	case wizardClosed:
		if m.deps.Drafts != nil {
			m.status = "Draft kept: press R to resume"
		}
	case wizardDiscarded:
		m.status = "Draft discarded"
	case wizardSaved:
		m.status = "Saved"
		if r := w.snap.Result; r != nil && r.Queued {
			m.status = "Queued for sync"
		}
	default:
		return m, cmd
	}

	m.wizard = nil
	m.detail = nil
	m.screen = ScreenList
	if outcome == wizardSaved {
		return m, tea.Batch(cmd, m.list.Refresh())
	}
	return m, cmd
}

var (
	stepActiveStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	stepDoneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	stepTodoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	wizardLabel     = lipgloss.NewStyle().Width(18)
	wizardError     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	wizardNotice    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	wizardPreview   = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
)

func (m Model) renderWizardView() string {
	w := m.wizard
	if w == nil {
		return ""
	}
	var s strings.Builder

	s.WriteString(titleStyle.Render(strings.ToUpper(w.title)))
	s.WriteString("\n")

	var steps []string
	for _, st := range form.Steps {
		label := fmt.Sprintf("%d %s", int(st)+1, st)
		switch {
		case st == w.step():
			steps = append(steps, stepActiveStyle.Render("● "+label))
		case w.snap.Valid[st]:
			steps = append(steps, stepDoneStyle.Render("✓ "+label))
		default:
			steps = append(steps, stepTodoStyle.Render("○ "+label))
		}
	}
	s.WriteString(strings.Join(steps, "   "))
	s.WriteString("\n\n")

	for i := range w.steps[w.step()] {
		f := &w.steps[w.step()][i]
		if i == w.focus {
			s.WriteString("> ")
		} else {
			s.WriteString("  ")
		}
		s.WriteString(wizardLabel.Render(f.label))

		switch f.kind {
		case fieldChoice:
			v := f.options[f.choice]
			shown := models.Label(v)
			if v == "" {
				shown = "(none)"
			}
			if i == w.focus {
				shown = "‹ " + shown + " ›"
			}
			s.WriteString(shown)
		case fieldText:
			s.WriteString(f.input.View())
		case fieldArea:
			s.WriteString("\n")
			s.WriteString(f.area.View())
		case fieldLookup:
			s.WriteString(f.lookup.View())
		}
		if w.dictating && w.dictField == f.key && w.dictation.Preview != "" {
			s.WriteString("\n")
			s.WriteString(wizardPreview.Render("  " + w.dictation.Preview))
		}
		s.WriteString("\n")
	}

	if errs := w.snap.Errors[w.step()]; len(errs) > 0 {
		s.WriteString("\n")
		for _, e := range errs {
			s.WriteString(wizardError.Render("• " + e))
			s.WriteString("\n")
		}
	}
	if w.snap.Notice != "" {
		s.WriteString("\n")
		s.WriteString(wizardNotice.Render(w.snap.Notice))
		s.WriteString("\n")
	}
	if w.snap.Error != "" {
		s.WriteString("\n")
		s.WriteString(wizardError.Render("Error: " + w.snap.Error))
		s.WriteString("\n")
	}
	if w.submitting {
		s.WriteString("\nSaving…\n")
	} else if w.message != "" {
		s.WriteString("\n")
		s.WriteString(statusStyle.Render(w.message))
		s.WriteString("\n")
	}
	if !m.online {
		s.WriteString(offlineStyle.Render("Offline: saving will queue this change"))
		s.WriteString("\n")
	}

	return s.String()
}

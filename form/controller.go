// ABOUTME: Multi-step form controller for creating and editing interactions
// ABOUTME: Validates per step, submits to the store or queues offline, publishes snapshots
package form

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/harperreed/touchpoint/models"
	"github.com/harperreed/touchpoint/queue"
	"github.com/harperreed/touchpoint/remote"
)

var (
	ErrStepInvalid      = errors.New("current step has errors")
	ErrFormInvalid      = errors.New("form has errors")
	ErrUnknownField     = errors.New("unknown field")
	ErrWrongStep        = errors.New("field belongs to another step")
	ErrSubmitInProgress = errors.New("submit already in progress")
	ErrClosed           = errors.New("form was submitted or discarded")
)

// Connectivity reports whether the backend is reachable.
type Connectivity interface {
	Online() bool
}

// Enqueuer accepts mutations for later delivery.
type Enqueuer interface {
	Enqueue(ctx context.Context, m queue.Mutation) (queue.Mutation, error)
}

// Deps are the collaborators a controller is built with. Queue, Connectivity
// and Drafts are optional.
type Deps struct {
	Store        remote.Store
	Queue        Enqueuer
	Connectivity Connectivity
	Drafts       *DraftCache
	Logger       *log.Logger
	Now          func() time.Time
}

// SubmitResult describes a successful submit.
type SubmitResult struct {
	ID         uuid.UUID
	Queued     bool
	MutationID string
}

// Snapshot is an immutable view of the controller state.
type Snapshot struct {
	Draft      Draft
	Step       Step
	Valid      [3]bool
	Errors     [3][]string
	CanProceed bool
	FormValid  bool
	Submitting bool
	Error      string
	Notice     string
	Result     *SubmitResult
	Closed     bool
}

type Observer func(Snapshot)

type Controller struct {
	deps   Deps
	logger *log.Logger

	mu         sync.Mutex
	draft      Draft
	submitting bool
	err        string
	notice     string
	result     *SubmitResult
	closed     bool
	observers  map[int]Observer
	nextObs    int
}

// New starts a create wizard with empty defaults.
func New(deps Deps) *Controller {
	c := newController(deps)
	c.draft = newDraft(c.now())
	c.revalidate()
	return c
}

// NewFromInteraction starts an edit wizard prefilled from an existing interaction.
func NewFromInteraction(deps Deps, in models.Interaction) *Controller {
	c := newController(deps)
	c.draft = draftFromInteraction(in, c.now())
	c.revalidate()
	return c
}

// NewDuplicate starts a create wizard prefilled from an existing interaction.
// Status, outcome and rating start over and the date moves to now.
func NewDuplicate(deps Deps, in models.Interaction) *Controller {
	c := newController(deps)
	now := c.now()
	c.draft = draftFromInteraction(in.Duplicate(), now)
	c.draft.Mode = ModeCreate
	c.draft.EditID = uuid.Nil
	c.draft.Details.InteractionDate = now.Truncate(time.Minute)
	c.draft.Outcome.FollowUp = models.FollowUp{}
	c.revalidate()
	return c
}

// NewFollowUp starts a create wizard for the follow-up an interaction asked for.
func NewFollowUp(deps Deps, in models.Interaction) *Controller {
	c := newController(deps)
	now := c.now()
	d := newDraft(now)
	d.Context = ContextFields{
		Type:             models.TypeFollowUp,
		Title:            "Follow-up: " + in.Title,
		OrganizationID:   in.OrganizationID,
		OrganizationName: in.OrganizationName,
		OpportunityID:    in.OpportunityID,
		OpportunityName:  in.OpportunityName,
		ContactID:        in.ContactID,
		ContactName:      in.ContactName,
		PrincipalID:      in.PrincipalID,
	}
	def := models.DefaultsFor(models.TypeFollowUp)
	d.Details.DurationMinutes = def.DurationMinutes
	d.Details.ContactMethod = def.ContactMethod
	if in.FollowUp.Date != nil {
		d.Details.InteractionDate = *in.FollowUp.Date
		d.Details.Status = models.StatusScheduled
	}
	d.Outcome.Notes = in.FollowUp.Notes
	if in.FollowUp.NextAction != "" {
		d.Context.Title = "Follow-up: " + in.FollowUp.NextAction
	}
	c.draft = d
	c.revalidate()
	return c
}

// Resume continues a cached draft.
func Resume(deps Deps, d Draft) *Controller {
	c := newController(deps)
	c.draft = d.clone()
	if !c.draft.CurrentStep.valid() {
		c.draft.CurrentStep = StepContext
	}
	c.revalidate()
	return c
}

// LoadDraft resumes the cached draft with the given id.
func LoadDraft(deps Deps, id uuid.UUID) (*Controller, error) {
	if deps.Drafts == nil {
		return nil, ErrDraftNotFound
	}
	d, err := deps.Drafts.Load(id)
	if err != nil {
		return nil, err
	}
	return Resume(deps, d), nil
}

func newController(deps Deps) *Controller {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{
		deps:      deps,
		logger:    logger.WithPrefix("form"),
		observers: make(map[int]Observer),
	}
}

func (c *Controller) now() time.Time {
	return c.deps.Now()
}

// revalidate recomputes every step. Caller holds mu (or owns c exclusively).
func (c *Controller) revalidate() {
	now := c.now()
	for _, s := range Steps {
		errs := Validate(&c.draft, s, now)
		c.draft.Errors[s] = errs
		c.draft.Valid[s] = len(errs) == 0
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	d := c.draft.clone()
	snap := Snapshot{
		Draft:      d,
		Step:       d.CurrentStep,
		Valid:      d.Valid,
		Errors:     d.Errors,
		CanProceed: d.Valid[d.CurrentStep],
		FormValid:  d.Valid[StepContext] && d.Valid[StepDetails] && d.Valid[StepOutcome],
		Submitting: c.submitting,
		Error:      c.err,
		Notice:     c.notice,
		Closed:     c.closed,
	}
	if c.result != nil {
		r := *c.result
		snap.Result = &r
	}
	return snap
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers an observer and returns a function that removes it.
func (c *Controller) Subscribe(o Observer) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = o
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

// changed persists the draft, then publishes a snapshot. Caller holds mu;
// it is released before observers run.
func (c *Controller) changed(persist bool) {
	c.draft.UpdatedAt = c.now()
	if persist && c.deps.Drafts != nil && !c.closed {
		if err := c.deps.Drafts.Save(c.draft); err != nil {
			c.logger.Warn("failed to cache draft", "id", c.draft.ID, "err", err)
		}
	}
	snap := c.snapshotLocked()
	observers := make([]Observer, 0, len(c.observers))
	for _, o := range c.observers {
		observers = append(observers, o)
	}
	c.mu.Unlock()

	for _, o := range observers {
		o(snap)
	}
}

func (c *Controller) CurrentStep() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.CurrentStep
}

// CanProceedToNext reports whether the current step validates.
func (c *Controller) CanProceedToNext() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.Valid[c.draft.CurrentStep]
}

func (c *Controller) IsFormValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.Valid[StepContext] && c.draft.Valid[StepDetails] && c.draft.Valid[StepOutcome]
}

// Advance moves to the next step when the current one is valid. It is a
// no-op on the last step.
func (c *Controller) Advance() bool {
	c.mu.Lock()
	step := c.draft.CurrentStep
	if c.closed || step == StepOutcome || !c.draft.Valid[step] {
		c.mu.Unlock()
		return false
	}
	c.draft.CurrentStep = step + 1
	c.notice = ""
	c.changed(true)
	return true
}

// Retreat moves back one step unless already on the first.
func (c *Controller) Retreat() bool {
	c.mu.Lock()
	step := c.draft.CurrentStep
	if c.closed || step == StepContext {
		c.mu.Unlock()
		return false
	}
	c.draft.CurrentStep = step - 1
	c.notice = ""
	c.changed(true)
	return true
}

// UpdateStepField merges raw values into a step and re-validates.
// Changing the type also applies that type's detail defaults.
func (c *Controller) UpdateStepField(step Step, patch Patch) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	for field := range patch {
		owner, ok := fieldSteps[field]
		if !ok {
			c.mu.Unlock()
			return fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
		if owner != step {
			c.mu.Unlock()
			return fmt.Errorf("%w: %q is on %s", ErrWrongStep, field, owner)
		}
	}

	now := c.now()
	previousType := c.draft.Context.Type
	for field, raw := range patch {
		msg, err := c.draft.apply(field, raw, now)
		if err != nil {
			c.mu.Unlock()
			return err
		}
		if msg != "" {
			if c.draft.ParseErrors == nil {
				c.draft.ParseErrors = make(map[string]string)
			}
			c.draft.ParseErrors[field] = msg
		} else {
			delete(c.draft.ParseErrors, field)
		}
	}

	c.notice = ""
	if c.draft.Context.Type != previousType && c.draft.Context.Type.Valid() {
		c.applyTypeDefaults()
	}
	c.err = ""
	c.revalidate()
	c.changed(true)
	return nil
}

// SetType switches the interaction type, overwriting the suggested duration
// and contact method on the details step.
func (c *Controller) SetType(t models.InteractionType) error {
	if !t.Valid() {
		return fmt.Errorf("invalid interaction type: %q", t)
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.draft.Context.Type = t
	delete(c.draft.ParseErrors, FieldType)
	c.applyTypeDefaults()
	c.revalidate()
	c.changed(true)
	return nil
}

// applyTypeDefaults overwrites step-two suggestions and records a visible notice.
func (c *Controller) applyTypeDefaults() {
	def := models.DefaultsFor(c.draft.Context.Type)
	c.draft.Details.DurationMinutes = def.DurationMinutes
	c.draft.Details.ContactMethod = def.ContactMethod
	delete(c.draft.ParseErrors, FieldDuration)
	delete(c.draft.ParseErrors, FieldContactMethod)

	method := "none"
	if def.ContactMethod != models.MethodNone {
		method = models.Label(string(def.ContactMethod))
	}
	c.notice = fmt.Sprintf("%s selected: duration set to %d min, contact method %s",
		models.Label(string(c.draft.Context.Type)), def.DurationMinutes, method)
}

// Submit validates every step and then creates or updates the interaction.
// When offline it hands the mutation to the queue instead.
func (c *Controller) Submit(ctx context.Context) (SubmitResult, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return SubmitResult{}, ErrClosed
	}
	if c.submitting {
		c.mu.Unlock()
		return SubmitResult{}, ErrSubmitInProgress
	}
	c.revalidate()
	if !(c.draft.Valid[StepContext] && c.draft.Valid[StepDetails] && c.draft.Valid[StepOutcome]) {
		c.err = "Fix the highlighted fields before saving"
		c.changed(false)
		return SubmitResult{}, ErrFormInvalid
	}
	c.submitting = true
	c.err = ""
	payload := c.draft.Interaction()
	mode := c.draft.Mode
	editID := c.draft.EditID
	draftID := c.draft.ID
	c.changed(false)

	result, err := c.deliver(ctx, mode, editID, payload)

	c.mu.Lock()
	c.submitting = false
	if err != nil {
		c.err = err.Error()
		c.logger.Error("submit failed", "draft", draftID, "err", err)
		c.changed(false)
		return SubmitResult{}, err
	}
	c.result = &result
	c.closed = true
	if c.deps.Drafts != nil {
		if derr := c.deps.Drafts.Delete(draftID); derr != nil {
			c.logger.Warn("failed to clear draft", "id", draftID, "err", derr)
		}
	}
	c.logger.Info("interaction saved", "id", result.ID, "queued", result.Queued)
	c.changed(false)
	return result, nil
}

func (c *Controller) deliver(ctx context.Context, mode Mode, editID uuid.UUID, payload models.Interaction) (SubmitResult, error) {
	offline := c.deps.Connectivity != nil && !c.deps.Connectivity.Online()

	if offline && c.deps.Queue != nil {
		var m queue.Mutation
		var err error
		id := editID
		if mode == ModeEdit {
			m, err = remote.UpdateMutation(editID, payload)
		} else {
			id = uuid.New()
			payload.ID = id
			m, err = remote.CreateMutation(payload)
		}
		if err != nil {
			return SubmitResult{}, err
		}
		queued, err := c.deps.Queue.Enqueue(ctx, m)
		if err != nil {
			return SubmitResult{}, fmt.Errorf("failed to queue change: %w", err)
		}
		return SubmitResult{ID: id, Queued: true, MutationID: queued.ID}, nil
	}

	if c.deps.Store == nil {
		return SubmitResult{}, errors.New("no store configured")
	}
	if mode == ModeEdit {
		if err := c.deps.Store.Update(ctx, editID, payload); err != nil {
			return SubmitResult{}, err
		}
		return SubmitResult{ID: editID}, nil
	}
	id, err := c.deps.Store.Create(ctx, payload)
	if err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{ID: id}, nil
}

// Discard abandons the wizard and drops its cached draft.
func (c *Controller) Discard() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.deps.Drafts != nil {
		if err := c.deps.Drafts.Delete(c.draft.ID); err != nil {
			c.logger.Warn("failed to clear draft", "id", c.draft.ID, "err", err)
		}
	}
	c.changed(false)
}

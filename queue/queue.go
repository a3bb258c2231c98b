// ABOUTME: Offline mutation queue with durable storage and serial replay
// ABOUTME: Retries failed deliveries with backoff up to a ceiling, then marks them failed
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/oklog/ulid/v2"

	"github.com/harperreed/touchpoint/kv"
)

// KeyPrefix namespaces mutations inside the shared local store.
const KeyPrefix = "mutation/"

const (
	DefaultMaxRetries  = 3
	DefaultBaseBackoff = 5 * time.Second
	DefaultMaxBackoff  = 5 * time.Minute
	autoSyncTimeout    = 30 * time.Second
)

var (
	ErrMutationNotFound = errors.New("mutation not found")
	ErrNotFailed        = errors.New("only failed mutations can be retried")
)

// Sender delivers one mutation to the remote store.
type Sender interface {
	Send(ctx context.Context, m Mutation) error
}

// SenderFunc adapts a plain function to the Sender interface.
type SenderFunc func(ctx context.Context, m Mutation) error

func (f SenderFunc) Send(ctx context.Context, m Mutation) error {
	return f(ctx, m)
}

type Options struct {
	MaxRetries  int
	AutoSync    bool
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Now         func() time.Time
	Logger      *log.Logger
}

// Progress reports replay progress for UI feedback.
type Progress struct {
	Done    int
	Total   int
	Running bool
}

// Report is the aggregate outcome of one replay batch.
type Report struct {
	Synced   int
	Retrying int
	Failed   int
}

func (r Report) Attempted() int {
	return r.Synced + r.Retrying + r.Failed
}

type EventKind int

const (
	EventEnqueued EventKind = iota
	EventChanged
	EventRemoved
	EventProgress
	EventSyncDone
	EventConnectivity
)

// Event is published to subscribers on every observable queue change.
type Event struct {
	Kind     EventKind
	Mutation Mutation
	Progress Progress
	Report   Report
	Online   bool
}

type Observer func(Event)

type Queue struct {
	store  kv.Store
	sender Sender
	opts   Options
	logger *log.Logger

	mu        sync.Mutex
	items     []*Mutation
	online    bool
	progress  Progress
	observers map[int]Observer
	nextObs   int
	entropy   *ulid.MonotonicEntropy

	// syncMu serializes replay batches so mutations are applied in enqueue order.
	syncMu sync.Mutex
	bg     sync.WaitGroup
}

// New creates a queue; call Load to restore persisted mutations.
func New(store kv.Store, sender Sender, opts Options) *Queue {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = DefaultBaseBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Queue{
		store:     store,
		sender:    sender,
		opts:      opts,
		logger:    logger.WithPrefix("queue"),
		online:    true,
		observers: make(map[int]Observer),
		entropy:   ulid.Monotonic(rand.New(rand.NewSource(opts.Now().UnixNano())), 0),
	}
}

// Load restores mutations from the local store. Anything left mid-sync by a
// previous run goes back to pending.
func (q *Queue) Load(ctx context.Context) error {
	entries, err := q.store.List(KeyPrefix)
	if err != nil {
		return fmt.Errorf("failed to list queued mutations: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = q.items[:0]
	for _, e := range entries {
		var m Mutation
		if err := json.Unmarshal(e.Value, &m); err != nil {
			q.logger.Warn("skipping unreadable mutation", "key", e.Key, "err", err)
			continue
		}
		if m.State == StateSyncing {
			m.State = StatePending
			if err := q.persist(&m); err != nil {
				return err
			}
		}
		if m.State == StateSynced {
			// Synced but not yet compacted when the process stopped.
			if err := q.store.Delete(KeyPrefix + m.ID); err != nil {
				q.logger.Warn("failed to compact synced mutation", "id", m.ID, "err", err)
			}
			continue
		}
		mm := m
		q.items = append(q.items, &mm)
	}
	sort.Slice(q.items, func(i, j int) bool { return q.items[i].ID < q.items[j].ID })
	return nil
}

// Subscribe registers an observer and returns a function that removes it.
func (q *Queue) Subscribe(o Observer) func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := q.nextObs
	q.nextObs++
	q.observers[id] = o
	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.observers, id)
	}
}

func (q *Queue) publish(evt Event) {
	q.mu.Lock()
	obs := make([]Observer, 0, len(q.observers))
	for _, o := range q.observers {
		obs = append(obs, o)
	}
	q.mu.Unlock()

	for _, o := range obs {
		o(evt)
	}
}

// Enqueue persists a new mutation and, when online with auto-sync on,
// schedules an immediate replay.
func (q *Queue) Enqueue(ctx context.Context, m Mutation) (Mutation, error) {
	if m.Method == "" || m.Target == "" {
		return Mutation{}, fmt.Errorf("mutation requires method and target")
	}

	q.mu.Lock()
	now := q.opts.Now()
	m.ID = ulid.MustNew(ulid.Timestamp(now), q.entropy).String()
	m.State = StatePending
	m.Attempts = 0
	m.LastError = ""
	m.ErrorKind = ErrorNone
	m.NextAttemptAt = time.Time{}
	m.CreatedAt = now
	m.UpdatedAt = now

	stored := m.clone()
	if err := q.persist(&stored); err != nil {
		q.mu.Unlock()
		return Mutation{}, err
	}
	q.items = append(q.items, &stored)
	trigger := q.online && q.opts.AutoSync
	q.mu.Unlock()

	q.logger.Debug("mutation enqueued", "id", m.ID, "method", m.Method, "target", m.Target)
	q.publish(Event{Kind: EventEnqueued, Mutation: m.clone()})

	if trigger {
		q.triggerSync()
	}
	return m, nil
}

// List returns a snapshot of all queued mutations in enqueue order.
func (q *Queue) List() []Mutation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Mutation, 0, len(q.items))
	for _, m := range q.items {
		out = append(out, m.clone())
	}
	return out
}

func (q *Queue) Get(id string) (Mutation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if m := q.find(id); m != nil {
		return m.clone(), true
	}
	return Mutation{}, false
}

// Counts returns the number of mutations per state.
func (q *Queue) Counts() map[State]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	counts := make(map[State]int)
	for _, m := range q.items {
		counts[m.State]++
	}
	return counts
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) Progress() Progress {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.progress
}

// Remove discards a mutation regardless of its state.
func (q *Queue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	idx := q.indexOf(id)
	if idx < 0 {
		q.mu.Unlock()
		return ErrMutationNotFound
	}
	if err := q.store.Delete(KeyPrefix + id); err != nil {
		q.mu.Unlock()
		return fmt.Errorf("failed to delete mutation: %w", err)
	}
	removed := q.items[idx].clone()
	q.items = append(q.items[:idx], q.items[idx+1:]...)
	q.mu.Unlock()

	q.publish(Event{Kind: EventRemoved, Mutation: removed})
	return nil
}

// Retry returns a failed mutation to pending with a fresh attempt budget.
func (q *Queue) Retry(ctx context.Context, id string) error {
	q.mu.Lock()
	m := q.find(id)
	if m == nil {
		q.mu.Unlock()
		return ErrMutationNotFound
	}
	if m.State != StateFailed {
		q.mu.Unlock()
		return fmt.Errorf("mutation %s is %s: %w", id, m.State, ErrNotFailed)
	}
	m.State = StatePending
	m.Attempts = 0
	m.NextAttemptAt = time.Time{}
	m.UpdatedAt = q.opts.Now()
	if err := q.persist(m); err != nil {
		q.mu.Unlock()
		return err
	}
	snapshot := m.clone()
	trigger := q.online && q.opts.AutoSync
	q.mu.Unlock()

	q.publish(Event{Kind: EventChanged, Mutation: snapshot})
	if trigger {
		q.triggerSync()
	}
	return nil
}

// Online reports the last connectivity state the queue was told about.
func (q *Queue) Online() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.online
}

// SetOnline records connectivity; going online triggers an automatic replay.
func (q *Queue) SetOnline(online bool) {
	q.mu.Lock()
	wasOnline := q.online
	q.online = online
	trigger := !wasOnline && online && q.opts.AutoSync
	q.mu.Unlock()

	if wasOnline != online {
		q.logger.Info("connectivity changed", "online", online)
		q.publish(Event{Kind: EventConnectivity, Online: online})
	}
	if trigger {
		q.triggerSync()
	}
}

// SyncAll replays every pending and failed mutation, ignoring backoff.
// This is the user-initiated path.
func (q *Queue) SyncAll(ctx context.Context) (Report, error) {
	return q.replay(ctx, func(m *Mutation, _ time.Time) bool {
		return m.State == StatePending || m.State == StateFailed
	})
}

// SyncPending replays pending mutations whose backoff has elapsed. Failed
// mutations are never picked up here.
func (q *Queue) SyncPending(ctx context.Context) (Report, error) {
	return q.replay(ctx, func(m *Mutation, now time.Time) bool {
		return m.State == StatePending && !m.NextAttemptAt.After(now)
	})
}

// Run periodically replays due mutations until ctx is cancelled.
func (q *Queue) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !q.Online() || !q.opts.AutoSync {
				continue
			}
			if _, err := q.SyncPending(ctx); err != nil && ctx.Err() == nil {
				q.logger.Warn("periodic sync failed", "err", err)
			}
		}
	}
}

// Wait blocks until background replays started by the queue have finished.
func (q *Queue) Wait() {
	q.bg.Wait()
}

func (q *Queue) triggerSync() {
	q.bg.Add(1)
	go func() {
		defer q.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), autoSyncTimeout)
		defer cancel()
		if _, err := q.SyncPending(ctx); err != nil {
			q.logger.Warn("auto sync failed", "err", err)
		}
	}()
}

func (q *Queue) replay(ctx context.Context, include func(*Mutation, time.Time) bool) (Report, error) {
	q.syncMu.Lock()
	defer q.syncMu.Unlock()

	var report Report

	q.mu.Lock()
	now := q.opts.Now()
	var batch []string
	for _, m := range q.items {
		if include(m, now) {
			batch = append(batch, m.ID)
		}
	}
	if len(batch) == 0 {
		q.mu.Unlock()
		return report, nil
	}
	q.progress = Progress{Done: 0, Total: len(batch), Running: true}
	progress := q.progress
	q.mu.Unlock()

	q.publish(Event{Kind: EventProgress, Progress: progress})

	for i, id := range batch {
		if err := ctx.Err(); err != nil {
			q.finish(report)
			return report, err
		}
		q.deliver(ctx, id, &report)

		q.mu.Lock()
		q.progress.Done = i + 1
		progress = q.progress
		q.mu.Unlock()
		q.publish(Event{Kind: EventProgress, Progress: progress})
	}

	q.finish(report)
	q.logger.Info("sync finished", "synced", report.Synced, "retrying", report.Retrying, "failed", report.Failed)
	return report, ctx.Err()
}

func (q *Queue) finish(report Report) {
	q.mu.Lock()
	q.progress.Running = false
	q.mu.Unlock()
	q.publish(Event{Kind: EventSyncDone, Report: report})
}

// deliver sends one mutation and applies the state transition.
func (q *Queue) deliver(ctx context.Context, id string, report *Report) {
	q.mu.Lock()
	m := q.find(id)
	if m == nil {
		// Removed by the user while the batch was running.
		q.mu.Unlock()
		return
	}
	m.State = StateSyncing
	m.UpdatedAt = q.opts.Now()
	if err := q.persist(m); err != nil {
		q.logger.Warn("failed to persist syncing state", "id", id, "err", err)
	}
	snapshot := m.clone()
	q.mu.Unlock()
	q.publish(Event{Kind: EventChanged, Mutation: snapshot})

	sendErr := q.sender.Send(ctx, snapshot)

	q.mu.Lock()
	m = q.find(id)
	if m == nil {
		q.mu.Unlock()
		return
	}
	now := q.opts.Now()
	m.UpdatedAt = now

	switch {
	case sendErr == nil:
		m.State = StateSynced
		m.LastError = ""
		m.ErrorKind = ErrorNone
		report.Synced++
		snapshot = m.clone()
		q.compact(id)
		q.mu.Unlock()
		q.publish(Event{Kind: EventChanged, Mutation: snapshot})
		q.publish(Event{Kind: EventRemoved, Mutation: snapshot})
		return

	case ctx.Err() != nil:
		// Shutdown or cancellation is not the mutation's fault.
		m.State = StatePending

	default:
		m.Attempts++
		m.LastError = sendErr.Error()
		m.ErrorKind = Classify(sendErr)
		if m.Attempts >= q.opts.MaxRetries {
			m.State = StateFailed
			m.NextAttemptAt = time.Time{}
			report.Failed++
			q.logger.Error("mutation failed permanently", "id", id, "attempts", m.Attempts, "err", sendErr)
		} else {
			m.State = StatePending
			m.NextAttemptAt = now.Add(q.backoff(m.Attempts))
			report.Retrying++
			q.logger.Warn("mutation delivery failed, will retry", "id", id, "attempts", m.Attempts, "err", sendErr)
		}
	}

	if err := q.persist(m); err != nil {
		q.logger.Warn("failed to persist mutation state", "id", id, "err", err)
	}
	snapshot = m.clone()
	q.mu.Unlock()
	q.publish(Event{Kind: EventChanged, Mutation: snapshot})
}

// backoff doubles per attempt starting at BaseBackoff, capped at MaxBackoff.
func (q *Queue) backoff(attempts int) time.Duration {
	d := q.opts.BaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= q.opts.MaxBackoff {
			return q.opts.MaxBackoff
		}
	}
	return d
}

// compact drops a synced mutation from storage and memory. Caller holds mu.
func (q *Queue) compact(id string) {
	if err := q.store.Delete(KeyPrefix + id); err != nil {
		q.logger.Warn("failed to compact synced mutation", "id", id, "err", err)
	}
	if idx := q.indexOf(id); idx >= 0 {
		q.items = append(q.items[:idx], q.items[idx+1:]...)
	}
}

// persist writes a mutation to the local store. Caller holds mu.
func (q *Queue) persist(m *Mutation) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal mutation: %w", err)
	}
	if err := q.store.Put(KeyPrefix+m.ID, data); err != nil {
		return fmt.Errorf("failed to persist mutation: %w", err)
	}
	return nil
}

func (q *Queue) find(id string) *Mutation {
	if idx := q.indexOf(id); idx >= 0 {
		return q.items[idx]
	}
	return nil
}

func (q *Queue) indexOf(id string) int {
	for i, m := range q.items {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// ABOUTME: Connectivity monitor that polls a probe and reports online/offline transitions
// ABOUTME: Subscribers are notified only when the state actually changes
package netstatus

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const (
	DefaultInterval = 15 * time.Second
	probeTimeout    = 5 * time.Second
)

// Probe returns nil when the backend is reachable.
type Probe func(ctx context.Context) error

type Listener func(online bool)

type Monitor struct {
	probe    Probe
	interval time.Duration
	logger   *log.Logger

	mu        sync.Mutex
	online    bool
	lastErr   error
	checkedAt time.Time
	listeners map[int]Listener
	nextID    int
}

// New creates a monitor that assumes it starts online.
func New(probe Probe, interval time.Duration, logger *log.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Monitor{
		probe:     probe,
		interval:  interval,
		logger:    logger.WithPrefix("netstatus"),
		online:    true,
		listeners: make(map[int]Listener),
	}
}

func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// LastError is the probe error behind the current offline state, if any.
func (m *Monitor) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Monitor) CheckedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkedAt
}

// Subscribe registers a listener and returns a function that removes it.
func (m *Monitor) Subscribe(l Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// Check probes once and returns the resulting state.
func (m *Monitor) Check(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	err := m.probe(pctx)
	cancel()

	if ctx.Err() != nil {
		// Shutting down; a cancelled probe says nothing about the network.
		return m.Online()
	}
	m.Set(err == nil, err)
	return err == nil
}

// Set records a state directly, e.g. from a failed request elsewhere.
func (m *Monitor) Set(online bool, cause error) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.lastErr = cause
	m.checkedAt = time.Now()
	var listeners []Listener
	if changed {
		for _, l := range m.listeners {
			listeners = append(listeners, l)
		}
	}
	m.mu.Unlock()

	if !changed {
		return
	}
	if online {
		m.logger.Info("back online")
	} else {
		m.logger.Warn("went offline", "err", cause)
	}
	for _, l := range listeners {
		l(online)
	}
}

// Run checks immediately and then on every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

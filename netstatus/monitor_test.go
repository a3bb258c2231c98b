// ABOUTME: Tests for the connectivity monitor
// ABOUTME: Drives state with a scripted probe and counts transition notifications
package netstatus

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

type scriptedProbe struct {
	mu  sync.Mutex
	err error
}

func (p *scriptedProbe) set(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *scriptedProbe) probe(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func TestMonitorNotifiesOnTransitionsOnly(t *testing.T) {
	p := &scriptedProbe{}
	m := New(p.probe, time.Minute, log.New(io.Discard))

	var events []bool
	unsubscribe := m.Subscribe(func(online bool) { events = append(events, online) })

	assert.True(t, m.Check(context.Background()))
	assert.Empty(t, events)

	p.set(errors.New("connection refused"))
	assert.False(t, m.Check(context.Background()))
	assert.False(t, m.Check(context.Background()))
	assert.EqualError(t, m.LastError(), "connection refused")

	p.set(nil)
	assert.True(t, m.Check(context.Background()))
	assert.Nil(t, m.LastError())

	assert.Equal(t, []bool{false, true}, events)

	unsubscribe()
	m.Set(false, errors.New("boom"))
	assert.Len(t, events, 2)
	assert.False(t, m.Online())
}

func TestCancelledCheckKeepsState(t *testing.T) {
	m := New(func(ctx context.Context) error { return ctx.Err() }, time.Minute, log.New(io.Discard))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.True(t, m.Check(ctx))
	assert.True(t, m.Online())
	assert.True(t, m.CheckedAt().IsZero())
}

func TestRunStopsWithContext(t *testing.T) {
	calls := make(chan struct{}, 10)
	m := New(func(ctx context.Context) error {
		calls <- struct{}{}
		return nil
	}, 10*time.Millisecond, log.New(io.Discard))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	<-calls
	<-calls
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

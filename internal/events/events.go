// Package events delivers run and test case lifecycle events to reporting
// listeners. Registration returns a handle so listeners can be removed in a
// deterministic order at teardown.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hqe/internal/domain"
)

// Kind identifies an event
type Kind string

const (
	RunStarted   Kind = "run_started"
	CaseStarted  Kind = "case_started"
	Label        Kind = "label"
	Step         Kind = "step"
	CaseFinished Kind = "case_finished"
	RunFinished  Kind = "run_finished"
)

// RunInfo describes the run as a whole.
type RunInfo struct {
	BaseURL  string
	Browser  string
	Driver   string
	Total    int
	Passed   int
	Failed   int
	Started  time.Time
	Finished time.Time
}

// Event is delivered to every registered listener. Case is set for all case
// events; Label, Step and Result only for their own kinds.
type Event struct {
	Kind   Kind
	Time   time.Time
	Case   *domain.TestCase
	Label  domain.Label
	Step   string
	Result *domain.CaseResult
	Run    *RunInfo
}

// Listener receives events.
type Listener interface {
	Handle(ctx context.Context, ev Event) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, ev Event) error

// Handle calls f(ctx, ev).
func (f ListenerFunc) Handle(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

type entry struct {
	id       uint64
	listener Listener
}

// Bus fans events out to listeners. It is safe for concurrent use.
type Bus struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners []entry
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{}
}

// Registration is returned by On and removes the listener again.
type Registration struct {
	bus  *Bus
	id   uint64
	once sync.Once
}

// On registers l. Listeners receive events in registration order.
func (b *Bus) On(l Listener) *Registration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.listeners = append(b.listeners, entry{id: b.nextID, listener: l})
	return &Registration{bus: b, id: b.nextID}
}

// Unregister removes the listener. Calling it more than once is a no-op.
func (r *Registration) Unregister() {
	if r == nil {
		return
	}
	r.once.Do(func() {
		r.bus.mu.Lock()
		defer r.bus.mu.Unlock()
		for i, e := range r.bus.listeners {
			if e.id == r.id {
				r.bus.listeners = append(r.bus.listeners[:i:i], r.bus.listeners[i+1:]...)
				return
			}
		}
	})
}

// Len returns the number of registered listeners.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Emit delivers ev synchronously to every listener and joins their errors.
// A failing listener does not stop delivery to the others.
func (b *Bus) Emit(ctx context.Context, ev Event) error {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	b.mu.RLock()
	listeners := make([]entry, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	var errList []error
	for _, e := range listeners {
		if err := safeHandle(ctx, e.listener, ev); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

func safeHandle(ctx context.Context, l Listener, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panicked on %s: %v", ev.Kind, r)
		}
	}()
	return l.Handle(ctx, ev)
}

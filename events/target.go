// Package events provides the host-side plumbing that drives an observer:
// event targets that emit scroll/resize/custom events, timers and a
// single-goroutine task loop.
package events

import (
	"errors"
	"sync"
)

// Handler is called when an event is dispatched. A returned error is reported
// back to the dispatcher.
type Handler func() error

// listener represents a registered event listener.
type listener struct {
	id      int
	handler Handler
	once    bool
}

// Target manages event listeners for one event-emitting object.
type Target struct {
	name      string
	listeners map[string][]listener
	nextID    int
	mu        sync.RWMutex
}

// NewTarget creates a new Target. The name is only used for diagnostics.
func NewTarget(name string) *Target {
	return &Target{
		name:      name,
		listeners: make(map[string][]listener),
	}
}

// Name returns the diagnostic name of the target.
func (t *Target) Name() string {
	return t.name
}

// Subscribe registers handler for eventType and returns a function that
// removes it again. Calling the returned function more than once is harmless.
func (t *Target) Subscribe(eventType string, handler func() error) (unsubscribe func()) {
	return t.add(eventType, handler, false)
}

// Once registers a handler that is removed after its first invocation.
func (t *Target) Once(eventType string, handler func() error) (unsubscribe func()) {
	return t.add(eventType, handler, true)
}

func (t *Target) add(eventType string, handler Handler, once bool) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	id := t.nextID
	t.listeners[eventType] = append(t.listeners[eventType], listener{
		id:      id,
		handler: handler,
		once:    once,
	})

	return func() { t.remove(eventType, id) }
}

func (t *Target) remove(eventType string, id int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	listeners := t.listeners[eventType]
	for i, l := range listeners {
		if l.id == id {
			t.listeners[eventType] = append(listeners[:i:i], listeners[i+1:]...)
			return
		}
	}
}

// Dispatch calls every listener registered for eventType, in registration
// order. Listeners added during dispatch are not called for this event.
// All listeners run even if one fails; their errors are joined.
func (t *Target) Dispatch(eventType string) error {
	t.mu.RLock()
	listeners := make([]listener, len(t.listeners[eventType]))
	copy(listeners, t.listeners[eventType])
	t.mu.RUnlock()

	var errs []error
	for _, l := range listeners {
		if l.once {
			t.remove(eventType, l.id)
		}
		if err := l.handler(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HasListeners returns true if there are any listeners for the event type.
func (t *Target) HasListeners(eventType string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.listeners[eventType]) > 0
}

// ListenerCount returns the number of listeners across all event types.
func (t *Target) ListenerCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, ls := range t.listeners {
		n += len(ls)
	}
	return n
}

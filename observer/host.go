package observer

import (
	"time"

	"github.com/chrisuehlinger/viewwatch/geometry"
)

// Element is an opaque handle to an observed thing. Handles are compared with
// ==, so they must be of a comparable type (typically a pointer).
type Element any

// RectangleProvider returns an element's current on-screen rectangle, in the
// same coordinate space as the viewport. An error means no geometry is
// available right now (for example, the element is detached).
type RectangleProvider interface {
	BoundingClientRect(e Element) (geometry.Rect, error)
}

// ViewportSource reports the sizes the primary viewport is derived from.
type ViewportSource interface {
	// DocumentSize is the intrinsic size of the document's root element.
	DocumentSize() geometry.Size
	// DisplaySize is the visible display area.
	DisplaySize() geometry.Size
}

// EventSource lets the observer listen to a named event on some object.
// Subscribe returns a function that removes the handler. An error returned by
// the handler should be reported to whoever raised the event.
type EventSource interface {
	Subscribe(event string, handler func() error) (unsubscribe func())
}

// Timer schedules a fire-once callback. There is no way to cancel it.
type Timer interface {
	AfterFunc(d time.Duration, f func())
}

// TimerFunc adapts a function to the Timer interface.
type TimerFunc func(d time.Duration, f func())

// AfterFunc calls fn(d, f).
func (fn TimerFunc) AfterFunc(d time.Duration, f func()) {
	fn(d, f)
}

// realTimer schedules on the Go runtime's timers. Callbacks run on their own
// goroutine, which is fine for the throttle since it only clears an atomic.
var realTimer = TimerFunc(func(d time.Duration, f func()) {
	time.AfterFunc(d, f)
})

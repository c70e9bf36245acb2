package scene

import (
	"github.com/pkg/errors"

	"github.com/chrisuehlinger/viewwatch/events"
	"github.com/chrisuehlinger/viewwatch/geometry"
)

// Element is a positioned box in a Document.
type Element struct {
	ID  string
	Tag string
	// Box is in page coordinates, before any scrolling.
	Box geometry.Rect
	// Scrollable marks a scroll container; its descendants move with its
	// scroll offset.
	Scrollable bool

	scrollX, scrollY float64

	parent   *Element
	children []*Element
	doc      *Document
	attached bool
	events   *events.Target
}

func (e *Element) String() string {
	if e.ID != "" {
		return e.Tag + "#" + e.ID
	}
	return e.Tag
}

// Parent returns the parent element, or nil for the document element.
func (e *Element) Parent() *Element {
	return e.parent
}

// Children returns the element's children.
func (e *Element) Children() []*Element {
	return append([]*Element(nil), e.children...)
}

// IsConnected reports whether the element is still part of its document.
func (e *Element) IsConnected() bool {
	return e.attached
}

// Events returns the element's event target.
func (e *Element) Events() *events.Target {
	return e.events
}

// Subscribe listens to an event on the element, so that an element can be
// handed to an observer directly as an event source.
func (e *Element) Subscribe(event string, handler func() error) func() {
	return e.events.Subscribe(event, handler)
}

// Scroll returns the element's own scroll offset.
func (e *Element) Scroll() (x, y float64) {
	return e.scrollX, e.scrollY
}

// BoundingClientRect returns the element's box relative to the display: its
// page box shifted by the page scroll and by the scroll of every scroll
// container it is nested in.
func (e *Element) BoundingClientRect() (geometry.Rect, error) {
	if !e.attached {
		return geometry.Rect{}, errors.Wrapf(ErrDetached, "%s", e)
	}
	dx, dy := -e.doc.scrollX, -e.doc.scrollY
	for p := e.parent; p != nil; p = p.parent {
		if p.Scrollable {
			dx -= p.scrollX
			dy -= p.scrollY
		}
	}
	return e.Box.Translate(dx, dy), nil
}

// ScrollTo scrolls a scroll container, clamped so its content stays in
// range, and dispatches "scroll" on it.
func (e *Element) ScrollTo(x, y float64) error {
	if !e.Scrollable {
		return errors.Wrapf(ErrNotScrollable, "%s", e)
	}
	extent := e.contentExtent()
	e.scrollX = clamp(x, 0, extent.Width-e.Box.Width)
	e.scrollY = clamp(y, 0, extent.Height-e.Box.Height)
	return e.events.Dispatch("scroll")
}

// contentExtent is the size spanned by the element's descendants, measured
// from the element's own origin.
func (e *Element) contentExtent() geometry.Size {
	var size geometry.Size
	var walk func(*Element)
	walk = func(n *Element) {
		for _, c := range n.children {
			size = size.Max(geometry.NewSize(c.Box.Right()-e.Box.X, c.Box.Bottom()-e.Box.Y))
			walk(c)
		}
	}
	walk(e)
	return size
}

// Detach removes the element and its subtree from the document. Handles stay
// valid but report ErrDetached for their geometry.
func (e *Element) Detach() {
	if e.parent != nil {
		siblings := e.parent.children
		for i, c := range siblings {
			if c == e {
				e.parent.children = append(siblings[:i:i], siblings[i+1:]...)
				break
			}
		}
	}
	var walk func(*Element)
	walk = func(n *Element) {
		n.attached = false
		if n.ID != "" && n.doc.byID[n.ID] == n {
			delete(n.doc.byID, n.ID)
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(e)
}

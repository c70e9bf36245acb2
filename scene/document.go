// Package scene is a small positioned-box document model. It plays the part of
// the browser for an observer: it knows where every element is, how far the
// page and its scroll containers are scrolled, how big the display is, and it
// emits scroll, resize and custom events.
package scene

import (
	"github.com/pkg/errors"

	"github.com/chrisuehlinger/viewwatch/events"
	"github.com/chrisuehlinger/viewwatch/geometry"
	"github.com/chrisuehlinger/viewwatch/observer"
)

var (
	// ErrDetached is returned for the geometry of an element that has been
	// removed from the document.
	ErrDetached = errors.New("element is not attached to the document")
	// ErrNotFound is returned when an id or handle does not name an element
	// of the document.
	ErrNotFound = errors.New("element not found")
	// ErrNotScrollable is returned when scrolling an element without overflow.
	ErrNotScrollable = errors.New("element is not a scroll container")
)

// Document holds the elements of a page and the state of its viewport.
type Document struct {
	root     *Element
	elements []*Element
	byID     map[string]*Element

	scrollX, scrollY float64
	display          geometry.Size

	window *events.Target
	events *events.Target
}

// NewDocument creates an empty document whose root element has no size,
// shown on a display of the given size.
func NewDocument(display geometry.Size) *Document {
	d := &Document{
		byID:    make(map[string]*Element),
		display: display,
		window:  events.NewTarget("window"),
		events:  events.NewTarget("document"),
	}
	d.root = &Element{Tag: "html", doc: d, attached: true, events: events.NewTarget("html")}
	d.elements = append(d.elements, d.root)
	return d
}

// Root returns the document element.
func (d *Document) Root() *Element {
	return d.root
}

// Window returns the target that emits "resize".
func (d *Document) Window() *events.Target {
	return d.window
}

// Events returns the target that emits "scroll" when the page scrolls.
func (d *Document) Events() *events.Target {
	return d.events
}

// Append creates an element under parent (the document element when nil).
// Box is in page coordinates. An empty id leaves the element anonymous.
func (d *Document) Append(parent *Element, tag, id string, box geometry.Rect) (*Element, error) {
	if parent == nil {
		parent = d.root
	}
	if parent.doc != d {
		return nil, errors.Wrap(ErrNotFound, "parent belongs to another document")
	}
	if id != "" {
		if _, exists := d.byID[id]; exists {
			return nil, errors.Errorf("duplicate element id %q", id)
		}
	}

	name := tag
	if id != "" {
		name = tag + "#" + id
	}
	e := &Element{
		ID:       id,
		Tag:      tag,
		Box:      box,
		parent:   parent,
		doc:      d,
		attached: parent.attached,
		events:   events.NewTarget(name),
	}
	parent.children = append(parent.children, e)
	d.elements = append(d.elements, e)
	if id != "" {
		d.byID[id] = e
	}
	return e, nil
}

// Element returns the element with the given id.
func (d *Document) Element(id string) (*Element, bool) {
	e, ok := d.byID[id]
	return e, ok
}

// Lookup is Element with an error for unknown ids.
func (d *Document) Lookup(id string) (*Element, error) {
	e, ok := d.byID[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "#%s", id)
	}
	return e, nil
}

// Elements returns the attached elements that have an id, in document order.
func (d *Document) Elements() []*Element {
	var out []*Element
	for _, e := range d.elements {
		if e.ID != "" && e.attached {
			out = append(out, e)
		}
	}
	return out
}

// DocumentSize returns the size of the document element's own box.
func (d *Document) DocumentSize() geometry.Size {
	return geometry.NewSize(d.root.Box.Width, d.root.Box.Height)
}

// DisplaySize returns the size of the visible display area.
func (d *Document) DisplaySize() geometry.Size {
	return d.display
}

// ContentSize returns the extent of all attached boxes, measured from the
// page origin. It bounds how far the page can scroll.
func (d *Document) ContentSize() geometry.Size {
	var size geometry.Size
	for _, e := range d.elements {
		if !e.attached {
			continue
		}
		size = size.Max(geometry.NewSize(e.Box.Right(), e.Box.Bottom()))
	}
	return size
}

// Scroll returns the page scroll offset.
func (d *Document) Scroll() (x, y float64) {
	return d.scrollX, d.scrollY
}

// BoundingClientRect returns the display-relative rectangle of e, which must
// be an element of this document. It satisfies observer.RectangleProvider.
func (d *Document) BoundingClientRect(e observer.Element) (geometry.Rect, error) {
	el, ok := e.(*Element)
	if !ok || el == nil || el.doc != d {
		return geometry.Rect{}, errors.Wrapf(ErrNotFound, "%v", e)
	}
	return el.BoundingClientRect()
}

// ScrollTo scrolls the page, clamped to the scrollable range, and dispatches
// "scroll". The dispatch error, if any, is returned.
func (d *Document) ScrollTo(x, y float64) error {
	content := d.ContentSize()
	d.scrollX = clamp(x, 0, content.Width-d.display.Width)
	d.scrollY = clamp(y, 0, content.Height-d.display.Height)
	return d.events.Dispatch("scroll")
}

// Resize changes the display size and dispatches "resize" on the window.
func (d *Document) Resize(width, height float64) error {
	d.display = geometry.NewSize(max(width, 0), max(height, 0))
	return d.window.Dispatch("resize")
}

// ScrollElementTo scrolls the scroll container with the given id and
// dispatches "scroll" on it.
func (d *Document) ScrollElementTo(id string, x, y float64) error {
	e, err := d.Lookup(id)
	if err != nil {
		return err
	}
	return e.ScrollTo(x, y)
}

// Emit dispatches a custom event. The target is an element id, or "window"
// or "document" for the page-level targets.
func (d *Document) Emit(target, event string) error {
	switch target {
	case "", "window":
		return d.window.Dispatch(event)
	case "document":
		return d.events.Dispatch(event)
	}
	e, err := d.Lookup(target)
	if err != nil {
		return err
	}
	return e.events.Dispatch(event)
}

// Remove detaches the element with the given id and its descendants.
func (d *Document) Remove(id string) error {
	e, err := d.Lookup(id)
	if err != nil {
		return err
	}
	e.Detach()
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	return min(max(v, lo), hi)
}

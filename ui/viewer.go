// Package ui shows a scene in a Fyne window and highlights the elements the
// observer reports as visible.
package ui

import (
	"fmt"
	"image/color"
	"sort"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"github.com/chrisuehlinger/viewwatch/config"
	"github.com/chrisuehlinger/viewwatch/observer"
	"github.com/chrisuehlinger/viewwatch/replay"
	"github.com/chrisuehlinger/viewwatch/scene"
)

var (
	hiddenColor  = color.NRGBA{R: 0x9e, G: 0x9e, B: 0x9e, A: 0x60}
	visibleColor = color.NRGBA{R: 0x2e, G: 0x7d, B: 0x32, A: 0xff}
)

// Viewer renders a scene inside a scroll container. Scrolling and resizing the
// container scroll and resize the scene, which in turn drives the observer.
type Viewer struct {
	doc    *scene.Document
	obs    *observer.Observer
	logger *zap.Logger

	boxes   map[*scene.Element]*canvas.Rectangle
	content *fyne.Container
	scroll  *container.Scroll
	area    *fyne.Container
	status  *widget.Label
	root    fyne.CanvasObject

	mu      sync.Mutex
	visible map[*scene.Element]float64
	// merge is set while Attach observes the initial elements, whose scoped
	// checks each deliver a separate batch.
	merge bool
	// programmatic is set while ScrollTo refreshes the scroll container.
	programmatic bool
}

// NewViewer builds the widgets for doc. Call Attach to start observing.
func NewViewer(doc *scene.Document, logger *zap.Logger) *Viewer {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := &Viewer{
		doc:     doc,
		logger:  logger,
		boxes:   make(map[*scene.Element]*canvas.Rectangle),
		visible: make(map[*scene.Element]float64),
	}

	var objects []fyne.CanvasObject
	for _, el := range doc.Elements() {
		rect := canvas.NewRectangle(hiddenColor)
		rect.StrokeColor = color.Black
		rect.StrokeWidth = 1
		v.boxes[el] = rect
		objects = append(objects, rect)
	}
	v.content = container.New(&sceneLayout{v: v}, objects...)

	v.scroll = container.NewScroll(v.content)
	v.scroll.OnScrolled = v.onScrolled

	v.area = container.New(&resizeLayout{v: v}, v.scroll)
	v.status = widget.NewLabel("No visible elements")
	v.root = container.NewBorder(nil, v.status, nil, nil, v.area)
	return v
}

// Content returns the top-level canvas object to place in a window.
func (v *Viewer) Content() fyne.CanvasObject {
	return v.root
}

// Attach creates the observer from oc and observes the elements named by ids.
// A nil timer uses real time for the throttle.
func (v *Viewer) Attach(oc config.ObserverConfig, ids []string, timer observer.Timer) error {
	opts, err := replay.Options(v.doc, oc, timer, v.logger)
	if err != nil {
		return err
	}
	obs, err := observer.New(v.Highlight, opts)
	if err != nil {
		return err
	}
	v.obs = obs

	v.merge = true
	defer func() { v.merge = false }()
	for _, id := range ids {
		el, err := v.doc.Lookup(id)
		if err != nil {
			return err
		}
		if err := obs.Observe(el); err != nil {
			return err
		}
	}
	return nil
}

// Highlight is the observer callback. The elements of the latest batch are
// drawn with an opacity that follows their ratio; everything else is greyed.
func (v *Viewer) Highlight(entries []observer.Entry, _ *observer.Observer) error {
	v.mu.Lock()
	if !v.merge {
		v.visible = make(map[*scene.Element]float64, len(entries))
	}
	for _, e := range entries {
		if el, ok := e.Target.(*scene.Element); ok {
			v.visible[el] = e.IntersectionRatio
		}
	}
	v.mu.Unlock()

	for el, rect := range v.boxes {
		if ratio, ok := v.Ratio(el.ID); ok {
			c := visibleColor
			c.A = uint8(64 + 191*ratio)
			rect.FillColor = c
		} else {
			rect.FillColor = hiddenColor
		}
		rect.Refresh()
	}
	v.status.SetText(v.summary())
	return nil
}

// Ratio returns the ratio of element id in the latest batch.
func (v *Viewer) Ratio(id string) (float64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for el, ratio := range v.visible {
		if el.ID == id {
			return ratio, true
		}
	}
	return 0, false
}

func (v *Viewer) summary() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.visible) == 0 {
		return "No visible elements"
	}
	parts := make([]string, 0, len(v.visible))
	for el, ratio := range v.visible {
		parts = append(parts, fmt.Sprintf("%s %.2f", el.ID, ratio))
	}
	sort.Strings(parts)
	return "Visible: " + strings.Join(parts, ", ")
}

// Status returns the status line text.
func (v *Viewer) Status() string {
	return v.status.Text
}

func (v *Viewer) onScrolled(pos fyne.Position) {
	if v.programmatic {
		return
	}
	x, y := float64(pos.X), float64(pos.Y)
	if sx, sy := v.doc.Scroll(); sx == x && sy == y {
		return
	}
	if err := v.doc.ScrollTo(x, y); err != nil {
		v.logger.Warn("scroll handler failed", zap.Error(err))
	}
	v.content.Refresh()
}

// ScrollTo moves the scroll container and the scene to (x, y).
func (v *Viewer) ScrollTo(x, y float64) error {
	v.programmatic = true
	v.scroll.Offset = fyne.NewPos(float32(x), float32(y))
	v.scroll.Refresh()
	v.programmatic = false
	if err := v.doc.ScrollTo(x, y); err != nil {
		return err
	}
	v.content.Refresh()
	return nil
}

// Close releases the observer's subscriptions.
func (v *Viewer) Close() {
	if v.obs != nil {
		v.obs.Close()
	}
}

// sceneLayout places each element's rectangle at its box in document
// coordinates, shifted by the scroll of any scrolling ancestor.
type sceneLayout struct {
	v *Viewer
}

func (l *sceneLayout) Layout(_ []fyne.CanvasObject, _ fyne.Size) {
	sx, sy := l.v.doc.Scroll()
	for el, rect := range l.v.boxes {
		r, err := el.BoundingClientRect()
		if err != nil {
			rect.Hide()
			continue
		}
		rect.Show()
		rect.Move(fyne.NewPos(float32(r.X+sx), float32(r.Y+sy)))
		rect.Resize(fyne.NewSize(float32(r.Width), float32(r.Height)))
	}
}

func (l *sceneLayout) MinSize(_ []fyne.CanvasObject) fyne.Size {
	size := l.v.doc.ContentSize()
	return fyne.NewSize(float32(size.Width), float32(size.Height))
}

// resizeLayout fills its area with the scroll container and reports size
// changes to the scene as a display resize.
type resizeLayout struct {
	v    *Viewer
	last fyne.Size
}

func (l *resizeLayout) Layout(objects []fyne.CanvasObject, size fyne.Size) {
	for _, o := range objects {
		o.Move(fyne.NewPos(0, 0))
		o.Resize(size)
	}
	if size == l.last {
		return
	}
	l.last = size
	if err := l.v.doc.Resize(float64(size.Width), float64(size.Height)); err != nil {
		l.v.logger.Warn("resize handler failed", zap.Error(err))
	}
}

func (l *resizeLayout) MinSize(_ []fyne.CanvasObject) fyne.Size {
	return fyne.NewSize(100, 100)
}

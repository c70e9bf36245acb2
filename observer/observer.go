// Package observer implements an intersection observer: it tracks a set of
// elements and, whenever the page scrolls, resizes or a custom trigger fires,
// reports which of them overlap the visible area and by how much.
//
// An Observer is not safe for concurrent use. All events, timers and calls
// into it are expected to come from a single goroutine (see events.Loop);
// only the throttle reset may arrive from elsewhere.
package observer

import (
	"reflect"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/chrisuehlinger/viewwatch/geometry"
)

// Entry describes one element that intersects the viewport during a check.
type Entry struct {
	// BoundingClientRect is the element's rectangle at the time of the check.
	BoundingClientRect geometry.Rect
	// IntersectionRatio is the visible fraction of the element, in (0, 1].
	IntersectionRatio float64
	// IsIntersecting is always true; elements that do not intersect are not reported.
	IsIntersecting bool
	Target         Element
	Time           time.Time
}

// Callback receives the batch of intersecting elements from one check. It is
// never called with an empty batch. A returned error is passed back to
// whatever triggered the check.
type Callback func(entries []Entry, o *Observer) error

// Observer watches elements for intersection with the viewport.
type Observer struct {
	callback Callback
	opts     Options
	margin   geometry.Margin

	registry *registry
	tracker  *tracker
	throttle *throttle
	logger   *zap.Logger

	checking bool
	// deferred holds elements observed from inside a callback. Their first
	// check runs once the running check has finished.
	deferred      []Element
	unsubscribers []func()
}

// New creates an observer and subscribes it to the configured event sources.
func New(callback Callback, opts Options) (*Observer, error) {
	if callback == nil {
		return nil, ErrConfiguration("a callback is required")
	}
	opts, margin, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	o := &Observer{
		callback: callback,
		opts:     opts,
		margin:   margin,
		registry: newRegistry(),
		logger:   opts.Logger,
	}
	o.tracker = &tracker{
		source:    opts.Viewport,
		rects:     opts.Rects,
		secondary: opts.SecondaryScrollArea,
		logger:    opts.Logger,
	}
	o.throttle = newThrottle(opts.Timer, opts.BlockingTime, o.Check)

	o.subscribe(opts.Root, "scroll")
	o.subscribe(opts.SecondaryEvents, "scroll")
	o.subscribe(opts.Window, "resize")
	if opts.Trigger != nil {
		o.subscribe(opts.Trigger.Source, opts.Trigger.Event)
	}

	o.logger.Debug("observer created",
		zap.Duration("blockingTime", opts.BlockingTime),
		zap.Bool("secondaryArea", opts.SecondaryScrollArea != nil),
		zap.Stringer("rootMargin", margin),
		zap.Float64s("threshold", opts.Threshold))
	return o, nil
}

func (o *Observer) subscribe(src EventSource, event string) {
	if src == nil {
		return
	}
	unsubscribe := src.Subscribe(event, o.handleEvent)
	o.unsubscribers = append(o.unsubscribers, unsubscribe)
}

// handleEvent is the throttled response to every subscribed event.
func (o *Observer) handleEvent() error {
	ran, err := o.throttle.trigger()
	if !ran {
		o.logger.Debug("event dropped by throttle", zap.Int64("dropped", o.throttle.dropped.Load()))
	}
	return err
}

// Observe starts watching e. If e was not already observed, a check scoped to
// e runs immediately so an element that is already visible is reported
// without waiting for the next event. When called from a callback, that check
// runs as soon as the current one returns.
func (o *Observer) Observe(e Element) error {
	if e == nil {
		return ErrConfiguration("cannot observe a nil element")
	}
	if !reflect.TypeOf(e).Comparable() {
		return ErrConfiguration("cannot observe an element of non-comparable type %T", e)
	}
	if !o.registry.add(e) {
		return nil
	}
	if o.checking {
		o.deferred = append(o.deferred, e)
		return nil
	}
	return o.check(e)
}

// Unobserve stops watching e. It is a no-op if e is not observed.
func (o *Observer) Unobserve(e Element) {
	if e == nil || !reflect.TypeOf(e).Comparable() {
		return
	}
	o.registry.remove(e)
}

// Disconnect stops watching every element. The observer stays subscribed to
// its event sources; use Close to release them.
func (o *Observer) Disconnect() {
	o.registry.clear()
}

// Close disconnects the observer and removes its event subscriptions. A
// pending throttle reset may still fire afterwards; it is harmless.
func (o *Observer) Close() {
	o.Disconnect()
	for _, unsubscribe := range o.unsubscribers {
		unsubscribe()
	}
	o.unsubscribers = nil
}

// TakeRecords is not supported: entries are only ever delivered to the callback.
func (o *Observer) TakeRecords() ([]Entry, error) {
	return nil, ErrNotSupported("takeRecords is not implemented")
}

// Observed reports whether e is being watched.
func (o *Observer) Observed(e Element) bool {
	if e == nil || !reflect.TypeOf(e).Comparable() {
		return false
	}
	return o.registry.contains(e)
}

// Len returns the number of observed elements.
func (o *Observer) Len() int {
	return o.registry.len()
}

// RootMargin returns the parsed rootMargin option.
func (o *Observer) RootMargin() geometry.Margin {
	return o.margin
}

// Thresholds returns the threshold option.
func (o *Observer) Thresholds() []float64 {
	return append([]float64(nil), o.opts.Threshold...)
}

// Check evaluates every observed element now, bypassing the throttle.
func (o *Observer) Check() error {
	return o.check(nil)
}

// check runs one evaluation, then the first checks of any elements observed
// by the callback meanwhile. A nil only means every observed element.
func (o *Observer) check(only Element) error {
	if o.checking {
		if o.registry.len() == 0 {
			return nil
		}
		return ErrReentrantCheck
	}
	err := o.evaluate(only)
	for len(o.deferred) > 0 {
		e := o.deferred[0]
		o.deferred = o.deferred[1:]
		err = multierr.Append(err, o.evaluate(e))
	}
	return err
}

// evaluate computes one batch and delivers it.
func (o *Observer) evaluate(only Element) error {
	if o.registry.len() == 0 {
		return nil
	}
	o.checking = true
	defer func() { o.checking = false }()

	var candidates []Element
	if only != nil {
		if !o.registry.contains(only) {
			return nil
		}
		candidates = []Element{only}
	} else {
		candidates = o.registry.snapshot()
	}

	primary := o.tracker.primary()

	// The secondary area is looked up at most once per check, and only when
	// some element is inside the primary viewport: an element outside the
	// primary viewport cannot be inside a sub-region of it.
	var (
		secondary       geometry.Viewport
		hasSecondary    bool
		secondaryLoaded bool
	)

	now := o.opts.Clock()
	var entries []Entry
	for _, e := range candidates {
		rect, err := o.opts.Rects.BoundingClientRect(e)
		if err != nil {
			o.logger.Warn("skipping element without geometry", zap.Error(err))
			continue
		}

		ratio := geometry.Ratio(primary, rect)
		if ratio > 0 && !secondaryLoaded {
			secondary, hasSecondary = o.tracker.secondaryViewport()
			secondaryLoaded = true
		}
		if ratio > 0 && hasSecondary {
			ratio = geometry.Ratio(secondary, rect)
		}
		if ratio <= 0 {
			continue
		}

		entries = append(entries, Entry{
			BoundingClientRect: rect,
			IntersectionRatio:  ratio,
			IsIntersecting:     true,
			Target:             e,
			Time:               now,
		})
	}

	o.logger.Debug("check complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("intersecting", len(entries)))

	if len(entries) == 0 {
		return nil
	}
	return o.callback(entries, o)
}

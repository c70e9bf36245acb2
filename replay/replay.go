// Package replay drives an observer over a parsed scene by executing the
// script of a config file against a virtual clock, and reports every batch the
// observer delivers.
package replay

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/chrisuehlinger/viewwatch/config"
	"github.com/chrisuehlinger/viewwatch/events"
	"github.com/chrisuehlinger/viewwatch/observer"
	"github.com/chrisuehlinger/viewwatch/scene"
)

// epoch anchors entry timestamps so replays are reproducible.
var epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Batch is one callback delivery.
type Batch struct {
	// Step is the index of the script step that caused the batch, or -1 for
	// the initial observe list.
	Step int
	// Cause describes the step.
	Cause string
	// At is the virtual time of the delivery.
	At      time.Duration
	Entries []observer.Entry
}

// IDs returns the ids of the batch's targets in delivery order.
func (b Batch) IDs() []string {
	ids := make([]string, len(b.Entries))
	for i, e := range b.Entries {
		ids[i] = targetID(e.Target)
	}
	return ids
}

func (b Batch) String() string {
	parts := make([]string, len(b.Entries))
	for i, e := range b.Entries {
		parts[i] = targetID(e.Target) + "=" + strconv.FormatFloat(e.IntersectionRatio, 'f', -1, 64)
	}
	return fmt.Sprintf("[%s] %s: %s", b.At, b.Cause, strings.Join(parts, " "))
}

func targetID(target observer.Element) string {
	if el, ok := target.(*scene.Element); ok {
		return el.ID
	}
	return fmt.Sprint(target)
}

// Run executes cfg's script against doc and returns every batch delivered. When
// out is non-nil each batch is also written to it as a line of text.
func Run(ctx context.Context, doc *scene.Document, cfg *config.Config, out io.Writer, logger *zap.Logger) ([]Batch, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	timers := events.NewTimerQueue()

	var (
		batches []Batch
		step    = -1
		cause   = "initial"
	)
	callback := func(entries []observer.Entry, _ *observer.Observer) error {
		b := Batch{Step: step, Cause: cause, At: timers.Now(), Entries: entries}
		batches = append(batches, b)
		if out != nil {
			if _, err := fmt.Fprintln(out, b.String()); err != nil {
				return errors.Wrap(err, "failed to write batch")
			}
		}
		return nil
	}

	opts, err := Options(doc, cfg.Observer, timers, logger)
	if err != nil {
		return nil, err
	}
	o, err := observer.New(callback, opts)
	if err != nil {
		return nil, err
	}
	defer o.Close()

	for _, id := range cfg.Observe {
		el, err := doc.Lookup(id)
		if err != nil {
			return batches, errors.Wrap(err, "observe")
		}
		if err := o.Observe(el); err != nil {
			return batches, err
		}
	}

	for i, s := range cfg.Script {
		if err := ctx.Err(); err != nil {
			return batches, err
		}
		step, cause = i, describe(s)
		logger.Debug("replay step", zap.Int("index", i), zap.String("step", cause))
		if err := apply(doc, o, timers, s); err != nil {
			return batches, errors.Wrapf(err, "script[%d] %s", i, cause)
		}
	}

	logger.Info("replay complete",
		zap.Int("steps", len(cfg.Script)),
		zap.Int("batches", len(batches)))
	return batches, nil
}

// Options builds observer options that wire the observer to doc's event
// targets and geometry.
func Options(doc *scene.Document, oc config.ObserverConfig, timer observer.Timer, logger *zap.Logger) (observer.Options, error) {
	opts := observer.Options{
		Viewport:     doc,
		Rects:        doc,
		Root:         doc.Events(),
		Window:       doc.Window(),
		RootMargin:   oc.RootMargin,
		Threshold:    oc.Threshold,
		BlockingTime: oc.BlockingTime(),
		Timer:        timer,
		Logger:       logger,
	}
	if q, ok := timer.(*events.TimerQueue); ok {
		opts.Clock = func() time.Time { return epoch.Add(q.Now()) }
	}
	if oc.SecondaryScrollArea != "" {
		el, err := doc.Lookup(oc.SecondaryScrollArea)
		if err != nil {
			return opts, errors.Wrap(err, "secondary scroll area")
		}
		opts.SecondaryScrollArea = el
	}
	if oc.Trigger != nil {
		src, err := EventSource(doc, oc.Trigger.Target)
		if err != nil {
			return opts, errors.Wrap(err, "trigger")
		}
		opts.Trigger = &observer.Trigger{Source: src, Event: oc.Trigger.Event}
	}
	return opts, nil
}

// EventSource resolves "window", "document" or an element id to its events.
func EventSource(doc *scene.Document, target string) (observer.EventSource, error) {
	switch target {
	case "", "window":
		return doc.Window(), nil
	case "document":
		return doc.Events(), nil
	}
	el, err := doc.Lookup(target)
	if err != nil {
		return nil, err
	}
	return el, nil
}

func apply(doc *scene.Document, o *observer.Observer, timers *events.TimerQueue, s config.Step) error {
	switch s.Kind() {
	case config.StepScroll:
		if s.Scroll.Target == "" || s.Scroll.Target == "document" {
			return doc.ScrollTo(s.Scroll.X, s.Scroll.Y)
		}
		return doc.ScrollElementTo(s.Scroll.Target, s.Scroll.X, s.Scroll.Y)
	case config.StepResize:
		return doc.Resize(s.Resize.Width, s.Resize.Height)
	case config.StepEmit:
		return doc.Emit(s.Emit.Target, s.Emit.Event)
	case config.StepWait:
		timers.Advance(time.Duration(*s.WaitMS) * time.Millisecond)
		return nil
	case config.StepObserve:
		el, err := doc.Lookup(s.Observe)
		if err != nil {
			return err
		}
		return o.Observe(el)
	case config.StepUnobserve:
		el, err := doc.Lookup(s.Unobserve)
		if err != nil {
			return err
		}
		o.Unobserve(el)
		return nil
	case config.StepDisconnect:
		o.Disconnect()
		return nil
	}
	return errors.New("step has no single action")
}

func describe(s config.Step) string {
	switch s.Kind() {
	case config.StepScroll:
		target := s.Scroll.Target
		if target == "" {
			target = "document"
		}
		return fmt.Sprintf("scroll %s to %g,%g", target, s.Scroll.X, s.Scroll.Y)
	case config.StepResize:
		return fmt.Sprintf("resize to %gx%g", s.Resize.Width, s.Resize.Height)
	case config.StepEmit:
		target := s.Emit.Target
		if target == "" {
			target = "window"
		}
		return fmt.Sprintf("emit %s on %s", s.Emit.Event, target)
	case config.StepWait:
		return fmt.Sprintf("wait %dms", *s.WaitMS)
	case config.StepObserve:
		return "observe " + s.Observe
	case config.StepUnobserve:
		return "unobserve " + s.Unobserve
	case config.StepDisconnect:
		return "disconnect"
	}
	return "invalid step"
}

package observer

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/chrisuehlinger/viewwatch/geometry"
)

// DefaultBlockingTime is the default throttle cooldown.
const DefaultBlockingTime = 10 * time.Millisecond

// Trigger names an additional event that causes a recheck, for widgets that
// move content without emitting scroll events (carousels and the like).
type Trigger struct {
	Source EventSource
	Event  string
}

// Options configures an Observer. Viewport and Rects are required; everything
// else has a default.
type Options struct {
	// Viewport supplies the document and display sizes for the primary viewport.
	Viewport ViewportSource
	// Rects supplies element rectangles, including the secondary scroll area's.
	Rects RectangleProvider

	// Root emits "scroll" for the primary viewport.
	Root EventSource
	// Window emits "resize".
	Window EventSource

	// SecondaryScrollArea, when set, is an additional clipping region applied
	// after the primary viewport.
	SecondaryScrollArea Element
	// SecondaryEvents emits "scroll" for the secondary area. When nil and
	// SecondaryScrollArea is itself an EventSource, that is used.
	SecondaryEvents EventSource

	// Trigger is an optional custom recheck event.
	Trigger *Trigger

	// RootMargin is validated but not applied to the geometry.
	RootMargin string
	// Threshold is not applied; any ratio above 0 is reported. Values outside
	// [0, 1] are dropped with a warning.
	Threshold []float64

	// BlockingTime is the cooldown during which further events are dropped.
	// Zero selects DefaultBlockingTime; use NoBlocking to disable the cooldown.
	BlockingTime time.Duration
	// Timer schedules throttle resets. Defaults to the Go runtime's timers.
	Timer Timer

	Logger *zap.Logger
	// Clock stamps entries. Defaults to time.Now.
	Clock func() time.Time
}

// NoBlocking is a BlockingTime that reopens the throttle on the timer's next
// tick instead of after a cooldown.
const NoBlocking time.Duration = -1

// withDefaults validates the options and fills in defaults.
func (o Options) withDefaults() (Options, geometry.Margin, error) {
	if o.Viewport == nil {
		return o, geometry.Margin{}, ErrConfiguration("a viewport source is required")
	}
	if o.Rects == nil {
		return o, geometry.Margin{}, ErrConfiguration("a rectangle provider is required")
	}

	if o.Trigger != nil {
		if o.Trigger.Source == nil {
			return o, geometry.Margin{}, ErrConfiguration("trigger event %q has no source", o.Trigger.Event)
		}
		if o.Trigger.Event == "" {
			return o, geometry.Margin{}, ErrConfiguration("trigger source has no event name")
		}
	}

	if o.RootMargin == "" {
		o.RootMargin = "0px"
	}
	margin, err := geometry.ParseMargin(o.RootMargin)
	if err != nil {
		return o, geometry.Margin{}, ErrConfiguration("%v", err)
	}


	switch {
	case o.BlockingTime == 0:
		o.BlockingTime = DefaultBlockingTime
	case o.BlockingTime == NoBlocking:
		o.BlockingTime = 0
	case o.BlockingTime < 0:
		return o, geometry.Margin{}, ErrConfiguration("blocking time %v is negative", o.BlockingTime)
	}

	if o.Timer == nil {
		o.Timer = realTimer
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}

	thresholds := make([]float64, 0, len(o.Threshold))
	for _, th := range o.Threshold {
		if th < 0 || th > 1 || math.IsNaN(th) {
			o.Logger.Warn("ignoring threshold outside [0, 1]", zap.Float64("threshold", th))
			continue
		}
		thresholds = append(thresholds, th)
	}
	if len(thresholds) == 0 {
		thresholds = []float64{0}
	}
	o.Threshold = thresholds
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.SecondaryScrollArea != nil && o.SecondaryEvents == nil {
		if src, ok := o.SecondaryScrollArea.(EventSource); ok {
			o.SecondaryEvents = src
		}
	}
	return o, margin, nil
}

package observer

import (
	"go.uber.org/zap"

	"github.com/chrisuehlinger/viewwatch/geometry"
)

// tracker snapshots the primary and secondary viewports on demand. Nothing
// is cached between checks.
type tracker struct {
	source    ViewportSource
	rects     RectangleProvider
	secondary Element
	logger    *zap.Logger
}

// primary returns a frame pinned at the origin and sized to the larger of the
// document and the display. Honouring a root other than the whole display is
// not supported.
func (t *tracker) primary() geometry.Viewport {
	size := t.source.DocumentSize().Max(t.source.DisplaySize())
	return geometry.ViewportFromSize(size)
}

// secondaryViewport returns the current bounds of the secondary scroll area.
// ok is false when no secondary area is configured. When the area's geometry
// is unavailable the empty frame is returned, so nothing passes through it.
func (t *tracker) secondaryViewport() (v geometry.Viewport, ok bool) {
	if t.secondary == nil {
		return geometry.Viewport{}, false
	}
	rect, err := t.rects.BoundingClientRect(t.secondary)
	if err != nil {
		t.logger.Warn("secondary scroll area has no geometry", zap.Error(err))
		return geometry.Viewport{}, true
	}
	return geometry.ViewportFromRect(rect), true
}

package geometry

import "math"

// Viewport is the clipping frame that element rectangles are tested against.
type Viewport struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// ViewportFromRect returns the viewport covering r, with its edges normalised.
func ViewportFromRect(r Rect) Viewport {
	return Viewport{
		X:      r.Left(),
		Y:      r.Top(),
		Width:  r.Right() - r.Left(),
		Height: r.Bottom() - r.Top(),
	}
}

// ViewportFromSize returns a viewport of the given size pinned at the origin.
// Negative dimensions are clamped to 0.
func ViewportFromSize(s Size) Viewport {
	return Viewport{Width: max(s.Width, 0), Height: max(s.Height, 0)}
}

// Translate returns a new Viewport moved by (dx, dy).
func (v Viewport) Translate(dx, dy float64) Viewport {
	return Viewport{X: v.X + dx, Y: v.Y + dy, Width: v.Width, Height: v.Height}
}

// Ratio returns the fraction of r's own area that lies inside v, in [0, 1].
//
// A rectangle with no area (zero width or height) has ratio 0; the 0/0 case is
// never allowed to surface as NaN.
func Ratio(v Viewport, r Rect) float64 {
	left := max(v.X, r.Left())
	right := min(v.X+v.Width, r.Right())
	top := max(v.Y, r.Top())
	bottom := min(v.Y+v.Height, r.Bottom())

	overlapWidth := max(0, right-left)
	overlapHeight := max(0, bottom-top)

	area := r.Area()
	if area <= 0 {
		return 0
	}

	ratio := overlapWidth * overlapHeight / area
	if math.IsNaN(ratio) || ratio <= 0 {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}

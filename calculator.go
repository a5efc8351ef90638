package cropview

import "math"

// MinSelectionSize is the floor, in layout units, for either selection
// dimension. Corner drags stop at this floor instead of producing a
// degenerate rectangle.
const MinSelectionSize = 1.0

// Calculator computes selection geometry for one fit mode. All operations
// are pure functions of their inputs; the fit mode only decides which axis
// is dominant for sizing and for the viewport-to-pixel scale.
type Calculator struct {
	mode FitMode
}

// NewCalculator returns the calculator strategy for mode.
func NewCalculator(mode FitMode) Calculator {
	return Calculator{mode: mode}
}

// Mode returns the fit mode this calculator was built for.
func (c Calculator) Mode() FitMode { return c.mode }

// InitialRect produces a selection centered in imageRect whose dominant-axis
// extent is sizeFraction of imageRect's. With aspect (width/height) set, the
// other axis is derived from it and the whole rectangle is scaled down if it
// would overflow imageRect. aspect <= 0 means unconstrained; sizeFraction
// outside (0, 1] falls back to 1.
func (c Calculator) InitialRect(imageRect Rect, aspect, sizeFraction float64) Rect {
	if sizeFraction <= 0 || sizeFraction > 1 {
		sizeFraction = 1
	}

	var w, h float64
	if aspect <= 0 {
		w = imageRect.Width * sizeFraction
		h = imageRect.Height * sizeFraction
	} else {
		if c.mode == FitHeight {
			h = imageRect.Height * sizeFraction
			w = h * aspect
		} else {
			w = imageRect.Width * sizeFraction
			h = w / aspect
		}
		if s := math.Min(imageRect.Width/w, imageRect.Height/h); s < 1 {
			w *= s
			h *= s
		}
	}

	center := imageRect.Center()
	return Rect{Left: center.X - w/2, Top: center.Y - h/2, Width: w, Height: h}
}

// ScreenSizeRatio converts viewport-space lengths to source-pixel lengths
// for the current pairing: source pixels per layout unit along the dominant
// axis.
func (c Calculator) ScreenSizeRatio(sourcePixels Size, imageRect Rect) float64 {
	if c.mode == FitHeight {
		return sourcePixels.Height / imageRect.Height
	}
	return sourcePixels.Width / imageRect.Width
}

// MoveSelection translates current by (dx, dy) and clamps each axis
// independently so the result stays inside imageRect. A translation that
// already fits is returned exactly.
func (c Calculator) MoveSelection(current Rect, dx, dy float64, imageRect Rect) Rect {
	r := current.Translate(dx, dy)
	if r.Right() > imageRect.Right() {
		r.Left = imageRect.Right() - r.Width
	}
	if r.Left < imageRect.Left {
		r.Left = imageRect.Left
	}
	if r.Bottom() > imageRect.Bottom() {
		r.Top = imageRect.Bottom() - r.Height
	}
	if r.Top < imageRect.Top {
		r.Top = imageRect.Top
	}
	return r
}

// MoveCorner resizes current by dragging one corner by (dx, dy) while the
// opposite corner stays fixed. With aspect (width/height) set, the axis with
// the larger drag component wins and the other is derived from the ratio.
// The result is clamped into imageRect, shrinking toward the pivot so both
// the pivot and the ratio survive clamping, and never drops below the
// minimum size floor.
func (c Calculator) MoveCorner(corner Corner, current Rect, dx, dy float64, imageRect Rect, aspect float64) Rect {
	pivot := current.CornerPoint(corner.Opposite())
	moved := current.CornerPoint(corner)
	moved.X += dx
	moved.Y += dy

	// The dragged corner keeps its quadrant relative to the pivot; a drag
	// past the pivot stops at the size floor rather than flipping the rect.
	dirX, dirY := 1.0, 1.0
	if corner == TopLeft || corner == BottomLeft {
		dirX = -1
	}
	if corner == TopLeft || corner == TopRight {
		dirY = -1
	}

	w := math.Max((moved.X-pivot.X)*dirX, MinSelectionSize)
	h := math.Max((moved.Y-pivot.Y)*dirY, MinSelectionSize)

	if aspect > 0 {
		if math.Abs(dx) >= math.Abs(dy) {
			h = w / aspect
		} else {
			w = h * aspect
		}
		if s := math.Max(MinSelectionSize/w, MinSelectionSize/h); s > 1 {
			w *= s
			h *= s
		}
	}

	maxW := imageRect.Right() - pivot.X
	if dirX < 0 {
		maxW = pivot.X - imageRect.Left
	}
	maxH := imageRect.Bottom() - pivot.Y
	if dirY < 0 {
		maxH = pivot.Y - imageRect.Top
	}
	if aspect > 0 {
		if s := math.Min(maxW/w, maxH/h); s < 1 {
			w *= s
			h *= s
		}
	} else {
		w = math.Min(w, maxW)
		h = math.Min(h, maxH)
	}

	r := Rect{Width: w, Height: h}
	if dirX > 0 {
		r.Left = pivot.X
	} else {
		r.Left = pivot.X - w
	}
	if dirY > 0 {
		r.Top = pivot.Y
	} else {
		r.Top = pivot.Y - h
	}
	return r
}

// Correct clamps an externally supplied rectangle into imageRect: dimensions
// are capped to imageRect's and the origin is pinned so the rect fits.
// Correct is idempotent.
func (c Calculator) Correct(r Rect, imageRect Rect) Rect {
	w := math.Min(math.Max(r.Width, MinSelectionSize), imageRect.Width)
	h := math.Min(math.Max(r.Height, MinSelectionSize), imageRect.Height)
	left := clamp(r.Left, imageRect.Left, imageRect.Right()-w)
	top := clamp(r.Top, imageRect.Top, imageRect.Bottom()-h)
	return Rect{Left: left, Top: top, Width: w, Height: h}
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	return math.Min(math.Max(v, lo), hi)
}

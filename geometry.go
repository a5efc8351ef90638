package cropview

import "fmt"

// Point is a position in viewport or pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair. Both dimensions are non-negative.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// AspectRatio returns width/height, or 0 for a degenerate size.
func (s Size) AspectRatio() float64 {
	if s.Height <= 0 {
		return 0
	}
	return s.Width / s.Height
}

// IsZero reports whether either dimension is missing.
func (s Size) IsZero() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Rect is an axis-aligned rectangle defined by its top-left corner and size.
// Rects are always normalized: Width and Height never go negative.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RectFromPoints returns the normalized rectangle spanning a and b.
func RectFromPoints(a, b Point) Rect {
	left, right := a.X, b.X
	if right < left {
		left, right = right, left
	}
	top, bottom := a.Y, b.Y
	if bottom < top {
		top, bottom = bottom, top
	}
	return Rect{Left: left, Top: top, Width: right - left, Height: bottom - top}
}

func (r Rect) Right() float64  { return r.Left + r.Width }
func (r Rect) Bottom() float64 { return r.Top + r.Height }

func (r Rect) Size() Size { return Size{Width: r.Width, Height: r.Height} }

func (r Rect) Center() Point {
	return Point{X: r.Left + r.Width/2, Y: r.Top + r.Height/2}
}

// AspectRatio returns width/height, or 0 for a degenerate rectangle.
func (r Rect) AspectRatio() float64 { return r.Size().AspectRatio() }

// Translate returns the rectangle shifted by (dx, dy).
func (r Rect) Translate(dx, dy float64) Rect {
	return Rect{Left: r.Left + dx, Top: r.Top + dy, Width: r.Width, Height: r.Height}
}

// ContainsRect reports whether o lies fully inside r, with a small tolerance
// so rectangles produced by clamping arithmetic still count as contained.
func (r Rect) ContainsRect(o Rect) bool {
	const eps = 1e-9
	return o.Left >= r.Left-eps && o.Top >= r.Top-eps &&
		o.Right() <= r.Right()+eps && o.Bottom() <= r.Bottom()+eps
}

// Corner identifies one of the four draggable selection handles.
type Corner int

const (
	TopLeft Corner = iota
	TopRight
	BottomLeft
	BottomRight
)

func (c Corner) String() string {
	switch c {
	case TopLeft:
		return "top-left"
	case TopRight:
		return "top-right"
	case BottomLeft:
		return "bottom-left"
	case BottomRight:
		return "bottom-right"
	}
	return fmt.Sprintf("Corner(%d)", int(c))
}

// Opposite returns the pivot corner for a drag on c.
func (c Corner) Opposite() Corner {
	switch c {
	case TopLeft:
		return BottomRight
	case TopRight:
		return BottomLeft
	case BottomLeft:
		return TopRight
	default:
		return TopLeft
	}
}

// CornerPoint returns the coordinates of the named corner.
func (r Rect) CornerPoint(c Corner) Point {
	switch c {
	case TopLeft:
		return Point{X: r.Left, Y: r.Top}
	case TopRight:
		return Point{X: r.Right(), Y: r.Top}
	case BottomLeft:
		return Point{X: r.Left, Y: r.Bottom()}
	default:
		return Point{X: r.Right(), Y: r.Bottom()}
	}
}

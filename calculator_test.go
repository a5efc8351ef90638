package cropview

import (
	"math"
	"testing"
)

func TestInitialRectUnconstrained(t *testing.T) {
	calc := NewCalculator(FitWidth)
	imageRect := Rect{Left: 0, Top: 300, Width: 400, Height: 200}

	if got := calc.InitialRect(imageRect, 0, 1); !rectsEqual(got, imageRect) {
		t.Fatalf("full-size selection should equal image rect, got %+v", got)
	}

	got := calc.InitialRect(imageRect, 0, 0.5)
	want := Rect{Left: 100, Top: 350, Width: 200, Height: 100}
	if !rectsEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestInitialRectSquareAspect(t *testing.T) {
	calc := NewCalculator(FitWidth)
	imageRect := Rect{Left: 0, Top: 300, Width: 400, Height: 200}

	// Width-dominant sizing would make a 400x400 square; it must shrink to
	// stay inside the 200-unit-tall image rect.
	got := calc.InitialRect(imageRect, 1, 1)
	want := Rect{Left: 100, Top: 300, Width: 200, Height: 200}
	if !rectsEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestInitialRectFitHeight(t *testing.T) {
	calc := NewCalculator(FitHeight)
	imageRect := Rect{Left: 300, Top: 0, Width: 200, Height: 400}

	got := calc.InitialRect(imageRect, 0.5, 0.5)
	if !approxEqual(got.Height, 200) || !approxEqual(got.Width, 100) {
		t.Fatalf("height-dominant sizing expected 100x200, got %+v", got)
	}
	if center := got.Center(); !approxEqual(center.X, 400) || !approxEqual(center.Y, 200) {
		t.Fatalf("selection should stay centered, got center %+v", center)
	}
}

func TestMoveSelectionClampsLeft(t *testing.T) {
	calc := NewCalculator(FitWidth)
	imageRect := Rect{Left: 0, Top: 0, Width: 400, Height: 200}
	current := Rect{Left: 10, Top: 10, Width: 100, Height: 100}

	got := calc.MoveSelection(current, -20, 0, imageRect)
	want := Rect{Left: 0, Top: 10, Width: 100, Height: 100}
	if !rectsEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestMoveSelectionExactWhenInside(t *testing.T) {
	calc := NewCalculator(FitWidth)
	imageRect := Rect{Left: 0, Top: 0, Width: 400, Height: 200}
	current := Rect{Left: 50, Top: 50, Width: 100, Height: 100}

	got := calc.MoveSelection(current, 30, -20, imageRect)
	want := Rect{Left: 80, Top: 30, Width: 100, Height: 100}
	if !rectsEqual(got, want) {
		t.Fatalf("unclamped move should be exact, got %+v", got)
	}
}

func TestMoveSelectionAlwaysContained(t *testing.T) {
	calc := NewCalculator(FitWidth)
	imageRect := Rect{Left: 10, Top: 20, Width: 300, Height: 150}
	current := Rect{Left: 50, Top: 50, Width: 80, Height: 60}

	deltas := []struct{ dx, dy float64 }{
		{1000, 0}, {-1000, 0}, {0, 1000}, {0, -1000}, {500, -500}, {-3, 7},
	}
	for _, d := range deltas {
		got := calc.MoveSelection(current, d.dx, d.dy, imageRect)
		if !imageRect.ContainsRect(got) {
			t.Fatalf("delta (%v,%v): result %+v escapes image rect", d.dx, d.dy, got)
		}
		if !approxEqual(got.Width, current.Width) || !approxEqual(got.Height, current.Height) {
			t.Fatalf("delta (%v,%v): move changed the size: %+v", d.dx, d.dy, got)
		}
	}
}

func TestMoveCornerSquareDominantAxis(t *testing.T) {
	calc := NewCalculator(FitWidth)
	imageRect := Rect{Left: 0, Top: 0, Width: 400, Height: 200}
	current := Rect{Left: 50, Top: 50, Width: 100, Height: 100}

	// Horizontal drag dominates, so the width wins and the height follows.
	got := calc.MoveCorner(BottomRight, current, 50, 10, imageRect, 1)
	if tl := got.CornerPoint(TopLeft); !approxEqual(tl.X, 50) || !approxEqual(tl.Y, 50) {
		t.Fatalf("pivot moved: %+v", tl)
	}
	if !approxEqual(got.Width, got.Height) {
		t.Fatalf("expected a square, got %+v", got)
	}
	if !approxEqual(got.Width, 150) {
		t.Fatalf("expected width 150, got %+v", got)
	}
}

func TestMoveCornerPivotAndRatioStable(t *testing.T) {
	calc := NewCalculator(FitWidth)
	imageRect := Rect{Left: 0, Top: 0, Width: 400, Height: 200}
	const aspect = 1.5

	corners := []Corner{TopLeft, TopRight, BottomLeft, BottomRight}
	drags := []struct{ dx, dy float64 }{
		{15, 4}, {-8, 22}, {3, -3}, {-40, -10}, {120, 60},
	}

	for _, corner := range corners {
		current := calc.InitialRect(imageRect, aspect, 0.6)
		for _, d := range drags {
			pivotBefore := current.CornerPoint(corner.Opposite())
			current = calc.MoveCorner(corner, current, d.dx, d.dy, imageRect, aspect)

			pivotAfter := current.CornerPoint(corner.Opposite())
			if !approxEqual(pivotBefore.X, pivotAfter.X) || !approxEqual(pivotBefore.Y, pivotAfter.Y) {
				t.Fatalf("corner %v drag %+v: pivot moved from %+v to %+v", corner, d, pivotBefore, pivotAfter)
			}
			if ratio := current.AspectRatio(); math.Abs(ratio-aspect) > 1e-6 {
				t.Fatalf("corner %v drag %+v: ratio %v, want %v", corner, d, ratio, aspect)
			}
			if !imageRect.ContainsRect(current) {
				t.Fatalf("corner %v drag %+v: %+v escapes image rect", corner, d, current)
			}
		}
	}
}

func TestMoveCornerRespectsMinimumSize(t *testing.T) {
	calc := NewCalculator(FitWidth)
	imageRect := Rect{Left: 0, Top: 0, Width: 400, Height: 200}
	current := Rect{Left: 50, Top: 50, Width: 100, Height: 100}

	// Drag the bottom-right corner well past the pivot, repeatedly.
	for i := 0; i < 5; i++ {
		current = calc.MoveCorner(BottomRight, current, -500, -500, imageRect, 0)
		if current.Width < MinSelectionSize || current.Height < MinSelectionSize {
			t.Fatalf("iteration %d: selection degenerated to %+v", i, current)
		}
	}
	if !approxEqual(current.Width, MinSelectionSize) || !approxEqual(current.Height, MinSelectionSize) {
		t.Fatalf("expected selection pinned at the floor, got %+v", current)
	}
	if tl := current.CornerPoint(TopLeft); !approxEqual(tl.X, 50) || !approxEqual(tl.Y, 50) {
		t.Fatalf("pivot moved while shrinking: %+v", tl)
	}
}

func TestMoveCornerUnconstrainedClamp(t *testing.T) {
	calc := NewCalculator(FitWidth)
	imageRect := Rect{Left: 0, Top: 0, Width: 400, Height: 200}
	current := Rect{Left: 50, Top: 50, Width: 100, Height: 100}

	got := calc.MoveCorner(BottomRight, current, 1000, 1000, imageRect, 0)
	want := Rect{Left: 50, Top: 50, Width: 350, Height: 150}
	if !rectsEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestCorrectIdempotent(t *testing.T) {
	calc := NewCalculator(FitWidth)
	imageRect := Rect{Left: 0, Top: 300, Width: 400, Height: 200}

	rects := []Rect{
		{Left: 10, Top: 310, Width: 100, Height: 50},
		{Left: -50, Top: 0, Width: 100, Height: 50},
		{Left: 390, Top: 490, Width: 100, Height: 100},
		{Left: 0, Top: 0, Width: 1000, Height: 1000},
		{Left: 200, Top: 400, Width: 0, Height: 0},
	}
	for _, r := range rects {
		once := calc.Correct(r, imageRect)
		twice := calc.Correct(once, imageRect)
		if !rectsEqual(once, twice) {
			t.Fatalf("correct not idempotent for %+v: %+v then %+v", r, once, twice)
		}
		if !imageRect.ContainsRect(once) {
			t.Fatalf("correct(%+v) = %+v escapes image rect", r, once)
		}
	}
}

func TestScreenSizeRatio(t *testing.T) {
	pixels := Size{Width: 800, Height: 400}

	widthCalc := NewCalculator(FitWidth)
	if got := widthCalc.ScreenSizeRatio(pixels, Rect{Width: 400, Height: 200}); !approxEqual(got, 2) {
		t.Fatalf("fit-width ratio: got %v, want 2", got)
	}

	heightCalc := NewCalculator(FitHeight)
	if got := heightCalc.ScreenSizeRatio(pixels, Rect{Width: 200, Height: 100}); !approxEqual(got, 4) {
		t.Fatalf("fit-height ratio: got %v, want 4", got)
	}
}

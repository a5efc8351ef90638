package cropview

// FitMode says which viewport dimension the displayed image exactly fills.
// It is derived once per image/viewport pairing and is not user-settable.
type FitMode int

const (
	// FitWidth scales the image so its width matches the viewport width.
	FitWidth FitMode = iota
	// FitHeight scales the image so its height matches the viewport height.
	FitHeight
)

func (m FitMode) String() string {
	if m == FitHeight {
		return "fit-height"
	}
	return "fit-width"
}

// ResolveFit decides how an image with the given aspect ratio fits into the
// viewport and returns the rectangle it occupies there. An image relatively
// taller than the viewport fits by height, a relatively wider one by width;
// the free axis is centered. Callers guarantee positive dimensions.
func ResolveFit(viewport Size, imageAspect float64) (FitMode, Rect) {
	if imageAspect < viewport.AspectRatio() {
		height := viewport.Height
		width := height * imageAspect
		return FitHeight, Rect{
			Left:   (viewport.Width - width) / 2,
			Top:    0,
			Width:  width,
			Height: height,
		}
	}
	width := viewport.Width
	height := width / imageAspect
	return FitWidth, Rect{
		Left:   0,
		Top:    (viewport.Height - height) / 2,
		Width:  width,
		Height: height,
	}
}

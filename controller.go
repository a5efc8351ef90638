package cropview

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// CropStatus is the lifecycle of the selection controller.
type CropStatus int

const (
	StatusIdle CropStatus = iota
	StatusLoading
	StatusReady
	StatusCropping
)

func (s CropStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusCropping:
		return "cropping"
	}
	return "unknown"
}

// ErrInvalidState is returned for operations invoked before an image has
// been successfully decoded.
var ErrInvalidState = errors.New("no image decoded yet")

// ErrFixedSelection is returned for corner and area mutations when the
// controller was configured with a fixed selection.
var ErrFixedSelection = errors.New("selection mutation disabled by fixed-aspect configuration")

// Config configures a Controller at construction.
type Config struct {
	// AspectRatio constrains the selection's width/height ratio; 0 means
	// unconstrained. Circle mode overrides it with 1.
	AspectRatio float64
	// FixedAspect disables corner resizes and externally supplied
	// rectangles/areas entirely.
	FixedAspect bool
	// Circle starts the controller in circle mode.
	Circle bool
	// InitialSizeFraction sizes the initial selection along the dominant
	// axis of the fitted image; values outside (0, 1] mean 1.
	InitialSizeFraction float64
	// InitialArea, if set, seeds the first selection from a pixel-space
	// rectangle instead of InitialSizeFraction.
	InitialArea *Rect

	// OnStatus is invoked on every status transition.
	OnStatus func(CropStatus)
	// OnSelection is invoked whenever the selection rectangle changes.
	OnSelection func(Rect)
	// OnCrop receives the encoded result of a completed crop.
	OnCrop func([]byte)
	// OnError receives decode and crop failures.
	OnError func(error)

	// Pipeline overrides the default ImagingPipeline, mainly for tests.
	Pipeline Pipeline
	// Logger defaults to a no-op logger when nil.
	Logger *zerolog.Logger
}

// Controller owns the selection rectangle and the crop status. Geometry
// updates are synchronous and cheap; decode and crop run on background
// goroutines and their results are dropped if a newer submission has been
// dispatched in the meantime.
type Controller struct {
	cfg      Config
	log      zerolog.Logger
	pipeline Pipeline

	mu              sync.Mutex
	status          CropStatus
	viewport        Size
	calc            Calculator
	imageRect       Rect
	selection       Rect
	aspect          float64
	circle          bool
	source          *SourceImage
	usedInitialArea bool

	// Generation tokens for the staleness rule: a background result is
	// applied only if its generation still matches the counter.
	decodeGen uint64
	cropGen   uint64
}

// NewController creates an idle controller. No image is loaded yet; most
// operations return ErrInvalidState until SetImage completes.
func NewController(cfg Config) *Controller {
	if cfg.Pipeline == nil {
		cfg.Pipeline = NewImagingPipeline()
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Controller{
		cfg:      cfg,
		log:      logger,
		pipeline: cfg.Pipeline,
		status:   StatusIdle,
		aspect:   cfg.AspectRatio,
		circle:   cfg.Circle,
	}
}

// Status returns the current lifecycle status.
func (c *Controller) Status() CropStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Selection returns the current selection rectangle in viewport space.
func (c *Controller) Selection() Rect {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection
}

// ImageRect returns the rectangle the fitted image occupies in the viewport.
func (c *Controller) ImageRect() Rect {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.imageRect
}

// FitMode returns the fit mode of the current image/viewport pairing.
func (c *Controller) FitMode() FitMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calc.Mode()
}

// SetImage submits new source bytes. The decode runs in the background; on
// success the image rectangle and a fresh initial selection are computed and
// the status becomes Ready. A submission superseded by a newer SetImage is
// discarded when it completes.
func (c *Controller) SetImage(ctx context.Context, data []byte) {
	c.mu.Lock()
	c.decodeGen++
	c.cropGen++ // in-flight crops of the old image are stale too
	gen := c.decodeGen
	changed := c.setStatusLocked(StatusLoading)
	c.mu.Unlock()
	c.reportStatus(StatusLoading, changed)

	go func() {
		src, err := c.pipeline.Decode(ctx, data)

		c.mu.Lock()
		if gen != c.decodeGen {
			c.mu.Unlock()
			c.log.Debug().Uint64("generation", gen).Msg("discarding stale decode result")
			return
		}
		if err != nil {
			// Roll back to the pre-submission status.
			rollback := StatusIdle
			if c.source != nil {
				rollback = StatusReady
			}
			changed := c.setStatusLocked(rollback)
			c.mu.Unlock()
			c.log.Error().Err(err).Msg("failed to decode image")
			c.reportStatus(rollback, changed)
			c.reportError(err)
			return
		}
		c.source = src
		if !c.viewport.IsZero() {
			c.layoutLocked()
		}
		changed := c.setStatusLocked(StatusReady)
		sel := c.selection
		c.mu.Unlock()
		c.reportStatus(StatusReady, changed)
		c.reportSelection(sel)
	}()
}

// OnViewportResized tells the controller how much layout space the UI gives
// the image. It can be called before the first image arrives; once an image
// is present, the fit and the selection are recomputed from scratch.
func (c *Controller) OnViewportResized(viewport Size) {
	c.mu.Lock()
	c.viewport = viewport
	if c.source == nil || viewport.IsZero() {
		c.mu.Unlock()
		return
	}
	c.layoutLocked()
	sel := c.selection
	c.mu.Unlock()
	c.reportSelection(sel)
}

// SetAspectRatio replaces the aspect constraint (0 = unconstrained) and
// resets the selection to a freshly centered rectangle. A ratio change never
// reshapes the dragged selection in place.
func (c *Controller) SetAspectRatio(ratio float64) error {
	c.mu.Lock()
	if c.source == nil {
		c.mu.Unlock()
		return ErrInvalidState
	}
	c.aspect = ratio
	c.resetSelectionLocked()
	sel := c.selection
	c.mu.Unlock()
	c.reportSelection(sel)
	return nil
}

// SetCircleMode toggles circular cropping. While on, the aspect ratio is
// forced to 1; turning it off restores the caller-supplied ratio. The
// selection resets either way.
func (c *Controller) SetCircleMode(on bool) error {
	c.mu.Lock()
	if c.source == nil {
		c.mu.Unlock()
		return ErrInvalidState
	}
	c.circle = on
	c.resetSelectionLocked()
	sel := c.selection
	c.mu.Unlock()
	c.reportSelection(sel)
	return nil
}

// SetRect stores an externally supplied viewport-space rectangle, clamped
// into the image rectangle.
func (c *Controller) SetRect(r Rect) error {
	c.mu.Lock()
	if c.source == nil {
		c.mu.Unlock()
		return ErrInvalidState
	}
	if c.cfg.FixedAspect {
		c.mu.Unlock()
		return ErrFixedSelection
	}
	c.selection = c.calc.Correct(r, c.imageRect)
	sel := c.selection
	c.mu.Unlock()
	c.reportSelection(sel)
	return nil
}

// SetArea stores a pixel-space rectangle as the selection, converting it to
// viewport space with the current screen-size ratio.
func (c *Controller) SetArea(pixelRect Rect) error {
	c.mu.Lock()
	if c.source == nil {
		c.mu.Unlock()
		return ErrInvalidState
	}
	if c.cfg.FixedAspect {
		c.mu.Unlock()
		return ErrFixedSelection
	}
	c.selection = c.areaToViewportLocked(pixelRect)
	sel := c.selection
	c.mu.Unlock()
	c.reportSelection(sel)
	return nil
}

// MoveSelection translates the whole selection by a gesture delta, clamped
// to the image rectangle.
func (c *Controller) MoveSelection(dx, dy float64) error {
	c.mu.Lock()
	if c.source == nil {
		c.mu.Unlock()
		return ErrInvalidState
	}
	c.selection = c.calc.MoveSelection(c.selection, dx, dy, c.imageRect)
	sel := c.selection
	c.mu.Unlock()
	c.reportSelection(sel)
	return nil
}

// MoveCorner resizes the selection by dragging one corner handle.
func (c *Controller) MoveCorner(corner Corner, dx, dy float64) error {
	c.mu.Lock()
	if c.source == nil {
		c.mu.Unlock()
		return ErrInvalidState
	}
	if c.cfg.FixedAspect {
		c.mu.Unlock()
		return ErrFixedSelection
	}
	c.selection = c.calc.MoveCorner(corner, c.selection, dx, dy, c.imageRect, c.effectiveAspect())
	sel := c.selection
	c.mu.Unlock()
	c.reportSelection(sel)
	return nil
}

// RequestCrop converts the selection to pixel space and dispatches the crop
// to the pipeline. The result arrives through OnCrop (or OnError); a crop
// superseded by a newer request or image is discarded when it completes.
func (c *Controller) RequestCrop(ctx context.Context, circular bool) error {
	c.mu.Lock()
	if c.source == nil {
		c.mu.Unlock()
		return ErrInvalidState
	}
	src := c.source
	pixelRect := c.selectionInPixelsLocked()
	circular = circular || c.circle
	c.cropGen++
	gen := c.cropGen
	changed := c.setStatusLocked(StatusCropping)
	c.mu.Unlock()
	c.reportStatus(StatusCropping, changed)

	go func() {
		var (
			data []byte
			err  error
		)
		if circular {
			data, err = c.pipeline.CropCircle(ctx, src, pixelRect)
		} else {
			data, err = c.pipeline.CropRect(ctx, src, pixelRect)
		}

		c.mu.Lock()
		if gen != c.cropGen {
			c.mu.Unlock()
			c.log.Debug().Uint64("generation", gen).Msg("discarding stale crop result")
			return
		}
		changed := c.setStatusLocked(StatusReady)
		c.mu.Unlock()
		c.reportStatus(StatusReady, changed)

		if err != nil {
			c.log.Error().Err(err).Msg("failed to crop image")
			c.reportError(err)
			return
		}
		if fn := c.cfg.OnCrop; fn != nil {
			fn(data)
		}
	}()
	return nil
}

// SelectionInPixels returns the current selection converted to source pixel
// coordinates.
func (c *Controller) SelectionInPixels() (Rect, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source == nil {
		return Rect{}, ErrInvalidState
	}
	return c.selectionInPixelsLocked(), nil
}

func (c *Controller) effectiveAspect() float64 {
	if c.circle {
		return 1
	}
	return c.aspect
}

// layoutLocked recomputes fit, image rectangle and selection for the current
// image/viewport pairing.
func (c *Controller) layoutLocked() {
	mode, imageRect := ResolveFit(c.viewport, c.source.PixelSize().AspectRatio())
	c.calc = NewCalculator(mode)
	c.imageRect = imageRect

	if c.cfg.InitialArea != nil && !c.usedInitialArea {
		c.usedInitialArea = true
		c.selection = c.areaToViewportLocked(*c.cfg.InitialArea)
		return
	}
	c.resetSelectionLocked()
}

func (c *Controller) resetSelectionLocked() {
	c.selection = c.calc.InitialRect(c.imageRect, c.effectiveAspect(), c.cfg.InitialSizeFraction)
}

func (c *Controller) areaToViewportLocked(pixelRect Rect) Rect {
	ratio := c.calc.ScreenSizeRatio(c.source.PixelSize(), c.imageRect)
	r := Rect{
		Left:   c.imageRect.Left + pixelRect.Left/ratio,
		Top:    c.imageRect.Top + pixelRect.Top/ratio,
		Width:  pixelRect.Width / ratio,
		Height: pixelRect.Height / ratio,
	}
	return c.calc.Correct(r, c.imageRect)
}

func (c *Controller) selectionInPixelsLocked() Rect {
	ratio := c.calc.ScreenSizeRatio(c.source.PixelSize(), c.imageRect)
	rel := c.selection.Translate(-c.imageRect.Left, -c.imageRect.Top)
	return Rect{
		Left:   rel.Left * ratio,
		Top:    rel.Top * ratio,
		Width:  rel.Width * ratio,
		Height: rel.Height * ratio,
	}
}

// setStatusLocked records a transition; the OnStatus callback fires after
// the caller releases the mutex so callbacks may call back into the
// controller.
func (c *Controller) setStatusLocked(s CropStatus) (changed bool) {
	if c.status == s {
		return false
	}
	c.status = s
	c.log.Debug().Stringer("status", s).Msg("status changed")
	return true
}

func (c *Controller) reportStatus(s CropStatus, changed bool) {
	if !changed {
		return
	}
	if fn := c.cfg.OnStatus; fn != nil {
		fn(s)
	}
}

func (c *Controller) reportSelection(r Rect) {
	if fn := c.cfg.OnSelection; fn != nil {
		fn(r)
	}
}

func (c *Controller) reportError(err error) {
	if fn := c.cfg.OnError; fn != nil {
		fn(err)
	}
}

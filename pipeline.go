package cropview

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"

	// Registers WebP decoding with image.Decode.
	_ "golang.org/x/image/webp"
)

// SourceImage is a decoded, orientation-normalized pixel buffer. It is
// immutable after decode.
type SourceImage struct {
	img image.Image
}

// PixelSize returns the source dimensions in pixel space.
func (s *SourceImage) PixelSize() Size {
	b := s.img.Bounds()
	return Size{Width: float64(b.Dx()), Height: float64(b.Dy())}
}

// DecodeError reports malformed or unsupported source image bytes.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode image: %v", e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// Pipeline decodes source bytes and produces cropped, losslessly re-encoded
// results. Crop rectangles are in pixel space. Implementations must be safe
// for concurrent use; the controller calls them from background goroutines.
type Pipeline interface {
	Decode(ctx context.Context, data []byte) (*SourceImage, error)
	CropRect(ctx context.Context, src *SourceImage, pixelRect Rect) ([]byte, error)
	CropCircle(ctx context.Context, src *SourceImage, pixelRect Rect) ([]byte, error)
}

// ImagingPipeline is an implementation of the Pipeline interface using the
// disintegration/imaging library.
type ImagingPipeline struct{}

// NewImagingPipeline creates a new instance of ImagingPipeline.
func NewImagingPipeline() *ImagingPipeline {
	return &ImagingPipeline{}
}

// Decode decodes the image and applies the EXIF orientation tag, so the
// returned buffer is upright regardless of how the camera stored it.
func (p *ImagingPipeline) Decode(ctx context.Context, data []byte) (*SourceImage, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &SourceImage{img: src}, nil
}

// CropRect crops the rectangular region and re-encodes it as PNG.
func (p *ImagingPipeline) CropRect(ctx context.Context, src *SourceImage, pixelRect Rect) ([]byte, error) {
	cropped, err := cropToRect(src, pixelRect)
	if err != nil {
		return nil, err
	}
	return encodePNG(cropped)
}

// CropCircle crops a circular region centered on pixelRect with radius
// floor(min(width, height)/2); pixels outside the circle become transparent.
func (p *ImagingPipeline) CropCircle(ctx context.Context, src *SourceImage, pixelRect Rect) ([]byte, error) {
	cropped, err := cropToRect(src, pixelRect)
	if err != nil {
		return nil, err
	}

	b := cropped.Bounds()
	mask := &circleMask{
		center: image.Pt(b.Dx()/2, b.Dy()/2),
		radius: minInt(b.Dx(), b.Dy()) / 2,
		rect:   image.Rect(0, 0, b.Dx(), b.Dy()),
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.DrawMask(dst, dst.Bounds(), cropped, b.Min, mask, image.Point{}, draw.Over)

	return encodePNG(dst)
}

func cropToRect(src *SourceImage, pixelRect Rect) (image.Image, error) {
	x0, y0 := int(pixelRect.Left), int(pixelRect.Top)
	w, h := int(pixelRect.Width), int(pixelRect.Height)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid crop dimensions: width=%d, height=%d", w, h)
	}

	cropRect := image.Rect(x0, y0, x0+w, y0+h)
	bounds := src.img.Bounds()
	if !cropRect.In(bounds) {
		cropRect = cropRect.Intersect(bounds)
		if cropRect.Empty() {
			return nil, fmt.Errorf("crop rectangle is outside image bounds")
		}
	}

	return imaging.Crop(src.img, cropRect), nil
}

// encodePNG writes the image losslessly; PNG also carries the alpha channel
// circular crops need.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode cropped image: %w", err)
	}
	return buf.Bytes(), nil
}

// circleMask is an alpha mask for draw.DrawMask: opaque inside the circle,
// fully transparent outside.
type circleMask struct {
	center image.Point
	radius int
	rect   image.Rectangle
}

func (m *circleMask) ColorModel() color.Model { return color.AlphaModel }
func (m *circleMask) Bounds() image.Rectangle { return m.rect }

func (m *circleMask) At(x, y int) color.Color {
	dx := float64(x-m.center.X) + 0.5
	dy := float64(y-m.center.Y) + 0.5
	r := float64(m.radius)
	if dx*dx+dy*dy <= r*r {
		return color.Alpha{A: 0xff}
	}
	return color.Alpha{}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

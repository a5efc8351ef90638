package cropview

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

type Operations = []Operation

// Operation is one batch crop instruction, a tagged union over the two
// crop shapes.
type Operation struct {
	Rect   *RectCropOperation
	Circle *CircleCropOperation
}

func (o *Operation) UnmarshalJSON(data []byte) error {
	var op struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &op); err != nil {
		return fmt.Errorf("failed to unmarshal operation: %w", err)
	}

	switch op.Type {
	case "rect":
		var rect RectCropOperation
		if err := json.Unmarshal(data, &rect); err != nil {
			return fmt.Errorf("failed to unmarshal rect operation: %w", err)
		}
		o.Rect = &rect
	case "circle":
		var circle CircleCropOperation
		if err := json.Unmarshal(data, &circle); err != nil {
			return fmt.Errorf("failed to unmarshal circle operation: %w", err)
		}
		o.Circle = &circle
	default:
		return fmt.Errorf("unknown operation %q", op.Type)
	}
	return nil
}

// RectCropOperation crops a rectangular pixel-space area out of a file.
type RectCropOperation struct {
	Filename string `json:"filename"`
	Area     Rect   `json:"area"`
}

// CircleCropOperation crops a circular region inscribed in a pixel-space
// area out of a file.
type CircleCropOperation struct {
	Filename string `json:"filename"`
	Area     Rect   `json:"area"`
}

// areaID is a stable content hash of the crop area, used to name outputs.
func areaID(r Rect) string {
	m := md5.New()
	fmt.Fprintf(m, "crop(l=%.2f,t=%.2f,w=%.2f,h=%.2f)", r.Left, r.Top, r.Width, r.Height)
	return fmt.Sprintf("%x", m.Sum(nil))
}

// BatchExecutor runs crop operations concurrently against files under
// BaseDir, writing PNG results into OutputDir.
type BatchExecutor struct {
	BaseDir   string
	OutputDir string
	Pipeline  Pipeline
}

func (e BatchExecutor) Exec(ctx context.Context, ops Operations) error {
	if len(ops) == 0 {
		log.Ctx(ctx).Warn().Msg("no operations to execute")
		return nil
	}

	if err := os.MkdirAll(e.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", e.OutputDir, err)
	}

	pooler := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(runtime.NumCPU())
	for _, op := range ops {
		pooler.Go(func(ctx context.Context) error {
			if err := e.executeOperation(ctx, op); err != nil {
				log.Ctx(ctx).Error().Err(err).
					Interface("op", op).
					Msg("failed to execute operation")
				return err
			}
			return nil
		})
	}

	if err := pooler.Wait(); err != nil {
		log.Ctx(ctx).Error().
			Err(err).
			Msg("finished with errors")
		return err
	}
	return nil
}

func (e BatchExecutor) executeOperation(ctx context.Context, op Operation) error {
	switch {
	case op.Rect != nil:
		return e.executeCrop(ctx, op.Rect.Filename, op.Rect.Area, false)
	case op.Circle != nil:
		return e.executeCrop(ctx, op.Circle.Filename, op.Circle.Area, true)
	}
	return nil
}

func (e BatchExecutor) executeCrop(ctx context.Context, filename string, area Rect, circular bool) error {
	log.Ctx(ctx).Info().Str("filename", filename).Bool("circular", circular).Msg("cropping")

	sourcePath := filepath.Join(e.BaseDir, filename)
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", sourcePath, err)
	}

	src, err := e.Pipeline.Decode(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", filename, err)
	}

	var out []byte
	if circular {
		out, err = e.Pipeline.CropCircle(ctx, src, area)
	} else {
		out, err = e.Pipeline.CropRect(ctx, src, area)
	}
	if err != nil {
		return fmt.Errorf("failed to crop %s: %w", filename, err)
	}

	newName := fmt.Sprintf("%s-%s.png", filepath.Base(filename), areaID(area))
	croppedPath := filepath.Join(e.OutputDir, newName)
	if err := os.WriteFile(croppedPath, out, 0644); err != nil {
		return fmt.Errorf("failed to write cropped file %s: %w", newName, err)
	}
	return nil
}

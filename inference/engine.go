// Package inference - Inference engine interface and frame preprocessing.
package inference

import (
	"context"
	"io/fs"

	"github.com/nvr-ai/go-overlay/detection"
	"github.com/pkg/errors"
)

var (
	// ErrNotInitialized is returned by Infer before a successful Initialize.
	ErrNotInitialized = errors.New("engine not initialized")
	// ErrFrameSize is returned when a pixel buffer does not hold whole RGBA rows.
	ErrFrameSize = errors.New("pixel buffer does not match frame width")
)

// Engine runs a detection model over raw camera frames.
//
// Records returned by Infer are in frame pixel coordinates: box records are
// [classId, x, y, width, height] and keypoint records are flat
// [x1, y1, x2, y2, ...] pairs. Implementations do not retry; errors are
// returned to the caller, which decides whether to drop the frame.
type Engine interface {
	// Initialize loads the model for mode from assets, replacing any previous model.
	Initialize(mode detection.Mode, assets fs.FS) error
	// Infer runs the loaded model over an RGBA frame of the given width.
	Infer(ctx context.Context, pixels []byte, frameWidth int) ([][]float32, error)
	// Close releases the model and runtime resources.
	Close() error
}

// Func adapts a plain inference function to the Engine interface.
// Initialize and Close are no-ops.
type Func func(ctx context.Context, pixels []byte, frameWidth int) ([][]float32, error)

// Initialize implements Engine.
func (f Func) Initialize(detection.Mode, fs.FS) error { return nil }

// Infer implements Engine.
func (f Func) Infer(ctx context.Context, pixels []byte, frameWidth int) ([][]float32, error) {
	if f == nil {
		return nil, ErrNotInitialized
	}
	return f(ctx, pixels, frameWidth)
}

// Close implements Engine.
func (f Func) Close() error { return nil }

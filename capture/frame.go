// Package capture - Camera frame sources and the frame delivery loop.
package capture

import (
	"context"
	"sync"
	"time"

	"github.com/nvr-ai/go-overlay/geometry"
	"github.com/nvr-ai/go-overlay/logging"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// ErrSourceClosed is returned by Next after the source is closed or exhausted.
var ErrSourceClosed = errors.New("frame source closed")

// Frame is one RGBA camera frame borrowed from a Source. It must be released
// exactly once, whether it was processed, dropped or failed.
type Frame struct {
	// Pixels holds Width*Height RGBA pixels in sensor orientation.
	Pixels    []byte
	Width     int
	Height    int
	Seq       uint64
	Timestamp time.Time

	once     sync.Once
	released atomic.Bool
	release  func()
}

// NewFrame wraps pixels; release is called on the first Release.
func NewFrame(pixels []byte, width, height int, seq uint64, release func()) *Frame {
	return &Frame{
		Pixels:    pixels,
		Width:     width,
		Height:    height,
		Seq:       seq,
		Timestamp: time.Now(),
		release:   release,
	}
}

// Size returns the frame size.
func (f *Frame) Size() geometry.Size {
	return geometry.Size{Width: f.Width, Height: f.Height}
}

// Release hands the buffer back to its source. Later calls do nothing.
func (f *Frame) Release() {
	f.once.Do(func() {
		f.released.Store(true)
		if f.release != nil {
			f.release()
		}
	})
}

// Released reports whether Release has been called.
func (f *Frame) Released() bool {
	return f.released.Load()
}

// Source delivers frames at the camera's native rate.
type Source interface {
	// Next blocks until a frame is available.
	Next(ctx context.Context) (*Frame, error)
	// Size returns the frame size the source produces.
	Size() geometry.Size
	// Close stops the source.
	Close() error
}

// Handler consumes one frame and takes ownership of it.
type Handler func(*Frame)

// Run pulls frames from src and hands each one to handle until ctx is done
// or the source is exhausted. Run is the frame delivery goroutine: handle
// must not block on inference.
//
// Returns:
//   - error: nil on ctx cancellation or source exhaustion, otherwise the
//     source error.
func Run(ctx context.Context, src Source, handle Handler, logger logging.Logger) error {
	logger = logging.Named(logger, "capture")
	var delivered uint64

	for {
		frame, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrSourceClosed) {
				logger.Infow("frame delivery stopped", "delivered", delivered)
				return nil
			}
			return errors.Wrap(err, "next frame")
		}
		delivered++
		handle(frame)
	}
}

// bufferPool bounds the number of frames a source has on loan.
type bufferPool struct {
	free chan []byte
}

func newBufferPool(buffers, size int) *bufferPool {
	p := &bufferPool{free: make(chan []byte, buffers)}
	for i := 0; i < buffers; i++ {
		p.free <- make([]byte, size)
	}
	return p
}

// get blocks until a buffer is returned or ctx is done.
func (p *bufferPool) get(ctx context.Context) ([]byte, error) {
	select {
	case buf := <-p.free:
		return buf, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *bufferPool) put(buf []byte) {
	select {
	case p.free <- buf:
	default:
	}
}

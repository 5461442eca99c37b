package overlay

import (
	"context"
	"image"
	"image/draw"
	"sync"

	"github.com/fogleman/gg"
	"github.com/google/uuid"
	"github.com/nvr-ai/go-overlay/geometry"
	"github.com/nvr-ai/go-overlay/logging"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// PaintHook receives a copy of every frame a canvas surface paints.
type PaintHook func(surfaceID string, img *image.RGBA)

// CanvasHost is an in-process Host whose surfaces are RGBA canvases. Each
// surface paints on its own goroutine, which plays the role of the
// interactive thread.
type CanvasHost struct {
	display geometry.Size
	logger  logging.Logger

	mu       sync.Mutex
	surfaces map[string]*CanvasSurface
	hook     PaintHook
}

// NewCanvasHost creates a host reporting the given display size.
func NewCanvasHost(display geometry.Size, logger logging.Logger) *CanvasHost {
	return &CanvasHost{
		display:  display,
		logger:   logging.Named(logger, "canvas"),
		surfaces: map[string]*CanvasSurface{},
	}
}

// SetPaintHook installs a hook for surfaces created afterwards.
func (h *CanvasHost) SetPaintHook(hook PaintHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hook = hook
}

// DisplaySize implements Host.
func (h *CanvasHost) DisplaySize(ctx context.Context) (geometry.Size, error) {
	if err := ctx.Err(); err != nil {
		return geometry.Size{}, err
	}
	if h.display.Width <= 0 || h.display.Height <= 0 {
		return geometry.Size{}, errors.Errorf("display size %s is not usable", h.display)
	}
	return h.display, nil
}

// CreateSurface implements Host.
func (h *CanvasHost) CreateSurface(size geometry.Size, flags Flags, paint PaintFunc) (Surface, error) {
	if !flags.Has(Translucent) {
		return nil, errors.New("canvas surfaces must be translucent")
	}
	if paint == nil {
		return nil, errors.New("paint func is required")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	s := &CanvasSurface{
		id:     uuid.NewString(),
		size:   size,
		flags:  flags,
		paint:  paint,
		hook:   h.hook,
		host:   h,
		logger: h.logger,
		dc:     gg.NewContext(size.Width, size.Height),
		redraw: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	h.surfaces[s.id] = s

	s.wg.Add(1)
	go s.loop()
	return s, nil
}

// Surfaces returns the number of live surfaces.
func (h *CanvasHost) Surfaces() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.surfaces)
}

func (h *CanvasHost) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.surfaces, id)
}

// CanvasSurface is a Surface drawn into memory.
type CanvasSurface struct {
	id     string
	size   geometry.Size
	flags  Flags
	paint  PaintFunc
	hook   PaintHook
	host   *CanvasHost
	logger logging.Logger

	dc     *gg.Context
	redraw chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool
	frames atomic.Uint64

	mu   sync.Mutex
	last *image.RGBA
}

// ID implements Surface.
func (s *CanvasSurface) ID() string { return s.id }

// Size implements Surface.
func (s *CanvasSurface) Size() geometry.Size { return s.size }

// Flags returns the flags the surface was created with.
func (s *CanvasSurface) Flags() Flags { return s.flags }

// RequestRedraw implements Surface.
func (s *CanvasSurface) RequestRedraw() {
	if s.closed.Load() {
		return
	}
	select {
	case s.redraw <- struct{}{}:
	default:
	}
}

// Frames returns how many paints have completed.
func (s *CanvasSurface) Frames() uint64 {
	return s.frames.Load()
}

// Image returns a copy of the last painted frame, or a transparent image if
// nothing has been painted yet.
func (s *CanvasSurface) Image() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return image.NewRGBA(image.Rect(0, 0, s.size.Width, s.size.Height))
	}
	return cloneRGBA(s.last)
}

// Close implements Surface. It stops the paint goroutine after any paint in
// progress finishes.
func (s *CanvasSurface) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.done)
	s.wg.Wait()
	s.host.remove(s.id)
	return nil
}

func (s *CanvasSurface) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.redraw:
			s.paintOnce()
		}
	}
}

func (s *CanvasSurface) paintOnce() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("paint panicked", "surface", s.id, "panic", r)
		}
	}()

	s.paint(s.dc)
	frame := cloneRGBA(s.dc.Image().(*image.RGBA))

	s.mu.Lock()
	s.last = frame
	s.mu.Unlock()
	s.frames.Inc()

	if s.hook != nil {
		s.hook(s.id, cloneRGBA(frame))
	}
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst
}

package overlay

import (
	"context"
	"sync"

	"github.com/fogleman/gg"
	"github.com/nvr-ai/go-overlay/detection"
	"github.com/nvr-ai/go-overlay/geometry"
	"github.com/nvr-ai/go-overlay/logging"
	"github.com/nvr-ai/go-overlay/render"
	"github.com/pkg/errors"
)

var (
	// ErrAlreadyAttached is returned by Attach while a surface is attached.
	ErrAlreadyAttached = errors.New("overlay already attached")
	// ErrNotAttached is returned by Detach for a handle that is not attached.
	ErrNotAttached = errors.New("overlay not attached")
	// ErrHostUnavailable wraps failures of the host window layer.
	ErrHostUnavailable = errors.New("overlay host unavailable")
)

// State is the lifecycle state of an overlay.
type State int

const (
	// Detached means no surface exists.
	Detached State = iota
	// Attached means a surface is on screen and painting.
	Attached
)

func (s State) String() string {
	if s == Attached {
		return "attached"
	}
	return "detached"
}

// Handle refers to an attached overlay surface.
type Handle struct {
	surface Surface
}

// ID returns the surface id.
func (h *Handle) ID() string { return h.surface.ID() }

// Size returns the surface size.
func (h *Handle) Size() geometry.Size { return h.surface.Size() }

// RequestRedraw asks the host to repaint the overlay.
func (h *Handle) RequestRedraw() { h.surface.RequestRedraw() }

// Lifecycle attaches a single overlay surface to a host and binds the
// renderer to it. It draws nothing itself.
type Lifecycle struct {
	host     Host
	store    *detection.Store
	renderer *render.Renderer
	mode     func() detection.Mode
	logger   logging.Logger

	mu     sync.Mutex
	state  State
	handle *Handle
}

// NewLifecycle creates a detached lifecycle.
//
// Arguments:
//   - host: The window layer to create surfaces on.
//   - store: The detection store painted on every redraw and closed on detach.
//   - renderer: The renderer bound to the surface; its colours reset on detach.
//   - mode: Returns the active detection mode at paint time.
//   - logger: The component logger.
//
// Returns:
//   - *Lifecycle: The lifecycle in the Detached state.
func NewLifecycle(
	host Host,
	store *detection.Store,
	renderer *render.Renderer,
	mode func() detection.Mode,
	logger logging.Logger,
) *Lifecycle {
	return &Lifecycle{
		host:     host,
		store:    store,
		renderer: renderer,
		mode:     mode,
		logger:   logging.Named(logger, "overlay"),
	}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Attach queries the display size and attaches a surface spanning it.
func (l *Lifecycle) Attach(ctx context.Context) (*Handle, error) {
	size, err := l.host.DisplaySize(ctx)
	if err != nil {
		return nil, errors.Wrapf(ErrHostUnavailable, "query display size: %v", err)
	}
	return l.AttachSized(size.Width, size.Height)
}

// AttachSized attaches a surface of width by height pixels, flagged so it
// neither takes focus nor blocks touches. A store closed by an earlier
// Detach is reopened.
//
// Returns:
//   - *Handle: The attached surface.
//   - error: ErrAlreadyAttached, or ErrHostUnavailable if the host refused the
//     surface. Both are fatal to the session.
func (l *Lifecycle) AttachSized(width, height int) (*Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == Attached {
		return nil, ErrAlreadyAttached
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrHostUnavailable, "invalid surface size %dx%d", width, height)
	}

	size := geometry.Size{Width: width, Height: height}
	surface, err := l.host.CreateSurface(size, OverlayFlags, l.paint)
	if err != nil {
		return nil, errors.Wrapf(ErrHostUnavailable, "create surface: %v", err)
	}
	l.store.Reopen()

	l.handle = &Handle{surface: surface}
	l.state = Attached
	l.logger.Infow("overlay attached", "surface", surface.ID(), "size", size.String())
	return l.handle, nil
}

// Detach removes the surface and clears the detection store and the class
// colour assignment.
func (l *Lifecycle) Detach(h *Handle) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != Attached || h == nil || h != l.handle {
		return ErrNotAttached
	}

	err := h.surface.Close()
	l.store.Close()
	l.renderer.Colors().Reset()
	l.handle = nil
	l.state = Detached

	if err != nil {
		return errors.Wrapf(err, "close surface %s", h.ID())
	}
	l.logger.Infow("overlay detached", "surface", h.ID())
	return nil
}

func (l *Lifecycle) paint(dc *gg.Context) {
	l.renderer.Draw(dc, l.store.Snapshot(), l.mode())
}

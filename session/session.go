// Package session - Explicit overlay session context and the registry of the current session.
package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/nvr-ai/go-overlay/detection"
	"github.com/nvr-ai/go-overlay/geometry"
	"github.com/nvr-ai/go-overlay/logging"
	"github.com/nvr-ai/go-overlay/overlay"
	"github.com/nvr-ai/go-overlay/render"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// ErrNoSession is returned when an operation needs an active session.
var ErrNoSession = errors.New("no active overlay session")

// Options configure a new session.
type Options struct {
	// Mode is the initial detection mode.
	Mode detection.Mode
	// Source is the expected camera frame size in sensor orientation. It is
	// informational: detections are mapped from each frame's own size.
	Source geometry.Size
	// Rotation is the sensor rotation relative to the display.
	Rotation geometry.Rotation
	// Names labels box classes.
	Names *detection.ClassNames
	// Palette colours box classes. Empty means render.DefaultPalette.
	Palette render.Palette
	// Style is the renderer style.
	Style render.Style
}

// Session is the state of one attached overlay: geometry, the detection
// store, the class colours and the surface handle. Everything is torn down
// together by Manager.Stop.
type Session struct {
	id       uuid.UUID
	mode     *atomic.Int32
	source   geometry.Size
	display  geometry.Size
	rotation geometry.Rotation

	store     *detection.Store
	renderer  *render.Renderer
	lifecycle *overlay.Lifecycle
	handle    *overlay.Handle
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID { return s.id }

// Mode returns the active detection mode.
func (s *Session) Mode() detection.Mode { return detection.Mode(s.mode.Load()) }

// SetMode switches the active detection mode.
func (s *Session) SetMode(m detection.Mode) { s.mode.Store(int32(m)) }

// Source returns the expected camera frame size given at start. The
// transform does not use it.
func (s *Session) Source() geometry.Size { return s.source }

// Display returns the overlay surface size.
func (s *Session) Display() geometry.Size { return s.display }

// Rotation returns the sensor rotation.
func (s *Session) Rotation() geometry.Rotation { return s.rotation }

// Store returns the detection store painted by the overlay.
func (s *Session) Store() *detection.Store { return s.store }

// Colors returns the class colour assignment.
func (s *Session) Colors() *render.ColorAssignment { return s.renderer.Colors() }

// RequestRedraw asks the overlay to repaint from the store.
func (s *Session) RequestRedraw() { s.handle.RequestRedraw() }

// Manager starts and stops sessions and holds the optional current one.
type Manager struct {
	host   overlay.Host
	logger logging.Logger

	mu      sync.Mutex
	current *Session
}

// NewManager creates a manager with no session.
func NewManager(host overlay.Host, logger logging.Logger) *Manager {
	return &Manager{host: host, logger: logging.Named(logger, "session")}
}

// Current returns the active session or nil.
func (m *Manager) Current() *Session {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Start attaches an overlay spanning the display and makes it the current
// session.
//
// Arguments:
//   - ctx: Bounds the display query.
//   - opts: The session options.
//
// Returns:
//   - *Session: The new session.
//   - error: If a session is already active or the overlay host fails.
func (m *Manager) Start(ctx context.Context, opts Options) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return nil, errors.Wrapf(overlay.ErrAlreadyAttached, "session %s", m.current.id)
	}
	if !opts.Mode.Valid() {
		return nil, errors.Wrapf(detection.ErrUnknownMode, "%d", int(opts.Mode))
	}

	s := &Session{
		id:       uuid.New(),
		mode:     atomic.NewInt32(int32(opts.Mode)),
		source:   opts.Source,
		rotation: opts.Rotation.Normalize(),
		store:    detection.NewStore(),
		renderer: render.NewRenderer(opts.Names, render.NewColorAssignment(opts.Palette), opts.Style),
	}
	s.lifecycle = overlay.NewLifecycle(m.host, s.store, s.renderer, s.Mode, m.logger)

	handle, err := s.lifecycle.Attach(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "start session")
	}
	s.handle = handle
	s.display = handle.Size()

	m.current = s
	m.logger.Infow("session started",
		"id", s.id,
		"mode", s.Mode(),
		"source", s.source.String(),
		"display", s.display.String(),
		"rotation", int(s.rotation),
	)
	return s, nil
}

// Stop detaches the current session's overlay and clears the registry.
func (m *Manager) Stop() error {
	m.mu.Lock()
	s := m.current
	m.current = nil
	m.mu.Unlock()

	if s == nil {
		return ErrNoSession
	}
	if err := s.lifecycle.Detach(s.handle); err != nil {
		return errors.Wrapf(err, "stop session %s", s.id)
	}
	m.logger.Infow("session stopped", "id", s.id)
	return nil
}

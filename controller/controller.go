package controller

import (
	"context"
	"io/fs"
	"time"

	"github.com/nvr-ai/go-overlay/capture"
	"github.com/nvr-ai/go-overlay/detection"
	"github.com/nvr-ai/go-overlay/geometry"
	"github.com/nvr-ai/go-overlay/inference"
	"github.com/nvr-ai/go-overlay/logging"
	"github.com/nvr-ai/go-overlay/metrics"
	"github.com/nvr-ai/go-overlay/session"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned by operations on a closed controller.
var ErrClosed = errors.New("controller closed")

// Sessions yields the current overlay session, or nil when none is attached.
type Sessions interface {
	Current() *session.Session
}

// Config configures a Controller.
type Config struct {
	// Workers bounds the number of worker goroutines. The gate keeps at most
	// one frame in flight; a second slot absorbs the hand-over between frames.
	Workers int `json:"workers" yaml:"workers"`
	// InferTimeout bounds a single Infer call; 0 means no bound.
	InferTimeout time.Duration `json:"infer_timeout" yaml:"infer_timeout"`
	// Assets holds the model files handed to Engine.Initialize.
	Assets fs.FS `json:"-" yaml:"-"`
}

// Controller routes camera frames through the gate to the inference worker
// and publishes transformed detections to the current session.
type Controller struct {
	cfg      Config
	engine   inference.Engine
	sessions Sessions
	metrics  *metrics.Metrics
	logger   logging.Logger

	gate   Gate
	group  errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

// New creates a controller.
//
// Arguments:
//   - cfg: The controller configuration.
//   - engine: The inference engine; it must already be initialised or be
//     initialised through SelectMode before frames arrive.
//   - sessions: The source of the current session.
//   - m: The metrics sink; nil creates a private one.
//   - logger: The logger; nil discards output.
//
// Returns:
//   - *Controller: The controller.
func New(cfg Config, engine inference.Engine, sessions Sessions, m *metrics.Metrics, logger logging.Logger) *Controller {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if m == nil {
		m = metrics.New()
	}
	c := &Controller{
		cfg:      cfg,
		engine:   engine,
		sessions: sessions,
		metrics:  m,
		logger:   logging.Named(logger, "controller"),
	}
	c.group.SetLimit(cfg.Workers)
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Gate returns the admission gate.
func (c *Controller) Gate() *Gate { return &c.gate }

// Metrics returns the metrics sink.
func (c *Controller) Metrics() *metrics.Metrics { return c.metrics }

// HandleFrame is called on the frame delivery goroutine for every frame. It
// never blocks: a frame is either handed to a worker or released at once.
//
// Arguments:
//   - f: The frame; ownership passes to the controller.
//
// Returns:
//   - bool: True if the frame was admitted.
func (c *Controller) HandleFrame(f *capture.Frame) bool {
	if c.closed.Load() || !c.gate.TryAdmit() {
		c.metrics.FramesDropped.Inc()
		f.Release()
		return false
	}

	// The previous worker opens the gate just before it exits, so its slot
	// may still be held for a moment.
	started := c.group.TryGo(func() error {
		defer c.gate.Release()
		defer f.Release()
		c.process(f)
		return nil
	})
	if !started {
		c.gate.Refund()
		c.metrics.FramesDropped.Inc()
		f.Release()
		return false
	}
	c.metrics.FramesAdmitted.Inc()
	return true
}

// process runs one admitted frame to completion. Failures are counted and
// logged; the frame is dropped and the previous detections stay visible.
func (c *Controller) process(f *capture.Frame) {
	defer func() {
		if r := recover(); r != nil {
			c.metrics.InferencePanics.Inc()
			c.logger.Errorw("inference panicked", "seq", f.Seq, "panic", r)
		}
	}()

	s := c.sessions.Current()
	if s == nil {
		c.metrics.FramesWithoutSink.Inc()
		return
	}

	// Records are decoded as the variant of the mode the engine ran in.
	mode := s.Mode()

	ctx := c.ctx
	if c.cfg.InferTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.InferTimeout)
		defer cancel()
	}

	start := time.Now()
	records, err := c.engine.Infer(ctx, f.Pixels, f.Width)
	c.metrics.ObserveInference(time.Since(start))
	if err != nil {
		c.metrics.InferenceErrors.Inc()
		c.logger.Warnw("inference failed", "seq", f.Seq, "error", err)
		return
	}

	if s.Mode() != mode {
		c.metrics.StaleResults.Inc()
		c.logger.Debugw("discarding result of previous mode", "seq", f.Seq, "mode", mode)
		return
	}

	dets, skipped, err := geometry.TransformRecords(mode, records, f.Size(), s.Display(), s.Rotation())
	c.metrics.MalformedRecords.Add(uint64(skipped))
	if skipped > 0 {
		c.logger.Debugw("skipped malformed records", "seq", f.Seq, "count", skipped)
	}
	if err != nil {
		c.metrics.DegenerateFrames.Inc()
		c.logger.Warnw("frame dropped", "seq", f.Seq, "error", err)
		return
	}

	if !s.Store().Replace(dets) {
		return
	}
	c.metrics.DetectionsStored.Add(uint64(len(dets)))
	s.RequestRedraw()
	c.metrics.RedrawsRequested.Inc()
}

// SelectMode waits for the in-flight frame, loads the model for mode and,
// once it is ready, switches the current session to it. Frames arriving
// meanwhile are dropped. On failure the previous mode stays active.
//
// Arguments:
//   - mode: The new detection mode.
//
// Returns:
//   - error: An error if the mode is unknown or the engine failed to load it.
func (c *Controller) SelectMode(mode detection.Mode) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !mode.Valid() {
		return errors.Wrapf(detection.ErrUnknownMode, "%d", int(mode))
	}
	if err := c.gate.Acquire(c.ctx); err != nil {
		return ErrClosed
	}
	defer c.gate.Release()

	if err := c.engine.Initialize(mode, c.cfg.Assets); err != nil {
		return errors.Wrapf(err, "initialize engine for %s", mode)
	}
	if s := c.sessions.Current(); s != nil {
		s.SetMode(mode)
		s.Store().Clear()
		s.RequestRedraw()
	}
	c.logger.Infow("mode selected", "mode", mode)
	return nil
}

// Wait blocks until the in-flight frame, if any, has been processed.
func (c *Controller) Wait() error {
	return c.group.Wait()
}

// Close stops admitting frames, cancels in-flight inference and waits for
// the worker. It does not close the engine.
func (c *Controller) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.cancel()
	return c.group.Wait()
}

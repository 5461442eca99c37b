package controller

import (
	"context"
	"io/fs"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/nvr-ai/go-overlay/capture"
	"github.com/nvr-ai/go-overlay/detection"
	"github.com/nvr-ai/go-overlay/geometry"
	"github.com/nvr-ai/go-overlay/overlay"
	"github.com/nvr-ai/go-overlay/render"
	"github.com/nvr-ai/go-overlay/session"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/zap/zaptest"
)

// mockEngine provides controllable inference for testing.
type mockEngine struct {
	mu        sync.Mutex
	initModes []detection.Mode
	initErr   error
	calls     atomic.Int64
	infer     func(ctx context.Context) ([][]float32, error)
}

func (m *mockEngine) Initialize(mode detection.Mode, _ fs.FS) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initModes = append(m.initModes, mode)
	return m.initErr
}

func (m *mockEngine) Infer(ctx context.Context, _ []byte, _ int) ([][]float32, error) {
	m.calls.Inc()
	if m.infer == nil {
		return nil, nil
	}
	return m.infer(ctx)
}

func (m *mockEngine) Close() error { return nil }

func records(recs ...[]float32) func(context.Context) ([][]float32, error) {
	return func(context.Context) ([][]float32, error) { return recs, nil }
}

var (
	sensor  = geometry.Size{Width: 1080, Height: 1920}
	display = geometry.Size{Width: 1080, Height: 2220}
)

func startSession(t *testing.T, mode detection.Mode) *session.Manager {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()
	m := session.NewManager(overlay.NewCanvasHost(display, logger), logger)
	_, err := m.Start(context.Background(), session.Options{
		Mode:     mode,
		Source:   sensor,
		Rotation: geometry.Rotate90,
		Names:    detection.NewClassNames(detection.DefaultClasses...),
		Style:    render.DefaultStyle(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Stop() })
	return m
}

// trackedFrame returns a sensor sized frame and a counter of its releases.
func trackedFrame(seq uint64) (*capture.Frame, *atomic.Int32) {
	released := atomic.NewInt32(0)
	f := capture.NewFrame(nil, sensor.Width, sensor.Height, seq, func() { released.Inc() })
	return f, released
}

func newController(t *testing.T, engine *mockEngine, sessions Sessions) *Controller {
	t.Helper()
	c := New(Config{}, engine, sessions, nil, zaptest.NewLogger(t).Sugar())
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestGateAdmitsOneOfMany(t *testing.T) {
	var g Gate
	const n = 64

	var (
		wg       sync.WaitGroup
		admitted atomic.Int32
		start    = make(chan struct{})
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if g.TryAdmit() {
				admitted.Inc()
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), admitted.Load())
	stats := g.Stats()
	assert.Equal(t, uint64(1), stats.Admitted)
	assert.Equal(t, uint64(n-1), stats.Dropped)
	assert.True(t, stats.Busy)

	g.Release()
	assert.False(t, g.Stats().Busy)
	assert.True(t, g.TryAdmit(), "gate reopens after release")
}

func TestGateAcquireWaitsForRelease(t *testing.T) {
	var g Gate
	require.True(t, g.TryAdmit())

	acquired := make(chan error, 1)
	go func() { acquired <- g.Acquire(context.Background()) }()

	select {
	case <-acquired:
		t.Fatal("acquired while a frame is in flight")
	case <-time.After(20 * time.Millisecond):
	}

	g.Release()
	require.NoError(t, <-acquired)
	assert.True(t, g.Stats().Busy)
	assert.False(t, g.TryAdmit(), "frames are refused while the gate is held")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, g.Acquire(ctx), context.DeadlineExceeded)

	g.Release()
	stats := g.Stats()
	assert.Equal(t, uint64(1), stats.Admitted, "acquire is not a frame admission")
	assert.Equal(t, uint64(1), stats.Dropped)
}

func TestGateRefund(t *testing.T) {
	var g Gate
	require.True(t, g.TryAdmit())
	g.Refund()

	stats := g.Stats()
	assert.Zero(t, stats.Admitted)
	assert.Equal(t, uint64(1), stats.Dropped)
	assert.False(t, stats.Busy)
	assert.True(t, g.TryAdmit())
}

func TestHandleFramePublishesDetections(t *testing.T) {
	sessions := startSession(t, detection.ModeObjectDetection)
	engine := &mockEngine{infer: records(
		[]float32{1, 100, 200, 50, 80},
		[]float32{2, 1, 2}, // malformed
	)}
	c := newController(t, engine, sessions)

	f, released := trackedFrame(1)
	require.True(t, c.HandleFrame(f))
	require.NoError(t, c.Wait())

	assert.Equal(t, int32(1), released.Load())
	assert.False(t, c.Gate().Stats().Busy)

	snap := sessions.Current().Store().Snapshot()
	require.Len(t, snap, 1)
	box, ok := snap[0].(detection.Box)
	require.True(t, ok)
	assert.Equal(t, 1, box.ClassID)
	assert.InDelta(t, 922.5, box.X, 1e-3)
	assert.InDelta(t, 205.5556, box.Y, 1e-3)
	assert.InDelta(t, 45, box.Width, 1e-3)
	assert.InDelta(t, 102.7778, box.Height, 1e-3)

	m := c.Metrics()
	assert.Equal(t, uint64(1), m.FramesAdmitted.Load())
	assert.Equal(t, uint64(1), m.MalformedRecords.Load())
	assert.Equal(t, uint64(1), m.DetectionsStored.Load())
	assert.Equal(t, uint64(1), m.RedrawsRequested.Load())
}

func TestHandleFrameUsesFrameSize(t *testing.T) {
	sessions := startSession(t, detection.ModeObjectDetection)
	c := newController(t, &mockEngine{infer: records([]float32{1, 50, 100, 25, 40})}, sessions)

	// Half the sensor size given at session start.
	f := capture.NewFrame(nil, sensor.Width/2, sensor.Height/2, 1, nil)
	require.True(t, c.HandleFrame(f))
	require.NoError(t, c.Wait())

	snap := sessions.Current().Store().Snapshot()
	require.Len(t, snap, 1)
	box := snap[0].(detection.Box)
	assert.InDelta(t, 922.5, box.X, 1e-3)
	assert.InDelta(t, 205.5556, box.Y, 1e-3)
	assert.InDelta(t, 45, box.Width, 1e-3)
	assert.InDelta(t, 102.7778, box.Height, 1e-3)
}

func TestHandleFrameDropsWhileBusy(t *testing.T) {
	sessions := startSession(t, detection.ModeObjectDetection)
	entered := make(chan struct{})
	unblock := make(chan struct{})
	engine := &mockEngine{infer: func(context.Context) ([][]float32, error) {
		close(entered)
		<-unblock
		return [][]float32{{0, 0, 0, 10, 10}}, nil
	}}
	c := newController(t, engine, sessions)

	first, firstReleased := trackedFrame(1)
	require.True(t, c.HandleFrame(first))
	<-entered

	for seq := uint64(2); seq < 12; seq++ {
		f, released := trackedFrame(seq)
		assert.False(t, c.HandleFrame(f), "frame %d admitted while busy", seq)
		assert.Equal(t, int32(1), released.Load(), "dropped frame %d released at once", seq)
	}
	assert.Equal(t, int32(0), firstReleased.Load(), "in-flight frame still held")

	close(unblock)
	require.NoError(t, c.Wait())

	assert.Equal(t, int32(1), firstReleased.Load())
	assert.Equal(t, int64(1), engine.calls.Load(), "dropped frames never reach the engine")
	assert.Equal(t, uint64(10), c.Metrics().FramesDropped.Load())

	next, _ := trackedFrame(12)
	assert.True(t, c.HandleFrame(next), "gate reopens after the worker finishes")
	require.NoError(t, c.Wait())
}

func TestHandleFrameFailures(t *testing.T) {
	tests := []struct {
		name  string
		infer func(context.Context) ([][]float32, error)
		frame func() (*capture.Frame, *atomic.Int32)
		check func(t *testing.T, c *Controller)
	}{
		{
			name:  "inference error",
			infer: func(context.Context) ([][]float32, error) { return nil, errors.New("npu lost") },
			check: func(t *testing.T, c *Controller) {
				assert.Equal(t, uint64(1), c.Metrics().InferenceErrors.Load())
			},
		},
		{
			name:  "inference panic",
			infer: func(context.Context) ([][]float32, error) { panic("bad tensor") },
			check: func(t *testing.T, c *Controller) {
				assert.Equal(t, uint64(1), c.Metrics().InferencePanics.Load())
			},
		},
		{
			name:  "degenerate geometry",
			infer: records([]float32{1, 1, 1, 1, 1}),
			frame: func() (*capture.Frame, *atomic.Int32) {
				released := atomic.NewInt32(0)
				return capture.NewFrame(nil, 0, 0, 1, func() { released.Inc() }), released
			},
			check: func(t *testing.T, c *Controller) {
				assert.Equal(t, uint64(1), c.Metrics().DegenerateFrames.Load())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := startSession(t, detection.ModeObjectDetection)
			prior := []detection.Detection{detection.Box{ClassID: 3, Width: 1, Height: 1}}
			sessions.Current().Store().Replace(prior)

			c := newController(t, &mockEngine{infer: tt.infer}, sessions)
			frame := tt.frame
			if frame == nil {
				frame = func() (*capture.Frame, *atomic.Int32) { return trackedFrame(1) }
			}
			f, released := frame()
			require.True(t, c.HandleFrame(f))
			require.NoError(t, c.Wait())

			assert.Equal(t, int32(1), released.Load(), "frame released")
			assert.False(t, c.Gate().Stats().Busy, "gate released")
			assert.Equal(t, prior, sessions.Current().Store().Snapshot(), "previous detections kept")
			assert.Zero(t, c.Metrics().RedrawsRequested.Load())
			tt.check(t, c)
		})
	}
}

func TestHandleFrameWithoutSession(t *testing.T) {
	engine := &mockEngine{infer: records([]float32{1, 1, 1, 1, 1})}
	c := newController(t, engine, session.NewManager(nil, nil))

	f, released := trackedFrame(1)
	require.True(t, c.HandleFrame(f))
	require.NoError(t, c.Wait())

	assert.Equal(t, int32(1), released.Load())
	assert.Zero(t, engine.calls.Load())
	assert.Equal(t, uint64(1), c.Metrics().FramesWithoutSink.Load())
}

func TestHandleFrameKeypoints(t *testing.T) {
	sessions := startSession(t, detection.ModeKeypointDetection)
	c := newController(t, &mockEngine{infer: records([]float32{100, 200, 540, 960})}, sessions)

	f, _ := trackedFrame(1)
	require.True(t, c.HandleFrame(f))
	require.NoError(t, c.Wait())

	snap := sessions.Current().Store().Snapshot()
	require.Len(t, snap, 1)
	kp, ok := snap[0].(detection.Keypoints)
	require.True(t, ok)
	require.Len(t, kp.Points, 2)
	// Keypoints are scaled by the rotated factors without swapping axes.
	assert.InDelta(t, 100*1080.0/1920, kp.Points[0].X, 1e-3)
	assert.InDelta(t, 200*2220.0/1080, kp.Points[0].Y, 1e-3)
}

func TestSelectMode(t *testing.T) {
	sessions := startSession(t, detection.ModeObjectDetection)
	sessions.Current().Store().Replace([]detection.Detection{detection.Box{Width: 1, Height: 1}})

	engine := &mockEngine{}
	c := New(Config{Assets: fstest.MapFS{}}, engine, sessions, nil, zaptest.NewLogger(t).Sugar())
	defer c.Close()

	require.NoError(t, c.SelectMode(detection.ModeKeypointDetection))
	assert.Equal(t, []detection.Mode{detection.ModeKeypointDetection}, engine.initModes)
	assert.Equal(t, detection.ModeKeypointDetection, sessions.Current().Mode())
	assert.Empty(t, sessions.Current().Store().Snapshot(), "old mode detections cleared")

	assert.ErrorIs(t, c.SelectMode(detection.Mode(7)), detection.ErrUnknownMode)

	engine.initErr = errors.New("model missing")
	assert.Error(t, c.SelectMode(detection.ModeObjectDetection))
	assert.Equal(t, detection.ModeKeypointDetection, sessions.Current().Mode(), "mode unchanged on failure")
}

func TestSelectModeDuringInference(t *testing.T) {
	sessions := startSession(t, detection.ModeKeypointDetection)
	entered := make(chan struct{})
	unblock := make(chan struct{})
	engine := &mockEngine{infer: func(context.Context) ([][]float32, error) {
		close(entered)
		<-unblock
		return [][]float32{{10, 20, 30, 40, 50, 60, 70, 80}}, nil
	}}
	c := New(Config{Assets: fstest.MapFS{}}, engine, sessions, nil, zaptest.NewLogger(t).Sugar())
	defer c.Close()

	f, _ := trackedFrame(1)
	require.True(t, c.HandleFrame(f))
	<-entered

	selected := make(chan error, 1)
	go func() { selected <- c.SelectMode(detection.ModeObjectDetection) }()

	select {
	case <-selected:
		t.Fatal("mode switched while a frame was in flight")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Equal(t, detection.ModeKeypointDetection, sessions.Current().Mode())

	close(unblock)
	require.NoError(t, <-selected)
	require.NoError(t, c.Wait())

	assert.Equal(t, detection.ModeObjectDetection, sessions.Current().Mode())
	assert.Empty(t, sessions.Current().Store().Snapshot(), "keypoints of the old mode cleared")
	assert.Zero(t, c.Metrics().MalformedRecords.Load())
}

func TestHandleFrameDiscardsResultOfPreviousMode(t *testing.T) {
	sessions := startSession(t, detection.ModeKeypointDetection)
	previous := []detection.Detection{detection.Keypoints{Points: []detection.Point{{X: 1, Y: 2}}}}
	sessions.Current().Store().Replace(previous)

	entered := make(chan struct{})
	unblock := make(chan struct{})
	engine := &mockEngine{infer: func(context.Context) ([][]float32, error) {
		close(entered)
		<-unblock
		return [][]float32{{10, 20, 30, 40, 50, 60, 70, 80}}, nil
	}}
	c := newController(t, engine, sessions)

	f, released := trackedFrame(1)
	require.True(t, c.HandleFrame(f))
	<-entered
	sessions.Current().SetMode(detection.ModeObjectDetection)
	close(unblock)
	require.NoError(t, c.Wait())

	assert.Equal(t, int32(1), released.Load())
	assert.Equal(t, previous, sessions.Current().Store().Snapshot())
	m := c.Metrics()
	assert.Equal(t, uint64(1), m.StaleResults.Load())
	assert.Zero(t, m.DetectionsStored.Load())
	assert.Zero(t, m.MalformedRecords.Load())
}

func TestClose(t *testing.T) {
	sessions := startSession(t, detection.ModeObjectDetection)
	c := New(Config{}, &mockEngine{}, sessions, nil, nil)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	f, released := trackedFrame(1)
	assert.False(t, c.HandleFrame(f))
	assert.Equal(t, int32(1), released.Load())
	assert.ErrorIs(t, c.SelectMode(detection.ModeObjectDetection), ErrClosed)
}

func TestInferTimeout(t *testing.T) {
	sessions := startSession(t, detection.ModeObjectDetection)
	engine := &mockEngine{infer: func(ctx context.Context) ([][]float32, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	c := New(Config{InferTimeout: 10 * time.Millisecond}, engine, sessions, nil, zaptest.NewLogger(t).Sugar())
	defer c.Close()

	f, _ := trackedFrame(1)
	require.True(t, c.HandleFrame(f))
	require.NoError(t, c.Wait())
	assert.Equal(t, uint64(1), c.Metrics().InferenceErrors.Load())
}

// Package controller - Frame admission and the inference worker of the overlay pipeline.
package controller

import (
	"context"
	"time"

	"go.uber.org/atomic"
)

// Gate admits at most one frame into inference at a time. Frames arriving
// while a frame is in flight are refused immediately; nothing is queued.
type Gate struct {
	busy     atomic.Bool
	admitted atomic.Uint64
	dropped  atomic.Uint64
}

// GateStats is a point-in-time view of the gate counters.
type GateStats struct {
	Admitted uint64
	Dropped  uint64
	Busy     bool
}

// TryAdmit claims the gate without blocking. It returns false if a frame is
// already in flight.
func (g *Gate) TryAdmit() bool {
	if g.busy.CompareAndSwap(false, true) {
		g.admitted.Inc()
		return true
	}
	g.dropped.Inc()
	return false
}

// Acquire claims the gate, waiting for the in-flight frame to finish. It is
// not counted as a frame admission.
func (g *Gate) Acquire(ctx context.Context) error {
	for !g.busy.CompareAndSwap(false, true) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
	return nil
}

// Refund reopens the gate for a frame that TryAdmit accepted but that could
// not be started, and counts it as dropped instead.
func (g *Gate) Refund() {
	g.admitted.Dec()
	g.dropped.Inc()
	g.busy.Store(false)
}

// Release reopens the gate. It must be called exactly once per successful
// TryAdmit or Acquire.
func (g *Gate) Release() {
	g.busy.Store(false)
}

// Stats returns the gate counters.
func (g *Gate) Stats() GateStats {
	return GateStats{
		Admitted: g.admitted.Load(),
		Dropped:  g.dropped.Load(),
		Busy:     g.busy.Load(),
	}
}

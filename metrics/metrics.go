// Package metrics - Pipeline counters exported for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/atomic"
)

// Metrics holds the overlay pipeline counters.
type Metrics struct {
	// Admission gate
	FramesAdmitted atomic.Uint64
	FramesDropped  atomic.Uint64

	// Worker outcomes
	InferenceErrors   atomic.Uint64
	InferencePanics   atomic.Uint64
	MalformedRecords  atomic.Uint64
	DegenerateFrames  atomic.Uint64
	DetectionsStored  atomic.Uint64
	RedrawsRequested  atomic.Uint64
	FramesWithoutSink atomic.Uint64
	StaleResults      atomic.Uint64

	inferenceLatency prometheus.Histogram
	registry         *prometheus.Registry
}

// New creates a Metrics instance backed by its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		inferenceLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "overlay_inference_duration_seconds",
			Help:    "Inference adapter call latency",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
	}
	m.register()
	return m
}

func (m *Metrics) register() {
	counters := []struct {
		name string
		help string
		v    *atomic.Uint64
	}{
		{"overlay_frames_admitted_total", "Frames admitted through the gate", &m.FramesAdmitted},
		{"overlay_frames_dropped_total", "Frames dropped while inference was busy", &m.FramesDropped},
		{"overlay_inference_errors_total", "Inference calls that returned an error", &m.InferenceErrors},
		{"overlay_inference_panics_total", "Inference calls that panicked", &m.InferencePanics},
		{"overlay_malformed_records_total", "Raw records skipped as malformed", &m.MalformedRecords},
		{"overlay_degenerate_frames_total", "Frames discarded for degenerate geometry", &m.DegenerateFrames},
		{"overlay_detections_stored_total", "Detections installed in the store", &m.DetectionsStored},
		{"overlay_redraws_requested_total", "Redraw requests sent to the surface", &m.RedrawsRequested},
		{"overlay_frames_without_session_total", "Frames released because no session was attached", &m.FramesWithoutSink},
		{"overlay_stale_results_total", "Inference results discarded after a mode switch", &m.StaleResults},
	}

	for _, c := range counters {
		v := c.v
		m.registry.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{Name: c.name, Help: c.help},
			func() float64 { return float64(v.Load()) },
		))
	}

	m.registry.MustRegister(m.inferenceLatency)
}

// ObserveInference records the duration of one inference call.
func (m *Metrics) ObserveInference(d time.Duration) {
	m.inferenceLatency.Observe(d.Seconds())
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

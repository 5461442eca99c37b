package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsExposition(t *testing.T) {
	m := New()
	m.FramesAdmitted.Add(3)
	m.FramesDropped.Inc()
	m.ObserveInference(20 * time.Millisecond)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				values[f.GetName()] = c.GetValue()
			}
			if h := metric.GetHistogram(); h != nil {
				values[f.GetName()] = float64(h.GetSampleCount())
			}
		}
	}

	assert.Equal(t, 3.0, values["overlay_frames_admitted_total"])
	assert.Equal(t, 1.0, values["overlay_frames_dropped_total"])
	assert.Equal(t, 0.0, values["overlay_inference_errors_total"])
	assert.Equal(t, 1.0, values["overlay_inference_duration_seconds"])
}

func TestMetricsHandler(t *testing.T) {
	m := New()
	m.RedrawsRequested.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "overlay_redraws_requested_total 1")
}

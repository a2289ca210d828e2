package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {

	m := NewMetrics()
	m.ObserveSample("L2", "discharge", "recorded", true)
	m.ObserveSample("L2", "discharge", "recorded", true)
	m.ObserveSample("L3", "", "deadband", false)
	m.Saved(nil, 10*time.Millisecond)
	m.Saved(errors.New("disk full"), time.Millisecond)
	m.CurvePublished("charge", 3, 92.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.observations.WithLabelValues("discharge", "L2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.skipped.WithLabelValues("L3", "deadband")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.saves.WithLabelValues("error")))
	assert.Equal(t, 92.5, testutil.ToFloat64(m.summary.WithLabelValues("charge")))
}

func TestNilMetrics(t *testing.T) {

	var m *Metrics
	assert.NotPanics(t, func() {
		m.Tick()
		m.TickFailed()
		m.PublishFailed()
		m.ObserveSample("L2", "charge", "recorded", true)
		m.Saved(nil, time.Second)
		m.CurvePublished("charge", 1, 1)
	})
	assert.Nil(t, m.Registry())
}

func TestMetricsHandler(t *testing.T) {

	m := NewMetrics()
	m.Tick()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "effcurve_ticks_total 1")
}

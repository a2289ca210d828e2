package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "effcurve"

// Metrics groups the collectors of the bridge. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	observations  *prometheus.CounterVec
	skipped       *prometheus.CounterVec
	ticks         prometheus.Counter
	tickFailures  prometheus.Counter
	saves         *prometheus.CounterVec
	saveDuration  prometheus.Histogram
	publishErrors prometheus.Counter
	binsFilled    *prometheus.GaugeVec
	summary       *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		observations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_total",
			Help:      "Efficiency observations folded into the curves by direction and channel.",
		}, []string{"direction", "channel"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_skipped_total",
			Help:      "Channel samples that produced no observation by reason.",
		}, []string{"channel", "reason"}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Sampling ticks processed.",
		}),
		tickFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_failures_total",
			Help:      "Sampling ticks aborted by an unexpected failure.",
		}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Aggregate saves by result.",
		}, []string{"result"}),
		saveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "save_duration_seconds",
			Help:      "Duration of aggregate saves.",
			Buckets:   prometheus.DefBuckets,
		}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "MQTT publish failures.",
		}),
		binsFilled: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "curve_points",
			Help:      "Bins holding at least one observation by direction.",
		}, []string{"direction"}),
		summary: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "curve_summary_percent",
			Help:      "Highest bin mean efficiency by direction.",
		}, []string{"direction"}),
	}

	m.registry.MustRegister(
		m.observations,
		m.skipped,
		m.ticks,
		m.tickFailures,
		m.saves,
		m.saveDuration,
		m.publishErrors,
		m.binsFilled,
		m.summary,
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveSample(channel, direction, outcome string, recorded bool) {
	if m == nil {
		return
	}
	if recorded {
		m.observations.WithLabelValues(direction, channel).Inc()
	} else {
		m.skipped.WithLabelValues(channel, outcome).Inc()
	}
}

func (m *Metrics) Tick() {
	if m == nil {
		return
	}
	m.ticks.Inc()
}

func (m *Metrics) TickFailed() {
	if m == nil {
		return
	}
	m.tickFailures.Inc()
}

func (m *Metrics) Saved(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.saves.WithLabelValues(result).Inc()
	m.saveDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) PublishFailed() {
	if m == nil {
		return
	}
	m.publishErrors.Inc()
}

func (m *Metrics) CurvePublished(direction string, points int, summary float64) {
	if m == nil {
		return
	}
	m.binsFilled.WithLabelValues(direction).Set(float64(points))
	m.summary.WithLabelValues(direction).Set(summary)
}

package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Calibration holds the calibrator's collectors. A nil *Calibration is valid
// and records nothing.
type Calibration struct {
	registry *prometheus.Registry

	BuildsTotal      *prometheus.CounterVec   // kind, status
	BuildDuration    *prometheus.HistogramVec // kind
	NewtonIterations *prometheus.HistogramVec // kind
	FallbacksTotal   *prometheus.CounterVec   // kind
	SmoothingTotal   *prometheus.CounterVec   // kind, outcome
}

// New registers the collectors on reg, or on a fresh registry when reg is nil.
func New(namespace string, reg *prometheus.Registry) (*Calibration, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Calibration{registry: reg}
	m.BuildsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "curve_builds_total",
		Help:      "Curve builds by kind and status.",
	}, []string{"kind", "status"})
	m.BuildDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "curve_build_duration_seconds",
		Help:      "Wall time of one curve build.",
		Buckets:   prometheus.ExponentialBuckets(1e-4, 4, 10),
	}, []string{"kind"})
	m.NewtonIterations = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "segment_newton_iterations",
		Help:      "Newton re-linearisations per calibrated segment.",
		Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
	}, []string{"kind"})
	m.FallbacksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "segment_root_fallbacks_total",
		Help:      "Segments that needed the bracketing root-finder.",
	}, []string{"kind"})
	m.SmoothingTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "smoothing_passes_total",
		Help:      "Global smoothing passes by outcome.",
	}, []string{"kind", "outcome"})

	for _, c := range []prometheus.Collector{m.BuildsTotal, m.BuildDuration, m.NewtonIterations, m.FallbacksTotal, m.SmoothingTotal} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics.New: %w", err)
		}
	}
	return m, nil
}

// Registry returns the backing registry.
func (m *Calibration) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the registry over HTTP.
func (m *Calibration) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Calibration) ObserveBuild(kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.BuildsTotal.WithLabelValues(kind, status).Inc()
	m.BuildDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Calibration) ObserveSegment(kind string, newtonIterations int, fallback bool) {
	if m == nil {
		return
	}
	m.NewtonIterations.WithLabelValues(kind).Observe(float64(newtonIterations))
	if fallback {
		m.FallbacksTotal.WithLabelValues(kind).Inc()
	}
}

// ObserveSmoothing records "accepted" or "rejected".
func (m *Calibration) ObserveSmoothing(kind, outcome string) {
	if m == nil {
		return
	}
	m.SmoothingTotal.WithLabelValues(kind, outcome).Inc()
}

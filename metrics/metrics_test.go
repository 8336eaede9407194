package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/meenmo/curvekit/metrics"
)

func TestObserve(t *testing.T) {
	t.Parallel()

	m, err := metrics.New("curvekit", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.ObserveBuild("discount", 3*time.Millisecond, nil)
	m.ObserveBuild("discount", time.Millisecond, errors.New("boom"))
	m.ObserveSegment("forward", 3, true)
	m.ObserveSmoothing("discount", "accepted")

	if got := testutil.ToFloat64(m.BuildsTotal.WithLabelValues("discount", "ok")); got != 1 {
		t.Fatalf("ok builds = %g, want 1", got)
	}
	if got := testutil.ToFloat64(m.BuildsTotal.WithLabelValues("discount", "error")); got != 1 {
		t.Fatalf("failed builds = %g, want 1", got)
	}
	if got := testutil.ToFloat64(m.FallbacksTotal.WithLabelValues("forward")); got != 1 {
		t.Fatalf("fallbacks = %g, want 1", got)
	}
	if got := testutil.ToFloat64(m.SmoothingTotal.WithLabelValues("discount", "accepted")); got != 1 {
		t.Fatalf("smoothing = %g, want 1", got)
	}
	if n := testutil.CollectAndCount(m.NewtonIterations); n != 1 {
		t.Fatalf("newton series = %d, want 1", n)
	}
}

func TestNilIsNoop(t *testing.T) {
	t.Parallel()

	var m *metrics.Calibration
	m.ObserveBuild("fx", time.Second, nil)
	m.ObserveSegment("fx", 1, false)
	m.ObserveSmoothing("fx", "rejected")
	if m.Registry() != nil {
		t.Fatalf("nil metrics has a registry")
	}
}

func TestDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	if _, err := metrics.New("curvekit", reg); err != nil {
		t.Fatalf("first New: %v", err)
	}
	if _, err := metrics.New("curvekit", reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

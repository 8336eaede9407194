package curve_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/meenmo/curvekit/curve"
	"github.com/meenmo/curvekit/spline"
	"github.com/meenmo/curvekit/stretch"
	"github.com/meenmo/curvekit/utils"
)

var (
	epoch = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	knots = []time.Time{
		time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC),
		time.Date(2027, 1, 6, 0, 0, 0, 0, time.UTC),
	}
)

// flatStretch fits exp(-rate*t) (or the constant value for Flat) at each knot.
func flatStretch(t *testing.T, rate float64, ex stretch.Extrapolation, calibrate bool) *stretch.Stretch {
	t.Helper()
	return flatStretchOn(t, utils.Act365F, rate, ex, calibrate)
}

func flatStretchOn(t *testing.T, dc utils.DayCount, rate float64, ex stretch.Extrapolation, calibrate bool) *stretch.Stretch {
	t.Helper()
	p, err := spline.NewPolynomial(3)
	if err != nil {
		t.Fatalf("NewPolynomial: %v", err)
	}
	times := []float64{0}
	for _, d := range knots {
		times = append(times, utils.YearFraction(epoch, d, dc))
	}
	s, err := stretch.New(times, stretch.Config{Basis: p, Continuity: 1, Anchor: 1, Extrapolation: ex})
	if err != nil {
		t.Fatalf("stretch.New: %v", err)
	}
	if !calibrate {
		return s
	}
	for i := range knots {
		if err := s.CalibrateSegmentToNode(i, math.Exp(-rate*times[i+1])); err != nil {
			t.Fatalf("CalibrateSegmentToNode(%d): %v", i, err)
		}
	}
	return s
}

func TestNewRequiresCalibratedStretch(t *testing.T) {
	t.Parallel()

	label := curve.Label{Kind: curve.Discount, Currency: "USD"}
	if _, err := curve.New(label, epoch, utils.Act365F, flatStretch(t, 0.02, stretch.FlatForward, false), knots); !errors.Is(err, stretch.ErrNotCalibrated) {
		t.Fatalf("expected ErrNotCalibrated, got %v", err)
	}
	if _, err := curve.New(label, epoch, utils.Act365F, flatStretch(t, 0.02, stretch.FlatForward, true), knots[:1]); err == nil {
		t.Fatalf("expected knot count error")
	}
}

func TestDiscountCurveAccessors(t *testing.T) {
	t.Parallel()

	label := curve.Label{Kind: curve.Discount, Currency: "USD"}
	c, err := curve.New(label, epoch, utils.Act365F, flatStretch(t, 0.02, stretch.FlatForward, true), knots)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.DF(knots[1]); math.Abs(got-math.Exp(-0.04)) > 1e-13 {
		t.Fatalf("DF(2Y) = %.16f", got)
	}
	if got := c.ZeroRate(knots[0]); math.Abs(got-2) > 1e-10 {
		t.Fatalf("ZeroRate(1Y) = %.12f%%", got)
	}
	if c.ZeroRate(epoch) != 0 {
		t.Fatalf("ZeroRate at epoch should be 0")
	}
	fwd := c.Forward(knots[0], knots[1])
	if want := (math.Exp(0.02) - 1) / (365.0 / 360.0); math.Abs(fwd-want) > 1e-12 {
		t.Fatalf("Forward = %.12f, want %.12f", fwd, want)
	}
	if v, err := c.Evaluate(knots[0], curve.DiscountFactor); err != nil || v != c.DF(knots[0]) {
		t.Fatalf("Evaluate(DF) = %g, %v", v, err)
	}
	if _, err := c.Evaluate(knots[0], curve.FXRate); !errors.Is(err, curve.ErrQuantityUnsupported) {
		t.Fatalf("expected ErrQuantityUnsupported, got %v", err)
	}

	ks := c.Knots()
	ks[0] = epoch
	if !c.Knots()[0].Equal(knots[0]) {
		t.Fatalf("Knots must return a copy")
	}
}

func TestZeroRateUsesCurveDayCount(t *testing.T) {
	t.Parallel()

	label := curve.Label{Kind: curve.Discount, Currency: "USD"}
	c, err := curve.New(label, epoch, utils.Act360, flatStretchOn(t, utils.Act360, 0.02, stretch.FlatForward, true), knots)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Time(knots[0]); math.Abs(got-365.0/360.0) > 1e-15 {
		t.Fatalf("Time(1Y) = %.15f", got)
	}
	if got := c.ZeroRate(knots[0]); math.Abs(got-2) > 1e-10 {
		t.Fatalf("ZeroRate(1Y) on ACT/360 = %.12f%%", got)
	}
}

func TestDerivativeAndRoughness(t *testing.T) {
	t.Parallel()

	label := curve.Label{Kind: curve.Discount, Currency: "USD"}
	c, err := curve.New(label, epoch, utils.Act365F, flatStretch(t, 0.02, stretch.FlatForward, true), knots)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mid := time.Date(2025, 7, 6, 0, 0, 0, 0, time.UTC)
	h := time.Hour
	dt := c.Time(mid.Add(h)) - c.Time(mid.Add(-h))
	fd := (c.Value(mid.Add(h)) - c.Value(mid.Add(-h))) / dt
	if got := c.Derivative(mid, 1); math.Abs(got-fd) > 1e-8 {
		t.Fatalf("Derivative(1) = %.12f, central difference %.12f", got, fd)
	}
	if c.Derivative(mid, 0) != c.Value(mid) {
		t.Fatalf("Derivative(0) differs from Value")
	}
	// exp(-0.02t) is nearly straight: tiny but positive curvature.
	if r := c.Roughness(); r <= 0 || r > 1e-3 {
		t.Fatalf("Roughness = %g", r)
	}
}

func TestCreditCurveAccessors(t *testing.T) {
	t.Parallel()

	label := curve.Label{Kind: curve.Credit, Currency: "USD", Entity: "ACME"}
	c, err := curve.New(label, epoch, utils.Act365F, flatStretch(t, 0.015, stretch.FlatForward, true), knots)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Forward(knots[0], knots[1]); math.Abs(got-0.015) > 1e-12 {
		t.Fatalf("average hazard = %.12f", got)
	}
	if got := c.Survival(knots[0]); math.Abs(got-math.Exp(-0.015)) > 1e-13 {
		t.Fatalf("Survival(1Y) = %.16f", got)
	}
	if _, err := c.Evaluate(knots[0], curve.DiscountFactor); !errors.Is(err, curve.ErrQuantityUnsupported) {
		t.Fatalf("expected ErrQuantityUnsupported, got %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("DF on a credit curve should panic")
		}
	}()
	c.DF(knots[0])
}

func TestKinds(t *testing.T) {
	t.Parallel()

	for _, k := range []curve.Kind{curve.Discount, curve.Forward, curve.Credit, curve.Govvie, curve.FX} {
		got, err := curve.ParseKind(k.String())
		if err != nil || got != k {
			t.Fatalf("ParseKind(%s) = %v, %v", k, got, err)
		}
		want := stretch.FlatForward
		if k == curve.FX {
			want = stretch.Flat
		}
		if k.Extrapolation() != want {
			t.Fatalf("%s extrapolation = %s", k, k.Extrapolation())
		}
	}
	if _, err := curve.ParseKind("inflation"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestContainer(t *testing.T) {
	t.Parallel()

	six := curve.Label{Kind: curve.Forward, Currency: "USD", Tenor: "6M"}
	ois := curve.Label{Kind: curve.Discount, Currency: "USD"}
	cds := curve.Label{Kind: curve.Credit, Currency: "USD", Entity: "ACME"}
	if six.String() != "forward:USD:6M" || cds.String() != "credit:USD:ACME" {
		t.Fatalf("labels = %s, %s", six, cds)
	}

	c, err := curve.New(ois, epoch, utils.Act365F, flatStretch(t, 0.02, stretch.FlatForward, true), knots)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	box := curve.NewContainer()
	box.Set(six, c)
	box.Set(ois, c)
	box.Set(cds, c)
	box.Set(ois, c)
	if box.Len() != 3 || box.Get(ois) != c || box.Get(curve.Label{Kind: curve.FX}) != nil {
		t.Fatalf("container contents wrong")
	}
	labels := box.Labels()
	if labels[0] != cds || labels[1] != ois || labels[2] != six {
		t.Fatalf("Labels = %v", labels)
	}
}

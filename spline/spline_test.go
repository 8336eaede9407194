package spline_test

import (
	"errors"
	"math"
	"testing"

	"github.com/meenmo/curvekit/spline"
)

func TestPolynomialHornerMatchesBasis(t *testing.T) {
	t.Parallel()

	p, err := spline.NewPolynomial(3)
	if err != nil {
		t.Fatalf("NewPolynomial: %v", err)
	}
	coef := []float64{1.5, -2, 0.25, 3}
	buf := make([]float64, p.Len())
	for _, x := range []float64{0, 0.3, 1, 1.7} {
		for order := 0; order <= spline.MaxOrder; order++ {
			p.Eval(x, order, buf)
			want := 0.0
			for k := range coef {
				want += coef[k] * buf[k]
			}
			if got := p.Combine(coef, x, order); math.Abs(got-want) > 1e-12 {
				t.Fatalf("x=%g order=%d: Horner %.15g, basis sum %.15g", x, order, got, want)
			}
		}
	}
}

func TestTensionDegeneratesAtZero(t *testing.T) {
	t.Parallel()

	e, err := spline.NewExponentialTension(0)
	if err != nil {
		t.Fatalf("NewExponentialTension(0): %v", err)
	}
	h, err := spline.NewHyperbolicTension(0)
	if err != nil {
		t.Fatalf("NewHyperbolicTension(0): %v", err)
	}
	eb := make([]float64, 2)
	hb := make([]float64, 4)
	for _, x := range []float64{0, 0.25, 0.5, 1} {
		e.Eval(x, 0, eb)
		if math.Abs(eb[1]-x) > 1e-14 {
			t.Fatalf("exponential(0) at %g: %g, want linear %g", x, eb[1], x)
		}
		h.Eval(x, 0, hb)
		if math.Abs(hb[2]-x*x*x) > 1e-14 || math.Abs(hb[3]-x*x) > 1e-14 {
			t.Fatalf("hyperbolic(0) at %g: %v, want cubic/quadratic", x, hb)
		}
		h.Eval(x, 2, hb)
		if math.Abs(hb[2]-6*x) > 1e-12 || math.Abs(hb[3]-2) > 1e-12 {
			t.Fatalf("hyperbolic(0)'' at %g: %v", x, hb)
		}
	}
}

func TestTensionIsContinuousInLambda(t *testing.T) {
	t.Parallel()

	// The small-argument series take over at |u| = 1e-8, 1e-4 and 1e-2, where
	// u is λx inside the basis and λ itself in the normalisations. Straddle
	// each switch at x = 0.7 (basis argument only) and x = 1 (both).
	for _, s := range []float64{1e-8, 1e-4, 1e-2} {
		for _, x := range []float64{0.7, 1} {
			lo, hi := s/x*(1-1e-9), s/x*(1+1e-9)
			tol := 1e-10 + 2*(hi-lo)

			ha, _ := spline.NewHyperbolicTension(lo)
			hb, _ := spline.NewHyperbolicTension(hi)
			ea, _ := spline.NewExponentialTension(lo)
			eb, _ := spline.NewExponentialTension(hi)
			for order := 0; order <= spline.MaxOrder; order++ {
				ba, bb := make([]float64, 4), make([]float64, 4)
				ha.Eval(x, order, ba)
				hb.Eval(x, order, bb)
				for k := range ba {
					if math.Abs(ba[k]-bb[k]) > tol {
						t.Fatalf("hyperbolic f%d^(%d) at x=%g jumps across λ=%g: %.15g vs %.15g", k, order, x, s/x, ba[k], bb[k])
					}
				}
				ea.Eval(x, order, ba[:2])
				eb.Eval(x, order, bb[:2])
				for k := 0; k < 2; k++ {
					if math.Abs(ba[k]-bb[k]) > tol {
						t.Fatalf("exponential f%d^(%d) at x=%g jumps across λ=%g: %.15g vs %.15g", k, order, x, s/x, ba[k], bb[k])
					}
				}
			}
		}
	}
}

func TestTensionOverflowRejected(t *testing.T) {
	t.Parallel()

	var sce *spline.SegmentConstructionError
	if _, err := spline.NewHyperbolicTension(1000); !errors.As(err, &sce) {
		t.Fatalf("expected SegmentConstructionError, got %v", err)
	}
	if _, err := spline.NewExponentialTension(-800); !errors.As(err, &sce) {
		t.Fatalf("expected SegmentConstructionError, got %v", err)
	}
}

func TestSegmentRejectsNonIncreasingKnots(t *testing.T) {
	t.Parallel()

	p, _ := spline.NewPolynomial(1)
	var sce *spline.SegmentConstructionError
	if _, err := spline.NewSegment(1, 1, p); !errors.As(err, &sce) {
		t.Fatalf("expected SegmentConstructionError for equal knots, got %v", err)
	}
	if _, err := spline.NewSegment(2, 1, p); !errors.As(err, &sce) {
		t.Fatalf("expected SegmentConstructionError for reversed knots, got %v", err)
	}
}

func TestSegmentFitExactAndMinimumRoughness(t *testing.T) {
	t.Parallel()

	lin, _ := spline.NewPolynomial(1)
	seg, err := spline.NewSegment(0.5, 1.5, lin)
	if err != nil {
		t.Fatalf("NewSegment: %v", err)
	}
	rows := [][]float64{seg.Row(0.5, 0), seg.Row(1.5, 0)}
	if err := seg.Fit(rows, []float64{1, 0.9}, 0); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if got := seg.Evaluate(1.0); math.Abs(got-0.95) > 1e-14 {
		t.Fatalf("linear midpoint %g, want 0.95", got)
	}
	if got := seg.Derivative(1.0, 1); math.Abs(got+0.1) > 1e-14 {
		t.Fatalf("slope %g, want -0.1", got)
	}

	// A cubic with the same two constraints picks the zero-curvature solution.
	cubic, _ := spline.NewPolynomial(3)
	cs, _ := spline.NewSegment(0.5, 1.5, cubic)
	rows = [][]float64{cs.Row(0.5, 0), cs.Row(1.5, 0)}
	if err := cs.Fit(rows, []float64{1, 0.9}, 0); err != nil {
		t.Fatalf("Fit cubic: %v", err)
	}
	if got := cs.Evaluate(1.0); math.Abs(got-0.95) > 1e-10 {
		t.Fatalf("cubic midpoint %g, want 0.95", got)
	}
	if got := cs.Derivative(0.8, 2); math.Abs(got) > 1e-8 {
		t.Fatalf("cubic curvature %g, want 0", got)
	}
}

func TestSegmentFitOverDetermined(t *testing.T) {
	t.Parallel()

	lin, _ := spline.NewPolynomial(1)
	seg, _ := spline.NewSegment(0, 1, lin)
	rows := [][]float64{seg.Row(0, 0), seg.Row(0.5, 0), seg.Row(1, 0)}
	var sce *spline.SegmentConstructionError
	if err := seg.Fit(rows, []float64{1, 1, 1}, 0); !errors.As(err, &sce) {
		t.Fatalf("expected SegmentConstructionError, got %v", err)
	}
	if !math.IsNaN(seg.Evaluate(0.5)) {
		t.Fatalf("unfitted segment should evaluate to NaN")
	}
}

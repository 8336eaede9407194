package stretch

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/meenmo/curvekit/spline"
)

// Smooth returns a new stretch minimising total roughness Σ∫y''² subject to
// the anchor, continuity up to order at every interior knot, and every
// equation. The receiver is left untouched. The stretch must be fully
// calibrated, and each equation must be expressed over the whole curve (no
// folded front end).
func (s *Stretch) Smooth(eqs []Equation, order int) (*Stretch, error) {
	if s.State() != Calibrated {
		return nil, fmt.Errorf("Smooth: %w", ErrNotCalibrated)
	}
	if order < 0 || order > spline.MaxOrder {
		return nil, fmt.Errorf("Smooth: continuity order %d outside [0, %d]", order, spline.MaxOrder)
	}
	k := s.cfg.Basis.Len()
	nseg := len(s.segments)
	n := nseg * k

	var rows [][]float64
	var rhs []float64
	addRow := func(r []float64, b float64) {
		rows = append(rows, r)
		rhs = append(rhs, b)
	}

	first := s.segments[0]
	r := make([]float64, n)
	copy(r, first.Row(first.Left(), 0))
	addRow(r, s.cfg.Anchor)

	for i := 1; i < nseg; i++ {
		left, right := s.segments[i-1], s.segments[i]
		knot := right.Left()
		for m := 0; m <= order; m++ {
			r := make([]float64, n)
			copy(r[(i-1)*k:i*k], left.Row(knot, m))
			for j, v := range right.Row(knot, m) {
				r[i*k+j] = -v
			}
			addRow(r, 0)
		}
	}

	for e, eq := range eqs {
		r := make([]float64, n)
		for j, t := range eq.Ordinates {
			if t < s.knots[0] || t > s.knots[nseg] {
				return nil, fmt.Errorf("Smooth: equation %d ordinate %g outside the stretch", e, t)
			}
			i := s.locate(t)
			for c, v := range s.segments[i].Row(t, 0) {
				r[i*k+c] += eq.Weights[j] * v
			}
		}
		addRow(r, eq.Target)
	}

	q := mat.NewSymDense(n, nil)
	for i, seg := range s.segments {
		g := seg.Roughness()
		for a := 0; a < k; a++ {
			for b := a; b < k; b++ {
				q.SetSym(i*k+a, i*k+b, g.At(a, b))
			}
		}
	}

	coef, err := spline.Solve(rows, rhs, q, s.cfg.Ridge)
	if err != nil {
		return nil, fmt.Errorf("Smooth: %w", err)
	}
	out := s.Clone()
	for i, seg := range out.segments {
		if err := seg.SetCoefficients(coef[i*k : (i+1)*k]); err != nil {
			return nil, fmt.Errorf("Smooth: segment %d: %w", i, err)
		}
	}
	return out, nil
}

// Roughness is Σ cᵀGc over the calibrated segments, G being each segment's
// Gram matrix of second derivatives.
func (s *Stretch) Roughness() float64 {
	total := 0.0
	for _, seg := range s.segments[:s.calibrated] {
		c := mat.NewVecDense(seg.Basis().Len(), seg.Coefficients())
		total += mat.Inner(c, seg.Roughness(), c)
	}
	return total
}

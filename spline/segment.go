package spline

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Segment is one knot interval [left, right] of a stretch carrying a basis and,
// once fitted, its coefficients.
type Segment struct {
	left, right float64
	width       float64
	basis       Basis
	coef        []float64
}

// NewSegment validates the knot ordering and returns an unfitted segment.
func NewSegment(left, right float64, basis Basis) (*Segment, error) {
	if basis == nil {
		return nil, constructionErr("nil basis")
	}
	if math.IsNaN(left) || math.IsNaN(right) || !(right > left) {
		return nil, constructionErr("knots [%g, %g] are not strictly increasing", left, right)
	}
	return &Segment{left: left, right: right, width: right - left, basis: basis}, nil
}

func (s *Segment) Left() float64  { return s.left }
func (s *Segment) Right() float64 { return s.right }
func (s *Segment) Width() float64 { return s.width }
func (s *Segment) Basis() Basis   { return s.basis }

// Fitted reports whether coefficients have been set.
func (s *Segment) Fitted() bool { return s.coef != nil }

// Coefficients returns a copy of the fitted coefficients, nil when unfitted.
func (s *Segment) Coefficients() []float64 {
	if s.coef == nil {
		return nil
	}
	out := make([]float64, len(s.coef))
	copy(out, s.coef)
	return out
}

// SetCoefficients installs coefficients computed elsewhere (global smoothing).
func (s *Segment) SetCoefficients(c []float64) error {
	if len(c) != s.basis.Len() {
		return constructionErr("got %d coefficients for %s", len(c), s.basis)
	}
	s.coef = append([]float64(nil), c...)
	return nil
}

func (s *Segment) local(t float64) float64 {
	return (t - s.left) / s.width
}

// Row returns the order-th t-derivative of every basis function at t, so that
// Row(t, m)·coef is the m-th derivative of the segment value.
func (s *Segment) Row(t float64, order int) []float64 {
	row := make([]float64, s.basis.Len())
	s.basis.Eval(s.local(t), order, row)
	if order > 0 {
		scale := math.Pow(s.width, -float64(order))
		for k := range row {
			row[k] *= scale
		}
	}
	return row
}

// Evaluate returns the segment value at t. Points outside [left, right] use the
// basis extended; NaN is returned when the segment is unfitted.
func (s *Segment) Evaluate(t float64) float64 {
	return s.Derivative(t, 0)
}

// Derivative returns the order-th t-derivative at t.
func (s *Segment) Derivative(t float64, order int) float64 {
	if s.coef == nil || order < 0 || order > MaxOrder {
		return math.NaN()
	}
	v := s.basis.Combine(s.coef, s.local(t), order)
	if order > 0 {
		v *= math.Pow(s.width, -float64(order))
	}
	return v
}

// Clone returns an independent copy.
func (s *Segment) Clone() *Segment {
	c := *s
	c.coef = s.Coefficients()
	return &c
}

// Fit solves for the coefficients given constraint rows A·c = b, using the
// minimum-roughness solution when A has fewer rows than the basis has functions.
func (s *Segment) Fit(rows [][]float64, rhs []float64, ridge float64) error {
	coef, err := Solve(rows, rhs, s.Roughness(), ridge)
	if err != nil {
		return err
	}
	s.coef = coef
	return nil
}

// Roughness is the Gram matrix ∫ f_j''(t) f_k''(t) dt over the segment.
func (s *Segment) Roughness() *mat.SymDense {
	n := s.basis.Len()
	q := mat.NewSymDense(n, nil)
	buf := make([]float64, n)
	scale := math.Pow(s.width, -3)
	for i, x := range gaussNodes {
		s.basis.Eval(x, 2, buf)
		w := gaussWeights[i] * scale
		for j := 0; j < n; j++ {
			for k := j; k < n; k++ {
				q.SetSym(j, k, q.At(j, k)+w*buf[j]*buf[k])
			}
		}
	}
	return q
}

// 8-point Gauss-Legendre rule mapped onto [0, 1].
var gaussNodes, gaussWeights = func() ([]float64, []float64) {
	x := []float64{0.1834346424956498, 0.5255324099163290, 0.7966664774136267, 0.9602898564975363}
	w := []float64{0.3626837833783620, 0.3137066458778873, 0.2223810344533745, 0.1012285362903763}
	nodes := make([]float64, 0, 8)
	weights := make([]float64, 0, 8)
	for i := range x {
		nodes = append(nodes, 0.5*(1-x[i]), 0.5*(1+x[i]))
		weights = append(weights, 0.5*w[i], 0.5*w[i])
	}
	return nodes, weights
}()

// Package stretch assembles spline segments into one continuous latent-state
// function over curve time and calibrates it strictly left to right.
package stretch

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/meenmo/curvekit/spline"
)

var (
	// ErrOutOfOrder is returned when a segment is calibrated before its left neighbour.
	ErrOutOfOrder = errors.New("stretch: segment calibrated out of order")
	// ErrNotCalibrated is returned when a fully calibrated stretch is required.
	ErrNotCalibrated = errors.New("stretch: not fully calibrated")
)

// State is the calibration state of a stretch.
type State int

const (
	Empty State = iota
	Partial
	Calibrated
)

func (s State) String() string {
	switch s {
	case Empty:
		return "EMPTY"
	case Partial:
		return "PARTIALLY_CALIBRATED"
	default:
		return "FULLY_CALIBRATED"
	}
}

// Extrapolation is the rule applied beyond the last calibrated knot.
type Extrapolation int

const (
	// FlatForward keeps the instantaneous forward -y'/y of the last knot constant,
	// y(t) = y(T)·exp(-f·(t-T)).
	FlatForward Extrapolation = iota
	// Flat holds the last knot value.
	Flat
)

func (e Extrapolation) String() string {
	if e == Flat {
		return "flat"
	}
	return "flat-forward"
}

// Config fixes the shape of a stretch at construction.
type Config struct {
	Basis spline.Basis
	// Continuity is the highest derivative order matched at interior knots (0..2).
	Continuity int
	// Anchor is the value pinned at the first knot (1 for discount and survival curves).
	Anchor        float64
	Extrapolation Extrapolation
	// Ridge regularises the minimum-roughness solve; 0 disables it.
	Ridge float64
}

// Equation is one linear condition Σ Weights[j]·y(Ordinates[j]) = Target.
type Equation struct {
	Ordinates []float64
	Weights   []float64
	Target    float64
}

// Residual evaluates the equation against fn.
func (e Equation) Residual(fn func(float64) float64) float64 {
	v := -e.Target
	for j, t := range e.Ordinates {
		v += e.Weights[j] * fn(t)
	}
	return v
}

// Stretch is an ordered run of segments over knots[0] < knots[1] < ... .
type Stretch struct {
	cfg        Config
	knots      []float64
	segments   []*spline.Segment
	calibrated int
}

// New validates the knots and config and returns an empty stretch.
func New(knots []float64, cfg Config) (*Stretch, error) {
	if len(knots) < 2 {
		return nil, fmt.Errorf("stretch.New: need at least 2 knots, got %d", len(knots))
	}
	if cfg.Basis == nil {
		return nil, fmt.Errorf("stretch.New: nil basis")
	}
	if cfg.Continuity < 0 || cfg.Continuity > spline.MaxOrder {
		return nil, fmt.Errorf("stretch.New: continuity order %d outside [0, %d]", cfg.Continuity, spline.MaxOrder)
	}
	// One instrument equation plus Continuity+1 matching conditions per segment.
	if need := cfg.Continuity + 2; cfg.Basis.Len() < need {
		return nil, &spline.SegmentConstructionError{
			Reason: fmt.Sprintf("%s has %d functions, C%d continuity needs %d", cfg.Basis, cfg.Basis.Len(), cfg.Continuity, need),
		}
	}
	segs := make([]*spline.Segment, len(knots)-1)
	for i := range segs {
		seg, err := spline.NewSegment(knots[i], knots[i+1], cfg.Basis)
		if err != nil {
			return nil, fmt.Errorf("stretch.New: segment %d: %w", i, err)
		}
		segs[i] = seg
	}
	return &Stretch{cfg: cfg, knots: append([]float64(nil), knots...), segments: segs}, nil
}

func (s *Stretch) Config() Config { return s.cfg }

// Knots returns a copy of the knot ordinates.
func (s *Stretch) Knots() []float64 { return append([]float64(nil), s.knots...) }

// Len is the number of segments.
func (s *Stretch) Len() int { return len(s.segments) }

// CalibratedSegments is the number of segments solved so far.
func (s *Stretch) CalibratedSegments() int { return s.calibrated }

// Segment returns segment i.
func (s *Stretch) Segment(i int) *spline.Segment { return s.segments[i] }

func (s *Stretch) State() State {
	switch {
	case s.calibrated == 0:
		return Empty
	case s.calibrated < len(s.segments):
		return Partial
	default:
		return Calibrated
	}
}

// Frontier is the right knot of the last calibrated segment, or the first knot
// when nothing is calibrated. Values at or left of it are fixed.
func (s *Stretch) Frontier() float64 {
	return s.knots[s.calibrated]
}

func (s *Stretch) checkIndex(i int) error {
	if i < 0 || i >= len(s.segments) {
		return fmt.Errorf("segment %d outside [0, %d): %w", i, len(s.segments), ErrOutOfOrder)
	}
	// i == calibrated extends the stretch; i == calibrated-1 refines the frontier segment.
	if i != s.calibrated && i != s.calibrated-1 {
		return fmt.Errorf("segment %d with %d calibrated: %w", i, s.calibrated, ErrOutOfOrder)
	}
	return nil
}

// leftConditions are the anchor (segment 0) or the continuity rows against the
// left neighbour.
func (s *Stretch) leftConditions(i int) ([][]float64, []float64) {
	seg := s.segments[i]
	if i == 0 {
		return [][]float64{seg.Row(seg.Left(), 0)}, []float64{s.cfg.Anchor}
	}
	prev := s.segments[i-1]
	rows := make([][]float64, 0, s.cfg.Continuity+1)
	rhs := make([]float64, 0, s.cfg.Continuity+1)
	for m := 0; m <= s.cfg.Continuity; m++ {
		rows = append(rows, seg.Row(seg.Left(), m))
		rhs = append(rhs, prev.Derivative(seg.Left(), m))
	}
	return rows, rhs
}

// CalibrateSegment solves segment i so that it joins its left neighbour to the
// configured order and satisfies eq. Every ordinate of eq must lie inside the
// segment; already-fixed values belong in eq.Target.
func (s *Stretch) CalibrateSegment(i int, eq Equation) error {
	if err := s.checkIndex(i); err != nil {
		return fmt.Errorf("CalibrateSegment: %w", err)
	}
	if len(eq.Ordinates) != len(eq.Weights) || len(eq.Ordinates) == 0 {
		return fmt.Errorf("CalibrateSegment: %d ordinates, %d weights", len(eq.Ordinates), len(eq.Weights))
	}
	seg := s.segments[i]
	row := make([]float64, seg.Basis().Len())
	for j, t := range eq.Ordinates {
		if t < seg.Left() || t > seg.Right() {
			return fmt.Errorf("CalibrateSegment: ordinate %g outside segment %d [%g, %g]", t, i, seg.Left(), seg.Right())
		}
		for k, v := range seg.Row(t, 0) {
			row[k] += eq.Weights[j] * v
		}
	}
	return s.fit(i, row, eq.Target)
}

// CalibrateSegmentToNode solves segment i with its right-knot value pinned to v.
func (s *Stretch) CalibrateSegmentToNode(i int, v float64) error {
	if err := s.checkIndex(i); err != nil {
		return fmt.Errorf("CalibrateSegmentToNode: %w", err)
	}
	seg := s.segments[i]
	return s.fit(i, seg.Row(seg.Right(), 0), v)
}

func (s *Stretch) fit(i int, row []float64, target float64) error {
	rows, rhs := s.leftConditions(i)
	rows = append(rows, row)
	rhs = append(rhs, target)
	if err := s.segments[i].Fit(rows, rhs, s.cfg.Ridge); err != nil {
		return fmt.Errorf("segment %d: %w", i, err)
	}
	if i == s.calibrated {
		s.calibrated++
	}
	return nil
}

// locate returns the segment owning t among the calibrated ones; t exactly on an
// interior knot belongs to the left segment.
func (s *Stretch) locate(t float64) int {
	n := s.calibrated
	idx := sort.Search(n, func(i int) bool { return s.segments[i].Right() >= t })
	if idx >= n {
		return n - 1
	}
	return idx
}

// Evaluate returns the latent value at t. Before the first knot the anchor
// segment is clamped; beyond the frontier the extrapolation rule applies.
// NaN is returned on an empty stretch.
func (s *Stretch) Evaluate(t float64) float64 {
	return s.Derivative(t, 0)
}

// Derivative returns the order-th derivative at t under the same rules as Evaluate.
func (s *Stretch) Derivative(t float64, order int) float64 {
	if s.calibrated == 0 {
		return math.NaN()
	}
	if t < s.knots[0] {
		if order > 0 {
			return 0
		}
		t = s.knots[0]
	}
	if front := s.Frontier(); t > front {
		return s.extrapolate(t, front, order)
	}
	return s.segments[s.locate(t)].Derivative(t, order)
}

func (s *Stretch) extrapolate(t, front float64, order int) float64 {
	last := s.segments[s.calibrated-1]
	y := last.Evaluate(front)
	if s.cfg.Extrapolation == Flat {
		if order > 0 {
			return 0
		}
		return y
	}
	if y == 0 {
		return 0
	}
	f := -last.Derivative(front, 1) / y
	v := y * math.Exp(-f*(t-front))
	return v * math.Pow(-f, float64(order))
}

// Clone returns an independent deep copy.
func (s *Stretch) Clone() *Stretch {
	c := &Stretch{cfg: s.cfg, knots: append([]float64(nil), s.knots...), calibrated: s.calibrated}
	c.segments = make([]*spline.Segment, len(s.segments))
	for i, seg := range s.segments {
		c.segments[i] = seg.Clone()
	}
	return c
}

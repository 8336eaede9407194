package calib

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/meenmo/curvekit/curve"
	"github.com/meenmo/curvekit/instrument"
	"github.com/meenmo/curvekit/stretch"
	"github.com/meenmo/curvekit/utils"
)

// PRWC is a predictor-response weight constraint: the single linear equation
//
//	Σ Weights[j]·node(Dates[j]) = Target
//
// on the latent values of the curve named by Label. Dates are ascending and
// distinct. ManifestSensitivity maps a manifest measure to the derivative of
// Target with respect to that quote.
type PRWC struct {
	Label               curve.Label
	Dates               []time.Time
	Weights             []float64
	Target              float64
	ManifestSensitivity map[string]float64

	// Linearized marks a Newton linearisation rather than an exact encoding.
	Linearized bool
}

func NewPRWC(label curve.Label) *PRWC {
	return &PRWC{Label: label, ManifestSensitivity: map[string]float64{}}
}

// Add accumulates w onto the weight of d.
func (p *PRWC) Add(d time.Time, w float64) {
	i := sort.Search(len(p.Dates), func(i int) bool { return !p.Dates[i].Before(d) })
	if i < len(p.Dates) && p.Dates[i].Equal(d) {
		p.Weights[i] += w
		return
	}
	p.Dates = append(p.Dates, time.Time{})
	p.Weights = append(p.Weights, 0)
	copy(p.Dates[i+1:], p.Dates[i:])
	copy(p.Weights[i+1:], p.Weights[i:])
	p.Dates[i], p.Weights[i] = d, w
}

// AddLeg adds one additive part of a linear price equation.
func (p *PRWC) AddLeg(l instrument.Leg) error {
	if len(l.Dates) != len(l.Weights) {
		return fmt.Errorf("AddLeg: %d dates, %d weights", len(l.Dates), len(l.Weights))
	}
	for j, d := range l.Dates {
		p.Add(d, l.Weights[j])
	}
	p.Target += l.Target
	return nil
}

// Absorb adds o's equation into p. Both must target the same curve.
func (p *PRWC) Absorb(o *PRWC) error {
	if p.Label != o.Label {
		return fmt.Errorf("Absorb %s into %s: %w", o.Label, p.Label, ErrIncompatiblePRWC)
	}
	for j, d := range o.Dates {
		p.Add(d, o.Weights[j])
	}
	p.Target += o.Target
	for m, v := range o.ManifestSensitivity {
		p.ManifestSensitivity[m] += v
	}
	p.Linearized = p.Linearized || o.Linearized
	return nil
}

// Fold returns a copy with every date at or before frontier moved into the
// target using the known values of s. Zero weights are dropped.
func (p *PRWC) Fold(frontier time.Time, s instrument.State) (*PRWC, error) {
	out := &PRWC{
		Label:               p.Label,
		Target:              p.Target,
		ManifestSensitivity: make(map[string]float64, len(p.ManifestSensitivity)),
		Linearized:          p.Linearized,
	}
	for m, v := range p.ManifestSensitivity {
		out.ManifestSensitivity[m] = v
	}
	for j, d := range p.Dates {
		w := p.Weights[j]
		if w == 0 {
			continue
		}
		if d.After(frontier) {
			out.Dates = append(out.Dates, d)
			out.Weights = append(out.Weights, w)
			continue
		}
		v := s.Value(d)
		if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("Fold: degenerate known value %g on %s", v, d.Format(utils.DateLayout))
		}
		out.Target -= w * v
	}
	return out, nil
}

// Residual evaluates Σ w·s(d) - Target.
func (p *PRWC) Residual(s instrument.State) float64 {
	r := -p.Target
	for j, d := range p.Dates {
		r += p.Weights[j] * s.Value(d)
	}
	return r
}

// equation converts the constraint to curve time.
func (p *PRWC) equation(toTime func(time.Time) float64) stretch.Equation {
	eq := stretch.Equation{
		Ordinates: make([]float64, len(p.Dates)),
		Weights:   append([]float64(nil), p.Weights...),
		Target:    p.Target,
	}
	for j, d := range p.Dates {
		eq.Ordinates[j] = toTime(d)
	}
	return eq
}

package instrument

import (
	"fmt"
	"time"
)

// DefaultPipSize scales forward points for most currency pairs.
const DefaultPipSize = 1e-4

// FXForward is an outright FX forward delivering on its maturity date,
// calibrated against an FX curve anchored at the spot rate on the spot date.
type FXForward struct {
	base
	spot    float64
	pipSize float64
}

func NewFXForward(id string, spotDate, delivery time.Time, spot, pipSize float64) (*FXForward, error) {
	b, err := newBase("FXForward", id, spotDate, delivery)
	if err != nil {
		return nil, err
	}
	if spot <= 0 {
		return nil, fmt.Errorf("NewFXForward %s: spot must be positive", id)
	}
	if pipSize <= 0 {
		pipSize = DefaultPipSize
	}
	return &FXForward{base: b, spot: spot, pipSize: pipSize}, nil
}

func (f *FXForward) Type() string       { return "FXForward" }
func (f *FXForward) Measures() []string { return []string{Outright, ForwardPoints} }

func (f *FXForward) PredictorDates() []time.Time {
	return []time.Time{f.maturity}
}

func (f *FXForward) Evaluate(measure string, s State) (float64, error) {
	out := s.Value(f.maturity)
	switch measure {
	case Outright:
		return out, nil
	case ForwardPoints:
		return (out - f.spot) / f.pipSize, nil
	}
	return 0, f.unsupported("FXForward", measure)
}

func (f *FXForward) Constraint(measure string, quote float64) ([]Leg, error) {
	var out float64
	switch measure {
	case Outright:
		out = quote
	case ForwardPoints:
		out = f.spot + quote*f.pipSize
	default:
		return nil, f.unsupported("FXForward", measure)
	}
	return []Leg{{Dates: []time.Time{f.maturity}, Weights: []float64{1}, Target: out}}, nil
}

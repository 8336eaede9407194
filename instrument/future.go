package instrument

import (
	"fmt"
	"time"

	"github.com/meenmo/curvekit/utils"
)

// Future is a short-rate future or FRA on the accrual period [start, end].
// Price quotes are 100·(1 - rate); the futures rate exceeds the forward rate
// by Convexity.
type Future struct {
	base
	dayCount  utils.DayCount
	accrual   float64
	convexity float64
}

func NewFuture(id string, start, end time.Time, dc utils.DayCount, convexity float64) (*Future, error) {
	b, err := newBase("Future", id, start, end)
	if err != nil {
		return nil, err
	}
	return &Future{base: b, dayCount: dc, accrual: utils.YearFraction(start, end, dc), convexity: convexity}, nil
}

func (f *Future) Type() string       { return "Future" }
func (f *Future) Measures() []string { return []string{Price, ForwardRate} }

func (f *Future) PredictorDates() []time.Time {
	return []time.Time{f.effective, f.maturity}
}

func (f *Future) forward(s State) (float64, error) {
	growth, err := ratio(s.Value(f.effective), s.Value(f.maturity), "end discount factor")
	if err != nil {
		return 0, fmt.Errorf("Future %s: %w", f.id, err)
	}
	return (growth - 1) / f.accrual, nil
}

func (f *Future) Evaluate(measure string, s State) (float64, error) {
	fwd, err := f.forward(s)
	if err != nil {
		return 0, err
	}
	switch measure {
	case ForwardRate:
		return fwd, nil
	case Price:
		return 100 * (1 - fwd - f.convexity), nil
	}
	return 0, f.unsupported("Future", measure)
}

// Constraint encodes DF(start) = (1 + F·α)·DF(end).
func (f *Future) Constraint(measure string, quote float64) ([]Leg, error) {
	var fwd float64
	switch measure {
	case ForwardRate:
		fwd = quote
	case Price:
		fwd = 1 - quote/100 - f.convexity
	default:
		return nil, f.unsupported("Future", measure)
	}
	return []Leg{{
		Dates:   []time.Time{f.effective, f.maturity},
		Weights: []float64{-1, 1 + fwd*f.accrual},
	}}, nil
}

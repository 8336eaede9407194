package instrument

import (
	"fmt"
	"time"

	"github.com/meenmo/curvekit/utils"
)

// Deposit is a simple-interest cash deposit (or an index fixing when calibrating
// a projection curve) from effective to maturity.
type Deposit struct {
	base
	dayCount utils.DayCount
	accrual  float64
}

func NewDeposit(id string, effective, maturity time.Time, dc utils.DayCount) (*Deposit, error) {
	b, err := newBase("Deposit", id, effective, maturity)
	if err != nil {
		return nil, err
	}
	return &Deposit{base: b, dayCount: dc, accrual: utils.YearFraction(effective, maturity, dc)}, nil
}

func (d *Deposit) Type() string       { return "Deposit" }
func (d *Deposit) Measures() []string { return []string{Rate} }

func (d *Deposit) PredictorDates() []time.Time {
	return []time.Time{d.effective, d.maturity}
}

func (d *Deposit) Evaluate(measure string, s State) (float64, error) {
	if measure != Rate {
		return 0, d.unsupported("Deposit", measure)
	}
	growth, err := ratio(s.Value(d.effective), s.Value(d.maturity), "maturity discount factor")
	if err != nil {
		return 0, fmt.Errorf("Deposit %s: %w", d.id, err)
	}
	return (growth - 1) / d.accrual, nil
}

// Constraint encodes DF(mat) = DF(eff) / (1 + r·α).
func (d *Deposit) Constraint(measure string, quote float64) ([]Leg, error) {
	if measure != Rate {
		return nil, d.unsupported("Deposit", measure)
	}
	growth := 1 + quote*d.accrual
	if growth <= 0 {
		return nil, fmt.Errorf("Deposit %s: rate %g gives non-positive growth", d.id, quote)
	}
	return []Leg{{
		Dates:   []time.Time{d.effective, d.maturity},
		Weights: []float64{-1 / growth, 1},
	}}, nil
}

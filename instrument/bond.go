package instrument

import (
	"fmt"
	"math"
	"time"

	"github.com/meenmo/curvekit/solver"
	"github.com/meenmo/curvekit/utils"
)

// Cashflow is a single dated bond payment, per 100 face.
type Cashflow struct {
	Date      time.Time
	Coupon    float64
	Principal float64
}

func (c Cashflow) Amount() float64 {
	return c.Coupon + c.Principal
}

const (
	yieldTolerance = 1e-12
	yieldMaxIter   = 100
	yieldFloor     = -0.05
	yieldCeiling   = 0.50
)

// Damped yield steps are capped at half the current yield, or 50bp near zero.
const (
	yieldDamping      = 0.5
	yieldDampingFloor = 0.01
)

// Bond is a fixed cash-flow bond settling on its effective date. Prices are
// dirty, per 100 face. Yields compound Frequency times a year on DayCount
// time from settlement.
type Bond struct {
	base
	cashflows []Cashflow
	times     []float64
	frequency int
	preds     []time.Time
}

// BondParams describes a Bond.
type BondParams struct {
	ID         string
	Settlement time.Time
	Cashflows  []Cashflow
	// Frequency is the yield compounding frequency; 0 means annual.
	Frequency int
	DayCount  utils.DayCount
}

func NewBond(p BondParams) (*Bond, error) {
	var cfs []Cashflow
	maturity := p.Settlement
	for _, cf := range p.Cashflows {
		if !cf.Date.After(p.Settlement) {
			continue
		}
		cfs = append(cfs, cf)
		if cf.Date.After(maturity) {
			maturity = cf.Date
		}
	}
	if len(cfs) == 0 {
		return nil, fmt.Errorf("NewBond %s: no cash flows after settlement", p.ID)
	}
	b, err := newBase("Bond", p.ID, p.Settlement, maturity)
	if err != nil {
		return nil, err
	}
	freq := p.Frequency
	if freq <= 0 {
		freq = 1
	}
	dc := p.DayCount
	if dc == "" {
		dc = utils.Act365F
	}
	bond := &Bond{base: b, cashflows: cfs, frequency: freq}
	dates := []time.Time{p.Settlement}
	for _, cf := range cfs {
		bond.times = append(bond.times, utils.YearFraction(p.Settlement, cf.Date, dc))
		dates = append(dates, cf.Date)
	}
	bond.preds = utils.UniqueDates(dates)
	return bond, nil
}

func (b *Bond) Type() string       { return "Bond" }
func (b *Bond) Measures() []string { return []string{Price, Yield} }

func (b *Bond) PredictorDates() []time.Time {
	return append([]time.Time(nil), b.preds...)
}

// Cashflows returns the cash flows after settlement.
func (b *Bond) Cashflows() []Cashflow { return append([]Cashflow(nil), b.cashflows...) }

// PriceFromYield returns the dirty price for yield y.
func (b *Bond) PriceFromYield(y float64) float64 {
	p, _ := b.priceAndDeriv(y)
	return p
}

func (b *Bond) priceAndDeriv(y float64) (float64, float64) {
	f := float64(b.frequency)
	g := 1 + y/f
	var price, deriv float64
	for i, cf := range b.cashflows {
		n := f * b.times[i]
		disc := math.Pow(g, -n)
		price += cf.Amount() * disc
		deriv += -n / f * cf.Amount() * disc / g
	}
	return price, deriv
}

// YieldFromPrice inverts PriceFromYield with a damped, clamped Newton-Raphson
// solve.
func (b *Bond) YieldFromPrice(price float64) (float64, error) {
	res, err := solver.Newton(price,
		func(y float64) float64 { p, _ := b.priceAndDeriv(y); return p },
		func(y float64) float64 { _, d := b.priceAndDeriv(y); return d },
		0.025,
		solver.NewtonOptions{
			Tolerance:     yieldTolerance,
			MaxIterations: yieldMaxIter,
			Floor:         yieldFloor,
			Ceiling:       yieldCeiling,
			Damping:       yieldDamping,
			DampingFloor:  yieldDampingFloor,
		},
	)
	if err != nil {
		return 0, fmt.Errorf("Bond %s: yield from price %g: %w", b.id, price, err)
	}
	return res.Root, nil
}

// ModelPrice discounts the cash flows on s to settlement.
func (b *Bond) ModelPrice(s State) (float64, error) {
	pv := 0.0
	for _, cf := range b.cashflows {
		pv += cf.Amount() * s.Value(cf.Date)
	}
	p, err := ratio(pv, s.Value(b.effective), "settlement discount factor")
	if err != nil {
		return 0, fmt.Errorf("Bond %s: %w", b.id, err)
	}
	return p, nil
}

func (b *Bond) Evaluate(measure string, s State) (float64, error) {
	price, err := b.ModelPrice(s)
	if err != nil {
		return 0, err
	}
	switch measure {
	case Price:
		return price, nil
	case Yield:
		return b.YieldFromPrice(price)
	}
	return 0, b.unsupported("Bond", measure)
}

// Constraint encodes Σ CF_i·DF(t_i) = P·DF(settle). A yield quote is first
// converted to its price.
func (b *Bond) Constraint(measure string, quote float64) ([]Leg, error) {
	var price float64
	switch measure {
	case Price:
		price = quote
	case Yield:
		price = b.PriceFromYield(quote)
	default:
		return nil, b.unsupported("Bond", measure)
	}
	flows := Leg{}
	for _, cf := range b.cashflows {
		flows.Dates = append(flows.Dates, cf.Date)
		flows.Weights = append(flows.Weights, cf.Amount())
	}
	settle := Leg{Dates: []time.Time{b.effective}, Weights: []float64{-price}}
	return []Leg{flows, settle}, nil
}

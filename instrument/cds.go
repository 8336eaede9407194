package instrument

import (
	"fmt"
	"time"
)

// CDS is a single-name credit default swap calibrated against a survival
// curve Q with a read-only discount curve. Per premium period i with
// discount factor D_i at payment:
//
//	RPV01      = Σ α_i·D_i·(Q(s_i)+Q(e_i))/2     (accrual on default at mid-period)
//	protection = (1-R)·Σ D_i·(Q(s_i)-Q(e_i))
//
// Both legs are linear in Q.
type CDS struct {
	base
	periods  []Period
	discount DiscountCurve
	recovery float64
	coupon   float64
	preds    []time.Time
}

// CDSParams describes a CDS.
type CDSParams struct {
	ID            string
	EffectiveDate time.Time
	MaturityDate  time.Time
	Premium       LegConvention
	Discount      DiscountCurve
	Recovery      float64
	// Coupon is the running spread paid when the quote is an upfront.
	Coupon float64
}

func NewCDS(p CDSParams) (*CDS, error) {
	b, err := newBase("CDS", p.ID, p.EffectiveDate, p.MaturityDate)
	if err != nil {
		return nil, err
	}
	if p.Discount == nil {
		return nil, fmt.Errorf("NewCDS %s: Discount curve is required", p.ID)
	}
	if p.Recovery < 0 || p.Recovery >= 1 {
		return nil, fmt.Errorf("NewCDS %s: recovery %g outside [0, 1)", p.ID, p.Recovery)
	}
	periods, err := GenerateSchedule(p.EffectiveDate, p.MaturityDate, p.Premium)
	if err != nil {
		return nil, fmt.Errorf("NewCDS %s: %w", p.ID, err)
	}
	return &CDS{
		base:     b,
		periods:  periods,
		discount: p.Discount,
		recovery: p.Recovery,
		coupon:   p.Coupon,
		preds:    newDateIndex(boundaryDates(periods)).dates,
	}, nil
}

func (c *CDS) Type() string       { return "CDS" }
func (c *CDS) Measures() []string { return []string{ParSpread, Upfront} }

func (c *CDS) PredictorDates() []time.Time {
	return append([]time.Time(nil), c.preds...)
}

// RPV01 is the risky annuity per unit spread.
func (c *CDS) RPV01(s State) float64 {
	a := 0.0
	for _, p := range c.periods {
		a += p.Accrual * c.discount.DF(p.Pay) * (s.Value(p.Start) + s.Value(p.End)) / 2
	}
	return a
}

// Protection is the PV of the default leg per unit notional.
func (c *CDS) Protection(s State) float64 {
	pv := 0.0
	for _, p := range c.periods {
		pv += c.discount.DF(p.Pay) * (s.Value(p.Start) - s.Value(p.End))
	}
	return (1 - c.recovery) * pv
}

func (c *CDS) Evaluate(measure string, s State) (float64, error) {
	switch measure {
	case ParSpread:
		v, err := ratio(c.Protection(s), c.RPV01(s), "risky annuity")
		if err != nil {
			return 0, fmt.Errorf("CDS %s: %w", c.id, err)
		}
		return v, nil
	case Upfront:
		return c.Protection(s) - c.coupon*c.RPV01(s), nil
	}
	return 0, c.unsupported("CDS", measure)
}

// Constraint returns the premium and protection legs as separate parts.
func (c *CDS) Constraint(measure string, quote float64) ([]Leg, error) {
	var spread, target, sign float64
	switch measure {
	case ParSpread:
		// S·RPV01 - protection = 0
		spread, sign = quote, 1
	case Upfront:
		// protection - C·RPV01 = U
		spread, target, sign = c.coupon, quote, -1
	default:
		return nil, c.unsupported("CDS", measure)
	}
	premium := Leg{}
	protection := Leg{Target: target}
	lgd := 1 - c.recovery
	for _, p := range c.periods {
		w := sign * spread * p.Accrual * c.discount.DF(p.Pay) / 2
		premium.Dates = append(premium.Dates, p.Start, p.End)
		premium.Weights = append(premium.Weights, w, w)

		d := -sign * lgd * c.discount.DF(p.Pay)
		protection.Dates = append(protection.Dates, p.Start, p.End)
		protection.Weights = append(protection.Weights, d, -d)
	}
	return []Leg{premium, protection}, nil
}

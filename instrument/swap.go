package instrument

import (
	"fmt"
	"time"
)

// FixFloatSwap is a vanilla fixed-vs-floating swap.
//
// With a nil Discount the calibrated curve both projects and discounts
// (single-curve, e.g. an OIS curve) and the par condition is linear:
//
//	K·Σ α_i·DF(pay_i) + DF(mat) - DF(eff) = 0
//
// With a Discount curve the calibrated curve only projects the floating
// leg (dual-curve) and the equation is solved by linearisation.
type FixFloatSwap struct {
	base
	fixed     []Period
	float     []Period
	discount  DiscountCurve
	fixedRate float64
	preds     dateIndex
}

// SwapParams describes a FixFloatSwap.
type SwapParams struct {
	ID            string
	EffectiveDate time.Time
	MaturityDate  time.Time
	FixedLeg      LegConvention
	FloatLeg      LegConvention
	// Discount switches to dual-curve pricing when set.
	Discount DiscountCurve
	// FixedRate is the contractual coupon used by the PV measure.
	FixedRate float64
}

func NewFixFloatSwap(p SwapParams) (*FixFloatSwap, error) {
	b, err := newBase("FixFloatSwap", p.ID, p.EffectiveDate, p.MaturityDate)
	if err != nil {
		return nil, err
	}
	fixed, err := GenerateSchedule(p.EffectiveDate, p.MaturityDate, p.FixedLeg)
	if err != nil {
		return nil, fmt.Errorf("NewFixFloatSwap %s: fixed leg: %w", p.ID, err)
	}
	float, err := GenerateSchedule(p.EffectiveDate, p.MaturityDate, p.FloatLeg)
	if err != nil {
		return nil, fmt.Errorf("NewFixFloatSwap %s: float leg: %w", p.ID, err)
	}
	s := &FixFloatSwap{base: b, fixed: fixed, float: float, discount: p.Discount, fixedRate: p.FixedRate}
	if s.discount == nil {
		s.preds = newDateIndex(append(payDates(fixed), p.EffectiveDate, p.MaturityDate))
	} else {
		s.preds = newDateIndex(boundaryDates(float))
	}
	return s, nil
}

func (s *FixFloatSwap) Type() string       { return "FixFloatSwap" }
func (s *FixFloatSwap) Measures() []string { return []string{SwapRate, PV} }

func (s *FixFloatSwap) PredictorDates() []time.Time {
	return append([]time.Time(nil), s.preds.dates...)
}

// FixedPeriods returns the fixed leg schedule.
func (s *FixFloatSwap) FixedPeriods() []Period { return append([]Period(nil), s.fixed...) }

// annuity is Σ α_i·DF(pay_i) on the fixed leg.
func (s *FixFloatSwap) annuity(df func(time.Time) float64) float64 {
	a := 0.0
	for _, p := range s.fixed {
		a += p.Accrual * df(p.Pay)
	}
	return a
}

// legs returns the floating leg PV and the fixed leg annuity.
func (s *FixFloatSwap) legs(st State) (float, annuity float64, err error) {
	if s.discount == nil {
		return st.Value(s.effective) - st.Value(s.maturity), s.annuity(st.Value), nil
	}
	for _, p := range s.float {
		g, err := ratio(st.Value(p.Start), st.Value(p.End), "projection discount factor")
		if err != nil {
			return 0, 0, fmt.Errorf("FixFloatSwap %s: %w", s.id, err)
		}
		float += (g - 1) * s.discount.DF(p.Pay)
	}
	return float, s.annuity(s.discount.DF), nil
}

func (s *FixFloatSwap) Evaluate(measure string, st State) (float64, error) {
	float, annuity, err := s.legs(st)
	if err != nil {
		return 0, err
	}
	switch measure {
	case SwapRate:
		r, err := ratio(float, annuity, "annuity")
		if err != nil {
			return 0, fmt.Errorf("FixFloatSwap %s: %w", s.id, err)
		}
		return r, nil
	case PV:
		return s.fixedRate*annuity - float, nil
	}
	return 0, s.unsupported("FixFloatSwap", measure)
}

// Constraint is exact for single-curve swaps and ErrNonlinear otherwise.
func (s *FixFloatSwap) Constraint(measure string, quote float64) ([]Leg, error) {
	if s.discount != nil {
		return nil, fmt.Errorf("FixFloatSwap %s: dual-curve: %w", s.id, ErrNonlinear)
	}
	var coupon, target float64
	switch measure {
	case SwapRate:
		coupon = quote
	case PV:
		coupon, target = s.fixedRate, quote
	default:
		return nil, s.unsupported("FixFloatSwap", measure)
	}
	fixed := Leg{Target: target}
	for _, p := range s.fixed {
		fixed.Dates = append(fixed.Dates, p.Pay)
		fixed.Weights = append(fixed.Weights, coupon*p.Accrual)
	}
	float := Leg{
		Dates:   []time.Time{s.effective, s.maturity},
		Weights: []float64{-1, 1},
	}
	return []Leg{fixed, float}, nil
}

// Sensitivity returns the measure and its gradient with respect to the
// projection values at the float period boundaries (dual-curve only).
func (s *FixFloatSwap) Sensitivity(measure string, st State) (float64, []float64, error) {
	if s.discount == nil {
		return 0, nil, fmt.Errorf("FixFloatSwap %s: single-curve swaps are linear", s.id)
	}
	value, err := s.Evaluate(measure, st)
	if err != nil {
		return 0, nil, err
	}
	grad := make([]float64, len(s.preds.dates))
	floatGrad(s.float, st, s.discount, s.preds, grad)
	scale := -1.0
	if measure == SwapRate {
		scale = 1 / s.annuity(s.discount.DF)
	}
	for i := range grad {
		grad[i] *= scale
	}
	return value, grad, nil
}

// floatGrad adds ∂/∂P of Σ (P(start)/P(end) - 1)·DF(pay) into grad.
func floatGrad(periods []Period, st State, disc DiscountCurve, idx dateIndex, grad []float64) {
	for _, p := range periods {
		ps, pe := st.Value(p.Start), st.Value(p.End)
		df := disc.DF(p.Pay)
		grad[idx.pos[p.Start]] += df / pe
		grad[idx.pos[p.End]] -= ps * df / (pe * pe)
	}
}

package instrument

import (
	"fmt"
	"time"
)

// BasisSwap exchanges the index projected by the calibrated curve plus a spread
// against a reference index projected by an already-built curve, both legs
// discounted on Discount. The par spread is
//
//	(PV_ref - PV_float) / Σ α_j·DF(pay_j)
type BasisSwap struct {
	base
	spreadLeg []Period
	refLeg    []Period
	discount  DiscountCurve
	reference DiscountCurve
	spread    float64
	preds     dateIndex
}

// BasisSwapParams describes a BasisSwap.
type BasisSwapParams struct {
	ID            string
	EffectiveDate time.Time
	MaturityDate  time.Time
	// SpreadLeg pays the calibrated index plus the spread.
	SpreadLeg LegConvention
	// ReferenceLeg pays the index of Reference flat.
	ReferenceLeg LegConvention
	Discount     DiscountCurve
	Reference    DiscountCurve
	// Spread is the contractual spread used by the PV measure.
	Spread float64
}

func NewBasisSwap(p BasisSwapParams) (*BasisSwap, error) {
	b, err := newBase("BasisSwap", p.ID, p.EffectiveDate, p.MaturityDate)
	if err != nil {
		return nil, err
	}
	if p.Discount == nil || p.Reference == nil {
		return nil, fmt.Errorf("NewBasisSwap %s: Discount and Reference curves are required", p.ID)
	}
	sl, err := GenerateSchedule(p.EffectiveDate, p.MaturityDate, p.SpreadLeg)
	if err != nil {
		return nil, fmt.Errorf("NewBasisSwap %s: spread leg: %w", p.ID, err)
	}
	rl, err := GenerateSchedule(p.EffectiveDate, p.MaturityDate, p.ReferenceLeg)
	if err != nil {
		return nil, fmt.Errorf("NewBasisSwap %s: reference leg: %w", p.ID, err)
	}
	return &BasisSwap{
		base:      b,
		spreadLeg: sl,
		refLeg:    rl,
		discount:  p.Discount,
		reference: p.Reference,
		spread:    p.Spread,
		preds:     newDateIndex(boundaryDates(sl)),
	}, nil
}

func (s *BasisSwap) Type() string       { return "BasisSwap" }
func (s *BasisSwap) Measures() []string { return []string{ParSpread, PV} }

func (s *BasisSwap) PredictorDates() []time.Time {
	return append([]time.Time(nil), s.preds.dates...)
}

// SpreadPeriods returns the spread leg schedule.
func (s *BasisSwap) SpreadPeriods() []Period { return append([]Period(nil), s.spreadLeg...) }

// ReferencePV is the PV of the reference leg, fixed for the life of a build.
func (s *BasisSwap) ReferencePV() float64 {
	pv := 0.0
	for _, p := range s.refLeg {
		pv += (s.reference.DF(p.Start)/s.reference.DF(p.End) - 1) * s.discount.DF(p.Pay)
	}
	return pv
}

// Annuity is Σ α_j·DF(pay_j) on the spread leg.
func (s *BasisSwap) Annuity() float64 {
	a := 0.0
	for _, p := range s.spreadLeg {
		a += p.Accrual * s.discount.DF(p.Pay)
	}
	return a
}

// FloatPV is the PV of the calibrated index leg without spread.
func (s *BasisSwap) FloatPV(st State) (float64, error) {
	pv := 0.0
	for _, p := range s.spreadLeg {
		g, err := ratio(st.Value(p.Start), st.Value(p.End), "projection discount factor")
		if err != nil {
			return 0, fmt.Errorf("BasisSwap %s: %w", s.id, err)
		}
		pv += (g - 1) * s.discount.DF(p.Pay)
	}
	return pv, nil
}

func (s *BasisSwap) Evaluate(measure string, st State) (float64, error) {
	float, err := s.FloatPV(st)
	if err != nil {
		return 0, err
	}
	switch measure {
	case ParSpread:
		return (s.ReferencePV() - float) / s.Annuity(), nil
	case PV:
		return float + s.spread*s.Annuity() - s.ReferencePV(), nil
	}
	return 0, s.unsupported("BasisSwap", measure)
}

// Constraint always reports ErrNonlinear: the forward ratio is not linear in
// the projection curve.
func (s *BasisSwap) Constraint(string, float64) ([]Leg, error) {
	return nil, fmt.Errorf("BasisSwap %s: %w", s.id, ErrNonlinear)
}

func (s *BasisSwap) Sensitivity(measure string, st State) (float64, []float64, error) {
	value, err := s.Evaluate(measure, st)
	if err != nil {
		return 0, nil, err
	}
	grad := make([]float64, len(s.preds.dates))
	floatGrad(s.spreadLeg, st, s.discount, s.preds, grad)
	if measure == ParSpread {
		scale := -1 / s.Annuity()
		for i := range grad {
			grad[i] *= scale
		}
	}
	return value, grad, nil
}

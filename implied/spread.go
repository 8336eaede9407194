package implied

import (
	"fmt"
	"math"

	"github.com/meenmo/curvekit/instrument"
	"github.com/meenmo/curvekit/solver"
	"github.com/meenmo/curvekit/utils"
)

const (
	spreadBoundBP = 500.0
	spreadTolBP   = 1e-8
	oasFloor      = -0.05
	oasCeiling    = 0.50
)

// BasisSpreadBP solves for the spread (in bp) on the projection leg of s that
// zeroes the swap PV when the leg projects off projection. The search is a
// bisection over ±500bp.
func BasisSpreadBP(s *instrument.BasisSwap, projection instrument.State) (float64, error) {
	float, err := s.FloatPV(projection)
	if err != nil {
		return 0, fmt.Errorf("BasisSpreadBP: %w", err)
	}
	annuity, ref := s.Annuity(), s.ReferencePV()
	f := func(bp float64) float64 {
		return float + bp*1e-4*annuity - ref
	}
	res, err := solver.FindRoot(0, f, solver.Bracket{Lo: -spreadBoundBP, Hi: spreadBoundBP}, solver.Options{
		Method:        solver.Bisection,
		Criterion:     solver.Width,
		Tolerance:     spreadTolBP,
		MaxIterations: 200,
	})
	if err != nil {
		return 0, fmt.Errorf("BasisSpreadBP %s: %w", s.ID(), err)
	}
	return res.Root, nil
}

// SpreadPrice is the dirty price of b discounted on curve with every
// discount factor scaled by exp(-z·t), t in ACT/365F years from settlement.
func SpreadPrice(b *instrument.Bond, curve instrument.DiscountCurve, z float64) float64 {
	settle := b.EffectiveDate()
	pv := 0.0
	for _, cf := range b.Cashflows() {
		t := utils.YearFraction(settle, cf.Date, utils.Act365F)
		pv += cf.Amount() * curve.DF(cf.Date) * math.Exp(-z*t)
	}
	return pv / curve.DF(settle)
}

// OAS returns the constant continuously compounded spread over curve that
// reprices b to dirtyPrice. The bond carries no optionality, so this is the
// zero-volatility spread.
func OAS(b *instrument.Bond, curve instrument.DiscountCurve, dirtyPrice float64) (float64, error) {
	if dirtyPrice <= 0 {
		return 0, fmt.Errorf("OAS %s: price %g must be positive", b.ID(), dirtyPrice)
	}
	f := func(z float64) float64 { return SpreadPrice(b, curve, z) }
	res, err := solver.FindRoot(dirtyPrice, f, solver.Bracket{Lo: oasFloor, Hi: oasCeiling}, solver.Options{
		Method:    solver.Brent,
		Criterion: solver.Residual,
		Tolerance: 1e-10,
	})
	if err != nil {
		return 0, fmt.Errorf("OAS %s: %w", b.ID(), err)
	}
	return res.Root, nil
}

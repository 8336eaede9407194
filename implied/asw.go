package implied

import (
	"fmt"

	"github.com/meenmo/curvekit/curve"
	"github.com/meenmo/curvekit/instrument"
)

// AssetSwap is a par asset swap package: the bond is bought at its dirty
// price and its fixed flows are exchanged for FloatLeg plus a spread, both
// legs starting at the bond's settlement.
type AssetSwap struct {
	Bond     *instrument.Bond
	FloatLeg instrument.LegConvention
}

type AssetSwapResult struct {
	SpreadBP float64
	// CurvePrice is the bond's dirty price on the curve, per 100 face.
	CurvePrice float64
	// Annuity is Σ accrual·DF(pay)/DF(settlement) of the float leg.
	Annuity float64
}

// Spread returns the par asset swap spread of the bond at dirtyPrice
// against a calibrated discount curve:
//
//	s = (P_curve − P_dirty) / (100 · A)
//
// Everything is valued forward to the bond's settlement date.
func (a AssetSwap) Spread(c *curve.Curve, dirtyPrice float64) (AssetSwapResult, error) {
	if a.Bond == nil {
		return AssetSwapResult{}, fmt.Errorf("AssetSwap: bond is required")
	}
	if c == nil {
		return AssetSwapResult{}, fmt.Errorf("AssetSwap %s: curve is required", a.Bond.ID())
	}
	settle := a.Bond.EffectiveDate()
	if _, err := c.Evaluate(settle, curve.DiscountFactor); err != nil {
		return AssetSwapResult{}, fmt.Errorf("AssetSwap %s: %w", a.Bond.ID(), err)
	}
	price, err := a.Bond.ModelPrice(c)
	if err != nil {
		return AssetSwapResult{}, fmt.Errorf("AssetSwap: %w", err)
	}

	periods, err := instrument.GenerateSchedule(settle, a.Bond.MaturityDate(), a.FloatLeg)
	if err != nil {
		return AssetSwapResult{}, fmt.Errorf("AssetSwap %s: float leg: %w", a.Bond.ID(), err)
	}
	annuity := 0.0
	for _, p := range periods {
		annuity += p.Accrual * c.DF(p.Pay)
	}
	annuity /= c.DF(settle)
	if annuity <= 0 {
		return AssetSwapResult{}, fmt.Errorf("AssetSwap %s: float leg annuity %g", a.Bond.ID(), annuity)
	}
	return AssetSwapResult{
		SpreadBP:   (price - dirtyPrice) / (100 * annuity) * 1e4,
		CurvePrice: price,
		Annuity:    annuity,
	}, nil
}

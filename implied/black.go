package implied

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/meenmo/curvekit/solver"
)

// ErrPriceOutOfBounds is returned when a premium lies outside the no-arbitrage range.
var ErrPriceOutOfBounds = errors.New("implied: price outside no-arbitrage bounds")

type OptionType int

const (
	Call OptionType = iota
	Put
)

func (o OptionType) String() string {
	if o == Put {
		return "put"
	}
	return "call"
}

const (
	volFloor   = 1e-6
	volCeiling = 5.0
)

var stdNormal = distuv.UnitNormal

func d1d2(forward, strike, vol, expiry float64) (float64, float64) {
	sd := vol * math.Sqrt(expiry)
	d1 := (math.Log(forward/strike) + 0.5*sd*sd) / sd
	return d1, d1 - sd
}

func intrinsic(opt OptionType, forward, strike, df float64) float64 {
	if opt == Put {
		return df * math.Max(strike-forward, 0)
	}
	return df * math.Max(forward-strike, 0)
}

// BlackPrice is the Black-76 premium of a European option on a forward,
// discounted with df.
func BlackPrice(opt OptionType, forward, strike, vol, expiry, df float64) (float64, error) {
	if forward <= 0 || strike <= 0 {
		return 0, fmt.Errorf("BlackPrice: forward %g and strike %g must be positive", forward, strike)
	}
	if vol < 0 || expiry < 0 {
		return 0, fmt.Errorf("BlackPrice: negative vol %g or expiry %g", vol, expiry)
	}
	if vol == 0 || expiry == 0 {
		return intrinsic(opt, forward, strike, df), nil
	}
	d1, d2 := d1d2(forward, strike, vol, expiry)
	if opt == Put {
		return df * (strike*stdNormal.CDF(-d2) - forward*stdNormal.CDF(-d1)), nil
	}
	return df * (forward*stdNormal.CDF(d1) - strike*stdNormal.CDF(d2)), nil
}

// Vega is ∂price/∂vol, the same for calls and puts.
func Vega(forward, strike, vol, expiry, df float64) float64 {
	if vol <= 0 || expiry <= 0 {
		return 0
	}
	d1, _ := d1d2(forward, strike, vol, expiry)
	return df * forward * stdNormal.Prob(d1) * math.Sqrt(expiry)
}

// Volatility inverts BlackPrice for vol in [1e-6, 5]. Zero opts fields take
// bracketed Newton with the analytic vega to 1e-12 in price.
func Volatility(opt OptionType, forward, strike, expiry, df, price float64, opts solver.Options) (float64, error) {
	if expiry <= 0 {
		return 0, fmt.Errorf("Volatility: expiry %g must be positive", expiry)
	}
	lower := intrinsic(opt, forward, strike, df)
	upper := df * forward
	if opt == Put {
		upper = df * strike
	}
	if price <= lower || price >= upper {
		return 0, fmt.Errorf("Volatility: %s premium %g outside (%g, %g): %w", opt, price, lower, upper, ErrPriceOutOfBounds)
	}
	if opts.Method == "" {
		opts.Method = solver.NewtonBracketed
		opts.Criterion = solver.Residual
		opts.Derivative = func(v float64) float64 { return Vega(forward, strike, v, expiry, df) }
	}
	var priceErr error
	f := func(v float64) float64 {
		p, err := BlackPrice(opt, forward, strike, v, expiry, df)
		if err != nil {
			priceErr = err
			return math.NaN()
		}
		return p
	}
	res, err := solver.FindRoot(price, f, solver.Bracket{Lo: volFloor, Hi: volCeiling}, opts)
	if err != nil {
		if priceErr != nil {
			return 0, fmt.Errorf("Volatility: %w", priceErr)
		}
		return 0, fmt.Errorf("Volatility: %w", err)
	}
	return res.Root, nil
}

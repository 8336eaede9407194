package calib_test

import (
	"testing"
	"time"

	"github.com/meenmo/curvekit/calib"
	"github.com/meenmo/curvekit/curve"
	"github.com/meenmo/curvekit/instrument"
	"github.com/meenmo/curvekit/marketdata"
	"github.com/meenmo/curvekit/utils"
)

var (
	annual = instrument.LegConvention{Frequency: instrument.FreqAnnual, DayCount: utils.Act360, Calendar: usdCal}
	semi   = instrument.LegConvention{Frequency: instrument.FreqSemi, DayCount: utils.Act360, Calendar: usdCal}
	qtr    = instrument.LegConvention{Frequency: instrument.FreqQuarterly, DayCount: utils.Act360, Calendar: usdCal}

	usd6M = curve.Label{Kind: curve.Forward, Currency: "USD", Tenor: "6M"}
	usd3M = curve.Label{Kind: curve.Forward, Currency: "USD", Tenor: "3M"}
)

func fixing(t *testing.T, tn string) float64 {
	t.Helper()
	r, ok := marketdata.USDTermFixings()[tn].RateOn(spot)
	if !ok {
		t.Fatalf("no %s fixing on %s", tn, spot.Format(utils.DateLayout))
	}
	return r
}

// sixMonthLadder is the 6M fixing followed by 6M-vs-fixed swaps discounted on ois.
func sixMonthLadder(t *testing.T, ois *curve.Curve) ([]instrument.Instrument, []instrument.ManifestQuote) {
	t.Helper()
	dep, err := instrument.NewDeposit("USD-6M-FIXING", spot, tenor(t, "6M"), utils.Act360)
	if err != nil {
		t.Fatalf("NewDeposit: %v", err)
	}
	insts := []instrument.Instrument{dep}
	quotes := []instrument.ManifestQuote{{Measure: instrument.Rate, Value: fixing(t, "6M")}}
	for _, q := range []struct {
		tenor string
		rate  float64
	}{{"1Y", 0.0085}, {"2Y", 0.0112}} {
		s, err := instrument.NewFixFloatSwap(instrument.SwapParams{
			ID: "USD-6M-SWAP-" + q.tenor, EffectiveDate: spot, MaturityDate: tenor(t, q.tenor),
			FixedLeg: annual, FloatLeg: semi, Discount: ois,
		})
		if err != nil {
			t.Fatalf("NewFixFloatSwap: %v", err)
		}
		insts = append(insts, s)
		quotes = append(quotes, instrument.ManifestQuote{Measure: instrument.SwapRate, Value: q.rate})
	}
	return insts, quotes
}

func threeMonthLadder(t *testing.T, ois, six *curve.Curve) ([]instrument.Instrument, []instrument.ManifestQuote) {
	t.Helper()
	dep, err := instrument.NewDeposit("USD-3M-FIXING", spot, tenor(t, "3M"), utils.Act360)
	if err != nil {
		t.Fatalf("NewDeposit: %v", err)
	}
	insts := []instrument.Instrument{dep}
	quotes := []instrument.ManifestQuote{{Measure: instrument.Rate, Value: fixing(t, "3M")}}
	for _, q := range []struct {
		tenor  string
		spread float64
	}{{"1Y", 0.0009}, {"2Y", 0.0011}} {
		s, err := instrument.NewBasisSwap(instrument.BasisSwapParams{
			ID: "USD-3M6M-BASIS-" + q.tenor, EffectiveDate: spot, MaturityDate: tenor(t, q.tenor),
			SpreadLeg: qtr, ReferenceLeg: semi, Discount: ois, Reference: six,
		})
		if err != nil {
			t.Fatalf("NewBasisSwap: %v", err)
		}
		insts = append(insts, s)
		quotes = append(quotes, instrument.ManifestQuote{Measure: instrument.ParSpread, Value: q.spread})
	}
	return insts, quotes
}

func buildCurve(t *testing.T, label curve.Label, insts []instrument.Instrument, quotes []instrument.ManifestQuote, opts ...calib.Option) (*curve.Curve, []calib.Diagnostic) {
	t.Helper()
	b, err := calib.NewBuilder(label, spot, opts...)
	if err != nil {
		t.Fatalf("NewBuilder %s: %v", label, err)
	}
	c, err := b.Build(insts, quotes)
	if err != nil {
		t.Fatalf("Build %s: %v", label, err)
	}
	return c, b.Diagnostics()
}

func TestDualCurveForwardBuild(t *testing.T) {
	t.Parallel()

	ois, _ := buildFunding(t)
	insts, quotes := sixMonthLadder(t, ois)
	six, diags := buildCurve(t, usd6M, insts, quotes)
	assertReprices(t, six, insts, quotes, 1e-9)

	if diags[0].NewtonIterations != 0 {
		t.Fatalf("fixing deposit should use the exact encoding")
	}
	for _, d := range diags[1:] {
		if d.NewtonIterations == 0 && !d.Fallback {
			t.Fatalf("%s: dual-curve swap solved without linearisation", d.InstrumentID)
		}
	}
	// The 6M projection forward over the first period is the fixing.
	if got := six.Forward(spot, tenor(t, "6M")); !within(got, fixing(t, "6M"), 1e-9) {
		t.Fatalf("6M forward = %.12f, want %.12f", got, fixing(t, "6M"))
	}
}

// A curve built on top of others reads them without changing them.
func TestBasisSwapsOnReferenceCurve(t *testing.T) {
	t.Parallel()

	ois, _ := buildFunding(t)
	insts6, quotes6 := sixMonthLadder(t, ois)
	six, _ := buildCurve(t, usd6M, insts6, quotes6)

	probes := []time.Time{spot, tenor(t, "3M"), tenor(t, "9M"), tenor(t, "18M"), tenor(t, "2Y"), tenor(t, "5Y")}
	before := make([]float64, len(probes))
	oisBefore := make([]float64, len(probes))
	for i, d := range probes {
		before[i], oisBefore[i] = six.Value(d), ois.Value(d)
	}

	insts3, quotes3 := threeMonthLadder(t, ois, six)
	three, _ := buildCurve(t, usd3M, insts3, quotes3)
	assertReprices(t, three, insts3, quotes3, 1e-9)

	for i, d := range probes {
		if six.Value(d) != before[i] || ois.Value(d) != oisBefore[i] {
			t.Fatalf("dependency curve changed at %s", d.Format(utils.DateLayout))
		}
	}
	if got := three.Forward(spot, tenor(t, "3M")); !within(got, fixing(t, "3M"), 1e-9) {
		t.Fatalf("3M forward = %.12f, want %.12f", got, fixing(t, "3M"))
	}

	store := curve.NewContainer()
	store.Set(sofr, ois)
	store.Set(usd6M, six)
	store.Set(usd3M, three)
	if store.Len() != 3 || store.Get(usd3M) != three {
		t.Fatalf("container lookup failed")
	}
}

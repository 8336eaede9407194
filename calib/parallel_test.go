package calib_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/meenmo/curvekit/calib"
	"github.com/meenmo/curvekit/curve"
	"github.com/meenmo/curvekit/instrument"
	"github.com/meenmo/curvekit/metrics"
)

func TestBuildAllMatchesSequential(t *testing.T) {
	t.Parallel()

	ois, _ := buildFunding(t)
	insts6, quotes6 := sixMonthLadder(t, ois)
	seq6, _ := buildCurve(t, usd6M, insts6, quotes6)

	fundInsts, fundQuotes := fundingLadder(t)
	eur := curve.Label{Kind: curve.Discount, Currency: "EUR", Entity: "ESTR"}
	jobs := []calib.Job{
		{Label: sofr, Epoch: spot, Instruments: fundInsts, Quotes: fundQuotes},
		{Label: usd6M, Epoch: spot, Instruments: insts6, Quotes: quotes6},
		{Label: eur, Epoch: spot, Instruments: fundInsts, Quotes: fundQuotes},
	}
	m, err := metrics.New("curvekit", nil)
	if err != nil {
		t.Fatalf("metrics.New: %v", err)
	}
	results, err := calib.BuildAll(context.Background(), jobs, 2, calib.WithMetrics(m))
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	if len(results) != len(jobs) {
		t.Fatalf("got %d results", len(results))
	}
	for i, r := range results {
		if r.Label != jobs[i].Label || r.Curve == nil || len(r.Diagnostics) != len(jobs[i].Instruments) {
			t.Fatalf("result %d out of order or incomplete: %s", i, r.Label)
		}
	}
	for _, d := range []string{"3M", "9M", "1Y", "18M", "2Y"} {
		day := tenor(t, d)
		if results[0].Curve.DF(day) != ois.DF(day) {
			t.Fatalf("parallel funding curve differs at %s", d)
		}
		if results[1].Curve.Value(day) != seq6.Value(day) {
			t.Fatalf("parallel 6M curve differs at %s", d)
		}
	}

	store := curve.NewContainer()
	calib.Put(store, results)
	if got := store.Labels(); len(got) != 3 || got[0] != eur {
		t.Fatalf("labels = %v", got)
	}
	if got := testutil.ToFloat64(m.BuildsTotal.WithLabelValues("discount", "ok")); got != 2 {
		t.Fatalf("discount builds = %g, want 2", got)
	}
}

func TestBuildAllReportsFirstFailure(t *testing.T) {
	t.Parallel()

	fundInsts, fundQuotes := fundingLadder(t)
	bad := append([]instrument.ManifestQuote(nil), fundQuotes...)
	bad[2].Measure = "Upfront"
	jobs := []calib.Job{
		{Label: sofr, Epoch: spot, Instruments: fundInsts, Quotes: fundQuotes},
		{Label: usd6M, Epoch: spot, Instruments: fundInsts, Quotes: bad},
	}
	results, err := calib.BuildAll(context.Background(), jobs, 1)
	if results != nil {
		t.Fatalf("got results from a failed batch")
	}
	var ie *calib.CalibrationInputError
	if !errors.As(err, &ie) || ie.InstrumentID != fundInsts[2].ID() {
		t.Fatalf("expected the input error of %s, got %v", fundInsts[2].ID(), err)
	}
}

func TestBuildAllHonoursCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fundInsts, fundQuotes := fundingLadder(t)
	_, err := calib.BuildAll(ctx, []calib.Job{{Label: sofr, Epoch: spot, Instruments: fundInsts, Quotes: fundQuotes}}, 4)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

package basis_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"

	"github.com/meenmo/curvekit/cmd/curvebuild/internal/basis"
	"github.com/meenmo/curvekit/config"
	"github.com/meenmo/curvekit/marketdata"
)

func run(t *testing.T, args ...string) (int, basis.Output, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := basis.Run(args, &stdout, &stderr)
	var out basis.Output
	if stdout.Len() > 0 {
		if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
			t.Fatalf("stdout is not JSON: %v\n%s", err, stdout.String())
		}
	}
	return code, out, stderr.String()
}

func TestBundledBasisSpreads(t *testing.T) {
	t.Parallel()

	code, out, stderr := run(t)
	if code != 0 || out.Error != "" {
		t.Fatalf("exit %d, error %q, stderr %s", code, out.Error, stderr)
	}
	wantCurves := []string{"discount:USD", "forward:USD:3M", "forward:USD:6M"}
	if strings.Join(out.Curves, ",") != strings.Join(wantCurves, ",") {
		t.Fatalf("curves = %v", out.Curves)
	}
	if len(out.Spreads) != 3 {
		t.Fatalf("got %d spreads", len(out.Spreads))
	}
	for _, s := range out.Spreads {
		bp, err := strconv.ParseFloat(s.SpreadBP, 64)
		if err != nil {
			t.Fatalf("%s spread %q: %v", s.Pair, s.SpreadBP, err)
		}
		// 6M fixes and swaps above 3M, so the 3M leg pays a positive spread.
		if bp <= 0 || bp > 20 {
			t.Fatalf("%s spread = %gbp", s.Pair, bp)
		}
	}
	if out.Spreads[2].Pair != "1Yx1Y" || out.Spreads[2].Effective != "2026-01-06" || out.Spreads[2].Maturity != "2027-01-06" {
		t.Fatalf("forward-start pair = %+v", out.Spreads[2])
	}
}

func TestParallelBuildsAgree(t *testing.T) {
	t.Parallel()

	pairs, err := basis.ParsePairs("0x2Y")
	if err != nil {
		t.Fatalf("ParsePairs: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var got []string
	for _, n := range []int{1, 2} {
		cfg := config.Default()
		cfg.Calibration.MaxParallelBuilds = n
		out, err := basis.Build(context.Background(), marketdata.USDFunding(), pairs, cfg, logger)
		if err != nil {
			t.Fatalf("Build with %d workers: %v", n, err)
		}
		got = append(got, out.Spreads[0].SpreadBP)
	}
	if got[0] != got[1] {
		t.Fatalf("spread depends on parallelism: %v", got)
	}
}

func TestBasisErrors(t *testing.T) {
	t.Parallel()

	if code, out, _ := run(t, "-pairs", "1Y"); code != 1 || !strings.Contains(out.Error, "invalid pair") {
		t.Fatalf("exit %d, error %q", code, out.Error)
	}
	if code, out, _ := run(t, "-input", "/does/not/exist.json"); code != 1 || !strings.Contains(out.Error, "failed to read input") {
		t.Fatalf("exit %d, error %q", code, out.Error)
	}
	snap := marketdata.USDFunding()
	snap.Currency = "EUR"
	pairs, _ := basis.ParsePairs("0x1Y")
	if _, err := basis.Build(context.Background(), snap, pairs, config.Default(), slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Fatalf("expected error for EUR")
	}
	if code, _, _ := run(t, "-bogus"); code != 2 {
		t.Fatalf("unknown flag exit = %d", code)
	}
}

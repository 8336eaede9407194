package funding_test

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/meenmo/curvekit/cmd/curvebuild/internal/funding"
)

func run(t *testing.T, stdin string, args ...string) (int, funding.Output, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := funding.Run(args, strings.NewReader(stdin), &stdout, &stderr)
	var out funding.Output
	if stdout.Len() > 0 {
		if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
			t.Fatalf("stdout is not JSON: %v\n%s", err, stdout.String())
		}
	}
	return code, out, stderr.String()
}

func pointDF(t *testing.T, out funding.Output, tenor string) float64 {
	t.Helper()
	for _, p := range out.Points {
		if p.Tenor == tenor {
			v, err := strconv.ParseFloat(p.DF, 64)
			if err != nil {
				t.Fatalf("df %q: %v", p.DF, err)
			}
			return v
		}
	}
	t.Fatalf("no %s point in %+v", tenor, out.Points)
	return 0
}

func TestBundledUSD(t *testing.T) {
	t.Parallel()

	code, out, stderr := run(t, "", "-usd")
	if code != 0 || out.Error != "" {
		t.Fatalf("exit %d, error %q, stderr %s", code, out.Error, stderr)
	}
	if out.Curve != "discount:USD" || out.Epoch != "2025-01-06" {
		t.Fatalf("curve %s epoch %s", out.Curve, out.Epoch)
	}
	want := 1 / (1 + 0.00762*365.0/360.0)
	if got := pointDF(t, out, "1Y"); math.Abs(got-want) > 1e-9 {
		t.Fatalf("DF(1Y) = %.10f, want %.10f", got, want)
	}
	if len(out.Points) != 8 || len(out.Instruments) != 5 {
		t.Fatalf("%d points, %d instruments", len(out.Points), len(out.Instruments))
	}
	if out.Instruments[3].ID != "USD-SWAP-1Y" || out.Instruments[3].Fallback {
		t.Fatalf("instrument 3 = %+v", out.Instruments[3])
	}
}

func TestQuotesFromStdin(t *testing.T) {
	t.Parallel()

	in := `{"currency":"USD","date":"2025-01-06","quotes":[
		{"tenor":"1M","type":"deposit","value":4.30},
		{"tenor":"1Y","type":"swap","value":4.10}]}`
	code, out, stderr := run(t, in, "-points", "1y")
	if code != 0 {
		t.Fatalf("exit %d, error %q, stderr %s", code, out.Error, stderr)
	}
	want := 1 / (1 + 0.041*365.0/360.0)
	if got := pointDF(t, out, "1Y"); math.Abs(got-want) > 1e-9 {
		t.Fatalf("DF(1Y) = %.10f, want %.10f", got, want)
	}
}

func TestQuotesFromFileWithConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "quotes.json")
	cfg := filepath.Join(dir, "curvekit.toml")
	if err := os.WriteFile(input, []byte(`{"currency":"EUR","date":"2025-01-06","units":"decimal","quotes":[
		{"tenor":"1W","type":"deposit","value":0.029},
		{"tenor":"2Y","type":"swap","value":0.025}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg, []byte("[log]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	code, out, stderr := run(t, "", "-input", input, "-config", cfg, "-points", "1W,2Y")
	if code != 0 {
		t.Fatalf("exit %d, error %q", code, out.Error)
	}
	if out.Curve != "discount:EUR" || len(out.Points) != 2 {
		t.Fatalf("output = %+v", out)
	}
	if !strings.Contains(stderr, "DEBUG") {
		t.Fatalf("debug level not applied, stderr: %s", stderr)
	}
}

func TestErrorsAreJSON(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		stdin string
		args  []string
	}{
		"bad json":     {stdin: "{", args: nil},
		"bad currency": {stdin: `{"currency":"KRW","date":"2025-01-06","quotes":[{"tenor":"1Y","type":"swap","value":3}]}`},
		"bad points":   {args: []string{"-usd", "-points", "1Q"}},
		"missing file": {args: []string{"-input", "/nonexistent/quotes.json"}},
	}
	for name, tc := range cases {
		code, out, _ := run(t, tc.stdin, tc.args...)
		if code != 1 || out.Error == "" {
			t.Fatalf("%s: exit %d, error %q", name, code, out.Error)
		}
	}
}

func TestWatchNeedsConfig(t *testing.T) {
	t.Parallel()

	if code, _, stderr := run(t, "", "-usd", "-watch"); code != 2 || !strings.Contains(stderr, "-config") {
		t.Fatalf("exit %d, stderr %q", code, stderr)
	}
	if code, _, _ := run(t, "", "-nope"); code != 2 {
		t.Fatalf("unknown flag exit %d", code)
	}
}

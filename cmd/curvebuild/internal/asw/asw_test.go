package asw_test

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/meenmo/curvekit/cmd/curvebuild/internal/asw"
)

func run(t *testing.T, stdin string, args ...string) (int, asw.Output) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := asw.Run(args, strings.NewReader(stdin), &stdout, &stderr)
	var out asw.Output
	if stdout.Len() > 0 {
		if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
			t.Fatalf("stdout is not JSON: %v\n%s", err, stdout.String())
		}
	}
	return code, out
}

func num(t *testing.T, s string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		t.Fatalf("%q: %v", s, err)
	}
	return v
}

// A 1Y zero on the bundled curve: one annual float period matching the 1Y OIS.
const zeroFixture = `{"float_leg":"1Y","bonds":[
	{"id":"ZERO-1Y","dirty_price":99,"cashflows":[{"date":"2026-01-06","coupon":0,"principal":100}]}]}`

func TestZeroCouponSpread(t *testing.T) {
	t.Parallel()

	code, out := run(t, zeroFixture)
	if code != 0 || out.Error != "" {
		t.Fatalf("exit %d, error %q", code, out.Error)
	}
	if out.Curve != "discount:USD" || out.Epoch != "2025-01-06" || len(out.Bonds) != 1 {
		t.Fatalf("output = %+v", out)
	}
	df := 1 / (1 + 0.00762*365.0/360.0)
	annuity := 365.0 / 360.0 * df
	b := out.Bonds[0]
	if got := num(t, b.CurvePrice); math.Abs(got-100*df) > 1e-6 {
		t.Fatalf("curve price = %s, want %.6f", b.CurvePrice, 100*df)
	}
	if got := num(t, b.Annuity); math.Abs(got-annuity) > 1e-8 {
		t.Fatalf("annuity = %s, want %.8f", b.Annuity, annuity)
	}
	want := (100*df - 99) / (100 * annuity) * 1e4
	if got := num(t, b.SpreadBP); math.Abs(got-want) > 1e-3 {
		t.Fatalf("spread = %sbp, want %.4fbp", b.SpreadBP, want)
	}
	if b.Maturity != "2026-01-06" {
		t.Fatalf("maturity = %s", b.Maturity)
	}
}

func TestFixtureWithCurveFromFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "asw.json")
	fixture := `{"curve":{"currency":"EUR","date":"2025-01-06","quotes":[
		{"tenor":"1M","type":"deposit","value":2.9},
		{"tenor":"1Y","type":"swap","value":2.6},
		{"tenor":"3Y","type":"swap","value":2.4}]},
		"float_leg":"6M",
		"bonds":[
		{"id":"BUND-2Y","dirty_price":101.2,"cashflows":[
			{"date":"2026-01-06","coupon":2.5,"principal":0},
			{"date":"2027-01-06","coupon":2.5,"principal":100}]},
		{"id":"BUND-3Y","dirty_price":"99.875","cashflows":[
			{"date":"2026-01-06","coupon":2,"principal":0},
			{"date":"2027-01-06","coupon":2,"principal":0},
			{"date":"2028-01-06","coupon":2,"principal":100}]}]}`
	if err := os.WriteFile(input, []byte(fixture), 0o644); err != nil {
		t.Fatal(err)
	}
	code, out := run(t, "", "-input", input)
	if code != 0 || out.Error != "" {
		t.Fatalf("exit %d, error %q", code, out.Error)
	}
	if out.Curve != "discount:EUR" || len(out.Bonds) != 2 {
		t.Fatalf("output = %+v", out)
	}
	for _, b := range out.Bonds {
		spread := num(t, b.SpreadBP)
		rich := num(t, b.CurvePrice) < num(t, b.DirtyPrice)
		if rich != (spread < 0) {
			t.Fatalf("%s: price %s vs curve %s gives %sbp", b.ID, b.DirtyPrice, b.CurvePrice, b.SpreadBP)
		}
	}
	if out.Bonds[1].DirtyPrice != "99.875" {
		t.Fatalf("dirty price = %s", out.Bonds[1].DirtyPrice)
	}
}

func TestFixtureErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"bad json":      "{",
		"unknown field": `{"bondz":[]}`,
		"no bonds":      `{"bonds":[]}`,
		"bad float leg": `{"float_leg":"2W","bonds":[{"id":"X","dirty_price":99,"cashflows":[{"date":"2026-01-06","principal":100}]}]}`,
		"bad date":      `{"bonds":[{"id":"X","dirty_price":99,"cashflows":[{"date":"06/01/2026","principal":100}]}]}`,
		"no price":      `{"bonds":[{"id":"X","cashflows":[{"date":"2026-01-06","principal":100}]}]}`,
		"bad currency":  `{"curve":{"currency":"KRW","date":"2025-01-06","quotes":[{"tenor":"1Y","type":"swap","value":3}]},"bonds":[{"id":"X","dirty_price":99,"cashflows":[{"date":"2026-01-06","principal":100}]}]}`,
	}
	for name, in := range cases {
		code, out := run(t, in)
		if code != 1 || out.Error == "" {
			t.Fatalf("%s: exit %d, error %q", name, code, out.Error)
		}
	}
	if code, _ := run(t, "", "-nope"); code != 2 {
		t.Fatalf("unknown flag exit %d", code)
	}
}

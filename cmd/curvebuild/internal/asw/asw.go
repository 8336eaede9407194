package asw

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/meenmo/curvekit/calendar"
	"github.com/meenmo/curvekit/calib"
	"github.com/meenmo/curvekit/cmd/curvebuild/internal/quotes"
	"github.com/meenmo/curvekit/config"
	"github.com/meenmo/curvekit/curve"
	"github.com/meenmo/curvekit/implied"
	"github.com/meenmo/curvekit/instrument"
	"github.com/meenmo/curvekit/logging"
	"github.com/meenmo/curvekit/marketdata"
	"github.com/meenmo/curvekit/utils"
)

// Fixture is the JSON input. Curve is a funding quote file as read by
// `curvebuild funding`; without it the bundled USD snapshot is used. Bonds
// settle on the curve date.
type Fixture struct {
	Curve *quotes.File `json:"curve"`
	// FloatLeg is the float leg payment tenor ("3M", "6M", "1Y"); empty
	// means the currency's OIS float leg.
	FloatLeg string     `json:"float_leg"`
	Bonds    []BondCase `json:"bonds"`
}

type BondCase struct {
	ID string `json:"id"`
	// DirtyPrice is per 100 face.
	DirtyPrice decimal.Decimal `json:"dirty_price"`
	Cashflows  []CashflowRow   `json:"cashflows"`
}

type CashflowRow struct {
	Date      string          `json:"date"`
	Coupon    decimal.Decimal `json:"coupon"`
	Principal decimal.Decimal `json:"principal"`
}

type Output struct {
	Curve string   `json:"curve,omitempty"`
	Epoch string   `json:"epoch,omitempty"`
	Bonds []Result `json:"bonds,omitempty"`
	Error string   `json:"error,omitempty"`
}

type Result struct {
	ID         string `json:"id"`
	Maturity   string `json:"maturity"`
	DirtyPrice string `json:"dirty_price"`
	CurvePrice string `json:"curve_price"`
	Annuity    string `json:"annuity"`
	SpreadBP   string `json:"asw_spread_bp"`
}

func Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("asw", flag.ContinueOnError)
	fs.SetOutput(stderr)
	inputPath := fs.String("input", "", "JSON fixture file (optional; if set, ignores stdin)")
	configPath := fs.String("config", "", "Config file (TOML, YAML or JSON)")
	help := fs.Bool("h", false, "Show help")
	fs.BoolVar(help, "help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *help {
		usage(stderr)
		return 0
	}

	var r io.Reader = stdin
	path := strings.TrimSpace(*inputPath)
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return writeError(stdout, fmt.Sprintf("failed to read input: %v", err))
		}
		defer f.Close()
		r = f
	} else if f, ok := stdin.(*os.File); ok {
		if stat, err := f.Stat(); err == nil && (stat.Mode()&os.ModeCharDevice) != 0 {
			usage(stderr)
			return 2
		}
	}

	var fx Fixture
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fx); err != nil {
		return writeError(stdout, fmt.Sprintf("failed to parse JSON input: %v", err))
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return writeError(stdout, err.Error())
	}
	lc := logging.FromConfig("curvebuild", "asw", cfg.Log)
	logger := logging.NewWithWriter(stderr, lc)
	if lc.File != "" {
		logger = logging.New(lc)
	}

	out, err := Build(fx, cfg, logger)
	if err != nil {
		return writeError(stdout, err.Error())
	}
	writeJSON(stdout, out)
	return 0
}

// Build calibrates the funding curve of fx and prices every bond on it.
func Build(fx Fixture, cfg config.Config, logger *slog.Logger) (*Output, error) {
	if len(fx.Bonds) == 0 {
		return nil, fmt.Errorf("bonds are required")
	}
	snap := marketdata.USDFunding()
	if fx.Curve != nil {
		var err error
		if snap, err = fx.Curve.Snapshot(); err != nil {
			return nil, fmt.Errorf("curve: %w", err)
		}
	}
	conv, err := marketdata.ConventionsFor(snap.Currency)
	if err != nil {
		return nil, err
	}
	epoch, err := snap.Spot()
	if err != nil {
		return nil, fmt.Errorf("invalid date: %v", err)
	}
	float := conv.FloatLeg
	if fx.FloatLeg != "" {
		tn, err := calendar.ParseTenor(fx.FloatLeg)
		if err != nil || tn.Months() == 0 {
			return nil, fmt.Errorf("invalid float_leg %q", fx.FloatLeg)
		}
		float.Frequency = instrument.Frequency(tn.Months())
	}

	insts, qs, err := marketdata.Ladder(snap, conv, nil)
	if err != nil {
		return nil, err
	}
	label := curve.Label{Kind: curve.Discount, Currency: snap.Currency}
	b, err := calib.NewBuilder(label, epoch, calib.WithConfig(cfg), calib.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	disc, err := b.Build(insts, qs)
	if err != nil {
		return nil, err
	}

	out := &Output{Curve: label.String(), Epoch: epoch.Format(utils.DateLayout)}
	for i, bc := range fx.Bonds {
		if bc.ID == "" {
			return nil, fmt.Errorf("bond %d: id is required", i)
		}
		cfs := make([]instrument.Cashflow, 0, len(bc.Cashflows))
		for _, row := range bc.Cashflows {
			d, err := utils.ParseDate(row.Date)
			if err != nil {
				return nil, fmt.Errorf("bond %s: cashflow date: %v", bc.ID, err)
			}
			cfs = append(cfs, instrument.Cashflow{
				Date:      d,
				Coupon:    row.Coupon.InexactFloat64(),
				Principal: row.Principal.InexactFloat64(),
			})
		}
		bond, err := instrument.NewBond(instrument.BondParams{ID: bc.ID, Settlement: epoch, Cashflows: cfs})
		if err != nil {
			return nil, err
		}
		dirty := bc.DirtyPrice.InexactFloat64()
		if dirty <= 0 {
			return nil, fmt.Errorf("bond %s: dirty_price must be positive", bc.ID)
		}
		res, err := implied.AssetSwap{Bond: bond, FloatLeg: float}.Spread(disc, dirty)
		if err != nil {
			return nil, err
		}
		out.Bonds = append(out.Bonds, Result{
			ID:         bc.ID,
			Maturity:   bond.MaturityDate().Format(utils.DateLayout),
			DirtyPrice: bc.DirtyPrice.String(),
			CurvePrice: quotes.Format(res.CurvePrice, 6),
			Annuity:    quotes.Format(res.Annuity, 8),
			SpreadBP:   quotes.Format(res.SpreadBP, 4),
		})
	}
	return out, nil
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  curvebuild asw < fixture.json")
	fmt.Fprintln(w, "  curvebuild asw -input /path/to/fixture.json [-config curvekit.toml]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Price par asset swap spreads of fixed cash-flow bonds against a funding")
	fmt.Fprintln(w, "curve. The fixture carries an optional \"curve\" quote ladder (default: the")
	fmt.Fprintln(w, "bundled USD snapshot), an optional \"float_leg\" tenor and the \"bonds\".")
}

func writeJSON(stdout io.Writer, out *Output) {
	b, _ := json.Marshal(out)
	fmt.Fprintln(stdout, string(b))
}

func writeError(stdout io.Writer, msg string) int {
	writeJSON(stdout, &Output{Error: msg})
	return 1
}

package basis

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

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

const defaultPairs = "0x1Y,0x2Y,1Yx1Y"

type Output struct {
	Epoch   string   `json:"epoch,omitempty"`
	Curves  []string `json:"curves,omitempty"`
	Spreads []Spread `json:"spreads,omitempty"`
	Error   string   `json:"error,omitempty"`
}

type Spread struct {
	Pair      string `json:"pair"`
	Effective string `json:"effective"`
	Maturity  string `json:"maturity"`
	SpreadBP  string `json:"spread_bp"`
}

// Pair is a forward-start × tenor basis swap. A zero Start means spot.
type Pair struct {
	Start calendar.Tenor
	Tenor calendar.Tenor
}

func (p Pair) String() string {
	start := "0"
	if p.Start.N != 0 {
		start = p.Start.String()
	}
	return start + "x" + p.Tenor.String()
}

func Run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("basis", flag.ContinueOnError)
	fs.SetOutput(stderr)
	inputPath := fs.String("input", "", "JSON funding quote file (default: bundled USD snapshot)")
	configPath := fs.String("config", "", "Config file (TOML, YAML or JSON)")
	pairs := fs.String("pairs", defaultPairs, "Comma-separated start x tenor pairs, e.g. 0x1Y,1Yx1Y")
	help := fs.Bool("h", false, "Show help")
	fs.BoolVar(help, "help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *help {
		usage(stderr)
		return 0
	}

	snap := marketdata.USDFunding()
	if path := strings.TrimSpace(*inputPath); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return writeError(stdout, fmt.Sprintf("failed to read input: %v", err))
		}
		snap, err = quotes.Parse(f)
		f.Close()
		if err != nil {
			return writeError(stdout, err.Error())
		}
	}
	ps, err := ParsePairs(*pairs)
	if err != nil {
		return writeError(stdout, err.Error())
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return writeError(stdout, err.Error())
	}
	lc := logging.FromConfig("curvebuild", "basis", cfg.Log)
	logger := logging.NewWithWriter(stderr, lc)
	if lc.File != "" {
		logger = logging.New(lc)
	}

	out, err := Build(context.Background(), snap, ps, cfg, logger)
	if err != nil {
		return writeError(stdout, err.Error())
	}
	writeJSON(stdout, out)
	return 0
}

// Build calibrates the funding curve of snap, then the 3M and 6M projection
// curves on top of it in parallel, and prices each pair as a 3M+spread vs 6M
// basis swap discounted on the funding curve.
func Build(ctx context.Context, snap marketdata.Snapshot, pairs []Pair, cfg config.Config, logger *slog.Logger) (*Output, error) {
	if snap.Currency != "USD" {
		return nil, fmt.Errorf("term swap ladders are only bundled for USD, got %s", snap.Currency)
	}
	conv := marketdata.USDConventions()
	epoch, err := snap.Spot()
	if err != nil {
		return nil, fmt.Errorf("invalid date: %v", err)
	}

	insts, qs, err := marketdata.Ladder(snap, conv, nil)
	if err != nil {
		return nil, err
	}
	funding := curve.Label{Kind: curve.Discount, Currency: snap.Currency}
	opts := []calib.Option{calib.WithConfig(cfg), calib.WithLogger(logger)}
	b, err := calib.NewBuilder(funding, epoch, opts...)
	if err != nil {
		return nil, err
	}
	ois, err := b.Build(insts, qs)
	if err != nil {
		return nil, err
	}

	indices := []string{"3M", "6M"}
	fixings := marketdata.USDTermFixings()
	swaps := marketdata.USDTermSwaps()
	jobs := make([]calib.Job, 0, len(indices))
	for _, idx := range indices {
		fixing, ok := fixings[idx].RateOn(epoch)
		if !ok {
			return nil, fmt.Errorf("no %s fixing on %s", idx, snap.Date)
		}
		ladder := swaps[idx]
		ladder.Date = snap.Date
		ti, tq, err := marketdata.TermLadder(ladder, idx, fixing, conv, ois)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, calib.Job{
			Label:       curve.Label{Kind: curve.Forward, Currency: snap.Currency, Tenor: idx},
			Epoch:       epoch,
			Instruments: ti,
			Quotes:      tq,
		})
	}
	results, err := calib.BuildAll(ctx, jobs, cfg.Calibration.MaxParallelBuilds, opts...)
	if err != nil {
		return nil, err
	}
	set := curve.NewContainer()
	set.Set(funding, ois)
	calib.Put(set, results)
	three, six := set.Get(jobs[0].Label), set.Get(jobs[1].Label)

	quarterly, semi := conv.FloatLeg, conv.FloatLeg
	quarterly.Frequency, semi.Frequency = instrument.FreqQuarterly, instrument.FreqSemi

	out := &Output{Epoch: epoch.Format(utils.DateLayout)}
	for _, l := range []curve.Label{funding, jobs[0].Label, jobs[1].Label} {
		out.Curves = append(out.Curves, l.String())
	}
	for _, p := range pairs {
		eff := epoch
		if p.Start.N != 0 {
			eff = conv.Calendar.AddTenor(epoch, p.Start)
		}
		mat := conv.Calendar.AddTenor(eff, p.Tenor)
		sw, err := instrument.NewBasisSwap(instrument.BasisSwapParams{
			ID:            fmt.Sprintf("USD-3M6M-%s", p),
			EffectiveDate: eff,
			MaturityDate:  mat,
			SpreadLeg:     quarterly,
			ReferenceLeg:  semi,
			Discount:      ois,
			Reference:     six,
		})
		if err != nil {
			return nil, err
		}
		bp, err := implied.BasisSpreadBP(sw, three)
		if err != nil {
			return nil, err
		}
		out.Spreads = append(out.Spreads, Spread{
			Pair:      p.String(),
			Effective: eff.Format(utils.DateLayout),
			Maturity:  mat.Format(utils.DateLayout),
			SpreadBP:  quotes.Format(bp, 6),
		})
	}
	return out, nil
}

// ParsePairs reads "0x1Y,1Yx2Y" style lists.
func ParsePairs(s string) ([]Pair, error) {
	var out []Pair
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		start, tenor, ok := strings.Cut(strings.ToUpper(part), "X")
		if !ok {
			return nil, fmt.Errorf("invalid pair %q (want start x tenor)", part)
		}
		var p Pair
		if start != "0" {
			tn, err := calendar.ParseTenor(start)
			if err != nil {
				return nil, fmt.Errorf("invalid pair %q: %w", part, err)
			}
			p.Start = tn
		}
		tn, err := calendar.ParseTenor(tenor)
		if err != nil {
			return nil, fmt.Errorf("invalid pair %q: %w", part, err)
		}
		p.Tenor = tn
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("invalid -pairs: no pairs")
	}
	return out, nil
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  curvebuild basis [-pairs 0x1Y,1Yx1Y] [-config curvekit.toml]")
	fmt.Fprintln(w, "  curvebuild basis -input /path/to/usd_funding.json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Build USD 3M and 6M projection curves over the funding curve and print")
	fmt.Fprintln(w, "implied 3M/6M basis spreads (bp on the 3M leg) as JSON.")
}

func writeJSON(stdout io.Writer, out *Output) {
	b, _ := json.Marshal(out)
	fmt.Fprintln(stdout, string(b))
}

func writeError(stdout io.Writer, msg string) int {
	writeJSON(stdout, &Output{Error: msg})
	return 1
}

package vol

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/meenmo/curvekit/cmd/curvebuild/internal/quotes"
	"github.com/meenmo/curvekit/implied"
	"github.com/meenmo/curvekit/solver"
)

type Output struct {
	Type       string `json:"type,omitempty"`
	Volatility string `json:"volatility,omitempty"`
	Vega       string `json:"vega,omitempty"`
	Error      string `json:"error,omitempty"`
}

func Run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("vol", flag.ContinueOnError)
	fs.SetOutput(stderr)
	typ := fs.String("type", "call", "call or put")
	forward := fs.Float64("forward", 0, "Forward price or rate")
	strike := fs.Float64("strike", 0, "Strike")
	expiry := fs.Float64("expiry", 0, "Time to expiry in years")
	df := fs.Float64("df", 1, "Discount factor to the premium date")
	price := fs.Float64("price", 0, "Option premium")
	method := fs.String("method", "newton", "Root finder: bisection, brent or newton")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var opt implied.OptionType
	switch strings.ToLower(strings.TrimSpace(*typ)) {
	case "call", "c":
		opt = implied.Call
	case "put", "p":
		opt = implied.Put
	default:
		return writeError(stdout, fmt.Sprintf("invalid -type %q", *typ))
	}
	opts := solver.Options{Criterion: solver.Residual}
	switch m := solver.Method(strings.ToLower(*method)); m {
	case solver.Bisection, solver.Brent:
		opts.Method = m
	case solver.NewtonBracketed:
		// Zero method selects vega-driven Newton.
	default:
		return writeError(stdout, fmt.Sprintf("invalid -method %q", *method))
	}

	v, err := implied.Volatility(opt, *forward, *strike, *expiry, *df, *price, opts)
	if err != nil {
		return writeError(stdout, err.Error())
	}
	writeJSON(stdout, &Output{
		Type:       opt.String(),
		Volatility: quotes.Format(v, 8),
		Vega:       quotes.Format(implied.Vega(*forward, *strike, v, *expiry, *df), 8),
	})
	return 0
}

func writeJSON(stdout io.Writer, out *Output) {
	b, _ := json.Marshal(out)
	fmt.Fprintln(stdout, string(b))
}

func writeError(stdout io.Writer, msg string) int {
	writeJSON(stdout, &Output{Error: msg})
	return 1
}

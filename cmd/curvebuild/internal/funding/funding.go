package funding

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/meenmo/curvekit/calendar"
	"github.com/meenmo/curvekit/calib"
	"github.com/meenmo/curvekit/cmd/curvebuild/internal/quotes"
	"github.com/meenmo/curvekit/config"
	"github.com/meenmo/curvekit/curve"
	"github.com/meenmo/curvekit/logging"
	"github.com/meenmo/curvekit/marketdata"
	"github.com/meenmo/curvekit/metrics"
	"github.com/meenmo/curvekit/utils"
)

const defaultPoints = "1M,3M,6M,1Y,18M,2Y,3Y,5Y"

// Output is the JSON result. Numbers are fixed-point strings.
type Output struct {
	Curve       string       `json:"curve,omitempty"`
	Epoch       string       `json:"epoch,omitempty"`
	Points      []Point      `json:"points,omitempty"`
	Instruments []Instrument `json:"instruments,omitempty"`
	Error       string       `json:"error,omitempty"`
}

type Point struct {
	Tenor    string `json:"tenor"`
	Date     string `json:"date"`
	DF       string `json:"df"`
	ZeroRate string `json:"zero_rate_pct"`
}

type Instrument struct {
	ID       string `json:"id"`
	Measure  string `json:"measure"`
	Quote    string `json:"quote"`
	Model    string `json:"model"`
	Residual string `json:"residual"`
	Newton   int    `json:"newton_iterations"`
	Fallback bool   `json:"fallback"`
}

func Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("funding", flag.ContinueOnError)
	fs.SetOutput(stderr)
	inputPath := fs.String("input", "", "JSON quote file (optional; if set, ignores stdin)")
	bundled := fs.Bool("usd", false, "Use the bundled USD funding snapshot")
	configPath := fs.String("config", "", "Config file (TOML, YAML or JSON)")
	watch := fs.Bool("watch", false, "Rebuild whenever the config file changes (needs -config)")
	points := fs.String("points", defaultPoints, "Comma-separated output tenors")
	metricsAddr := fs.String("metrics-addr", "", "Serve Prometheus metrics on this address in -watch mode")
	help := fs.Bool("h", false, "Show help")
	fs.BoolVar(help, "help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *help {
		usage(stderr)
		return 0
	}
	if *watch && *configPath == "" {
		fmt.Fprintln(stderr, "-watch needs -config")
		return 2
	}

	var snap marketdata.Snapshot
	if *bundled {
		snap = marketdata.USDFunding()
	} else {
		path := strings.TrimSpace(*inputPath)
		if path == "" {
			if f, ok := stdin.(*os.File); ok {
				if stat, err := f.Stat(); err == nil && (stat.Mode()&os.ModeCharDevice) != 0 {
					usage(stderr)
					return 2
				}
			}
		}
		r, closeFn, err := openInput(stdin, path)
		if err != nil {
			return writeError(stdout, fmt.Sprintf("failed to read input: %v", err))
		}
		snap, err = quotes.Parse(r)
		closeFn()
		if err != nil {
			return writeError(stdout, err.Error())
		}
	}
	tenors, err := parsePoints(*points)
	if err != nil {
		return writeError(stdout, err.Error())
	}

	if !*watch {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return writeError(stdout, err.Error())
		}
		logger := newLogger(cfg, stderr)
		m, err := newMetrics(cfg)
		if err != nil {
			return writeError(stdout, err.Error())
		}
		out, err := Build(snap, tenors, cfg, logger, m)
		if err != nil {
			return writeError(stdout, err.Error())
		}
		writeJSON(stdout, out)
		return 0
	}
	return runWatch(snap, tenors, *configPath, *metricsAddr, stdout, stderr)
}

func runWatch(snap marketdata.Snapshot, tenors []calendar.Tenor, path, metricsAddr string, stdout, stderr io.Writer) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	boot, err := config.Load(path)
	if err != nil {
		return writeError(stdout, err.Error())
	}
	logger := newLogger(boot, stderr)
	m, err := newMetrics(boot)
	if err != nil {
		return writeError(stdout, err.Error())
	}

	var mu sync.Mutex
	rebuild := func(cfg config.Config) {
		mu.Lock()
		defer mu.Unlock()
		out, err := Build(snap, tenors, cfg, logger, m)
		if err != nil {
			out = &Output{Error: err.Error()}
		}
		writeJSON(stdout, out)
	}
	initial, stop, err := config.Watch(path, logger, rebuild)
	if err != nil {
		return writeError(stdout, err.Error())
	}
	defer stop()
	rebuild(initial)

	if metricsAddr != "" && m != nil {
		srv := &http.Server{Addr: metricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	logger.Info("watching config", "file", path)
	<-ctx.Done()
	return 0
}

// Build calibrates the discount curve of snap and samples it at tenors.
func Build(snap marketdata.Snapshot, tenors []calendar.Tenor, cfg config.Config, logger *slog.Logger, m *metrics.Calibration) (*Output, error) {
	conv, err := marketdata.ConventionsFor(snap.Currency)
	if err != nil {
		return nil, err
	}
	epoch, err := snap.Spot()
	if err != nil {
		return nil, fmt.Errorf("invalid date: %v", err)
	}
	insts, qs, err := marketdata.Ladder(snap, conv, nil)
	if err != nil {
		return nil, err
	}
	label := curve.Label{Kind: curve.Discount, Currency: snap.Currency}
	b, err := calib.NewBuilder(label, epoch,
		calib.WithConfig(cfg),
		calib.WithLogger(logger),
		calib.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}
	c, err := b.Build(insts, qs)
	if err != nil {
		return nil, err
	}

	out := &Output{Curve: label.String(), Epoch: epoch.Format(utils.DateLayout)}
	for _, tn := range tenors {
		d := conv.Calendar.AddTenor(epoch, tn)
		out.Points = append(out.Points, Point{
			Tenor:    tn.String(),
			Date:     d.Format(utils.DateLayout),
			DF:       quotes.Format(c.DF(d), 10),
			ZeroRate: quotes.Format(c.ZeroRate(d), 6),
		})
	}
	for _, d := range b.Diagnostics() {
		out.Instruments = append(out.Instruments, Instrument{
			ID:       d.InstrumentID,
			Measure:  d.Measure,
			Quote:    quotes.Format(d.Quote, 8),
			Model:    quotes.Format(d.Model, 8),
			Residual: fmt.Sprintf("%.3e", d.Residual),
			Newton:   d.NewtonIterations,
			Fallback: d.Fallback,
		})
	}
	return out, nil
}

func parsePoints(s string) ([]calendar.Tenor, error) {
	var out []calendar.Tenor
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tn, err := calendar.ParseTenor(part)
		if err != nil {
			return nil, fmt.Errorf("invalid -points: %w", err)
		}
		out = append(out, tn)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("invalid -points: no tenors")
	}
	return out, nil
}

func newLogger(cfg config.Config, stderr io.Writer) *slog.Logger {
	lc := logging.FromConfig("curvebuild", "funding", cfg.Log)
	if lc.File != "" {
		return logging.New(lc)
	}
	return logging.NewWithWriter(stderr, lc)
}

func newMetrics(cfg config.Config) (*metrics.Calibration, error) {
	if !cfg.Metrics.Enabled {
		return nil, nil
	}
	return metrics.New(cfg.Metrics.Namespace, nil)
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  curvebuild funding < quotes.json")
	fmt.Fprintln(w, "  curvebuild funding -input /path/to/quotes.json [-config curvekit.toml]")
	fmt.Fprintln(w, "  curvebuild funding -usd [-points 1Y,2Y]")
	fmt.Fprintln(w, "  curvebuild funding -usd -config curvekit.toml -watch [-metrics-addr :9100]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Bootstrap a discount curve from a quote ladder and print discount factors as JSON.")
}

func openInput(stdin io.Reader, path string) (io.Reader, func(), error) {
	if path == "" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

func writeJSON(stdout io.Writer, out *Output) {
	b, _ := json.Marshal(out)
	fmt.Fprintln(stdout, string(b))
}

func writeError(stdout io.Writer, msg string) int {
	writeJSON(stdout, &Output{Error: msg})
	return 1
}

// Package calib bootstraps curves from market quotes: instruments are turned
// into predictor-response weight constraints by registered adapters and solved
// segment by segment, left to right, on a latent state stretch.
package calib

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/meenmo/curvekit/config"
	"github.com/meenmo/curvekit/curve"
	"github.com/meenmo/curvekit/instrument"
	"github.com/meenmo/curvekit/logging"
	"github.com/meenmo/curvekit/metrics"
	"github.com/meenmo/curvekit/solver"
	"github.com/meenmo/curvekit/spline"
	"github.com/meenmo/curvekit/stretch"
	"github.com/meenmo/curvekit/utils"
)

// Diagnostic describes how one instrument was calibrated.
type Diagnostic struct {
	InstrumentID string
	Measure      string
	Quote        float64
	Model        float64
	Residual     float64
	// NewtonIterations counts linearised solves (0 for exact encodings).
	NewtonIterations int
	// Fallback is set when the bracketing root-finder produced the segment.
	Fallback            bool
	ManifestSensitivity float64
}

type Option func(*Builder)

func WithConfig(c config.Config) Option { return func(b *Builder) { b.cfg = c } }

func WithLogger(l *slog.Logger) Option { return func(b *Builder) { b.logger = l } }

func WithMetrics(m *metrics.Calibration) Option { return func(b *Builder) { b.metrics = m } }

func WithRegistry(r *Registry) Option { return func(b *Builder) { b.registry = r } }

// WithAnchor pins the latent value at the epoch. Discount, forward, credit
// and govvie curves default to 1; FX curves need the spot rate.
func WithAnchor(v float64) Option {
	return func(b *Builder) { b.anchor, b.anchorSet = v, true }
}

// Builder is the scratch space of one curve calibration. It never exposes a
// partially built curve. A Builder is not safe for concurrent use.
type Builder struct {
	label     curve.Label
	epoch     time.Time
	cfg       config.Config
	registry  *Registry
	logger    *slog.Logger
	metrics   *metrics.Calibration
	anchor    float64
	anchorSet bool

	dc    utils.DayCount
	basis spline.Basis
	diags []Diagnostic
}

func NewBuilder(label curve.Label, epoch time.Time, opts ...Option) (*Builder, error) {
	b := &Builder{label: label, epoch: epoch, cfg: config.Default(), anchor: 1}
	for _, opt := range opts {
		opt(b)
	}
	if epoch.IsZero() {
		return nil, fmt.Errorf("NewBuilder %s: epoch is required", label)
	}
	if err := b.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("NewBuilder %s: %w", label, err)
	}
	if label.Kind == curve.FX && !b.anchorSet {
		return nil, fmt.Errorf("NewBuilder %s: FX curves need WithAnchor(spot)", label)
	}
	if b.anchor == 0 || math.IsNaN(b.anchor) || math.IsInf(b.anchor, 0) {
		return nil, fmt.Errorf("NewBuilder %s: anchor %g", label, b.anchor)
	}
	if b.registry == nil {
		b.registry = DefaultRegistry(b.cfg.Calibration.SensitivityBump)
	}
	if b.logger == nil {
		b.logger = logging.Discard()
	}
	b.logger = b.logger.With("curve", label.String())

	dc, ok := utils.ParseDayCount(b.cfg.Calibration.DayCount)
	if !ok {
		return nil, fmt.Errorf("NewBuilder %s: unknown day count %q", label, b.cfg.Calibration.DayCount)
	}
	b.dc = dc
	basis, err := NewBasis(b.cfg.Spline)
	if err != nil {
		return nil, fmt.Errorf("NewBuilder %s: %w", label, err)
	}
	b.basis = basis
	return b, nil
}

// NewBasis builds the segment basis named by the spline config.
func NewBasis(c config.SplineConfig) (spline.Basis, error) {
	switch c.Basis {
	case "polynomial", "":
		return spline.NewPolynomial(c.Degree)
	case "exponential":
		return spline.NewExponentialTension(c.Tension)
	case "hyperbolic":
		return spline.NewHyperbolicTension(c.Tension)
	}
	return nil, fmt.Errorf("NewBasis: unknown basis %q", c.Basis)
}

// Diagnostics returns per-instrument details of the last Build, in input order.
func (b *Builder) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), b.diags...)
}

// step is one validated instrument of the bootstrap ladder.
type step struct {
	inst    instrument.Instrument
	measure string
	quote   float64
	adapter Adapter
	pillar  time.Time
}

func (b *Builder) toTime(d time.Time) float64 {
	return utils.YearFraction(b.epoch, d, b.dc)
}

// trial reads a stretch through calendar dates.
type trial struct {
	b  *Builder
	st *stretch.Stretch
}

func (t trial) Value(d time.Time) float64 { return t.st.Evaluate(t.b.toTime(d)) }

func (b *Builder) tolerance(q, rel float64) float64 {
	return math.Max(rel*math.Abs(q), b.cfg.Calibration.AbsoluteTolerance)
}

// plan validates the ladder. Instruments must already be in strictly
// ascending maturity order; nothing is sorted.
func (b *Builder) plan(insts []instrument.Instrument, quotes []instrument.ManifestQuote) ([]step, error) {
	if len(insts) == 0 {
		return nil, inputErr("", nil, "no instruments")
	}
	if len(insts) != len(quotes) {
		return nil, inputErr("", nil, "%d instruments but %d quotes", len(insts), len(quotes))
	}
	steps := make([]step, len(insts))
	prevMat, prevPillar := b.epoch, b.epoch
	for i, inst := range insts {
		if inst == nil {
			return nil, inputErr(fmt.Sprintf("#%d", i), nil, "nil instrument")
		}
		id := inst.ID()
		q := quotes[i]
		if math.IsNaN(q.Value) || math.IsInf(q.Value, 0) {
			return nil, inputErr(id, nil, "quote %s is not finite", q)
		}
		measure, err := instrument.Canonical(inst, q.Measure)
		if err != nil {
			return nil, inputErr(id, err, "measure")
		}
		mat := inst.MaturityDate()
		if !mat.After(b.epoch) {
			return nil, inputErr(id, nil, "maturity %s not after epoch %s", mat.Format(utils.DateLayout), b.epoch.Format(utils.DateLayout))
		}
		if i > 0 && mat.Equal(prevMat) {
			return nil, inputErr(id, nil, "duplicate maturity %s", mat.Format(utils.DateLayout))
		}
		if !mat.After(prevMat) {
			return nil, inputErr(id, nil, "maturity %s before previous %s: instruments must be in ascending maturity order",
				mat.Format(utils.DateLayout), prevMat.Format(utils.DateLayout))
		}
		preds := inst.PredictorDates()
		if len(preds) == 0 {
			return nil, inputErr(id, nil, "no predictor dates")
		}
		pillar := preds[len(preds)-1]
		if !pillar.After(prevPillar) {
			return nil, inputErr(id, nil, "last predictor date %s not after previous %s",
				pillar.Format(utils.DateLayout), prevPillar.Format(utils.DateLayout))
		}
		adapter, ok := b.registry.Lookup(b.label.Kind, inst.Type())
		if !ok {
			return nil, inputErr(id, nil, "no adapter registered for %s on %s curves", inst.Type(), b.label.Kind)
		}
		steps[i] = step{inst: inst, measure: measure, quote: q.Value, adapter: adapter, pillar: pillar}
		prevMat, prevPillar = mat, pillar
	}
	return steps, nil
}

// Build calibrates one curve from instruments in ascending maturity order,
// quotes[i] belonging to insts[i]. It returns a fully calibrated immutable
// curve or an error; never a partial curve.
func (b *Builder) Build(insts []instrument.Instrument, quotes []instrument.ManifestQuote) (c *curve.Curve, err error) {
	start := time.Now()
	kind := b.label.Kind.String()
	defer func() {
		b.metrics.ObserveBuild(kind, time.Since(start), err)
		if err != nil {
			b.logger.Error("curve build failed", "error", err)
		}
	}()
	b.diags = nil

	steps, err := b.plan(insts, quotes)
	if err != nil {
		return nil, err
	}
	b.logger.Info("curve build started", "instruments", len(steps), "epoch", b.epoch.Format(utils.DateLayout))

	knots := make([]float64, 0, len(steps)+1)
	pillars := make([]time.Time, len(steps))
	knots = append(knots, 0)
	for i, s := range steps {
		knots = append(knots, b.toTime(s.pillar))
		pillars[i] = s.pillar
	}
	st, err := stretch.New(knots, stretch.Config{
		Basis:         b.basis,
		Continuity:    b.cfg.Spline.Continuity,
		Anchor:        b.anchor,
		Extrapolation: b.label.Kind.Extrapolation(),
		Ridge:         b.cfg.Spline.Ridge,
	})
	if err != nil {
		return nil, fmt.Errorf("Build %s: %w", b.label, err)
	}

	diags := make([]Diagnostic, len(steps))
	for i, s := range steps {
		frontier := b.epoch
		if i > 0 {
			frontier = steps[i-1].pillar
		}
		d, err := b.calibrateSegment(st, i, s, frontier)
		if err != nil {
			return nil, err
		}
		diags[i] = d
		b.metrics.ObserveSegment(kind, d.NewtonIterations, d.Fallback)
		b.logger.Debug("segment calibrated",
			"segment", i, "instrument", d.InstrumentID, "residual", d.Residual,
			"newton", d.NewtonIterations, "fallback", d.Fallback)
	}

	rel := b.cfg.Calibration.Tolerance
	if b.cfg.Smoothing.Enabled {
		if smoothed, ok := b.smooth(st, steps); ok {
			st = smoothed
			rel = math.Max(rel, b.cfg.Smoothing.Tolerance)
		}
	}

	for i, s := range steps {
		v, err := s.inst.Evaluate(s.measure, trial{b, st})
		tol := b.tolerance(s.quote, rel)
		if err != nil || math.Abs(v-s.quote) > tol {
			return nil, &CalibrationFailure{InstrumentID: s.inst.ID(), Tolerance: tol, Residual: v - s.quote, Err: err}
		}
		diags[i].Model, diags[i].Residual = v, v-s.quote
	}

	c, err = curve.New(b.label, b.epoch, b.dc, st, pillars)
	if err != nil {
		return nil, fmt.Errorf("Build %s: %w", b.label, err)
	}
	b.diags = diags
	b.logger.Info("curve build finished", "segments", st.Len(), "elapsed", time.Since(start).String())
	return c, nil
}

// calibrateSegment solves segment i for s: adapter constraint, exact solve,
// Newton re-linearisation for linearised constraints, then the bracketing
// root-finder over the segment's right-node value. frontier is the previous
// pillar (the epoch for the first segment).
func (b *Builder) calibrateSegment(st *stretch.Stretch, i int, s step, frontier time.Time) (Diagnostic, error) {
	id := s.inst.ID()
	d := Diagnostic{InstrumentID: id, Measure: s.measure, Quote: s.quote}
	tol := b.tolerance(s.quote, b.cfg.Calibration.Tolerance)
	state := trial{b, st}
	view := View{Label: b.label, State: state, Frontier: frontier}

	// Seed the segment with the extrapolated (or anchor) value so the trial
	// state is defined everywhere the adapter looks.
	seed := b.anchor
	if i > 0 {
		seed = st.Evaluate(st.Segment(i).Right())
	}
	if err := st.CalibrateSegmentToNode(i, seed); err != nil {
		return d, fmt.Errorf("segment %d (%s): seed: %w", i, id, err)
	}

	var (
		v       float64
		evalErr error
	)
	for {
		p, err := s.adapter.Constraint(s.inst, s.measure, s.quote, view)
		if err != nil {
			return d, inputErr(id, err, "constraint")
		}
		if len(p.Dates) == 0 {
			return d, inputErr(id, nil, "no predictor date after %s", frontier.Format(utils.DateLayout))
		}
		if err := st.CalibrateSegment(i, p.equation(b.toTime)); err != nil {
			return d, fmt.Errorf("segment %d (%s): %w", i, id, err)
		}
		if p.Linearized {
			d.NewtonIterations++
		}
		d.ManifestSensitivity = p.ManifestSensitivity[s.measure]

		v, evalErr = s.inst.Evaluate(s.measure, state)
		if evalErr == nil && math.Abs(v-s.quote) <= tol {
			d.Model, d.Residual = v, v-s.quote
			return d, nil
		}
		if !p.Linearized || d.NewtonIterations >= b.cfg.Calibration.MaxNewtonIterations {
			break
		}
	}

	b.logger.Warn("segment did not reprice, using root-finder",
		"segment", i, "instrument", id, "residual", v-s.quote, "tolerance", tol, "newton", d.NewtonIterations)
	d.Fallback = true
	res, err := b.rootFind(st, i, s, tol)
	iterations := d.NewtonIterations + res.Iterations
	if err != nil {
		residual := v - s.quote
		var se *solver.SolveError
		if errors.As(err, &se) {
			residual = se.Residual
			iterations = d.NewtonIterations + se.Iterations
		}
		return d, &CalibrationFailure{InstrumentID: id, Tolerance: tol, Residual: residual, Iterations: iterations, Err: err}
	}
	v, evalErr = s.inst.Evaluate(s.measure, state)
	if evalErr != nil || math.Abs(v-s.quote) > tol {
		return d, &CalibrationFailure{InstrumentID: id, Tolerance: tol, Residual: v - s.quote, Iterations: iterations, Err: evalErr}
	}
	d.Model, d.Residual = v, v-s.quote
	return d, nil
}

// bracket bounds the right-node value of a segment of width dt starting at y.
func (b *Builder) bracket(y, dt float64) solver.Bracket {
	switch b.label.Kind {
	case curve.FX:
		return solver.Bracket{Lo: y / 2, Hi: 2 * y}
	case curve.Credit:
		// hazard rates in [-1%, 500%]
		return solver.Bracket{Lo: y * math.Exp(-5*dt), Hi: y * math.Exp(0.01*dt)}
	default:
		// zero rates in [-10%, 100%]
		return solver.Bracket{Lo: y * math.Exp(-dt), Hi: y * math.Exp(0.10*dt)}
	}
}

func (b *Builder) rootFind(st *stretch.Stretch, i int, s step, tol float64) (solver.Result, error) {
	seg := st.Segment(i)
	state := trial{b, st}
	var evalErr error
	f := func(node float64) float64 {
		if err := st.CalibrateSegmentToNode(i, node); err != nil {
			evalErr = err
			return math.NaN()
		}
		v, err := s.inst.Evaluate(s.measure, state)
		if err != nil {
			evalErr = err
			return math.NaN()
		}
		return v
	}
	// A residual stop is measured in quote units, so it must not be looser
	// than the repricing tolerance. Width stops are in node units and use the
	// configured tolerance as is; the caller still checks the repricing.
	opts := solver.Options{
		Method:        solver.Method(b.cfg.Solver.Method),
		Criterion:     solver.Criterion(b.cfg.Solver.Criterion),
		Tolerance:     b.cfg.Solver.Tolerance,
		MaxIterations: b.cfg.Solver.MaxIterations,
	}
	if opts.Criterion == solver.Residual && tol < opts.Tolerance {
		opts.Tolerance = tol
	}
	br := b.bracket(st.Evaluate(seg.Left()), seg.Width())
	res, err := solver.FindRoot(s.quote, f, br, opts)
	if err != nil {
		if evalErr != nil {
			return res, fmt.Errorf("%w (last evaluation: %v)", err, evalErr)
		}
		return res, err
	}
	if err := st.CalibrateSegmentToNode(i, res.Root); err != nil {
		return res, err
	}
	return res, nil
}

package instrument

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/meenmo/curvekit/utils"
)

var (
	// ErrUnsupportedMeasure is returned for a manifest measure the product does not declare.
	ErrUnsupportedMeasure = errors.New("instrument: unsupported manifest measure")
	// ErrNonlinear is returned by Constrainer when no exact linear encoding exists.
	ErrNonlinear = errors.New("instrument: price is not linear in the calibrated curve")
)

// Manifest measure names.
const (
	Rate          = "Rate"
	ForwardRate   = "ForwardRate"
	Price         = "Price"
	SwapRate      = "SwapRate"
	PV            = "PV"
	ParSpread     = "ParSpread"
	Yield         = "Yield"
	Upfront       = "Upfront"
	Outright      = "Outright"
	ForwardPoints = "ForwardPoints"
)

// ManifestQuote is a named market observation for one instrument.
type ManifestQuote struct {
	Measure string
	Value   float64
}

func (q ManifestQuote) String() string {
	return fmt.Sprintf("%s=%g", q.Measure, q.Value)
}

// State is the latent curve being calibrated (trial or final).
type State interface {
	Value(d time.Time) float64
}

// DiscountCurve is a read-only curve supplying discount factors.
type DiscountCurve interface {
	DF(d time.Time) float64
}

// Instrument is a calibratable product.
type Instrument interface {
	ID() string
	// Type names the product family; adapters are registered per type.
	Type() string
	EffectiveDate() time.Time
	MaturityDate() time.Time
	// Measures lists the manifest measures Evaluate supports.
	Measures() []string
	// PredictorDates are the dates whose latent values drive the price, ascending.
	PredictorDates() []time.Time
	// Evaluate returns the model-implied value of measure against s.
	Evaluate(measure string, s State) (float64, error)
}

// Leg is one additive part of a linear price equation:
// Σ Weights[j]·latent(Dates[j]) = Target.
type Leg struct {
	Dates   []time.Time
	Weights []float64
	Target  float64
}

// Constrainer is implemented by products whose price equation for a quote is
// linear in the calibrated curve. The legs sum to the full equation.
type Constrainer interface {
	Constraint(measure string, quote float64) ([]Leg, error)
}

// Linearizer is implemented by products that supply an analytic Jacobian row.
// grad is aligned with PredictorDates.
type Linearizer interface {
	Sensitivity(measure string, s State) (value float64, grad []float64, err error)
}

// Canonical resolves measure against the product's declared measures, ignoring case.
func Canonical(inst Instrument, measure string) (string, error) {
	for _, m := range inst.Measures() {
		if strings.EqualFold(m, strings.TrimSpace(measure)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("%s %s does not support %q (have %v): %w", inst.Type(), inst.ID(), measure, inst.Measures(), ErrUnsupportedMeasure)
}

type base struct {
	id        string
	effective time.Time
	maturity  time.Time
}

func newBase(kind, id string, effective, maturity time.Time) (base, error) {
	if id == "" {
		return base{}, fmt.Errorf("New%s: ID is required", kind)
	}
	if effective.IsZero() || maturity.IsZero() {
		return base{}, fmt.Errorf("New%s %s: effective and maturity dates are required", kind, id)
	}
	if !effective.Before(maturity) {
		return base{}, fmt.Errorf("New%s %s: effective %s not before maturity %s", kind, id,
			effective.Format("2006-01-02"), maturity.Format("2006-01-02"))
	}
	return base{id: id, effective: effective, maturity: maturity}, nil
}

func (b base) ID() string               { return b.id }
func (b base) EffectiveDate() time.Time { return b.effective }
func (b base) MaturityDate() time.Time  { return b.maturity }

func (b base) unsupported(kind, measure string) error {
	return fmt.Errorf("%s %s: %q: %w", kind, b.id, measure, ErrUnsupportedMeasure)
}

// ratio returns a/b, reporting a degenerate denominator.
func ratio(a, b float64, what string) (float64, error) {
	if b == 0 || math.IsNaN(b) || math.IsInf(b, 0) {
		return 0, fmt.Errorf("degenerate %s (%g)", what, b)
	}
	return a / b, nil
}

// dateIndex accumulates gradients onto a sorted set of distinct dates.
type dateIndex struct {
	dates []time.Time
	pos   map[time.Time]int
}

func newDateIndex(dates []time.Time) dateIndex {
	idx := dateIndex{pos: make(map[time.Time]int, len(dates))}
	for _, d := range utils.UniqueDates(dates) {
		idx.pos[d] = len(idx.dates)
		idx.dates = append(idx.dates, d)
	}
	return idx
}

package calib

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/meenmo/curvekit/curve"
	"github.com/meenmo/curvekit/instrument"
)

// View is what an adapter sees of the curve under construction: the trial
// state and the frontier at or before which latent values are already fixed.
type View struct {
	Label    curve.Label
	State    instrument.State
	Frontier time.Time
}

// Adapter turns an instrument and its quote into a folded PRWC against v.
// It must not modify anything it is given.
type Adapter interface {
	Constraint(inst instrument.Instrument, measure string, quote float64, v View) (*PRWC, error)
}

// AdapterFunc lets an ordinary function serve as an Adapter.
type AdapterFunc func(inst instrument.Instrument, measure string, quote float64, v View) (*PRWC, error)

func (f AdapterFunc) Constraint(inst instrument.Instrument, measure string, quote float64, v View) (*PRWC, error) {
	return f(inst, measure, quote, v)
}

// StandardAdapter uses the exact linear encoding when the instrument has one
// and falls back to a Newton linearisation around the trial state otherwise.
type StandardAdapter struct {
	// Bump is the relative quote bump for the manifest sensitivity.
	Bump float64
}

func (a StandardAdapter) Constraint(inst instrument.Instrument, measure string, quote float64, v View) (*PRWC, error) {
	if c, ok := inst.(instrument.Constrainer); ok {
		p, err := exact(c, measure, quote, v)
		if err == nil {
			if h := a.Bump * math.Max(1, math.Abs(quote)); h > 0 {
				up, errUp := exact(c, measure, quote+h, v)
				dn, errDn := exact(c, measure, quote-h, v)
				if errUp == nil && errDn == nil {
					p.ManifestSensitivity[measure] = (up.Target - dn.Target) / (2 * h)
				}
			}
			return p, nil
		}
		if !errors.Is(err, instrument.ErrNonlinear) {
			return nil, err
		}
	}
	if l, ok := inst.(instrument.Linearizer); ok {
		return linearize(l, inst.PredictorDates(), measure, quote, v)
	}
	return nil, fmt.Errorf("%s %s: neither an exact encoding nor a sensitivity is available", inst.Type(), inst.ID())
}

func exact(c instrument.Constrainer, measure string, quote float64, v View) (*PRWC, error) {
	legs, err := c.Constraint(measure, quote)
	if err != nil {
		return nil, err
	}
	p := NewPRWC(v.Label)
	for _, leg := range legs {
		if err := p.AddLeg(leg); err != nil {
			return nil, err
		}
	}
	return p.Fold(v.Frontier, v.State)
}

// linearize builds Σ g_d·node(d) = q - v0 + Σ g_d·node0(d) around the trial state.
func linearize(l instrument.Linearizer, dates []time.Time, measure string, quote float64, v View) (*PRWC, error) {
	value, grad, err := l.Sensitivity(measure, v.State)
	if err != nil {
		return nil, err
	}
	if len(grad) != len(dates) {
		return nil, fmt.Errorf("linearize: %d sensitivities for %d predictor dates", len(grad), len(dates))
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, fmt.Errorf("linearize: model value %g", value)
	}
	p := NewPRWC(v.Label)
	p.Linearized = true
	p.Target = quote - value
	for j, d := range dates {
		p.Add(d, grad[j])
		p.Target += grad[j] * v.State.Value(d)
	}
	p.ManifestSensitivity[measure] = 1
	return p.Fold(v.Frontier, v.State)
}

type registryKey struct {
	kind curve.Kind
	typ  string
}

// Registry maps (curve kind, instrument type) to the adapter used to
// calibrate that instrument on that kind of curve.
type Registry struct {
	adapters map[registryKey]Adapter
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[registryKey]Adapter)}
}

// DefaultRegistry registers StandardAdapter for every supported pairing.
func DefaultRegistry(bump float64) *Registry {
	r := NewRegistry()
	a := StandardAdapter{Bump: bump}
	for _, typ := range []string{"Deposit", "Future", "FixFloatSwap", "Bond"} {
		r.Register(curve.Discount, typ, a)
	}
	for _, typ := range []string{"Deposit", "Future", "FixFloatSwap", "BasisSwap"} {
		r.Register(curve.Forward, typ, a)
	}
	r.Register(curve.Credit, "CDS", a)
	r.Register(curve.Govvie, "Bond", a)
	r.Register(curve.FX, "FXForward", a)
	return r
}

func (r *Registry) Register(kind curve.Kind, instrumentType string, a Adapter) {
	r.adapters[registryKey{kind, instrumentType}] = a
}

func (r *Registry) Lookup(kind curve.Kind, instrumentType string) (Adapter, bool) {
	a, ok := r.adapters[registryKey{kind, instrumentType}]
	return a, ok
}

package calib

import (
	"math"
	"time"

	"github.com/meenmo/curvekit/stretch"
)

// smooth runs the global minimum-roughness pass over a bootstrapped stretch.
// Every instrument equation is re-derived against the bootstrapped curve and
// kept as a hard constraint. The result is rejected (ok false) when any
// instrument no longer reprices within the smoothing tolerance.
func (b *Builder) smooth(st *stretch.Stretch, steps []step) (*stretch.Stretch, bool) {
	kind := b.label.Kind.String()
	reject := func(reason string, args ...any) (*stretch.Stretch, bool) {
		b.logger.Warn("smoothing rejected: "+reason, args...)
		b.metrics.ObserveSmoothing(kind, "rejected")
		return st, false
	}

	// Only dates before the epoch are folded; everything else is solved globally.
	view := View{Label: b.label, State: trial{b, st}, Frontier: b.epoch.Add(-time.Nanosecond)}
	eqs := make([]stretch.Equation, 0, len(steps))
	for _, s := range steps {
		p, err := s.adapter.Constraint(s.inst, s.measure, s.quote, view)
		if err != nil {
			return reject("constraint", "instrument", s.inst.ID(), "error", err)
		}
		eqs = append(eqs, p.equation(b.toTime))
	}

	smoothed, err := st.Smooth(eqs, b.cfg.Smoothing.Continuity)
	if err != nil {
		return reject("solve", "error", err)
	}
	state := trial{b, smoothed}
	for _, s := range steps {
		v, err := s.inst.Evaluate(s.measure, state)
		tol := b.tolerance(s.quote, b.cfg.Smoothing.Tolerance)
		if err != nil || math.Abs(v-s.quote) > tol {
			return reject("repricing", "instrument", s.inst.ID(), "residual", v-s.quote, "tolerance", tol)
		}
	}
	b.metrics.ObserveSmoothing(kind, "accepted")
	b.logger.Debug("smoothing accepted", "order", b.cfg.Smoothing.Continuity)
	return smoothed, true
}

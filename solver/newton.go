package solver

import (
	"fmt"
	"math"
)

// NewtonOptions controls an unbracketed Newton-Raphson solve. Iterates are
// clamped to [Floor, Ceiling] when the bounds are set (Floor < Ceiling).
type NewtonOptions struct {
	Tolerance           float64
	MaxIterations       int
	Floor, Ceiling      float64
	DerivativeThreshold float64
	// Damping caps each step at Damping·max(|x|, DampingFloor); 0 takes full
	// steps. DampingFloor defaults to 1.
	Damping      float64
	DampingFloor float64
}

// Newton solves f(x) = target from x0 using the analytic derivative df.
func Newton(target float64, f, df Func, x0 float64, opts NewtonOptions) (Result, error) {
	if opts.Tolerance <= 0 {
		opts.Tolerance = 1e-12
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 100
	}
	if opts.DerivativeThreshold <= 0 {
		opts.DerivativeThreshold = 1e-15
	}
	if f == nil || df == nil {
		return Result{}, fmt.Errorf("Newton: nil function")
	}
	if opts.DampingFloor <= 0 {
		opts.DampingFloor = 1
	}
	bounded := opts.Floor < opts.Ceiling

	x := x0
	if bounded {
		x = clamp(x, opts.Floor, opts.Ceiling)
	}
	var r float64
	for iter := 1; iter <= opts.MaxIterations; iter++ {
		r = f(x) - target
		if math.Abs(r) < opts.Tolerance {
			return Result{Root: x, Iterations: iter, Residual: r}, nil
		}
		d := df(x)
		if math.Abs(d) < opts.DerivativeThreshold || math.IsNaN(d) {
			return Result{}, &SolveError{Method: "newton-raphson", Iterations: iter, X: x, Residual: r, Err: fmt.Errorf("derivative too small: %w", ErrNoConvergence)}
		}
		step := r / d
		if opts.Damping > 0 {
			if limit := opts.Damping * math.Max(math.Abs(x), opts.DampingFloor); math.Abs(step) > limit {
				step = math.Copysign(limit, step)
			}
		}
		x -= step
		if bounded {
			x = clamp(x, opts.Floor, opts.Ceiling)
		}
	}
	return Result{}, &SolveError{Method: "newton-raphson", Iterations: opts.MaxIterations, X: x, Residual: r, Err: ErrNoConvergence}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

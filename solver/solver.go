package solver

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidBracket is returned when f(lo)-target and f(hi)-target share a sign.
	ErrInvalidBracket = errors.New("solver: bracket does not contain a sign change")
	// ErrNoConvergence is returned when the iteration cap is reached.
	ErrNoConvergence = errors.New("solver: no convergence")
)

// Method selects the iteration scheme.
type Method string

const (
	Bisection       Method = "bisection"
	Brent           Method = "brent"
	NewtonBracketed Method = "newton"
)

// Criterion selects which quantity ends the iteration.
type Criterion string

const (
	// Residual stops when |f(x)-target| < Tolerance.
	Residual Criterion = "residual"
	// Width stops when the bracket is narrower than Tolerance.
	Width Criterion = "width"
	// Either stops on whichever of the two happens first.
	Either Criterion = "either"
)

// Func is a scalar function.
type Func func(x float64) float64

// Bracket is a closed search interval.
type Bracket struct {
	Lo, Hi float64
}

// Options controls a solve. Zero fields take DefaultOptions values.
type Options struct {
	Method        Method
	Criterion     Criterion
	Tolerance     float64
	MaxIterations int
	// Derivative is required by NewtonBracketed. When nil a central finite
	// difference with step DerivativeStep is used.
	Derivative     Func
	DerivativeStep float64
}

// DefaultOptions returns bisection to 1e-12 on either criterion with a cap of 100 iterations.
func DefaultOptions() Options {
	return Options{
		Method:         Bisection,
		Criterion:      Either,
		Tolerance:      1e-12,
		MaxIterations:  100,
		DerivativeStep: 1e-7,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Method == "" {
		o.Method = d.Method
	}
	if o.Criterion == "" {
		o.Criterion = d.Criterion
	}
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.DerivativeStep <= 0 {
		o.DerivativeStep = d.DerivativeStep
	}
	return o
}

// Result reports a converged root.
type Result struct {
	Root       float64
	Iterations int
	// Residual is f(Root)-target.
	Residual float64
}

// SolveError carries diagnostics for a failed solve. It unwraps to
// ErrInvalidBracket or ErrNoConvergence.
type SolveError struct {
	Method     Method
	Iterations int
	X          float64
	Residual   float64
	Err        error
}

func (e *SolveError) Error() string {
	return fmt.Sprintf("%s after %d iterations (x=%.12g, residual=%.3e): %v", e.Method, e.Iterations, e.X, e.Residual, e.Err)
}

func (e *SolveError) Unwrap() error {
	return e.Err
}

// FindRoot solves f(x) = target inside the bracket. The bracket must contain a
// sign change of f-target; this is verified before iterating.
func FindRoot(target float64, f Func, b Bracket, opts Options) (Result, error) {
	opts = opts.withDefaults()
	if f == nil {
		return Result{}, fmt.Errorf("FindRoot: nil function")
	}
	lo, hi := b.Lo, b.Hi
	if lo > hi {
		lo, hi = hi, lo
	}
	g := func(x float64) float64 { return f(x) - target }

	glo, ghi := g(lo), g(hi)
	if math.IsNaN(glo) || math.IsNaN(ghi) {
		return Result{}, &SolveError{Method: opts.Method, X: lo, Residual: glo, Err: ErrInvalidBracket}
	}
	if math.Abs(glo) < opts.Tolerance && opts.Criterion != Width {
		return Result{Root: lo, Residual: glo}, nil
	}
	if math.Abs(ghi) < opts.Tolerance && opts.Criterion != Width {
		return Result{Root: hi, Residual: ghi}, nil
	}
	if glo*ghi > 0 {
		return Result{}, &SolveError{Method: opts.Method, X: lo, Residual: glo, Err: ErrInvalidBracket}
	}

	switch opts.Method {
	case Bisection:
		return bisect(g, lo, hi, glo, opts)
	case Brent:
		return brent(g, lo, hi, glo, ghi, opts)
	case NewtonBracketed:
		return newtonBracketed(g, lo, hi, glo, opts)
	default:
		return Result{}, fmt.Errorf("FindRoot: unknown method %q", opts.Method)
	}
}

func (o Options) done(residual, width float64) bool {
	switch o.Criterion {
	case Residual:
		return math.Abs(residual) < o.Tolerance
	case Width:
		return width < o.Tolerance
	default:
		return math.Abs(residual) < o.Tolerance || width < o.Tolerance
	}
}

func bisect(g Func, lo, hi, glo float64, opts Options) (Result, error) {
	var mid, gmid float64
	for iter := 1; iter <= opts.MaxIterations; iter++ {
		mid = 0.5 * (lo + hi)
		gmid = g(mid)
		if gmid == 0 || opts.done(gmid, hi-lo) {
			return Result{Root: mid, Iterations: iter, Residual: gmid}, nil
		}
		if glo*gmid <= 0 {
			hi = mid
		} else {
			lo = mid
			glo = gmid
		}
	}
	return Result{}, &SolveError{Method: Bisection, Iterations: opts.MaxIterations, X: mid, Residual: gmid, Err: ErrNoConvergence}
}

// brent is the classic Brent-Dekker inverse quadratic / secant / bisection hybrid.
func brent(g Func, a, b, fa, fb float64, opts Options) (Result, error) {
	if math.Abs(fa) < math.Abs(fb) {
		a, b = b, a
		fa, fb = fb, fa
	}
	c, fc := a, fa
	d := b - a
	mflag := true
	for iter := 1; iter <= opts.MaxIterations; iter++ {
		var s float64
		if fa != fc && fb != fc {
			s = a*fb*fc/((fa-fb)*(fa-fc)) +
				b*fa*fc/((fb-fa)*(fb-fc)) +
				c*fa*fb/((fc-fa)*(fc-fb))
		} else {
			s = b - fb*(b-a)/(fb-fa)
		}

		lo, hi := (3*a+b)/4, b
		if lo > hi {
			lo, hi = hi, lo
		}
		if s < lo || s > hi ||
			(mflag && math.Abs(s-b) >= math.Abs(b-c)/2) ||
			(!mflag && math.Abs(s-b) >= math.Abs(c-d)/2) {
			s = (a + b) / 2
			mflag = true
		} else {
			mflag = false
		}

		fs := g(s)
		d, c, fc = c, b, fb
		if fa*fs < 0 {
			b, fb = s, fs
		} else {
			a, fa = s, fs
		}
		if math.Abs(fa) < math.Abs(fb) {
			a, b = b, a
			fa, fb = fb, fa
		}
		if fb == 0 || opts.done(fb, math.Abs(b-a)) {
			return Result{Root: b, Iterations: iter, Residual: fb}, nil
		}
	}
	return Result{}, &SolveError{Method: Brent, Iterations: opts.MaxIterations, X: b, Residual: fb, Err: ErrNoConvergence}
}

// newtonBracketed takes Newton steps while they stay inside the current
// bracket and bisects otherwise.
func newtonBracketed(g Func, lo, hi, glo float64, opts Options) (Result, error) {
	deriv := opts.Derivative
	if deriv == nil {
		h := opts.DerivativeStep
		deriv = func(x float64) float64 {
			step := h * math.Max(1, math.Abs(x))
			return (g(x+step) - g(x-step)) / (2 * step)
		}
	}
	x := 0.5 * (lo + hi)
	gx := g(x)
	for iter := 1; iter <= opts.MaxIterations; iter++ {
		if gx == 0 || opts.done(gx, hi-lo) {
			return Result{Root: x, Iterations: iter, Residual: gx}, nil
		}
		if glo*gx <= 0 {
			hi = x
		} else {
			lo, glo = x, gx
		}
		next := 0.5 * (lo + hi)
		if d := deriv(x); d != 0 && !math.IsNaN(d) {
			if cand := x - gx/d; cand > lo && cand < hi {
				next = cand
			}
		}
		x = next
		gx = g(x)
	}
	return Result{}, &SolveError{Method: NewtonBracketed, Iterations: opts.MaxIterations, X: x, Residual: gx, Err: ErrNoConvergence}
}

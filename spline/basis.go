package spline

import (
	"fmt"
	"math"
)

// MaxOrder is the highest derivative order a basis reports.
const MaxOrder = 2

// maxTension bounds |λ| so that sinh/cosh/exp stay finite.
const maxTension = 700.0

// Basis is a finite family of functions on the local coordinate x in [0, 1].
// Segments map curve time onto x and rescale derivatives by their width.
type Basis interface {
	// Len is the number of basis functions, i.e. free coefficients.
	Len() int
	// Eval writes the order-th derivative of every basis function at x into out.
	Eval(x float64, order int, out []float64)
	// Combine returns the order-th derivative of Σ coef[k]·f_k at x.
	Combine(coef []float64, x float64, order int) float64
	String() string
}

// SegmentConstructionError reports a degenerate basis or segment.
type SegmentConstructionError struct {
	Reason string
}

func (e *SegmentConstructionError) Error() string {
	return "spline: segment construction: " + e.Reason
}

func constructionErr(format string, args ...any) error {
	return &SegmentConstructionError{Reason: fmt.Sprintf(format, args...)}
}

// Polynomial is the monomial basis {1, x, ..., x^N}.
type Polynomial struct {
	degree int
}

// NewPolynomial returns the monomial basis of the given degree.
func NewPolynomial(degree int) (Polynomial, error) {
	if degree < 1 {
		return Polynomial{}, constructionErr("polynomial degree %d < 1", degree)
	}
	return Polynomial{degree: degree}, nil
}

func (p Polynomial) Len() int { return p.degree + 1 }

func (p Polynomial) String() string { return fmt.Sprintf("polynomial(%d)", p.degree) }

func (p Polynomial) Eval(x float64, order int, out []float64) {
	for k := range out[:p.Len()] {
		out[k] = monomial(k, x, order)
	}
}

// Combine evaluates the derivative polynomial with Horner's rule.
func (p Polynomial) Combine(coef []float64, x float64, order int) float64 {
	v := 0.0
	for k := p.degree; k >= order; k-- {
		v = v*x + coef[k]*fallingFactorial(k, order)
	}
	return v
}

func monomial(k int, x float64, order int) float64 {
	if order > k {
		return 0
	}
	return fallingFactorial(k, order) * math.Pow(x, float64(k-order))
}

// fallingFactorial is k·(k-1)···(k-order+1).
func fallingFactorial(k, order int) float64 {
	f := 1.0
	for i := 0; i < order; i++ {
		f *= float64(k - i)
	}
	return f
}

// ExponentialTension is {1, E(x)} with E(x) = (1 - e^{-λx}) / (1 - e^{-λ}).
// E tends to x as λ → 0, so the basis degenerates to the linear one.
type ExponentialTension struct {
	lambda float64
	// ratio is λ / (1 - e^{-λ}), the normalisation of E'.
	ratio float64
}

// NewExponentialTension validates λ and precomputes the normalisation.
func NewExponentialTension(lambda float64) (ExponentialTension, error) {
	if math.IsNaN(lambda) || math.Abs(lambda) >= maxTension {
		return ExponentialTension{}, constructionErr("exponential tension %g overflows", lambda)
	}
	return ExponentialTension{lambda: lambda, ratio: 1 / expm1Ratio(lambda)}, nil
}

func (e ExponentialTension) Len() int { return 2 }

func (e ExponentialTension) String() string { return fmt.Sprintf("exponential(%g)", e.lambda) }

func (e ExponentialTension) Eval(x float64, order int, out []float64) {
	l := e.lambda
	switch order {
	case 0:
		out[0] = 1
		out[1] = x * expm1Ratio(l*x) * e.ratio
	case 1:
		out[0] = 0
		out[1] = e.ratio * math.Exp(-l*x)
	default:
		out[0] = 0
		out[1] = -l * e.ratio * math.Exp(-l*x)
	}
}

func (e ExponentialTension) Combine(coef []float64, x float64, order int) float64 {
	var buf [2]float64
	e.Eval(x, order, buf[:])
	return coef[0]*buf[0] + coef[1]*buf[1]
}

// HyperbolicTension is {1, x, S(x), C(x)} with
//
//	S(x) = (sinh λx - λx) / (sinh λ - λ)
//	C(x) = (cosh λx - 1) / (cosh λ - 1)
//
// As λ → 0, S → x³ and C → x², so the basis degenerates to the cubic.
type HyperbolicTension struct {
	lambda float64
	shm    float64
	chm    float64
}

// NewHyperbolicTension validates λ and precomputes the normalisations.
func NewHyperbolicTension(lambda float64) (HyperbolicTension, error) {
	if math.IsNaN(lambda) || math.Abs(lambda) >= maxTension {
		return HyperbolicTension{}, constructionErr("hyperbolic tension %g overflows", lambda)
	}
	return HyperbolicTension{lambda: lambda, shm: sinhm(lambda), chm: coshm(lambda)}, nil
}

func (h HyperbolicTension) Len() int { return 4 }

func (h HyperbolicTension) String() string { return fmt.Sprintf("hyperbolic(%g)", h.lambda) }

func (h HyperbolicTension) Eval(x float64, order int, out []float64) {
	u := h.lambda * x
	switch order {
	case 0:
		out[0], out[1] = 1, x
		out[2] = x * x * x * sinhm(u) / h.shm
		out[3] = x * x * coshm(u) / h.chm
	case 1:
		out[0], out[1] = 0, 1
		out[2] = x * x * coshm(u) / h.shm
		out[3] = x * sinhc(u) / h.chm
	default:
		out[0], out[1] = 0, 0
		out[2] = x * sinhc(u) / h.shm
		out[3] = math.Cosh(u) / h.chm
	}
}

func (h HyperbolicTension) Combine(coef []float64, x float64, order int) float64 {
	var buf [4]float64
	h.Eval(x, order, buf[:])
	return coef[0]*buf[0] + coef[1]*buf[1] + coef[2]*buf[2] + coef[3]*buf[3]
}

// expm1Ratio is (1 - e^{-u}) / u, 1 at u = 0.
func expm1Ratio(u float64) float64 {
	if math.Abs(u) < 1e-8 {
		return 1 - u/2
	}
	return -math.Expm1(-u) / u
}

// sinhm is (sinh u - u) / u³, 1/6 at u = 0.
func sinhm(u float64) float64 {
	if math.Abs(u) < 1e-2 {
		u2 := u * u
		return 1.0/6 + u2/120 + u2*u2/5040
	}
	return (math.Sinh(u) - u) / (u * u * u)
}

// coshm is (cosh u - 1) / u², 1/2 at u = 0.
func coshm(u float64) float64 {
	if math.Abs(u) < 1e-2 {
		u2 := u * u
		return 0.5 + u2/24 + u2*u2/720
	}
	return (math.Cosh(u) - 1) / (u * u)
}

// sinhc is sinh(u) / u, 1 at u = 0.
func sinhc(u float64) float64 {
	if math.Abs(u) < 1e-4 {
		return 1 + u*u/6
	}
	return math.Sinh(u) / u
}

package spline

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Solve returns the coefficient vector c satisfying rows·c = rhs exactly.
//
// With as many rows as unknowns the system is solved directly. With fewer rows
// it returns the minimiser of cᵀ(Q + ridge·I)c subject to the constraints, via
// the KKT system
//
//	[ 2(Q+ridge·I)  Aᵀ ] [c]   [ 0 ]
//	[ A             0  ] [μ] = [ b ]
//
// More rows than unknowns, or a singular system, is a SegmentConstructionError.
func Solve(rows [][]float64, rhs []float64, q *mat.SymDense, ridge float64) ([]float64, error) {
	m := len(rows)
	if m == 0 {
		return nil, constructionErr("no constraints")
	}
	if len(rhs) != m {
		return nil, constructionErr("%d constraint rows but %d targets", m, len(rhs))
	}
	n := len(rows[0])
	if m > n {
		return nil, constructionErr("%d constraints over-determine %d coefficients", m, n)
	}
	for i, r := range rows {
		if len(r) != n {
			return nil, constructionErr("constraint row %d has %d entries, want %d", i, len(r), n)
		}
	}

	var x mat.VecDense
	if m == n {
		a := mat.NewDense(m, n, nil)
		for i, r := range rows {
			a.SetRow(i, r)
		}
		if err := x.SolveVec(a, mat.NewVecDense(m, append([]float64(nil), rhs...))); err != nil {
			return nil, constructionErr("singular constraint system: %v", err)
		}
		return finite(x.RawVector().Data[:n])
	}

	size := n + m
	kkt := mat.NewDense(size, size, nil)
	for j := 0; j < n; j++ {
		for k := 0; k < n; k++ {
			v := 0.0
			if q != nil {
				v = 2 * q.At(j, k)
			}
			if j == k {
				v += 2 * ridge
			}
			kkt.Set(j, k, v)
		}
	}
	for i, r := range rows {
		for j, v := range r {
			kkt.Set(n+i, j, v)
			kkt.Set(j, n+i, v)
		}
	}
	b := mat.NewVecDense(size, nil)
	for i, v := range rhs {
		b.SetVec(n+i, v)
	}
	if err := x.SolveVec(kkt, b); err != nil {
		return nil, constructionErr("singular smoothing system: %v", err)
	}
	out := make([]float64, n)
	for j := range out {
		out[j] = x.AtVec(j)
	}
	return finite(out)
}

func finite(c []float64) ([]float64, error) {
	out := make([]float64, len(c))
	for i, v := range c {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, constructionErr("non-finite coefficient %d", i)
		}
		out[i] = v
	}
	return out, nil
}

package solver

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
)

// BiCG implements the preconditioned biconjugate gradient method. It keeps
// no growing basis, but needs products with Aᵀ and the transposed
// preconditioner, and it breaks down if ρ = <z, r̃> or <p̃, A p> vanishes.
type BiCG struct{}

// Solve implements the Method interface
func (BiCG) Solve(a Operator, m Preconditioner, b []float64, settings Settings) (Result, error) {
	at, ok := a.(TransOperator)
	if !ok {
		return Result{}, errors.New("solver: BiCG needs a transposable operator")
	}
	if m == nil {
		m = Identity{}
	}
	mt, ok := m.(TransPreconditioner)
	if !ok {
		return Result{}, errors.New("solver: BiCG needs a transposable preconditioner")
	}
	st := newState(a, b, settings)
	if st.converged(st.stats.ResidualNorm) {
		st.stats.Converged = true
		return st.result(), nil
	}

	dim := len(b)
	rt := make([]float64, dim)
	z := make([]float64, dim)
	zt := make([]float64, dim)
	p := make([]float64, dim)
	pt := make([]float64, dim)
	q := make([]float64, dim)
	qt := make([]float64, dim)
	copy(rt, st.r)

	var rhoPrev float64
	for st.stats.Iterations < st.settings.MaxIterations {
		if err := m.Solve(z, st.r); err != nil {
			return st.result(), err
		}
		if err := mt.SolveTrans(zt, rt); err != nil {
			return st.result(), err
		}
		st.stats.PSolve += 2

		rho := floats.Dot(z, rt)
		if math.Abs(rho) < dlamchE*dlamchE {
			return st.result(), ErrBreakdown
		}
		if st.stats.Iterations == 0 {
			copy(p, z)
			copy(pt, zt)
		} else {
			beta := rho / rhoPrev
			floats.AddScaledTo(p, z, beta, p)
			floats.AddScaledTo(pt, zt, beta, pt)
		}

		a.MulVec(q, p)
		at.MulTransVec(qt, pt)
		st.stats.MatVec += 2

		sigma := floats.Dot(pt, q)
		if sigma == 0 {
			return st.result(), ErrBreakdown
		}
		alpha := rho / sigma
		floats.AddScaled(st.x, alpha, p)
		floats.AddScaled(st.r, -alpha, q)
		floats.AddScaled(rt, -alpha, qt)
		rhoPrev = rho

		st.stats.Iterations++
		st.stats.ResidualNorm = floats.Norm(st.r, 2)
		st.logResidual(st.stats.ResidualNorm)
		if st.converged(st.stats.ResidualNorm) {
			st.stats.Converged = true
			break
		}
	}
	return st.result(), nil
}

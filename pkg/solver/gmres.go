package solver

import (
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
)

// GMRES implements the right-preconditioned generalised minimal residual
// method. The least squares problem is updated with Givens rotations, so the
// residual estimate is available at every iteration without forming x.
type GMRES struct {
	// Restart is the number of iterations after which the Krylov basis is
	// discarded. Zero (or a value above the iteration limit) means no
	// restart: the basis grows until convergence or the iteration limit.
	Restart int
}

type givens struct {
	c, s float64
}

func (g givens) apply(x, y float64) (float64, float64) {
	return g.c*x + g.s*y, -g.s*x + g.c*y
}

// Solve implements the Method interface
func (g *GMRES) Solve(a Operator, m Preconditioner, b []float64, settings Settings) (Result, error) {
	if m == nil {
		m = Identity{}
	}
	st := newState(a, b, settings)
	dim := len(b)
	maxIter := st.settings.MaxIterations

	restart := g.Restart
	if restart <= 0 || restart > maxIter {
		restart = maxIter
	}
	restart = min(restart, dim)

	ldh := restart
	h := make([]float64, (restart+1)*ldh)
	s := make([]float64, restart+1)
	y := make([]float64, restart)
	rots := make([]givens, restart)
	v := make([][]float64, 0, restart+1)
	z := make([]float64, dim)
	w := make([]float64, dim)

	for {
		beta := floats.Norm(st.r, 2)
		st.stats.ResidualNorm = beta
		if st.converged(beta) {
			st.stats.Converged = true
			return st.result(), nil
		}
		if st.stats.Iterations >= maxIter {
			return st.result(), nil
		}

		// First basis vector.
		v = v[:0]
		v = append(v, make([]float64, dim))
		floats.ScaleTo(v[0], 1/beta, st.r)
		for i := range s {
			s[i] = 0
		}
		s[0] = beta

		k := 0
		for ; k < restart && st.stats.Iterations < maxIter; k++ {
			// w = A M⁻¹ v_k
			if err := m.Solve(z, v[k]); err != nil {
				return st.result(), err
			}
			st.stats.PSolve++
			a.MulVec(w, z)
			st.stats.MatVec++

			// Modified Gram-Schmidt against the current basis.
			for i := 0; i <= k; i++ {
				hik := floats.Dot(w, v[i])
				h[i*ldh+k] = hik
				floats.AddScaled(w, -hik, v[i])
			}
			wnorm := floats.Norm(w, 2)
			h[(k+1)*ldh+k] = wnorm

			// Apply previous rotations to the new column, then zero H[k+1,k].
			for i := 0; i < k; i++ {
				h[i*ldh+k], h[(i+1)*ldh+k] = rots[i].apply(h[i*ldh+k], h[(i+1)*ldh+k])
			}
			c, sn, r, _ := blas64.Rotg(h[k*ldh+k], h[(k+1)*ldh+k])
			rots[k] = givens{c: c, s: sn}
			h[k*ldh+k] = r
			h[(k+1)*ldh+k] = 0
			s[k], s[k+1] = rots[k].apply(s[k], s[k+1])

			st.stats.Iterations++
			rnorm := math.Abs(s[k+1])
			st.logResidual(rnorm)

			if wnorm == 0 || st.converged(rnorm) {
				// Converged, or the Krylov space is invariant and the
				// least squares solution is exact.
				k++
				break
			}
			if k+1 < restart {
				vk := make([]float64, dim)
				floats.ScaleTo(vk, 1/wnorm, w)
				v = append(v, vk)
			}
		}

		// x += M⁻¹ V y, with y solving the k×k triangular system H y = s.
		copy(y[:k], s[:k])
		blas64.Trsv(blas.NoTrans, blas64.Triangular{
			Uplo:   blas.Upper,
			Diag:   blas.NonUnit,
			N:      k,
			Stride: ldh,
			Data:   h,
		}, blas64.Vector{N: k, Inc: 1, Data: y[:k]})
		for i := range w {
			w[i] = 0
		}
		for i := 0; i < k; i++ {
			floats.AddScaled(w, y[i], v[i])
		}
		if err := m.Solve(z, w); err != nil {
			return st.result(), err
		}
		st.stats.PSolve++
		floats.Add(st.x, z)

		// True residual for the convergence decision and the next cycle.
		st.residual(a, b)
	}
}

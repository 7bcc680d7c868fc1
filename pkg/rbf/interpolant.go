package rbf

import (
	"fmt"

	"saltrbf/internal/models"
	"saltrbf/pkg/linalg"
)

// Interpolant is s(p) = Σ c_i φ(|p - p_i|²) + Σ c_{n+k} m_k(p)
// over a fixed set of interpolation points p_i and monomials m_k.
type Interpolant struct {
	kernel       Kernel
	degree       Degree
	terms        int
	points       models.PointArray
	coefficients []float64
}

// New returns an interpolant with the given kernel and polynomial degree.
// An unsupported degree fails immediately.
func New(kernel Kernel, degree Degree) (*Interpolant, error) {
	if kernel == nil {
		return nil, fmt.Errorf("%w: nil kernel", ErrUnknownKernel)
	}
	if err := ValidateDegree(models.Dimension, degree); err != nil {
		return nil, err
	}
	return &Interpolant{
		kernel: kernel,
		degree: degree,
		terms:  NumberOfPolynomialTerms(models.Dimension, degree),
	}, nil
}

// Kernel returns the radial basis function
func (s *Interpolant) Kernel() Kernel { return s.kernel }

// Degree returns the degree of the polynomial tail
func (s *Interpolant) Degree() Degree { return s.degree }

// Terms returns the number of polynomial terms
func (s *Interpolant) Terms() int { return s.terms }

// Points returns the interpolation points
func (s *Interpolant) Points() models.PointArray { return s.points }

// Coefficients returns the current coefficient vector
func (s *Interpolant) Coefficients() []float64 { return s.coefficients }

// Size returns the order of the interpolation system, #points + #terms
func (s *Interpolant) Size() int { return len(s.points) + s.terms }

// SetPoints replaces the interpolation points. Any previously stored
// coefficients are discarded.
func (s *Interpolant) SetPoints(points models.PointArray) {
	s.points = points
	s.coefficients = nil
}

// SetCoefficients stores the coefficient vector. Its length must be Size().
func (s *Interpolant) SetCoefficients(c []float64) error {
	if len(c) != s.Size() {
		return fmt.Errorf("rbf: %d coefficients for a system of size %d", len(c), s.Size())
	}
	s.coefficients = c
	return nil
}

// Evaluate returns the value of the interpolant at p. Before coefficients
// have been set it returns 0.
func (s *Interpolant) Evaluate(p models.Point) float64 {
	if s.coefficients == nil {
		return 0
	}
	n := len(s.points)
	var sum float64
	for i, q := range s.points {
		sum += s.coefficients[i] * s.kernel.Eval(p.Distance2(q))
	}
	if s.terms > 0 {
		var buf [10]float64
		mono := buf[:s.terms]
		Monomials(p, s.degree, mono)
		for k, m := range mono {
			sum += s.coefficients[n+k] * m
		}
	}
	return sum
}

// AssembleMatrix fills m with the interpolation matrix
//
//	[ Φ  P ]
//	[ Pᵀ 0 ]
//
// where Φ_ij = φ(|p_i - p_j|²) and P_ik = m_k(p_i).
func AssembleMatrix(kernel Kernel, points models.PointArray, degree Degree, m linalg.Matrix) error {
	r, _ := m.Dims()
	return AssembleRows(kernel, points, degree, m, 0, r)
}

// AssembleRows fills rows [lo, hi) of the interpolation matrix only, so that
// disjoint row ranges may be assembled concurrently.
func AssembleRows(kernel Kernel, points models.PointArray, degree Degree, m linalg.Matrix, lo, hi int) error {
	if err := ValidateDegree(models.Dimension, degree); err != nil {
		return err
	}
	n := len(points)
	q := NumberOfPolynomialTerms(models.Dimension, degree)
	size := n + q
	if r, c := m.Dims(); r != size || c != size {
		return fmt.Errorf("rbf: matrix is %dx%d, interpolation system needs %dx%d", r, c, size, size)
	}
	if lo < 0 || hi > size || lo > hi {
		return fmt.Errorf("rbf: row range [%d,%d) outside [0,%d)", lo, hi, size)
	}

	var buf [10]float64
	mono := buf[:q]
	for i := lo; i < hi; i++ {
		if i < n {
			pi := points[i]
			for j, pj := range points {
				m.Set(i, j, kernel.Eval(pi.Distance2(pj)))
			}
			Monomials(pi, degree, mono)
			for k, v := range mono {
				m.Set(i, n+k, v)
			}
			continue
		}
		// Polynomial row k = i - n.
		k := i - n
		for j, pj := range points {
			Monomials(pj, degree, mono)
			m.Set(i, j, mono[k])
		}
		for l := 0; l < q; l++ {
			m.Set(i, n+l, 0)
		}
	}
	return nil
}

// RightHandSide returns the interpolation vector for the given point values:
// values followed by zeros for the polynomial rows.
func RightHandSide(values []float64, degree Degree) []float64 {
	q := NumberOfPolynomialTerms(models.Dimension, degree)
	rhs := make([]float64, len(values)+q)
	copy(rhs, values)
	return rhs
}

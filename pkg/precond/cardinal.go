// Package precond implements the approximate cardinal function
// preconditioner for radial basis function interpolation systems.
//
// For every interpolation point a local interpolation problem over its
// nearest neighbours (plus the polynomial terms) is solved for a function
// that is one at the point and zero at the neighbours. Collecting the local
// coefficient vectors row by row gives a sparse approximate inverse of the
// interpolation matrix.
package precond

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"saltrbf/internal/models"
	"saltrbf/pkg/linalg"
	"saltrbf/pkg/rbf"
)

// ErrIllPosed is returned when a local cardinal system or the polynomial
// normal equations cannot be factorised, typically because of duplicate or
// degenerate (e.g. coplanar) points.
var ErrIllPosed = errors.New("precond: cannot build preconditioner for this interval")

// CardinalFunction is the sparse representation of one approximate cardinal
// function. Neighbours holds system indices: the point neighbours first,
// starting with the function's own point, followed by the polynomial rows.
type CardinalFunction struct {
	Neighbours   []int
	Coefficients []float64
}

// Option configures a Cardinal
type Option func(*Cardinal)

// WithSearchScaling multiplies the point coordinates component-wise before
// neighbours are searched. A zero component ignores that axis. The local
// systems are still taken from the interpolation matrix.
func WithSearchScaling(s models.Point) Option {
	return func(c *Cardinal) { c.searchScaling = s }
}

// Cardinal is the approximate cardinal function preconditioner
type Cardinal struct {
	points        models.PointArray
	degree        rbf.Degree
	terms         int
	neighbours    int
	searchScaling models.Point
	index         *neighbourIndex

	// Arena storage, (neighbours+terms) entries per function.
	indexArena []int
	coeffArena []float64
	functions  []CardinalFunction

	// polyBasis holds P, the n×terms monomial matrix, row-major.
	polyBasis []float64
	normal    linalg.LU
	assembled bool
}

// New returns a preconditioner for the interpolation system over points.
// The neighbour count is clamped with ClampNeighbours.
func New(points models.PointArray, degree rbf.Degree, neighbours int, opts ...Option) (*Cardinal, error) {
	if err := rbf.ValidateDegree(models.Dimension, degree); err != nil {
		return nil, err
	}
	n := len(points)
	if n == 0 {
		return nil, fmt.Errorf("%w: no interpolation points", ErrIllPosed)
	}
	q := rbf.NumberOfPolynomialTerms(models.Dimension, degree)
	k := ClampNeighbours(neighbours, n)
	if k < q {
		return nil, fmt.Errorf("%w: %d neighbours cannot support %d polynomial terms", ErrIllPosed, k, q)
	}

	c := &Cardinal{
		points:        points,
		degree:        degree,
		terms:         q,
		neighbours:    k,
		searchScaling: models.Point{X: 1, Y: 1, Z: 1},
		indexArena:    make([]int, n*(k+q)),
		coeffArena:    make([]float64, n*(k+q)),
		functions:     make([]CardinalFunction, n),
		polyBasis:     make([]float64, n*q),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.index = newNeighbourIndex(points, c.searchScaling)
	width := k + q
	for i := range c.functions {
		c.functions[i] = CardinalFunction{
			Neighbours:   c.indexArena[i*width : (i+1)*width : (i+1)*width],
			Coefficients: c.coeffArena[i*width : (i+1)*width : (i+1)*width],
		}
	}
	for i, p := range points {
		rbf.Monomials(p, degree, c.polyBasis[i*q:(i+1)*q])
	}
	return c, nil
}

// Len returns the number of cardinal functions, one per interpolation point
func (c *Cardinal) Len() int { return len(c.points) }

// Size returns the order of the preconditioned system
func (c *Cardinal) Size() int { return len(c.points) + c.terms }

// NumberOfNeighbours returns the (clamped) neighbour count
func (c *Cardinal) NumberOfNeighbours() int { return c.neighbours }

// Terms returns the number of polynomial terms
func (c *Cardinal) Terms() int { return c.terms }

// Function returns cardinal function i. The slices alias internal storage
// and are overwritten by the next assembly.
func (c *Cardinal) Function(i int) CardinalFunction { return c.functions[i] }

// Assemble builds every cardinal function from the interpolation matrix m
func (c *Cardinal) Assemble(m linalg.Matrix) error {
	if err := c.AssemblePolynomial(); err != nil {
		return err
	}
	if err := c.AssembleRange(m, 0, c.Len()); err != nil {
		return err
	}
	c.MarkAssembled()
	return nil
}

// AssemblePolynomial factorises the polynomial normal equations PᵀP used for
// the polynomial rows of Solve. It must run before the preconditioner is
// applied; it does not depend on the interpolation matrix.
func (c *Cardinal) AssemblePolynomial() error {
	c.assembled = false
	if c.degree < rbf.Linear {
		return nil
	}
	n, q := len(c.points), c.terms
	p := mat.NewDense(n, q, c.polyBasis)
	var g mat.Dense
	g.Mul(p.T(), p)
	if err := c.normal.Factorise(q, g.RawMatrix().Data); err != nil {
		return fmt.Errorf("%w: polynomial normal equations: %w", ErrIllPosed, err)
	}
	return nil
}

// AssembleRange builds cardinal functions lo <= i < hi. Disjoint ranges may
// be assembled concurrently.
func (c *Cardinal) AssembleRange(m linalg.Matrix, lo, hi int) error {
	size := c.Size()
	if r, cols := m.Dims(); r != size || cols != size {
		return fmt.Errorf("precond: matrix is %dx%d, expected %dx%d", r, cols, size, size)
	}
	k, q := c.neighbours, c.terms
	width := k + q
	local := make([]float64, width*width)
	var lu linalg.LU
	for i := lo; i < hi; i++ {
		f := c.functions[i]
		c.index.nearest(i, f.Neighbours[:k])
		for t := 0; t < q; t++ {
			f.Neighbours[k+t] = len(c.points) + t
		}
		m.SubMatrix(f.Neighbours, local)
		if err := lu.Factorise(width, local); err != nil {
			return fmt.Errorf("%w: cardinal function %d: %w", ErrIllPosed, i, err)
		}
		for j := range f.Coefficients {
			f.Coefficients[j] = 0
		}
		f.Coefficients[0] = 1
		lu.Solve(f.Coefficients)
	}
	return nil
}

// MarkAssembled records that every range and the polynomial part have been
// assembled. Assemble calls it; callers splitting the work must call it once
// all ranges are done.
func (c *Cardinal) MarkAssembled() { c.assembled = true }

// Assembled reports whether the preconditioner is ready to be applied
func (c *Cardinal) Assembled() bool { return c.assembled }

func (c *Cardinal) checkSolve(dst, src []float64) {
	if !c.assembled {
		panic("precond: preconditioner used before assembly")
	}
	if len(dst) != c.Size() || len(src) != c.Size() {
		panic("precond: vector length does not match system size")
	}
}

// Solve applies the preconditioner: dst = C src
func (c *Cardinal) Solve(dst, src []float64) error {
	c.checkSolve(dst, src)
	c.SolveRange(dst, src, 0, c.Len())
	c.SolvePolynomial(dst, src)
	return nil
}

// SolveRange computes the point rows lo <= i < hi of C src
func (c *Cardinal) SolveRange(dst, src []float64, lo, hi int) {
	for i := lo; i < hi; i++ {
		f := c.functions[i]
		var sum float64
		for l, j := range f.Neighbours {
			sum += f.Coefficients[l] * src[j]
		}
		dst[i] = sum
	}
}

// SolvePolynomial computes the polynomial rows of C src: the least squares
// polynomial fit of the point rows of src.
func (c *Cardinal) SolvePolynomial(dst, src []float64) {
	n, q := len(c.points), c.terms
	switch {
	case q == 0:
	case c.degree == rbf.Constant:
		dst[n] = stat.Mean(src[:n], nil)
	default:
		y := dst[n : n+q]
		for t := range y {
			y[t] = 0
		}
		for i := 0; i < n; i++ {
			row := c.polyBasis[i*q : (i+1)*q]
			for t, v := range row {
				y[t] += v * src[i]
			}
		}
		c.normal.Solve(y)
	}
}

// SolveTrans applies the transposed preconditioner: dst = Cᵀ src
func (c *Cardinal) SolveTrans(dst, src []float64) error {
	c.checkSolve(dst, src)
	n, q := len(c.points), c.terms
	for j := range dst {
		dst[j] = 0
	}
	for i := 0; i < n; i++ {
		f := c.functions[i]
		for l, j := range f.Neighbours {
			dst[j] += f.Coefficients[l] * src[i]
		}
	}
	switch {
	case q == 0:
	case c.degree == rbf.Constant:
		share := src[n] / float64(n)
		for j := 0; j < n; j++ {
			dst[j] += share
		}
	default:
		y := make([]float64, q)
		copy(y, src[n:n+q])
		c.normal.SolveTrans(y)
		for j := 0; j < n; j++ {
			row := c.polyBasis[j*q : (j+1)*q]
			for t, v := range row {
				dst[j] += v * y[t]
			}
		}
	}
	return nil
}

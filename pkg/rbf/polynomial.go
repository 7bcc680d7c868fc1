package rbf

import (
	"errors"
	"fmt"

	"saltrbf/internal/models"
)

// ErrUnsupportedDegree is returned for a polynomial degree that has no term
// table for the requested spatial dimension.
var ErrUnsupportedDegree = errors.New("rbf: unsupported polynomial degree")

// Degree is the degree of the polynomial tail of an interpolant
type Degree int

const (
	None      Degree = -1
	Constant  Degree = 0
	Linear    Degree = 1
	Quadratic Degree = 2
)

// String implements fmt.Stringer
func (d Degree) String() string {
	switch d {
	case None:
		return "none"
	case Constant:
		return "constant"
	case Linear:
		return "linear"
	case Quadratic:
		return "quadratic"
	default:
		return fmt.Sprintf("Degree(%d)", int(d))
	}
}

// NumberOfPolynomialTerms returns the dimension of the space of polynomials
// of the given degree in dim variables. A zero result for a non-negative
// degree means the combination is unsupported.
func NumberOfPolynomialTerms(dim int, degree Degree) int {
	if degree < 0 {
		return 0
	}
	d := int(degree)
	switch {
	case dim == 1:
		return d + 1
	case dim == 2:
		if d > 3 {
			return 0
		}
		return (d + 1) * (d + 2) / 2
	case dim == 3:
		if d > 2 {
			return 0
		}
		return (d + 1) * (d + 2) * (d + 3) / 6
	case dim >= 4:
		if d == 0 {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// ValidateDegree reports whether degree is usable in dim dimensions
func ValidateDegree(dim int, degree Degree) error {
	if degree < None {
		return fmt.Errorf("%w: %d", ErrUnsupportedDegree, int(degree))
	}
	if degree >= Constant && NumberOfPolynomialTerms(dim, degree) == 0 {
		return fmt.Errorf("%w: degree %d in %d dimensions", ErrUnsupportedDegree, int(degree), dim)
	}
	return nil
}

// Monomials writes the polynomial basis of the given degree evaluated at p
// into dst, in the order 1, x, y, z, x², xy, xz, y², yz, z².
// dst must have length NumberOfPolynomialTerms(3, degree).
func Monomials(p models.Point, degree Degree, dst []float64) {
	if len(dst) != NumberOfPolynomialTerms(models.Dimension, degree) {
		panic("rbf: monomial buffer has wrong length")
	}
	if degree < Constant {
		return
	}
	dst[0] = 1
	if degree < Linear {
		return
	}
	dst[1] = p.X
	dst[2] = p.Y
	dst[3] = p.Z
	if degree < Quadratic {
		return
	}
	dst[4] = p.X * p.X
	dst[5] = p.X * p.Y
	dst[6] = p.X * p.Z
	dst[7] = p.Y * p.Y
	dst[8] = p.Y * p.Z
	dst[9] = p.Z * p.Z
}

// Package rbf implements radial basis function interpolants with a
// low-degree polynomial tail, and assembly of their interpolation matrix.
package rbf

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnknownKernel is returned when a kernel name is not registered
var ErrUnknownKernel = errors.New("rbf: unknown kernel")

// Kernel is a radial basis function expressed in terms of the squared
// separation distance r² between two points.
type Kernel interface {
	// Eval returns φ(r²)
	Eval(r2 float64) float64

	// Name returns the registry name of the kernel
	Name() string
}

// Cubic is the kernel φ(r²) = r³.
//
// Squared distances computed by cancellation can come out slightly negative
// for coincident points; they are clamped to zero.
type Cubic struct{}

// Eval implements Kernel
func (Cubic) Eval(r2 float64) float64 {
	if r2 <= 0 {
		return 0
	}
	return r2 * math.Sqrt(r2)
}

// Name implements Kernel
func (Cubic) Name() string { return "cubic" }

// Gaussian is the kernel φ(r²) = exp(-a² r²) with shape parameter a
type Gaussian struct {
	Shape float64
}

// Eval implements Kernel
func (g Gaussian) Eval(r2 float64) float64 {
	if r2 <= 0 {
		return 1
	}
	return math.Exp(-g.Shape * g.Shape * r2)
}

// Name implements Kernel
func (Gaussian) Name() string { return "gaussian" }

// ThinPlate is the kernel φ(r²) = r² ln r, with φ(0) = 0
type ThinPlate struct{}

// Eval implements Kernel
func (ThinPlate) Eval(r2 float64) float64 {
	if r2 <= 0 {
		return 0
	}
	return 0.5 * r2 * math.Log(r2)
}

// Name implements Kernel
func (ThinPlate) Name() string { return "thinplate" }

// NewKernel returns the kernel registered under name. The shape parameter is
// only used by the Gaussian kernel and must be positive for it.
func NewKernel(name string, shape float64) (Kernel, error) {
	switch strings.ToLower(name) {
	case "cubic":
		return Cubic{}, nil
	case "gaussian":
		if !(shape > 0) {
			return nil, fmt.Errorf("rbf: gaussian shape parameter must be positive, got %v", shape)
		}
		return Gaussian{Shape: shape}, nil
	case "thinplate", "thin-plate":
		return ThinPlate{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKernel, name)
	}
}

// Package solver provides preconditioned Krylov subspace methods for the
// dense interpolation systems: GMRES (with optional restart) and BiCG.
//
// Reaching the iteration limit is not an error: the best available
// approximation is returned with Stats.Converged set to false, and the
// caller decides whether the result is good enough.
package solver

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
)

// ErrBreakdown is returned by BiCG when one of its inner products vanishes
var ErrBreakdown = errors.New("solver: breakdown")

// Operator is the matrix of the linear system
type Operator interface {
	Dims() (r, c int)
	MulVec(dst, x []float64)
}

// TransOperator is an Operator that can also multiply by its transpose
type TransOperator interface {
	Operator
	MulTransVec(dst, x []float64)
}

// Preconditioner stores into dst the result of applying an approximate
// inverse of the system matrix to src.
type Preconditioner interface {
	Solve(dst, src []float64) error
}

// TransPreconditioner can also apply the transposed approximate inverse
type TransPreconditioner interface {
	Preconditioner
	SolveTrans(dst, src []float64) error
}

// Identity is the trivial preconditioner
type Identity struct{}

// Solve copies src into dst
func (Identity) Solve(dst, src []float64) error { copy(dst, src); return nil }

// SolveTrans copies src into dst
func (Identity) SolveTrans(dst, src []float64) error { copy(dst, src); return nil }

// Settings control an iterative solve
type Settings struct {
	// X0 is the initial guess. If it is nil or the zero vector, the
	// initial residual is b and no matrix-vector product is spent on it.
	X0 []float64

	// Tolerance on the relative residual |b - Ax| / max(|b|, 1).
	// Zero means DefaultTolerance.
	Tolerance float64

	// MaxIterations is the iteration limit. Zero means DefaultMaxIterations.
	MaxIterations int

	// Logf, if not nil, receives the residual of every iteration
	Logf func(format string, args ...any)
}

// Defaults used for zero Settings fields
const (
	DefaultTolerance     = 1e-6
	DefaultMaxIterations = 1000
)

// Stats describes a completed solve
type Stats struct {
	Iterations       int
	MatVec           int
	PSolve           int
	ResidualNorm     float64
	RelativeResidual float64
	Converged        bool
	Runtime          time.Duration
}

// String implements fmt.Stringer
func (s Stats) String() string {
	return fmt.Sprintf("%d iterations, relative residual %.3e, converged %v", s.Iterations, s.RelativeResidual, s.Converged)
}

// Result is the outcome of a solve
type Result struct {
	X     []float64
	Stats Stats
}

// Method is an iterative method for A x = b
type Method interface {
	Solve(a Operator, m Preconditioner, b []float64, settings Settings) (Result, error)
}

// NewMethod returns the method registered under name: "gmres",
// "gmres-restart" (restart <= 0 selects 50) or "bicg".
func NewMethod(name string, restart int) (Method, error) {
	switch strings.ToLower(name) {
	case "gmres":
		return &GMRES{}, nil
	case "gmres-restart":
		if restart <= 0 {
			restart = 50
		}
		return &GMRES{Restart: restart}, nil
	case "bicg":
		return &BiCG{}, nil
	default:
		return nil, fmt.Errorf("solver: unknown method %q", name)
	}
}

// state is shared by the methods while they iterate
type state struct {
	x, r     []float64
	bnorm    float64
	settings Settings
	stats    Stats
	start    time.Time
}

func newState(a Operator, b []float64, settings Settings) *state {
	dim := len(b)
	r, c := a.Dims()
	switch {
	case dim == 0:
		panic("solver: zero dimension")
	case r != dim || c != dim:
		panic("solver: matrix does not match right-hand side")
	case settings.X0 != nil && len(settings.X0) != dim:
		panic("solver: mismatched length of initial guess")
	}
	if settings.Tolerance == 0 {
		settings.Tolerance = DefaultTolerance
	}
	if settings.MaxIterations == 0 {
		settings.MaxIterations = DefaultMaxIterations
	}
	if settings.Tolerance <= 0 || settings.Tolerance >= 1 {
		panic("solver: invalid tolerance")
	}

	s := &state{
		x:        make([]float64, dim),
		r:        make([]float64, dim),
		settings: settings,
		start:    time.Now(),
	}
	s.bnorm = floats.Norm(b, 2)
	if s.bnorm < 1 {
		s.bnorm = 1
	}
	if settings.X0 != nil && !isZero(settings.X0) {
		copy(s.x, settings.X0)
		s.residual(a, b)
	} else {
		copy(s.r, b)
	}
	s.stats.ResidualNorm = floats.Norm(s.r, 2)
	s.stats.RelativeResidual = s.stats.ResidualNorm / s.bnorm
	return s
}

// residual computes r = b - A x
func (s *state) residual(a Operator, b []float64) {
	a.MulVec(s.r, s.x)
	s.stats.MatVec++
	floats.SubTo(s.r, b, s.r)
}

func (s *state) converged(rnorm float64) bool {
	return rnorm/s.bnorm < s.settings.Tolerance
}

func (s *state) logResidual(rnorm float64) {
	if s.settings.Logf != nil {
		s.settings.Logf("iteration %4d residual %.8e", s.stats.Iterations, rnorm/s.bnorm)
	}
}

func (s *state) result() Result {
	s.stats.RelativeResidual = s.stats.ResidualNorm / s.bnorm
	s.stats.Runtime = time.Since(s.start)
	return Result{X: s.x, Stats: s.stats}
}

func isZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

const dlamchE = 1.0 / (1 << 53)

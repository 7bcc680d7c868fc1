package linalg

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/lapack/lapack64"
)

// ErrSingular is returned when LU factorisation meets a zero (or
// numerically negligible) pivot, meaning the interpolation is ill-posed.
var ErrSingular = errors.New("linalg: singular matrix, interpolation is ill-posed")

const dlamchE = 1.0 / (1 << 53)

// LU holds the partial-pivoting factorisation P*A = L*U of a square matrix.
// The zero value is ready for Factorise; buffers are reused between calls.
type LU struct {
	a    blas64.General
	ipiv []int
	ok   bool
}

// Factorise computes the LU factorisation of the n×n row-major matrix held
// in data. data is copied, so the caller may reuse it afterwards.
func (lu *LU) Factorise(n int, data []float64) error {
	if n <= 0 {
		panic("linalg: LU dimension not positive")
	}
	if len(data) != n*n {
		panic("linalg: LU data has wrong length")
	}
	lu.a.Rows, lu.a.Cols, lu.a.Stride = n, n, n
	lu.a.Data = reuse(lu.a.Data, n*n)
	copy(lu.a.Data, data)
	if cap(lu.ipiv) < n {
		lu.ipiv = make([]int, n)
	}
	lu.ipiv = lu.ipiv[:n]
	lu.ok = false

	var amax float64
	for _, v := range lu.a.Data {
		amax = math.Max(amax, math.Abs(v))
	}
	if amax == 0 {
		return ErrSingular
	}

	if !lapack64.Getrf(lu.a, lu.ipiv) {
		return ErrSingular
	}
	tol := float64(n) * dlamchE * amax
	for k := 0; k < n; k++ {
		if math.Abs(lu.a.Data[k*n+k]) <= tol {
			return ErrSingular
		}
	}
	lu.ok = true
	return nil
}

// FactoriseMatrix factorises a square Matrix
func (lu *LU) FactoriseMatrix(m Matrix) error {
	r, c := m.Dims()
	if r != c {
		panic("linalg: LU of non-square matrix")
	}
	data := make([]float64, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			data[i*c+j] = m.At(i, j)
		}
	}
	return lu.Factorise(r, data)
}

// Pivots returns the row interchanges of the factorisation: row i was
// interchanged with row Pivots()[i].
func (lu *LU) Pivots() []int {
	return lu.ipiv
}

// Dim returns the order of the factorised matrix
func (lu *LU) Dim() int {
	return lu.a.Rows
}

// Solve overwrites b with the solution x of A*x = b
func (lu *LU) Solve(b []float64) {
	lu.solve(blas.NoTrans, b)
}

// SolveTrans overwrites b with the solution x of A^T*x = b
func (lu *LU) SolveTrans(b []float64) {
	lu.solve(blas.Trans, b)
}

func (lu *LU) solve(t blas.Transpose, b []float64) {
	if !lu.ok {
		panic("linalg: LU solve without successful factorisation")
	}
	n := lu.a.Rows
	if len(b) != n {
		panic("linalg: LU right-hand side has wrong length")
	}
	lapack64.Getrs(t, lu.a, blas64.General{Rows: n, Cols: 1, Stride: 1, Data: b}, lu.ipiv)
}

// Solve3x3 solves the 3×3 row-major system a*x = b, overwriting b
func Solve3x3(a [9]float64, b *[3]float64) error {
	var lu LU
	if err := lu.Factorise(3, a[:]); err != nil {
		return err
	}
	lu.Solve(b[:])
	return nil
}

func reuse(v []float64, n int) []float64 {
	if cap(v) < n {
		return make([]float64, n)
	}
	return v[:n]
}

package linalg

import "fmt"

// Matrix is a dense matrix with bounds-checked element access.
//
// Implementations differ only in physical layout; MulVec and SubMatrix
// give identical results for identical contents.
type Matrix interface {
	// Dims returns the number of rows and columns
	Dims() (r, c int)

	// At returns the element at row i, column j
	At(i, j int) float64

	// Set stores v at row i, column j
	Set(i, j int, v float64)

	// Fill sets every element to v
	Fill(v float64)

	// MulVec computes dst = M * x
	MulVec(dst, x []float64)

	// MulVecRows computes dst[i] = (M * x)[i] for lo <= i < hi only.
	// Rows outside the range are left untouched.
	MulVecRows(dst, x []float64, lo, hi int)

	// MulTransVec computes dst = M^T * x
	MulTransVec(dst, x []float64)

	// SubMatrix gathers the square block M[indices, indices] into dst in
	// row-major order. dst must have length len(indices)^2.
	SubMatrix(indices []int, dst []float64)
}

func checkIndex(i, j, r, c int) {
	if i < 0 || i >= r {
		panic(fmt.Sprintf("linalg: row index %d out of range [0,%d)", i, r))
	}
	if j < 0 || j >= c {
		panic(fmt.Sprintf("linalg: column index %d out of range [0,%d)", j, c))
	}
}

func checkMulVec(dst, x []float64, r, c int) {
	if len(x) != c {
		panic("linalg: vector length does not match matrix columns")
	}
	if len(dst) != r {
		panic("linalg: destination length does not match matrix rows")
	}
}

func checkRows(lo, hi, r int) {
	if lo < 0 || hi > r || lo > hi {
		panic(fmt.Sprintf("linalg: row range [%d,%d) out of range [0,%d)", lo, hi, r))
	}
}

func checkSubMatrix(indices []int, dst []float64, r, c int) {
	k := len(indices)
	if len(dst) != k*k {
		panic("linalg: sub-matrix buffer has wrong length")
	}
	for _, idx := range indices {
		checkIndex(idx, idx, r, c)
	}
}

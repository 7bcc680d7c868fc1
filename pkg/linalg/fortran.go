package linalg

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

// FortranMatrix stores its elements column by column in one contiguous
// buffer, the layout expected by Fortran BLAS and LAPACK routines.
type FortranMatrix struct {
	rows, cols int
	data       []float64
}

// NewFortranMatrix returns a zeroed r×c column-major matrix
func NewFortranMatrix(r, c int) *FortranMatrix {
	if r < 0 || c < 0 {
		panic("linalg: negative matrix dimension")
	}
	return &FortranMatrix{rows: r, cols: c, data: make([]float64, r*c)}
}

// Dims implements Matrix
func (m *FortranMatrix) Dims() (int, int) { return m.rows, m.cols }

// At implements Matrix
func (m *FortranMatrix) At(i, j int) float64 {
	checkIndex(i, j, m.rows, m.cols)
	return m.data[i+j*m.rows]
}

// Set implements Matrix
func (m *FortranMatrix) Set(i, j int, v float64) {
	checkIndex(i, j, m.rows, m.cols)
	m.data[i+j*m.rows] = v
}

// Fill implements Matrix
func (m *FortranMatrix) Fill(v float64) {
	for i := range m.data {
		m.data[i] = v
	}
}

// RawData returns the column-major backing buffer
func (m *FortranMatrix) RawData() []float64 { return m.data }

// transposed returns the column-major storage viewed as the row-major
// cols×rows matrix M^T.
func (m *FortranMatrix) transposed() blas64.General {
	return blas64.General{
		Rows:   m.cols,
		Cols:   m.rows,
		Stride: max(m.rows, 1),
		Data:   m.data,
	}
}

// MulVec implements Matrix
func (m *FortranMatrix) MulVec(dst, x []float64) {
	checkMulVec(dst, x, m.rows, m.cols)
	if m.rows == 0 || m.cols == 0 {
		for i := range dst {
			dst[i] = 0
		}
		return
	}
	// dst = (M^T)^T x
	blas64.Gemv(blas.Trans, 1, m.transposed(),
		blas64.Vector{N: m.cols, Inc: 1, Data: x},
		0, blas64.Vector{N: m.rows, Inc: 1, Data: dst})
}

// MulVecRows implements Matrix. Each row is a strided dot product over the
// column-major buffer.
func (m *FortranMatrix) MulVecRows(dst, x []float64, lo, hi int) {
	checkMulVec(dst, x, m.rows, m.cols)
	checkRows(lo, hi, m.rows)
	if m.cols == 0 {
		for i := lo; i < hi; i++ {
			dst[i] = 0
		}
		return
	}
	xv := blas64.Vector{N: m.cols, Inc: 1, Data: x}
	for i := lo; i < hi; i++ {
		row := blas64.Vector{N: m.cols, Inc: m.rows, Data: m.data[i:]}
		dst[i] = blas64.Dot(row, xv)
	}
}

// MulTransVec implements Matrix
func (m *FortranMatrix) MulTransVec(dst, x []float64) {
	checkMulVec(dst, x, m.cols, m.rows)
	if m.rows == 0 || m.cols == 0 {
		for i := range dst {
			dst[i] = 0
		}
		return
	}
	blas64.Gemv(blas.NoTrans, 1, m.transposed(),
		blas64.Vector{N: m.rows, Inc: 1, Data: x},
		0, blas64.Vector{N: m.cols, Inc: 1, Data: dst})
}

// SubMatrix implements Matrix
func (m *FortranMatrix) SubMatrix(indices []int, dst []float64) {
	checkSubMatrix(indices, dst, m.rows, m.cols)
	k := len(indices)
	for b, j := range indices {
		col := m.data[j*m.rows : (j+1)*m.rows]
		for a, i := range indices {
			dst[a*k+b] = col[i]
		}
	}
}

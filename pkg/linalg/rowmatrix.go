package linalg

import (
	"gonum.org/v1/gonum/floats"
)

// RowMatrix stores each row in its own allocation. Large matrices built this
// way avoid one giant contiguous block and partition naturally by row.
type RowMatrix struct {
	rows, cols int
	data       [][]float64
}

// NewRowMatrix returns a zeroed r×c row-major matrix
func NewRowMatrix(r, c int) *RowMatrix {
	if r < 0 || c < 0 {
		panic("linalg: negative matrix dimension")
	}
	data := make([][]float64, r)
	for i := range data {
		data[i] = make([]float64, c)
	}
	return &RowMatrix{rows: r, cols: c, data: data}
}

// Dims implements Matrix
func (m *RowMatrix) Dims() (int, int) { return m.rows, m.cols }

// At implements Matrix
func (m *RowMatrix) At(i, j int) float64 {
	checkIndex(i, j, m.rows, m.cols)
	return m.data[i][j]
}

// Set implements Matrix
func (m *RowMatrix) Set(i, j int, v float64) {
	checkIndex(i, j, m.rows, m.cols)
	m.data[i][j] = v
}

// Row returns the storage of row i; writes through it modify the matrix
func (m *RowMatrix) Row(i int) []float64 {
	checkIndex(i, 0, m.rows, max(m.cols, 1))
	return m.data[i]
}

// Fill implements Matrix
func (m *RowMatrix) Fill(v float64) {
	for _, row := range m.data {
		for j := range row {
			row[j] = v
		}
	}
}

// MulVec implements Matrix
func (m *RowMatrix) MulVec(dst, x []float64) {
	m.MulVecRows(dst, x, 0, m.rows)
}

// MulVecRows implements Matrix
func (m *RowMatrix) MulVecRows(dst, x []float64, lo, hi int) {
	checkMulVec(dst, x, m.rows, m.cols)
	checkRows(lo, hi, m.rows)
	for i := lo; i < hi; i++ {
		dst[i] = floats.Dot(m.data[i], x)
	}
}

// MulTransVec implements Matrix
func (m *RowMatrix) MulTransVec(dst, x []float64) {
	checkMulVec(dst, x, m.cols, m.rows)
	for j := range dst {
		dst[j] = 0
	}
	for i, row := range m.data {
		floats.AddScaled(dst, x[i], row)
	}
}

// SubMatrix implements Matrix
func (m *RowMatrix) SubMatrix(indices []int, dst []float64) {
	checkSubMatrix(indices, dst, m.rows, m.cols)
	k := len(indices)
	for a, i := range indices {
		row := m.data[i]
		out := dst[a*k : (a+1)*k]
		for b, j := range indices {
			out[b] = row[j]
		}
	}
}

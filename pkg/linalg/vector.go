// Package linalg provides the dense vector and matrix types used by the
// interpolation engine, together with a small LU direct solver.
package linalg

import (
	"gonum.org/v1/gonum/floats"
)

// Vector is a resizable dense vector of float64 values
type Vector []float64

// NewVector returns a zeroed vector of length n
func NewVector(n int) Vector {
	return make(Vector, n)
}

// Len returns the number of entries in the vector
func (v Vector) Len() int { return len(v) }

// Resize returns a vector of length n, reusing the storage of v when it is
// large enough. Entries beyond the old length are zero.
func (v Vector) Resize(n int) Vector {
	if cap(v) < n {
		w := make(Vector, n)
		copy(w, v)
		return w
	}
	old := len(v)
	v = v[:n]
	for i := old; i < n; i++ {
		v[i] = 0
	}
	return v
}

// Fill sets every entry of the vector to value
func (v Vector) Fill(value float64) {
	for i := range v {
		v[i] = value
	}
}

// CopyFrom copies src into v; the lengths must match
func (v Vector) CopyFrom(src []float64) {
	if len(src) != len(v) {
		panic("linalg: vector length mismatch")
	}
	copy(v, src)
}

// Dot returns the inner product of v and w
func (v Vector) Dot(w []float64) float64 {
	return floats.Dot(v, w)
}

// Norm returns the Euclidean norm of v
func (v Vector) Norm() float64 {
	return floats.Norm(v, 2)
}

// Axpy computes v += alpha * x
func (v Vector) Axpy(alpha float64, x []float64) {
	floats.AddScaled(v, alpha, x)
}

// Scale multiplies every entry of v by alpha
func (v Vector) Scale(alpha float64) {
	floats.Scale(alpha, v)
}

// IsZero reports whether every entry of v is exactly zero
func (v Vector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// OuterProduct adds alpha * x * y^T to m
func OuterProduct(alpha float64, x, y []float64, m Matrix) {
	r, c := m.Dims()
	if len(x) != r || len(y) != c {
		panic("linalg: outer product dimension mismatch")
	}
	for i := 0; i < r; i++ {
		if x[i] == 0 {
			continue
		}
		ax := alpha * x[i]
		for j := 0; j < c; j++ {
			m.Set(i, j, m.At(i, j)+ax*y[j])
		}
	}
}

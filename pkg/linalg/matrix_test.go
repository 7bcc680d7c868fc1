package linalg

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/floats"
)

// fillBoth writes the same pseudo-random contents into both layouts
func fillBoth(r, c int, rnd *rand.Rand) (*RowMatrix, *FortranMatrix) {
	rm := NewRowMatrix(r, c)
	fm := NewFortranMatrix(r, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := rnd.NormFloat64()
			rm.Set(i, j, v)
			fm.Set(i, j, v)
		}
	}
	return rm, fm
}

func TestLayoutsAgreeOnMulVec(t *testing.T) {
	rnd := rand.New(rand.NewPCG(1, 2))
	for _, dims := range [][2]int{{1, 1}, {3, 5}, {7, 7}, {20, 13}} {
		r, c := dims[0], dims[1]
		rm, fm := fillBoth(r, c, rnd)

		x := make([]float64, c)
		for i := range x {
			x[i] = rnd.Float64()
		}
		got1 := make([]float64, r)
		got2 := make([]float64, r)
		rm.MulVec(got1, x)
		fm.MulVec(got2, x)
		if !floats.EqualApprox(got1, got2, 1e-12) {
			t.Errorf("%dx%d: row and column layouts disagree: %v vs %v", r, c, got1, got2)
		}

		// Naive reference.
		for i := 0; i < r; i++ {
			var want float64
			for j := 0; j < c; j++ {
				want += rm.At(i, j) * x[j]
			}
			if math.Abs(want-got1[i]) > 1e-12 {
				t.Errorf("%dx%d: row %d: want %v, got %v", r, c, i, want, got1[i])
			}
		}

		// Row-range products only touch their own rows.
		part := make([]float64, r)
		part[0] = -99
		fm.MulVecRows(part, x, 1, r)
		if part[0] != -99 {
			t.Errorf("MulVecRows wrote outside its range")
		}
		if r > 1 && !floats.EqualApprox(part[1:], got1[1:], 1e-12) {
			t.Errorf("MulVecRows mismatch: %v vs %v", part[1:], got1[1:])
		}

		y := make([]float64, r)
		for i := range y {
			y[i] = rnd.Float64()
		}
		t1 := make([]float64, c)
		t2 := make([]float64, c)
		rm.MulTransVec(t1, y)
		fm.MulTransVec(t2, y)
		if !floats.EqualApprox(t1, t2, 1e-12) {
			t.Errorf("%dx%d: transposed products disagree", r, c)
		}
	}
}

func TestSubMatrix(t *testing.T) {
	rnd := rand.New(rand.NewPCG(3, 4))
	rm, fm := fillBoth(6, 6, rnd)
	indices := []int{4, 0, 2}
	got1 := make([]float64, 9)
	got2 := make([]float64, 9)
	rm.SubMatrix(indices, got1)
	fm.SubMatrix(indices, got2)
	for a, i := range indices {
		for b, j := range indices {
			if got1[a*3+b] != rm.At(i, j) {
				t.Errorf("row layout: element (%d,%d) wrong", a, b)
			}
			if got2[a*3+b] != rm.At(i, j) {
				t.Errorf("column layout: element (%d,%d) wrong", a, b)
			}
		}
	}
}

func TestFillAndOuterProduct(t *testing.T) {
	m := NewFortranMatrix(2, 3)
	m.Fill(1)
	OuterProduct(2, []float64{1, 2}, []float64{1, 0, -1}, m)
	want := [][]float64{{3, 1, -1}, {5, 1, -3}}
	for i := range want {
		for j := range want[i] {
			if m.At(i, j) != want[i][j] {
				t.Errorf("element (%d,%d): want %v, got %v", i, j, want[i][j], m.At(i, j))
			}
		}
	}
}

func TestOutOfRangePanics(t *testing.T) {
	for _, m := range []Matrix{NewRowMatrix(2, 2), NewFortranMatrix(2, 2)} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("%T: expected panic for out-of-range access", m)
				}
			}()
			m.At(2, 0)
		}()
	}
}

func TestVector(t *testing.T) {
	v := NewVector(3)
	v.Fill(2)
	v.Axpy(0.5, []float64{2, 4, 6})
	if !floats.Equal(v, []float64{3, 4, 5}) {
		t.Errorf("Axpy: got %v", v)
	}
	if v.Dot([]float64{1, 1, 1}) != 12 {
		t.Errorf("Dot: got %v", v.Dot([]float64{1, 1, 1}))
	}
	if math.Abs(v.Norm()-math.Sqrt(50)) > 1e-14 {
		t.Errorf("Norm: got %v", v.Norm())
	}
	v = v.Resize(5)
	if len(v) != 5 || v[3] != 0 || v[4] != 0 || v[0] != 3 {
		t.Errorf("Resize: got %v", v)
	}
	v.Fill(0)
	if !v.IsZero() {
		t.Errorf("IsZero: expected zero vector")
	}
}

func TestLUSolve(t *testing.T) {
	a := []float64{
		2, 1, 1,
		1, 3, 1,
		1, 1, 4,
	}
	b := []float64{5, 10, 15}
	var lu LU
	if err := lu.Factorise(3, a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	x := append([]float64(nil), b...)
	lu.Solve(x)
	// Check A*x = b.
	for i := 0; i < 3; i++ {
		var s float64
		for j := 0; j < 3; j++ {
			s += a[i*3+j] * x[j]
		}
		if math.Abs(s-b[i]) > 1e-12 {
			t.Errorf("row %d: residual %v", i, s-b[i])
		}
	}
	if len(lu.Pivots()) != 3 {
		t.Errorf("expected 3 pivots, got %d", len(lu.Pivots()))
	}

	// Pivoting is required for a zero leading entry.
	var lu2 LU
	if err := lu2.Factorise(2, []float64{0, 1, 1, 0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	y := []float64{3, 7}
	lu2.Solve(y)
	if !floats.EqualApprox(y, []float64{7, 3}, 1e-14) {
		t.Errorf("pivoted solve: got %v", y)
	}

	// Transposed solve.
	z := []float64{1, 2, 3}
	lu.SolveTrans(z)
	for j := 0; j < 3; j++ {
		var s float64
		for i := 0; i < 3; i++ {
			s += a[i*3+j] * z[i]
		}
		if math.Abs(s-float64(j+1)) > 1e-12 {
			t.Errorf("transposed solve column %d: residual %v", j, s-float64(j+1))
		}
	}
}

func TestLUSingular(t *testing.T) {
	var lu LU
	err := lu.Factorise(2, []float64{1, 2, 2, 4})
	if !errors.Is(err, ErrSingular) {
		t.Errorf("expected ErrSingular, got %v", err)
	}
	err = lu.Factorise(2, []float64{0, 0, 0, 0})
	if !errors.Is(err, ErrSingular) {
		t.Errorf("expected ErrSingular for zero matrix, got %v", err)
	}
}

func TestSolve3x3(t *testing.T) {
	b := [3]float64{5, 7, 12}
	if err := Solve3x3([9]float64{2, 1, 1, 1, 3, 1, 1, 1, 4}, &b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 2x+y+z=5, x+3y+z=7, x+y+4z=12
	want := []float64{10.0 / 17.0, 22.0 / 17.0, 43.0 / 17.0}
	if !floats.EqualApprox(b[:], want, 1e-12) {
		t.Errorf("want %v, got %v", want, b)
	}
}

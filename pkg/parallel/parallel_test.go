package parallel

import (
	"errors"
	"math/rand/v2"
	"sync/atomic"
	"testing"

	"gonum.org/v1/gonum/floats"

	"saltrbf/internal/models"
	"saltrbf/pkg/linalg"
	"saltrbf/pkg/precond"
	"saltrbf/pkg/rbf"
)

var threadCounts = []int{1, 2, 4, 8}

func TestPartition(t *testing.T) {
	for _, rows := range []int{0, 1, 7, 10, 64, 1001} {
		for _, threads := range []int{1, 2, 3, 4, 8, 16} {
			ranges := Partition(rows, threads)
			if len(ranges) != threads {
				t.Fatalf("Partition(%d, %d): want %d ranges, got %d", rows, threads, threads, len(ranges))
			}
			next := 0
			for _, r := range ranges {
				if r.Lo != next && r.Len() > 0 {
					t.Errorf("Partition(%d, %d): gap or overlap at %d", rows, threads, r.Lo)
				}
				if r.Len() < 0 {
					t.Errorf("Partition(%d, %d): negative range %v", rows, threads, r)
				}
				next = max(next, r.Hi)
			}
			if next != rows {
				t.Errorf("Partition(%d, %d): covers [0,%d)", rows, threads, next)
			}
		}
	}

	// Chunk size (rows+threads)/threads.
	want := []Range{{0, 3}, {3, 6}, {6, 9}, {9, 10}}
	for i, r := range Partition(10, 4) {
		if r != want[i] {
			t.Errorf("Partition(10, 4)[%d]: want %v, got %v", i, want[i], r)
		}
	}
}

func TestPoolRunsEveryRowOnce(t *testing.T) {
	const rows = 37
	for _, threads := range threadCounts {
		var calls atomic.Int32
		hits := make([]int, rows)
		p := NewPool(threads, rows, func(op Operation, payload any, r Range) error {
			calls.Add(1)
			if op != SolveStart || payload.(string) != "payload" {
				return errors.New("unexpected message")
			}
			for i := r.Lo; i < r.Hi; i++ {
				hits[i]++
			}
			return nil
		})
		if err := p.Run(SolveStart, "payload"); err != nil {
			t.Fatal(err)
		}
		p.Close()
		p.Close()

		if int(calls.Load()) != threads {
			t.Errorf("%d threads: handler called %d times", threads, calls.Load())
		}
		for i, h := range hits {
			if h != 1 {
				t.Errorf("%d threads: row %d visited %d times", threads, i, h)
			}
		}
	}
}

func TestPoolJoinsErrors(t *testing.T) {
	errOdd := errors.New("odd worker")
	p := NewPool(4, 100, func(_ Operation, _ any, r Range) error {
		if (r.Lo/26)%2 == 1 {
			return errOdd
		}
		return nil
	})
	defer p.Close()
	if err := p.Run(AssemblyStart, nil); !errors.Is(err, errOdd) {
		t.Errorf("want joined worker error, got %v", err)
	}
}

func TestRunAfterClosePanics(t *testing.T) {
	p := NewPool(2, 4, func(Operation, any, Range) error { return nil })
	p.Close()
	defer func() {
		if recover() == nil {
			t.Error("want panic")
		}
	}()
	p.Run(SolveStart, nil)
}

func randomPoints(n int, seed uint64) models.PointArray {
	rnd := rand.New(rand.NewPCG(seed, 2))
	points := make(models.PointArray, n)
	for i := range points {
		points[i] = models.Point{X: rnd.Float64(), Y: rnd.Float64(), Z: rnd.Float64()}
	}
	return points
}

func TestMatrixMatchesSerial(t *testing.T) {
	points := randomPoints(120, 5)
	degree := rbf.Linear
	size := len(points) + rbf.NumberOfPolynomialTerms(models.Dimension, degree)

	serial := linalg.NewRowMatrix(size, size)
	if err := rbf.AssembleMatrix(rbf.Cubic{}, points, degree, serial); err != nil {
		t.Fatal(err)
	}
	x := make([]float64, size)
	for i := range x {
		x[i] = float64(i%7) - 3
	}
	want := make([]float64, size)
	serial.MulVec(want, x)

	for _, threads := range threadCounts {
		pm := NewMatrix(linalg.NewFortranMatrix(size, size), threads)
		if err := pm.AssembleInterpolation(rbf.Cubic{}, points, degree); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < size; i++ {
			for j := 0; j < size; j++ {
				if pm.Matrix().At(i, j) != serial.At(i, j) {
					t.Fatalf("%d threads: element (%d,%d) differs", threads, i, j)
				}
			}
		}
		got := make([]float64, size)
		pm.MulVec(got, x)
		if !floats.EqualApprox(got, want, 1e-12*floats.Norm(want, 2)) {
			t.Errorf("%d threads: MulVec differs from serial", threads)
		}
		pm.Close()
	}
}

func TestPreconditionerMatchesSerial(t *testing.T) {
	points := randomPoints(150, 9)
	for _, degree := range []rbf.Degree{rbf.Constant, rbf.Linear} {
		size := len(points) + rbf.NumberOfPolynomialTerms(models.Dimension, degree)
		m := linalg.NewFortranMatrix(size, size)
		if err := rbf.AssembleMatrix(rbf.Cubic{}, points, degree, m); err != nil {
			t.Fatal(err)
		}
		serial, err := precond.New(points, degree, 60)
		if err != nil {
			t.Fatal(err)
		}
		if err := serial.Assemble(m); err != nil {
			t.Fatal(err)
		}
		src := make([]float64, size)
		for i := range src {
			src[i] = 1 / float64(i+1)
		}
		want := make([]float64, size)
		if err := serial.Solve(want, src); err != nil {
			t.Fatal(err)
		}
		wantT := make([]float64, size)
		if err := serial.SolveTrans(wantT, src); err != nil {
			t.Fatal(err)
		}

		for _, threads := range threadCounts {
			c, err := precond.New(points, degree, 60)
			if err != nil {
				t.Fatal(err)
			}
			p := NewPreconditioner(c, threads)
			if err := p.Assemble(m); err != nil {
				t.Fatal(err)
			}
			got := make([]float64, size)
			if err := p.Solve(got, src); err != nil {
				t.Fatal(err)
			}
			tol := 1e-12 * floats.Norm(want, 2)
			if !floats.EqualApprox(got, want, tol) {
				t.Errorf("%v, %d threads: Solve differs from serial", degree, threads)
			}
			if err := p.SolveTrans(got, src); err != nil {
				t.Fatal(err)
			}
			if !floats.EqualApprox(got, wantT, 1e-12*floats.Norm(wantT, 2)) {
				t.Errorf("%v, %d threads: SolveTrans differs from serial", degree, threads)
			}
			p.Close()
		}
	}
}

func TestPreconditionerReportsIllPosedWorker(t *testing.T) {
	points := randomPoints(80, 3)
	points[41] = points[40]
	size := len(points) + 1
	m := linalg.NewFortranMatrix(size, size)
	if err := rbf.AssembleMatrix(rbf.Cubic{}, points, rbf.Constant, m); err != nil {
		t.Fatal(err)
	}
	c, err := precond.New(points, rbf.Constant, 50)
	if err != nil {
		t.Fatal(err)
	}
	p := NewPreconditioner(c, 4)
	defer p.Close()
	if err := p.Assemble(m); !errors.Is(err, precond.ErrIllPosed) {
		t.Errorf("want ErrIllPosed, got %v", err)
	}
	if c.Assembled() {
		t.Error("failed assembly marked as assembled")
	}
}

package parallel

import (
	"fmt"

	"saltrbf/internal/models"
	"saltrbf/pkg/linalg"
	"saltrbf/pkg/rbf"
)

type mulVecJob struct {
	dst, x []float64
}

type assemblyJob struct {
	kernel rbf.Kernel
	points models.PointArray
	degree rbf.Degree
}

// Matrix distributes the rows of a dense matrix over a worker pool
type Matrix struct {
	m    linalg.Matrix
	pool *Pool
}

// NewMatrix wraps m. Close must be called to release the workers.
func NewMatrix(m linalg.Matrix, threads int) *Matrix {
	rows, _ := m.Dims()
	pm := &Matrix{m: m}
	pm.pool = NewPool(threads, rows, pm.handle)
	return pm
}

func (pm *Matrix) handle(op Operation, payload any, rows Range) error {
	switch op {
	case AssemblyStart:
		job := payload.(assemblyJob)
		return rbf.AssembleRows(job.kernel, job.points, job.degree, pm.m, rows.Lo, rows.Hi)
	case SolveStart:
		job := payload.(mulVecJob)
		pm.m.MulVecRows(job.dst, job.x, rows.Lo, rows.Hi)
		return nil
	default:
		return fmt.Errorf("parallel: matrix cannot handle %v", op)
	}
}

// Matrix returns the wrapped matrix
func (pm *Matrix) Matrix() linalg.Matrix { return pm.m }

// Dims returns the dimensions of the wrapped matrix
func (pm *Matrix) Dims() (r, c int) { return pm.m.Dims() }

// MulVec computes dst = M x with every worker producing its own rows
func (pm *Matrix) MulVec(dst, x []float64) {
	r, c := pm.m.Dims()
	if len(dst) != r || len(x) != c {
		panic("parallel: vector length does not match matrix")
	}
	if err := pm.pool.Run(SolveStart, mulVecJob{dst: dst, x: x}); err != nil {
		panic(err)
	}
}

// MulTransVec computes dst = Mᵀ x serially
func (pm *Matrix) MulTransVec(dst, x []float64) { pm.m.MulTransVec(dst, x) }

// AssembleInterpolation fills the matrix with the interpolation system for
// points, each worker assembling its own rows.
func (pm *Matrix) AssembleInterpolation(kernel rbf.Kernel, points models.PointArray, degree rbf.Degree) error {
	if err := rbf.ValidateDegree(models.Dimension, degree); err != nil {
		return err
	}
	return pm.pool.Run(AssemblyStart, assemblyJob{kernel: kernel, points: points, degree: degree})
}

// Close stops the workers
func (pm *Matrix) Close() { pm.pool.Close() }

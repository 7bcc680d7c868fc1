package parallel

import (
	"fmt"

	"saltrbf/pkg/linalg"
	"saltrbf/pkg/precond"
)

type solveJob struct {
	dst, src []float64
}

// Preconditioner distributes the cardinal functions of an approximate
// cardinal preconditioner over a worker pool. Point rows are split between
// the workers; the polynomial rows and the transposed solve run on the
// calling goroutine.
type Preconditioner struct {
	c    *precond.Cardinal
	pool *Pool
}

// NewPreconditioner wraps c. Close must be called to release the workers.
func NewPreconditioner(c *precond.Cardinal, threads int) *Preconditioner {
	p := &Preconditioner{c: c}
	p.pool = NewPool(threads, c.Len(), p.handle)
	return p
}

func (p *Preconditioner) handle(op Operation, payload any, rows Range) error {
	switch op {
	case AssemblyStart:
		return p.c.AssembleRange(payload.(linalg.Matrix), rows.Lo, rows.Hi)
	case SolveStart:
		job := payload.(solveJob)
		p.c.SolveRange(job.dst, job.src, rows.Lo, rows.Hi)
		return nil
	default:
		return fmt.Errorf("parallel: preconditioner cannot handle %v", op)
	}
}

// Cardinal returns the wrapped preconditioner
func (p *Preconditioner) Cardinal() *precond.Cardinal { return p.c }

// Assemble builds all cardinal functions from the interpolation matrix m
func (p *Preconditioner) Assemble(m linalg.Matrix) error {
	if err := p.c.AssemblePolynomial(); err != nil {
		return err
	}
	if err := p.pool.Run(AssemblyStart, m); err != nil {
		return err
	}
	p.c.MarkAssembled()
	return nil
}

// Solve applies the preconditioner: dst = C src
func (p *Preconditioner) Solve(dst, src []float64) error {
	if !p.c.Assembled() {
		panic("parallel: preconditioner used before assembly")
	}
	if len(dst) != p.c.Size() || len(src) != p.c.Size() {
		panic("parallel: vector length does not match system size")
	}
	if err := p.pool.Run(SolveStart, solveJob{dst: dst, src: src}); err != nil {
		return err
	}
	p.c.SolvePolynomial(dst, src)
	return nil
}

// SolveTrans applies the transposed preconditioner serially; the scatter
// over neighbour lists would make workers write the same rows.
func (p *Preconditioner) SolveTrans(dst, src []float64) error {
	return p.c.SolveTrans(dst, src)
}

// Close stops the workers
func (p *Preconditioner) Close() { p.pool.Close() }

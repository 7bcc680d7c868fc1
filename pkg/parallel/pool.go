package parallel

import (
	"errors"
	"sync"
)

// Operation selects what a worker does with its share of the rows
type Operation int

const (
	// AssemblyStart asks the worker to assemble its rows
	AssemblyStart Operation = iota
	// SolveStart asks the worker to compute its rows of a product or solve
	SolveStart
	// Done is sent back by a worker once its rows are finished
	Done
	// Terminate makes the worker exit
	Terminate
)

// String implements fmt.Stringer
func (op Operation) String() string {
	switch op {
	case AssemblyStart:
		return "assembly"
	case SolveStart:
		return "solve"
	case Done:
		return "done"
	case Terminate:
		return "terminate"
	default:
		return "unknown"
	}
}

// Handler does the work of one worker for one phase
type Handler func(op Operation, payload any, rows Range) error

type message struct {
	op      Operation
	payload any
	err     error
}

// Pool is a fixed set of worker goroutines, each owning one row range
type Pool struct {
	ranges  []Range
	handler Handler
	work    []chan message
	done    chan message
	wg      sync.WaitGroup
	closed  bool
}

// NewPool starts threads workers splitting rows with Partition
func NewPool(threads, rows int, handler Handler) *Pool {
	p := &Pool{
		ranges:  Partition(rows, threads),
		handler: handler,
		work:    make([]chan message, threads),
		done:    make(chan message, threads),
	}
	for t := range p.work {
		p.work[t] = make(chan message)
		p.wg.Add(1)
		go p.worker(t)
	}
	return p
}

func (p *Pool) worker(t int) {
	defer p.wg.Done()
	for msg := range p.work[t] {
		if msg.op == Terminate {
			return
		}
		err := p.handler(msg.op, msg.payload, p.ranges[t])
		p.done <- message{op: Done, err: err}
	}
}

// Threads returns the number of workers
func (p *Pool) Threads() int { return len(p.work) }

// Ranges returns the row range of every worker
func (p *Pool) Ranges() []Range { return p.ranges }

// Run starts op on every worker and waits until all of them are done. The
// errors of all workers are joined.
func (p *Pool) Run(op Operation, payload any) error {
	if p.closed {
		panic("parallel: run on closed pool")
	}
	if op == Done || op == Terminate {
		panic("parallel: " + op.String() + " is not a work operation")
	}
	for _, ch := range p.work {
		ch <- message{op: op, payload: payload}
	}
	var errs []error
	for range p.work {
		if msg := <-p.done; msg.err != nil {
			errs = append(errs, msg.err)
		}
	}
	return errors.Join(errs...)
}

// Close terminates the workers and waits for them to exit. It is safe to
// call more than once.
func (p *Pool) Close() {
	if p.closed {
		return
	}
	p.closed = true
	for _, ch := range p.work {
		ch <- message{op: Terminate}
		close(ch)
	}
	p.wg.Wait()
}

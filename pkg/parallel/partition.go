// Package parallel splits the interpolation matrix and the preconditioner
// across a fixed pool of long-lived worker goroutines.
//
// Every parallel object owns its pool. The coordinator hands each worker
// an operation together with the worker's row range and blocks until all
// of them report back, so the shared payload is never touched by the
// coordinator while a phase is running and no locking is needed.
package parallel

import "fmt"

// Range is the half-open row range [Lo, Hi)
type Range struct {
	Lo, Hi int
}

// Len returns the number of rows in the range
func (r Range) Len() int { return r.Hi - r.Lo }

// Partition splits rows into threads contiguous ranges. Every worker gets
// (rows+threads)/threads rows except the last ones, which may get fewer or
// none; the ranges are disjoint and cover [0, rows).
func Partition(rows, threads int) []Range {
	if threads < 1 {
		panic(fmt.Sprintf("parallel: invalid thread count %d", threads))
	}
	if rows < 0 {
		panic(fmt.Sprintf("parallel: invalid row count %d", rows))
	}
	chunk := (rows + threads) / threads
	ranges := make([]Range, threads)
	for t := range ranges {
		start := min(t*chunk, rows)
		ranges[t] = Range{Lo: start, Hi: min(start+chunk, rows)}
	}
	return ranges
}

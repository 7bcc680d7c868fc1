package saltmap

import "math/rand/v2"

// Selector decides which candidate map nodes are picked out
type Selector interface {
	Select(i, j int) bool
}

// RandomArbiter selects a node with probability Threshold. A threshold of
// one or more selects every node.
type RandomArbiter struct {
	Threshold float64
	rnd       *rand.Rand
}

// NewRandomArbiter returns an arbiter drawing from a PCG stream seeded
// with seed, so that repeated runs select the same nodes.
func NewRandomArbiter(threshold float64, seed uint64) *RandomArbiter {
	return &RandomArbiter{
		Threshold: threshold,
		rnd:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Select implements Selector
func (a *RandomArbiter) Select(_, _ int) bool {
	if a.Threshold >= 1 {
		return true
	}
	return a.rnd.Float64() < a.Threshold
}

// SubsampledGrid selects every XStride-th node in i and every YStride-th
// node in j.
type SubsampledGrid struct {
	XStride, YStride int
}

// Select implements Selector
func (g SubsampledGrid) Select(i, j int) bool {
	return i%max(g.XStride, 1) == 0 && j%max(g.YStride, 1) == 0
}

// PrescribedGrid selects exactly the nodes set in its mask
type PrescribedGrid struct {
	*BinaryMap
}

// NewPrescribedGrid returns an empty selection over [0, nx)x[0, ny)
func NewPrescribedGrid(nx, ny int) PrescribedGrid {
	return PrescribedGrid{NewBinaryMap(0, nx-1, 0, ny-1)}
}

// Select implements Selector
func (g PrescribedGrid) Select(i, j int) bool {
	return g.Contains(i, j) && g.At(i, j)
}

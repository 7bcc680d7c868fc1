package precond

import (
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"

	"saltrbf/internal/models"
)

// Bounds on the number of neighbours used by a cardinal function
const (
	NeighbourLowerBound = 50
	NeighbourUpperBound = 300
)

// ClampNeighbours clamps a requested neighbour count to
// [NeighbourLowerBound, NeighbourUpperBound] and then to the number of points.
func ClampNeighbours(requested, numberOfPoints int) int {
	k := max(NeighbourLowerBound, min(requested, NeighbourUpperBound))
	return min(k, numberOfPoints)
}

// DefaultNeighbours returns 2.5% of the point count, clamped
func DefaultNeighbours(numberOfPoints int) int {
	return ClampNeighbours(int(0.025*float64(numberOfPoints)), numberOfPoints)
}

// node is an interpolation point tagged with its index in the system
type node struct {
	models.Point
	index int
}

// Compare implements the kdtree.Comparable interface
func (p node) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(node)
	return p.Component(int(d)) - q.Component(int(d))
}

// Dims implements the kdtree.Comparable interface
func (p node) Dims() int { return models.Dimension }

// Distance returns the squared Euclidean distance between two nodes
func (p node) Distance(c kdtree.Comparable) float64 {
	return p.Distance2(c.(node).Point)
}

// nodes is a collection of node that satisfies kdtree.Interface
type nodes []node

// Index implements kdtree.Interface
func (p nodes) Index(i int) kdtree.Comparable { return p[i] }

// Len implements kdtree.Interface
func (p nodes) Len() int { return len(p) }

// Slice implements kdtree.Interface
func (p nodes) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p nodes) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(plane{nodes: p, Dim: d}, kdtree.MedianOfMedians(plane{nodes: p, Dim: d}))
}

// plane implements sort.Interface and kdtree.SortSlicer for nodes
type plane struct {
	nodes
	kdtree.Dim
}

// Less implements sort.Interface
func (p plane) Less(i, j int) bool {
	return p.nodes[i].Component(int(p.Dim)) < p.nodes[j].Component(int(p.Dim))
}

// Slice implements kdtree.SortSlicer
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	return plane{nodes: p.nodes[start:end], Dim: p.Dim}
}

// Swap implements sort.Interface
func (p plane) Swap(i, j int) {
	p.nodes[i], p.nodes[j] = p.nodes[j], p.nodes[i]
}

// neighbourIndex answers k-nearest-neighbour queries over a fixed point
// array. Distances are measured between points scaled component-wise.
type neighbourIndex struct {
	scaled models.PointArray
	tree   *kdtree.Tree
}

func newNeighbourIndex(points models.PointArray, scaling models.Point) *neighbourIndex {
	scaled := make(models.PointArray, len(points))
	ns := make(nodes, len(points))
	for i, p := range points {
		scaled[i] = p.ScaleBy(scaling)
		ns[i] = node{Point: scaled[i], index: i}
	}
	// kdtree.New reorders ns; scaled keeps the system ordering.
	return &neighbourIndex{scaled: scaled, tree: kdtree.New(ns, false)}
}

// nearest writes the indices of the k points closest to point i into dst,
// ordered by squared distance and then by index. dst[0] is always i itself.
// It is safe for concurrent use.
func (idx *neighbourIndex) nearest(i int, dst []int) {
	k := len(dst)
	query := node{Point: idx.scaled[i], index: i}

	// Which of several points at the k-th distance an NKeeper retains
	// depends on the tree walk. The k-th distance itself does not, so
	// gather everything within it and break ties by index.
	keeper := kdtree.NewNKeeper(k)
	idx.tree.NearestSet(keeper, query)
	radius := 0.0
	for _, item := range keeper.Heap {
		if item.Comparable != nil {
			radius = max(radius, item.Dist)
		}
	}
	within := kdtree.NewDistKeeper(radius)
	idx.tree.NearestSet(within, query)

	found := make([]kdtree.ComparableDist, 0, len(within.Heap))
	for _, item := range within.Heap {
		// Skip the sentinel value
		if item.Comparable == nil {
			continue
		}
		found = append(found, item)
	}
	sort.Slice(found, func(a, b int) bool {
		if found[a].Dist != found[b].Dist {
			return found[a].Dist < found[b].Dist
		}
		return found[a].Comparable.(node).index < found[b].Comparable.(node).index
	})

	dst[0] = i
	pos := 1
	for _, item := range found {
		j := item.Comparable.(node).index
		if j == i || pos == k {
			continue
		}
		dst[pos] = j
		pos++
	}
	if pos != k {
		panic("precond: neighbour search returned too few points")
	}
}

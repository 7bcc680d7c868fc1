package interval

import (
	"math"

	"github.com/exascience/pargo/parallel"

	"saltrbf/internal/models"
	"saltrbf/pkg/saltmap"
)

// refine adds misclassified map nodes to the point set and recomputes the
// interpolant until a pass adds nothing or the pass limit is exceeded. The
// first pass accepts any sign error; later passes require the value to miss
// the constraint by ErrorFraction of it.
func (ip *Interpolator) refine(lower, upper *saltmap.Map) error {
	r := ip.cfg.Refinement
	in := ip.cfg.Interpolation
	xBound := max(1, lower.XDimension()/r.ProximityDivisor)
	yBound := max(1, lower.YDimension()/r.ProximityDivisor)

	var exteriorLevel, interiorLevel float64
	for pass := 1; ; pass++ {
		ip.state = Refining
		ip.reportProgress(pass, r.MaxPasses+1, "")

		added := ip.enhancePointSet(lower, exteriorLevel, interiorLevel, xBound, yBound) +
			ip.enhancePointSet(upper, exteriorLevel, interiorLevel, xBound, yBound)
		ip.report.Passes = pass

		if ip.debugLevel >= 1 {
			c := ip.points.Counts()
			ip.logf(" Enhanced point count is: %d  %d  %d", c[models.Surface], c[models.Exterior], c[models.Interior])
		}
		if added == 0 {
			ip.state = Converged
			return nil
		}
		if err := ip.assemble(); err != nil {
			return err
		}

		exteriorLevel = r.ErrorFraction * in.ExteriorConstraint
		interiorLevel = r.ErrorFraction * in.InteriorConstraint
		if pass > r.MaxPasses {
			ip.state = IterationCapReached
			ip.logf(" Refinement stopped after %d passes with %d points still being added", pass, added)
			return nil
		}
	}
}

// nodeKind classifies primal map nodes for the refinement search
type nodeKind uint8

const (
	skipped nodeKind = iota
	exteriorNode
	interiorNode
)

// enhancePointSet evaluates the interpolant at every exterior and interior
// node of m that is not yet a point, and adds the worst misclassified nodes
// that are not within the proximity bounds of one already added. It returns
// the number of points added.
func (ip *Interpolator) enhancePointSet(m *saltmap.Map, exteriorLevel, interiorLevel float64, xBound, yBound int) int {
	xs := m.XCoordinates(saltmap.Primal)
	ys := m.YCoordinates(saltmap.Primal)
	nx, ny := len(xs), len(ys)

	kinds := make([]nodeKind, nx*ny)
	values := make([]float64, nx*ny)
	parallel.Range(0, nx, 0, func(low, high int) {
		for i := low; i < high; i++ {
			for j := 0; j < ny; j++ {
				k := i*ny + j
				switch {
				case m.PointHasBeenSelected(saltmap.Primal, i, j):
					continue
				case m.PointIsExterior(i, j):
					kinds[k] = exteriorNode
				case m.PointIsInterior(i, j):
					kinds[k] = interiorNode
				default:
					continue
				}
				values[k] = ip.Evaluate(m.Point(saltmap.Primal, i, j))
			}
		}
	})

	if ip.debugLevel >= 1 {
		worst := parallel.RangeReduceFloat64(0, len(values), 0,
			func(low, high int) (result float64) {
				for k := low; k < high; k++ {
					switch kinds[k] {
					case exteriorNode:
						result = math.Max(result, values[k]-exteriorLevel)
					case interiorNode:
						result = math.Max(result, interiorLevel-values[k])
					}
				}
				return
			},
			math.Max,
		)
		ip.logf(" Age %g: largest constraint violation %.4e", m.Age(), worst)
	}

	// Exterior nodes should be negative; the largest values are worst.
	var errs ErrorPointSet
	for k, kind := range kinds {
		if kind == exteriorNode && values[k] > exteriorLevel {
			errs.Add(values[k], k/ny, k%ny)
		}
	}
	errs.Sort()
	var required ErrorPointSet
	for k := errs.Len() - 1; k >= 0; k-- {
		if e := errs.At(k); !required.HasNearby(e, xBound, yBound) {
			required.AddError(e)
		}
	}
	exteriorAdded := required.Len()
	ip.points.Exterior = m.PickOutExteriorPoints(selection(required, nx, ny), ip.points.Exterior)
	if ip.debugLevel >= 1 {
		ip.logf(" added a further %d exterior points %d not added", exteriorAdded, errs.Len()-exteriorAdded)
	}

	// Interior nodes should be positive; the smallest values are worst.
	errs.Clear()
	required.Clear()
	for k, kind := range kinds {
		if kind == interiorNode && values[k] < interiorLevel {
			errs.Add(values[k], k/ny, k%ny)
		}
	}
	errs.Sort()
	for k := 0; k < errs.Len(); k++ {
		if e := errs.At(k); !required.HasNearby(e, xBound, yBound) {
			required.AddError(e)
		}
	}
	interiorAdded := required.Len()
	ip.points.Interior = m.PickOutInteriorPoints(selection(required, nx, ny), ip.points.Interior)
	if ip.debugLevel >= 1 {
		ip.logf(" added a further %d interior points %d not added", interiorAdded, errs.Len()-interiorAdded)
	}

	return exteriorAdded + interiorAdded
}

// selection marks the nodes of set on an nx×ny grid
func selection(set ErrorPointSet, nx, ny int) saltmap.PrescribedGrid {
	grid := saltmap.NewPrescribedGrid(nx, ny)
	for k := 0; k < set.Len(); k++ {
		e := set.At(k)
		grid.Set(e.I, e.J, true)
	}
	return grid
}

// Package interval computes the implicit surface of a salt body between two
// age maps.
//
// An Interpolator gathers surface, exterior and interior points from the
// maps at the two ages of an interval, normalises their coordinates and
// fits a radial basis function interpolant that is zero on the surface of
// the body, positive inside and negative outside. The point set is then
// refined where the interpolant misclassifies map nodes, until every node
// is resolved or the pass limit is reached.
//
// Example usage:
//
//	cfg := config.DefaultConfig()
//	ip, err := interval.New(*cfg)
//	if err != nil {
//		return err
//	}
//	report, err := ip.ComputeInterpolator(lower, upper, 1)
//	if err != nil {
//		return err
//	}
//	inside := ip.Evaluate(models.Point{X: x, Y: y, Z: age}) > 0
package interval

import (
	"errors"
	"fmt"
	"log"
	"math"
	"path/filepath"
	"strings"

	"saltrbf/internal/models"
	"saltrbf/pkg/config"
	"saltrbf/pkg/linalg"
	"saltrbf/pkg/parallel"
	"saltrbf/pkg/precond"
	"saltrbf/pkg/rbf"
	"saltrbf/pkg/saltmap"
	"saltrbf/pkg/solver"
	"saltrbf/pkg/store"
	"saltrbf/pkg/visualization"
)

// State is the stage an Interpolator has reached
type State int

const (
	// Initialized: constructed, or points gathered but nothing solved yet
	Initialized State = iota
	// Assembled: coefficients computed for the current point set
	Assembled
	// Refining: searching the maps for misclassified nodes
	Refining
	// Converged: the last refinement pass added no points
	Converged
	// IterationCapReached: refinement stopped at the pass limit
	IterationCapReached
)

// String implements fmt.Stringer
func (s State) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case Assembled:
		return "assembled"
	case Refining:
		return "refining"
	case Converged:
		return "converged"
	case IterationCapReached:
		return "iteration cap reached"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ProgressCallback is a function that reports progress during the computation
type ProgressCallback func(completed, total int, message string)

// Report summarises a call to ComputeInterpolator
type Report struct {
	// Passes is the number of refinement passes run
	Passes int

	// Assemblies is the number of times the system was built and solved
	Assemblies int

	// PointCounts of the final point set, indexed by models.Category
	PointCounts [3]int

	// SolverStats holds the statistics of every solve in order
	SolverStats []solver.Stats

	// Fallbacks counts the solves that had to be continued without the
	// preconditioner; each adds a second entry to SolverStats
	Fallbacks int

	// Agreement is the fraction of the lower and upper map nodes whose sign
	// matches the salt distribution
	Agreement [2]float64

	State State
}

// Option configures an Interpolator
type Option func(*Interpolator)

// WithLogger sends diagnostics to logf instead of log.Printf
func WithLogger(logf func(format string, args ...any)) Option {
	return func(ip *Interpolator) { ip.logf = logf }
}

// WithProgressCallback reports assembly and refinement progress to cb
func WithProgressCallback(cb ProgressCallback) Option {
	return func(ip *Interpolator) { ip.progress = cb }
}

// Interpolator computes and evaluates the salt body interpolant of one age
// interval. It is not safe for concurrent use while computing; Evaluate may
// be called concurrently once ComputeInterpolator has returned.
type Interpolator struct {
	cfg    config.Config
	kernel rbf.Kernel
	degree rbf.Degree
	method solver.Method

	interpolant *rbf.Interpolant
	points      models.PointSet
	transform   Transform

	startAge, endAge float64

	state      State
	report     Report
	debugLevel int

	logf     func(format string, args ...any)
	progress ProgressCallback
}

// New returns an Interpolator for cfg. Configuration errors (unknown
// kernel or solver, unsupported polynomial degree, invalid parameters) are
// reported here and no Interpolator is returned.
func New(cfg config.Config, opts ...Option) (*Interpolator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	kernel, err := rbf.NewKernel(cfg.Interpolation.Kernel, cfg.Interpolation.Shape)
	if err != nil {
		return nil, err
	}
	degree := rbf.Degree(cfg.Interpolation.PolynomialDegree)
	if err := rbf.ValidateDegree(models.Dimension, degree); err != nil {
		return nil, err
	}
	method, err := solver.NewMethod(cfg.Solver.Method, cfg.Solver.Restart)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}
	interpolant, err := rbf.New(kernel, degree)
	if err != nil {
		return nil, err
	}

	ip := &Interpolator{
		cfg:         cfg,
		kernel:      kernel,
		degree:      degree,
		method:      method,
		interpolant: interpolant,
		transform:   IdentityTransform,
		logf:        log.Printf,
	}
	for _, opt := range opts {
		opt(ip)
	}
	return ip, nil
}

// State returns the current stage
func (ip *Interpolator) State() State { return ip.state }

// Report returns the summary of the last computation
func (ip *Interpolator) Report() Report { return ip.report }

// Points returns the current point set in original coordinates
func (ip *Interpolator) Points() models.PointSet { return ip.points }

// Transform returns the normalising transform of the current interval
func (ip *Interpolator) Transform() Transform { return ip.transform }

// StartAge returns the age of the lower map of the interval
func (ip *Interpolator) StartAge() float64 { return ip.startAge }

// EndAge returns the age of the upper map of the interval
func (ip *Interpolator) EndAge() float64 { return ip.endAge }

// Evaluate returns the interpolant at p, given in original coordinates.
// Positive values lie inside the body. Before any interpolant has been
// computed or restored it returns 0.
func (ip *Interpolator) Evaluate(p models.Point) float64 {
	return ip.interpolant.Evaluate(ip.transform.Apply(p))
}

// ComputeInterpolator builds the interpolant between the lower and upper
// maps and refines it. Previous results are discarded and the selection
// state of both maps is reset.
//
// Failing to reach the solver tolerance or the refinement pass limit is
// not an error; both are recorded in the returned Report. An error is
// returned if the point set cannot support an interpolant, for instance
// when a local preconditioner system is singular.
func (ip *Interpolator) ComputeInterpolator(lower, upper *saltmap.Map, debugLevel int) (Report, error) {
	if lower == nil || upper == nil {
		return Report{}, errors.New("interval: both maps are required")
	}
	ip.debugLevel = debugLevel
	ip.report = Report{}
	ip.state = Initialized
	ip.startAge, ip.endAge = lower.Age(), upper.Age()
	ip.transform = intervalTransform(lower, upper, ip.cfg.Interpolation.BoxSize)
	ip.interpolant.SetPoints(nil)

	ip.initialisePoints(lower, upper)
	if ip.points.Len() == 0 {
		return ip.report, errors.New("interval: maps yield no interpolation points")
	}
	if debugLevel >= 1 {
		c := ip.points.Counts()
		ip.logf(" Points count is: %d  %d  %d", c[models.Surface], c[models.Exterior], c[models.Interior])
		ip.logf(" Age bounds: %g  %g", ip.startAge, ip.endAge)
	}

	if err := ip.assemble(); err != nil {
		return ip.report, err
	}
	err := ip.refine(lower, upper)
	if err != nil {
		return ip.report, err
	}
	ip.report.PointCounts = ip.points.Counts()
	ip.report.State = ip.state
	for k, m := range []*saltmap.Map{lower, upper} {
		if ip.report.Agreement[k], err = ip.agreement(m); err != nil {
			return ip.report, err
		}
	}
	if debugLevel >= 1 {
		ip.logf(" Map agreement: %.4f  %.4f", ip.report.Agreement[0], ip.report.Agreement[1])
	}

	if dir := ip.cfg.Output.SnapshotDir; dir != "" {
		base := filepath.Join(dir, fmt.Sprintf("interval_%g_%g", ip.startAge, ip.endAge))
		if err := store.WriteFile(base+".rbf", ip.Snapshot()); err != nil {
			return ip.report, fmt.Errorf("interval: saving snapshot: %w", err)
		}
		if n := ip.cfg.Output.Sections; n > 0 {
			if err := ip.saveSections(lower, upper, n, base+"_sections"); err != nil {
				return ip.report, fmt.Errorf("interval: saving sections: %w", err)
			}
		}
	}
	return ip.report, nil
}

func (ip *Interpolator) agreement(m *saltmap.Map) (float64, error) {
	v := visualization.NewViewer(ip, m.XCoordinates(saltmap.Primal), m.YCoordinates(saltmap.Primal), []float64{m.Age()}, 0)
	return v.Agreement(m, 0)
}

// saveSections renders n age sections through the interval, with the
// interior and exterior constraints at full white and black.
func (ip *Interpolator) saveSections(lower, upper *saltmap.Map, n int, dir string) error {
	in := ip.cfg.Interpolation
	limit := max(math.Abs(in.InteriorConstraint), math.Abs(in.ExteriorConstraint))
	v, err := visualization.NewIntervalViewer(ip, lower, upper, n, limit)
	if err != nil {
		return err
	}
	return v.SaveSliceSequence("z", dir)
}

// intervalTransform scales the bounding box of both maps, border nodes
// included, into the interpolation box.
func intervalTransform(lower, upper *saltmap.Map, boxSize float64) Transform {
	var corners models.PointArray
	for _, m := range []*saltmap.Map{lower, upper} {
		xs, ys := m.XCoordinates(saltmap.Primal), m.YCoordinates(saltmap.Primal)
		corners = append(corners,
			models.Point{X: xs[0], Y: ys[0], Z: m.Age()},
			models.Point{X: xs[len(xs)-1], Y: ys[len(ys)-1], Z: m.Age()},
		)
	}
	lo, hi := corners.BoundingBox()
	return NewTransform(lo, hi, boxSize)
}

// initialisePoints gathers the initial point set: every boundary point, a
// random fraction of the interior points and the exterior points on a
// sub-sampled grid.
func (ip *Interpolator) initialisePoints(lower, upper *saltmap.Map) {
	r := ip.cfg.Refinement
	stride := func(dim int) int {
		return max(1, r.ExteriorResampleBase+int(r.ExteriorResampleFraction*float64(dim)))
	}

	lower.ResetSelection()
	upper.ResetSelection()
	ip.points = models.PointSet{}

	all := saltmap.NewRandomArbiter(1, r.Seed)
	ip.points.Surface = lower.PickOutBoundaryPoints(all, ip.points.Surface)
	ip.points.Surface = upper.PickOutBoundaryPoints(all, ip.points.Surface)

	sample := saltmap.NewRandomArbiter(r.InteriorFraction, r.Seed)
	ip.points.Interior = lower.PickOutInteriorPoints(sample, ip.points.Interior)
	ip.points.Interior = upper.PickOutInteriorPoints(sample, ip.points.Interior)

	grid := saltmap.SubsampledGrid{XStride: stride(lower.XDimension()), YStride: stride(lower.YDimension())}
	ip.points.Exterior = lower.PickOutExteriorPoints(grid, ip.points.Exterior)
	ip.points.Exterior = upper.PickOutExteriorPoints(grid, ip.points.Exterior)
}

// constraints returns the right-hand side for the current point set
func (ip *Interpolator) constraints() []float64 {
	in := ip.cfg.Interpolation
	values := make([]float64, 0, ip.points.Len())
	for range ip.points.Surface {
		values = append(values, in.SurfaceConstraint)
	}
	for range ip.points.Exterior {
		values = append(values, in.ExteriorConstraint)
	}
	for range ip.points.Interior {
		values = append(values, in.InteriorConstraint)
	}
	return rbf.RightHandSide(values, ip.degree)
}

func (ip *Interpolator) newMatrix(size int) linalg.Matrix {
	if strings.EqualFold(ip.cfg.Interpolation.MatrixLayout, "row") {
		return linalg.NewRowMatrix(size, size)
	}
	return linalg.NewFortranMatrix(size, size)
}

// assemble builds the interpolation system and preconditioner for the
// current point set and solves for the coefficients.
func (ip *Interpolator) assemble() error {
	points := ip.transform.ApplyArray(ip.points.All())
	n := len(points)
	size := n + rbf.NumberOfPolynomialTerms(models.Dimension, ip.degree)

	neighbours := ip.cfg.Preconditioner.Neighbours
	if neighbours == 0 {
		neighbours = precond.DefaultNeighbours(n)
	}
	if ip.debugLevel >= 1 {
		ip.logf(" Starting interpolation assembly and computation:")
		ip.logf(" There are %d points, %d neighbours per cardinal function", n, precond.ClampNeighbours(neighbours, n))
	}
	ip.reportProgress(0, 0, fmt.Sprintf("Assembling system of order %d", size))

	m := ip.newMatrix(size)
	// Points lie on two age planes that the transform puts many node
	// spacings apart. Neighbours are searched horizontally so that every
	// cardinal function spans both planes; otherwise a vector constant on
	// each plane is annihilated and the preconditioner is singular.
	c, err := precond.New(points, ip.degree, neighbours, precond.WithSearchScaling(models.Point{X: 1, Y: 1}))
	if err != nil {
		return fmt.Errorf("interval: %w", err)
	}

	var (
		a   solver.Operator
		pre solver.Preconditioner
	)
	if threads := ip.cfg.Processing.NumCores; threads > 1 {
		pm := parallel.NewMatrix(m, threads)
		defer pm.Close()
		if err := pm.AssembleInterpolation(ip.kernel, points, ip.degree); err != nil {
			return fmt.Errorf("interval: assembling matrix: %w", err)
		}
		pp := parallel.NewPreconditioner(c, threads)
		defer pp.Close()
		if err := pp.Assemble(m); err != nil {
			return fmt.Errorf("interval: %w", err)
		}
		a, pre = pm, pp
	} else {
		if err := rbf.AssembleMatrix(ip.kernel, points, ip.degree, m); err != nil {
			return fmt.Errorf("interval: assembling matrix: %w", err)
		}
		if err := c.Assemble(m); err != nil {
			return fmt.Errorf("interval: %w", err)
		}
		a, pre = m, c
	}

	settings := solver.Settings{
		Tolerance:     ip.cfg.Solver.Tolerance,
		MaxIterations: ip.cfg.Solver.MaxIterations,
	}
	if ip.debugLevel >= 2 {
		settings.Logf = ip.logf
	}
	res, err := ip.method.Solve(a, pre, ip.constraints(), settings)
	if err != nil {
		return fmt.Errorf("interval: solving for coefficients: %w", err)
	}
	if ip.debugLevel >= 1 {
		ip.logf(" Linear solver took %d iterations", res.Stats.Iterations)
	}
	ip.report.SolverStats = append(ip.report.SolverStats, res.Stats)
	if !res.Stats.Converged {
		ip.logf(" Warning: preconditioned solver stopped at relative residual %.3e after %d iterations, continuing without preconditioner",
			res.Stats.RelativeResidual, res.Stats.Iterations)
		settings.X0 = res.X
		res, err = ip.method.Solve(a, solver.Identity{}, ip.constraints(), settings)
		if err != nil {
			return fmt.Errorf("interval: solving for coefficients: %w", err)
		}
		ip.report.Fallbacks++
		ip.report.SolverStats = append(ip.report.SolverStats, res.Stats)
		if !res.Stats.Converged {
			ip.logf(" Warning: linear solver stopped at relative residual %.3e after %d iterations",
				res.Stats.RelativeResidual, res.Stats.Iterations)
		}
	}

	ip.interpolant.SetPoints(points)
	if err := ip.interpolant.SetCoefficients(res.X); err != nil {
		return fmt.Errorf("interval: %w", err)
	}
	ip.report.Assemblies++
	ip.state = Assembled
	return nil
}

func (ip *Interpolator) reportProgress(completed, total int, message string) {
	if ip.progress != nil {
		ip.progress(completed, total, message)
	}
}

// Snapshot returns the data needed to evaluate the interpolant later, with
// the points in original coordinates.
func (ip *Interpolator) Snapshot() store.Snapshot {
	s := store.Snapshot{
		Points:      ip.points.All(),
		Translation: ip.transform.Translation,
		Scaling:     ip.transform.Scaling,
		StartAge:    ip.startAge,
		EndAge:      ip.endAge,
		Degree:      int(ip.degree),
		Kernel:      ip.kernel.Name(),
	}
	if g, ok := ip.kernel.(rbf.Gaussian); ok {
		s.Shape = g.Shape
	}
	if c := ip.interpolant.Coefficients(); c != nil {
		s.Coefficients = append([]float64(nil), c...)
	}
	return s
}

// Restore replaces the interpolant with one saved by Snapshot. The point
// categories are not part of a snapshot, so refinement cannot continue
// from a restored interpolant.
func (ip *Interpolator) Restore(s store.Snapshot) error {
	kernel, err := rbf.NewKernel(s.Kernel, s.Shape)
	if err != nil {
		return err
	}
	interpolant, err := rbf.New(kernel, rbf.Degree(s.Degree))
	if err != nil {
		return err
	}
	transform := Transform{Translation: s.Translation, Scaling: s.Scaling}
	interpolant.SetPoints(transform.ApplyArray(s.Points))
	if err := interpolant.SetCoefficients(s.Coefficients); err != nil {
		return err
	}

	ip.kernel = kernel
	ip.degree = rbf.Degree(s.Degree)
	ip.interpolant = interpolant
	ip.transform = transform
	ip.startAge, ip.endAge = s.StartAge, s.EndAge
	ip.points = models.PointSet{}
	ip.report = Report{}
	ip.state = Assembled
	return nil
}

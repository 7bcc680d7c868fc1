// Package reconstruction builds the salt body through a sequence of maps of
// increasing age, one interval interpolator per pair of consecutive maps,
// and evaluates the resulting piecewise implicit surface.
package reconstruction

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"saltrbf/internal/models"
	"saltrbf/pkg/config"
	"saltrbf/pkg/interval"
	"saltrbf/pkg/saltmap"
)

// MapExtension is the file extension of the maps read by Process
const MapExtension = ".map"

// ValidationMetrics summarises how well the interpolants reproduce the maps
type ValidationMetrics struct {
	// MeanAgreement is the mean fraction of map nodes classified correctly,
	// over both ends of every interval
	MeanAgreement float64

	// MinAgreement is the worst of those fractions
	MinAgreement float64

	// StdAgreement is their standard deviation
	StdAgreement float64

	// Points is the total number of interpolation points
	Points int

	// Assemblies is the total number of solves
	Assemblies int

	// Converged counts the intervals whose refinement converged
	Converged int
}

// Params holds the reconstruction parameters
type Params struct {
	// InputDir is the directory holding the ASCII maps, one per age
	InputDir string

	// SpaceScaling and TimeScaling multiply the node spacing and the age of
	// every map read
	SpaceScaling float64
	TimeScaling  float64

	// Config is used for every interval
	Config config.Config

	// MaxConcurrent bounds the number of intervals computed at once;
	// zero computes all of them concurrently
	MaxConcurrent int

	// Logf receives progress messages; nil selects log.Printf
	Logf func(format string, args ...any)
}

// Reconstructor computes one interval interpolator between each pair of
// consecutive maps
type Reconstructor struct {
	params *Params

	// maps sorted by age
	maps []*saltmap.Map

	intervals []*interval.Interpolator
	reports   []interval.Report

	metrics ValidationMetrics
}

// NewReconstructor creates a new reconstructor instance with the provided parameters
func NewReconstructor(params *Params) *Reconstructor {
	if params.Logf == nil {
		params.Logf = log.Printf
	}
	return &Reconstructor{params: params}
}

// Process reads every map in InputDir and computes the intervals between them
func (r *Reconstructor) Process() error {
	r.params.Logf("Step 1: Loading maps...")
	maps, err := r.loadMaps()
	if err != nil {
		return fmt.Errorf("failed to load maps: %w", err)
	}
	return r.ProcessMaps(maps)
}

// ProcessMaps computes the intervals between the given maps, which need not
// be sorted. At least two maps of distinct ages are required.
func (r *Reconstructor) ProcessMaps(maps []*saltmap.Map) error {
	if len(maps) < 2 {
		return fmt.Errorf("need at least 2 maps, got %d", len(maps))
	}
	sorted := append([]*saltmap.Map(nil), maps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Age() < sorted[j].Age() })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Age() == sorted[i-1].Age() {
			return fmt.Errorf("two maps at age %g", sorted[i].Age())
		}
	}
	r.maps = sorted

	r.params.Logf("Step 2: Computing %d intervals...", len(sorted)-1)
	if err := r.processIntervalsInParallel(); err != nil {
		return fmt.Errorf("failed to process intervals: %w", err)
	}

	r.params.Logf("Step 3: Calculating validation metrics...")
	r.calculateValidationMetrics()
	return nil
}

// loadMaps reads every map file of the input directory
func (r *Reconstructor) loadMaps() ([]*saltmap.Map, error) {
	entries, err := os.ReadDir(r.params.InputDir)
	if err != nil {
		return nil, err
	}

	var maps []*saltmap.Map
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), MapExtension) {
			continue
		}
		m, err := readMap(filepath.Join(r.params.InputDir, entry.Name()), r.params.SpaceScaling, r.params.TimeScaling)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		maps = append(maps, m)
	}
	if len(maps) == 0 {
		return nil, fmt.Errorf("no %s files found in %s", MapExtension, r.params.InputDir)
	}

	r.params.Logf("Loaded %d maps", len(maps))
	return maps, nil
}

func readMap(path string, spaceScaling, timeScaling float64) (*saltmap.Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return saltmap.Read(f, spaceScaling, timeScaling)
}

// processIntervalsInParallel runs one goroutine per interval. Each interval
// works on clones of its maps since neighbouring intervals share one.
func (r *Reconstructor) processIntervalsInParallel() error {
	total := len(r.maps) - 1
	r.intervals = make([]*interval.Interpolator, total)
	r.reports = make([]interval.Report, total)

	type processingResult struct {
		idx    int
		ip     *interval.Interpolator
		report interval.Report
		err    error
	}
	resultChan := make(chan processingResult)

	limit := r.params.MaxConcurrent
	if limit <= 0 || limit > total {
		limit = total
	}
	slots := make(chan struct{}, limit)

	for i := 0; i < total; i++ {
		go func(idx int, lower, upper *saltmap.Map) {
			slots <- struct{}{}
			defer func() { <-slots }()

			res := processingResult{idx: idx}
			res.ip, res.err = interval.New(r.params.Config, interval.WithLogger(r.params.Logf))
			if res.err == nil {
				res.report, res.err = res.ip.ComputeInterpolator(lower, upper, r.params.Config.Output.DebugLevel)
			}
			resultChan <- res
		}(i, r.maps[i].Clone(), r.maps[i+1].Clone())
	}

	var errs []error
	for completed := 1; completed <= total; completed++ {
		res := <-resultChan
		if res.err != nil {
			errs = append(errs, fmt.Errorf("interval [%g, %g]: %w",
				r.maps[res.idx].Age(), r.maps[res.idx+1].Age(), res.err))
			continue
		}
		r.intervals[res.idx] = res.ip
		r.reports[res.idx] = res.report
		r.params.Logf("Computing intervals: %d/%d complete (%v)", completed, total, res.report.State)
	}
	if len(errs) > 0 {
		r.intervals = nil
		return errors.Join(errs...)
	}
	return nil
}

func (r *Reconstructor) calculateValidationMetrics() {
	agreement := make([]float64, 0, 2*len(r.reports))
	r.metrics = ValidationMetrics{MinAgreement: 1}
	for _, rep := range r.reports {
		for _, a := range rep.Agreement {
			agreement = append(agreement, a)
			r.metrics.MinAgreement = min(r.metrics.MinAgreement, a)
		}
		for _, n := range rep.PointCounts {
			r.metrics.Points += n
		}
		r.metrics.Assemblies += rep.Assemblies
		if rep.State == interval.Converged {
			r.metrics.Converged++
		}
	}
	r.metrics.MeanAgreement, r.metrics.StdAgreement = stat.MeanStdDev(agreement, nil)
	r.params.Logf("Map agreement: mean %.4f, min %.4f, std %.4f",
		r.metrics.MeanAgreement, r.metrics.MinAgreement, r.metrics.StdAgreement)
}

// GetMetrics returns the validation metrics of the last run
func (r *Reconstructor) GetMetrics() ValidationMetrics {
	return r.metrics
}

// Intervals returns the interval interpolators in order of age
func (r *Reconstructor) Intervals() []*interval.Interpolator {
	return r.intervals
}

// Reports returns the interval reports in order of age
func (r *Reconstructor) Reports() []interval.Report {
	return r.reports
}

// Ages returns the ages of the maps in ascending order
func (r *Reconstructor) Ages() []float64 {
	ages := make([]float64, len(r.maps))
	for i, m := range r.maps {
		ages[i] = m.Age()
	}
	return ages
}

// Locate returns the index of the interval containing age. Ages outside the
// sequence map to the first or last interval. Before a successful run there
// are no intervals and it returns -1.
func (r *Reconstructor) Locate(age float64) int {
	n := len(r.intervals)
	if n == 0 {
		return -1
	}
	// first interval whose end is not below age
	k := sort.Search(n, func(i int) bool { return r.maps[i+1].Age() >= age })
	return min(k, n-1)
}

// Evaluate returns the interpolant of the interval containing p.Z at p.
// Positive values lie inside the body. Before a successful run it returns 0.
func (r *Reconstructor) Evaluate(p models.Point) float64 {
	k := r.Locate(p.Z)
	if k < 0 {
		return 0
	}
	return r.intervals[k].Evaluate(p)
}

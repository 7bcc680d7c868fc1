package reconstruction

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"saltrbf/internal/models"
	"saltrbf/pkg/config"
	"saltrbf/pkg/interval"
	"saltrbf/pkg/rbf"
	"saltrbf/pkg/saltmap"
)

// discMapText renders an n×n map with a centred disc in the ASCII format
func discMapText(age float64, n int, radius float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%g\n0 0\n1 1\n%d %d\n", age, n, n)
	c := float64(n-1) / 2
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if math.Hypot(float64(i)-c, float64(j)-c) <= radius {
				b.WriteByte('o')
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// writeMaps creates a directory with three shrinking discs, written in
// reverse age order, and an unrelated file
func writeMaps(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"a.map":      discMapText(2, 10, 2.5),
		"b.map":      discMapText(1, 10, 3),
		"c.MAP":      discMapText(0, 10, 3.5),
		"readme.txt": "not a map",
	}
	for name, text := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(text), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	return dir
}

func testParams(t *testing.T, dir string) *Params {
	cfg := config.DefaultConfig()
	cfg.Processing.NumCores = 1
	cfg.Refinement.InteriorFraction = 1
	cfg.Solver.Tolerance = 1e-8
	return &Params{
		InputDir:     dir,
		SpaceScaling: 1,
		TimeScaling:  1,
		Config:       *cfg,
		Logf:         t.Logf,
	}
}

// TestBasicReconstructor runs the whole pipeline on three maps
func TestBasicReconstructor(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	r := NewReconstructor(testParams(t, writeMaps(t)))
	if err := r.Process(); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if ages := r.Ages(); len(ages) != 3 || ages[0] != 0 || ages[1] != 1 || ages[2] != 2 {
		t.Fatalf("Expected ages [0 1 2], got %v", ages)
	}
	if len(r.Intervals()) != 2 || len(r.Reports()) != 2 {
		t.Fatalf("Expected 2 intervals, got %d", len(r.Intervals()))
	}
	for k, ip := range r.Intervals() {
		if ip.StartAge() != float64(k) || ip.EndAge() != float64(k+1) {
			t.Errorf("Interval %d spans [%g, %g]", k, ip.StartAge(), ip.EndAge())
		}
	}

	m := r.GetMetrics()
	if m.MeanAgreement < 0.9 || m.MinAgreement > m.MeanAgreement || m.StdAgreement < 0 {
		t.Errorf("Unexpected agreement metrics %+v", m)
	}
	if m.Points == 0 || m.Assemblies < 2 {
		t.Errorf("Unexpected totals %+v", m)
	}

	for _, z := range []float64{0.5, 1.5} {
		if v := r.Evaluate(models.Point{X: 4.5, Y: 4.5, Z: z}); v <= 0 {
			t.Errorf("Centre at age %g evaluates to %v", z, v)
		}
		if v := r.Evaluate(models.Point{X: -1, Y: -1, Z: z}); v >= 0 {
			t.Errorf("Corner at age %g evaluates to %v", z, v)
		}
	}
	p := models.Point{X: 2, Y: 6, Z: 1.25}
	if a, b := r.Evaluate(p), r.Intervals()[1].Evaluate(p); a != b {
		t.Errorf("Evaluate used the wrong interval: %v vs %v", a, b)
	}
}

// TestConcurrencyDoesNotChangeResults compares concurrent and one at a time runs
func TestConcurrencyDoesNotChangeResults(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	dir := writeMaps(t)

	var results [][]float64
	for _, limit := range []int{0, 1} {
		params := testParams(t, dir)
		params.MaxConcurrent = limit
		r := NewReconstructor(params)
		if err := r.Process(); err != nil {
			t.Fatalf("MaxConcurrent %d: %v", limit, err)
		}
		var values []float64
		for _, z := range []float64{0.2, 0.9, 1.1, 1.8} {
			values = append(values, r.Evaluate(models.Point{X: 3, Y: 5, Z: z}))
		}
		results = append(results, values)
	}
	for i := range results[0] {
		if results[0][i] != results[1][i] {
			t.Errorf("Value %d differs: %v vs %v", i, results[0][i], results[1][i])
		}
	}
}

func TestLocate(t *testing.T) {
	maps := make([]*saltmap.Map, 4)
	for i := range maps {
		m, err := saltmap.New(float64(10*i), 0, 0, 1, 1, [][]bool{{true}})
		if err != nil {
			t.Fatal(err)
		}
		maps[i] = m
	}
	// Locate only looks at the map ages and the number of intervals
	r := &Reconstructor{maps: maps, intervals: make([]*interval.Interpolator, 3)}
	for _, tc := range []struct {
		age  float64
		want int
	}{
		{-5, 0}, {0, 0}, {5, 0}, {10, 0}, {10.5, 1}, {20, 1}, {25, 2}, {30, 2}, {99, 2},
	} {
		if got := r.Locate(tc.age); got != tc.want {
			t.Errorf("Locate(%g) = %d, expected %d", tc.age, got, tc.want)
		}
	}
}

func TestEvaluateBeforeProcessing(t *testing.T) {
	r := NewReconstructor(&Params{})
	if v := r.Evaluate(models.Point{X: 1, Y: 1, Z: 1}); v != 0 {
		t.Errorf("Expected 0, got %v", v)
	}
	for _, age := range []float64{-1, 0, 1} {
		if k := r.Locate(age); k != -1 {
			t.Errorf("Locate(%g) before processing = %d, expected -1", age, k)
		}
	}

	// A failed run leaves the maps loaded but no intervals
	params := testParams(t, writeMaps(t))
	params.Config.Interpolation.Kernel = "multiquadric"
	r = NewReconstructor(params)
	if err := r.Process(); err == nil {
		t.Fatal("Expected error for an unknown kernel, got nil")
	}
	if k := r.Locate(0.5); k != -1 {
		t.Errorf("Locate after a failed run = %d, expected -1", k)
	}
	if v := r.Evaluate(models.Point{X: 4.5, Y: 4.5, Z: 0.5}); v != 0 {
		t.Errorf("Evaluate after a failed run = %v, expected 0", v)
	}
}

func TestProcessErrors(t *testing.T) {
	one, err := saltmap.New(0, 0, 0, 1, 1, [][]bool{{true}})
	if err != nil {
		t.Fatal(err)
	}
	same, err := saltmap.New(0, 0, 0, 1, 1, [][]bool{{false}})
	if err != nil {
		t.Fatal(err)
	}

	r := NewReconstructor(testParams(t, t.TempDir()))
	if err := r.ProcessMaps([]*saltmap.Map{one}); err == nil {
		t.Error("Expected error for a single map, got nil")
	}
	if err := r.ProcessMaps([]*saltmap.Map{one, same}); err == nil {
		t.Error("Expected error for two maps of one age, got nil")
	}
	if err := r.Process(); err == nil {
		t.Error("Expected error for a directory without maps, got nil")
	}

	bad := t.TempDir()
	if err := os.WriteFile(filepath.Join(bad, "x.map"), []byte("1\n0 0\n1 1\n2 2\nox\n"), 0644); err != nil {
		t.Fatal(err)
	}
	r = NewReconstructor(testParams(t, bad))
	if err := r.Process(); !errors.Is(err, saltmap.ErrFormat) {
		t.Errorf("Expected ErrFormat, got %v", err)
	}

	params := testParams(t, writeMaps(t))
	params.Config.Interpolation.Kernel = "multiquadric"
	r = NewReconstructor(params)
	if err := r.Process(); !errors.Is(err, rbf.ErrUnknownKernel) {
		t.Errorf("Expected ErrUnknownKernel, got %v", err)
	}
	if len(r.Intervals()) != 0 {
		t.Errorf("Expected no intervals after a failed run, got %d", len(r.Intervals()))
	}
}

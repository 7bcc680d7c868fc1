package saltmap

import (
	"errors"
	"math"
	"strings"
	"testing"
)

// disc returns an n×n distribution with a centred disc of the given radius
func disc(n int, radius float64) [][]bool {
	inside := make([][]bool, n)
	c := float64(n-1) / 2
	for i := range inside {
		inside[i] = make([]bool, n)
		for j := range inside[i] {
			inside[i][j] = math.Hypot(float64(i)-c, float64(j)-c) <= radius
		}
	}
	return inside
}

func TestSingleNodeMorphology(t *testing.T) {
	inside := [][]bool{
		{false, false, false},
		{false, true, false},
		{false, false, false},
	}
	m, err := New(10, 0, 0, 1, 1, inside)
	if err != nil {
		t.Fatal(err)
	}
	if m.InsideCount() != 1 || m.OutsideCount() != 8 {
		t.Errorf("want 1 inside and 8 outside, got %d and %d", m.InsideCount(), m.OutsideCount())
	}
	if got := m.Eroded().Count(); got != 0 {
		t.Errorf("eroded: want no nodes, got %d", got)
	}
	// The salt node is primal (2, 2); dilation covers its 3x3 neighbourhood.
	if got := m.Dilated().Count(); got != 9 {
		t.Errorf("dilated: want 9 nodes, got %d", got)
	}
	for i := 1; i <= 3; i++ {
		for j := 1; j <= 3; j++ {
			if m.PointIsExterior(i, j) {
				t.Errorf("node (%d,%d) next to salt is exterior", i, j)
			}
		}
	}
	if !m.PointIsExterior(0, 0) || !m.PointIsExterior(4, 4) {
		t.Error("border nodes away from salt should be exterior")
	}
	// The four cells around the node are on the boundary.
	if got := m.Boundary().Count(); got != 4 {
		t.Errorf("boundary: want 4 cells, got %d", got)
	}
	for _, c := range [][2]int{{1, 1}, {1, 2}, {2, 1}, {2, 2}} {
		if !m.PointIsOnBoundary(c[0], c[1]) {
			t.Errorf("cell %v should be on the boundary", c)
		}
	}
}

func TestDiscMaps(t *testing.T) {
	m, err := New(0, 0, 0, 1, 1, disc(12, 4))
	if err != nil {
		t.Fatal(err)
	}
	d := m.Distribution()
	for i := d.First(1); i <= d.Last(1); i++ {
		for j := d.First(2); j <= d.Last(2); j++ {
			if m.Eroded().At(i, j) && !d.At(i, j) {
				t.Errorf("eroded node (%d,%d) outside the body", i, j)
			}
			if d.At(i, j) && !m.Dilated().At(i, j) {
				t.Errorf("body node (%d,%d) not in dilated map", i, j)
			}
			if m.PointIsInterior(i, j) && m.PointIsExterior(i, j) {
				t.Errorf("node (%d,%d) both interior and exterior", i, j)
			}
		}
	}
	if m.Eroded().Count() == 0 || m.Boundary().Count() == 0 {
		t.Error("disc should have interior and boundary nodes")
	}
	if m.Eroded().Count() >= d.Count() || d.Count() >= m.Dilated().Count() {
		t.Error("erosion should shrink and dilation grow the body")
	}
}

func TestCoordinates(t *testing.T) {
	m, err := New(5, 100, 200, 10, 20, disc(4, 1))
	if err != nil {
		t.Fatal(err)
	}
	wantX := []float64{90, 100, 110, 120, 130, 140}
	for i, x := range m.XCoordinates(Primal) {
		if x != wantX[i] {
			t.Errorf("primal x[%d]: want %v, got %v", i, wantX[i], x)
		}
	}
	wantDualY := []float64{190, 210, 230, 250, 270}
	for j, y := range m.YCoordinates(Dual) {
		if y != wantDualY[j] {
			t.Errorf("dual y[%d]: want %v, got %v", j, wantDualY[j], y)
		}
	}
	p := m.Point(Dual, 1, 2)
	if p.X != 105 || p.Y != 230 || p.Z != 5 {
		t.Errorf("dual point (1,2): got %+v", p)
	}
}

func TestRead(t *testing.T) {
	const text = `2.5
100 200
10 20
3 4
....
.oo.
 . o o .
`
	m, err := Read(strings.NewReader(text), 2, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if m.Age() != 2500 {
		t.Errorf("age: want 2500, got %v", m.Age())
	}
	if m.XDimension() != 3 || m.YDimension() != 4 {
		t.Errorf("dimensions: want 3x4, got %dx%d", m.XDimension(), m.YDimension())
	}
	if x := m.XCoordinates(Primal); x[1] != 100 || x[2] != 120 {
		t.Errorf("spacing not scaled: %v", x)
	}
	if m.InsideCount() != 4 {
		t.Errorf("want 4 salt nodes, got %d", m.InsideCount())
	}
	if !m.Distribution().At(2, 2) || m.Distribution().At(1, 2) {
		t.Error("salt nodes misplaced")
	}
}

func TestReadErrors(t *testing.T) {
	for name, text := range map[string]string{
		"header":     "1 2 3",
		"dimensions": "1\n0 0\n1 1\n0 3\n",
		"character":  "1\n0 0\n1 1\n1 2\nox\n",
		"short":      "1\n0 0\n1 1\n2 2\no.o\n",
	} {
		if _, err := Read(strings.NewReader(text), 1, 1); !errors.Is(err, ErrFormat) {
			t.Errorf("%s: want ErrFormat, got %v", name, err)
		}
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := New(0, 0, 0, 1, 1, nil); !errors.Is(err, ErrFormat) {
		t.Errorf("empty: want ErrFormat, got %v", err)
	}
	if _, err := New(0, 0, 0, 1, 1, [][]bool{{true}, {true, false}}); !errors.Is(err, ErrFormat) {
		t.Errorf("ragged: want ErrFormat, got %v", err)
	}
	if _, err := New(0, 0, 0, 0, 1, [][]bool{{true}}); !errors.Is(err, ErrFormat) {
		t.Errorf("spacing: want ErrFormat, got %v", err)
	}
}

func TestPickOut(t *testing.T) {
	m, err := New(3, 0, 0, 1, 1, disc(12, 4))
	if err != nil {
		t.Fatal(err)
	}

	boundary := m.PickOutBoundaryPoints(NewRandomArbiter(1, 1), nil)
	if len(boundary) != m.Boundary().Count() {
		t.Errorf("threshold 1: want all %d boundary points, got %d", m.Boundary().Count(), len(boundary))
	}
	for _, p := range boundary {
		if p.Z != 3 {
			t.Errorf("point %+v not at the map age", p)
		}
	}
	if again := m.PickOutBoundaryPoints(NewRandomArbiter(1, 1), nil); len(again) != 0 {
		t.Errorf("selected points picked out twice: %d", len(again))
	}

	exterior := m.PickOutExteriorPoints(SubsampledGrid{XStride: 3, YStride: 3}, nil)
	if len(exterior) == 0 {
		t.Fatal("no exterior points")
	}
	xs, ys := m.XCoordinates(Primal), m.YCoordinates(Primal)
	for i := range xs {
		for j := range ys {
			if m.PointHasBeenSelected(Primal, i, j) && (i%3 != 0 || j%3 != 0 || !m.PointIsExterior(i, j)) {
				t.Errorf("node (%d,%d) wrongly selected", i, j)
			}
		}
	}

	grid := NewPrescribedGrid(len(xs), len(ys))
	grid.Set(6, 6, true)
	grid.Set(0, 1, true)
	interior := m.PickOutInteriorPoints(grid, nil)
	if len(interior) != 1 || interior[0].X != xs[6] || interior[0].Y != ys[6] {
		t.Errorf("prescribed grid: want node (6,6) only, got %v", interior)
	}

	m.ResetSelection()
	if m.PointHasBeenSelected(Primal, 6, 6) || m.PointHasBeenSelected(Dual, 0, 0) {
		t.Error("selection not reset")
	}
}

func TestCloneHasOwnSelection(t *testing.T) {
	m, err := New(0, 0, 0, 1, 1, disc(10, 3))
	if err != nil {
		t.Fatal(err)
	}
	c := m.Clone()
	all := NewRandomArbiter(1, 1)
	n := len(m.PickOutBoundaryPoints(all, nil))
	if n == 0 {
		t.Fatal("no boundary points")
	}
	if got := len(c.PickOutBoundaryPoints(all, nil)); got != n {
		t.Errorf("clone picked out %d boundary points, want %d", got, n)
	}
	if c.Distribution() != m.Distribution() || c.Age() != m.Age() {
		t.Error("clone does not share the map data")
	}
}

func TestRandomArbiterIsReproducible(t *testing.T) {
	a, b := NewRandomArbiter(0.3, 42), NewRandomArbiter(0.3, 42)
	var selected int
	for k := 0; k < 1000; k++ {
		sa, sb := a.Select(k, k), b.Select(k, k)
		if sa != sb {
			t.Fatalf("draw %d differs", k)
		}
		if sa {
			selected++
		}
	}
	if selected < 200 || selected > 400 {
		t.Errorf("threshold 0.3 selected %d of 1000", selected)
	}
}

func TestBinaryMapBounds(t *testing.T) {
	b := NewBinaryMap(-1, 1, 2, 3)
	b.Set(-1, 3, true)
	if !b.At(-1, 3) || b.Count() != 1 {
		t.Error("set flag not stored")
	}
	if got, want := b.String(), ".o\n..\n..\n"; got != want {
		t.Errorf("String: want %q, got %q", want, got)
	}
	defer func() {
		if recover() == nil {
			t.Error("want panic for out of range index")
		}
	}()
	b.At(2, 2)
}

// Package saltmap holds the salt body distribution of a single geological
// age on a regular map grid and picks out the interpolation points that
// describe it.
//
// The distribution is given on nx×ny nodes. It is stored on a primal grid
// with one extra border node on each side, so that the body is always
// closed, and a dual grid of cell mid points on which the boundary of the
// body is found. Interior points come from the eroded distribution,
// exterior points from the complement of the dilated one.
package saltmap

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"unicode"

	"saltrbf/internal/models"
)

// ErrFormat is returned when a map file cannot be parsed
var ErrFormat = errors.New("saltmap: malformed map")

// Characters of the ASCII map format
const (
	SaltChar  = 'o'
	EmptyChar = '.'
)

// BoundaryExtensionFactor scales the spacing of the border nodes
const BoundaryExtensionFactor = 1.0

// GridKind selects the primal or the dual grid
type GridKind int

const (
	Primal GridKind = iota
	Dual
)

// Map is the salt distribution at one age
type Map struct {
	age float64
	nx  int
	ny  int

	primalX, primalY []float64
	dualX, dualY     []float64

	distribution *BinaryMap
	eroded       *BinaryMap
	dilated      *BinaryMap
	boundary     *BinaryMap

	primalChosen *BinaryMap
	dualChosen   *BinaryMap

	insideCount  int
	outsideCount int
}

// New returns the map for inside[i][j], i along x and j along y, with
// node (0, 0) at the origin.
func New(age, originX, originY, deltaX, deltaY float64, inside [][]bool) (*Map, error) {
	nx := len(inside)
	if nx == 0 || len(inside[0]) == 0 {
		return nil, fmt.Errorf("%w: empty distribution", ErrFormat)
	}
	ny := len(inside[0])
	for i, row := range inside {
		if len(row) != ny {
			return nil, fmt.Errorf("%w: row %d has %d nodes, expected %d", ErrFormat, i, len(row), ny)
		}
	}
	if deltaX <= 0 || deltaY <= 0 {
		return nil, fmt.Errorf("%w: non-positive spacing %g, %g", ErrFormat, deltaX, deltaY)
	}

	m := &Map{
		age:          age,
		nx:           nx,
		ny:           ny,
		primalX:      primalCoordinates(nx, originX, deltaX),
		primalY:      primalCoordinates(ny, originY, deltaY),
		distribution: NewBinaryMap(0, nx+1, 0, ny+1),
		eroded:       NewBinaryMap(0, nx+1, 0, ny+1),
		dilated:      NewBinaryMap(0, nx+1, 0, ny+1),
		boundary:     NewBinaryMap(0, nx, 0, ny),
		primalChosen: NewBinaryMap(0, nx+1, 0, ny+1),
		dualChosen:   NewBinaryMap(0, nx, 0, ny),
	}
	m.dualX = dualCoordinates(m.primalX)
	m.dualY = dualCoordinates(m.primalY)

	for i := 1; i <= nx; i++ {
		for j := 1; j <= ny; j++ {
			v := inside[i-1][j-1]
			m.distribution.Set(i, j, v)
			if v {
				m.insideCount++
			} else {
				m.outsideCount++
			}
		}
	}
	Erode(m.distribution, m.eroded)
	Dilate(m.distribution, m.dilated)
	DetectEdge(m.distribution, m.boundary)
	return m, nil
}

// Read parses a map in the ASCII format
//
//	age
//	originX originY
//	deltaX deltaY
//	nx ny
//	nx*ny characters, 'o' for salt and '.' for none, j varying fastest
//
// The age is multiplied by timeScaling and the spacing by spaceScaling.
func Read(r io.Reader, spaceScaling, timeScaling float64) (*Map, error) {
	br := bufio.NewReader(r)
	var (
		age              float64
		originX, originY float64
		deltaX, deltaY   float64
		nx, ny           int
	)
	if _, err := fmt.Fscan(br, &age, &originX, &originY, &deltaX, &deltaY, &nx, &ny); err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrFormat, err)
	}
	if nx <= 0 || ny <= 0 {
		return nil, fmt.Errorf("%w: map dimensions %dx%d", ErrFormat, nx, ny)
	}

	inside := make([][]bool, nx)
	for i := range inside {
		inside[i] = make([]bool, ny)
		for j := range inside[i] {
			c, err := nextNonSpace(br)
			if err != nil {
				return nil, fmt.Errorf("%w: node (%d,%d): %w", ErrFormat, i, j, err)
			}
			switch c {
			case SaltChar:
				inside[i][j] = true
			case EmptyChar:
			default:
				return nil, fmt.Errorf("%w: unexpected character %q at node (%d,%d)", ErrFormat, c, i, j)
			}
		}
	}
	return New(age*timeScaling, originX, originY, deltaX*spaceScaling, deltaY*spaceScaling, inside)
}

func nextNonSpace(br *bufio.Reader) (rune, error) {
	for {
		c, _, err := br.ReadRune()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		if !unicode.IsSpace(c) {
			return c, nil
		}
	}
}

func primalCoordinates(n int, origin, delta float64) []float64 {
	extension := BoundaryExtensionFactor * delta
	c := make([]float64, n+2)
	c[0] = origin - extension
	for i := 1; i <= n; i++ {
		c[i] = origin + float64(i-1)*delta
	}
	c[n+1] = c[n] + extension
	return c
}

func dualCoordinates(primal []float64) []float64 {
	c := make([]float64, len(primal)-1)
	for i := range c {
		c[i] = 0.5 * (primal[i] + primal[i+1])
	}
	return c
}

// Age returns the age of the map
func (m *Map) Age() float64 { return m.age }

// XDimension returns the number of map nodes along x, without the border
func (m *Map) XDimension() int { return m.nx }

// YDimension returns the number of map nodes along y, without the border
func (m *Map) YDimension() int { return m.ny }

// XCoordinates returns the x coordinates of the primal or dual grid
func (m *Map) XCoordinates(kind GridKind) []float64 {
	if kind == Primal {
		return m.primalX
	}
	return m.dualX
}

// YCoordinates returns the y coordinates of the primal or dual grid
func (m *Map) YCoordinates(kind GridKind) []float64 {
	if kind == Primal {
		return m.primalY
	}
	return m.dualY
}

// Point returns node (i, j) of the grid at the map's age
func (m *Map) Point(kind GridKind, i, j int) models.Point {
	return models.Point{X: m.XCoordinates(kind)[i], Y: m.YCoordinates(kind)[j], Z: m.age}
}

// Distribution returns the nodes inside the body
func (m *Map) Distribution() *BinaryMap { return m.distribution }

// Eroded returns the distribution after erosion
func (m *Map) Eroded() *BinaryMap { return m.eroded }

// Dilated returns the distribution after dilation
func (m *Map) Dilated() *BinaryMap { return m.dilated }

// Boundary returns the nodes on the edge of the body
func (m *Map) Boundary() *BinaryMap { return m.boundary }

// InsideCount returns the number of map nodes inside the body
func (m *Map) InsideCount() int { return m.insideCount }

// OutsideCount returns the number of map nodes outside the body
func (m *Map) OutsideCount() int { return m.outsideCount }

// PointIsInterior reports whether primal node (i, j) is well inside the body
func (m *Map) PointIsInterior(i, j int) bool { return m.eroded.At(i, j) }

// PointIsExterior reports whether primal node (i, j) is well outside the body
func (m *Map) PointIsExterior(i, j int) bool { return !m.dilated.At(i, j) }

// PointIsOnBoundary reports whether dual node (i, j) is on the boundary
func (m *Map) PointIsOnBoundary(i, j int) bool { return m.boundary.At(i, j) }

// PointHasBeenSelected reports whether node (i, j) is already an
// interpolation point.
func (m *Map) PointHasBeenSelected(kind GridKind, i, j int) bool {
	if kind == Primal {
		return m.primalChosen.At(i, j)
	}
	return m.dualChosen.At(i, j)
}

// Clone returns a copy of m with its own selection state, so that intervals
// sharing a map can pick out points concurrently. The coordinate and
// morphology data are shared read-only.
func (m *Map) Clone() *Map {
	c := *m
	c.primalChosen = m.primalChosen.Clone()
	c.dualChosen = m.dualChosen.Clone()
	return &c
}

// ResetSelection forgets every picked out point
func (m *Map) ResetSelection() {
	m.primalChosen.Fill(false)
	m.dualChosen.Fill(false)
}

// PickOutBoundaryPoints appends the boundary nodes accepted by sel to dst
// and marks them as selected.
func (m *Map) PickOutBoundaryPoints(sel Selector, dst models.PointArray) models.PointArray {
	return m.pickOut(Dual, m.boundary, true, m.dualChosen, sel, dst)
}

// PickOutInteriorPoints appends the interior nodes accepted by sel to dst
// and marks them as selected.
func (m *Map) PickOutInteriorPoints(sel Selector, dst models.PointArray) models.PointArray {
	return m.pickOut(Primal, m.eroded, true, m.primalChosen, sel, dst)
}

// PickOutExteriorPoints appends the exterior nodes accepted by sel to dst
// and marks them as selected.
func (m *Map) PickOutExteriorPoints(sel Selector, dst models.PointArray) models.PointArray {
	return m.pickOut(Primal, m.dilated, false, m.primalChosen, sel, dst)
}

func (m *Map) pickOut(kind GridKind, candidates *BinaryMap, want bool, chosen *BinaryMap, sel Selector, dst models.PointArray) models.PointArray {
	for i := candidates.First(1); i <= candidates.Last(1); i++ {
		for j := candidates.First(2); j <= candidates.Last(2); j++ {
			if candidates.At(i, j) != want || chosen.At(i, j) {
				continue
			}
			if sel.Select(i, j) {
				chosen.Set(i, j, true)
				dst = append(dst, m.Point(kind, i, j))
			}
		}
	}
	return dst
}

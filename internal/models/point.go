package models

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Dimension is the number of spatial coordinates carried by a Point.
const Dimension = 3

// Point represents a location in (x, y, age) space.
// Z holds the geological age of the map the point was taken from.
type Point struct {
	X, Y, Z float64
}

// Component returns the i-th coordinate of the point (0: X, 1: Y, 2: Z)
func (p Point) Component(i int) float64 {
	switch i {
	case 0:
		return p.X
	case 1:
		return p.Y
	case 2:
		return p.Z
	default:
		panic(fmt.Sprintf("models: point component %d out of range", i))
	}
}

// Vec returns the point as a gonum r3 vector
func (p Point) Vec() r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

// FromVec converts an r3 vector back into a point
func FromVec(v r3.Vec) Point {
	return Point{X: v.X, Y: v.Y, Z: v.Z}
}

// Sub returns the displacement vector p - q
func (p Point) Sub(q Point) r3.Vec {
	return r3.Sub(p.Vec(), q.Vec())
}

// Translate returns the point moved by -t, so that t becomes the origin
func (p Point) Translate(t Point) Point {
	return FromVec(p.Sub(t))
}

// ScaleBy scales each coordinate of the point by the matching component of s
func (p Point) ScaleBy(s Point) Point {
	return Point{X: p.X * s.X, Y: p.Y * s.Y, Z: p.Z * s.Z}
}

// Distance2 returns the squared Euclidean distance between two points
func (p Point) Distance2(q Point) float64 {
	return r3.Norm2(p.Sub(q))
}

// PointArray is an ordered sequence of points
type PointArray []Point

// BoundingBox returns the component-wise minimum and maximum of the array.
// The array must not be empty.
func (a PointArray) BoundingBox() (lo, hi Point) {
	if len(a) == 0 {
		panic("models: bounding box of empty point array")
	}
	lo, hi = a[0], a[0]
	for _, p := range a[1:] {
		lo = Point{X: min(lo.X, p.X), Y: min(lo.Y, p.Y), Z: min(lo.Z, p.Z)}
		hi = Point{X: max(hi.X, p.X), Y: max(hi.Y, p.Y), Z: max(hi.Z, p.Z)}
	}
	return lo, hi
}

// Category classifies an interpolation point relative to the salt body
type Category int

const (
	// Surface points lie on the boundary of the salt body
	Surface Category = iota
	// Exterior points lie outside the salt body
	Exterior
	// Interior points lie inside the salt body
	Interior
)

// String implements fmt.Stringer
func (c Category) String() string {
	switch c {
	case Surface:
		return "surface"
	case Exterior:
		return "exterior"
	case Interior:
		return "interior"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// PointSet holds the three point categories of one interval.
//
// The concatenation order returned by All (surface, then exterior, then
// interior) defines the row and column index of every point in the
// interpolation matrix and in the right-hand side and coefficient vectors.
type PointSet struct {
	Surface  PointArray
	Exterior PointArray
	Interior PointArray
}

// Len returns the total number of points in the set
func (s PointSet) Len() int {
	return len(s.Surface) + len(s.Exterior) + len(s.Interior)
}

// Counts returns the number of points per category, indexed by Category
func (s PointSet) Counts() [3]int {
	return [3]int{len(s.Surface), len(s.Exterior), len(s.Interior)}
}

// Clear removes all points while keeping the allocated storage
func (s *PointSet) Clear() {
	s.Surface = s.Surface[:0]
	s.Exterior = s.Exterior[:0]
	s.Interior = s.Interior[:0]
}

// Category returns the category of the point stored at matrix index i
func (s PointSet) Category(i int) Category {
	switch {
	case i < 0 || i >= s.Len():
		panic(fmt.Sprintf("models: point index %d out of range", i))
	case i < len(s.Surface):
		return Surface
	case i < len(s.Surface)+len(s.Exterior):
		return Exterior
	default:
		return Interior
	}
}

// All returns a newly allocated array holding surface, exterior and interior
// points in that order.
func (s PointSet) All() PointArray {
	all := make(PointArray, 0, s.Len())
	all = append(all, s.Surface...)
	all = append(all, s.Exterior...)
	all = append(all, s.Interior...)
	return all
}

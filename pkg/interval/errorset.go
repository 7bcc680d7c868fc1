package interval

import "sort"

// ErrorPoint is a map node together with the interpolated value there
type ErrorPoint struct {
	Value float64
	I, J  int
}

// ErrorPointSet collects the map nodes where the interpolant violates the
// constraints.
type ErrorPointSet struct {
	points []ErrorPoint
}

// AddError appends an entry
func (s *ErrorPointSet) AddError(e ErrorPoint) { s.points = append(s.points, e) }

// Add appends the entry (value, i, j)
func (s *ErrorPointSet) Add(value float64, i, j int) {
	s.AddError(ErrorPoint{Value: value, I: i, J: j})
}

// Len returns the number of entries
func (s *ErrorPointSet) Len() int { return len(s.points) }

// At returns entry k
func (s *ErrorPointSet) At(k int) ErrorPoint { return s.points[k] }

// Sort orders the entries by increasing value; ties keep node order
func (s *ErrorPointSet) Sort() {
	sort.SliceStable(s.points, func(a, b int) bool { return s.points[a].Value < s.points[b].Value })
}

// HasNearby reports whether an entry lies within xBound nodes in i and
// yBound nodes in j of e.
func (s *ErrorPointSet) HasNearby(e ErrorPoint, xBound, yBound int) bool {
	for _, p := range s.points {
		if abs(p.I-e.I) <= xBound && abs(p.J-e.J) <= yBound {
			return true
		}
	}
	return false
}

// Clear removes every entry
func (s *ErrorPointSet) Clear() { s.points = s.points[:0] }

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

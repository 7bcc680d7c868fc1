package models

import "testing"

func samplePointSet() PointSet {
	return PointSet{
		Surface:  PointArray{{X: 0}, {X: 1}},
		Exterior: PointArray{{X: 2}},
		Interior: PointArray{{X: 3}, {X: 4}, {X: 5}},
	}
}

// TestPointSetOnReturnedValue verifies that the read-only methods can be
// called on a PointSet returned by value
func TestPointSetOnReturnedValue(t *testing.T) {
	if n := samplePointSet().Len(); n != 6 {
		t.Errorf("Expected 6 points, got %d", n)
	}
	if c := samplePointSet().Counts(); c != [3]int{2, 1, 3} {
		t.Errorf("Expected counts [2 1 3], got %v", c)
	}
	all := samplePointSet().All()
	for i, p := range all {
		if p.X != float64(i) {
			t.Errorf("Point %d out of order: %+v", i, p)
		}
	}
	for i, want := range []Category{Surface, Surface, Exterior, Interior, Interior, Interior} {
		if got := samplePointSet().Category(i); got != want {
			t.Errorf("Category(%d) = %v, expected %v", i, got, want)
		}
	}
}

func TestPointSetClear(t *testing.T) {
	s := samplePointSet()
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Expected empty set after Clear, got %d points", s.Len())
	}
}

package interval

import "saltrbf/internal/models"

// Transform maps points into the normalised interpolation box: the
// translation is subtracted first, then every axis is scaled.
type Transform struct {
	Translation models.Point
	Scaling     models.Point
}

// IdentityTransform leaves points unchanged
var IdentityTransform = Transform{Scaling: models.Point{X: 1, Y: 1, Z: 1}}

// NewTransform returns the transform taking the box [lo, hi] onto
// [0, boxSize]³. An axis with zero extent is only translated.
func NewTransform(lo, hi models.Point, boxSize float64) Transform {
	scale := func(extent float64) float64 {
		if extent == 0 {
			return 1
		}
		return boxSize / extent
	}
	return Transform{
		Translation: lo,
		Scaling: models.Point{
			X: scale(hi.X - lo.X),
			Y: scale(hi.Y - lo.Y),
			Z: scale(hi.Z - lo.Z),
		},
	}
}

// Apply transforms p into the box
func (t Transform) Apply(p models.Point) models.Point {
	return p.Translate(t.Translation).ScaleBy(t.Scaling)
}

// Invert maps a box point back to the original coordinates
func (t Transform) Invert(p models.Point) models.Point {
	return models.Point{
		X: p.X/t.Scaling.X + t.Translation.X,
		Y: p.Y/t.Scaling.Y + t.Translation.Y,
		Z: p.Z/t.Scaling.Z + t.Translation.Z,
	}
}

// ApplyArray returns the transformed copy of points
func (t Transform) ApplyArray(points models.PointArray) models.PointArray {
	out := make(models.PointArray, len(points))
	for i, p := range points {
		out[i] = t.Apply(p)
	}
	return out
}

// Package visualization samples an interpolant on a regular volume of
// (x, y, age) nodes and renders sections through it as grey scale images.
// Positive values (salt) are bright, negative values dark and the zero
// level set sits at mid grey.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"github.com/exascience/pargo/parallel"

	"saltrbf/internal/models"
	"saltrbf/pkg/saltmap"
)

// Evaluator is anything that can be evaluated at a point, typically an
// interval interpolator.
type Evaluator interface {
	Evaluate(p models.Point) float64
}

// Viewer holds interpolant values sampled on a width×height×depth volume,
// x fastest and age slowest.
type Viewer struct {
	volumeData []float64

	xs, ys, ages []float64

	width  int
	height int
	depth  int

	// limit is the magnitude mapped to full black or white
	limit float64
}

// NewViewer samples e at every (xs[x], ys[y], ages[z]). Rows of the volume
// are evaluated concurrently. A non-positive limit is replaced by the
// largest magnitude found.
func NewViewer(e Evaluator, xs, ys, ages []float64, limit float64) *Viewer {
	v := &Viewer{
		xs:     xs,
		ys:     ys,
		ages:   ages,
		width:  len(xs),
		height: len(ys),
		depth:  len(ages),
	}
	v.volumeData = make([]float64, v.width*v.height*v.depth)

	rows := v.height * v.depth
	if rows > 0 {
		parallel.Range(0, rows, 0, func(low, high int) {
			for r := low; r < high; r++ {
				z, y := r/v.height, r%v.height
				base := r * v.width
				for x, px := range xs {
					v.volumeData[base+x] = e.Evaluate(models.Point{X: px, Y: ys[y], Z: ages[z]})
				}
			}
		})
	}

	if limit <= 0 {
		for _, val := range v.volumeData {
			limit = math.Max(limit, math.Abs(val))
		}
		if limit == 0 {
			limit = 1
		}
	}
	v.limit = limit
	return v
}

// NewIntervalViewer samples e on the primal grid of lower at depth ages
// evenly spaced from lower's age to upper's age.
func NewIntervalViewer(e Evaluator, lower, upper *saltmap.Map, depth int, limit float64) (*Viewer, error) {
	if depth < 2 {
		return nil, fmt.Errorf("visualization: need at least 2 sections, got %d", depth)
	}
	ages := make([]float64, depth)
	a, b := lower.Age(), upper.Age()
	for z := range ages {
		ages[z] = a + (b-a)*float64(z)/float64(depth-1)
	}
	return NewViewer(e, lower.XCoordinates(saltmap.Primal), lower.YCoordinates(saltmap.Primal), ages, limit), nil
}

// Dims returns the number of samples along x, y and age
func (v *Viewer) Dims() (width, height, depth int) { return v.width, v.height, v.depth }

// Ages returns the sampled ages
func (v *Viewer) Ages() []float64 { return v.ages }

// Limit returns the magnitude mapped to full black or white
func (v *Viewer) Limit() float64 { return v.limit }

// At returns the sampled value at volume node (x, y, z)
func (v *Viewer) At(x, y, z int) float64 {
	return v.volumeData[z*v.width*v.height+y*v.width+x]
}

func (v *Viewer) grey(val float64) color.Gray16 {
	t := (val/v.limit + 1) / 2
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, t*65535)))}
}

// ExtractSlice extracts a section through the volume. Axis "x" and "y" give
// vertical sections with age along the image rows; axis "z" gives the
// section at ages[position].
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img *image.Gray16

	switch axis {
	case "x", "X":
		if position >= v.width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.width)
		}
		img = image.NewGray16(image.Rect(0, 0, v.height, v.depth))
		for z := 0; z < v.depth; z++ {
			for y := 0; y < v.height; y++ {
				img.SetGray16(y, z, v.grey(v.At(position, y, z)))
			}
		}

	case "y", "Y":
		if position >= v.height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.height)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.depth))
		for z := 0; z < v.depth; z++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, z, v.grey(v.At(x, position, z)))
			}
		}

	case "z", "Z":
		if position >= v.depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.depth)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.height))
		for y := 0; y < v.height; y++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, y, v.grey(v.At(x, y, position)))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// ExtractRegion copies a sub-volume of the sampled values
func (v *Viewer) ExtractRegion(startX, startY, startZ, sizeX, sizeY, sizeZ int) ([]float64, error) {
	if startX < 0 || startY < 0 || startZ < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}
	if sizeX <= 0 || sizeY <= 0 || sizeZ <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}
	if startX+sizeX > v.width || startY+sizeY > v.height || startZ+sizeZ > v.depth {
		return nil, fmt.Errorf("region extends beyond volume boundaries")
	}

	region := make([]float64, sizeX*sizeY*sizeZ)
	for z := 0; z < sizeZ; z++ {
		for y := 0; y < sizeY; y++ {
			src := (startZ+z)*v.width*v.height + (startY+y)*v.width + startX
			copy(region[z*sizeX*sizeY+y*sizeX:][:sizeX], v.volumeData[src:src+sizeX])
		}
	}
	return region, nil
}

// Agreement returns the fraction of the map nodes of m whose sign in section
// position matches the salt distribution. The viewer must have been sampled
// on the primal grid of m.
func (v *Viewer) Agreement(m *saltmap.Map, position int) (float64, error) {
	if position < 0 || position >= v.depth {
		return 0, fmt.Errorf("position %d outside [0,%d)", position, v.depth)
	}
	if v.width != m.XDimension()+2 || v.height != m.YDimension()+2 {
		return 0, fmt.Errorf("viewer is %dx%d, map primal grid is %dx%d",
			v.width, v.height, m.XDimension()+2, m.YDimension()+2)
	}
	d := m.Distribution()
	var hits int
	for i := 1; i <= m.XDimension(); i++ {
		for j := 1; j <= m.YDimension(); j++ {
			if (v.At(i, j, position) > 0) == d.At(i, j) {
				hits++
			}
		}
	}
	return float64(hits) / float64(m.XDimension()*m.YDimension()), nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every slice along the given axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.width
	case "y", "Y":
		maxPos = v.height
	case "z", "Z":
		maxPos = v.depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}

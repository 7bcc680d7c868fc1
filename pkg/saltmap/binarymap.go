package saltmap

import (
	"fmt"
	"strings"
)

// BinaryMap is a two dimensional array of flags with inclusive index
// bounds, so that maps with a border of extra nodes can keep the indices
// of the map they extend.
type BinaryMap struct {
	firstI, lastI int
	firstJ, lastJ int
	stride        int
	data          []bool
}

// NewBinaryMap returns a map indexed by firstI <= i <= lastI and
// firstJ <= j <= lastJ with every flag false.
func NewBinaryMap(firstI, lastI, firstJ, lastJ int) *BinaryMap {
	if lastI < firstI || lastJ < firstJ {
		panic(fmt.Sprintf("saltmap: empty binary map [%d,%d]x[%d,%d]", firstI, lastI, firstJ, lastJ))
	}
	stride := lastJ - firstJ + 1
	return &BinaryMap{
		firstI: firstI, lastI: lastI,
		firstJ: firstJ, lastJ: lastJ,
		stride: stride,
		data:   make([]bool, (lastI-firstI+1)*stride),
	}
}

// Clone returns an independent copy of b
func (b *BinaryMap) Clone() *BinaryMap {
	c := *b
	c.data = append([]bool(nil), b.data...)
	return &c
}

// First returns the first index in dimension 1 (i) or 2 (j)
func (m *BinaryMap) First(dim int) int {
	if dim == 1 {
		return m.firstI
	}
	return m.firstJ
}

// Last returns the last index in dimension 1 (i) or 2 (j)
func (m *BinaryMap) Last(dim int) int {
	if dim == 1 {
		return m.lastI
	}
	return m.lastJ
}

// Contains reports whether (i, j) is inside the index bounds
func (m *BinaryMap) Contains(i, j int) bool {
	return i >= m.firstI && i <= m.lastI && j >= m.firstJ && j <= m.lastJ
}

func (m *BinaryMap) offset(i, j int) int {
	if !m.Contains(i, j) {
		panic(fmt.Sprintf("saltmap: index (%d,%d) outside [%d,%d]x[%d,%d]", i, j, m.firstI, m.lastI, m.firstJ, m.lastJ))
	}
	return (i-m.firstI)*m.stride + j - m.firstJ
}

// At returns the flag at (i, j)
func (m *BinaryMap) At(i, j int) bool { return m.data[m.offset(i, j)] }

// Set stores v at (i, j)
func (m *BinaryMap) Set(i, j int, v bool) { m.data[m.offset(i, j)] = v }

// Fill sets every flag to v
func (m *BinaryMap) Fill(v bool) {
	for k := range m.data {
		m.data[k] = v
	}
}

// Count returns the number of set flags
func (m *BinaryMap) Count() int {
	var n int
	for _, v := range m.data {
		if v {
			n++
		}
	}
	return n
}

// String draws the map with 'o' for set and '.' for clear flags, one line
// per i.
func (m *BinaryMap) String() string {
	var sb strings.Builder
	for i := m.firstI; i <= m.lastI; i++ {
		for j := m.firstJ; j <= m.lastJ; j++ {
			if m.At(i, j) {
				sb.WriteByte(SaltChar)
			} else {
				sb.WriteByte(EmptyChar)
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Erode sets dst(i, j) when src(i, j) and all eight neighbours are set.
// Nodes on the border of src have an incomplete neighbourhood and are
// never set.
func Erode(src, dst *BinaryMap) {
	dst.Fill(false)
	for i := src.firstI + 1; i < src.lastI; i++ {
		for j := src.firstJ + 1; j < src.lastJ; j++ {
			dst.Set(i, j, allNeighbours(src, i, j))
		}
	}
}

func allNeighbours(src *BinaryMap, i, j int) bool {
	for di := -1; di <= 1; di++ {
		for dj := -1; dj <= 1; dj++ {
			if !src.At(i+di, j+dj) {
				return false
			}
		}
	}
	return true
}

// Dilate sets dst(i, j) when src(i, j) or any of its neighbours is set
func Dilate(src, dst *BinaryMap) {
	for i := src.firstI; i <= src.lastI; i++ {
		for j := src.firstJ; j <= src.lastJ; j++ {
			dst.Set(i, j, anyNeighbour(src, i, j))
		}
	}
}

func anyNeighbour(src *BinaryMap, i, j int) bool {
	for di := -1; di <= 1; di++ {
		for dj := -1; dj <= 1; dj++ {
			if src.Contains(i+di, j+dj) && src.At(i+di, j+dj) {
				return true
			}
		}
	}
	return false
}

// DetectEdge marks the cells of src whose four corners disagree. Cell
// (i, j) of dst lies between nodes i, i+1 and j, j+1 of src, so dst must be
// indexed [firstI, lastI-1]x[firstJ, lastJ-1].
func DetectEdge(src, dst *BinaryMap) {
	if dst.firstI != src.firstI || dst.lastI != src.lastI-1 || dst.firstJ != src.firstJ || dst.lastJ != src.lastJ-1 {
		panic("saltmap: edge map does not match the cells of the source map")
	}
	for i := dst.firstI; i <= dst.lastI; i++ {
		for j := dst.firstJ; j <= dst.lastJ; j++ {
			c := src.At(i, j)
			edge := src.At(i+1, j) != c || src.At(i, j+1) != c || src.At(i+1, j+1) != c
			dst.Set(i, j, edge)
		}
	}
}

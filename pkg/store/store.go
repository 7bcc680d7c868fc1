// Package store saves and restores computed interpolants.
//
// A snapshot is written as a sequence of named data sets following a magic
// header. Every data set is a record kind, a name and a little-endian
// payload; the record stream is zstd compressed. Unknown data sets are
// skipped on reading.
package store

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"saltrbf/internal/models"
)

// ErrFormat is returned for streams that are not snapshots or are corrupt
var ErrFormat = errors.New("store: invalid snapshot")

var magic = [8]byte{'S', 'A', 'L', 'T', 'R', 'B', 'F', 1}

const (
	kindFloats byte = 'F'
	kindString byte = 'S'

	maxNameLength = 256
	maxDataLength = 1 << 28
)

// Data set names
const (
	pointsName       = "interpolation-points"
	coefficientsName = "interpolation-coefficients"
	translationName  = "translation"
	scalingName      = "scaling"
	intervalName     = "age-interval"
	degreeName       = "polynomial-degree"
	shapeName        = "kernel-shape"
	kernelName       = "kernel"
)

// Snapshot is everything needed to evaluate an interpolant again
type Snapshot struct {
	Points       models.PointArray
	Coefficients []float64
	Translation  models.Point
	Scaling      models.Point
	StartAge     float64
	EndAge       float64
	Degree       int
	Kernel       string
	Shape        float64
}

// Write encodes s to w
func Write(w io.Writer, s Snapshot) error {
	if _, err := w.Write(magic[:]); err != nil {
		return fmt.Errorf("store: writing header: %w", err)
	}
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("store: creating encoder: %w", err)
	}

	points := make([]float64, 0, models.Dimension*len(s.Points))
	for _, p := range s.Points {
		points = append(points, p.X, p.Y, p.Z)
	}
	bw := bufio.NewWriter(enc)
	records := []struct {
		name string
		data []float64
	}{
		{pointsName, points},
		{coefficientsName, s.Coefficients},
		{translationName, []float64{s.Translation.X, s.Translation.Y, s.Translation.Z}},
		{scalingName, []float64{s.Scaling.X, s.Scaling.Y, s.Scaling.Z}},
		{intervalName, []float64{s.StartAge, s.EndAge}},
		{degreeName, []float64{float64(s.Degree)}},
		{shapeName, []float64{s.Shape}},
	}
	for _, r := range records {
		if err := writeFloats(bw, r.name, r.data); err != nil {
			enc.Close()
			return err
		}
	}
	if err := writeString(bw, kernelName, s.Kernel); err != nil {
		enc.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return fmt.Errorf("store: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("store: finishing stream: %w", err)
	}
	return nil
}

func writeHeader(w io.Writer, kind byte, name string, length int) error {
	if _, err := w.Write([]byte{kind}); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(name))); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if _, err := io.WriteString(w, name); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(length)); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}

func writeFloats(w io.Writer, name string, data []float64) error {
	if err := writeHeader(w, kindFloats, name, len(data)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, data); err != nil {
		return fmt.Errorf("store: data set %s: %w", name, err)
	}
	return nil
}

func writeString(w io.Writer, name, value string) error {
	if err := writeHeader(w, kindString, name, len(value)); err != nil {
		return err
	}
	if _, err := io.WriteString(w, value); err != nil {
		return fmt.Errorf("store: data set %s: %w", name, err)
	}
	return nil
}

// Read decodes a snapshot written by Write
func Read(r io.Reader) (Snapshot, error) {
	var s Snapshot
	var header [len(magic)]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return s, fmt.Errorf("%w: header: %w", ErrFormat, err)
	}
	if header != magic {
		return s, fmt.Errorf("%w: bad magic %q", ErrFormat, header[:])
	}
	dec, err := zstd.NewReader(r)
	if err != nil {
		return s, fmt.Errorf("store: creating decoder: %w", err)
	}
	defer dec.Close()
	br := bufio.NewReader(dec)

	floats := make(map[string][]float64)
	strs := make(map[string]string)
	for {
		kind, err := br.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return s, fmt.Errorf("%w: %w", ErrFormat, err)
		}
		name, length, err := readHeader(br)
		if err != nil {
			return s, err
		}
		switch kind {
		case kindFloats:
			data := make([]float64, length)
			if err := binary.Read(br, binary.LittleEndian, data); err != nil {
				return s, fmt.Errorf("%w: data set %s: %w", ErrFormat, name, err)
			}
			floats[name] = data
		case kindString:
			buf := make([]byte, length)
			if _, err := io.ReadFull(br, buf); err != nil {
				return s, fmt.Errorf("%w: data set %s: %w", ErrFormat, name, err)
			}
			strs[name] = string(buf)
		default:
			return s, fmt.Errorf("%w: unknown record kind %q", ErrFormat, kind)
		}
	}
	return decode(floats, strs)
}

func readHeader(r io.Reader) (string, int, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", 0, fmt.Errorf("%w: name length: %w", ErrFormat, err)
	}
	if n > maxNameLength {
		return "", 0, fmt.Errorf("%w: name length %d", ErrFormat, n)
	}
	name := make([]byte, n)
	if _, err := io.ReadFull(r, name); err != nil {
		return "", 0, fmt.Errorf("%w: name: %w", ErrFormat, err)
	}
	var length uint64
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", 0, fmt.Errorf("%w: data set %s length: %w", ErrFormat, name, err)
	}
	if length > maxDataLength {
		return "", 0, fmt.Errorf("%w: data set %s has %d entries", ErrFormat, name, length)
	}
	return string(name), int(length), nil
}

func decode(floats map[string][]float64, strs map[string]string) (Snapshot, error) {
	var s Snapshot
	fixed := func(name string, n int) ([]float64, error) {
		data, ok := floats[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing data set %s", ErrFormat, name)
		}
		if n > 0 && len(data) != n {
			return nil, fmt.Errorf("%w: data set %s has %d entries, expected %d", ErrFormat, name, len(data), n)
		}
		return data, nil
	}

	points, err := fixed(pointsName, 0)
	if err != nil {
		return s, err
	}
	if len(points)%models.Dimension != 0 {
		return s, fmt.Errorf("%w: %d point coordinates", ErrFormat, len(points))
	}
	s.Points = make(models.PointArray, len(points)/models.Dimension)
	for i := range s.Points {
		s.Points[i] = models.Point{X: points[3*i], Y: points[3*i+1], Z: points[3*i+2]}
	}
	if s.Coefficients, err = fixed(coefficientsName, 0); err != nil {
		return s, err
	}
	if len(s.Coefficients) < len(s.Points) {
		return s, fmt.Errorf("%w: %d coefficients for %d points", ErrFormat, len(s.Coefficients), len(s.Points))
	}

	t, err := fixed(translationName, 3)
	if err != nil {
		return s, err
	}
	s.Translation = models.Point{X: t[0], Y: t[1], Z: t[2]}
	sc, err := fixed(scalingName, 3)
	if err != nil {
		return s, err
	}
	s.Scaling = models.Point{X: sc[0], Y: sc[1], Z: sc[2]}
	ages, err := fixed(intervalName, 2)
	if err != nil {
		return s, err
	}
	s.StartAge, s.EndAge = ages[0], ages[1]

	d, err := fixed(degreeName, 1)
	if err != nil {
		return s, err
	}
	if d[0] != math.Trunc(d[0]) {
		return s, fmt.Errorf("%w: polynomial degree %v", ErrFormat, d[0])
	}
	s.Degree = int(d[0])
	if shape, ok := floats[shapeName]; ok && len(shape) == 1 {
		s.Shape = shape[0]
	}
	kernel, ok := strs[kernelName]
	if !ok {
		return s, fmt.Errorf("%w: missing data set %s", ErrFormat, kernelName)
	}
	s.Kernel = kernel
	return s, nil
}

// WriteFile writes s to path, creating the parent directory if needed
func WriteFile(path string, s Snapshot) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("store: creating directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := Write(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile reads the snapshot stored at path
func ReadFile(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("store: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Package config provides configuration loading and management for saltrbf.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned by Validate for unusable settings
var ErrInvalid = errors.New("config: invalid configuration")

// Config represents the interpolation configuration loaded from YAML
type Config struct {
	// Interpolation parameters
	Interpolation struct {
		// Kernel is the radial basis function: cubic, gaussian or thinplate
		Kernel string `yaml:"kernel"`

		// Shape is the Gaussian shape parameter a in exp(-a²r²)
		Shape float64 `yaml:"shape"`

		// PolynomialDegree of the tail: -1 none, 0 constant, 1 linear, 2 quadratic
		PolynomialDegree int `yaml:"polynomialDegree"`

		// BoxSize is the edge length of the box the points are scaled into
		BoxSize float64 `yaml:"boxSize"`

		// Constraint values for the three point categories
		SurfaceConstraint  float64 `yaml:"surfaceConstraint"`
		InteriorConstraint float64 `yaml:"interiorConstraint"`
		ExteriorConstraint float64 `yaml:"exteriorConstraint"`

		// MatrixLayout selects the storage of the system matrix: fortran or row
		MatrixLayout string `yaml:"matrixLayout"`
	} `yaml:"interpolation"`

	// Iterative solver parameters
	Solver struct {
		// Method is gmres, gmres-restart or bicg
		Method string `yaml:"method"`

		// Restart length for gmres-restart
		Restart int `yaml:"restart"`

		Tolerance     float64 `yaml:"tolerance"`
		MaxIterations int     `yaml:"maxIterations"`
	} `yaml:"solver"`

	// Preconditioner parameters
	Preconditioner struct {
		// Neighbours per cardinal function; zero derives it from the point
		// count. Always clamped to [50, 300] and to the number of points.
		Neighbours int `yaml:"neighbours"`
	} `yaml:"preconditioner"`

	// Point sampling and adaptive refinement parameters
	Refinement struct {
		// InteriorFraction of interior nodes picked at random initially
		InteriorFraction float64 `yaml:"interiorFraction"`

		// Exterior nodes are sub-sampled every
		// max(1, ExteriorResampleBase + int(ExteriorResampleFraction*dim)) nodes
		ExteriorResampleBase     int     `yaml:"exteriorResampleBase"`
		ExteriorResampleFraction float64 `yaml:"exteriorResampleFraction"`

		// ProximityDivisor gives the minimum node distance max(1, dim/divisor)
		// between points added in the same pass
		ProximityDivisor int `yaml:"proximityDivisor"`

		// ErrorFraction of the constraint a value must reach after the first
		// pass to count as resolved
		ErrorFraction float64 `yaml:"errorFraction"`

		// MaxPasses bounds the number of refinement passes
		MaxPasses int `yaml:"maxPasses"`

		// Seed for the random interior sampling
		Seed uint64 `yaml:"seed"`
	} `yaml:"refinement"`

	// Processing parameters
	Processing struct {
		// NumCores specifies how many workers the parallel matrix and
		// preconditioner use; 1 selects the serial implementations
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// DebugLevel: 1 prints point and iteration counts, 2 adds residuals
		DebugLevel int `yaml:"debugLevel"`

		// SnapshotDir, if set, receives a snapshot of every computed interval
		SnapshotDir string `yaml:"snapshotDir"`

		// Sections is the number of age sections rendered as images next to
		// each snapshot
		Sections int `yaml:"sections"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Interpolation.Kernel = "cubic"
	cfg.Interpolation.Shape = 1.0
	cfg.Interpolation.PolynomialDegree = 0
	cfg.Interpolation.BoxSize = 1.0
	cfg.Interpolation.SurfaceConstraint = 0
	cfg.Interpolation.InteriorConstraint = 10
	cfg.Interpolation.ExteriorConstraint = -10
	cfg.Interpolation.MatrixLayout = "fortran"

	cfg.Solver.Method = "gmres"
	cfg.Solver.Restart = 50
	cfg.Solver.Tolerance = 1.0e-6
	cfg.Solver.MaxIterations = 1000

	cfg.Preconditioner.Neighbours = 0

	cfg.Refinement.InteriorFraction = 0.01
	cfg.Refinement.ExteriorResampleBase = 2
	cfg.Refinement.ExteriorResampleFraction = 0.048
	cfg.Refinement.ProximityDivisor = 100
	cfg.Refinement.ErrorFraction = 0.01
	cfg.Refinement.MaxPasses = 10
	cfg.Refinement.Seed = 1

	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default

	cfg.Output.DebugLevel = 0
	cfg.Output.Sections = 3

	return cfg
}

// Validate checks the settings that would otherwise fail deep inside a
// computation.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	in := c.Interpolation
	check(in.PolynomialDegree >= -1 && in.PolynomialDegree <= 2, "polynomial degree %d not in [-1, 2]", in.PolynomialDegree)
	check(in.BoxSize > 0, "box size %g must be positive", in.BoxSize)
	check(in.InteriorConstraint > in.SurfaceConstraint && in.SurfaceConstraint > in.ExteriorConstraint,
		"constraints must satisfy exterior < surface < interior, got %g, %g, %g",
		in.ExteriorConstraint, in.SurfaceConstraint, in.InteriorConstraint)
	switch strings.ToLower(in.MatrixLayout) {
	case "fortran", "row":
	default:
		check(false, "unknown matrix layout %q", in.MatrixLayout)
	}

	s := c.Solver
	check(s.Tolerance > 0 && s.Tolerance < 1, "solver tolerance %g not in (0, 1)", s.Tolerance)
	check(s.MaxIterations > 0, "solver iteration limit %d must be positive", s.MaxIterations)
	check(s.Restart >= 0, "negative restart %d", s.Restart)
	check(c.Preconditioner.Neighbours >= 0, "negative neighbour count %d", c.Preconditioner.Neighbours)

	r := c.Refinement
	check(r.InteriorFraction >= 0 && r.InteriorFraction <= 1, "interior fraction %g not in [0, 1]", r.InteriorFraction)
	check(r.ExteriorResampleFraction >= 0, "negative exterior resample fraction %g", r.ExteriorResampleFraction)
	check(r.ProximityDivisor > 0, "proximity divisor %d must be positive", r.ProximityDivisor)
	check(r.ErrorFraction >= 0 && r.ErrorFraction < 1, "error fraction %g not in [0, 1)", r.ErrorFraction)
	check(r.MaxPasses >= 0, "negative refinement pass limit %d", r.MaxPasses)

	check(c.Processing.NumCores > 0, "core count %d must be positive", c.Processing.NumCores)
	check(c.Output.Sections == 0 || c.Output.Sections >= 2, "section count %d must be 0 or at least 2", c.Output.Sections)

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

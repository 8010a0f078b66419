package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/vertexfit/internal/pipeline"
	"github.com/banshee-data/vertexfit/internal/vertex"
)

// DefaultConfigPath is the path to the canonical fit defaults file.
const DefaultConfigPath = "config/fit.defaults.json"

// FitConfig holds the parameters of a vertex fitting run. Every field is a
// pointer so that a partial file leaves the rest at their defaults; use
// the Get* methods to read values.
type FitConfig struct {
	// Cylinder projection radius in metres. 0 disables the projection.
	CylinderRadius *float64 `json:"cylinder_radius,omitempty"`
	// Per-axis weights applied to every line's least-squares term.
	AxisWeights *[3]float64 `json:"axis_weights,omitempty"`

	Workers  *int `json:"workers,omitempty"` // 0 selects GOMAXPROCS
	MinLines *int `json:"min_lines,omitempty"`

	DiscardNonFinite *bool `json:"discard_non_finite,omitempty"`
	ReportBins       *int  `json:"report_bins,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyFitConfig returns a FitConfig with all fields unset.
func EmptyFitConfig() *FitConfig {
	return &FitConfig{}
}

// DefaultFitConfig returns a FitConfig with every field set to its default.
func DefaultFitConfig() *FitConfig {
	return &FitConfig{
		CylinderRadius:   ptrFloat64(1.0),
		AxisWeights:      &[3]float64{1, 1, 1},
		Workers:          ptrInt(0),
		MinLines:         ptrInt(2),
		DiscardNonFinite: ptrBool(true),
		ReportBins:       ptrInt(64),
	}
}

// LoadFitConfig loads a FitConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the file keep their defaults.
func LoadFitConfig(path string) (*FitConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyFitConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root. It panics when the
// file cannot be loaded and is intended for test setup.
func MustLoadDefaultConfig() *FitConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadFitConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that every set field is in range.
func (c *FitConfig) Validate() error {
	if c.CylinderRadius != nil && *c.CylinderRadius < 0 {
		return fmt.Errorf("cylinder_radius must be non-negative, got %f", *c.CylinderRadius)
	}
	if c.AxisWeights != nil {
		for i, w := range c.AxisWeights {
			if !(w > 0) || math.IsInf(w, 0) {
				return fmt.Errorf("axis_weights[%d] must be positive and finite, got %f", i, w)
			}
		}
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.MinLines != nil && *c.MinLines < 2 {
		return fmt.Errorf("min_lines must be at least 2, got %d", *c.MinLines)
	}
	if c.ReportBins != nil && *c.ReportBins < 1 {
		return fmt.Errorf("report_bins must be positive, got %d", *c.ReportBins)
	}
	return nil
}

// GetCylinderRadius returns the cylinder_radius value or the default.
func (c *FitConfig) GetCylinderRadius() float64 {
	if c.CylinderRadius == nil {
		return 1.0
	}
	return *c.CylinderRadius
}

// GetAxisWeights returns the axis_weights value or unit weights.
func (c *FitConfig) GetAxisWeights() r3.Vec {
	if c.AxisWeights == nil {
		return r3.Vec{X: 1, Y: 1, Z: 1}
	}
	w := c.AxisWeights
	return r3.Vec{X: w[0], Y: w[1], Z: w[2]}
}

// GetWorkers returns the workers value, resolving 0 to GOMAXPROCS.
func (c *FitConfig) GetWorkers() int {
	if c.Workers == nil || *c.Workers == 0 {
		return runtime.GOMAXPROCS(0)
	}
	return *c.Workers
}

// GetMinLines returns the min_lines value or the default.
func (c *FitConfig) GetMinLines() int {
	if c.MinLines == nil {
		return 2
	}
	return *c.MinLines
}

// GetDiscardNonFinite returns the discard_non_finite value or the default.
func (c *FitConfig) GetDiscardNonFinite() bool {
	if c.DiscardNonFinite == nil {
		return true
	}
	return *c.DiscardNonFinite
}

// GetReportBins returns the report_bins value or the default.
func (c *FitConfig) GetReportBins() int {
	if c.ReportBins == nil {
		return 64
	}
	return *c.ReportBins
}

// Options converts the configuration into pipeline options. Unit axis
// weights select the identity weighting.
func (c *FitConfig) Options() pipeline.Options {
	opts := pipeline.Options{
		CylinderRadius:   c.GetCylinderRadius(),
		MinLines:         c.GetMinLines(),
		DiscardNonFinite: c.GetDiscardNonFinite(),
		Workers:          c.GetWorkers(),
	}
	if axis := c.GetAxisWeights(); axis != (r3.Vec{X: 1, Y: 1, Z: 1}) {
		opts.Weighting = vertex.AxisWeighting(axis)
	}
	return opts
}

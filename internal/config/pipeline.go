package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/banshee-data/mosgrid/internal/lidar"
	"github.com/banshee-data/mosgrid/internal/lidar/augment"
	"github.com/banshee-data/mosgrid/internal/lidar/filter"
	"github.com/banshee-data/mosgrid/internal/lidar/quant"
	"github.com/banshee-data/mosgrid/internal/lidar/sample"
)

// DefaultConfigPath is the path to the canonical pipeline defaults file.
const DefaultConfigPath = "config/pipeline.defaults.json"

// Span is a [min, max] pair as written in the config file.
type Span [2]float64

func (s Span) toRange() lidar.Range { return lidar.Range{Min: s[0], Max: s[1]} }

// Shape is a three-axis grid size.
type Shape [3]int

// PipelineConfig is the root configuration for sample preparation. Every
// field is optional; the Get* methods fall back to built-in defaults.
type PipelineConfig struct {
	// Sequence params
	HistoryFrames *int    `json:"history_frames,omitempty"` // K; seq_num = K+1
	FramePointNum *int    `json:"frame_point_num,omitempty"`
	HistoryPolicy *string `json:"history_policy,omitempty"` // strict, skip, zero-pad
	Workers       *int    `json:"workers,omitempty"`

	// Cartesian BEV; its ranges also bound the point filter.
	CartBEVShape  *Shape `json:"cart_bev_shape,omitempty"`
	CartBEVRangeX *Span  `json:"cart_bev_range_x,omitempty"`
	CartBEVRangeY *Span  `json:"cart_bev_range_y,omitempty"`
	CartBEVRangeZ *Span  `json:"cart_bev_range_z,omitempty"`

	// Polar BEV. The height axis is derived per batch.
	PolarBEVShape      *Shape `json:"polar_bev_shape,omitempty"`
	PolarBEVRangeR     *Span  `json:"polar_bev_range_r,omitempty"`
	PolarBEVRangeTheta *Span  `json:"polar_bev_range_theta,omitempty"` // degrees

	// Spherical range view
	RVShape      *Shape `json:"rv_shape,omitempty"`
	RVRangePhi   *Span  `json:"rv_range_phi,omitempty"`   // degrees
	RVRangeTheta *Span  `json:"rv_range_theta,omitempty"` // degrees
	RVRangeR     *Span  `json:"rv_range_r,omitempty"`

	// Cylindrical view
	CylShape    *Shape `json:"cyl_shape,omitempty"`
	CylRangePhi *Span  `json:"cyl_range_phi,omitempty"` // degrees
	CylRangeZ   *Span  `json:"cyl_range_z,omitempty"`
	CylRangeR   *Span  `json:"cyl_range_r,omitempty"`

	// Augmentation params
	NoiseMean  *float64 `json:"noise_mean,omitempty"`
	NoiseStd   *float64 `json:"noise_std,omitempty"`
	ThetaRange *Span    `json:"theta_range,omitempty"` // degrees
	ShiftRange *[3]Span `json:"shift_range,omitempty"`
	SizeRange  *Span    `json:"size_range,omitempty"`
	FlipProb   *float64 `json:"flip_prob,omitempty"`

	// LabelMap maps raw semantic ids (as decimal strings) to training
	// classes. When absent the moving-object mapping is used.
	LabelMap map[string]uint32 `json:"label_map,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrSpan(a, b float64) *Span    { return &Span{a, b} }
func ptrShape(a, b, c int) *Shape   { return &Shape{a, b, c} }

// EmptyPipelineConfig returns a PipelineConfig with all fields set to nil.
func EmptyPipelineConfig() *PipelineConfig {
	return &PipelineConfig{}
}

// DefaultPipelineConfig returns a config with every field set to its
// default.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		HistoryFrames: ptrInt(2),
		FramePointNum: ptrInt(160000),
		HistoryPolicy: ptrString(sample.HistoryStrict.String()),
		Workers:       ptrInt(4),

		CartBEVShape:  ptrShape(512, 512, 30),
		CartBEVRangeX: ptrSpan(-50, 50),
		CartBEVRangeY: ptrSpan(-50, 50),
		CartBEVRangeZ: ptrSpan(-4, 2),

		PolarBEVShape:      ptrShape(512, 512, 30),
		PolarBEVRangeR:     ptrSpan(2, 50),
		PolarBEVRangeTheta: ptrSpan(-180, 180),

		RVShape:      ptrShape(64, 2048, 1),
		RVRangePhi:   ptrSpan(-180, 180),
		RVRangeTheta: ptrSpan(-25, 3),
		RVRangeR:     ptrSpan(2, 50),

		CylShape:    ptrShape(64, 2048, 1),
		CylRangePhi: ptrSpan(-180, 180),
		CylRangeZ:   ptrSpan(-4, 2),
		CylRangeR:   ptrSpan(2, 50),

		NoiseMean:  ptrFloat64(0),
		NoiseStd:   ptrFloat64(0.0001),
		ThetaRange: ptrSpan(-180, 180),
		ShiftRange: &[3]Span{{-3, 3}, {-3, 3}, {-0.4, 0.4}},
		SizeRange:  ptrSpan(0.95, 1.05),
		FlipProb:   ptrFloat64(0.5),
	}
}

// LoadPipelineConfig loads a PipelineConfig from a JSON file.
// The file must have a .json extension and be at most 1MB. Fields omitted
// from the file keep their defaults.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
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

	cfg := EmptyPipelineConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *PipelineConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/lidar/*
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadPipelineConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *PipelineConfig) Validate() error {
	if c.HistoryFrames != nil && *c.HistoryFrames < 0 {
		return fmt.Errorf("history_frames must be non-negative, got %d", *c.HistoryFrames)
	}
	if c.FramePointNum != nil && *c.FramePointNum <= 0 {
		return fmt.Errorf("frame_point_num must be positive, got %d", *c.FramePointNum)
	}
	if c.Workers != nil && *c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", *c.Workers)
	}
	if _, err := c.GetHistoryPolicy(); err != nil {
		return err
	}
	if _, err := c.GetLabelMap(); err != nil {
		return err
	}

	if err := c.CartesianQuantizer().Validate(); err != nil {
		return err
	}
	if err := c.SphericalQuantizer().Validate(); err != nil {
		return err
	}
	if err := c.CylindricalQuantizer().Validate(); err != nil {
		return err
	}
	if err := c.PolarQuantizer().Validate(); err != nil {
		return err
	}
	if err := c.AugmentParams().Validate(); err != nil {
		return fmt.Errorf("augmentation: %w", err)
	}
	return nil
}

// GetHistoryFrames returns the history_frames value or the default.
func (c *PipelineConfig) GetHistoryFrames() int {
	if c.HistoryFrames == nil {
		return 2
	}
	return *c.HistoryFrames
}

// GetFramePointNum returns the frame_point_num value or the default.
func (c *PipelineConfig) GetFramePointNum() int {
	if c.FramePointNum == nil {
		return 160000
	}
	return *c.FramePointNum
}

// GetWorkers returns the workers value or the default.
func (c *PipelineConfig) GetWorkers() int {
	if c.Workers == nil {
		return 4
	}
	return *c.Workers
}

// GetHistoryPolicy parses history_policy, defaulting to strict.
func (c *PipelineConfig) GetHistoryPolicy() (sample.HistoryPolicy, error) {
	if c.HistoryPolicy == nil || *c.HistoryPolicy == "" {
		return sample.HistoryStrict, nil
	}
	return sample.ParseHistoryPolicy(*c.HistoryPolicy)
}

// GetLabelMap parses label_map. A nil map means no override is configured.
func (c *PipelineConfig) GetLabelMap() (map[uint32]uint32, error) {
	if c.LabelMap == nil {
		return nil, nil
	}
	out := make(map[uint32]uint32, len(c.LabelMap))
	for k, v := range c.LabelMap {
		id, err := strconv.ParseUint(k, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("label_map key %q: %w", k, err)
		}
		out[uint32(id)] = v
	}
	return out, nil
}

func spanOr(s *Span, a, b float64) lidar.Range {
	if s == nil {
		return lidar.Range{Min: a, Max: b}
	}
	return s.toRange()
}

func shapeOr(s *Shape, a, b, c int) [3]int {
	if s == nil {
		return [3]int{a, b, c}
	}
	return *s
}

func floatOr(v *float64, d float64) float64 {
	if v == nil {
		return d
	}
	return *v
}

// FilterBounds returns the point filter bounds (the Cartesian BEV ranges).
func (c *PipelineConfig) FilterBounds() filter.Bounds {
	q := c.CartesianQuantizer()
	return filter.Bounds{X: q.X, Y: q.Y, Z: q.Z}
}

// CartesianQuantizer builds the Cartesian BEV quantizer.
func (c *PipelineConfig) CartesianQuantizer() quant.Cartesian {
	return quant.Cartesian{
		X:    spanOr(c.CartBEVRangeX, -50, 50),
		Y:    spanOr(c.CartBEVRangeY, -50, 50),
		Z:    spanOr(c.CartBEVRangeZ, -4, 2),
		Size: shapeOr(c.CartBEVShape, 512, 512, 30),
	}
}

// PolarQuantizer builds the polar BEV quantizer.
func (c *PipelineConfig) PolarQuantizer() quant.Polar {
	return quant.Polar{
		Phi:  spanOr(c.PolarBEVRangeTheta, -180, 180),
		R:    spanOr(c.PolarBEVRangeR, 2, 50),
		Size: shapeOr(c.PolarBEVShape, 512, 512, 30),
	}
}

// SphericalQuantizer builds the range-view quantizer.
func (c *PipelineConfig) SphericalQuantizer() quant.Spherical {
	return quant.Spherical{
		Phi:   spanOr(c.RVRangePhi, -180, 180),
		Theta: spanOr(c.RVRangeTheta, -25, 3),
		R:     spanOr(c.RVRangeR, 2, 50),
		Size:  shapeOr(c.RVShape, 64, 2048, 1),
	}
}

// CylindricalQuantizer builds the cylindrical quantizer.
func (c *PipelineConfig) CylindricalQuantizer() quant.Cylindrical {
	return quant.Cylindrical{
		Phi:  spanOr(c.CylRangePhi, -180, 180),
		Z:    spanOr(c.CylRangeZ, -4, 2),
		R:    spanOr(c.CylRangeR, 2, 50),
		Size: shapeOr(c.CylShape, 64, 2048, 1),
	}
}

// Quantizers returns all four quantizers in a fixed order.
func (c *PipelineConfig) Quantizers() []quant.Quantizer {
	return []quant.Quantizer{
		c.CartesianQuantizer(),
		c.SphericalQuantizer(),
		c.CylindricalQuantizer(),
		c.PolarQuantizer(),
	}
}

// AugmentParams builds the training augmentation params.
func (c *PipelineConfig) AugmentParams() augment.Params {
	p := augment.DefaultParams()
	p.NoiseMean = floatOr(c.NoiseMean, p.NoiseMean)
	p.NoiseStd = floatOr(c.NoiseStd, p.NoiseStd)
	p.FlipProb = floatOr(c.FlipProb, p.FlipProb)
	if c.ThetaRange != nil {
		p.Theta = c.ThetaRange.toRange()
	}
	if c.SizeRange != nil {
		p.Size = c.SizeRange.toRange()
	}
	if c.ShiftRange != nil {
		for i, s := range c.ShiftRange {
			p.Shift[i] = s.toRange()
		}
	}
	return p
}

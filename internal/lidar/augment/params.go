package augment

import (
	"fmt"

	"github.com/banshee-data/mosgrid/internal/lidar"
)

// Params configures one augmentation call. It is a value object: every call
// draws fresh random values from the source it is given.
type Params struct {
	NoiseMean float64        `json:"noise_mean"`
	NoiseStd  float64        `json:"noise_std"`
	Theta     lidar.Range    `json:"theta_range"` // degrees
	Shift     [3]lidar.Range `json:"shift_range"` // x, y, z
	Size      lidar.Range    `json:"size_range"`
	// FlipProb is the probability of each of the two independent flips.
	FlipProb float64 `json:"flip_prob"`
}

// DefaultParams returns the training augmentation used for the KITTI
// moving-object setup.
func DefaultParams() Params {
	return Params{
		NoiseMean: 0,
		NoiseStd:  0.0001,
		Theta:     lidar.Range{Min: -180, Max: 180},
		Shift: [3]lidar.Range{
			{Min: -3, Max: 3},
			{Min: -3, Max: 3},
			{Min: -0.4, Max: 0.4},
		},
		Size:     lidar.Range{Min: 0.95, Max: 1.05},
		FlipProb: 0.5,
	}
}

// Validate checks that every range is ordered and the probabilities are
// sane.
func (p Params) Validate() error {
	if p.NoiseStd < 0 {
		return fmt.Errorf("noise_std must be non-negative, got %f", p.NoiseStd)
	}
	if p.Theta.Min > p.Theta.Max {
		return fmt.Errorf("theta_range min %f > max %f", p.Theta.Min, p.Theta.Max)
	}
	for i, r := range p.Shift {
		if r.Min > r.Max {
			return fmt.Errorf("shift_range[%d] min %f > max %f", i, r.Min, r.Max)
		}
	}
	if p.Size.Min > p.Size.Max {
		return fmt.Errorf("size_range min %f > max %f", p.Size.Min, p.Size.Max)
	}
	if p.FlipProb < 0 || p.FlipProb > 1 {
		return fmt.Errorf("flip_prob must be in [0, 1], got %f", p.FlipProb)
	}
	return nil
}

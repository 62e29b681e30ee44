// Package augment applies randomized geometric augmentation to point clouds.
//
// All randomness comes from an explicit rand.Source so a seeded stream
// reproduces the same augmentation. A source is not safe for concurrent use;
// give every goroutine its own.
package augment

import (
	"errors"
	"math"
	"math/rand/v2"

	"github.com/banshee-data/mosgrid/internal/lidar"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrNilSource is returned when no random source is supplied.
var ErrNilSource = errors.New("augment: nil random source")

// Draw records the per-call values chosen by Apply. Noise is per point and
// is not recorded.
type Draw struct {
	Shift    [3]float64
	Scale    float64
	FlipX    bool // vertical flip: x negated
	FlipY    bool // horizontal flip: y negated
	ThetaDeg float64
}

// Apply returns an augmented copy of c. The steps run in this order and each
// random value is drawn exactly once per call:
//
//  1. i.i.d. Gaussian noise on x, y, z of every point (row-major draws)
//  2. one uniform shift per axis, added to every point
//  3. one uniform scale, multiplied into x, y, z
//  4. two independent flips: horizontal (drawn first) negates y, vertical
//     negates x
//  5. one uniform angle in degrees rotating (x, y) about the origin
//
// Channels from index 3 on are never modified.
func Apply(c *lidar.Cloud, p Params, src rand.Source) (*lidar.Cloud, error) {
	out, _, err := ApplyWithDraw(c, p, src)
	return out, err
}

// ApplyWithDraw is Apply that also reports the shared draws.
func ApplyWithDraw(c *lidar.Cloud, p Params, src rand.Source) (*lidar.Cloud, Draw, error) {
	var d Draw
	if src == nil {
		return nil, d, ErrNilSource
	}
	if err := p.Validate(); err != nil {
		return nil, d, err
	}

	out := c.Clone()
	n := out.Len()
	rng := rand.New(src)

	noise := distuv.Normal{Mu: p.NoiseMean, Sigma: p.NoiseStd, Src: src}
	for i := 0; i < n; i++ {
		row := out.Row(i)
		row[0] += noise.Rand()
		row[1] += noise.Rand()
		row[2] += noise.Rand()
	}

	for axis := 0; axis < 3; axis++ {
		d.Shift[axis] = uniform(p.Shift[axis], src)
	}
	for i := 0; i < n; i++ {
		row := out.Row(i)
		row[0] += d.Shift[0]
		row[1] += d.Shift[1]
		row[2] += d.Shift[2]
	}

	d.Scale = uniform(p.Size, src)
	for i := 0; i < n; i++ {
		row := out.Row(i)
		row[0] *= d.Scale
		row[1] *= d.Scale
		row[2] *= d.Scale
	}

	d.FlipY = rng.Float64() < p.FlipProb
	d.FlipX = rng.Float64() < p.FlipProb
	for i := 0; i < n; i++ {
		row := out.Row(i)
		if d.FlipX {
			row[0] = -row[0]
		}
		if d.FlipY {
			row[1] = -row[1]
		}
	}

	d.ThetaDeg = uniform(p.Theta, src)
	rotateXY(out, d.ThetaDeg)

	return out, d, nil
}

// rotateXY maps (x, y) to (x·cos + y·sin, -x·sin + y·cos), the row-vector
// product with the image-convention 2-D rotation matrix transposed.
func rotateXY(c *lidar.Cloud, thetaDeg float64) {
	rad := thetaDeg * math.Pi / 180.0
	cos, sin := math.Cos(rad), math.Sin(rad)
	n := c.Len()
	for i := 0; i < n; i++ {
		row := c.Row(i)
		x, y := row[0], row[1]
		row[0] = x*cos + y*sin
		row[1] = -x*sin + y*cos
	}
}

func uniform(r lidar.Range, src rand.Source) float64 {
	return distuv.Uniform{Min: r.Min, Max: r.Max, Src: src}.Rand()
}

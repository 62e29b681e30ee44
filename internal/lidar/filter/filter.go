// Package filter selects points inside axis-aligned bounds and applies the
// same selection to every array aligned with the point order.
package filter

import (
	"github.com/banshee-data/mosgrid/internal/lidar"
)

// Bounds is an axis-aligned box with half-open [Min, Max) axes.
type Bounds struct {
	X lidar.Range `json:"x"`
	Y lidar.Range `json:"y"`
	Z lidar.Range `json:"z"`
}

// Contains reports whether the point lies inside all three axes.
func (b Bounds) Contains(x, y, z float64) bool {
	return b.X.Contains(x) && b.Y.Contains(y) && b.Z.Contains(z)
}

// Mask returns mask[n] = true iff point n lies inside b.
func (b Bounds) Mask(c *lidar.Cloud) []bool {
	n := c.Len()
	mask := make([]bool, n)
	for i := 0; i < n; i++ {
		mask[i] = b.Contains(c.XYZ(i))
	}
	return mask
}

// Mask is the three-range form of Bounds.Mask.
func Mask(c *lidar.Cloud, rangeX, rangeY, rangeZ lidar.Range) []bool {
	return Bounds{X: rangeX, Y: rangeY, Z: rangeZ}.Mask(c)
}

// Filter returns the points inside the three ranges, in their original
// relative order, together with the mask that selected them. Callers must
// apply the returned mask to any label or coordinate array aligned with c.
func Filter(c *lidar.Cloud, rangeX, rangeY, rangeZ lidar.Range) (*lidar.Cloud, []bool) {
	mask := Mask(c, rangeX, rangeY, rangeZ)
	kept, _ := Apply(c, mask)
	return kept, mask
}

// Apply keeps the rows of c where mask is true.
func Apply(c *lidar.Cloud, mask []bool) (*lidar.Cloud, error) {
	if err := lidar.CheckLen("mask vs points", c.Len(), len(mask)); err != nil {
		return nil, err
	}
	data := make([]float64, 0, Count(mask)*c.Channels)
	for i, keep := range mask {
		if keep {
			data = append(data, c.Row(i)...)
		}
	}
	return &lidar.Cloud{Data: data, Channels: c.Channels}, nil
}

// Select keeps the elements of s where mask is true. It is used for labels,
// quantized coordinates and any other per-point array.
func Select[T any](s []T, mask []bool) ([]T, error) {
	if err := lidar.CheckLen("mask vs values", len(s), len(mask)); err != nil {
		return nil, err
	}
	out := make([]T, 0, Count(mask))
	for i, keep := range mask {
		if keep {
			out = append(out, s[i])
		}
	}
	return out, nil
}

// SelectLabels is Select for label arrays.
func SelectLabels(labels []uint32, mask []bool) ([]uint32, error) {
	return Select(labels, mask)
}

// Count returns the number of true entries.
func Count(mask []bool) int {
	n := 0
	for _, m := range mask {
		if m {
			n++
		}
	}
	return n
}

package quant

import (
	"fmt"

	"github.com/banshee-data/mosgrid/internal/lidar"
)

// Cartesian is the bird's-eye-view voxel grid over x, y, z.
type Cartesian struct {
	X, Y, Z lidar.Range
	Size    [3]int
}

func (q Cartesian) System() System { return SystemCartesian }
func (q Cartesian) Shape() [3]int  { return q.Size }

// Validate checks that every range is non-empty and every size positive.
func (q Cartesian) Validate() error {
	if err := validateSize(q.Size); err != nil {
		return fmt.Errorf("cartesian: %w", err)
	}
	for i, r := range [3]lidar.Range{q.X, q.Y, q.Z} {
		if err := validateRange(fmt.Sprintf("cartesian axis %d", i), r); err != nil {
			return err
		}
	}
	return nil
}

// BinWidths returns (dx, dy, dz).
func (q Cartesian) BinWidths() [3]float64 {
	return [3]float64{
		q.X.Span() / float64(q.Size[0]),
		q.Y.Span() / float64(q.Size[1]),
		q.Z.Span() / float64(q.Size[2]),
	}
}

// Quantize returns ((x-xmin)/dx, (y-ymin)/dy, (z-zmin)/dz) per point.
func (q Cartesian) Quantize(c *lidar.Cloud) (Coords, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	d := q.BinWidths()
	n := c.Len()
	out := make(Coords, n)
	for i := 0; i < n; i++ {
		x, y, z := c.XYZ(i)
		out[i] = Coord{
			(x - q.X.Min) / d[0],
			(y - q.Y.Min) / d[1],
			(z - q.Z.Min) / d[2],
		}
	}
	return out, nil
}

// Dequantize inverts Quantize for one coordinate. Passing a floored
// coordinate plus 0.5 yields the cell centre.
func (q Cartesian) Dequantize(c Coord) (x, y, z float64) {
	d := q.BinWidths()
	return q.X.Min + c[0]*d[0], q.Y.Min + c[1]*d[1], q.Z.Min + c[2]*d[2]
}

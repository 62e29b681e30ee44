// Package pool scatters per-point features into a dense grid, keeping the
// channel-wise maximum per cell.
package pool

import (
	"fmt"
	"math"

	"github.com/banshee-data/mosgrid/internal/lidar"
	"github.com/banshee-data/mosgrid/internal/lidar/quant"
	"gonum.org/v1/gonum/mat"
)

// Fill is the value of cells that receive no point.
const Fill = 0.0

// Options selects the output grid. Shape has two or three dimensions and
// uses the first len(Shape) coordinate components. ScaleRate, when set,
// multiplies each coordinate component before flooring so the output grid
// may be coarser than the quantization grid.
type Options struct {
	Shape     []int
	ScaleRate []float64
}

func (o Options) validate() error {
	if len(o.Shape) < 2 || len(o.Shape) > 3 {
		return fmt.Errorf("pool: grid must have 2 or 3 dimensions, got %d", len(o.Shape))
	}
	for i, s := range o.Shape {
		if s <= 0 {
			return fmt.Errorf("pool: shape[%d] must be positive, got %d", i, s)
		}
	}
	if o.ScaleRate != nil && len(o.ScaleRate) != len(o.Shape) {
		return &lidar.ShapeMismatchError{What: "pool scale rate", Want: len(o.Shape), Got: len(o.ScaleRate)}
	}
	for i, r := range o.ScaleRate {
		if !(r > 0) {
			return fmt.Errorf("pool: scale_rate[%d] must be positive, got %f", i, r)
		}
	}
	return nil
}

// Grid is a dense C×cells grid stored channel-major; cell indices are
// row-major over Shape.
type Grid struct {
	Shape    []int
	Channels int
	Data     []float64
	// Count is the number of points pooled into each cell.
	Count []int
	// Dropped is the number of points with non-finite or out-of-grid
	// coordinates.
	Dropped int
}

// Cells returns the number of cells per channel.
func (g *Grid) Cells() int { return cellCount(g.Shape) }

// Channel returns a view of one channel's cells.
func (g *Grid) Channel(ch int) []float64 {
	n := g.Cells()
	return g.Data[ch*n : (ch+1)*n : (ch+1)*n]
}

// At returns the value of channel ch at the given cell.
func (g *Grid) At(ch int, cell ...int) float64 {
	return g.Data[ch*g.Cells()+g.offset(cell)]
}

// Occupied returns the number of cells that received at least one point.
func (g *Grid) Occupied() int {
	n := 0
	for _, c := range g.Count {
		if c > 0 {
			n++
		}
	}
	return n
}

func (g *Grid) offset(cell []int) int {
	off := 0
	for i, s := range g.Shape {
		off = off*s + cell[i]
	}
	return off
}

func cellCount(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// ScatterMax floors each coordinate (after scaling), drops points that fall
// outside the grid or have non-finite coordinates, and stores the
// element-wise maximum of the features of all points sharing a cell. The
// result does not depend on point order.
func ScatterMax(features mat.Matrix, coords quant.Coords, opts Options) (*Grid, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	n, channels := features.Dims()
	if err := lidar.CheckLen("features vs coords", n, len(coords)); err != nil {
		return nil, err
	}

	g := &Grid{
		Shape:    append([]int(nil), opts.Shape...),
		Channels: channels,
	}
	cells := g.Cells()
	g.Data = make([]float64, channels*cells) // zero is Fill
	g.Count = make([]int, cells)

	cell := make([]int, len(g.Shape))
	for p := 0; p < n; p++ {
		if !g.locate(coords[p], opts.ScaleRate, cell) {
			g.Dropped++
			continue
		}
		off := g.offset(cell)
		first := g.Count[off] == 0
		g.Count[off]++
		for ch := 0; ch < channels; ch++ {
			v := features.At(p, ch)
			i := ch*cells + off
			if first || v > g.Data[i] {
				g.Data[i] = v
			}
		}
	}
	if g.Dropped > 0 {
		lidar.Tracef("pool: dropped %d/%d points outside %v", g.Dropped, n, g.Shape)
	}
	return g, nil
}

func (g *Grid) locate(c quant.Coord, scale []float64, cell []int) bool {
	for i, s := range g.Shape {
		v := c[i]
		if scale != nil {
			v *= scale[i]
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
		f := math.Floor(v)
		if f < 0 || f >= float64(s) {
			return false
		}
		cell[i] = int(f)
	}
	return true
}

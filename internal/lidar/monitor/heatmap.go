package monitor

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/banshee-data/mosgrid/internal/lidar/pool"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// HeatMapOptions controls heat map rendering. Zero values select defaults.
type HeatMapOptions struct {
	Title  string
	XLabel string
	YLabel string
	Width  vg.Length
	Height vg.Length
	// Colors is the palette size.
	Colors int
}

func (o HeatMapOptions) withDefaults() HeatMapOptions {
	if o.Width <= 0 {
		o.Width = 8 * vg.Inch
	}
	if o.Height <= 0 {
		o.Height = 8 * vg.Inch
	}
	if o.Colors <= 0 {
		o.Colors = 32
	}
	if o.XLabel == "" {
		o.XLabel = "axis 1 (bin)"
	}
	if o.YLabel == "" {
		o.YLabel = "axis 0 (bin)"
	}
	return o
}

// ChannelMatrix lays one channel of g out as a matrix with one row per
// bin of the first axis. Three-dimensional grids collapse the last axis
// by maximum over occupied cells.
func ChannelMatrix(g *pool.Grid, ch int) (*mat.Dense, error) {
	if ch < 0 || ch >= g.Channels {
		return nil, fmt.Errorf("monitor: channel %d out of range [0,%d)", ch, g.Channels)
	}
	rows, cols, depth, err := planeShape(g)
	if err != nil {
		return nil, err
	}
	vals := g.Channel(ch)
	m := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			best := pool.Fill
			seen := false
			for d := 0; d < depth; d++ {
				cell := (r*cols+c)*depth + d
				if g.Count[cell] == 0 {
					continue
				}
				if !seen || vals[cell] > best {
					best = vals[cell]
					seen = true
				}
			}
			m.Set(r, c, best)
		}
	}
	return m, nil
}

// OccupancyMatrix lays the per-cell point counts of g out as a matrix.
// Three-dimensional grids sum over the last axis.
func OccupancyMatrix(g *pool.Grid) (*mat.Dense, error) {
	rows, cols, depth, err := planeShape(g)
	if err != nil {
		return nil, err
	}
	m := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			n := 0
			for d := 0; d < depth; d++ {
				n += g.Count[(r*cols+c)*depth+d]
			}
			m.Set(r, c, float64(n))
		}
	}
	return m, nil
}

func planeShape(g *pool.Grid) (rows, cols, depth int, err error) {
	switch len(g.Shape) {
	case 2:
		return g.Shape[0], g.Shape[1], 1, nil
	case 3:
		return g.Shape[0], g.Shape[1], g.Shape[2], nil
	}
	return 0, 0, 0, fmt.Errorf("monitor: cannot plot a %d-dimensional grid", len(g.Shape))
}

// gridXYZ adapts a matrix to plotter.GridXYZ with unit cells centred on
// integer bin indices.
type gridXYZ struct {
	m *mat.Dense
}

func (g gridXYZ) Dims() (c, r int) {
	r, c = g.m.Dims()
	return c, r
}

func (g gridXYZ) Z(c, r int) float64 { return g.m.At(r, c) }
func (g gridXYZ) X(c int) float64    { return float64(c) }
func (g gridXYZ) Y(r int) float64    { return float64(r) }

// HeatMap builds a plot of m. Row r of m is drawn at y=r.
func HeatMap(m *mat.Dense, opts HeatMapOptions) (*plot.Plot, error) {
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, fmt.Errorf("monitor: empty matrix")
	}
	opts = opts.withDefaults()

	hm := plotter.NewHeatMap(gridXYZ{m: m}, palette.Heat(opts.Colors, 1))
	if math.IsNaN(hm.Min) || math.IsNaN(hm.Max) {
		return nil, fmt.Errorf("monitor: matrix has no finite values")
	}
	// A constant grid would otherwise index the palette with NaN.
	if hm.Max <= hm.Min {
		hm.Max = hm.Min + 1
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = opts.XLabel
	p.Y.Label.Text = opts.YLabel
	p.Add(hm)
	return p, nil
}

// WriteHeatMap renders m in the given format ("png", "svg", "pdf", ...).
func WriteHeatMap(w io.Writer, m *mat.Dense, format string, opts HeatMapOptions) error {
	p, err := HeatMap(m, opts)
	if err != nil {
		return err
	}
	opts = opts.withDefaults()
	wt, err := p.WriterTo(opts.Width, opts.Height, format)
	if err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// SaveHeatMap renders m to path, choosing the format from its extension
// and creating parent directories as needed.
func SaveHeatMap(path string, m *mat.Dense, opts HeatMapOptions) error {
	p, err := HeatMap(m, opts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create plot directory: %w", err)
	}
	opts = opts.withDefaults()
	if err := p.Save(opts.Width, opts.Height, path); err != nil {
		return fmt.Errorf("failed to save heat map %s: %w", path, err)
	}
	return nil
}

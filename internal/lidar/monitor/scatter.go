package monitor

import (
	"fmt"
	"io"
	"math"

	"github.com/banshee-data/mosgrid/internal/lidar/sample"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// DefaultMaxPoints bounds the number of points drawn per frame.
const DefaultMaxPoints = 20000

// ScatterOptions controls RenderStackScatter.
type ScatterOptions struct {
	Title     string
	MaxPoints int // per frame; 0 selects DefaultMaxPoints
	// AssetsHost overrides where the echarts scripts are loaded from.
	AssetsHost string
}

// seriesColors cycles per frame offset, current frame first.
var seriesColors = []string{"#fde725", "#35b779", "#31688e", "#440154", "#b5de2b", "#26828e"}

// FrameSeriesName names the series of the frame at offset off.
func FrameSeriesName(off int) string {
	return fmt.Sprintf("t-%d", off)
}

// RenderStackScatter writes an HTML page with a top-down x/y scatter of
// every valid point in frames, one series per frame offset. Frames are
// expected to be aligned to the current frame, as produced by
// sample.Builder.
func RenderStackScatter(w io.Writer, frames []sample.Frame, o ScatterOptions) error {
	if len(frames) == 0 {
		return fmt.Errorf("monitor: no frames to plot")
	}
	maxPoints := o.MaxPoints
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}

	type series struct {
		name string
		data []opts.ScatterData
	}
	all := make([]series, 0, len(frames))
	maxAbs := 0.0
	total := 0
	for _, f := range frames {
		valid := countValid(f)
		// Downsample by stride to stay within maxPoints
		stride := 1
		if valid > maxPoints {
			stride = int(math.Ceil(float64(valid) / float64(maxPoints)))
		}
		data := make([]opts.ScatterData, 0, valid/stride+1)
		seen := 0
		for i := 0; i < f.Points.Len(); i++ {
			if f.ValidMask != nil && !f.ValidMask[i] {
				continue
			}
			seen++
			if (seen-1)%stride != 0 {
				continue
			}
			x, y, _ := f.Points.XYZ(i)
			maxAbs = math.Max(maxAbs, math.Max(math.Abs(x), math.Abs(y)))
			data = append(data, opts.ScatterData{Value: []interface{}{x, y}})
		}
		total += len(data)
		all = append(all, series{name: FrameSeriesName(f.Offset), data: data})
	}

	// Add a small padding so points at the edges are visible
	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}

	title := o.Title
	if title == "" {
		title = "Aligned frame stack"
	}
	initOpts := opts.Initialization{PageTitle: title, Theme: "dark", Width: "900px", Height: "900px"}
	if o.AssetsHost != "" {
		initOpts.AssetsHost = o.AssetsHost
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("frames=%d points=%d", len(frames), total)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)
	for i, s := range all {
		scatter.AddSeries(s.name, s.data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 2}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: seriesColors[i%len(seriesColors)]}),
		)
	}

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

func countValid(f sample.Frame) int {
	if f.ValidMask == nil {
		return f.Points.Len()
	}
	n := 0
	for _, v := range f.ValidMask {
		if v {
			n++
		}
	}
	return n
}

package monitor

import (
	"bytes"
	"strings"
	"testing"

	"github.com/banshee-data/mosgrid/internal/lidar"
	"github.com/banshee-data/mosgrid/internal/lidar/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(t *testing.T, off int, rows [][]float64, valid []bool) sample.Frame {
	t.Helper()
	c, err := lidar.CloudFromRows(rows)
	require.NoError(t, err)
	return sample.Frame{Offset: off, ScanIndex: 10 - off, Points: c, ValidMask: valid}
}

func TestRenderStackScatter(t *testing.T) {
	frames := []sample.Frame{
		frame(t, 0, [][]float64{{1, 2, 0, 0}, {3, 4, 0, 0}}, []bool{true, true}),
		frame(t, 1, [][]float64{{-5, 1, 0, 0}, {0, 0, 0, 0}}, []bool{true, false}),
	}
	var buf bytes.Buffer
	require.NoError(t, RenderStackScatter(&buf, frames, ScatterOptions{Title: "seq 08 scan 10"}))

	html := buf.String()
	assert.Contains(t, html, "seq 08 scan 10")
	assert.Contains(t, html, FrameSeriesName(0))
	assert.Contains(t, html, FrameSeriesName(1))
	assert.Contains(t, html, "points=3")
}

func TestRenderStackScatterDownsamples(t *testing.T) {
	rows := make([][]float64, 100)
	for i := range rows {
		rows[i] = []float64{float64(i), 0, 0, 0}
	}
	var buf bytes.Buffer
	err := RenderStackScatter(&buf, []sample.Frame{frame(t, 0, rows, nil)}, ScatterOptions{MaxPoints: 10})
	require.NoError(t, err)
	assert.True(t, strings.Contains(buf.String(), "points=10"))
}

func TestRenderStackScatterEmpty(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, RenderStackScatter(&buf, nil, ScatterOptions{}))
}

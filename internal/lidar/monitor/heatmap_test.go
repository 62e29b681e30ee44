package monitor

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/mosgrid/internal/lidar/pool"
	"github.com/banshee-data/mosgrid/internal/lidar/quant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func pooledGrid(t *testing.T, shape []int) *pool.Grid {
	t.Helper()
	features := mat.NewDense(3, 1, []float64{1, 5, 3})
	coords := quant.Coords{{0.5, 0.5, 0.5}, {0.2, 1.7, 1.5}, {0.9, 1.1, 0.1}}
	g, err := pool.ScatterMax(features, coords, pool.Options{Shape: shape})
	require.NoError(t, err)
	return g
}

func TestChannelMatrix2D(t *testing.T) {
	g := pooledGrid(t, []int{2, 2})
	m, err := ChannelMatrix(g, 0)
	require.NoError(t, err)

	want := mat.NewDense(2, 2, []float64{1, 5, 0, 0})
	assert.True(t, mat.Equal(want, m), "got %v", mat.Formatted(m))
}

func TestChannelMatrix3DCollapsesByMax(t *testing.T) {
	g := pooledGrid(t, []int{2, 2, 2})
	m, err := ChannelMatrix(g, 0)
	require.NoError(t, err)

	// (0,1,1) holds 5 and (0,1,0) holds 3
	assert.Equal(t, 5.0, m.At(0, 1))
	assert.Equal(t, 1.0, m.At(0, 0))
	assert.Equal(t, pool.Fill, m.At(1, 1))
}

func TestChannelMatrixRejectsBadChannel(t *testing.T) {
	g := pooledGrid(t, []int{2, 2})
	_, err := ChannelMatrix(g, 1)
	assert.Error(t, err)
}

func TestOccupancyMatrix(t *testing.T) {
	g := pooledGrid(t, []int{2, 2, 2})
	m, err := OccupancyMatrix(g)
	require.NoError(t, err)
	assert.Equal(t, 1.0, m.At(0, 0))
	assert.Equal(t, 2.0, m.At(0, 1))
	assert.Equal(t, 0.0, m.At(1, 0))
}

func TestWriteHeatMapPNG(t *testing.T) {
	g := pooledGrid(t, []int{2, 2})
	m, err := ChannelMatrix(g, 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteHeatMap(&buf, m, "png", HeatMapOptions{Title: "test"}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")), "output is not a PNG")
}

func TestWriteHeatMapConstantGrid(t *testing.T) {
	m := mat.NewDense(3, 3, nil)
	var buf bytes.Buffer
	require.NoError(t, WriteHeatMap(&buf, m, "svg", HeatMapOptions{}))
	assert.Contains(t, buf.String(), "<svg")
}

func TestSaveHeatMapCreatesDirectories(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{0, 1, 2, 3})
	path := filepath.Join(t.TempDir(), "nested", "bev.png")
	require.NoError(t, SaveHeatMap(path, m, HeatMapOptions{}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

package pool

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/banshee-data/mosgrid/internal/lidar"
	"github.com/banshee-data/mosgrid/internal/lidar/quant"
	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/mat"
)

func TestScatterMax_ChannelWiseMax(t *testing.T) {
	features := mat.NewDense(3, 2, []float64{
		1, 9,
		5, 2,
		-3, -3,
	})
	coords := quant.Coords{
		{0.2, 1.7, 0},
		{0.9, 1.1, 0},
		{1.5, 0.5, 0},
	}
	g, err := ScatterMax(features, coords, Options{Shape: []int{2, 2}})
	if err != nil {
		t.Fatalf("ScatterMax() error = %v", err)
	}

	// Cell (0,1) takes max per channel from two points: (5, 9).
	if got := g.At(0, 0, 1); got != 5 {
		t.Errorf("ch0 (0,1) = %v, want 5", got)
	}
	if got := g.At(1, 0, 1); got != 9 {
		t.Errorf("ch1 (0,1) = %v, want 9", got)
	}
	// A lone negative feature is kept, not clipped to the fill value.
	if got := g.At(0, 1, 0); got != -3 {
		t.Errorf("ch0 (1,0) = %v, want -3", got)
	}
	// Untouched cells hold the fill value.
	if got := g.At(0, 0, 0); got != Fill {
		t.Errorf("ch0 (0,0) = %v, want fill", got)
	}
	if diff := cmp.Diff([]int{0, 2, 1, 0}, g.Count); diff != "" {
		t.Errorf("Count (-want +got):\n%s", diff)
	}
	if g.Occupied() != 2 || g.Dropped != 0 {
		t.Errorf("Occupied=%d Dropped=%d", g.Occupied(), g.Dropped)
	}
}

func TestScatterMax_OrderIndependent(t *testing.T) {
	r := rand.New(rand.NewPCG(11, 3))
	const n, channels = 500, 4
	feat := make([]float64, n*channels)
	for i := range feat {
		feat[i] = r.NormFloat64()
	}
	coords := make(quant.Coords, n)
	for i := range coords {
		coords[i] = quant.Coord{r.Float64()*10 - 1, r.Float64()*10 - 1, r.Float64() * 4}
	}
	opts := Options{Shape: []int{8, 8, 4}}

	a, err := ScatterMax(mat.NewDense(n, channels, feat), coords, opts)
	if err != nil {
		t.Fatal(err)
	}

	perm := r.Perm(n)
	pfeat := make([]float64, n*channels)
	pcoords := make(quant.Coords, n)
	for dst, src := range perm {
		copy(pfeat[dst*channels:(dst+1)*channels], feat[src*channels:(src+1)*channels])
		pcoords[dst] = coords[src]
	}
	b, err := ScatterMax(mat.NewDense(n, channels, pfeat), pcoords, opts)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("permuted input changed grid (-a +b):\n%s", diff)
	}
	if a.Dropped == 0 {
		t.Error("expected some coordinates outside the grid")
	}
}

func TestScatterMax_DropsOutOfGridAndNonFinite(t *testing.T) {
	features := mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5})
	coords := quant.Coords{
		{-0.01, 0, 0},
		{4, 0, 0},
		{math.NaN(), 0, 0},
		{0, math.Inf(1), 0},
		{3.99, 3.99, 0},
	}
	g, err := ScatterMax(features, coords, Options{Shape: []int{4, 4}})
	if err != nil {
		t.Fatal(err)
	}
	if g.Dropped != 4 {
		t.Errorf("Dropped = %d, want 4", g.Dropped)
	}
	if got := g.At(0, 3, 3); got != 5 {
		t.Errorf("(3,3) = %v, want 5", got)
	}
}

func TestScatterMax_ScaleRate(t *testing.T) {
	features := mat.NewDense(2, 1, []float64{1, 7})
	coords := quant.Coords{{511.5, 10, 0}, {200, 3, 0}}
	g, err := ScatterMax(features, coords, Options{Shape: []int{256, 8}, ScaleRate: []float64{0.5, 0.5}})
	if err != nil {
		t.Fatal(err)
	}
	if got := g.At(0, 255, 5); got != 1 {
		t.Errorf("(255,5) = %v, want 1", got)
	}
	if got := g.At(0, 100, 1); got != 7 {
		t.Errorf("(100,1) = %v, want 7", got)
	}
}

func TestScatterMax_AcceptsCloudFeatures(t *testing.T) {
	c, _ := lidar.CloudFromRows([][]float64{{1, 2, 3, 0.5}, {1, 2, 4, 0.9}})
	coords := quant.Coords{{0, 0, 0}, {0, 0, 1}}
	g, err := ScatterMax(c, coords, Options{Shape: []int{1, 1, 2}})
	if err != nil {
		t.Fatal(err)
	}
	if g.Channels != 4 || g.At(3, 0, 0, 1) != 0.9 || g.At(2, 0, 0, 0) != 3 {
		t.Errorf("grid = %+v", g)
	}
	if len(g.Channel(3)) != 2 {
		t.Errorf("Channel len = %d", len(g.Channel(3)))
	}
}

func TestScatterMax_Errors(t *testing.T) {
	f := mat.NewDense(1, 1, []float64{1})
	var sErr *lidar.ShapeMismatchError

	if _, err := ScatterMax(f, quant.Coords{}, Options{Shape: []int{2, 2}}); !errors.As(err, &sErr) {
		t.Errorf("length mismatch error = %v", err)
	}
	if _, err := ScatterMax(f, quant.Coords{{}}, Options{Shape: []int{2}}); err == nil {
		t.Error("expected 1-D grid error")
	}
	if _, err := ScatterMax(f, quant.Coords{{}}, Options{Shape: []int{2, 0}}); err == nil {
		t.Error("expected zero dimension error")
	}
	if _, err := ScatterMax(f, quant.Coords{{}}, Options{Shape: []int{2, 2}, ScaleRate: []float64{1}}); !errors.As(err, &sErr) {
		t.Errorf("scale rate mismatch error = %v", err)
	}
}

package sample

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/banshee-data/mosgrid/internal/lidar"
)

// Plan selects which rows of an n-row frame fill a fixed-size buffer.
type Plan struct {
	// Index lists the kept source rows in ascending order.
	Index []int
	Size  int
}

// NewPlan keeps every row when n <= size and zero-pads the rest; otherwise
// it keeps a random subset of exactly size rows, in their original relative
// order.
func NewPlan(n, size int, r *rand.Rand) Plan {
	if n <= size {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return Plan{Index: idx, Size: size}
	}
	idx := r.Perm(n)[:size]
	sort.Ints(idx)
	return Plan{Index: idx, Size: size}
}

// PadLength is the number of padded rows.
func (p Plan) PadLength() int { return p.Size - len(p.Index) }

// ValidMask is true for real rows and false for padding.
func (p Plan) ValidMask() []bool {
	m := make([]bool, p.Size)
	for i := range p.Index {
		m[i] = true
	}
	return m
}

// Gather returns a Size-long slice of the selected elements followed by zero
// values.
func Gather[T any](p Plan, s []T) []T {
	out := make([]T, p.Size)
	for i, src := range p.Index {
		out[i] = s[src]
	}
	return out
}

// GatherCloud is Gather for point rows.
func GatherCloud(p Plan, c *lidar.Cloud) *lidar.Cloud {
	out := &lidar.Cloud{Data: make([]float64, p.Size*c.Channels), Channels: c.Channels}
	for i, src := range p.Index {
		copy(out.Row(i), c.Row(src))
	}
	return out
}

// AppendRange returns a copy of c with one more channel holding each
// point's distance from the origin, sqrt(x²+y²+z²).
func AppendRange(c *lidar.Cloud) *lidar.Cloud {
	ch := c.Channels + 1
	out := &lidar.Cloud{Data: make([]float64, c.Len()*ch), Channels: ch}
	for i := 0; i < c.Len(); i++ {
		row := out.Row(i)
		copy(row, c.Row(i))
		x, y, z := c.XYZ(i)
		row[ch-1] = math.Sqrt(x*x + y*y + z*z)
	}
	return out
}

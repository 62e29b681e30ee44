package lidar

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Channel indices of the fixed leading columns of a Cloud.
const (
	ChannelX         = 0
	ChannelY         = 1
	ChannelZ         = 2
	ChannelIntensity = 3

	// MinChannels is the minimum row width of a Cloud (x, y, z).
	MinChannels = 3
)

// Cloud is an ordered N×C point set stored row-major. Columns 0..2 hold
// x, y, z; column 3 holds intensity when present and any further columns are
// opaque extra channels. Row order is significant: labels, masks and
// quantized coordinates are aligned to it by index.
//
// Cloud implements mat.Matrix so per-point features can be handed straight
// to gonum routines and to the projection pooler.
type Cloud struct {
	Data     []float64
	Channels int
}

// NewCloud allocates a zeroed cloud with n rows of the given width.
func NewCloud(n, channels int) (*Cloud, error) {
	if channels < MinChannels {
		return nil, fmt.Errorf("cloud needs at least %d channels, got %d", MinChannels, channels)
	}
	if n < 0 {
		return nil, fmt.Errorf("negative row count %d", n)
	}
	return &Cloud{Data: make([]float64, n*channels), Channels: channels}, nil
}

// NewCloudFromData wraps an existing row-major buffer. The buffer is not
// copied.
func NewCloudFromData(data []float64, channels int) (*Cloud, error) {
	if channels < MinChannels {
		return nil, fmt.Errorf("cloud needs at least %d channels, got %d", MinChannels, channels)
	}
	if len(data)%channels != 0 {
		return nil, &ShapeMismatchError{What: "cloud buffer", Want: len(data) / channels * channels, Got: len(data)}
	}
	return &Cloud{Data: data, Channels: channels}, nil
}

// CloudFromRows copies rows into a new cloud. Every row must have the same
// width.
func CloudFromRows(rows [][]float64) (*Cloud, error) {
	if len(rows) == 0 {
		return &Cloud{Channels: MinChannels}, nil
	}
	width := len(rows[0])
	c, err := NewCloud(len(rows), width)
	if err != nil {
		return nil, err
	}
	for i, r := range rows {
		if len(r) != width {
			return nil, &ShapeMismatchError{What: fmt.Sprintf("row %d width", i), Want: width, Got: len(r)}
		}
		copy(c.Row(i), r)
	}
	return c, nil
}

// Len returns the number of points.
func (c *Cloud) Len() int {
	if c == nil || c.Channels == 0 {
		return 0
	}
	return len(c.Data) / c.Channels
}

// Row returns a view of point i. Writes through the view modify the cloud.
func (c *Cloud) Row(i int) []float64 {
	off := i * c.Channels
	return c.Data[off : off+c.Channels : off+c.Channels]
}

// XYZ returns the position of point i.
func (c *Cloud) XYZ(i int) (x, y, z float64) {
	off := i * c.Channels
	return c.Data[off], c.Data[off+1], c.Data[off+2]
}

// SetXYZ overwrites the position of point i, leaving other channels alone.
func (c *Cloud) SetXYZ(i int, x, y, z float64) {
	off := i * c.Channels
	c.Data[off], c.Data[off+1], c.Data[off+2] = x, y, z
}

// Clone returns a deep copy.
func (c *Cloud) Clone() *Cloud {
	data := make([]float64, len(c.Data))
	copy(data, c.Data)
	return &Cloud{Data: data, Channels: c.Channels}
}

// Column copies channel ch of every point into a new slice.
func (c *Cloud) Column(ch int) []float64 {
	n := c.Len()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = c.Data[i*c.Channels+ch]
	}
	return out
}

// Append concatenates clouds of equal width into a new cloud.
func Append(clouds ...*Cloud) (*Cloud, error) {
	if len(clouds) == 0 {
		return &Cloud{Channels: MinChannels}, nil
	}
	width := clouds[0].Channels
	total := 0
	for _, c := range clouds {
		if c.Channels != width {
			return nil, &ShapeMismatchError{What: "cloud channels", Want: width, Got: c.Channels}
		}
		total += len(c.Data)
	}
	data := make([]float64, 0, total)
	for _, c := range clouds {
		data = append(data, c.Data...)
	}
	return &Cloud{Data: data, Channels: width}, nil
}

// Dims implements mat.Matrix.
func (c *Cloud) Dims() (r, cols int) { return c.Len(), c.Channels }

// At implements mat.Matrix.
func (c *Cloud) At(i, j int) float64 {
	if i < 0 || i >= c.Len() || j < 0 || j >= c.Channels {
		panic(mat.ErrIndexOutOfRange)
	}
	return c.Data[i*c.Channels+j]
}

// T implements mat.Matrix.
func (c *Cloud) T() mat.Matrix { return mat.Transpose{Matrix: c} }

package lidar

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestCloudFromRows(t *testing.T) {
	c, err := CloudFromRows([][]float64{{1, 2, 3, 4}, {5, 6, 7, 8}})
	if err != nil {
		t.Fatalf("CloudFromRows() error = %v", err)
	}
	if c.Len() != 2 || c.Channels != 4 {
		t.Fatalf("got %d×%d, want 2×4", c.Len(), c.Channels)
	}
	if x, y, z := c.XYZ(1); x != 5 || y != 6 || z != 7 {
		t.Errorf("XYZ(1) = (%v,%v,%v)", x, y, z)
	}
	if got := c.Column(ChannelIntensity); got[0] != 4 || got[1] != 8 {
		t.Errorf("Column(intensity) = %v", got)
	}
}

func TestCloudFromRows_Ragged(t *testing.T) {
	_, err := CloudFromRows([][]float64{{1, 2, 3}, {1, 2}})
	var sErr *ShapeMismatchError
	if !errors.As(err, &sErr) {
		t.Fatalf("error = %v, want ShapeMismatchError", err)
	}
}

func TestNewCloud_TooFewChannels(t *testing.T) {
	if _, err := NewCloud(4, 2); err == nil {
		t.Error("expected error for 2 channels")
	}
	if _, err := NewCloudFromData(make([]float64, 7), 4); err == nil {
		t.Error("expected error for buffer not divisible by width")
	}
}

func TestAppend(t *testing.T) {
	a, _ := CloudFromRows([][]float64{{1, 1, 1}})
	b, _ := CloudFromRows([][]float64{{2, 2, 2}, {3, 3, 3}})
	out, err := Append(a, b)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if out.Len() != 3 || out.Row(2)[0] != 3 {
		t.Errorf("Append = %v", out.Data)
	}

	wide, _ := CloudFromRows([][]float64{{1, 1, 1, 1}})
	if _, err := Append(a, wide); err == nil {
		t.Error("expected error appending clouds of different width")
	}
}

func TestCloudImplementsMatrix(t *testing.T) {
	c, _ := CloudFromRows([][]float64{{1, 2, 3}, {4, 5, 6}})
	var m mat.Matrix = c
	r, cols := m.Dims()
	if r != 2 || cols != 3 {
		t.Fatalf("Dims() = %d,%d", r, cols)
	}
	if m.T().At(2, 1) != 6 {
		t.Errorf("T().At(2,1) = %v, want 6", m.T().At(2, 1))
	}
}

func TestRange(t *testing.T) {
	r := Range{Min: -1, Max: 1}
	tests := []struct {
		v    float64
		want bool
	}{
		{-1, true},
		{0, true},
		{0.999999, true},
		{1, false},
		{-1.000001, false},
	}
	for _, tt := range tests {
		if got := r.Contains(tt.v); got != tt.want {
			t.Errorf("Contains(%v) = %v, want %v", tt.v, got, tt.want)
		}
	}
	if r.Span() != 2 {
		t.Errorf("Span() = %v, want 2", r.Span())
	}
}

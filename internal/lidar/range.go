package lidar

import "math"

// Range is an axis interval. Membership is half-open: [Min, Max).
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether Min <= v < Max. NaN is never contained.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v < r.Max
}

// Span returns Max - Min.
func (r Range) Span() float64 { return r.Max - r.Min }

// Radians converts a range expressed in degrees.
func (r Range) Radians() Range {
	return Range{Min: r.Min * math.Pi / 180.0, Max: r.Max * math.Pi / 180.0}
}

// Package quant maps points to fractional grid coordinates under one of four
// coordinate systems.
//
// Coordinates are returned unfloored and unclamped. Points outside the grid
// yield indices outside [0, size) and it is up to the consumer (see package
// pool) to drop them.
//
// Axis order and sign conventions per system:
//
//	Cartesian    (x, y, z)          size (X, Y, Z)
//	Spherical    (theta, phi, r)    size (H, W, R)
//	Cylindrical  (z, phi, r)        size (H, W, R)
//	Polar        (r, phi, z)        size (H, W, Z)
//
// For every angular system phi = phiMax - atan2(x, y), so index 0 lies at the
// top of the configured azimuth range and phi grows as the azimuth shrinks.
package quant

import (
	"fmt"
	"math"

	"github.com/banshee-data/mosgrid/internal/lidar"
)

// Epsilon is added to radii so the origin point does not divide by zero.
const Epsilon = 1e-12

// System identifies a coordinate system.
type System int

const (
	SystemCartesian System = iota
	SystemSpherical
	SystemCylindrical
	SystemPolar
)

func (s System) String() string {
	switch s {
	case SystemCartesian:
		return "cartesian"
	case SystemSpherical:
		return "spherical"
	case SystemCylindrical:
		return "cylindrical"
	case SystemPolar:
		return "polar"
	default:
		return fmt.Sprintf("System(%d)", int(s))
	}
}

// Coord is one fractional grid coordinate in the owning system's axis order.
type Coord [3]float64

// Floor returns the integer cell containing c. ok is false when any
// component is not finite.
func (c Coord) Floor() (cell [3]int, ok bool) {
	for i, v := range c {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return cell, false
		}
		cell[i] = int(math.Floor(v))
	}
	return cell, true
}

// Coords holds one Coord per input point, in point order.
type Coords []Coord

// OutOfGrid counts coordinates whose floored cell falls outside shape or that
// are not finite.
func (cs Coords) OutOfGrid(shape [3]int) int {
	n := 0
	for _, c := range cs {
		cell, ok := c.Floor()
		if !ok {
			n++
			continue
		}
		for i := range cell {
			if cell[i] < 0 || cell[i] >= shape[i] {
				n++
				break
			}
		}
	}
	return n
}

// Axis returns component i of every coordinate.
func (cs Coords) Axis(i int) []float64 {
	out := make([]float64, len(cs))
	for n, c := range cs {
		out[n] = c[i]
	}
	return out
}

// Quantizer converts a point set to fractional grid coordinates.
type Quantizer interface {
	System() System
	// Shape is the grid size in the system's axis order.
	Shape() [3]int
	Quantize(c *lidar.Cloud) (Coords, error)
}

func validateSize(size [3]int) error {
	for i, s := range size {
		if s <= 0 {
			return fmt.Errorf("size[%d] must be positive, got %d", i, s)
		}
	}
	return nil
}

func validateRange(name string, r lidar.Range) error {
	if !(r.Max > r.Min) {
		return fmt.Errorf("%s: max %f must exceed min %f", name, r.Max, r.Min)
	}
	return nil
}

func validateAngular(name string, r lidar.Range) error {
	if err := validateRange(name, r); err != nil {
		return err
	}
	if r.Span() > 360 {
		return fmt.Errorf("%s: span %f exceeds 360 degrees", name, r.Span())
	}
	return nil
}

// azimuth returns phiMax - atan2(x, y) with phiMax in radians.
func azimuth(phiMax, x, y float64) float64 {
	return phiMax - math.Atan2(x, y)
}

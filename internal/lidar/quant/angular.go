package quant

import (
	"fmt"
	"math"

	"github.com/banshee-data/mosgrid/internal/lidar"
	"gonum.org/v1/gonum/floats"
)

// Spherical is the range-view grid: elevation rows, azimuth columns and
// radial depth bins. Phi and Theta are in degrees.
type Spherical struct {
	Phi, Theta lidar.Range
	R          lidar.Range
	Size       [3]int // H (theta), W (phi), R
}

func (q Spherical) System() System { return SystemSpherical }
func (q Spherical) Shape() [3]int  { return q.Size }

func (q Spherical) Validate() error {
	if err := validateSize(q.Size); err != nil {
		return fmt.Errorf("spherical: %w", err)
	}
	if err := validateAngular("spherical phi", q.Phi); err != nil {
		return err
	}
	if err := validateAngular("spherical theta", q.Theta); err != nil {
		return err
	}
	return validateRange("spherical r", q.R)
}

// Quantize returns (theta_quan, phi_quan, r_quan) per point where
// d = |p| + Epsilon, theta = thetaMax - asin(z/d) and r_quan = (d-rmin)/dr.
// Angular indices are not offset by the range minimum.
func (q Spherical) Quantize(c *lidar.Cloud) (Coords, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	phi, theta := q.Phi.Radians(), q.Theta.Radians()
	dtheta := theta.Span() / float64(q.Size[0])
	dphi := phi.Span() / float64(q.Size[1])
	dr := q.R.Span() / float64(q.Size[2])

	n := c.Len()
	out := make(Coords, n)
	for i := 0; i < n; i++ {
		x, y, z := c.XYZ(i)
		d := math.Sqrt(x*x+y*y+z*z) + Epsilon
		out[i] = Coord{
			(theta.Max - math.Asin(z/d)) / dtheta,
			azimuth(phi.Max, x, y) / dphi,
			(d - q.R.Min) / dr,
		}
	}
	return out, nil
}

// Cylindrical bins height linearly, azimuth angularly and planar radius
// linearly. Phi is in degrees.
type Cylindrical struct {
	Phi  lidar.Range
	Z    lidar.Range
	R    lidar.Range
	Size [3]int // H (z), W (phi), R
}

func (q Cylindrical) System() System { return SystemCylindrical }
func (q Cylindrical) Shape() [3]int  { return q.Size }

func (q Cylindrical) Validate() error {
	if err := validateSize(q.Size); err != nil {
		return fmt.Errorf("cylindrical: %w", err)
	}
	if err := validateAngular("cylindrical phi", q.Phi); err != nil {
		return err
	}
	if err := validateRange("cylindrical z", q.Z); err != nil {
		return err
	}
	return validateRange("cylindrical r", q.R)
}

// Quantize returns (z_quan, phi_quan, r_quan) per point with
// r = sqrt(x²+y²) + Epsilon.
func (q Cylindrical) Quantize(c *lidar.Cloud) (Coords, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	phi := q.Phi.Radians()
	dz := q.Z.Span() / float64(q.Size[0])
	dphi := phi.Span() / float64(q.Size[1])
	dr := q.R.Span() / float64(q.Size[2])

	n := c.Len()
	out := make(Coords, n)
	for i := 0; i < n; i++ {
		x, y, z := c.XYZ(i)
		r := math.Sqrt(x*x+y*y) + Epsilon
		out[i] = Coord{
			(z - q.Z.Min) / dz,
			azimuth(phi.Max, x, y) / dphi,
			(r - q.R.Min) / dr,
		}
	}
	return out, nil
}

// Polar is the polar bird's-eye-view grid. Its height axis is not
// configured: every call derives it from the min and max z of the cloud it
// is given, so two batches with different z extents get different bin
// widths. Phi is in degrees.
type Polar struct {
	Phi  lidar.Range
	R    lidar.Range
	Size [3]int // H (r), W (phi), Z
}

func (q Polar) System() System { return SystemPolar }
func (q Polar) Shape() [3]int  { return q.Size }

func (q Polar) Validate() error {
	if err := validateSize(q.Size); err != nil {
		return fmt.Errorf("polar: %w", err)
	}
	if err := validateAngular("polar phi", q.Phi); err != nil {
		return err
	}
	return validateRange("polar r", q.R)
}

// HeightRange returns the z extent Quantize would use for c and the
// resulting bin width. An empty cloud returns ErrEmptyPointSet.
func (q Polar) HeightRange(c *lidar.Cloud) (lidar.Range, float64, error) {
	if c.Len() == 0 {
		return lidar.Range{}, 0, lidar.ErrEmptyPointSet
	}
	if q.Size[2] <= 0 {
		return lidar.Range{}, 0, fmt.Errorf("polar: size[2] must be positive, got %d", q.Size[2])
	}
	zs := c.Column(lidar.ChannelZ)
	r := lidar.Range{Min: floats.Min(zs), Max: floats.Max(zs)}
	return r, r.Span() / float64(q.Size[2]), nil
}

// Quantize returns (r_quan, phi_quan, z_quan) per point. When every point
// shares one z the bin width is zero and z_quan is NaN (0/0); such points
// are dropped by the pooler.
func (q Polar) Quantize(c *lidar.Cloud) (Coords, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	n := c.Len()
	if n == 0 {
		return Coords{}, nil
	}
	zr, dz, err := q.HeightRange(c)
	if err != nil {
		return nil, err
	}
	phi := q.Phi.Radians()
	dr := q.R.Span() / float64(q.Size[0])
	dphi := phi.Span() / float64(q.Size[1])

	out := make(Coords, n)
	for i := 0; i < n; i++ {
		x, y, z := c.XYZ(i)
		r := math.Sqrt(x*x+y*y) + Epsilon
		out[i] = Coord{
			(r - q.R.Min) / dr,
			azimuth(phi.Max, x, y) / dphi,
			(z - zr.Min) / dz,
		}
	}
	return out, nil
}

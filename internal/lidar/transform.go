package lidar

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// SingularTolerance is the |det| below which a transform is treated as
// non-invertible.
const SingularTolerance = 1e-12

// RigidValidationTolerance bounds the deviation of a rotation block from
// orthonormality (and its determinant from 1) accepted by IsRigid.
const RigidValidationTolerance = 0.01

// Transform is a 4x4 homogeneous transform stored row-major:
// m00,m01,m02,m03, m10,... Transforms compose by matrix multiplication and
// act on column vectors, so a.Mul(b) applies b first.
type Transform [16]float64

// Identity returns the 4x4 identity transform.
func Identity() Transform {
	return Transform{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// FromRows3x4 builds a transform from the 12 values of a row-major 3x4
// [R|t] block. The bottom row is set to [0 0 0 1].
func FromRows3x4(v [12]float64) Transform {
	var t Transform
	copy(t[:12], v[:])
	t[15] = 1
	return t
}

// NewTranslation returns a pure translation.
func NewTranslation(x, y, z float64) Transform {
	t := Identity()
	t[3], t[7], t[11] = x, y, z
	return t
}

// At returns element (r, c).
func (t Transform) At(r, c int) float64 { return t[4*r+c] }

// Translation returns the translation column.
func (t Transform) Translation() (x, y, z float64) { return t[3], t[7], t[11] }

// Mul returns t·o.
func (t Transform) Mul(o Transform) Transform {
	var out Transform
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += t[4*r+k] * o[4*k+c]
			}
			out[4*r+c] = sum
		}
	}
	return out
}

// Apply maps point (x,y,z) with homogeneous coordinate 1.
func (t Transform) Apply(x, y, z float64) (wx, wy, wz float64) {
	wx = t[0]*x + t[1]*y + t[2]*z + t[3]
	wy = t[4]*x + t[5]*y + t[6]*z + t[7]
	wz = t[8]*x + t[9]*y + t[10]*z + t[11]
	return
}

// IsHomogeneous reports whether the bottom row is exactly [0 0 0 1].
func (t Transform) IsHomogeneous() bool {
	return t[12] == 0 && t[13] == 0 && t[14] == 0 && t[15] == 1
}

// IsRigid reports whether t is a proper rigid transform: homogeneous bottom
// row and an orthonormal rotation block with determinant 1, both within tol.
func (t Transform) IsRigid(tol float64) bool {
	if !t.IsHomogeneous() {
		return false
	}
	r := t.rotation()
	if math.Abs(mat.Det(r)-1.0) > tol {
		return false
	}
	var rrt mat.Dense
	rrt.Mul(r, r.T())
	return mat.EqualApprox(&rrt, eye3(), tol)
}

// Inverse returns the exact inverse of t. For a homogeneous transform
// [A t; 0 1] the block formula [A⁻¹ -A⁻¹t; 0 1] is used so the bottom row
// stays exactly [0 0 0 1]; A is inverted by LU factorization and need not be
// orthonormal. Any other matrix is inverted as a general 4x4.
func (t Transform) Inverse() (Transform, error) {
	if !t.IsHomogeneous() {
		return t.inverseGeneral()
	}

	a := t.rotation()
	det := mat.Det(a)
	if math.IsNaN(det) || math.Abs(det) < SingularTolerance {
		return Transform{}, &SingularMatrixError{Det: det}
	}
	var ai mat.Dense
	if err := ai.Inverse(a); err != nil {
		return Transform{}, singularOr(err, det)
	}

	tx, ty, tz := t.Translation()
	var out Transform
	for r := 0; r < 3; r++ {
		r0, r1, r2 := ai.At(r, 0), ai.At(r, 1), ai.At(r, 2)
		out[4*r+0] = r0
		out[4*r+1] = r1
		out[4*r+2] = r2
		out[4*r+3] = -(r0*tx + r1*ty + r2*tz)
	}
	out[15] = 1
	return out, nil
}

func (t Transform) inverseGeneral() (Transform, error) {
	m := mat.NewDense(4, 4, t[:])
	det := mat.Det(m)
	if math.IsNaN(det) || math.Abs(det) < SingularTolerance {
		return Transform{}, &SingularMatrixError{Det: det}
	}
	var mi mat.Dense
	if err := mi.Inverse(m); err != nil {
		return Transform{}, singularOr(err, det)
	}
	var out Transform
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[4*r+c] = mi.At(r, c)
		}
	}
	return out, nil
}

// ApproxEqual reports whether every element differs by at most tol.
func (t Transform) ApproxEqual(o Transform, tol float64) bool {
	for i := range t {
		if math.Abs(t[i]-o[i]) > tol {
			return false
		}
	}
	return true
}

func (t Transform) rotation() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		t[0], t[1], t[2],
		t[4], t[5], t[6],
		t[8], t[9], t[10],
	})
}

func eye3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

// singularOr maps gonum's ill-conditioning report onto SingularMatrixError.
func singularOr(err error, det float64) error {
	var cond mat.Condition
	if errors.As(err, &cond) {
		return &SingularMatrixError{Det: det}
	}
	return err
}

// TransformCloud applies t to the x, y, z columns of every point and returns
// a new cloud. Channels from index 3 on are copied unchanged.
func TransformCloud(c *Cloud, t Transform) *Cloud {
	out := c.Clone()
	n := out.Len()
	for i := 0; i < n; i++ {
		x, y, z := t.Apply(c.XYZ(i))
		out.SetXYZ(i, x, y, z)
	}
	return out
}

package lidar

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// kittiTr is the velodyne-to-camera calibration of KITTI odometry sequence
// 00. Its rotation block is only approximately orthonormal.
var kittiTr = FromRows3x4([12]float64{
	4.276802385584e-04, -9.999672484946e-01, -8.084491683471e-03, -1.198459927713e-02,
	-7.210626507497e-03, 8.081198471645e-03, -9.999413164504e-01, -5.403984729748e-02,
	9.999738645903e-01, 4.859485810390e-04, -7.206933692422e-03, -2.921968648686e-01,
})

func rotZ(deg float64) Transform {
	rad := deg * math.Pi / 180
	c, s := math.Cos(rad), math.Sin(rad)
	return Transform{
		c, -s, 0, 0,
		s, c, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

func TestFromRows3x4(t *testing.T) {
	tr := FromRows3x4([12]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
	want := Transform{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 0, 0, 0, 1}
	if diff := cmp.Diff(want, tr); diff != "" {
		t.Errorf("FromRows3x4 mismatch (-want +got):\n%s", diff)
	}
	if !tr.IsHomogeneous() {
		t.Error("expected homogeneous bottom row")
	}
}

func TestInverse_TimesOriginalIsIdentity(t *testing.T) {
	tests := []struct {
		name string
		tr   Transform
	}{
		{"identity", Identity()},
		{"translation", NewTranslation(5, -2, 0.5)},
		{"rotation", rotZ(37)},
		{"rotation+translation", NewTranslation(1, 2, 3).Mul(rotZ(-120))},
		{"kitti calibration", kittiTr},
		{"general 4x4", Transform{2, 0, 0, 1, 0, 3, 0, 0, 0, 0, 4, 0, 0.5, 0, 0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := tt.tr.Inverse()
			if err != nil {
				t.Fatalf("Inverse() error = %v", err)
			}
			if got := inv.Mul(tt.tr); !got.ApproxEqual(Identity(), 1e-6) {
				t.Errorf("inv·T = %v, want identity", got)
			}
			if got := tt.tr.Mul(inv); !got.ApproxEqual(Identity(), 1e-6) {
				t.Errorf("T·inv = %v, want identity", got)
			}
		})
	}
}

func TestInverse_KeepsHomogeneousRowExact(t *testing.T) {
	inv, err := kittiTr.Inverse()
	if err != nil {
		t.Fatalf("Inverse() error = %v", err)
	}
	if !inv.IsHomogeneous() {
		t.Errorf("bottom row = %v, want exactly [0 0 0 1]", inv[12:])
	}
}

func TestInverse_Singular(t *testing.T) {
	tests := []struct {
		name string
		tr   Transform
	}{
		{"zero rotation", FromRows3x4([12]float64{0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 3})},
		{"rank deficient", FromRows3x4([12]float64{1, 2, 3, 0, 2, 4, 6, 0, 0, 0, 1, 0})},
		{"general zero", Transform{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.tr.Inverse()
			var sErr *SingularMatrixError
			if !errors.As(err, &sErr) {
				t.Fatalf("Inverse() error = %v, want SingularMatrixError", err)
			}
		})
	}
}

func TestApply(t *testing.T) {
	tr := NewTranslation(5, 0, 0).Mul(rotZ(90))
	x, y, z := tr.Apply(1, 0, 2)
	got := []float64{x, y, z}
	want := []float64{5, 1, 2}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Apply mismatch (-want +got):\n%s", diff)
	}
}

func TestIsRigid(t *testing.T) {
	if !rotZ(15).IsRigid(RigidValidationTolerance) {
		t.Error("rotation should be rigid")
	}
	if !kittiTr.IsRigid(RigidValidationTolerance) {
		t.Error("KITTI calibration should be rigid within tolerance")
	}
	scaled := Identity()
	scaled[0], scaled[5], scaled[10] = 2, 2, 2
	if scaled.IsRigid(RigidValidationTolerance) {
		t.Error("scaled transform should not be rigid")
	}
	bad := Identity()
	bad[12] = 1
	if bad.IsRigid(RigidValidationTolerance) {
		t.Error("non-homogeneous transform should not be rigid")
	}
}

func TestTransformCloud_PreservesExtraChannels(t *testing.T) {
	c, err := CloudFromRows([][]float64{
		{0, 0, 0, 0.25, 7},
		{1, 1, 1, 0.5, 8},
	})
	if err != nil {
		t.Fatal(err)
	}
	out := TransformCloud(c, NewTranslation(5, 0, 0))

	want := []float64{5, 0, 0, 0.25, 7, 6, 1, 1, 0.5, 8}
	if diff := cmp.Diff(want, out.Data); diff != "" {
		t.Errorf("TransformCloud mismatch (-want +got):\n%s", diff)
	}
	if c.Data[0] != 0 {
		t.Error("input cloud was modified")
	}
}

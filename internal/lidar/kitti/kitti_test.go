package kitti

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/banshee-data/mosgrid/internal/lidar"
	"github.com/google/go-cmp/cmp"
)

const identityCalib = "P0: 1 0 0 0 0 1 0 0 0 0 1 0\nTr: 1 0 0 0 0 1 0 0 0 0 1 0\n"
const twoPoses = "1 0 0 0 0 1 0 0 0 0 1 0\n1 0 0 5 0 1 0 0 0 0 1 0\n"

func encodePoints(t *testing.T, rows ...[]float64) []byte {
	t.Helper()
	c, err := lidar.CloudFromRows(rows)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := EncodePoints(&buf, c); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func encodeLabels(t *testing.T, labels ...uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := EncodeLabels(&buf, labels); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func testFS(t *testing.T) fstest.MapFS {
	return fstest.MapFS{
		CalibFile:             {Data: []byte(identityCalib)},
		PosesFile:             {Data: []byte(twoPoses)},
		"velodyne/000001.bin": {Data: encodePoints(t, []float64{0.5, 1, 2, 0.25})},
		"velodyne/000000.bin": {Data: encodePoints(t, []float64{1, 2, 3, 0.5}, []float64{-1, -2, -3, 1})},
		"velodyne/README":     {Data: []byte("ignored")},
		"labels/000000.label": {Data: encodeLabels(t, 10|7<<16, 252)},
		"labels/000001.label": {Data: encodeLabels(t, 40)},
	}
}

func TestPointsRoundTrip(t *testing.T) {
	in := encodePoints(t, []float64{1.5, -2.25, 3, 0.75}, []float64{0, 0, 0, 0})
	c, err := ReadPoints(bytes.NewReader(in))
	if err != nil {
		t.Fatalf("ReadPoints() error = %v", err)
	}
	if diff := cmp.Diff([]float64{1.5, -2.25, 3, 0.75, 0, 0, 0, 0}, c.Data); diff != "" {
		t.Errorf("points (-want +got):\n%s", diff)
	}
	if c.Channels != PointChannels {
		t.Errorf("Channels = %d", c.Channels)
	}
}

func TestEncodePoints_PadsIntensity(t *testing.T) {
	c, _ := lidar.CloudFromRows([][]float64{{1, 2, 3}})
	var buf bytes.Buffer
	if err := EncodePoints(&buf, c); err != nil {
		t.Fatal(err)
	}
	got, err := ReadPoints(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{1, 2, 3, 0}, got.Data); diff != "" {
		t.Errorf("points (-want +got):\n%s", diff)
	}
}

func TestReadPoints_Truncated(t *testing.T) {
	if _, err := ReadPoints(bytes.NewReader(make([]byte, 17))); err == nil {
		t.Error("expected error for truncated record")
	}
}

func TestReadLabels_MasksInstance(t *testing.T) {
	got, err := ReadLabels(bytes.NewReader(encodeLabels(t, 10|7<<16, 252|1<<16, 0)))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint32{10, 252, 0}, got); diff != "" {
		t.Errorf("labels (-want +got):\n%s", diff)
	}
	if _, err := ReadLabels(bytes.NewReader(make([]byte, 3))); err == nil {
		t.Error("expected error for truncated label")
	}
}

func TestMOSClass(t *testing.T) {
	tests := map[uint32]uint32{
		0: ClassIgnore, 1: ClassIgnore,
		10: ClassStatic, 40: ClassStatic, 249: ClassStatic,
		250: ClassMoving, 252: ClassMoving, 259: ClassMoving,
	}
	for in, want := range tests {
		if got := MOSClass(in); got != want {
			t.Errorf("MOSClass(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestMOSLabelMap(t *testing.T) {
	m := MOSLabelMap()
	if len(m) != MaxSemanticLabel+1 {
		t.Fatalf("len = %d, want %d", len(m), MaxSemanticLabel+1)
	}
	if m[252] != ClassMoving || m[40] != ClassStatic || m[1] != ClassIgnore {
		t.Errorf("unexpected entries: 252->%d 40->%d 1->%d", m[252], m[40], m[1])
	}
}

func TestOpen(t *testing.T) {
	seq, err := Open(testFS(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if seq.Len() != 2 || !seq.Labelled() {
		t.Fatalf("Len=%d Labelled=%t", seq.Len(), seq.Labelled())
	}
	if seq.Name(0) != "000000" || seq.Name(1) != "000001" {
		t.Errorf("names = %s, %s", seq.Name(0), seq.Name(1))
	}

	scan, err := seq.Scan(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if scan.Points.Len() != 2 {
		t.Errorf("scan 0 points = %d", scan.Points.Len())
	}
	if diff := cmp.Diff([]uint32{10, 252}, scan.Labels); diff != "" {
		t.Errorf("labels (-want +got):\n%s", diff)
	}

	rel, err := seq.Poses.RelativeTransform(1, 0)
	if err != nil {
		t.Fatal(err)
	}
	x, y, z := rel.Apply(0, 0, 0)
	if x != 5 || y != 0 || z != 0 {
		t.Errorf("origin of scan 1 in scan 0 = (%v,%v,%v), want (5,0,0)", x, y, z)
	}

	if _, err := seq.Scan(context.Background(), 2); !errors.Is(err, ErrScanNotFound) {
		t.Errorf("out of range error = %v", err)
	}
}

func TestOpen_Unlabelled(t *testing.T) {
	fsys := testFS(t)
	delete(fsys, "labels/000000.label")
	delete(fsys, "labels/000001.label")
	seq, err := Open(fsys)
	if err != nil {
		t.Fatal(err)
	}
	scan, err := seq.Scan(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if seq.Labelled() || scan.Labels != nil {
		t.Errorf("unexpected labels: %v", scan.Labels)
	}
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(fstest.MapFS)
	}{
		{"missing calibration", func(m fstest.MapFS) { delete(m, CalibFile) }},
		{"missing Tr", func(m fstest.MapFS) { m[CalibFile] = &fstest.MapFile{Data: []byte("P0: 1 0 0 0 0 1 0 0 0 0 1 0\n")} }},
		{"missing poses", func(m fstest.MapFS) { delete(m, PosesFile) }},
		{"too few poses", func(m fstest.MapFS) { m[PosesFile] = &fstest.MapFile{Data: []byte("1 0 0 0 0 1 0 0 0 0 1 0\n")} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := testFS(t)
			tt.mutate(fsys)
			if _, err := Open(fsys); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestScan_LabelCountMismatch(t *testing.T) {
	fsys := testFS(t)
	fsys["labels/000001.label"] = &fstest.MapFile{Data: encodeLabels(t, 1, 2, 3)}
	seq, err := Open(fsys)
	if err != nil {
		t.Fatal(err)
	}
	var sErr *lidar.ShapeMismatchError
	if _, err := seq.Scan(context.Background(), 1); !errors.As(err, &sErr) {
		t.Errorf("error = %v, want ShapeMismatchError", err)
	}
}

func TestOpenDir(t *testing.T) {
	dir := t.TempDir()
	for name, f := range testFS(t) {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, f.Data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	seq, err := OpenDir(dir)
	if err != nil {
		t.Fatalf("OpenDir() error = %v", err)
	}
	if seq.Len() != 2 {
		t.Errorf("Len = %d", seq.Len())
	}
}

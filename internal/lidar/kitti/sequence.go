// Package kitti reads sequences laid out like SemanticKITTI:
//
//	calib.txt
//	poses.txt
//	velodyne/000000.bin
//	labels/000000.label   (optional)
package kitti

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/banshee-data/mosgrid/internal/lidar"
	"github.com/banshee-data/mosgrid/internal/lidar/calib"
	"github.com/banshee-data/mosgrid/internal/lidar/stack"
)

const (
	CalibFile   = "calib.txt"
	PosesFile   = "poses.txt"
	VelodyneDir = "velodyne"
	LabelsDir   = "labels"
)

// ErrScanNotFound is returned for an index outside the sequence.
var ErrScanNotFound = errors.New("scan not found")

// Sequence is an opened sequence. Calibration and poses are parsed up front;
// scans are read on demand. A Sequence is safe for concurrent use.
type Sequence struct {
	fsys        fs.FS
	Calibration calib.Calibration
	Poses       *calib.PoseTrack
	names       []string // velodyne file stems in scan order
	labelled    bool
}

// OpenDir opens the sequence rooted at dir.
func OpenDir(dir string) (*Sequence, error) {
	return Open(os.DirFS(dir))
}

// Open parses calib.txt and poses.txt and indexes the velodyne scans. Every
// scan needs a pose; labels are used only when the labels directory exists.
func Open(fsys fs.FS) (*Sequence, error) {
	cf, err := fsys.Open(CalibFile)
	if err != nil {
		return nil, fmt.Errorf("open calibration: %w", err)
	}
	cal, err := calib.ParseCalibration(cf)
	cf.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", CalibFile, err)
	}

	pf, err := fsys.Open(PosesFile)
	if err != nil {
		return nil, fmt.Errorf("open poses: %w", err)
	}
	poses, err := calib.ParsePoses(pf, cal)
	pf.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", PosesFile, err)
	}

	entries, err := fs.ReadDir(fsys, VelodyneDir)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".bin") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".bin"))
	}
	sort.Strings(names)

	if len(names) > poses.Len() {
		return nil, fmt.Errorf("%d scans but only %d poses", len(names), poses.Len())
	}
	if len(names) < poses.Len() {
		lidar.Opsf("kitti: %d poses for %d scans; trailing poses unused", poses.Len(), len(names))
	}

	labelled := false
	if info, err := fs.Stat(fsys, LabelsDir); err == nil && info.IsDir() {
		labelled = true
	}

	lidar.Diagf("kitti: opened sequence with %d scans, labelled=%t, calibration keys %v",
		len(names), labelled, cal.Keys())
	return &Sequence{
		fsys:        fsys,
		Calibration: cal,
		Poses:       poses,
		names:       names,
		labelled:    labelled,
	}, nil
}

// Len returns the number of scans.
func (s *Sequence) Len() int { return len(s.names) }

// Labelled reports whether the sequence has a labels directory.
func (s *Sequence) Labelled() bool { return s.labelled }

// Name returns the file stem of scan i.
func (s *Sequence) Name(i int) string { return s.names[i] }

// Scan reads scan i and, for labelled sequences, its semantic labels.
func (s *Sequence) Scan(ctx context.Context, i int) (stack.Scan, error) {
	if i < 0 || i >= len(s.names) {
		return stack.Scan{}, fmt.Errorf("scan %d: %w", i, ErrScanNotFound)
	}
	if err := ctx.Err(); err != nil {
		return stack.Scan{}, err
	}

	name := s.names[i]
	pts, err := s.readPoints(path.Join(VelodyneDir, name+".bin"))
	if err != nil {
		return stack.Scan{}, err
	}
	scan := stack.Scan{Points: pts}
	if !s.labelled {
		return scan, nil
	}

	f, err := s.fsys.Open(path.Join(LabelsDir, name+".label"))
	if err != nil {
		return stack.Scan{}, fmt.Errorf("scan %s labels: %w", name, err)
	}
	defer f.Close()
	labels, err := ReadLabels(f)
	if err != nil {
		return stack.Scan{}, fmt.Errorf("scan %s labels: %w", name, err)
	}
	if err := lidar.CheckLen(fmt.Sprintf("scan %s labels", name), pts.Len(), len(labels)); err != nil {
		return stack.Scan{}, err
	}
	scan.Labels = labels
	return scan, nil
}

func (s *Sequence) readPoints(name string) (*lidar.Cloud, error) {
	f, err := s.fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c, err := ReadPoints(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return c, nil
}

package calib

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/banshee-data/mosgrid/internal/lidar"
)

// PoseTrack holds one pose per scan, each already expressed in the
// calibrated sensor frame as Tr⁻¹·P·Tr. It is immutable after construction.
type PoseTrack struct {
	poses []lidar.Transform
}

// NewPoseTrack composes raw global poses with the calibration's Tr entry.
func NewPoseTrack(raw []lidar.Transform, c Calibration) (*PoseTrack, error) {
	tr, trInv, err := calibrationPair(c)
	if err != nil {
		return nil, err
	}
	poses := make([]lidar.Transform, len(raw))
	for i, p := range raw {
		poses[i] = trInv.Mul(p.Mul(tr))
	}
	return &PoseTrack{poses: poses}, nil
}

func calibrationPair(c Calibration) (tr, trInv lidar.Transform, err error) {
	tr, err = c.Require(KeyTr)
	if err != nil {
		return tr, trInv, err
	}
	trInv, err = tr.Inverse()
	if err != nil {
		return tr, trInv, fmt.Errorf("invert %s: %w", KeyTr, err)
	}
	return tr, trInv, nil
}

// ParsePoses reads one 12-value pose per line, in scan order. The
// calibration is checked before any line is read.
func ParsePoses(r io.Reader, c Calibration) (*PoseTrack, error) {
	tr, trInv, err := calibrationPair(c)
	if err != nil {
		return nil, err
	}

	var poses []lidar.Transform
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		p, err := parseTransformLine(lineNo, line)
		if err != nil {
			return nil, err
		}
		poses = append(poses, trInv.Mul(p.Mul(tr)))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read poses: %w", err)
	}
	return &PoseTrack{poses: poses}, nil
}

// LoadPoses parses the pose file at path.
func LoadPoses(path string, c Calibration) (*PoseTrack, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open poses: %w", err)
	}
	defer f.Close()

	p, err := ParsePoses(f, c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Len returns the number of poses.
func (p *PoseTrack) Len() int { return len(p.poses) }

// Pose returns the calibrated pose of scan i.
func (p *PoseTrack) Pose(i int) (lidar.Transform, error) {
	if i < 0 || i >= len(p.poses) {
		return lidar.Transform{}, fmt.Errorf("pose index %d out of range [0,%d)", i, len(p.poses))
	}
	return p.poses[i], nil
}

// RelativeTransform returns pose[j]⁻¹·pose[i], which maps points of scan i
// into the coordinate system of scan j.
func (p *PoseTrack) RelativeTransform(i, j int) (lidar.Transform, error) {
	pi, err := p.Pose(i)
	if err != nil {
		return lidar.Transform{}, err
	}
	if i == j {
		return lidar.Identity(), nil
	}
	pj, err := p.Pose(j)
	if err != nil {
		return lidar.Transform{}, err
	}
	pjInv, err := pj.Inverse()
	if err != nil {
		return lidar.Transform{}, fmt.Errorf("invert pose %d: %w", j, err)
	}
	return pjInv.Mul(pi), nil
}

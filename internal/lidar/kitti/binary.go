package kitti

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/banshee-data/mosgrid/internal/lidar"
)

const (
	// PointChannels is the width of a velodyne record: x, y, z, intensity.
	PointChannels = 4
	pointBytes    = PointChannels * 4
	labelBytes    = 4

	// SemanticMask selects the semantic class from a raw label; the upper
	// 16 bits carry the instance id.
	SemanticMask = 0xFFFF
)

// ReadPoints decodes little-endian float32 x, y, z, intensity records.
func ReadPoints(r io.Reader) (*lidar.Cloud, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(buf)%pointBytes != 0 {
		return nil, fmt.Errorf("point buffer of %d bytes is not a multiple of %d", len(buf), pointBytes)
	}
	data := make([]float64, len(buf)/4)
	for i := range data {
		data[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:])))
	}
	return &lidar.Cloud{Data: data, Channels: PointChannels}, nil
}

// EncodePoints writes the first four channels of c as little-endian float32
// records. Clouds without intensity get a zero intensity column.
func EncodePoints(w io.Writer, c *lidar.Cloud) error {
	n := c.Len()
	buf := make([]byte, n*pointBytes)
	for i := 0; i < n; i++ {
		row := c.Row(i)
		for ch := 0; ch < PointChannels; ch++ {
			var v float64
			if ch < len(row) {
				v = row[ch]
			}
			binary.LittleEndian.PutUint32(buf[(i*PointChannels+ch)*4:], math.Float32bits(float32(v)))
		}
	}
	_, err := w.Write(buf)
	return err
}

// ReadLabels decodes little-endian uint32 labels and returns the semantic
// class of each.
func ReadLabels(r io.Reader) ([]uint32, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(buf)%labelBytes != 0 {
		return nil, fmt.Errorf("label buffer of %d bytes is not a multiple of %d", len(buf), labelBytes)
	}
	out := make([]uint32, len(buf)/labelBytes)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(buf[i*labelBytes:]) & SemanticMask
	}
	return out, nil
}

// EncodeLabels writes raw labels as little-endian uint32.
func EncodeLabels(w io.Writer, labels []uint32) error {
	buf := make([]byte, len(labels)*labelBytes)
	for i, l := range labels {
		binary.LittleEndian.PutUint32(buf[i*labelBytes:], l)
	}
	_, err := w.Write(buf)
	return err
}

// Moving-object segmentation classes.
const (
	ClassIgnore uint32 = 0
	ClassStatic uint32 = 1
	ClassMoving uint32 = 2
)

// MOSClass maps a semantic label to a moving-object class: unlabelled (0)
// and outlier (1) are ignored, the moving classes (250 and up) are moving,
// and everything else is static.
func MOSClass(semantic uint32) uint32 {
	switch {
	case semantic <= 1:
		return ClassIgnore
	case semantic >= 250:
		return ClassMoving
	default:
		return ClassStatic
	}
}

// MaxSemanticLabel is the largest semantic id in the label definitions.
const MaxSemanticLabel = 259

// MOSLabelMap returns MOSClass as an explicit table over every semantic
// id up to MaxSemanticLabel.
func MOSLabelMap() map[uint32]uint32 {
	m := make(map[uint32]uint32, MaxSemanticLabel+1)
	for id := uint32(0); id <= MaxSemanticLabel; id++ {
		m[id] = MOSClass(id)
	}
	return m
}

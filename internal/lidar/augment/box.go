package augment

import (
	"fmt"
	"math"

	"github.com/banshee-data/mosgrid/internal/lidar"
)

// Box is an oriented 3-D box rotated about z.
type Box struct {
	Center [3]float64 `json:"center"`
	Size   [3]float64 `json:"size"` // length (x), width (y), height (z)
	Yaw    float64    `json:"yaw"`  // radians
}

// Corners returns the eight box corners: the four top corners
// (+l,+w), (+l,-w), (-l,-w), (-l,+w) followed by the same four at the bottom.
func (b Box) Corners() [8][3]float64 {
	l, w, h := b.Size[0]/2, b.Size[1]/2, b.Size[2]/2
	xs := [8]float64{l, l, -l, -l, l, l, -l, -l}
	ys := [8]float64{w, -w, -w, w, w, -w, -w, w}
	zs := [8]float64{h, h, h, h, -h, -h, -h, -h}
	c, s := math.Cos(b.Yaw), math.Sin(b.Yaw)

	var out [8][3]float64
	for i := range out {
		out[i][0] = c*xs[i] - s*ys[i] + b.Center[0]
		out[i][1] = s*xs[i] + c*ys[i] + b.Center[1]
		out[i][2] = zs[i] + b.Center[2]
	}
	return out
}

// Contains reports whether (x, y, z) is inside the box or on its surface.
func (b Box) Contains(x, y, z float64) bool {
	dx, dy := x-b.Center[0], y-b.Center[1]
	c, s := math.Cos(b.Yaw), math.Sin(b.Yaw)
	lx := c*dx + s*dy
	ly := -s*dx + c*dy
	lz := z - b.Center[2]
	return math.Abs(lx) <= b.Size[0]/2 && math.Abs(ly) <= b.Size[1]/2 && math.Abs(lz) <= b.Size[2]/2
}

// PointsInBox returns mask[n] = true iff point n is inside b.
func PointsInBox(c *lidar.Cloud, b Box) []bool {
	n := c.Len()
	mask := make([]bool, n)
	for i := 0; i < n; i++ {
		mask[i] = b.Contains(c.XYZ(i))
	}
	return mask
}

// Object is a labelled point cluster that can be pasted into a scene.
type Object struct {
	Points *lidar.Cloud
	Labels []uint32
	Box    Box
}

// PasteObjects inserts up to maxObjects objects into a scene. For each
// pasted object the scene points inside its box are removed together with
// their labels, then the object's points and labels are appended. Objects
// beyond maxObjects are ignored; callers shuffle beforehand if they want a
// random subset.
func PasteObjects(scene *lidar.Cloud, labels []uint32, objects []Object, maxObjects int) (*lidar.Cloud, []uint32, error) {
	if err := lidar.CheckLen("scene labels", scene.Len(), len(labels)); err != nil {
		return nil, nil, err
	}
	if maxObjects >= 0 && len(objects) > maxObjects {
		objects = objects[:maxObjects]
	}

	keep := make([]bool, scene.Len())
	for i := range keep {
		keep[i] = true
	}
	for oi, o := range objects {
		if err := lidar.CheckLen(fmt.Sprintf("object %d channels", oi), scene.Channels, o.Points.Channels); err != nil {
			return nil, nil, err
		}
		if err := lidar.CheckLen(fmt.Sprintf("object %d labels", oi), o.Points.Len(), len(o.Labels)); err != nil {
			return nil, nil, err
		}
		for i := range keep {
			if keep[i] && o.Box.Contains(scene.XYZ(i)) {
				keep[i] = false
			}
		}
	}

	parts := make([]*lidar.Cloud, 0, len(objects)+1)
	outLabels := make([]uint32, 0, len(labels))
	data := make([]float64, 0, len(scene.Data))
	for i, k := range keep {
		if k {
			data = append(data, scene.Row(i)...)
			outLabels = append(outLabels, labels[i])
		}
	}
	parts = append(parts, &lidar.Cloud{Data: data, Channels: scene.Channels})
	for _, o := range objects {
		parts = append(parts, o.Points)
		outLabels = append(outLabels, o.Labels...)
	}

	out, err := lidar.Append(parts...)
	if err != nil {
		return nil, nil, err
	}
	return out, outLabels, nil
}

// ComputeBox3D returns the corners of the box with the given centre, size
// and yaw. See Box.Corners for the corner order.
func ComputeBox3D(center, size [3]float64, yaw float64) [8][3]float64 {
	return Box{Center: center, Size: size, Yaw: yaw}.Corners()
}

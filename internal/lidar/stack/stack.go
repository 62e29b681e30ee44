// Package stack aligns the K scans preceding a current scan into the
// current scan's coordinate frame and quantizes every frame identically.
package stack

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/banshee-data/mosgrid/internal/lidar"
	"github.com/banshee-data/mosgrid/internal/lidar/augment"
	"github.com/banshee-data/mosgrid/internal/lidar/filter"
	"github.com/banshee-data/mosgrid/internal/lidar/quant"
)

// Scan is one raw scan and its optional per-point labels.
type Scan struct {
	Points *lidar.Cloud
	Labels []uint32 // nil when the sequence is unlabelled
}

// ScanSource provides raw scans by index.
type ScanSource interface {
	Len() int
	Scan(ctx context.Context, index int) (Scan, error)
}

// Poses provides the transform mapping frame i's points into frame j.
type Poses interface {
	Len() int
	RelativeTransform(i, j int) (lidar.Transform, error)
}

// InsufficientHistoryError reports fewer than K scans before Current.
type InsufficientHistoryError struct {
	Current   int
	K         int
	Available int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for scan %d: need %d prior scans, have %d", e.Current, e.K, e.Available)
}

// Frame is one aligned, filtered and quantized member of a stack.
type Frame struct {
	// Offset is 0 for the current scan and k for the k-th previous scan.
	Offset    int
	ScanIndex int
	// Points are in the current scan's frame after filtering (and
	// augmentation when requested).
	Points *lidar.Cloud
	// Mask selects Points from the raw scan rows.
	Mask   []bool
	Labels []uint32
	Coords map[quant.System]quant.Coords
}

// Augmentation requests one joint augmentation of every frame in a stack.
// All frames share the same shift, scale, flip and rotation draws so they
// stay aligned.
type Augmentation struct {
	Params augment.Params
	Source rand.Source
}

// Aligner builds temporal stacks. Source, Poses and Quantizers are read-only
// once the Aligner is in use, so one Aligner serves concurrent callers.
type Aligner struct {
	Source     ScanSource
	Poses      Poses
	Bounds     filter.Bounds
	Quantizers []quant.Quantizer
}

// Stack returns K+1 frames: frame 0 is the current scan, frame k is scan
// current-k expressed in the current frame. It fails with
// *InsufficientHistoryError when current < k.
func (a *Aligner) Stack(ctx context.Context, current, k int) ([]Frame, error) {
	frames, _, _, err := a.stack(ctx, current, k, nil)
	return frames, err
}

// StackAugmented is Stack with a joint augmentation applied after filtering
// and before quantization. It also returns the shared draws.
func (a *Aligner) StackAugmented(ctx context.Context, current, k int, aug Augmentation) ([]Frame, augment.Draw, error) {
	frames, _, d, err := a.stack(ctx, current, k, &aug)
	return frames, d, err
}

// StackAugmentedWithRaw is StackAugmented that also returns the frames as
// Stack would have produced them, from the same scan loads. raw[i] and
// frames[i] hold the same points in the same order.
func (a *Aligner) StackAugmentedWithRaw(ctx context.Context, current, k int, aug Augmentation) (frames, raw []Frame, d augment.Draw, err error) {
	return a.stack(ctx, current, k, &aug)
}

func (a *Aligner) stack(ctx context.Context, current, k int, aug *Augmentation) ([]Frame, []Frame, augment.Draw, error) {
	var d augment.Draw
	if k < 0 {
		return nil, nil, d, fmt.Errorf("negative stack depth %d", k)
	}
	if n := a.Source.Len(); current < 0 || current >= n {
		return nil, nil, d, fmt.Errorf("scan index %d out of range [0, %d)", current, n)
	}
	if n := a.Poses.Len(); current >= n {
		return nil, nil, d, fmt.Errorf("scan index %d has no pose (%d poses)", current, n)
	}
	if current < k {
		return nil, nil, d, &InsufficientHistoryError{Current: current, K: k, Available: current}
	}

	frames := make([]Frame, k+1)
	for off := 0; off <= k; off++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, d, err
		}
		f, err := a.alignFrame(ctx, current, off)
		if err != nil {
			return nil, nil, d, err
		}
		frames[off] = f
	}

	var raw []Frame
	if aug != nil {
		// augmentJointly replaces Points and leaves the originals intact.
		raw = make([]Frame, len(frames))
		copy(raw, frames)
		var err error
		if d, err = augmentJointly(frames, *aug); err != nil {
			return nil, nil, d, err
		}
	}

	for _, set := range [][]Frame{frames, raw} {
		for i := range set {
			if err := a.quantize(&set[i]); err != nil {
				return nil, nil, d, fmt.Errorf("frame %d (scan %d): %w", set[i].Offset, set[i].ScanIndex, err)
			}
		}
	}
	return frames, raw, d, nil
}

func (a *Aligner) alignFrame(ctx context.Context, current, off int) (Frame, error) {
	idx := current - off
	scan, err := a.Source.Scan(ctx, idx)
	if err != nil {
		return Frame{}, fmt.Errorf("load scan %d: %w", idx, err)
	}
	if scan.Labels != nil {
		if err := lidar.CheckLen(fmt.Sprintf("scan %d labels", idx), scan.Points.Len(), len(scan.Labels)); err != nil {
			return Frame{}, err
		}
	}

	pts := scan.Points
	if off > 0 {
		t, err := a.Poses.RelativeTransform(idx, current)
		if err != nil {
			return Frame{}, fmt.Errorf("relative transform %d->%d: %w", idx, current, err)
		}
		pts = lidar.TransformCloud(pts, t)
	}

	kept, mask := filter.Filter(pts, a.Bounds.X, a.Bounds.Y, a.Bounds.Z)
	f := Frame{Offset: off, ScanIndex: idx, Points: kept, Mask: mask}
	if scan.Labels != nil {
		if f.Labels, err = filter.SelectLabels(scan.Labels, mask); err != nil {
			return Frame{}, err
		}
	}
	lidar.Tracef("stack: scan %d offset %d kept %d/%d points", idx, off, kept.Len(), scan.Points.Len())
	return f, nil
}

func augmentJointly(frames []Frame, aug Augmentation) (augment.Draw, error) {
	parts := make([]*lidar.Cloud, len(frames))
	for i := range frames {
		parts[i] = frames[i].Points
	}
	joined, err := lidar.Append(parts...)
	if err != nil {
		return augment.Draw{}, err
	}
	out, d, err := augment.ApplyWithDraw(joined, aug.Params, aug.Source)
	if err != nil {
		return d, err
	}
	lidar.Tracef("stack: augment shift=%v scale=%.4f flipX=%t flipY=%t theta=%.2f",
		d.Shift, d.Scale, d.FlipX, d.FlipY, d.ThetaDeg)

	start := 0
	for i := range frames {
		n := frames[i].Points.Len()
		ch := out.Channels
		frames[i].Points = &lidar.Cloud{
			Data:     out.Data[start*ch : (start+n)*ch : (start+n)*ch],
			Channels: ch,
		}
		start += n
	}
	return d, nil
}

func (a *Aligner) quantize(f *Frame) error {
	f.Coords = make(map[quant.System]quant.Coords, len(a.Quantizers))
	for _, q := range a.Quantizers {
		c, err := q.Quantize(f.Points)
		if err != nil {
			return fmt.Errorf("%s: %w", q.System(), err)
		}
		f.Coords[q.System()] = c
	}
	return nil
}

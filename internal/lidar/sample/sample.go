// Package sample assembles fixed-size training samples from aligned stacks.
package sample

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/mosgrid/internal/lidar"
	"github.com/banshee-data/mosgrid/internal/lidar/augment"
	"github.com/banshee-data/mosgrid/internal/lidar/filter"
	"github.com/banshee-data/mosgrid/internal/lidar/quant"
	"github.com/banshee-data/mosgrid/internal/lidar/stack"
)

// HistoryPolicy decides what happens to scans with fewer than K predecessors.
type HistoryPolicy int

const (
	// HistoryStrict returns the *stack.InsufficientHistoryError.
	HistoryStrict HistoryPolicy = iota
	// HistorySkip drops the sample.
	HistorySkip
	// HistoryZeroPad fills missing history frames with padding only.
	HistoryZeroPad
)

func (p HistoryPolicy) String() string {
	switch p {
	case HistoryStrict:
		return "strict"
	case HistorySkip:
		return "skip"
	case HistoryZeroPad:
		return "zero-pad"
	default:
		return fmt.Sprintf("HistoryPolicy(%d)", int(p))
	}
}

// ParseHistoryPolicy is the inverse of HistoryPolicy.String.
func ParseHistoryPolicy(s string) (HistoryPolicy, error) {
	for _, p := range []HistoryPolicy{HistoryStrict, HistorySkip, HistoryZeroPad} {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown history policy %q", s)
}

// ErrSkipped is returned by Build when HistorySkip drops a sample.
var ErrSkipped = errors.New("sample skipped")

// Frame is one padded member of a sample. Every slice has FramePoints rows.
type Frame struct {
	Offset    int
	ScanIndex int // -1 for a padded history frame
	// Points holds the scan channels followed by the range channel.
	Points    *lidar.Cloud
	Labels    []uint32 // nil for unlabelled sequences
	ValidMask []bool
	PadLength int
	Coords    map[quant.System]quant.Coords
	// KeptPoints is the number of points that survived filtering, before
	// subsampling.
	KeptPoints int
	OutOfGrid  map[quant.System]int
}

// Sample is the K+1 frames built for one scan.
type Sample struct {
	Index  int
	Frames []Frame
	// Raw holds the frames before augmentation, row-aligned with Frames.
	// It is nil when augmentation is off.
	Raw []Frame
	// Draw is the shared augmentation, nil when augmentation is off.
	Draw *augment.Draw
}

// Builder turns scans into samples. It holds no mutable state and is safe
// for concurrent use.
type Builder struct {
	Aligner     *stack.Aligner
	K           int
	FramePoints int
	Policy      HistoryPolicy
	// LabelMap relabels raw labels when non-nil.
	LabelMap map[uint32]uint32
	// Augment enables training augmentation when non-nil.
	Augment *augment.Params
	Seed    uint64
	Workers int
}

// source returns the random stream for one sample. Streams depend only on
// the seed and the scan index, so results do not depend on scheduling.
func (b *Builder) source(index int) rand.Source {
	return rand.NewPCG(b.Seed, uint64(index))
}

// Build assembles the sample for scan index.
func (b *Builder) Build(ctx context.Context, index int) (*Sample, error) {
	if b.FramePoints <= 0 {
		return nil, fmt.Errorf("frame point count must be positive, got %d", b.FramePoints)
	}
	src := b.source(index)

	depth := b.K
	var hErr *stack.InsufficientHistoryError
	frames, raw, draw, err := b.stack(ctx, index, depth, src)
	if errors.As(err, &hErr) {
		switch b.Policy {
		case HistorySkip:
			lidar.Diagf("sample: skip scan %d: %v", index, err)
			return nil, fmt.Errorf("scan %d: %w", index, ErrSkipped)
		case HistoryZeroPad:
			depth = hErr.Available
			frames, raw, draw, err = b.stack(ctx, index, depth, src)
		}
	}
	if err != nil {
		return nil, err
	}

	r := rand.New(src)
	s := &Sample{Index: index, Frames: make([]Frame, b.K+1), Draw: draw}
	if raw != nil {
		s.Raw = make([]Frame, b.K+1)
	}
	for i, f := range frames {
		plan := NewPlan(f.Points.Len(), b.FramePoints, r)
		s.Frames[i] = b.pad(f, plan)
		if raw != nil {
			s.Raw[i] = b.pad(raw[i], plan)
		}
	}
	channels := frames[0].Points.Channels + 1
	labelled := frames[0].Labels != nil
	for off := depth + 1; off <= b.K; off++ {
		s.Frames[off] = b.emptyFrame(off, channels, labelled)
		if raw != nil {
			s.Raw[off] = b.emptyFrame(off, channels, labelled)
		}
	}
	lidar.Tracef("sample: scan %d built %d frames (%d real)", index, len(s.Frames), depth+1)
	return s, nil
}

// stack returns the frames, their un-augmented twins and the shared draw.
// raw and the draw are nil when augmentation is off.
func (b *Builder) stack(ctx context.Context, index, depth int, src rand.Source) ([]stack.Frame, []stack.Frame, *augment.Draw, error) {
	if b.Augment == nil {
		frames, err := b.Aligner.Stack(ctx, index, depth)
		return frames, nil, nil, err
	}
	frames, raw, draw, err := b.Aligner.StackAugmentedWithRaw(ctx, index, depth, stack.Augmentation{Params: *b.Augment, Source: src})
	if err != nil {
		return nil, nil, nil, err
	}
	return frames, raw, &draw, nil
}

func (b *Builder) pad(f stack.Frame, plan Plan) Frame {
	out := Frame{
		Offset:     f.Offset,
		ScanIndex:  f.ScanIndex,
		Points:     GatherCloud(plan, AppendRange(f.Points)),
		ValidMask:  plan.ValidMask(),
		PadLength:  plan.PadLength(),
		KeptPoints: f.Points.Len(),
		Coords:     make(map[quant.System]quant.Coords, len(f.Coords)),
		OutOfGrid:  make(map[quant.System]int, len(f.Coords)),
	}
	if f.Labels != nil {
		labels := f.Labels
		if b.LabelMap != nil {
			labels = filter.Relabel(labels, b.LabelMap)
		}
		out.Labels = Gather(plan, labels)
	}
	for _, q := range b.Aligner.Quantizers {
		sys := q.System()
		out.Coords[sys] = Gather(plan, f.Coords[sys])
		out.OutOfGrid[sys] = f.Coords[sys].OutOfGrid(q.Shape())
	}
	return out
}

func (b *Builder) emptyFrame(off, channels int, labelled bool) Frame {
	plan := Plan{Size: b.FramePoints}
	out := Frame{
		Offset:    off,
		ScanIndex: -1,
		Points:    &lidar.Cloud{Data: make([]float64, b.FramePoints*channels), Channels: channels},
		ValidMask: plan.ValidMask(),
		PadLength: b.FramePoints,
		Coords:    make(map[quant.System]quant.Coords, len(b.Aligner.Quantizers)),
		OutOfGrid: make(map[quant.System]int, len(b.Aligner.Quantizers)),
	}
	if labelled {
		out.Labels = make([]uint32, b.FramePoints)
	}
	for _, q := range b.Aligner.Quantizers {
		out.Coords[q.System()] = make(quant.Coords, b.FramePoints)
		out.OutOfGrid[q.System()] = 0
	}
	return out
}

// BuildRange builds scans [start, start+count) on up to Workers goroutines
// and returns the samples in index order. Skipped samples are left out. The
// first error cancels the remaining work.
func (b *Builder) BuildRange(ctx context.Context, start, count int) ([]*Sample, error) {
	if count < 0 {
		return nil, fmt.Errorf("negative sample count %d", count)
	}
	results := make([]*Sample, count)
	var skipped int
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	workers := b.Workers
	if workers <= 0 {
		workers = 1
	}
	g.SetLimit(workers)
	for i := 0; i < count; i++ {
		g.Go(func() error {
			s, err := b.Build(ctx, start+i)
			if errors.Is(err, ErrSkipped) {
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}
			if err != nil {
				return err
			}
			results[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*Sample, 0, count-skipped)
	for _, s := range results {
		if s != nil {
			out = append(out, s)
		}
	}
	lidar.Diagf("sample: built %d samples from scans [%d, %d), skipped %d", len(out), start, start+count, skipped)
	return out, nil
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/mosgrid/internal/config"
	"github.com/banshee-data/mosgrid/internal/db"
	"github.com/banshee-data/mosgrid/internal/lidar"
	"github.com/banshee-data/mosgrid/internal/lidar/kitti"
	"github.com/banshee-data/mosgrid/internal/lidar/monitor"
	"github.com/banshee-data/mosgrid/internal/lidar/pool"
	"github.com/banshee-data/mosgrid/internal/lidar/quant"
	"github.com/banshee-data/mosgrid/internal/lidar/sample"
	"github.com/banshee-data/mosgrid/internal/lidar/stack"
	store "github.com/banshee-data/mosgrid/internal/lidar/storage/sqlite"
	"github.com/banshee-data/mosgrid/internal/monitoring"
)

// prepOptions are the resolved flags of the prep command.
type prepOptions struct {
	SeqDir     string
	ConfigPath string
	DBPath     string
	PlotDir    string
	Start      int
	Count      int // -1 builds through the end of the sequence
	Seed       uint64
	Train      bool
	Workers    int // 0 uses the config value
	Diag       bool
}

func parsePrepFlags(args []string) (prepOptions, error) {
	var o prepOptions
	fs := flag.NewFlagSet("prep", flag.ContinueOnError)
	fs.StringVar(&o.SeqDir, "seq-dir", "", "Sequence directory holding calib.txt, poses.txt and velodyne/ (required)")
	fs.StringVar(&o.ConfigPath, "config", "", "Pipeline config JSON (defaults to built-in values)")
	fs.StringVar(&o.DBPath, "db", defaultDBPath, "Path to the run database; empty disables recording")
	fs.StringVar(&o.PlotDir, "plots", "", "Directory for diagnostic plots of the first sample; empty disables plotting")
	fs.IntVar(&o.Start, "start", 0, "First scan index")
	fs.IntVar(&o.Count, "count", -1, "Number of scans to build (-1 for all remaining)")
	fs.Uint64Var(&o.Seed, "seed", 0, "Seed for subsampling and augmentation")
	fs.BoolVar(&o.Train, "train", false, "Apply training augmentation")
	fs.IntVar(&o.Workers, "workers", 0, "Concurrent sample builders (0 uses the config value)")
	fs.BoolVar(&o.Diag, "diag", false, "Enable pipeline diagnostics logging")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.SeqDir == "" {
		return o, fmt.Errorf("--seq-dir is required")
	}
	if o.Start < 0 {
		return o, fmt.Errorf("--start must be non-negative, got %d", o.Start)
	}
	if o.Count < -1 {
		return o, fmt.Errorf("--count must be -1 or non-negative, got %d", o.Count)
	}
	return o, nil
}

func handlePrep(ctx context.Context, args []string) error {
	o, err := parsePrepFlags(args)
	if err != nil {
		return err
	}
	lw := lidar.LogWriters{Ops: os.Stderr}
	if o.Diag {
		lw.Diag = os.Stderr
	}
	lidar.SetLogWriters(lw)

	res, err := runPrep(ctx, o)
	if err != nil {
		return err
	}
	monitoring.Logf("run %s: %d samples from %s in %s", res.RunID, len(res.Samples), o.SeqDir, res.Elapsed.Round(time.Millisecond))
	return nil
}

// prepResult is what runPrep produced. RunID is empty when recording is
// disabled.
type prepResult struct {
	RunID   string
	Samples []*sample.Sample
	Plots   []string
	Elapsed time.Duration
}

func loadConfig(path string) (*config.PipelineConfig, error) {
	if path == "" {
		return config.DefaultPipelineConfig(), nil
	}
	cfg, err := config.LoadPipelineConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// newBuilder wires a sequence and a config into a sample builder.
func newBuilder(cfg *config.PipelineConfig, seq *kitti.Sequence, o prepOptions) (*sample.Builder, error) {
	policy, err := cfg.GetHistoryPolicy()
	if err != nil {
		return nil, err
	}
	labelMap, err := cfg.GetLabelMap()
	if err != nil {
		return nil, err
	}
	if labelMap == nil && seq.Labelled() {
		labelMap = kitti.MOSLabelMap()
	}
	workers := cfg.GetWorkers()
	if o.Workers > 0 {
		workers = o.Workers
	}
	b := &sample.Builder{
		Aligner: &stack.Aligner{
			Source:     seq,
			Poses:      seq.Poses,
			Bounds:     cfg.FilterBounds(),
			Quantizers: cfg.Quantizers(),
		},
		K:           cfg.GetHistoryFrames(),
		FramePoints: cfg.GetFramePointNum(),
		Policy:      policy,
		LabelMap:    labelMap,
		Seed:        o.Seed,
		Workers:     workers,
	}
	if o.Train {
		p := cfg.AugmentParams()
		if err := p.Validate(); err != nil {
			return nil, err
		}
		b.Augment = &p
	}
	return b, nil
}

func runPrep(ctx context.Context, o prepOptions) (*prepResult, error) {
	started := time.Now()
	cfg, err := loadConfig(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	seq, err := kitti.OpenDir(o.SeqDir)
	if err != nil {
		return nil, err
	}
	b, err := newBuilder(cfg, seq, o)
	if err != nil {
		return nil, err
	}

	count := o.Count
	if count < 0 || o.Start+count > seq.Len() {
		count = max(seq.Len()-o.Start, 0)
	}

	var (
		samples *store.SampleStore
		run     *store.PrepRun
	)
	if o.DBPath != "" {
		database, err := db.NewDB(o.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open run database: %w", err)
		}
		defer database.Close()
		samples = store.NewSampleStore(database.DB)

		cfgJSON, err := json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to encode config: %w", err)
		}
		run = &store.PrepRun{
			Sequence:   filepath.Clean(o.SeqDir),
			ConfigJSON: cfgJSON,
			Seed:       o.Seed,
			Train:      o.Train,
		}
		if err := samples.InsertRun(run); err != nil {
			return nil, err
		}
	}

	built, err := b.BuildRange(ctx, o.Start, count)
	if err != nil {
		if run != nil {
			if ferr := samples.FinishRun(run.RunID, store.RunStatusFailed, 0); ferr != nil {
				monitoring.Logf("failed to mark run %s failed: %v", run.RunID, ferr)
			}
		}
		return nil, err
	}

	res := &prepResult{Samples: built}
	if run != nil {
		res.RunID = run.RunID
		var records []store.SampleRecord
		for _, s := range built {
			records = append(records, store.RecordsFromSample(run.RunID, s)...)
		}
		if err := samples.InsertSamples(records); err != nil {
			return nil, err
		}
		if err := samples.FinishRun(run.RunID, store.RunStatusComplete, len(built)); err != nil {
			return nil, err
		}
	}

	if o.PlotDir != "" && len(built) > 0 {
		plots, err := writePlots(o.PlotDir, built[0], cfg.CartesianQuantizer())
		if err != nil {
			return nil, err
		}
		res.Plots = plots
	}
	res.Elapsed = time.Since(started)
	return res, nil
}

// writePlots renders a bird's-eye heat map of the current frame and a
// scatter of the whole stack for one sample.
func writePlots(dir string, s *sample.Sample, q quant.Cartesian) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create plot directory: %w", err)
	}
	stem := fmt.Sprintf("scan_%06d", s.Index)

	points, coords, err := validRows(s.Frames[0], quant.SystemCartesian)
	if err != nil {
		return nil, err
	}
	shape := q.Shape()
	grid, err := pool.ScatterMax(points, coords, pool.Options{Shape: shape[:2]})
	if err != nil {
		return nil, err
	}
	occ, err := monitor.OccupancyMatrix(grid)
	if err != nil {
		return nil, err
	}
	bevPath := filepath.Join(dir, stem+"_bev.png")
	if err := monitor.SaveHeatMap(bevPath, occ, monitor.HeatMapOptions{
		Title:  fmt.Sprintf("scan %d occupancy (%d cells)", s.Index, grid.Occupied()),
		XLabel: "y (bin)",
		YLabel: "x (bin)",
	}); err != nil {
		return nil, err
	}

	stackPath := filepath.Join(dir, stem+"_stack.html")
	f, err := os.Create(stackPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", stackPath, err)
	}
	defer f.Close()
	if err := monitor.RenderStackScatter(f, s.Frames, monitor.ScatterOptions{
		Title: fmt.Sprintf("scan %d stack", s.Index),
	}); err != nil {
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return []string{bevPath, stackPath}, nil
}

// validRows drops the padding rows of a frame.
func validRows(f sample.Frame, sys quant.System) (*lidar.Cloud, quant.Coords, error) {
	all, ok := f.Coords[sys]
	if !ok {
		return nil, nil, fmt.Errorf("frame %d has no %s coordinates", f.Offset, sys)
	}
	points := &lidar.Cloud{Channels: f.Points.Channels}
	var coords quant.Coords
	for i, v := range f.ValidMask {
		if !v {
			continue
		}
		points.Data = append(points.Data, f.Points.Row(i)...)
		coords = append(coords, all[i])
	}
	if len(coords) == 0 {
		return nil, nil, lidar.ErrEmptyPointSet
	}
	return points, coords, nil
}

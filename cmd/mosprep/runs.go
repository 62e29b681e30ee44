package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/mosgrid/internal/db"
	store "github.com/banshee-data/mosgrid/internal/lidar/storage/sqlite"
)

func handleRuns(args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBPath, "Path to the run database")
	sequence := fs.String("seq", "", "Only list runs over this sequence directory")
	runID := fs.String("run", "", "Show the frames recorded for one run")
	asJSON := fs.Bool("json", false, "Print JSON instead of a table")
	fs.Parse(args)

	database, err := db.NewDB(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open run database: %w", err)
	}
	defer database.Close()
	return listRuns(os.Stdout, store.NewSampleStore(database.DB), *sequence, *runID, *asJSON)
}

func listRuns(out io.Writer, s *store.SampleStore, sequence, runID string, asJSON bool) error {
	if runID != "" {
		run, err := s.GetRun(runID)
		if err != nil {
			return err
		}
		records, err := s.ListSamples(runID)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(out, struct {
				Run     *store.PrepRun       `json:"run"`
				Samples []store.SampleRecord `json:"samples"`
			}{run, records})
		}
		return writeSampleTable(out, records)
	}

	runs, err := s.ListRuns(sequence)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(out, runs)
	}
	return writeRunTable(out, runs)
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeRunTable(out io.Writer, runs []*store.PrepRun) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSEQUENCE\tSTATUS\tSAMPLES\tTRAIN\tSEED\tSTARTED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\t%d\t%s\n",
			r.RunID, r.Sequence, r.Status, r.SampleCount, r.Train, r.Seed,
			time.Unix(0, r.StartedAt).UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}

func writeSampleTable(out io.Writer, records []store.SampleRecord) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCAN\tOFFSET\tSOURCE\tKEPT\tPAD\tOUT_OF_GRID")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%s\n",
			r.ScanIndex, r.FrameOffset, r.SourceScan, r.KeptPoints, r.PadLength, formatOutOfGrid(r.OutOfGrid))
	}
	return tw.Flush()
}

func formatOutOfGrid(m map[string]int) string {
	if len(m) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, m[k])
	}
	return strings.Join(parts, ",")
}

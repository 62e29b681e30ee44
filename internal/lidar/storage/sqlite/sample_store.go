package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/mosgrid/internal/lidar/sample"
)

// Run status values.
const (
	RunStatusRunning  = "running"
	RunStatusComplete = "complete"
	RunStatusFailed   = "failed"
)

// ErrRunNotFound is returned when a run id has no row.
var ErrRunNotFound = errors.New("prep run not found")

// PrepRun is one invocation of the sample builder over a sequence.
type PrepRun struct {
	RunID       string          `json:"run_id"`
	Sequence    string          `json:"sequence"`
	ConfigJSON  json.RawMessage `json:"config_json,omitempty"`
	Seed        uint64          `json:"seed"`
	Train       bool            `json:"train"`
	Status      string          `json:"status"`
	SampleCount int             `json:"sample_count"`
	StartedAt   int64           `json:"started_at"`            // unix nanos
	FinishedAt  int64           `json:"finished_at,omitempty"` // unix nanos, 0 while running
}

// SampleRecord summarises one frame of one built sample.
type SampleRecord struct {
	RunID       string         `json:"run_id"`
	ScanIndex   int            `json:"scan_index"`
	FrameOffset int            `json:"frame_offset"`
	SourceScan  int            `json:"source_scan"` // -1 for a padded frame
	KeptPoints  int            `json:"kept_points"`
	PadLength   int            `json:"pad_length"`
	OutOfGrid   map[string]int `json:"out_of_grid,omitempty"` // keyed by coordinate system
}

// RecordsFromSample flattens a sample into one record per frame.
func RecordsFromSample(runID string, s *sample.Sample) []SampleRecord {
	out := make([]SampleRecord, len(s.Frames))
	for i, f := range s.Frames {
		oog := make(map[string]int, len(f.OutOfGrid))
		for sys, n := range f.OutOfGrid {
			oog[sys.String()] = n
		}
		out[i] = SampleRecord{
			RunID:       runID,
			ScanIndex:   s.Index,
			FrameOffset: f.Offset,
			SourceScan:  f.ScanIndex,
			KeptPoints:  f.KeptPoints,
			PadLength:   f.PadLength,
			OutOfGrid:   oog,
		}
	}
	return out
}

// SampleStore provides persistence for runs and their sample records.
type SampleStore struct {
	db *sql.DB
}

// NewSampleStore creates a new SampleStore.
func NewSampleStore(db *sql.DB) *SampleStore {
	return &SampleStore{db: db}
}

// InsertRun persists a new run. If RunID is empty, a UUID is generated.
func (s *SampleStore) InsertRun(run *PrepRun) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.StartedAt == 0 {
		run.StartedAt = time.Now().UnixNano()
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}

	var cfg interface{}
	if len(run.ConfigJSON) > 0 {
		cfg = string(run.ConfigJSON)
	}
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO prep_runs (
				run_id, sequence, config_json, seed, train, status, sample_count, started_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.Sequence, cfg, int64(run.Seed), run.Train, run.Status, run.SampleCount, run.StartedAt,
		)
		return err
	})
}

// FinishRun records the final status and sample count of a run.
func (s *SampleStore) FinishRun(runID, status string, sampleCount int) error {
	return retryOnBusy(func() error {
		res, err := s.db.Exec(`
			UPDATE prep_runs SET status = ?, sample_count = ?, finished_at = ?
			WHERE run_id = ?`,
			status, sampleCount, time.Now().UnixNano(), runID,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
		}
		return nil
	})
}

const runColumns = `run_id, sequence, config_json, seed, train, status, sample_count, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*PrepRun, error) {
	var r PrepRun
	var cfg sql.NullString
	var seed int64
	var finished sql.NullInt64
	if err := row.Scan(&r.RunID, &r.Sequence, &cfg, &seed, &r.Train, &r.Status, &r.SampleCount, &r.StartedAt, &finished); err != nil {
		return nil, err
	}
	if cfg.Valid {
		r.ConfigJSON = json.RawMessage(cfg.String)
	}
	r.Seed = uint64(seed)
	r.FinishedAt = finished.Int64
	return &r, nil
}

// GetRun returns a single run by ID.
func (s *SampleStore) GetRun(runID string) (*PrepRun, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM prep_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return r, nil
}

// ListRuns returns the runs of a sequence, newest first. An empty sequence
// lists every run.
func (s *SampleStore) ListRuns(sequence string) ([]*PrepRun, error) {
	rows, err := s.db.Query(`
		SELECT `+runColumns+` FROM prep_runs
		WHERE ? = '' OR sequence = ?
		ORDER BY started_at DESC`, sequence, sequence)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*PrepRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// InsertSamples writes records in one transaction.
func (s *SampleStore) InsertSamples(records []SampleRecord) error {
	if len(records) == 0 {
		return nil
	}
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`
			INSERT INTO prep_samples (
				run_id, scan_index, frame_offset, source_scan, kept_points, pad_length, out_of_grid_json
			) VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range records {
			oog, err := json.Marshal(r.OutOfGrid)
			if err != nil {
				return err
			}
			if _, err := stmt.Exec(r.RunID, r.ScanIndex, r.FrameOffset, r.SourceScan, r.KeptPoints, r.PadLength, string(oog)); err != nil {
				return fmt.Errorf("insert sample %d/%d: %w", r.ScanIndex, r.FrameOffset, err)
			}
		}
		return tx.Commit()
	})
}

// ListSamples returns the records of a run ordered by scan index then frame
// offset.
func (s *SampleStore) ListSamples(runID string) ([]SampleRecord, error) {
	rows, err := s.db.Query(`
		SELECT run_id, scan_index, frame_offset, source_scan, kept_points, pad_length, out_of_grid_json
		FROM prep_samples
		WHERE run_id = ?
		ORDER BY scan_index, frame_offset`, runID)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var out []SampleRecord
	for rows.Next() {
		var r SampleRecord
		var oog sql.NullString
		if err := rows.Scan(&r.RunID, &r.ScanIndex, &r.FrameOffset, &r.SourceScan, &r.KeptPoints, &r.PadLength, &oog); err != nil {
			return nil, err
		}
		if oog.Valid && oog.String != "" {
			if err := json.Unmarshal([]byte(oog.String), &r.OutOfGrid); err != nil {
				return nil, fmt.Errorf("decode out_of_grid for sample %d/%d: %w", r.ScanIndex, r.FrameOffset, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

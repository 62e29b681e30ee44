package calib

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/banshee-data/mosgrid/internal/lidar"
)

// KeyTr names the velodyne-to-reference calibration entry required to
// compose poses.
const KeyTr = "Tr"

// MissingCalibrationKeyError reports a calibration without a required entry.
type MissingCalibrationKeyError struct {
	Key string
}

func (e *MissingCalibrationKeyError) Error() string {
	return fmt.Sprintf("calibration has no %q entry", e.Key)
}

// Calibration maps sensor keys to rigid transforms. It is immutable once
// parsed.
type Calibration struct {
	entries map[string]lidar.Transform
	keys    []string
}

// NewCalibration builds a Calibration from explicit entries. Its keys are
// sorted.
func NewCalibration(entries map[string]lidar.Transform) Calibration {
	c := Calibration{entries: make(map[string]lidar.Transform, len(entries))}
	for k, v := range entries {
		c.entries[k] = v
		c.keys = append(c.keys, k)
	}
	sort.Strings(c.keys)
	return c
}

// Get returns the transform stored under key.
func (c Calibration) Get(key string) (lidar.Transform, bool) {
	t, ok := c.entries[key]
	return t, ok
}

// Require returns the transform under key or a MissingCalibrationKeyError.
func (c Calibration) Require(key string) (lidar.Transform, error) {
	t, ok := c.entries[key]
	if !ok {
		return lidar.Transform{}, &MissingCalibrationKeyError{Key: key}
	}
	return t, nil
}

// Keys returns the keys in file order, or sorted for a Calibration built by
// NewCalibration.
func (c Calibration) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Len returns the number of entries.
func (c Calibration) Len() int { return len(c.entries) }

// ParseCalibration reads "key: f0 ... f11" lines. Each value block is a
// row-major 3x4 transform padded to 4x4 with [0 0 0 1]. Blank lines are
// skipped; a repeated key keeps its last value.
func ParseCalibration(r io.Reader) (Calibration, error) {
	c := Calibration{entries: make(map[string]lidar.Transform)}
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		key, t, err := parseKeyedLine(lineNo, line)
		if err != nil {
			return Calibration{}, err
		}
		if _, seen := c.entries[key]; !seen {
			c.keys = append(c.keys, key)
		}
		c.entries[key] = t
	}
	if err := sc.Err(); err != nil {
		return Calibration{}, fmt.Errorf("read calibration: %w", err)
	}
	return c, nil
}

// LoadCalibration parses the calibration file at path.
func LoadCalibration(path string) (Calibration, error) {
	f, err := os.Open(path)
	if err != nil {
		return Calibration{}, fmt.Errorf("open calibration: %w", err)
	}
	defer f.Close()

	c, err := ParseCalibration(f)
	if err != nil {
		return Calibration{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

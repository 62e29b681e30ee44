package calib

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/mosgrid/internal/lidar"
)

// FieldsPerRecord is the number of values in a 3x4 row-major transform.
const FieldsPerRecord = 12

// ParseError reports a malformed calibration or pose line. It is fatal for
// the sequence being loaded.
type ParseError struct {
	Line   int    // 1-based line number
	Text   string // offending line, trimmed
	Reason string
	Err    error // underlying numeric error, if any
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}

func (e *ParseError) Unwrap() error { return e.Err }

// splitKeyed splits "key: content" into its two halves. The line must
// contain exactly one colon and a non-empty key.
func splitKeyed(line string) (key, content string, ok bool) {
	if strings.Count(line, ":") != 1 {
		return "", "", false
	}
	key, content, _ = strings.Cut(line, ":")
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	return key, content, true
}

// parseValues tokenizes content into exactly FieldsPerRecord floats.
func parseValues(content string) ([FieldsPerRecord]float64, string, error) {
	var v [FieldsPerRecord]float64
	fields := strings.Fields(content)
	if len(fields) != FieldsPerRecord {
		return v, fmt.Sprintf("want %d values, got %d", FieldsPerRecord, len(fields)), nil
	}
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return v, fmt.Sprintf("value %d is not numeric", i), err
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return v, fmt.Sprintf("value %d is not finite", i), nil
		}
		v[i] = x
	}
	return v, "", nil
}

// parseTransformLine parses an unkeyed record (pose line).
func parseTransformLine(lineNo int, line string) (lidar.Transform, error) {
	v, reason, err := parseValues(line)
	if reason != "" {
		return lidar.Transform{}, &ParseError{Line: lineNo, Text: line, Reason: reason, Err: err}
	}
	return lidar.FromRows3x4(v), nil
}

// parseKeyedLine parses a "key: 12 floats" record (calibration line).
func parseKeyedLine(lineNo int, line string) (string, lidar.Transform, error) {
	key, content, ok := splitKeyed(line)
	if !ok {
		return "", lidar.Transform{}, &ParseError{Line: lineNo, Text: line, Reason: "want exactly one key:content pair"}
	}
	v, reason, err := parseValues(content)
	if reason != "" {
		return "", lidar.Transform{}, &ParseError{Line: lineNo, Text: line, Reason: key + ": " + reason, Err: err}
	}
	return key, lidar.FromRows3x4(v), nil
}

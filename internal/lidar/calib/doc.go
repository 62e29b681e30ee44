// Package calib parses per-sequence sensor calibration and per-scan poses.
//
// Both file formats are line-oriented 3x4 row-major transforms. The strict
// tokenizer in record.go is independent of the matrix algebra so it can be
// exercised without files. A Calibration and a PoseTrack are built once per
// sequence and are read-only afterwards; they are safe for concurrent use.
package calib

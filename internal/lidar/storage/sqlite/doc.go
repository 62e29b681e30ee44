// Package sqlite persists the sample index: one row per preparation run and
// one row per built frame.
//
// Domain packages never import this package; the CLI converts built samples
// into records and hands them to the store.
package sqlite

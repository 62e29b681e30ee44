package lidar

import (
	"io"
	"log"
	"sync"
)

// LogWriters holds the io.Writers for each logging stream shared by the
// pipeline packages.
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

var (
	mu          sync.RWMutex
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures all three logging streams at once.
// Pass nil for any writer to disable that stream.
func SetLogWriters(w LogWriters) {
	mu.Lock()
	defer mu.Unlock()
	opsLogger = newLogger("[lidar] ", w.Ops)
	diagLogger = newLogger("[lidar] ", w.Diag)
	traceLogger = newLogger("[lidar] ", w.Trace)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// Opsf logs to the ops stream (fatal input, dropped data, lifecycle events).
func Opsf(format string, args ...interface{}) { logTo(&opsLogger, format, args...) }

// Diagf logs to the diag stream (per-sequence summaries, tuning context).
func Diagf(format string, args ...interface{}) { logTo(&diagLogger, format, args...) }

// Tracef logs to the trace stream (per-frame telemetry).
func Tracef(format string, args ...interface{}) { logTo(&traceLogger, format, args...) }

func logTo(l **log.Logger, format string, args ...interface{}) {
	mu.RLock()
	lg := *l
	mu.RUnlock()
	if lg != nil {
		lg.Printf(format, args...)
	}
}

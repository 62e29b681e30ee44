package lidar

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetLogWriters_Streams(t *testing.T) {
	var ops, diag, trace bytes.Buffer
	SetLogWriters(LogWriters{Ops: &ops, Diag: &diag, Trace: &trace})
	defer SetLogWriters(LogWriters{})

	Opsf("ops %d", 1)
	Diagf("diag %s", "two")
	Tracef("trace %v", true)

	if !strings.Contains(ops.String(), "[lidar] ") || !strings.Contains(ops.String(), "ops 1") {
		t.Errorf("ops output = %q", ops.String())
	}
	if !strings.Contains(diag.String(), "diag two") {
		t.Errorf("diag output = %q", diag.String())
	}
	if !strings.Contains(trace.String(), "trace true") {
		t.Errorf("trace output = %q", trace.String())
	}
}

func TestSetLogWriters_Disable(t *testing.T) {
	var buf bytes.Buffer
	SetLogWriters(LogWriters{Ops: &buf, Diag: &buf, Trace: &buf})
	SetLogWriters(LogWriters{})

	Opsf("should not appear")
	Diagf("should not appear")
	Tracef("should not appear")

	if buf.Len() != 0 {
		t.Errorf("output after disabling = %q, want empty", buf.String())
	}
}

package cmd

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/wkrp/rvemu/internal/log"
)

func TestMonitorCmdMissingProgramReturnsOne(t *testing.T) {
	c := Monitor()
	out := new(bytes.Buffer)

	code := c.Run(context.Background(), nil, out, log.NewFormattedLogger(io.Discard))
	if code != 1 {
		t.Fatalf("Run(no args) = %d, want 1", code)
	}
}

func TestMonitorCmdNonexistentFileReturnsTwo(t *testing.T) {
	c := Monitor()
	out := new(bytes.Buffer)

	code := c.Run(context.Background(), []string{"/nonexistent/path/to/binary"}, out, log.NewFormattedLogger(io.Discard))
	if code != 2 {
		t.Fatalf("Run(missing file) = %d, want 2", code)
	}
}

func TestMonitorCmdFlagSetName(t *testing.T) {
	if got := Monitor().FlagSet().Name(); got != "monitor" {
		t.Errorf("FlagSet().Name() = %q, want %q", got, "monitor")
	}
}

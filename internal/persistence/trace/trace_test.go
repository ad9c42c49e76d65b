package trace_test

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"marblemech/internal/persistence/trace"
	"marblemech/internal/sim/rig"
)

func testHeader() rig.TraceHeader {
	return rig.TraceHeader{
		Type:       rig.TraceHeaderType,
		RigID:      "test",
		Seed:       7,
		Bits:       4,
		TickRateHz: 60,
		StartedAt:  "2026-01-02T03:04:05Z",
	}
}

func testEntry(tick uint64, launches, value int) rig.TraceEntry {
	return rig.TraceEntry{
		Tick:     tick,
		Launches: launches,
		Value:    value,
		Bits:     []string{"0", "0", "0", "0"},
		Parity:   "EVEN",
		Marbles:  10,
		Digest:   fmt.Sprintf("digest-%d", tick),
	}
}

func TestRunLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	l, err := trace.NewRunLogger(dir, testHeader())
	if err != nil {
		t.Fatalf("NewRunLogger: %v", err)
	}
	if !strings.Contains(filepath.Base(l.Path()), "trace-test-") {
		t.Fatalf("unexpected trace path %q", l.Path())
	}

	for i := uint64(0); i < 5; i++ {
		launches := 0
		if i == 2 {
			launches = 1
		}
		if err := l.WriteTick(testEntry(i, launches, int(i))); err != nil {
			t.Fatalf("WriteTick: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	header, entries, err := trace.ReadRun(l.Path())
	if err != nil {
		t.Fatalf("ReadRun: %v", err)
	}
	if header != testHeader() {
		t.Fatalf("header round trip: got %+v", header)
	}
	if len(entries) != 5 {
		t.Fatalf("entries = %d, want 5", len(entries))
	}
	for i, e := range entries {
		if e.Tick != uint64(i) || e.Value != i {
			t.Fatalf("entry %d: %+v", i, e)
		}
	}
	if entries[2].Launches != 1 {
		t.Fatalf("entry 2 launches = %d, want 1", entries[2].Launches)
	}
}

func TestReadRun_RejectsTraceWithoutHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl.zst")
	w := trace.NewJSONLZstdWriter(path)
	if err := w.Write(testEntry(0, 0, 0)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, _, err := trace.ReadRun(path); err == nil {
		t.Fatal("ReadRun accepted a trace without a header")
	}
}

func TestReadRun_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jsonl.zst")
	w := trace.NewJSONLZstdWriter(path)
	// Force the file into existence with no entries.
	if err := w.Write(struct{}{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	_ = w.Close()

	if _, _, err := trace.ReadRun(path); err == nil {
		t.Fatal("ReadRun accepted a header with the wrong type")
	}
}

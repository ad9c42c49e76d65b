package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"marblemech/internal/sim/rig"
)

// JSONLZstdWriter appends JSON lines to a single zstd-compressed file,
// created lazily on first write.
type JSONLZstdWriter struct {
	path string

	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

func NewJSONLZstdWriter(path string) *JSONLZstdWriter {
	return &JSONLZstdWriter{path: path}
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		if err := w.openLocked(); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) openLocked() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	return nil
}

// RunLogger writes one trace file per run: a header entry followed by one
// entry per tick. It is a verification artifact for cmd/replay, never a
// source of restored state.
type RunLogger struct {
	w *JSONLZstdWriter
}

func NewRunLogger(dataDir string, header rig.TraceHeader) (*RunLogger, error) {
	stamp := time.Now().UTC().Format("2006-01-02-15-04-05")
	path := filepath.Join(dataDir, "traces", fmt.Sprintf("trace-%s-%s.jsonl.zst", header.RigID, stamp))
	w := NewJSONLZstdWriter(path)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	return &RunLogger{w: w}, nil
}

func (l *RunLogger) Path() string { return l.w.path }

func (l *RunLogger) WriteTick(e rig.TraceEntry) error { return l.w.Write(e) }

func (l *RunLogger) Close() error { return l.w.Close() }

// ReadFile streams the raw JSONL lines of a compressed trace file.
func ReadFile(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return sc.Err()
}

// ReadRun decodes a trace file into its header and per-tick entries.
func ReadRun(path string) (rig.TraceHeader, []rig.TraceEntry, error) {
	var header rig.TraceHeader
	var entries []rig.TraceEntry
	first := true
	err := ReadFile(path, func(line []byte) error {
		if first {
			first = false
			if err := json.Unmarshal(line, &header); err != nil {
				return fmt.Errorf("trace header: %w", err)
			}
			if header.Type != rig.TraceHeaderType {
				return fmt.Errorf("trace header: unexpected type %q", header.Type)
			}
			return nil
		}
		var e rig.TraceEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return fmt.Errorf("trace entry: %w", err)
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return rig.TraceHeader{}, nil, err
	}
	if first {
		return rig.TraceHeader{}, nil, fmt.Errorf("empty trace: %s", path)
	}
	return header, entries, nil
}

// Package runindex maintains a queryable SQLite read model over a run.
//
// The JSONL trace is the source of truth; the index is derived from the
// same per-tick entries and may drop rows under load. It answers the
// questions a trace scan is too slow for: when did the counter value
// change, and which launches caused it.
package runindex

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"marblemech/internal/sim/rig"
)

type Index struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	rigID  atomic.Value // string, set by RegisterRun
	closed atomic.Bool
}

type reqKind int

const (
	reqRun reqKind = iota + 1
	reqTick
)

type req struct {
	kind reqKind

	run   runRow
	rigID string
	tick  rig.TraceEntry
}

type runRow struct {
	RigID      string
	Seed       int64
	Bits       int
	TickRateHz int
	StartedAt  string
	TracePath  string
}

func OpenSQLite(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Index{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			rig_id TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			bits INTEGER NOT NULL,
			tick_rate_hz INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			trace_path TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			rig_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			value INTEGER NOT NULL,
			parity TEXT NOT NULL,
			marbles INTEGER NOT NULL,
			gate_open INTEGER NOT NULL,
			digest TEXT NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (rig_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS launches (
			rig_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			count INTEGER NOT NULL,
			PRIMARY KEY (rig_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS transitions (
			rig_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			from_value INTEGER NOT NULL,
			to_value INTEGER NOT NULL,
			bits TEXT NOT NULL,
			PRIMARY KEY (rig_id, tick)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_value ON transitions(rig_id, to_value);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Index) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RegisterRun records the run header and its trace file path.
func (s *Index) RegisterRun(h rig.TraceHeader, tracePath string) {
	if s == nil || s.closed.Load() {
		return
	}
	// The id is published before the run row is queued so tick rows carry
	// it even when the run row itself is dropped.
	s.rigID.Store(h.RigID)
	r := runRow{
		RigID:      h.RigID,
		Seed:       h.Seed,
		Bits:       h.Bits,
		TickRateHz: h.TickRateHz,
		StartedAt:  h.StartedAt,
		TracePath:  tracePath,
	}
	select {
	case s.ch <- req{kind: reqRun, run: r}:
	default:
	}
}

// WriteTick implements rig.TraceLogger. Launch and transition rows are
// derived inside the writer goroutine so the sim never blocks on them.
func (s *Index) WriteTick(entry rig.TraceEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	rid, _ := s.rigID.Load().(string)
	select {
	case s.ch <- req{kind: reqTick, rigID: rid, tick: entry}:
	default:
		// Drop if the indexer falls behind; the JSONL trace remains the source of truth.
	}
	return nil
}

func (s *Index) loop() {
	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(rig_id,seed,bits,tick_rate_hz,started_at,trace_path) VALUES(?,?,?,?,?,?)`)
	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(rig_id,tick,value,parity,marbles,gate_open,digest,raw_json) VALUES(?,?,?,?,?,?,?,?)`)
	insertLaunch, _ := s.db.Prepare(`INSERT OR REPLACE INTO launches(rig_id,tick,count) VALUES(?,?,?)`)
	insertTransition, _ := s.db.Prepare(`INSERT OR REPLACE INTO transitions(rig_id,tick,from_value,to_value,bits) VALUES(?,?,?,?,?)`)
	defer func() {
		if insertRun != nil {
			_ = insertRun.Close()
		}
		if insertTick != nil {
			_ = insertTick.Close()
		}
		if insertLaunch != nil {
			_ = insertLaunch.Close()
		}
		if insertTransition != nil {
			_ = insertTransition.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 512
		commitMaxWait = 2 * time.Second

		lastRig   string
		lastValue int
		haveLast  bool
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.Begin()
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRun:
			if insertRun != nil {
				if _, err := tx.Stmt(insertRun).Exec(
					r.run.RigID, r.run.Seed, r.run.Bits, r.run.TickRateHz, r.run.StartedAt, r.run.TracePath,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			// Make the run row visible before any tick rows land.
			commit()
		case reqTick:
			e := r.tick
			if r.rigID != lastRig {
				lastRig = r.rigID
				haveLast = false
			}
			b, _ := json.Marshal(e)
			gateOpen := 0
			if e.GateOpen {
				gateOpen = 1
			}
			if insertTick != nil {
				if _, err := tx.Stmt(insertTick).Exec(
					r.rigID, int64(e.Tick), e.Value, e.Parity, e.Marbles, gateOpen, e.Digest, string(b),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			if e.Launches > 0 && insertLaunch != nil {
				if _, err := tx.Stmt(insertLaunch).Exec(r.rigID, int64(e.Tick), e.Launches); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			if haveLast && e.Value != lastValue && insertTransition != nil {
				bits, _ := json.Marshal(e.Bits)
				if _, err := tx.Stmt(insertTransition).Exec(r.rigID, int64(e.Tick), lastValue, e.Value, string(bits)); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			lastValue = e.Value
			haveLast = true
		}
		flushIfNeeded()
	}
	commit()
}

// CountLaunches returns the total launches recorded for a rig.
func (s *Index) CountLaunches(rigID string) (int, error) {
	var n sql.NullInt64
	err := s.db.QueryRow(`SELECT SUM(count) FROM launches WHERE rig_id=?`, rigID).Scan(&n)
	if err != nil {
		return 0, err
	}
	return int(n.Int64), nil
}

// Transition is one recorded counter value change.
type Transition struct {
	Tick      uint64
	FromValue int
	ToValue   int
}

// ListTransitions returns value changes for a rig in tick order.
func (s *Index) ListTransitions(rigID string) ([]Transition, error) {
	rows, err := s.db.Query(`SELECT tick, from_value, to_value FROM transitions WHERE rig_id=? ORDER BY tick`, rigID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transition
	for rows.Next() {
		var t Transition
		var tick int64
		if err := rows.Scan(&tick, &t.FromValue, &t.ToValue); err != nil {
			return nil, err
		}
		t.Tick = uint64(tick)
		out = append(out, t)
	}
	return out, rows.Err()
}

// LatestTick returns the highest indexed tick for a rig, or false if none.
func (s *Index) LatestTick(rigID string) (uint64, bool, error) {
	var n sql.NullInt64
	err := s.db.QueryRow(`SELECT MAX(tick) FROM ticks WHERE rig_id=?`, rigID).Scan(&n)
	if err != nil {
		return 0, false, err
	}
	if !n.Valid {
		return 0, false, nil
	}
	return uint64(n.Int64), true, nil
}

// Package rigtest drives a rig tick-by-tick through its exported StepOnce
// API and observes it the way operators do: through the trace entries it
// emits. Tests here stay outside the rig package on purpose.
package rigtest

import (
	"testing"

	"marblemech/internal/sim/rig"
	"marblemech/internal/sim/tuning"
)

type Harness struct {
	T   *testing.T
	Rig *rig.Rig

	Entries []rig.TraceEntry
}

// New builds a rig on default tuning. bits == 0 keeps the default width.
func New(t *testing.T, seed int64, bits int) *Harness {
	t.Helper()

	tune := tuning.Defaults()
	if bits > 0 {
		tune.Bits = bits
	}
	h := &Harness{
		T:   t,
		Rig: rig.New(rig.Config{ID: "test", Seed: seed, Tune: tune}),
	}
	h.Rig.SetTraceLogger(h)
	return h
}

// WriteTick implements rig.TraceLogger.
func (h *Harness) WriteTick(e rig.TraceEntry) error {
	h.Entries = append(h.Entries, e)
	return nil
}

// Step advances one tick with the given number of launch actions and returns
// the entry the rig traced for it.
func (h *Harness) Step(launches int) rig.TraceEntry {
	h.T.Helper()
	h.Rig.StepOnce(launches)
	return h.Entries[len(h.Entries)-1]
}

// RunTicks advances n ticks with no input and returns the last entry.
func (h *Harness) RunTicks(n int) rig.TraceEntry {
	h.T.Helper()
	for i := 0; i < n; i++ {
		h.Step(0)
	}
	return h.Last()
}

// WaitValue steps until the decoded value first reads want, or fails the
// test after maxTicks.
func (h *Harness) WaitValue(want, maxTicks int) rig.TraceEntry {
	h.T.Helper()
	for i := 0; i < maxTicks; i++ {
		if e := h.Step(0); e.Value == want {
			return e
		}
	}
	h.T.Fatalf("value never reached %d within %d ticks (last=%d)", want, maxTicks, h.Last().Value)
	return rig.TraceEntry{}
}

func (h *Harness) Last() rig.TraceEntry {
	h.T.Helper()
	if len(h.Entries) == 0 {
		h.T.Fatal("no trace entries yet")
	}
	return h.Entries[len(h.Entries)-1]
}

package rigtest

import (
	"testing"

	"marblemech/internal/protocol"
)

func TestCounter_StartsAtZero(t *testing.T) {
	h := New(t, 42, 0)
	e := h.RunTicks(60)

	if e.Value != 0 {
		t.Fatalf("value = %d after 1s idle, want 0", e.Value)
	}
	for i, b := range e.Bits {
		if b != protocol.BitStr0 {
			t.Fatalf("bits[%d] = %q, want %q", i, b, protocol.BitStr0)
		}
	}
	if e.Parity != protocol.ParityEven {
		t.Fatalf("parity = %q, want %q", e.Parity, protocol.ParityEven)
	}
}

func TestCounter_GateWindowInTrace(t *testing.T) {
	h := New(t, 42, 0)
	e := h.Step(1)
	if e.Launches != 1 {
		t.Fatalf("entry launches = %d, want 1", e.Launches)
	}
	if !e.GateOpen {
		t.Fatal("gate closed on launch tick")
	}
	// Open for the remainder of the 15-tick window, closed after.
	for i := 0; i < 13; i++ {
		if e = h.Step(0); !e.GateOpen {
			t.Fatalf("gate closed early, %d ticks after launch", i+1)
		}
	}
	if e = h.Step(0); e.GateOpen {
		t.Fatal("gate still open after its window")
	}
}

func TestCounter_MarbleSupplyIsStable(t *testing.T) {
	h := New(t, 42, 0)
	supply := h.Rig.MarbleCount()
	if supply != 10 {
		t.Fatalf("seeded marbles = %d, want 10", supply)
	}

	h.Step(1)
	e := h.RunTicks(120)
	if e.Marbles != supply || h.Rig.MarbleCount() != supply {
		t.Fatalf("marble count changed: entry=%d rig=%d want %d", e.Marbles, h.Rig.MarbleCount(), supply)
	}
}

func TestCounter_MetricsSnapshotTracksTrace(t *testing.T) {
	h := New(t, 42, 0)
	e := h.RunTicks(30)

	m := h.Rig.Metrics()
	// The snapshot is published after the tick counter advances.
	if m.Tick != h.Rig.CurrentTick() || m.Tick != e.Tick+1 {
		t.Fatalf("metrics tick = %d, current = %d, trace tick = %d", m.Tick, h.Rig.CurrentTick(), e.Tick)
	}
	if m.Value != e.Value {
		t.Fatalf("metrics value = %d, trace value = %d", m.Value, e.Value)
	}
	if m.Marbles != e.Marbles {
		t.Fatalf("metrics marbles = %d, trace marbles = %d", m.Marbles, e.Marbles)
	}
}

func TestCounter_LaunchIncrementsToOne(t *testing.T) {
	if testing.Short() {
		t.Skip("multi-second physics simulation")
	}

	h := New(t, 42, 0)
	// A launch window passes one marble only once the supply column rests on
	// the gate; give the seeded stack time to land.
	h.RunTicks(180)
	h.Step(1)
	h.WaitValue(1, 600)

	// The rocker must hold the new state, not swing back.
	e := h.RunTicks(180)
	if e.Value != 1 {
		t.Fatalf("value = %d after settling, want 1", e.Value)
	}
	if e.Bits[0] != protocol.BitStr1 {
		t.Fatalf("bits[0] = %q, want %q", e.Bits[0], protocol.BitStr1)
	}
	if e.Parity != protocol.ParityOdd {
		t.Fatalf("parity = %q, want %q", e.Parity, protocol.ParityOdd)
	}
}

func TestCounter_SecondLaunchCarriesToTwo(t *testing.T) {
	if testing.Short() {
		t.Skip("multi-second physics simulation")
	}

	h := New(t, 42, 0)
	h.RunTicks(180)
	h.Step(1)
	h.WaitValue(1, 600)
	h.RunTicks(240)

	// The second marble tips bit 0 back and its overflow marble rides the
	// funnel down to bit 1.
	h.Step(1)
	h.WaitValue(2, 1200)

	e := h.RunTicks(240)
	if e.Value != 2 {
		t.Fatalf("value = %d after settling, want 2", e.Value)
	}
	if e.Bits[0] != protocol.BitStr0 || e.Bits[1] != protocol.BitStr1 {
		t.Fatalf("bits = %v, want [0 1 0 0]", e.Bits)
	}
	if e.Parity != protocol.ParityEven {
		t.Fatalf("parity = %q, want %q", e.Parity, protocol.ParityEven)
	}
}

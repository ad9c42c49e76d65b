package tuning_test

import (
	"os"
	"path/filepath"
	"testing"

	"marblemech/internal/sim/tuning"
)

func TestDefaults_Consistency(t *testing.T) {
	d := tuning.Defaults()

	if d.Bits < 1 {
		t.Fatalf("bits = %d", d.Bits)
	}
	if d.TickRateHz <= 0 {
		t.Fatalf("tick rate = %d", d.TickRateHz)
	}
	if d.Funnel.ThroatGap <= 2*d.Marble.Radius {
		t.Fatalf("funnel throat %v too narrow for marble diameter %v",
			d.Funnel.ThroatGap, 2*d.Marble.Radius)
	}
	if d.Tube.Width <= 2*d.Marble.Radius {
		t.Fatalf("tube width %v too narrow for marble diameter %v",
			d.Tube.Width, 2*d.Marble.Radius)
	}
	if d.Readout.ThresholdDeg >= d.Rocker.AngleLimitDeg {
		t.Fatalf("readout threshold %v must sit inside the rocker limit %v",
			d.Readout.ThresholdDeg, d.Rocker.AngleLimitDeg)
	}
	if d.Marble.Supply < 1 {
		t.Fatalf("marble supply = %d", d.Marble.Supply)
	}
	// The cascade walks down-left so overflow marbles fall into the next funnel.
	if d.Layout.StepX >= 0 || d.Layout.StepY <= 0 {
		t.Fatalf("layout step = (%v, %v), want down-left", d.Layout.StepX, d.Layout.StepY)
	}
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	doc := "bits: 2\ngate:\n  open_ticks: 30\nmarble:\n  supply: 4\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := tuning.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Bits != 2 {
		t.Errorf("Bits = %d, want 2", got.Bits)
	}
	if got.Gate.OpenTicks != 30 {
		t.Errorf("Gate.OpenTicks = %d, want 30", got.Gate.OpenTicks)
	}
	if got.Marble.Supply != 4 {
		t.Errorf("Marble.Supply = %d, want 4", got.Marble.Supply)
	}

	// Untouched fields keep their defaults.
	d := tuning.Defaults()
	if got.TickRateHz != d.TickRateHz {
		t.Errorf("TickRateHz = %d, want default %d", got.TickRateHz, d.TickRateHz)
	}
	if got.Rocker.AngleLimitDeg != d.Rocker.AngleLimitDeg {
		t.Errorf("AngleLimitDeg = %v, want default %v", got.Rocker.AngleLimitDeg, d.Rocker.AngleLimitDeg)
	}
}

func TestLoad_ShippedConfig(t *testing.T) {
	got, err := tuning.Load("../../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("Load shipped config: %v", err)
	}
	if got != tuning.Defaults() {
		t.Fatalf("shipped tuning.yaml drifted from defaults:\n got %+v\nwant %+v", got, tuning.Defaults())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	got, err := tuning.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("err = %v, want not-exist", err)
	}
	// Callers fall back to the returned defaults.
	if got.Bits != tuning.Defaults().Bits {
		t.Fatalf("missing file should return defaults, got bits=%d", got.Bits)
	}
}

func TestLoad_RejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(path, []byte("bits: [oops\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := tuning.Load(path); err == nil {
		t.Fatal("Load accepted malformed yaml")
	}
}

package rigtest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"marblemech/internal/protocol"
	"marblemech/internal/sim/rig"
	"marblemech/internal/sim/tuning"
)

func TestRunLoop_StreamsFramesToObserver(t *testing.T) {
	r := rig.New(rig.Config{ID: "test", Seed: 42, Tune: tuning.Defaults()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()

	out := make(chan []byte, 16)
	r.ObserverJoin() <- rig.ObserverJoinRequest{SessionID: "S1", Out: out}
	r.Launch() <- struct{}{}

	deadline := time.After(5 * time.Second)
	var last protocol.FrameMsg
	sawGateOpen := false
	for i := 0; i < 30; i++ {
		select {
		case b := <-out:
			var f protocol.FrameMsg
			if err := json.Unmarshal(b, &f); err != nil {
				t.Fatalf("bad frame: %v", err)
			}
			if f.Type != protocol.TypeFrame || f.ProtocolVersion != protocol.Version {
				t.Fatalf("unexpected frame envelope: %+v", f)
			}
			if f.Tick < last.Tick {
				t.Fatalf("frame ticks went backwards: %d after %d", f.Tick, last.Tick)
			}
			if f.GateOpen {
				sawGateOpen = true
			}
			last = f
		case <-deadline:
			t.Fatal("timed out waiting for frames")
		}
	}
	if last.Launches != 1 {
		t.Fatalf("frame launches = %d, want 1", last.Launches)
	}
	if !sawGateOpen {
		t.Fatal("never observed the launch gate window in the frame stream")
	}

	// Leave closes the session channel.
	r.ObserverLeave() <- "S1"
	select {
	case _, ok := <-out:
		for ok {
			_, ok = <-out
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session channel not closed after leave")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("rig loop did not stop on context cancel")
	}
}

func TestRunLoop_StopReturnsNil(t *testing.T) {
	r := rig.New(rig.Config{ID: "test", Seed: 1, Tune: tuning.Defaults()})

	errc := make(chan error, 1)
	go func() { errc <- r.Run(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	r.Stop()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Run returned %v on Stop, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("rig loop did not stop")
	}
}

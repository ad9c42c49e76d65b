package rig

import (
	"context"
	"time"
)

func (r *Rig) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(r.cfg.Tune.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pendingLaunches := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stop:
			return nil
		case <-r.launch:
			pendingLaunches++
		case req := <-r.observerJoin:
			r.handleObserverJoin(req)
		case id := <-r.observerLeave:
			r.handleObserverLeave(id)
		case <-ticker.C:
			r.stepInternal(pendingLaunches)
			pendingLaunches = 0
		}
	}
}

func (r *Rig) Stop() { close(r.stop) }

// StepOnce advances the rig by a single tick using the same ordering
// semantics as the server loop. It is primarily intended for deterministic
// replays/tests.
func (r *Rig) StepOnce(launches int) (tick uint64, digest string) {
	tick = r.tick.Load()
	r.stepInternal(launches)
	return tick, r.lastDigest
}

func (r *Rig) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.Out == nil {
		return
	}
	r.sessions[req.SessionID] = req.Out
}

func (r *Rig) handleObserverLeave(id string) {
	out, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessions, id)
	close(out)
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

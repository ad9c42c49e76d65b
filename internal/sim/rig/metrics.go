package rig

import "marblemech/internal/sim/mech"

// Metrics is a thread-safe read-only view of key rig runtime signals. It is
// updated from the rig loop goroutine and read from HTTP handlers/tests.
type Metrics struct {
	Tick uint64 `json:"tick"`

	Value  int      `json:"value"`
	Bits   []string `json:"bits"`
	Parity string   `json:"parity"`

	Launches uint64 `json:"launches"`
	Marbles  int    `json:"marbles"`

	GateOpen  bool `json:"gate_open"`
	GateTimer int  `json:"gate_timer"`

	Sessions         int `json:"sessions"`
	LaunchQueueDepth int `json:"launch_queue_depth"`

	StepMS float64 `json:"step_ms"`
}

func (r *Rig) Metrics() Metrics {
	if r == nil {
		return Metrics{}
	}
	v := r.metrics.Load()
	if v == nil {
		return Metrics{}
	}
	m, ok := v.(Metrics)
	if !ok {
		return Metrics{}
	}
	return m
}

func (r *Rig) publishMetrics(value int, bits []mech.Bit, stepMS float64) {
	r.metrics.Store(Metrics{
		Tick:             r.tick.Load(),
		Value:            value,
		Bits:             bitStrings(bits),
		Parity:           parity(bits),
		Launches:         r.launchTotal,
		Marbles:          len(r.marbles),
		GateOpen:         r.gate.IsOpen(),
		GateTimer:        r.gate.Timer(),
		Sessions:         len(r.sessions),
		LaunchQueueDepth: len(r.launch),
		StepMS:           stepMS,
	})
}

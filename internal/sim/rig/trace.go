package rig

// TraceHeader is the first entry of a run trace. Replays check it against
// the rig they rebuild; the counter's state itself is never restored from a
// trace.
type TraceHeader struct {
	Type       string `json:"type"` // "header"
	RigID      string `json:"rig_id"`
	Seed       int64  `json:"seed"`
	Bits       int    `json:"bits"`
	TickRateHz int    `json:"tick_rate_hz"`
	StartedAt  string `json:"started_at"`
}

const TraceHeaderType = "header"

// TraceEntry records one tick of a run. Launches is the number of launch
// actions applied on that tick (usually 0 or 1); Digest fingerprints the
// full physical state after the step.
type TraceEntry struct {
	Tick     uint64   `json:"tick"`
	Launches int      `json:"launches,omitempty"`
	Value    int      `json:"value"`
	Bits     []string `json:"bits"`
	Parity   string   `json:"parity"`
	Marbles  int      `json:"marbles"`
	GateOpen bool     `json:"gate_open,omitempty"`
	Digest   string   `json:"digest"`
}

type TraceLogger interface {
	WriteTick(entry TraceEntry) error
}

func (r *Rig) NewTraceHeader(startedAt string) TraceHeader {
	return TraceHeader{
		Type:       TraceHeaderType,
		RigID:      r.cfg.ID,
		Seed:       r.cfg.Seed,
		Bits:       r.cfg.Tune.Bits,
		TickRateHz: r.cfg.Tune.TickRateHz,
		StartedAt:  startedAt,
	}
}

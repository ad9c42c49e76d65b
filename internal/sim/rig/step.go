package rig

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"math"
	"time"

	"marblemech/internal/protocol"
	"marblemech/internal/sim/mech"
)

// stepInternal runs one tick: apply pending launches to the gate, advance the
// gate countdown, step physics, decode the readout, publish the frame. There
// is no recovery path; a marble that jams or misses a funnel simply shows up
// as a wrong value.
func (r *Rig) stepInternal(launches int) {
	started := time.Now()
	nowTick := r.tick.Load()

	for i := 0; i < launches; i++ {
		r.gate.Launch()
		r.launchTotal++
	}
	r.gate.Tick()

	r.space.Step(1.0 / float64(r.cfg.Tune.TickRateHz))

	value, bits := mech.Decode(r.tilting, r.cfg.Tune.Readout.ThresholdDeg)
	r.lastDigest = r.stateDigest(nowTick)

	if len(r.sessions) > 0 {
		if b, err := json.Marshal(r.frame(nowTick, value, bits)); err == nil {
			for _, out := range r.sessions {
				sendLatest(out, b)
			}
		}
	}

	if r.traceLogger != nil {
		_ = r.traceLogger.WriteTick(TraceEntry{
			Tick:     nowTick,
			Launches: launches,
			Value:    value,
			Bits:     bitStrings(bits),
			Parity:   parity(bits),
			Marbles:  len(r.marbles),
			GateOpen: r.gate.IsOpen(),
			Digest:   r.lastDigest,
		})
	}

	r.tick.Store(nowTick + 1)
	r.publishMetrics(value, bits, float64(time.Since(started).Microseconds())/1000.0)
}

func (r *Rig) frame(tick uint64, value int, bits []mech.Bit) protocol.FrameMsg {
	return protocol.FrameMsg{
		Type:            protocol.TypeFrame,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		Value:           value,
		Bits:            bitStrings(bits),
		Parity:          parity(bits),
		Launches:        r.launchTotal,
		Marbles:         len(r.marbles),
		GateOpen:        r.gate.IsOpen(),
	}
}

func bitStrings(bits []mech.Bit) []string {
	out := make([]string, len(bits))
	for i, b := range bits {
		out[i] = b.String()
	}
	return out
}

func parity(bits []mech.Bit) string {
	if len(bits) == 0 {
		return protocol.ParityEven
	}
	switch bits[0] {
	case mech.Bit1:
		return protocol.ParityOdd
	case mech.Bit0:
		return protocol.ParityEven
	default:
		return protocol.ParitySwing
	}
}

func (r *Rig) stateDigest(tick uint64) string {
	h := sha256.New()
	var buf [8]byte
	put := func(bits uint64) {
		binary.LittleEndian.PutUint64(buf[:], bits)
		h.Write(buf[:])
	}
	put(tick)
	for _, rk := range r.rockers {
		put(math.Float64bits(rk.Angle()))
	}
	for _, m := range r.marbles {
		p, v := m.Position(), m.Velocity()
		put(math.Float64bits(p.X))
		put(math.Float64bits(p.Y))
		put(math.Float64bits(v.X))
		put(math.Float64bits(v.Y))
	}
	return hex.EncodeToString(h.Sum(nil))
}

package mech

// Bit is the classified state of one rocker. A rocker mid-swing sits in the
// deadband and reads as BitSwing; the decoder treats that as 0 for the
// aggregate value (matching the reference visualization) while still
// surfacing the three-valued classification to consumers.
type Bit int

const (
	Bit0     Bit = 0
	Bit1     Bit = 1
	BitSwing Bit = -1
)

func (b Bit) String() string {
	switch b {
	case Bit0:
		return "0"
	case Bit1:
		return "1"
	default:
		return "SWING"
	}
}

// Weight is the bit's contribution factor to the positional sum.
func (b Bit) Weight() int {
	if b == Bit1 {
		return 1
	}
	return 0
}

// Tilting is anything exposing an engine-computed orientation. The readout is
// a derived view over orientations, not a command interface on the rockers.
type Tilting interface {
	Angle() float64 // radians
}

// Classify maps an orientation to a bit using a symmetric threshold in
// degrees: above +threshold reads 1, below -threshold reads 0, the deadband
// between is transient.
func Classify(angle, thresholdDeg float64) Bit {
	deg := Degrees(angle)
	switch {
	case deg > thresholdDeg:
		return Bit1
	case deg < -thresholdDeg:
		return Bit0
	default:
		return BitSwing
	}
}

// Decode samples every mechanism and assembles the positional sum, index 0
// least significant. It re-evaluates from scratch; no previous classification
// is retained.
func Decode(mechs []Tilting, thresholdDeg float64) (value int, bits []Bit) {
	bits = make([]Bit, len(mechs))
	for i, m := range mechs {
		b := Classify(m.Angle(), thresholdDeg)
		bits[i] = b
		value += b.Weight() << i
	}
	return value, bits
}

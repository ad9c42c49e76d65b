package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeFrame   = "FRAME"
	TypeLaunch  = "LAUNCH"
)

// Parity view of bit 0.
const (
	ParityEven  = "EVEN"
	ParityOdd   = "ODD"
	ParitySwing = "SWING"
)

// Bit states as they appear on the wire.
const (
	BitStr0     = "0"
	BitStr1     = "1"
	BitStrSwing = "SWING"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

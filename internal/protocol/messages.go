package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	SessionID       string    `json:"session_id"`
	RigID           string    `json:"rig_id"`
	RigParams       RigParams `json:"rig_params"`
}

type RigParams struct {
	TickRateHz    int `json:"tick_rate_hz"`
	Bits          int `json:"bits"`
	GateOpenTicks int `json:"gate_open_ticks"`
	MarbleSupply  int `json:"marble_supply"`
}

// FRAME (server -> client, once per tick). Bits are three-valued strings
// ("0", "1", "SWING"); a swinging mechanism contributes 0 to Value.
type FrameMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Tick            uint64   `json:"tick"`
	Value           int      `json:"value"`
	Bits            []string `json:"bits"`
	Parity          string   `json:"parity"`
	Launches        uint64   `json:"launches"`
	Marbles         int      `json:"marbles"`
	GateOpen        bool     `json:"gate_open"`
}

// LAUNCH (client -> server): one "+1" action. Launching while the gate is
// already open re-arms its countdown; nothing is queued.
type LaunchMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

package protocol

const (
	// Handshake/transport validation.
	ErrProtoBadRequest    = "E_PROTO_BAD_REQUEST"
	ErrProtoBadVersion    = "E_PROTO_BAD_VERSION"
	ErrProtoExpectedHello = "E_PROTO_EXPECTED_HELLO"

	// Server state.
	ErrRigBusy = "E_RIG_BUSY"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:    {},
	ErrProtoBadVersion:    {},
	ErrProtoExpectedHello: {},
	ErrRigBusy:            {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

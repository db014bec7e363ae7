package device

// SessionState enumerates the lifecycle states of a Session (spec §3).
// Transitions are owned by pkg/session.Session; this package only defines
// the vocabulary so device, sahara, and firehose can all refer to it
// without importing the orchestration package.
type SessionState int

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateSaharaMode
	StateFirehoseMode
	StateReady
	StateError
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSaharaMode:
		return "sahara_mode"
	case StateFirehoseMode:
		return "firehose_mode"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// validTransitions encodes the allowed edges of the Session state machine.
var validTransitions = map[SessionState][]SessionState{
	StateDisconnected: {StateConnecting},
	StateConnecting:   {StateSaharaMode, StateError, StateDisconnected},
	StateSaharaMode:   {StateFirehoseMode, StateError, StateDisconnected},
	StateFirehoseMode: {StateReady, StateError, StateDisconnected},
	StateReady:        {StateError, StateDisconnected},
	StateError:        {StateDisconnected},
}

// CanTransition reports whether moving from s to next is a legal edge.
func (s SessionState) CanTransition(next SessionState) bool {
	for _, candidate := range validTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

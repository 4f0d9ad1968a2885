// Package stream implements the continuity engine: the connection
// state machine, bounded reconnection, and the restoration guard that
// keeps restore flows from being torn down by stale stop requests.
package stream

// State is the lifecycle state of the audio connection.
type State int

// Connection states.
const (
	// StateIdle means no stream is active and none is wanted.
	StateIdle State = iota
	// StateConnecting means transport selection is in flight.
	StateConnecting
	// StateStreaming means audio is flowing to the sink.
	StateStreaming
	// StatePaused means playback is halted but the source is kept.
	StatePaused
	// StateDisconnected means the transport dropped unexpectedly.
	StateDisconnected
	// StateReconnecting means a bounded reconnect loop is running.
	StateReconnecting
	// StateFailed means reconnection attempts are exhausted.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StatePaused:
		return "paused"
	case StateDisconnected:
		return "disconnected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// validTransitions encodes the connection lifecycle. Stop is the one
// universal edge: every state may return to idle.
var validTransitions = map[State][]State{
	StateIdle:         {StateConnecting},
	StateConnecting:   {StateStreaming, StateDisconnected},
	StateStreaming:    {StatePaused, StateDisconnected},
	StatePaused:       {StateStreaming, StateDisconnected},
	StateDisconnected: {StateReconnecting, StateFailed},
	StateReconnecting: {StateStreaming, StateDisconnected, StateFailed},
	StateFailed:       {StateConnecting},
}

// canTransition reports whether from→to is a legal lifecycle edge.
func canTransition(from, to State) bool {
	if to == StateIdle {
		return true
	}
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// InFlight reports whether the state represents an active or pending
// connection, i.e. one that restoration and health checks must not
// race against.
func (s State) InFlight() bool {
	switch s {
	case StateConnecting, StateStreaming, StateReconnecting:
		return true
	default:
		return false
	}
}

package domain

// SessionState is the playback lifecycle state of one tenant's session.
//
// Legal transitions:
//
//	Empty -> Connecting -> Active <-> Paused -> Draining -> Empty
//
// A session always ends in Empty, at which point it is removed from the
// registry.
type SessionState int

const (
	// StateEmpty means no playback resources are held.
	StateEmpty SessionState = iota

	// StateConnecting means a transport connection is being established.
	StateConnecting

	// StateActive means a track is playing.
	StateActive

	// StatePaused means a track is loaded but playback is suspended.
	StatePaused

	// StateDraining means the session is releasing its resources.
	StateDraining
)

// String returns a human-readable name for the state.
func (s SessionState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// CanTransition reports whether moving from s to next is a legal
// state-machine transition.
func (s SessionState) CanTransition(next SessionState) bool {
	switch s {
	case StateEmpty:
		return next == StateConnecting
	case StateConnecting:
		return next == StateActive || next == StateDraining
	case StateActive:
		return next == StateActive || next == StatePaused || next == StateDraining
	case StatePaused:
		return next == StateActive || next == StateDraining
	case StateDraining:
		return next == StateEmpty
	default:
		return false
	}
}

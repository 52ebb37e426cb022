// Package link tracks the per-guild connection between the bot's voice
// session and a remote audio node.
package link

// State is a guild link's lifecycle position.
//
//	Disconnected -> Connecting -> Connected -> Destroying -> Destroyed
//
// Destroyed is terminal; the registry forgets the link once it gets there.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDestroying
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateDestroying:
		return "DESTROYING"
	case StateDestroyed:
		return "DESTROYED"
	default:
		return "UNKNOWN"
	}
}

// Stater is anything that reports a link state.
type Stater interface {
	State() State
}

// IsInState reports whether l is currently in one of states.
func IsInState(l Stater, states ...State) bool {
	cur := l.State()
	for _, s := range states {
		if cur == s {
			return true
		}
	}
	return false
}

// IsBeingDestroyed reports whether l is tearing down or already torn down.
func IsBeingDestroyed(l Stater) bool {
	return IsInState(l, StateDestroying, StateDestroyed)
}

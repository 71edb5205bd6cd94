package transport

// Role is the side a session plays in the negotiation.
type Role int

const (
	RoleNone Role = iota
	RoleOfferer
	RoleAnswerer
)

func (r Role) String() string {
	switch r {
	case RoleOfferer:
		return "offerer"
	case RoleAnswerer:
		return "answerer"
	default:
		return "none"
	}
}

// State is the lifecycle position of a session. The forward chain is
// Idle -> Gathering -> Negotiating -> Connected; Disconnected and Failed are
// absorbing until the session is reset or re-initialized.
type State int

const (
	StateIdle State = iota
	StateGathering
	StateNegotiating
	StateConnected
	StateDisconnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGathering:
		return "gathering"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the session has lost its transport.
func (s State) Terminal() bool {
	return s == StateDisconnected || s == StateFailed
}

// canAdvance applies the transition rules for observer-driven changes.
// Explicit resets bypass it.
func canAdvance(from, to State) bool {
	switch {
	case from == to:
		return false
	case from == StateFailed:
		return false
	case from == StateDisconnected:
		return to == StateFailed
	case to.Terminal():
		return from != StateIdle
	default:
		return to > from
	}
}

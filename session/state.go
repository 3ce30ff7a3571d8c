package session

// State is the session lifecycle state.
type State int

const (
	// StateAnonymous means no usable credential is held.
	StateAnonymous State = iota
	// StateInitializing means a stored token was found at startup and the
	// profile fetch that validates it is still in flight.
	StateInitializing
	// StateAuthenticated means the session holds a validated profile.
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

package controller

// State is the scheduler lifecycle state.
type State int32

const (
	// StateIdle is the state before ticking starts. A scheduler whose model failed to
	// load stays here.
	StateIdle State = iota
	// StateRunning means ticks are firing.
	StateRunning
	// StateStopped is terminal.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state as its name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

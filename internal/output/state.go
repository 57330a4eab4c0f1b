package output

// State is the gate admission state.
type State int

// Gate states.
const (
	StateDisabled State = iota
	StateWaitingKeyframe
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateWaitingKeyframe:
		return "waiting_keyframe"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

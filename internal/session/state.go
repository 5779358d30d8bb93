package session

// State is the lifecycle position of a dealer session
type State int

const (
	Disconnected State = iota
	Connecting
	Ready
	InRound
	RoundSettled
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case InRound:
		return "in_round"
	case RoundSettled:
		return "round_settled"
	default:
		return "unknown"
	}
}

// Connected reports whether a dealer link is usable in this state
func (s State) Connected() bool {
	return s == Ready || s == InRound || s == RoundSettled
}

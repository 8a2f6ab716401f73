package stream

// State is the explicit lifecycle state of a Manager.
type State int

const (
	Closed State = iota
	Open
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

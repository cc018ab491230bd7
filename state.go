package assetcache

// State is the lifecycle position of a single request.
type State uint8

const (
	StatePending State = iota
	StateSelecting
	StateFetching
	StatePropagating
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSelecting:
		return "selecting"
	case StateFetching:
		return "fetching"
	case StatePropagating:
		return "propagating"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

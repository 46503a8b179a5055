package mesicache

// State is the tagged MESI variant a cache line can be in.
type State int

const (
	StateInvalid State = iota
	StateShared
	StateExclusive
	StateModified
)

// String renders a State the way debug traces and reports name it.
func (s State) String() string {
	switch s {
	case StateInvalid:
		return "I"
	case StateShared:
		return "S"
	case StateExclusive:
		return "E"
	case StateModified:
		return "M"
	default:
		return "?"
	}
}

// CanProvideData reports whether a line in this state may be snooped
// as a data source for another cache's miss.
func (s State) CanProvideData() bool {
	return s == StateShared || s == StateExclusive || s == StateModified
}

// Line is one way of a cache set. A line with Valid true and State
// Invalid carries no guest data and is equivalent to empty for lookup
// purposes; only the Invalidate snoop leaves a line in that shape.
type Line struct {
	Valid    bool
	State    State
	Tag      uint32
	LastUsed uint64
}

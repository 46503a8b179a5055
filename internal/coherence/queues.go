package coherence

import (
	"github.com/rs/xid"

	"github.com/sarchlab/mesisim/internal/mesicache"
)

// ChangeKind distinguishes the two deferred mutations a coherence
// event can schedule against a remote or local line.
type ChangeKind int

const (
	// KindStateTransition installs a full line (valid, state, tag, LRU
	// timestamp) at ApplyCycle.
	KindStateTransition ChangeKind = iota
	// KindInvalidation clears only a line's State to Invalid at
	// ApplyCycle, leaving Valid and Tag untouched.
	KindInvalidation
)

// PlannedChange is a deferred state-machine transition on one line,
// applied at ApplyCycle. Deferred application lets a single cycle
// produce transitions in multiple caches that become visible together,
// rather than one at a time in core-iteration order.
type PlannedChange struct {
	ID          xid.ID
	Core        int
	Set         int
	Way         int
	NewValid    bool
	NewState    mesicache.State
	NewTag      uint32
	NewLastUsed uint64
	ApplyCycle  uint64
	Kind        ChangeKind
}

// PendingAllocation is the effect of a miss that has been issued to
// the bus but whose data has not yet been installed.
type PendingAllocation struct {
	ID            xid.ID
	Core          int
	Set           int
	Victim        int
	Tag           uint32
	NewState      mesicache.State
	CompleteCycle uint64
}

// StallRequest is a cross-core stall emitted when a remote cache must
// service data (or absorb a write-back) for the current transaction.
type StallRequest struct {
	Core       int
	UntilCycle uint64
}

// Queues holds the scheduler's deferred, cross-cycle state: planned
// line mutations, in-flight allocations, and stall requests collected
// during the current cycle. The scheduler owns one Queues value and
// hands the controller a pointer to it so that access outcomes across
// all four cores this cycle accumulate before anything is applied.
type Queues struct {
	Planned     []PlannedChange
	Allocations []PendingAllocation
	Stalls      []StallRequest
}

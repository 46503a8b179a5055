// Package stats accumulates the per-core and system-level counters
// the report needs: executed instructions, reads, writes, execution
// and idle cycles, misses and miss rate, evictions, write-backs, bus
// invalidations, and data traffic in bytes.
package stats

// Stats holds one core's running counters plus the transient
// WaitingForOwnRequest flag the scheduler uses to tell "stalled
// because I am the bus master" (execution) apart from "stalled because
// someone else is" (idle).
type Stats struct {
	Instructions         uint64
	Reads                uint64
	Writes               uint64
	ExecutionCycles      uint64
	IdleCycles           uint64
	Misses               uint64
	Evictions            uint64
	Writebacks           uint64
	Invalidations        uint64
	TrafficBytes         uint64
	WaitingForOwnRequest bool
}

// MissRate returns the miss rate as a percentage of instructions
// executed on this core. It is zero for a core that never executed.
func (s *Stats) MissRate() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Misses) / float64(s.Instructions) * 100
}

// Totals aggregates the system-wide figures the overall bus summary
// reports: bus transactions are counted as the sum of per-core
// invalidations (each invalidation event corresponds to one bus
// transaction that forced at least one remote copy out), and traffic
// is the sum of all per-core bytes moved.
type Totals struct {
	BusTransactions uint64
	TrafficBytes    uint64
}

// Aggregate sums four per-core Stats into system-level Totals.
func Aggregate(cores [4]*Stats) Totals {
	var t Totals
	for _, c := range cores {
		t.BusTransactions += c.Invalidations
		t.TrafficBytes += c.TrafficBytes
	}
	return t
}

// Package scheduler drives the cycle-stepped simulation loop: it owns
// the four cores' reference queues, the deferred coherence.Queues, and
// each core's stall_until horizon, and steps them forward one global
// cycle at a time until every queue has drained and no deferred effect
// remains outstanding.
package scheduler

import (
	"context"
	"fmt"

	"github.com/sarchlab/mesisim/internal/coherence"
	"github.com/sarchlab/mesisim/internal/mesicache"
	"github.com/sarchlab/mesisim/internal/stats"
)

const numCores = 4

// maxCycles bounds a run against a configuration that could never
// terminate, well past any trace this simulator is meant for.
const maxCycles = 1 << 40

// DebugSink receives one line of per-cycle debug narration when the
// caller wants a -d/--debug trace of the simulation. It is optional;
// a nil sink means Step never calls it.
type DebugSink interface {
	Cycle(cycle uint64, msg string)
}

// Scheduler is the cycle-driven loop of section 4.5. It owns no
// coherence policy of its own — every MESI decision is delegated to
// the Controller — but it owns the ordering: drain transitions, drain
// invalidations, drain allocations, attempt each core's head reference,
// apply collected stalls, advance the clock.
type Scheduler struct {
	caches [numCores]*mesicache.PrivateCache
	bus    *coherence.Bus
	ctl    *coherence.Controller
	st     [numCores]*stats.Stats

	refs       [numCores][]coherence.Reference
	stallUntil [numCores]uint64
	queues     coherence.Queues

	cycle uint64
	debug DebugSink
}

// New builds a scheduler over the four cores' traces and stat
// accumulators, sharing the given caches, bus, and controller.
func New(
	caches [numCores]*mesicache.PrivateCache,
	bus *coherence.Bus,
	ctl *coherence.Controller,
	st [numCores]*stats.Stats,
	refs [numCores][]coherence.Reference,
) *Scheduler {
	return &Scheduler{
		caches: caches,
		bus:    bus,
		ctl:    ctl,
		st:     st,
		refs:   refs,
	}
}

// SetDebugSink attaches a per-cycle debug narrator. Pass nil to disable.
func (s *Scheduler) SetDebugSink(d DebugSink) { s.debug = d }

// Cycle returns the current global cycle, the value Step will act on
// next time it is called.
func (s *Scheduler) Cycle() uint64 { return s.cycle }

// Done reports whether the simulation has reached the termination
// condition of section 4.5: every queue is empty, no core is still
// stalled, and no deferred change or allocation remains.
func (s *Scheduler) Done() bool {
	for c := 0; c < numCores; c++ {
		if len(s.refs[c]) > 0 {
			return false
		}
		if s.stallUntil[c] > s.cycle {
			return false
		}
	}
	return len(s.queues.Planned) == 0 && len(s.queues.Allocations) == 0
}

// Step advances the simulation by exactly one cycle, performing the
// six-phase sequence of section 4.5 in order. It returns an error only
// if the coherence controller reports an internal invariant violation;
// such an error always leaves the cycle only partially applied and the
// caller must not call Step again.
func (s *Scheduler) Step() error {
	t := s.cycle

	s.drainTransitions(t)
	s.drainInvalidations(t)
	s.drainAllocations(t)

	for c := 0; c < numCores; c++ {
		if err := s.stepCore(c, t); err != nil {
			return err
		}
	}

	s.applyStalls()

	if s.debug != nil {
		s.debug.Cycle(t, s.describeCycle())
	}

	s.cycle++
	return nil
}

// Run steps the scheduler until Done or ctx is cancelled, checking ctx
// once per cycle rather than mid-cycle since a cycle's six phases must
// commit atomically. It returns ctx.Err() on cancellation, and an
// error if the simulation runs past the internal runaway guard without
// reaching the termination condition of section 4.5.
func (s *Scheduler) Run(ctx context.Context) error {
	for i := uint64(0); !s.Done(); i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if i >= maxCycles {
			return fmt.Errorf("scheduler: exceeded %d cycles without reaching termination", maxCycles)
		}
		if err := s.Step(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) stepCore(c int, t uint64) error {
	if len(s.refs[c]) == 0 {
		return nil
	}

	if t < s.stallUntil[c] {
		if s.st[c].WaitingForOwnRequest {
			s.st[c].ExecutionCycles++
		} else {
			s.st[c].IdleCycles++
		}
		return nil
	}

	s.st[c].ExecutionCycles++

	outcome := s.ctl.Access(c, s.refs[c][0], t, &s.queues)
	if outcome.Err != nil {
		return outcome.Err
	}
	if outcome.Blocked {
		if outcome.SelfStallUntil > s.stallUntil[c] {
			s.stallUntil[c] = outcome.SelfStallUntil
		}
		return nil
	}

	if outcome.Retired {
		s.refs[c] = s.refs[c][1:]
	}
	return nil
}

// drainTransitions applies every planned state transition whose
// apply_cycle has arrived, before invalidations, so that a same-cycle
// invalidation of a line just installed by a transition still wins.
func (s *Scheduler) drainTransitions(t uint64) {
	kept := s.queues.Planned[:0]
	for _, pc := range s.queues.Planned {
		if pc.Kind == coherence.KindStateTransition && pc.ApplyCycle <= t {
			s.caches[pc.Core].SetLine(pc.Set, pc.Way, pc.NewValid, pc.NewState, pc.NewTag, pc.NewLastUsed)
			continue
		}
		kept = append(kept, pc)
	}
	s.queues.Planned = kept
}

func (s *Scheduler) drainInvalidations(t uint64) {
	kept := s.queues.Planned[:0]
	for _, pc := range s.queues.Planned {
		if pc.Kind == coherence.KindInvalidation && pc.ApplyCycle <= t {
			s.caches[pc.Core].ApplySnoop(pc.Set, pc.Way, pc.NewState)
			continue
		}
		kept = append(kept, pc)
	}
	s.queues.Planned = kept
}

func (s *Scheduler) drainAllocations(t uint64) {
	kept := s.queues.Allocations[:0]
	for _, pa := range s.queues.Allocations {
		if pa.CompleteCycle <= t {
			s.caches[pa.Core].Install(pa.Set, pa.Victim, pa.Tag, pa.NewState)
			s.st[pa.Core].WaitingForOwnRequest = false
			continue
		}
		kept = append(kept, pa)
	}
	s.queues.Allocations = kept
}

func (s *Scheduler) applyStalls() {
	for _, req := range s.queues.Stalls {
		if req.UntilCycle > s.stallUntil[req.Core] {
			s.stallUntil[req.Core] = req.UntilCycle
		}
	}
	s.queues.Stalls = s.queues.Stalls[:0]
}

// describeCycle renders a one-line summary of the cycle just stepped,
// for the optional debug trace: how many references remain per core
// and where the bus stands.
func (s *Scheduler) describeCycle() string {
	return fmt.Sprintf(
		"queues=%d:%d,%d:%d,%d:%d,%d:%d bus_busy_until=%d",
		0, len(s.refs[0]), 1, len(s.refs[1]), 2, len(s.refs[2]), 3, len(s.refs[3]),
		s.bus.BusyUntil(),
	)
}

// Stats returns the four cores' live statistics accumulators.
func (s *Scheduler) Stats() [numCores]*stats.Stats { return s.st }

// Bus returns the shared bus, for the report's bus summary.
func (s *Scheduler) Bus() *coherence.Bus { return s.bus }

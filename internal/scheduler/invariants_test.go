package scheduler_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mesisim/internal/coherence"
	"github.com/sarchlab/mesisim/internal/mesicache"
	"github.com/sarchlab/mesisim/internal/scheduler"
)

// This suite names each of the eight testable properties directly,
// rather than leaving them to be inferred from the S1-S6 scenario
// coverage in scheduler_test.go: a change that keeps S1-S6 green but breaks, say,
// M/E exclusivity for an untested address pattern should fail loudly
// here instead of shipping unnoticed.
var _ = Describe("Invariant properties", func() {
	cfg := mesicache.Config{S: 1, E: 2, B: 2}

	It("1: at most one cache holds a Modified line for a given (set, tag)", func() {
		r := newRig(cfg)
		r.run([4][]coherence.Reference{
			{wr(0x0)}, {wr(0x0)}, {wr(0x0)}, {wr(0x0)},
		})

		modifiedCount := 0
		for _, c := range r.caches {
			if l := c.Line(0, 0); l.Valid && l.State == mesicache.StateModified {
				modifiedCount++
			}
		}
		Expect(modifiedCount).To(Equal(1))
	})

	It("2: an M or E line excludes every other cache's non-Invalid copy", func() {
		r := newRig(cfg)
		r.run([4][]coherence.Reference{{wr(0x0)}, nil, nil, nil})

		Expect(r.caches[0].Line(0, 0).State).To(Equal(mesicache.StateModified))
		for _, c := range r.caches[1:] {
			l := c.Line(0, 0)
			Expect(!l.Valid || l.State == mesicache.StateInvalid).To(BeTrue())
		}
	})

	It("3: no two recorded bus transactions overlap", func() {
		r := newRig(cfg)
		r.run([4][]coherence.Reference{{rd(0x0)}, {rd(0x0)}, {wr(0x4)}, nil})

		txs := r.bus.Transactions()
		Expect(len(txs)).To(BeNumerically(">", 1))
		for i := 1; i < len(txs); i++ {
			Expect(txs[i].Start).To(BeNumerically(">=", txs[i-1].Start+txs[i-1].Duration))
		}

		var lastEnd uint64
		for _, tx := range txs {
			if tx.Start+tx.Duration > lastEnd {
				lastEnd = tx.Start + tx.Duration
			}
		}
		Expect(r.bus.BusyUntil()).To(Equal(lastEnd))
	})

	It("4: traffic credited on a shared read equals one block per hop", func() {
		r := newRig(cfg)
		r.run([4][]coherence.Reference{{rd(0x0)}, {rd(0x0)}, nil, nil})

		blockSize := uint64(1 << cfg.B)
		Expect(r.st[1].TrafficBytes).To(Equal(blockSize), "requester's own hop")
		Expect(r.st[0].TrafficBytes).To(Equal(2*blockSize), "own fill hop plus the supply hop")
	})

	It("5: reads plus writes equal instructions retired, per core", func() {
		r := newRig(cfg)
		r.run([4][]coherence.Reference{
			{rd(0x0), wr(0x4), rd(0x8), wr(0xC)},
			{rd(0x0), rd(0x0)},
			nil, nil,
		})

		for _, s := range r.st {
			Expect(s.Reads + s.Writes).To(Equal(s.Instructions))
		}
	})

	It("6: two runs on identical traces retire identical per-core counters", func() {
		build := func() *rig {
			r := newRig(cfg)
			r.run([4][]coherence.Reference{
				{wr(0x0), rd(0x4)},
				{rd(0x0), wr(0x10)},
				nil, nil,
			})
			return r
		}

		a := build()
		b := build()

		for i := range a.st {
			Expect(*b.st[i]).To(Equal(*a.st[i]))
		}
		Expect(len(b.bus.Transactions())).To(Equal(len(a.bus.Transactions())))
	})

	It("7: once E distinct tags fill a set, the least recently touched way is the next victim", func() {
		small := mesicache.Config{S: 0, E: 2, B: 2}
		r := newRig(small)
		r.run([4][]coherence.Reference{
			{rd(0x0), rd(0x4)}, // fills both ways: tag 0 then tag 1
			nil, nil, nil,
		})
		Expect(r.caches[0].ChooseVictim(0)).To(Equal(0), "tag 0's way was touched first, so it is least recently used")

		r2 := scheduler.New(r.caches, r.bus, r.ctl, r.st, [4][]coherence.Reference{{rd(0x0)}, nil, nil, nil})
		Expect(r2.Run(context.Background())).To(Succeed())
		Expect(r.caches[0].ChooseVictim(0)).To(Equal(1), "touching tag 0 again makes way 1 (tag 1) least recently used")
	})

	It("8: a line invalidated this cycle does not satisfy a lookup this cycle or later", func() {
		r := newRig(cfg)
		r.run([4][]coherence.Reference{{rd(0x0)}, {rd(0x0)}, nil, nil})
		Expect(r.caches[1].Line(0, 0).State).To(Equal(mesicache.StateShared))

		r.run([4][]coherence.Reference{{wr(0x0)}, nil, nil, nil})

		_, ok := r.caches[1].Lookup(0, 0)
		Expect(ok).To(BeFalse(), "core 1's copy was invalidated by core 0's upgrade")
		Expect(r.caches[1].Line(0, 0).State).To(Equal(mesicache.StateInvalid))
	})
})

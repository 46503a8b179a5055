package coherence_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mesisim/internal/coherence"
)

var _ = Describe("Bus", func() {
	var bus *coherence.Bus

	BeforeEach(func() {
		bus = coherence.NewBus()
	})

	It("is free at cycle zero before any transaction", func() {
		Expect(bus.Free(0)).To(BeTrue())
	})

	It("stays busy for the granted duration", func() {
		bus.Occupy(10, 5)
		Expect(bus.BusyUntil()).To(Equal(uint64(15)))
		Expect(bus.Free(14)).To(BeFalse())
		Expect(bus.Free(15)).To(BeTrue())
	})

	It("never lets a later grant start before the bus frees", func() {
		bus.Occupy(0, 100)
		bus.Occupy(10, 5)
		Expect(bus.BusyUntil()).To(Equal(uint64(105)))
	})

	It("records transactions in grant order", func() {
		bus.Record(coherence.Transaction{Kind: coherence.KindBusRd, Core: 0, Start: 0, Duration: 101, Bytes: 4})
		bus.Record(coherence.Transaction{Kind: coherence.KindBusRdX, Core: 1, Start: 101, Duration: 200, Bytes: 4})
		txs := bus.Transactions()
		Expect(txs).To(HaveLen(2))
		Expect(txs[0].Kind).To(Equal(coherence.KindBusRd))
		Expect(txs[1].Kind).To(Equal(coherence.KindBusRdX))
	})
})

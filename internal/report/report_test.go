package report_test

import (
	"bytes"
	"encoding/json"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mesisim/internal/coherence"
	"github.com/sarchlab/mesisim/internal/mesicache"
	"github.com/sarchlab/mesisim/internal/report"
	"github.com/sarchlab/mesisim/internal/stats"
)

var _ = Describe("Write", func() {
	It("renders the configuration echo, four per-core blocks, and the bus summary", func() {
		var cores [4]*stats.Stats
		for i := range cores {
			cores[i] = &stats.Stats{Instructions: 4, Reads: 3, Writes: 1, Misses: 1}
		}
		bus := coherence.NewBus()
		bus.Record(coherence.Transaction{Kind: coherence.KindBusRd, Core: 0, Start: 0, Duration: 101, Bytes: 4})
		cores[0].Invalidations = 1

		var buf bytes.Buffer
		params := report.Params{TracePrefix: "app", Cache: mesicache.Config{S: 1, E: 2, B: 2}}
		Expect(report.Write(&buf, params, cores, bus, 0.5)).To(Succeed())

		out := buf.String()
		Expect(out).To(ContainSubstring("Trace Prefix: app"))
		Expect(out).To(ContainSubstring("Core 0 Statistics:"))
		Expect(out).To(ContainSubstring("Core 3 Statistics:"))
		Expect(out).To(ContainSubstring("Overall Bus Summary:"))
		Expect(out).To(ContainSubstring("Total Bus Transactions: 1"))
		Expect(out).To(ContainSubstring("Simulation Run Time (seconds): 0.500000"))
	})
})

var _ = Describe("WriteJSON", func() {
	It("dumps the bus transaction log with its totals", func() {
		var cores [4]*stats.Stats
		for i := range cores {
			cores[i] = &stats.Stats{}
		}
		cores[0].Invalidations = 2
		cores[0].TrafficBytes = 8
		cores[1].TrafficBytes = 4

		bus := coherence.NewBus()
		bus.Record(coherence.Transaction{Kind: coherence.KindBusRdX, Core: 0, Start: 0, Duration: 200, Bytes: 8})

		var buf bytes.Buffer
		Expect(report.WriteJSON(&buf, cores, bus)).To(Succeed())

		var summary report.JSONSummary
		Expect(json.Unmarshal(buf.Bytes(), &summary)).To(Succeed())
		Expect(summary.Transactions).To(HaveLen(1))
		Expect(summary.Transactions[0].Kind).To(Equal("BusRdX"))
		Expect(summary.BusTransactions).To(Equal(uint64(2)))
		Expect(summary.TrafficBytes).To(Equal(uint64(12)))
	})
})

func TestReport(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Report Suite")
}

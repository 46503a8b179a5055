package coherence_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mesisim/internal/coherence"
)

var _ = Describe("Decode", func() {
	It("splits an address into offset, set, and tag", func() {
		// s=1, b=2: offset is bits [1:0], set is bit [2], tag is [31:3].
		addr := coherence.Decode(1, 2, 0x1D)
		Expect(addr.Offset).To(Equal(uint32(0x1)))
		Expect(addr.Set).To(Equal(uint32(1)))
		Expect(addr.Tag).To(Equal(uint32(3)))
	})

	It("round-trips tag, set, and offset back to the original address", func() {
		const s, b = 1, 2
		for _, addr := range []uint32{0x0, 0x4, 0x10, 0x1D, 0xFFFFFFF8} {
			a := coherence.Decode(s, b, addr)
			rebuilt := (a.Tag<<uint(s+b) | a.Set<<uint(b) | a.Offset)
			Expect(rebuilt).To(Equal(addr), "address 0x%X", addr)
		}
	})
})

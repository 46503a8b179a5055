package config_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mesisim/internal/config"
	"github.com/sarchlab/mesisim/internal/mesicache"
)

var _ = Describe("SimConfig.Validate", func() {
	var cfg config.SimConfig

	BeforeEach(func() {
		cfg = config.SimConfig{
			TracePrefix: "app",
			Cache:       mesicache.Config{S: 1, E: 2, B: 2},
		}
	})

	It("accepts a trace prefix and well-formed cache geometry", func() {
		Expect(cfg.Validate()).To(Succeed())
	})

	It("rejects a missing trace prefix", func() {
		cfg.TracePrefix = ""
		err := cfg.Validate()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("trace prefix"))
	})

	It("delegates cache geometry errors to Config.Validate", func() {
		cfg.Cache.E = 0
		err := cfg.Validate()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("E must be positive"))
	})
})

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

// Package config holds the run-time configuration a simulation is
// launched with: the trace prefix and the cache geometry, plus the
// output and debug destinations.
package config

import (
	"github.com/sarchlab/mesisim/internal/mesicache"
	"github.com/sarchlab/mesisim/internal/mesierr"
)

// SimConfig is everything cmd/mesisim needs to build and run one
// simulation: where the four trace files live, the cache geometry
// they should be replayed against, and where the report goes.
type SimConfig struct {
	TracePrefix string
	Cache       mesicache.Config
	OutPath     string
	Debug       bool
	TraceJSON   string
}

// Validate checks that a trace prefix was given and that the cache
// geometry is well-formed. It does not check that the trace files
// exist; that failure surfaces as an InputError when they are opened.
func (c SimConfig) Validate() error {
	if c.TracePrefix == "" {
		return mesierr.NewConfigurationError("trace prefix (-t) is required", nil)
	}
	return c.Cache.Validate()
}

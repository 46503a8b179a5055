package mesicache

import "github.com/sarchlab/mesisim/internal/mesierr"

// Config holds the geometry of a private cache: 2^S sets, E ways per
// set, block size 2^B bytes. It mirrors the Config/Statistics shape
// the reference simulator uses for its single-core cache model, sized
// up to the four parameters this protocol needs.
type Config struct {
	S int
	E int
	B int
}

// NumSets returns 2^S, the number of sets in the cache.
func (c Config) NumSets() int { return 1 << uint(c.S) }

// BlockBytes returns 2^B, the block size in bytes.
func (c Config) BlockBytes() int { return 1 << uint(c.B) }

// BlockAddress returns the block-aligned base address of the block
// containing addr, i.e. addr with its offset bits cleared, mirroring
// the teacher's `blockAddr := (addr / blockSize) * blockSize` idiom.
func (c Config) BlockAddress(addr uint32) uint32 {
	mask := uint32(c.BlockBytes() - 1)
	return addr &^ mask
}

// SizeBytes returns the total capacity of the cache in bytes.
func (c Config) SizeBytes() int { return c.NumSets() * c.E * c.BlockBytes() }

// Validate rejects a geometry the address decoder cannot represent.
func (c Config) Validate() error {
	if c.S < 0 || c.E <= 0 || c.B < 0 {
		return mesierr.NewConfigurationError("s, E and b must be non-negative and E must be positive", nil)
	}
	if c.S+c.B > 32 {
		return mesierr.NewConfigurationError("s + b must not exceed 32 address bits", nil)
	}
	return nil
}

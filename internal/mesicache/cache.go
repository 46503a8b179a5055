// Package mesicache implements one core's private, write-back MESI
// cache: 2^S sets of E ways each, LRU replacement, and the line
// mutations a coherence controller needs to drive local hits, misses,
// and remote snoop effects. It owns no cross-core state; coherence is
// achieved entirely by the mutations the caller (the coherence
// controller) chooses to apply, never by shared references between
// caches.
package mesicache

// Statistics holds the cache-local access counters a coherence
// controller credits as it resolves each reference: independent of
// the system-wide per-core statistics, this is the tally a cache would
// keep of itself if it were queried in isolation.
type Statistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
}

// PrivateCache is the set of cache lines belonging to one core.
type PrivateCache struct {
	config     Config
	sets       []CacheSet
	useCounter uint64
	stats      Statistics
}

// New builds an empty PrivateCache for the given geometry.
func New(config Config) *PrivateCache {
	sets := make([]CacheSet, config.NumSets())
	for i := range sets {
		sets[i] = newCacheSet(config.E)
	}
	return &PrivateCache{config: config, sets: sets}
}

// Config returns the cache's geometry.
func (c *PrivateCache) Config() Config { return c.config }

// Lookup finds the way in set holding tag, if one exists.
func (c *PrivateCache) Lookup(set int, tag uint32) (way int, ok bool) {
	return c.sets[set].Lookup(tag)
}

// ChooseVictim selects the way to evict from set on a miss.
func (c *PrivateCache) ChooseVictim(set int) int {
	return c.sets[set].ChooseVictim()
}

// Line returns a copy of the line at (set, way).
func (c *PrivateCache) Line(set, way int) Line {
	return c.sets[set].Lines[way]
}

// NextUse mints a fresh LRU timestamp, bumping the cache's monotonic
// counter immediately. Callers that schedule a deferred mutation for
// this core's own access record the returned value now, at the cycle
// the access happens, even though the line mutation itself may not be
// applied until a later cycle.
func (c *PrivateCache) NextUse() uint64 {
	c.useCounter++
	return c.useCounter
}

// Install completes a pending allocation: it installs new data at
// (set, way) and touches it with a freshly minted LRU timestamp.
func (c *PrivateCache) Install(set, way int, tag uint32, state State) {
	c.sets[set].Lines[way] = Line{
		Valid:    true,
		State:    state,
		Tag:      tag,
		LastUsed: c.NextUse(),
	}
}

// SetLine applies a previously scheduled state transition verbatim,
// using the LastUsed value recorded when the transition was scheduled
// rather than minting a new one.
func (c *PrivateCache) SetLine(set, way int, valid bool, state State, tag uint32, lastUsed uint64) {
	c.sets[set].Lines[way] = Line{
		Valid:    valid,
		State:    state,
		Tag:      tag,
		LastUsed: lastUsed,
	}
}

// Stats returns the cache's local access counters.
func (c *PrivateCache) Stats() Statistics { return c.stats }

// ResetStats clears the cache's local access counters.
func (c *PrivateCache) ResetStats() { c.stats = Statistics{} }

// RecordHit credits a local hit, and the read or write it served, to
// the cache's own statistics.
func (c *PrivateCache) RecordHit(isWrite bool) {
	c.stats.Hits++
	c.recordAccess(isWrite)
}

// RecordMiss credits a local miss, and the read or write that caused
// it, to the cache's own statistics.
func (c *PrivateCache) RecordMiss(isWrite bool) {
	c.stats.Misses++
	c.recordAccess(isWrite)
}

func (c *PrivateCache) recordAccess(isWrite bool) {
	if isWrite {
		c.stats.Writes++
	} else {
		c.stats.Reads++
	}
}

// RecordEviction credits a capacity eviction to the cache's own
// statistics.
func (c *PrivateCache) RecordEviction() { c.stats.Evictions++ }

// RecordWriteback credits a dirty-line write-back to the cache's own
// statistics.
func (c *PrivateCache) RecordWriteback() { c.stats.Writebacks++ }

// ApplySnoop mutates a line in response to a foreign bus transaction.
// A foreign invalidation only clears State, leaving Valid and Tag
// untouched: a line with Valid true and State Invalid is equivalent to
// empty for Lookup, but no longer eligible for the victim-selection
// fast path (ChooseVictim looks at Valid, not State).
func (c *PrivateCache) ApplySnoop(set, way int, newState State) {
	c.sets[set].Lines[way].State = newState
}

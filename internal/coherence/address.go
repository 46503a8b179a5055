package coherence

// Address is a 32-bit reference address split into its tag, set index,
// and block offset under a given (s, b) geometry.
type Address struct {
	Tag    uint32
	Set    uint32
	Offset uint32
}

// Decode splits addr into tag/set/offset for a cache with 2^s sets and
// 2^b-byte blocks. Callers are responsible for validating s+b <= 32
// once, at configuration time; Decode itself performs no bounds check
// so it stays branch-free on the simulator's hottest path.
func Decode(s, b int, addr uint32) Address {
	offsetMask := uint32(1)<<uint(b) - 1
	setMask := uint32(1)<<uint(s) - 1
	return Address{
		Offset: addr & offsetMask,
		Set:    (addr >> uint(b)) & setMask,
		Tag:    addr >> uint(s+b),
	}
}

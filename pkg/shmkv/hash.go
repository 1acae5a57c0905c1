package shmkv

// Component A - hash primitives.
//
// Two independent 32-bit mixers seeded with a per-segment hash_seed, each a
// MurmurHash3-style fmix finalizer. Both are masked with capacityMask
// (Capacity-1); oddness of the secondary step plus a power-of-two capacity
// guarantees the probe sequence visits every slot exactly once before
// repeating.

const capacityMask = uint32(Capacity - 1)

// fmix32 applies the canonical MurmurHash3 32-bit finalizer.
func fmix32(x uint32) uint32 {
	x ^= x >> 16
	x *= 0x85ebca6b
	x ^= x >> 13
	x *= 0xc2b2ae35
	x ^= x >> 16

	return x
}

// fmix32secondary is a second, independently-parameterized finalizer used to
// derive the probe step. Different multipliers and a different shift profile
// keep it uncorrelated with fmix32 for the same input.
func fmix32secondary(x uint32) uint32 {
	x ^= x >> 16
	x *= 0x21f0aaad
	x ^= x >> 15
	x *= 0x735a2d97
	x ^= x >> 15

	return x
}

// primary returns the initial probe index for key under seed, in [0, Capacity).
func primary(seed uint32, key int32) uint32 {
	return fmix32(uint32(key)^seed) & capacityMask
}

// secondary returns the probe step for key under seed. The result is forced
// odd so that, combined with Capacity being a power of two, every slot is
// visited exactly once over a full probe sequence.
func secondary(seed uint32, key int32) uint32 {
	x := fmix32secondary(uint32(key) ^ (seed + 0x9e3779b9))

	return (x & capacityMask) | 1
}

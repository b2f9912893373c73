// Package random provides the process-wide pseudo-random source shared by
// the segment generator's random, Turing, and logistic processors.
package random

import "math/rand/v2"

// Source is a thin wrapper around math/rand/v2's PCG generator. Calls are
// deterministic given a seed, which lets tests reproduce exact sequences.
type Source struct {
	rng *rand.Rand
}

// New creates a Source seeded from two 64-bit seed words.
func New(seed1, seed2 uint64) *Source {
	return &Source{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

// NewFromEntropy creates a Source seeded from the runtime's entropy pool.
func NewFromEntropy() *Source {
	return New(rand.Uint64(), rand.Uint64())
}

// Float32 returns a uniform sample in [0, 1).
func (s *Source) Float32() float32 {
	return s.rng.Float32()
}

// Uint32 returns a uniform 32-bit value, used to seed the initial
// contents of the Turing shift registers.
func (s *Source) Uint32() uint32 {
	return uint32(s.rng.Uint64())
}

// Bit returns a single uniformly-distributed bit.
func (s *Source) Bit() uint16 {
	return uint16(s.rng.Uint64() & 1)
}

// Package sampler draws subsets without replacement from a deterministic
// pseudo-random stream.
//
// The stream is xorshift64* seeded from the registry. No wall clock or
// external entropy is involved, so any verifier holding the same registry
// bytes reproduces the same draw.
package sampler

import "errors"

// InitialSeed is the seed written into a freshly bootstrapped registry.
const InitialSeed uint64 = 99999999999

const multiplier uint64 = 0x2545F4914F6CDD1D

// ErrInvalidDrawSize is returned when more draws are requested than there
// are candidates.
var ErrInvalidDrawSize = errors.New("draw size exceeds candidate count")

// Source is a xorshift64* generator. The zero value is not usable; create
// one with NewSource.
type Source struct {
	state uint64
}

// NewSource returns a generator positioned at seed. A zero seed is a fixed
// point of xorshift, so it is replaced by InitialSeed.
func NewSource(seed uint64) *Source {
	if seed == 0 {
		seed = InitialSeed
	}
	return &Source{state: seed}
}

// Next advances the generator once and returns the scrambled output.
// The internal state keeps the scrambled value, so the stream matches a
// generator that multiplies in place.
func (s *Source) Next() uint64 {
	x := s.state
	x ^= x >> 12
	x ^= x << 25
	x ^= x >> 27
	x *= multiplier
	s.state = x
	return x
}

// State returns the position to persist so the next call continues the
// sequence.
func (s *Source) State() uint64 {
	return s.state
}

// Draw selects k distinct indices in [0, n) without replacement. Each draw
// takes next() mod the size of the remaining working set, removes that
// element, and records its original index.
//
// k == 0 yields an empty result. k > n yields ErrInvalidDrawSize.
func Draw(src *Source, n, k int) ([]int, error) {
	if k < 0 || n < 0 || k > n {
		return nil, ErrInvalidDrawSize
	}
	if k == 0 {
		return []int{}, nil
	}

	working := make([]int, n)
	for i := range working {
		working[i] = i
	}

	out := make([]int, 0, k)
	for range k {
		pick := int(src.Next() % uint64(len(working)))
		out = append(out, working[pick])
		working = append(working[:pick], working[pick+1:]...)
	}
	return out, nil
}

// Package rng provides the injectable random source behind every synthetic
// generator. Production code uses a locked PCG stream; tests use a fixed
// seed or a scripted sequence to pin individual branches.
package rng

import (
	"math/rand/v2"
	"sync"
)

// Source yields uniform values in [0, 1)
type Source interface {
	Float64() float64
}

// Locked is a seedable Source safe for concurrent use
type Locked struct {
	mu sync.Mutex
	r  *rand.Rand
}

// New returns a Source seeded with seed. A zero seed draws a random one.
func New(seed uint64) *Locked {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Locked{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Float64 returns the next uniform value in [0, 1)
func (l *Locked) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// Sequence replays the given values in order, wrapping around at the end.
// It is meant for tests that need to force specific branches.
type Sequence struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewSequence returns a Sequence over values; with no values it always yields 0.5
func NewSequence(values ...float64) *Sequence {
	if len(values) == 0 {
		values = []float64{0.5}
	}
	return &Sequence{values: values}
}

// Float64 returns the next scripted value
func (s *Sequence) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

// Uniform draws from [lo, hi)
func Uniform(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}

// Above draws once and reports whether the value exceeds threshold,
// so Above(src, 0.4) is true with probability 0.6.
func Above(src Source, threshold float64) bool {
	return src.Float64() > threshold
}

// Sign returns 1 when positive is true and -1 otherwise
func Sign(positive bool) float64 {
	if positive {
		return 1
	}
	return -1
}

// Package random provides the injectable randomness used by test generation.
package random

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Source is a uniform random generator. Implementations are not required
// to be safe for concurrent use; give each generation run its own Source.
type Source interface {
	// Uniform returns a value in [lo, hi). It returns lo when hi <= lo.
	Uniform(lo, hi float64) float64
	// Intn returns a value in [0, n). n must be positive.
	Intn(n int) int
}

// PCG is a Source backed by a PCG generator.
type PCG struct {
	r *rand.Rand
}

// NewSeeded returns a deterministic Source. Equal seeds yield equal sequences.
func NewSeeded(seed uint64) *PCG {
	return &PCG{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// New returns a Source seeded from the clock and the runtime generator.
func New() *PCG {
	return NewSeeded(uint64(time.Now().UnixNano()) ^ rand.Uint64())
}

func (p *PCG) Uniform(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + p.r.Float64()*(hi-lo)
}

func (p *PCG) Intn(n int) int {
	return p.r.IntN(n)
}

// Sample draws k distinct indices from [0, n) uniformly, in draw order,
// using a partial Fisher-Yates shuffle.
func Sample(src Source, n, k int) ([]int, error) {
	if k < 0 || n < 0 {
		return nil, fmt.Errorf("sample %d of %d: negative size", k, n)
	}
	if k > n {
		return nil, fmt.Errorf("sample %d of %d: not enough items", k, n)
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + src.Intn(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k], nil
}

// Factory creates a fresh Source per generation run.
type Factory func() Source

// SeededFactory returns a Factory producing identical sources for a fixed
// seed, or clock-seeded sources when seed is zero.
func SeededFactory(seed uint64) Factory {
	if seed == 0 {
		return func() Source { return New() }
	}
	return func() Source { return NewSeeded(seed) }
}

package random

import "sync"

// Scripted is a Source that replays fixed unit draws in [0, 1), cycling
// when exhausted. It is meant for tests that need an exact outcome.
type Scripted struct {
	mu    sync.Mutex
	draws []float64
	next  int
}

// NewScripted creates a Scripted source. With no draws it always yields 0.
func NewScripted(draws ...float64) *Scripted {
	return &Scripted{draws: draws}
}

func (s *Scripted) unit() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.draws) == 0 {
		return 0
	}
	u := s.draws[s.next%len(s.draws)]
	s.next++
	return u
}

func (s *Scripted) Uniform(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + s.unit()*(hi-lo)
}

func (s *Scripted) Intn(n int) int {
	i := int(s.unit() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

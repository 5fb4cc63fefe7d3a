package rules

import (
	"math/rand"
	"sync"
	"time"
)

// Source is the randomness the role shuffle draws from. *rand.Rand satisfies it.
type Source interface {
	Intn(n int) int
}

// lockedSource lets many rooms share one generator.
type lockedSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSource returns a goroutine-safe Source seeded with seed.
func NewSource(seed int64) Source {
	return &lockedSource{rnd: rand.New(rand.NewSource(seed))}
}

// NewTimeSource seeds from the wall clock.
func NewTimeSource() Source {
	return NewSource(time.Now().UnixNano())
}

func (s *lockedSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Intn(n)
}

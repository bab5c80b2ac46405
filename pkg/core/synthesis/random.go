package synthesis

import (
	"math/rand"
	"sync"
	"time"
)

// Source yields uniform floats in [0, 1).
type Source interface {
	Float64() float64
}

// lockedSource makes a *rand.Rand safe to share between requests.
type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// NewSeededSource returns a goroutine-safe source. Seed 0 seeds from the clock.
func NewSeededSource(seed int64) Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedSource{rng: rand.New(rand.NewSource(seed))}
}

// SequenceSource replays fixed values, wrapping around. Useful for pinning
// synthetic output in tests.
type SequenceSource struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewSequenceSource creates a source that returns values in order.
func NewSequenceSource(values ...float64) *SequenceSource {
	return &SequenceSource{values: values}
}

func (s *SequenceSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

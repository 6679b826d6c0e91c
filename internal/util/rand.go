package util

import (
	"math/rand/v2"
	"sync"
)

// LockedSource serializes access to an underlying rand.Source so a single
// seeded source can feed goroutines that order targets concurrently.
type LockedSource struct {
	mu  sync.Mutex
	src rand.Source
}

// NewLockedSource wraps src.
func NewLockedSource(src rand.Source) *LockedSource {
	return &LockedSource{src: src}
}

// Uint64 satisfies rand.Source.
func (s *LockedSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Uint64()
}

var _ rand.Source = (*LockedSource)(nil)

// Package mutator simulates application threads that overwrite references
// and record the old values through the SATB write barrier.
package mutator

import (
	"sync"
	"sync/atomic"
)

// Safepoint separates mutator work from stop-the-world operations.
// Mutators bracket each batch of writes with Enter and Leave; StopTheWorld
// waits for every batch in progress to finish and keeps new ones from
// starting until fn returns.
type Safepoint struct {
	mu     sync.RWMutex
	pauses atomic.Int64
}

// NewSafepoint creates a safepoint with no mutators inside.
func NewSafepoint() *Safepoint {
	return &Safepoint{}
}

// Enter marks the calling mutator as running.
func (s *Safepoint) Enter() {
	s.mu.RLock()
}

// Leave marks the calling mutator as stopped.
func (s *Safepoint) Leave() {
	s.mu.RUnlock()
}

// StopTheWorld runs fn with every mutator stopped.
func (s *Safepoint) StopTheWorld(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauses.Add(1)
	fn()
}

// Pauses returns the number of stop-the-world operations performed.
func (s *Safepoint) Pauses() int64 {
	return s.pauses.Load()
}

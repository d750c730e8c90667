// Package inflight tags asynchronous operations so that only the most recent one per key may
// publish its result.
package inflight

import "sync"

// Sequencer hands out monotonically increasing sequence numbers per key.
// A result tagged with seq may be applied only while IsLatest(key, seq) holds.
type Sequencer struct {
	mu     sync.Mutex
	latest map[string]uint64
}

// NewSequencer creates an empty Sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{latest: make(map[string]uint64)}
}

// Next starts a new operation for key, superseding any earlier one.
func (s *Sequencer) Next(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[key]++
	return s.latest[key]
}

// IsLatest reports whether seq is still the newest operation started for key.
func (s *Sequencer) IsLatest(key string, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return seq != 0 && s.latest[key] == seq
}

// Invalidate supersedes any in-flight operation for key without starting a new one.
// Used when the input an operation was working on is removed.
func (s *Sequencer) Invalidate(key string) {
	s.Next(key)
}

// Apply runs fn while holding the sequencer lock if seq is still the latest for key,
// so that a concurrent Next cannot interleave between the check and the write.
func (s *Sequencer) Apply(key string, seq uint64, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq == 0 || s.latest[key] != seq {
		return false
	}
	fn()
	return true
}

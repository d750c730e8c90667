package extraction

import (
	"sort"
	"sync"

	"permitflow/internal/domain"
	"permitflow/internal/inflight"
)

// Tracker holds the per-attachment extraction state of one session. Each attempt is tagged with a
// sequence number; only the latest attempt for an attachment may publish progress or a result.
type Tracker struct {
	mu     sync.RWMutex
	states map[string]domain.DocumentState
	seq    *inflight.Sequencer
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{states: make(map[string]domain.DocumentState), seq: inflight.NewSequencer()}
}

// Begin starts a new attempt for key, resetting its state, and returns the attempt's sequence number.
func (t *Tracker) Begin(key string) uint64 {
	seq := t.seq.Next(key)
	t.mu.Lock()
	t.states[key] = domain.DocumentState{Verifying: true}
	t.mu.Unlock()
	return seq
}

// Progress records a progress percentage for the attempt. Stale attempts are ignored.
func (t *Tracker) Progress(key string, seq uint64, pct int) bool {
	return t.seq.Apply(key, seq, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		st := t.states[key]
		if pct > st.Progress {
			st.Progress = pct
		}
		t.states[key] = st
	})
}

// Finish publishes the attempt's outcome. It returns false, leaving state untouched, when a newer
// attempt has started or the attachment was reset since.
func (t *Tracker) Finish(key string, seq uint64, out Outcome) bool {
	return t.seq.Apply(key, seq, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		st := domain.DocumentState{
			Verified:      out.Error == "",
			IsValid:       out.IsValid,
			Message:       out.Message,
			ExtractedText: out.ExtractedText,
			Error:         out.Error,
			Progress:      t.states[key].Progress,
		}
		if out.Error == "" {
			st.Progress = 100
		}
		t.states[key] = st
	})
}

// Reset discards the state of key and invalidates any attempt in flight.
func (t *Tracker) Reset(key string) {
	t.seq.Invalidate(key)
	t.mu.Lock()
	delete(t.states, key)
	t.mu.Unlock()
}

// State returns the current state of key.
func (t *Tracker) State(key string) (domain.DocumentState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.states[key]
	return st, ok
}

// Snapshot returns a copy of every attachment's state.
func (t *Tracker) Snapshot() map[string]domain.DocumentState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]domain.DocumentState, len(t.states))
	for k, v := range t.states {
		out[k] = v
	}
	return out
}

// Keys returns the tracked attachment keys, sorted.
func (t *Tracker) Keys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys := make([]string, 0, len(t.states))
	for k := range t.states {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package session

import (
	"fmt"
	"sync"
)

// markTracker allocates the playback sentinels for one call. Names are
// strictly increasing and never reused; at most one is outstanding at a
// time. An aborted turn never issues a mark, so a stale echo can never
// resolve a later turn.
type markTracker struct {
	mu      sync.Mutex
	seq     int
	pending string
}

// Issue allocates the next mark name and records it as outstanding.
func (t *markTracker) Issue() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	t.pending = fmt.Sprintf("turn-%d", t.seq)
	return t.pending
}

// Resolve reports whether name is the outstanding mark and clears it if so.
func (t *markTracker) Resolve(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == "" || name != t.pending {
		return false
	}
	t.pending = ""
	return true
}

// Clear drops the outstanding mark after an interrupt discarded its audio.
func (t *markTracker) Clear() {
	t.mu.Lock()
	t.pending = ""
	t.mu.Unlock()
}

package registry

import (
	"sync"
	"time"
)

// Call is one active media-stream call as seen from outside the session.
type Call struct {
	CallSID   string    `json:"call_sid"`
	StreamSID string    `json:"stream_sid"`
	StartedAt time.Time `json:"started_at"`
}

// Registry is the process-wide index of active calls, keyed by call SID
// with insert-on-start, delete-on-stop semantics. It exists for health and
// metrics reporting; per-call turn logic never reads it.
type Registry struct {
	mu    sync.RWMutex
	calls map[string]Call
}

func New() *Registry {
	return &Registry{calls: make(map[string]Call)}
}

func (r *Registry) Insert(callSID, streamSID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[callSID] = Call{
		CallSID:   callSID,
		StreamSID: streamSID,
		StartedAt: time.Now().UTC(),
	}
}

func (r *Registry) Remove(callSID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.calls, callSID)
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.calls)
}

// List returns a snapshot of the active calls.
func (r *Registry) List() []Call {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Call, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c)
	}
	return out
}

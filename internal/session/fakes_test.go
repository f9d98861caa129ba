package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"byteai/callagent/internal/agent"
	"byteai/callagent/internal/history"
)

type fakeTransport struct {
	mu      sync.Mutex
	events  []string
	onMedia func()
}

func (t *fakeTransport) record(ev string) {
	t.mu.Lock()
	t.events = append(t.events, ev)
	t.mu.Unlock()
}

func (t *fakeTransport) SendMedia(ctx context.Context, audio []byte) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	t.record("media")
	if t.onMedia != nil {
		t.onMedia()
	}
	return nil
}

func (t *fakeTransport) SendClear(ctx context.Context) error {
	t.record("clear")
	return nil
}

func (t *fakeTransport) SendMark(ctx context.Context, name string) error {
	t.record("mark:" + name)
	return nil
}

func (t *fakeTransport) list() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.events))
	copy(out, t.events)
	return out
}

func (t *fakeTransport) count(kind string) int {
	n := 0
	for _, ev := range t.list() {
		if ev == kind || strings.HasPrefix(ev, kind+":") {
			n++
		}
	}
	return n
}

type fakeSynth struct {
	mu       sync.Mutex
	audio    chan []byte
	closed   bool
	failSend bool
	closeOne sync.Once
}

func newFakeSynth() *fakeSynth {
	return &fakeSynth{audio: make(chan []byte, 64)}
}

func (s *fakeSynth) SendText(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSend {
		return errors.New("synthesis connection lost")
	}
	if s.closed {
		return errors.New("session closed")
	}
	s.audio <- []byte(text)
	return nil
}

func (s *fakeSynth) EndInput(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSend {
		return errors.New("synthesis connection lost")
	}
	if !s.closed {
		s.closed = true
		s.closeOne.Do(func() { close(s.audio) })
	}
	return nil
}

func (s *fakeSynth) Audio() <-chan []byte { return s.audio }

func (s *fakeSynth) Err() error { return nil }

func (s *fakeSynth) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.closeOne.Do(func() { close(s.audio) })
}

type fakePool struct {
	mu       sync.Mutex
	factory  func() SynthSession
	handed   int
	prewarms int
	discards int
}

func newFakePool() *fakePool {
	return &fakePool{factory: func() SynthSession { return newFakeSynth() }}
}

func (p *fakePool) Prewarm(ctx context.Context) {
	p.mu.Lock()
	p.prewarms++
	p.mu.Unlock()
}

func (p *fakePool) Acquire(ctx context.Context) (SynthSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handed++
	return p.factory(), nil
}

func (p *fakePool) DiscardIdle() {
	p.mu.Lock()
	p.discards++
	p.mu.Unlock()
}

func (p *fakePool) Close() {}

type fakeResponder struct {
	mu     sync.Mutex
	calls  [][]history.Entry
	script func(ctx context.Context, call int, emit func(agent.Event) error) error
}

func (r *fakeResponder) Stream(ctx context.Context, entries []history.Entry, emit func(agent.Event) error) error {
	r.mu.Lock()
	call := len(r.calls)
	r.calls = append(r.calls, entries)
	r.mu.Unlock()
	return r.script(ctx, call, emit)
}

func (r *fakeResponder) Greeting() string { return "Hello from the test desk." }

func (r *fakeResponder) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *fakeResponder) lastUser(call int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.calls[call]
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Role == "user" && entries[i].Tool == nil && entries[i].ToolResult == nil {
			return entries[i].Text
		}
	}
	return ""
}

// sayText emits one sentence ending in a boundary so it flushes immediately.
func sayText(text string) func(ctx context.Context, call int, emit func(agent.Event) error) error {
	return func(ctx context.Context, call int, emit func(agent.Event) error) error {
		return emit(agent.Event{Kind: agent.EventText, Text: text})
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

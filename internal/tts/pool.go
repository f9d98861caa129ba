package tts

import (
	"context"
	"log"
	"sync"
)

// Pool keeps at most one idle, pre-connected synthesis session per call.
// The controller pre-warms it whenever it returns to idle with no turn
// pending, so the next turn skips connection setup. A pre-warmed session
// that survives an interrupt unused is discarded, not reused.
type Pool struct {
	cfg Config

	mu   sync.Mutex
	idle *Session
}

func NewPool(cfg Config) *Pool {
	return &Pool{cfg: cfg}
}

// Prewarm dials one idle session in the background if none is held.
func (p *Pool) Prewarm(ctx context.Context) {
	p.mu.Lock()
	if p.idle != nil && p.idle.Live() {
		p.mu.Unlock()
		return
	}
	p.idle = nil
	p.mu.Unlock()

	go func() {
		s, err := Dial(ctx, p.cfg)
		if err != nil {
			log.Printf("[tts] prewarm dial failed: %v", err)
			return
		}
		p.mu.Lock()
		if p.idle == nil {
			p.idle = s
			p.mu.Unlock()
			metricPrewarms.Inc()
			return
		}
		p.mu.Unlock()
		// Lost the race with another prewarm; drop the extra.
		s.Close()
	}()
}

// Acquire hands out the pre-warmed session if it is still live, otherwise
// dials inline. The inline path costs connection latency on the first
// audio, which is logged but not fatal.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	s := p.idle
	p.idle = nil
	p.mu.Unlock()

	if s != nil && s.Live() {
		metricPoolHits.Inc()
		return s, nil
	}
	if s != nil {
		s.Close()
	}
	metricPoolMisses.Inc()
	log.Printf("[tts] no prewarmed session, dialing inline")
	return Dial(ctx, p.cfg)
}

// DiscardIdle closes any held session without handing it out. Called after
// an interrupt: mid-handshake synthesis state is never shared across turns.
func (p *Pool) DiscardIdle() {
	p.mu.Lock()
	s := p.idle
	p.idle = nil
	p.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

// Close releases pool resources at call teardown.
func (p *Pool) Close() {
	p.DiscardIdle()
}

package session

import (
	"context"

	"byteai/callagent/internal/tts"
)

// SynthSession is the synthesis collaborator contract: ordered text
// increments in, ordered audio chunks out, explicit end-of-input. The audio
// channel closes on completion or failure; Err tells which.
type SynthSession interface {
	SendText(ctx context.Context, text string) error
	EndInput(ctx context.Context) error
	Audio() <-chan []byte
	Err() error
	Close()
}

// SynthPool hands out synthesis sessions, keeping at most one pre-warmed
// idle session between turns.
type SynthPool interface {
	Prewarm(ctx context.Context)
	Acquire(ctx context.Context) (SynthSession, error)
	DiscardIdle()
	Close()
}

type poolAdapter struct {
	p *tts.Pool
}

// WrapPool adapts a tts.Pool to the session-facing pool contract.
func WrapPool(p *tts.Pool) SynthPool {
	return poolAdapter{p: p}
}

func (a poolAdapter) Prewarm(ctx context.Context) { a.p.Prewarm(ctx) }

func (a poolAdapter) Acquire(ctx context.Context) (SynthSession, error) {
	s, err := a.p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (a poolAdapter) DiscardIdle() { a.p.DiscardIdle() }

func (a poolAdapter) Close() { a.p.Close() }

package session

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"byteai/callagent/internal/history"
)

// Phase is the controller's single source of truth for who holds the floor.
type Phase int32

const (
	// PhaseIdle: no turn in flight, the caller has the floor.
	PhaseIdle Phase = iota
	// PhaseSpeaking: a turn's pipeline is generating and streaming audio.
	PhaseSpeaking
	// PhaseAwaitingPlayback: generation finished, far-end buffer not yet
	// confirmed drained.
	PhaseAwaitingPlayback
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSpeaking:
		return "speaking"
	case PhaseAwaitingPlayback:
		return "awaiting_playback"
	}
	return "unknown"
}

// Controller owns one call's turn-taking: it starts the response pipeline
// for each finalized utterance, races it against speech-onset signals, and
// performs the cancellation and history rollback on barge-in. It is the
// only mutator of phase and the only committer of history.
type Controller struct {
	callSID  string
	conn     Transport
	pool     SynthPool
	hist     *history.History
	pipe     *pipeline
	finals   *finalQueue
	marks    markTracker
	greeting string

	phase   atomic.Int32
	audible atomic.Bool

	// onset coalesces speech-onset signals; one pending signal is enough.
	onset      chan struct{}
	markEchoes chan string
}

func newController(callSID string, conn Transport, pool SynthPool, hist *history.History, ag responderWithGreeting, minFlush int) *Controller {
	c := &Controller{
		callSID:    callSID,
		conn:       conn,
		pool:       pool,
		hist:       hist,
		finals:     newFinalQueue(),
		greeting:   ag.Greeting(),
		onset:      make(chan struct{}, 1),
		markEchoes: make(chan string, 4),
	}
	c.pipe = &pipeline{
		callSID:      callSID,
		agent:        ag,
		pool:         pool,
		conn:         conn,
		hist:         hist,
		finals:       c.finals,
		minFlush:     minFlush,
		onFirstAudio: func() { c.audible.Store(true) },
	}
	return c
}

type responderWithGreeting interface {
	responder
	Greeting() string
}

func (c *Controller) Phase() Phase {
	return Phase(c.phase.Load())
}

func (c *Controller) setPhase(p Phase) {
	c.phase.Store(int32(p))
}

// AgentAudible reports whether agent audio is currently reaching the
// caller: a speaking turn past its first forwarded chunk, or playback
// drain. Onset signals only matter in this window; outside it the caller
// simply holds the floor.
func (c *Controller) AgentAudible() bool {
	switch c.Phase() {
	case PhaseAwaitingPlayback:
		return true
	case PhaseSpeaking:
		return c.audible.Load()
	}
	return false
}

// SignalOnset records that the caller has started speaking over the agent.
func (c *Controller) SignalOnset() {
	if !c.AgentAudible() {
		return
	}
	select {
	case c.onset <- struct{}{}:
	default:
	}
}

// PushFinal queues a finalized utterance for turn handling.
func (c *Controller) PushFinal(text string) {
	c.finals.Push(text)
}

// MarkEchoed relays a mark echo from the telephony channel.
func (c *Controller) MarkEchoed(name string) {
	select {
	case c.markEchoes <- name:
	default:
		log.Printf("[session] call=%s dropping mark echo %q", c.callSID, name)
	}
}

// Run drives the call's turn loop until ctx ends. The greeting is an
// ordinary turn triggered by call start instead of a transcript.
func (c *Controller) Run(ctx context.Context) {
	c.runTurn(ctx, c.greeting, true)
	for {
		if ctx.Err() != nil {
			return
		}
		if !c.finals.Pending() {
			c.pool.Prewarm(ctx)
		}
		utterance, ok := c.finals.Pop(ctx)
		if !ok {
			return
		}
		c.runTurn(ctx, utterance, false)
	}
}

func (c *Controller) runTurn(ctx context.Context, utterance string, fixed bool) {
	c.drainOnset()
	c.audible.Store(false)
	checkpoint := c.hist.Checkpoint()
	c.setPhase(PhaseSpeaking)
	metricTurns.Inc()

	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		if fixed {
			done <- c.pipe.speakFixed(turnCtx, utterance)
		} else {
			done <- c.pipe.run(turnCtx, utterance, checkpoint)
		}
	}()

	var err error
	select {
	case <-c.onset:
		c.interrupt(ctx, cancel, done, checkpoint)
		return
	case err = <-done:
		// A caller's speech is never safe to ignore, even when it lands
		// in the same instant as pipeline completion.
		select {
		case <-c.onset:
			c.interruptSettled(ctx, checkpoint)
			return
		default:
		}
	case <-ctx.Done():
		cancel()
		<-done
		c.finishTurn(PhaseIdle)
		return
	}

	if err != nil {
		log.Printf("[session] call=%s turn failed: %v", c.callSID, err)
		c.finishTurn(PhaseIdle)
		return
	}

	name := c.marks.Issue()
	if err := c.conn.SendMark(ctx, name); err != nil {
		log.Printf("[session] call=%s send mark: %v", c.callSID, err)
		c.marks.Clear()
		c.finishTurn(PhaseIdle)
		return
	}
	metricMarks.Inc()
	markSent := time.Now()
	c.setPhase(PhaseAwaitingPlayback)

	for {
		select {
		case <-c.onset:
			// Barge-in while the far end drains its buffer. Same interrupt
			// actions, minus a pipeline to cancel: discard queued audio and
			// roll the turn back.
			_ = c.conn.SendClear(ctx)
			c.marks.Clear()
			if terr := c.hist.TruncateTo(checkpoint); terr != nil {
				log.Printf("[session] call=%s rollback: %v", c.callSID, terr)
			}
			c.pool.DiscardIdle()
			metricInterrupts.Inc()
			c.finishTurn(PhaseIdle)
			return
		case echoed := <-c.markEchoes:
			if c.marks.Resolve(echoed) {
				metricMarkRoundtripMS.Observe(float64(time.Since(markSent).Milliseconds()))
				c.finishTurn(PhaseIdle)
				return
			}
		case <-ctx.Done():
			// Call stop forces resolution, no rollback.
			c.marks.Clear()
			c.finishTurn(PhaseIdle)
			return
		}
	}
}

// interrupt yields the floor mid-turn: cancel the pipeline, clear the far
// end's buffered audio, await full teardown, then roll history back to the
// pre-turn checkpoint. Teardown must complete before the phase changes so
// no cancelled-turn audio can trail the clear.
func (c *Controller) interrupt(ctx context.Context, cancel context.CancelFunc, done <-chan error, checkpoint int) {
	cancel()
	if err := c.conn.SendClear(ctx); err != nil {
		log.Printf("[session] call=%s send clear: %v", c.callSID, err)
	}
	<-done
	if err := c.hist.TruncateTo(checkpoint); err != nil {
		log.Printf("[session] call=%s rollback: %v", c.callSID, err)
	}
	c.pool.DiscardIdle()
	metricInterrupts.Inc()
	c.finishTurn(PhaseIdle)
	log.Printf("[session] call=%s interrupted, floor returned to caller", c.callSID)
}

// interruptSettled handles an onset that tied with pipeline completion:
// there is no task left to cancel, only queued audio to discard and a turn
// to roll back.
func (c *Controller) interruptSettled(ctx context.Context, checkpoint int) {
	if err := c.conn.SendClear(ctx); err != nil {
		log.Printf("[session] call=%s send clear: %v", c.callSID, err)
	}
	if err := c.hist.TruncateTo(checkpoint); err != nil {
		log.Printf("[session] call=%s rollback: %v", c.callSID, err)
	}
	c.pool.DiscardIdle()
	metricInterrupts.Inc()
	c.finishTurn(PhaseIdle)
	log.Printf("[session] call=%s interrupted, floor returned to caller", c.callSID)
}

func (c *Controller) finishTurn(p Phase) {
	c.audible.Store(false)
	c.setPhase(p)
}

func (c *Controller) drainOnset() {
	for {
		select {
		case <-c.onset:
		default:
			return
		}
	}
}

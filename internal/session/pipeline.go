package session

import (
	"context"
	"fmt"
	"log"
	"strings"

	"byteai/callagent/internal/agent"
	"byteai/callagent/internal/history"
)

// responder is the language-model collaborator contract: message history
// in, an ordered event stream of text increments and resolved tool rounds
// out, terminating in completion or error.
type responder interface {
	Stream(ctx context.Context, entries []history.Entry, emit func(agent.Event) error) error
}

// Transport is the outbound half of the telephony channel.
type Transport interface {
	SendMedia(ctx context.Context, audio []byte) error
	SendClear(ctx context.Context) error
	SendMark(ctx context.Context, name string) error
}

type attemptResult int

const (
	attemptDelivered attemptResult = iota
	attemptExtended
)

// Synthesis faults bounded per turn; past this the caller hears the apology.
const maxSynthRetries = 2

// pipeline generates and speaks one reply per run call. While a run is in
// flight it is the sole mutator of the conversation history; the controller
// rolls back only after run has returned.
type pipeline struct {
	callSID  string
	agent    responder
	pool     SynthPool
	conn     Transport
	hist     *history.History
	finals   *finalQueue
	minFlush int

	// onFirstAudio fires when the first chunk of a turn reaches the
	// channel, the point past which a restart would be audible.
	onFirstAudio func()
}

// run speaks one reply to utterance. Additional final transcripts that
// arrive before the first audio chunk is forwarded abort the attempt and
// restart it with the merged utterance; a failed synthesis session restarts
// the attempt from the top on a fresh session.
func (p *pipeline) run(ctx context.Context, utterance string, checkpoint int) error {
	synthRetries := 0
	for {
		res, err := p.attempt(ctx, utterance)
		if err == nil && res == attemptDelivered {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if terr := p.hist.TruncateTo(checkpoint); terr != nil {
			return terr
		}
		switch {
		case res == attemptExtended:
			merged := append([]string{utterance}, p.finals.Drain()...)
			utterance = strings.TrimSpace(strings.Join(merged, " "))
			metricSpeculativeRestarts.Inc()
			log.Printf("[session] call=%s transcript extended, restarting turn: %q", p.callSID, utterance)
		case isAgentErr(err):
			log.Printf("[session] call=%s agent failed: %v", p.callSID, err)
			p.hist.AppendText("user", utterance)
			return p.speakFixed(ctx, agent.Apology)
		default:
			synthRetries++
			if synthRetries > maxSynthRetries {
				log.Printf("[session] call=%s synthesis failed %d times: %v", p.callSID, synthRetries, err)
				p.hist.AppendText("user", utterance)
				return p.speakFixed(ctx, agent.Apology)
			}
			metricSynthRetries.Inc()
			log.Printf("[session] call=%s synthesis fault, retrying turn: %v", p.callSID, err)
		}
	}
}

type agentErr struct{ err error }

func (e agentErr) Error() string { return e.err.Error() }
func (e agentErr) Unwrap() error { return e.err }

func isAgentErr(err error) bool {
	_, ok := err.(agentErr)
	return ok
}

type synthErr struct{ err error }

func (e synthErr) Error() string { return e.err.Error() }
func (e synthErr) Unwrap() error { return e.err }

type forwardResult struct {
	extended bool
	err      error
}

// attempt makes one pass at the turn: append the user utterance, stream the
// agent, feed sentence-sized text to a synthesis session, and forward its
// audio to the channel.
func (p *pipeline) attempt(parent context.Context, utterance string) (attemptResult, error) {
	p.hist.AppendText("user", utterance)

	sess, err := p.pool.Acquire(parent)
	if err != nil {
		return 0, fmt.Errorf("acquire synthesis session: %w", err)
	}
	defer sess.Close()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	fwd := make(chan forwardResult, 1)
	go p.forward(ctx, cancel, sess, true, fwd)

	buf := sentenceBuffer{min: p.minFlush}
	var spoken strings.Builder
	streamErr := p.agent.Stream(ctx, p.hist.Entries(), func(ev agent.Event) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		switch ev.Kind {
		case agent.EventText:
			spoken.WriteString(ev.Text)
			for _, seg := range buf.add(ev.Text) {
				if err := sess.SendText(ctx, seg); err != nil {
					return synthErr{err: fmt.Errorf("submit text: %w", err)}
				}
			}
		case agent.EventToolCall:
			p.hist.Append(history.Entry{Role: "assistant", Tool: ev.Tool})
		case agent.EventToolResult:
			p.hist.Append(history.Entry{
				Role:       "user",
				ToolResult: &history.ToolResult{ID: ev.ToolID, Content: ev.Result},
			})
		}
		return nil
	})

	if streamErr != nil {
		cancel()
		sess.Close()
		if res := <-fwd; res.extended {
			return attemptExtended, nil
		}
		if parent.Err() != nil {
			return 0, parent.Err()
		}
		if se, ok := streamErr.(synthErr); ok {
			return 0, se.err
		}
		return 0, agentErr{err: streamErr}
	}

	if rest := buf.rest(); rest != "" {
		if err := sess.SendText(ctx, rest); err != nil {
			cancel()
			sess.Close()
			if res := <-fwd; res.extended {
				return attemptExtended, nil
			}
			return 0, fmt.Errorf("submit text: %w", err)
		}
	}
	if err := sess.EndInput(ctx); err != nil {
		cancel()
		sess.Close()
		if res := <-fwd; res.extended {
			return attemptExtended, nil
		}
		return 0, fmt.Errorf("end synthesis input: %w", err)
	}
	if text := strings.TrimSpace(spoken.String()); text != "" {
		p.hist.AppendText("assistant", text)
	}

	res := <-fwd
	switch {
	case res.extended:
		return attemptExtended, nil
	case res.err != nil:
		return 0, res.err
	}
	return attemptDelivered, nil
}

// forward relays synthesized audio chunks to the caller in order. The
// transcript-extension check runs exactly once, immediately before the
// first chunk would become audible; after that point more caller speech is
// a true interrupt, handled by the controller.
func (p *pipeline) forward(ctx context.Context, cancel context.CancelFunc, sess SynthSession, guard bool, out chan<- forwardResult) {
	first := true
	for chunk := range sess.Audio() {
		if first {
			first = false
			if guard && p.finals.Pending() {
				cancel()
				out <- forwardResult{extended: true}
				return
			}
			if p.onFirstAudio != nil {
				p.onFirstAudio()
			}
		}
		if err := p.conn.SendMedia(ctx, chunk); err != nil {
			cancel()
			out <- forwardResult{err: fmt.Errorf("send media: %w", err)}
			return
		}
	}
	out <- forwardResult{err: sess.Err()}
}

// speakFixed synthesizes a canned line with no agent involvement. Used for
// the greeting and the apology; the extension guard does not apply.
func (p *pipeline) speakFixed(ctx context.Context, text string) error {
	sess, err := p.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire synthesis session: %w", err)
	}
	defer sess.Close()

	fctx, cancel := context.WithCancel(ctx)
	defer cancel()
	fwd := make(chan forwardResult, 1)
	go p.forward(fctx, cancel, sess, false, fwd)

	if err := sess.SendText(fctx, text); err != nil {
		cancel()
		sess.Close()
		<-fwd
		return fmt.Errorf("submit text: %w", err)
	}
	if err := sess.EndInput(fctx); err != nil {
		cancel()
		sess.Close()
		<-fwd
		return fmt.Errorf("end synthesis input: %w", err)
	}
	if res := <-fwd; res.err != nil {
		return res.err
	}
	p.hist.AppendText("assistant", text)
	return nil
}

package session

import (
	"context"
	"errors"
	"testing"

	"byteai/callagent/internal/agent"
	"byteai/callagent/internal/history"
)

func newTestPipeline(tr *fakeTransport, pool *fakePool, resp *fakeResponder) (*pipeline, *history.History) {
	hist := history.New()
	return &pipeline{
		callSID:  "CA-test",
		agent:    resp,
		pool:     pool,
		conn:     tr,
		hist:     hist,
		finals:   newFinalQueue(),
		minFlush: 48,
	}, hist
}

func TestPipelineDeliversReply(t *testing.T) {
	tr := &fakeTransport{}
	resp := &fakeResponder{script: sayText("We open at nine. ")}
	p, hist := newTestPipeline(tr, newFakePool(), resp)

	if err := p.run(context.Background(), "what are your hours", hist.Checkpoint()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if tr.count("media") == 0 {
		t.Error("no audio forwarded")
	}
	entries := hist.Entries()
	if len(entries) != 2 {
		t.Fatalf("history = %d entries, want user+assistant", len(entries))
	}
	if entries[0].Text != "what are your hours" || entries[1].Text != "We open at nine." {
		t.Errorf("history content wrong: %+v", entries)
	}
}

func TestPipelineSpeculativeMerge(t *testing.T) {
	tr := &fakeTransport{}
	resp := &fakeResponder{script: sayText("We open at nine. ")}
	p, hist := newTestPipeline(tr, newFakePool(), resp)

	// A second final fragment is already queued when the reply's first
	// audio chunk would go out: the attempt must restart merged.
	p.finals.Push("your hours?")
	if err := p.run(context.Background(), "What are", hist.Checkpoint()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if resp.callCount() != 2 {
		t.Fatalf("agent called %d times, want 2", resp.callCount())
	}
	if got := resp.lastUser(0); got != "What are" {
		t.Errorf("first attempt utterance = %q", got)
	}
	if got := resp.lastUser(1); got != "What are your hours?" {
		t.Errorf("merged utterance = %q", got)
	}
	entries := hist.Entries()
	if len(entries) != 2 || entries[0].Text != "What are your hours?" {
		t.Errorf("history after merge: %+v", entries)
	}
	if p.finals.Pending() {
		t.Error("queued fragment not consumed by merge")
	}
}

func TestPipelineSynthFaultRetriesFreshSession(t *testing.T) {
	tr := &fakeTransport{}
	pool := newFakePool()
	bad := newFakeSynth()
	bad.failSend = true
	sessions := []SynthSession{bad, newFakeSynth()}
	pool.factory = func() SynthSession {
		s := sessions[0]
		if len(sessions) > 1 {
			sessions = sessions[1:]
		}
		return s
	}
	resp := &fakeResponder{script: sayText("All sorted. ")}
	p, hist := newTestPipeline(tr, pool, resp)

	if err := p.run(context.Background(), "book it", hist.Checkpoint()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if pool.handed != 2 {
		t.Errorf("sessions acquired = %d, want 2", pool.handed)
	}
	entries := hist.Entries()
	if len(entries) != 2 || entries[1].Text != "All sorted." {
		t.Errorf("history after retry: %+v", entries)
	}
}

func TestPipelineAgentErrorSpeaksApology(t *testing.T) {
	tr := &fakeTransport{}
	resp := &fakeResponder{script: func(ctx context.Context, call int, emit func(agent.Event) error) error {
		return errors.New("model overloaded")
	}}
	p, hist := newTestPipeline(tr, newFakePool(), resp)

	if err := p.run(context.Background(), "hello?", hist.Checkpoint()); err != nil {
		t.Fatalf("run: %v", err)
	}
	entries := hist.Entries()
	if len(entries) != 2 {
		t.Fatalf("history = %d entries, want user+apology", len(entries))
	}
	if entries[1].Text != agent.Apology {
		t.Errorf("assistant entry = %q", entries[1].Text)
	}
	if tr.count("media") == 0 {
		t.Error("apology was never synthesized")
	}
}

func TestPipelineToolRoundRecordedInHistory(t *testing.T) {
	tr := &fakeTransport{}
	resp := &fakeResponder{script: func(ctx context.Context, call int, emit func(agent.Event) error) error {
		if err := emit(agent.Event{Kind: agent.EventToolCall, Tool: &history.ToolCall{ID: "tu_1", Name: "check_appointment"}}); err != nil {
			return err
		}
		if err := emit(agent.Event{Kind: agent.EventToolResult, ToolID: "tu_1", Result: `{"found":false}`}); err != nil {
			return err
		}
		return emit(agent.Event{Kind: agent.EventText, Text: "No booking on file. "})
	}}
	p, hist := newTestPipeline(tr, newFakePool(), resp)

	if err := p.run(context.Background(), "am I booked?", hist.Checkpoint()); err != nil {
		t.Fatalf("run: %v", err)
	}
	entries := hist.Entries()
	if len(entries) != 4 {
		t.Fatalf("history = %d entries, want user+tool+result+assistant", len(entries))
	}
	if entries[1].Tool == nil || entries[1].Tool.ID != "tu_1" {
		t.Errorf("tool entry missing: %+v", entries[1])
	}
	if entries[2].ToolResult == nil || entries[2].ToolResult.ID != "tu_1" {
		t.Errorf("tool result entry missing: %+v", entries[2])
	}
}

func TestPipelineCancelledRunRollsNothingForward(t *testing.T) {
	tr := &fakeTransport{}
	resp := &fakeResponder{script: func(ctx context.Context, call int, emit func(agent.Event) error) error {
		if err := emit(agent.Event{Kind: agent.EventText, Text: "Let me explain. "}); err != nil {
			return err
		}
		<-ctx.Done()
		return ctx.Err()
	}}
	p, hist := newTestPipeline(tr, newFakePool(), resp)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.run(ctx, "tell me everything", hist.Checkpoint()) }()
	waitFor(t, "first audio", func() bool { return tr.count("media") > 0 })
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("run = %v, want context.Canceled", err)
	}
}

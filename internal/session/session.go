package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	ws "nhooyr.io/websocket"

	"byteai/callagent/internal/agent"
	"byteai/callagent/internal/history"
	"byteai/callagent/internal/stt"
	"byteai/callagent/internal/telephony"
	"byteai/callagent/internal/tts"
	"byteai/callagent/internal/vad"
)

type Config struct {
	STT           stt.Config
	TTS           tts.Config
	VAD           vad.Config
	MinFlushChars int
}

// CallRegistry records active calls for health and metrics reporting only;
// per-call logic never reads it.
type CallRegistry interface {
	Insert(callSID, streamSID string)
	Remove(callSID string)
}

// Run owns one call from media-stream start to stop. Everything it creates
// is released before it returns: recognizer stream, synthesis sessions, the
// controller goroutine, and the registry entry. Turn-level failures are
// absorbed inside the controller; only channel-level errors surface here.
func Run(ctx context.Context, sock *ws.Conn, ag *agent.Agent, cfg Config, reg CallRegistry) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start, err := awaitStart(ctx, sock)
	if err != nil {
		return err
	}
	callSID := start.CallSid
	streamSID := start.StreamSid
	log.Printf("[session] call=%s stream=%s started", callSID, streamSID)
	if reg != nil {
		reg.Insert(callSID, streamSID)
		defer reg.Remove(callSID)
	}
	metricCallsActive.Inc()
	defer metricCallsActive.Dec()
	began := time.Now()

	conn := telephony.NewConn(sock, streamSID)
	pool := WrapPool(tts.NewPool(cfg.TTS))
	defer pool.Close()

	rec := stt.NewStream(ctx, cfg.STT)
	rec.Start()
	defer rec.Close()

	hist := history.New()
	ctrl := newController(callSID, conn, pool, hist, ag, cfg.MinFlushChars)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		ctrl.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		relayTranscripts(rec, ctrl, callSID)
	}()

	det := vad.New(cfg.VAD)
	runErr := readLoop(ctx, sock, callSID, det, rec, ctrl)

	cancel()
	rec.Close()
	wg.Wait()
	log.Printf("[session] call=%s ended after %s, %d history entries",
		callSID, time.Since(began).Round(time.Second), hist.Len())
	return runErr
}

// awaitStart consumes frames until the start event arrives. The provider
// sends a connected event first; anything else before start is dropped.
func awaitStart(ctx context.Context, sock *ws.Conn) (*telephony.StartPayload, error) {
	deadline, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	for {
		_, data, err := sock.Read(deadline)
		if err != nil {
			return nil, fmt.Errorf("await stream start: %w", err)
		}
		frame, err := telephony.ParseFrame(data)
		if err != nil {
			log.Printf("[session] dropping pre-start frame: %v", err)
			continue
		}
		switch frame.Event {
		case telephony.EventStart:
			return frame.Start, nil
		case telephony.EventStop:
			return nil, fmt.Errorf("stream stopped before start")
		}
	}
}

// relayTranscripts feeds recognizer events into the controller. Any event,
// interim or final, doubles as an onset signal while the agent is audible;
// finals queue a turn.
func relayTranscripts(rec *stt.Stream, ctrl *Controller, callSID string) {
	for ev := range rec.Events {
		if ev.Err != "" {
			log.Printf("[session] call=%s recognizer: %s", callSID, ev.Err)
			continue
		}
		ctrl.SignalOnset()
		if ev.IsFinal {
			ctrl.PushFinal(ev.Text)
		}
	}
}

// readLoop pumps inbound frames: media to the recognizer and the VAD, mark
// echoes to the controller. Malformed frames are logged and dropped.
func readLoop(ctx context.Context, sock *ws.Conn, callSID string, det *vad.Detector, rec *stt.Stream, ctrl *Controller) error {
	for {
		_, data, err := sock.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("media socket: %w", err)
		}
		frame, err := telephony.ParseFrame(data)
		if err != nil {
			log.Printf("[session] call=%s dropping frame: %v", callSID, err)
			continue
		}
		switch frame.Event {
		case telephony.EventMedia:
			audio, err := frame.Media.Audio()
			if err != nil {
				log.Printf("[session] call=%s bad media payload: %v", callSID, err)
				continue
			}
			metricFramesIn.Inc()
			rec.Send(audio)
			// Energy VAD runs only while agent audio is in play; during
			// caller silence the recognizer's own events drive onsets.
			if ctrl.AgentAudible() {
				if det.Process(audio) {
					ctrl.SignalOnset()
				}
			} else {
				det.Reset()
			}
		case telephony.EventMark:
			ctrl.MarkEchoed(frame.Mark.Name)
		case telephony.EventStop:
			log.Printf("[session] call=%s stop received", callSID)
			return nil
		}
	}
}

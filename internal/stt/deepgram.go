package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	ws "nhooyr.io/websocket"
)

// Event is one transcript event from the recognizer. Interim events are
// never persisted; finals are the sole trigger for starting a turn. The
// recognizer's finalization is allowed to be wrong: one spoken utterance may
// arrive as several finals, which the turn controller absorbs via
// speculative extension.
type Event struct {
	Text    string
	IsFinal bool
	At      time.Time
	Err     string
}

type Config struct {
	APIKey        string
	BaseURL       string
	Model         string
	Language      string
	EndpointingMs int
}

// Stream maintains a live websocket connection to Deepgram for one call,
// sending mu-law 8kHz audio frames and receiving transcript events. Frames
// are dropped (not queued unboundedly) under backpressure; transcripts on a
// phone call are useless once stale.
type Stream struct {
	ctx    context.Context
	cancel context.CancelFunc

	apiKey string
	url    string

	sendQ  chan []byte
	Events chan Event

	fails   []time.Time
	circuit time.Time
}

func NewStream(parent context.Context, cfg Config) *Stream {
	ctx, cancel := context.WithCancel(parent)
	q := url.Values{}
	q.Set("model", orDefault(cfg.Model, "nova-2"))
	q.Set("language", orDefault(cfg.Language, "en-US"))
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	q.Set("interim_results", "true")
	q.Set("endpointing", fmt.Sprintf("%d", nzd(cfg.EndpointingMs, 300)))
	q.Set("encoding", "mulaw")
	q.Set("sample_rate", "8000")
	q.Set("channels", "1")
	base := cfg.BaseURL
	if base == "" {
		base = "wss://api.deepgram.com/v1/listen"
	}
	return &Stream{
		ctx:    ctx,
		cancel: cancel,
		apiKey: cfg.APIKey,
		url:    base + "?" + q.Encode(),
		sendQ:  make(chan []byte, 16),
		Events: make(chan Event, 32),
	}
}

func (s *Stream) Start() {
	gaugeSessions.Inc()
	go s.run()
}

func (s *Stream) Close() {
	s.cancel()
}

// Send enqueues one inbound telephony frame for transcription. Returns false
// when the frame was dropped under backpressure.
func (s *Stream) Send(mulaw []byte) bool {
	select {
	case s.sendQ <- mulaw:
		metricFrames.Inc()
		metricAudioBytes.Add(float64(len(mulaw)))
		return true
	default:
		metricDrops.Inc()
		return false
	}
}

func (s *Stream) run() {
	defer close(s.Events)
	defer gaugeSessions.Dec()
	for {
		if err := s.connectAndPump(); err != nil {
			s.addFailure()
			s.emit(Event{Err: err.Error(), At: time.Now()})
		} else {
			s.fails = nil
		}
		if s.ctx.Err() != nil {
			return
		}
		select {
		case <-time.After(s.nextBackoff()):
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Stream) connectAndPump() error {
	if time.Now().Before(s.circuit) {
		return fmt.Errorf("circuit open")
	}

	hdr := make(http.Header)
	if s.apiKey != "" {
		hdr.Set("Authorization", "Token "+s.apiKey)
	}
	dialCtx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()
	start := time.Now()
	conn, _, err := ws.Dial(dialCtx, s.url, &ws.DialOptions{HTTPHeader: hdr})
	if err != nil {
		return fmt.Errorf("dial deepgram: %w", err)
	}
	metricConnectMS.Observe(float64(time.Since(start).Milliseconds()))
	metricReconnects.Inc()
	defer conn.Close(ws.StatusNormalClosure, "bye")

	// Writer: audio frames out, keepalive during silence so the provider
	// doesn't close an idle connection.
	go func() {
		keepalive := time.NewTicker(5 * time.Second)
		defer keepalive.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case b := <-s.sendQ:
				wctx, wcancel := context.WithTimeout(s.ctx, 5*time.Second)
				err := conn.Write(wctx, ws.MessageBinary, b)
				wcancel()
				if err != nil {
					return
				}
				gaugeQueueDepth.Set(float64(len(s.sendQ)))
			case <-keepalive.C:
				wctx, wcancel := context.WithTimeout(s.ctx, 5*time.Second)
				err := conn.Write(wctx, ws.MessageText, []byte(`{"type":"KeepAlive"}`))
				wcancel()
				if err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.Read(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read deepgram: %w", err)
		}
		ev, ok := parseMessage(data)
		if !ok {
			continue
		}
		if ev.Err != "" {
			log.Printf("[stt] provider error: %s", ev.Err)
		}
		if ev.IsFinal {
			metricFinalEmitted.Inc()
		}
		s.emit(ev)
	}
}

// parseMessage turns a Deepgram results frame into an Event. Returns
// ok=false for frames that carry nothing to relay (metadata, empty results).
func parseMessage(data []byte) (Event, bool) {
	var m struct {
		Type    string `json:"type"`
		IsFinal bool   `json:"is_final"`
		Channel struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channel"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return Event{}, false
	}
	if m.Error != "" || strings.EqualFold(m.Type, "Error") {
		msg := m.Error
		if msg == "" {
			msg = m.Message
		}
		if msg == "" {
			msg = "provider_error"
		}
		return Event{Err: msg, At: time.Now()}, true
	}
	if !strings.EqualFold(m.Type, "Results") {
		return Event{}, false
	}
	if len(m.Channel.Alternatives) == 0 {
		return Event{}, false
	}
	text := strings.TrimSpace(m.Channel.Alternatives[0].Transcript)
	if text == "" {
		if m.IsFinal {
			metricEmptyFinalSkipped.Inc()
		}
		return Event{}, false
	}
	return Event{Text: text, IsFinal: m.IsFinal, At: time.Now()}, true
}

func (s *Stream) emit(e Event) {
	select {
	case s.Events <- e:
	default:
		metricEventDrops.Inc()
	}
}

func (s *Stream) addFailure() {
	s.fails = append(s.fails, time.Now())
	cutoff := time.Now().Add(-60 * time.Second)
	j := 0
	for _, t := range s.fails {
		if t.After(cutoff) {
			s.fails[j] = t
			j++
		}
	}
	s.fails = s.fails[:j]
	if len(s.fails) >= 3 {
		s.circuit = time.Now().Add(30 * time.Second)
		metricCircuitOpens.Inc()
	}
}

func (s *Stream) nextBackoff() time.Duration {
	n := len(s.fails)
	if n <= 0 {
		return time.Second
	}
	if n > 5 {
		n = 5
	}
	base := time.Duration(1<<uint(n-1)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	return base
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func nzd(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

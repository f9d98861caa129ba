package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	ws "nhooyr.io/websocket"
)

var ErrSessionClosed = errors.New("synthesis session closed")

type Config struct {
	APIKey  string
	BaseURL string
	VoiceID string
	ModelID string
}

// Session is one ElevenLabs stream-input connection: an ordered
// bidirectional channel that accepts incremental text and emits ulaw_8000
// audio chunks in submission order. A session serves at most one turn; a
// session abandoned mid-handshake by an interrupt is discarded, never
// reused, since partial synthesis state cannot be resumed safely.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	conn   *ws.Conn

	// Audio delivers decoded chunks in order and is closed when the
	// provider signals completion or the session fails; Err() tells which.
	audio chan []byte

	mu     sync.Mutex
	err    error
	closed bool
}

type outMsg struct {
	Text                 string         `json:"text"`
	VoiceSettings        map[string]any `json:"voice_settings,omitempty"`
	TryTriggerGeneration bool           `json:"try_trigger_generation,omitempty"`
}

type inMsg struct {
	Audio   string `json:"audio"`
	IsFinal *bool  `json:"isFinal"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Dial opens a stream-input session and completes the handshake. The dial
// cost is why the pool pre-warms sessions during quiet periods.
func Dial(parent context.Context, cfg Config) (*Session, error) {
	base := cfg.BaseURL
	if base == "" {
		base = "wss://api.elevenlabs.io"
	}
	model := cfg.ModelID
	if model == "" {
		model = "eleven_turbo_v2_5"
	}
	url := fmt.Sprintf("%s/v1/text-to-speech/%s/stream-input?model_id=%s&output_format=ulaw_8000", base, cfg.VoiceID, model)

	hdr := make(http.Header)
	if cfg.APIKey != "" {
		hdr.Set("xi-api-key", cfg.APIKey)
	}
	dialCtx, dialCancel := context.WithTimeout(parent, 10*time.Second)
	defer dialCancel()
	start := time.Now()
	conn, _, err := ws.Dial(dialCtx, url, &ws.DialOptions{HTTPHeader: hdr})
	if err != nil {
		metricSynthesisTotal.WithLabelValues("dial_error").Inc()
		return nil, fmt.Errorf("dial elevenlabs: %w", err)
	}
	metricConnectMS.Observe(float64(time.Since(start).Milliseconds()))

	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		ctx:    ctx,
		cancel: cancel,
		conn:   conn,
		audio:  make(chan []byte, 32),
	}

	// Handshake: a leading space primes the stream without producing audio.
	init := outMsg{
		Text:          " ",
		VoiceSettings: map[string]any{"stability": 0.5, "similarity_boost": 0.8},
	}
	if err := s.write(ctx, init); err != nil {
		s.Close()
		return nil, fmt.Errorf("synthesis handshake: %w", err)
	}

	go s.readLoop()
	return s, nil
}

func (s *Session) write(ctx context.Context, m outMsg) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.conn.Write(wctx, ws.MessageText, data)
}

// SendText submits one text increment for synthesis.
func (s *Session) SendText(ctx context.Context, text string) error {
	if s.failed() != nil {
		return s.failed()
	}
	metricTextChunks.Inc()
	return s.write(ctx, outMsg{Text: text, TryTriggerGeneration: true})
}

// EndInput signals that no further text is coming. The provider flushes its
// buffer and closes the audio stream after the last chunk.
func (s *Session) EndInput(ctx context.Context) error {
	if s.failed() != nil {
		return s.failed()
	}
	return s.write(ctx, outMsg{Text: ""})
}

// Audio is the ordered chunk stream for this session.
func (s *Session) Audio() <-chan []byte {
	return s.audio
}

// Err reports why the audio channel closed; nil means normal completion.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) failed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed && s.err == nil {
		return ErrSessionClosed
	}
	return s.err
}

// Live reports whether the session is still usable for a new turn.
func (s *Session) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// Close tears the session down. Safe to call more than once and after
// completion; pending Audio readers observe channel close.
func (s *Session) Close() {
	s.mu.Lock()
	already := s.closed
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	if !already && s.conn != nil {
		_ = s.conn.Close(ws.StatusNormalClosure, "bye")
	}
}

func (s *Session) readLoop() {
	defer close(s.audio)
	firstChunk := true
	start := time.Now()
	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			s.finish(readErr(s.ctx, err))
			return
		}
		var m inMsg
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		if m.Error != "" || m.Message != "" {
			msg := m.Error
			if msg == "" {
				msg = m.Message
			}
			s.finish(fmt.Errorf("provider error: %s", msg))
			return
		}
		if m.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(m.Audio)
			if err != nil {
				s.finish(fmt.Errorf("decode audio: %w", err))
				return
			}
			if firstChunk {
				firstChunk = false
				metricFirstAudioMS.Observe(float64(time.Since(start).Milliseconds()))
			}
			metricAudioBytes.Add(float64(len(chunk)))
			select {
			case s.audio <- chunk:
			case <-s.ctx.Done():
				s.finish(s.ctx.Err())
				return
			}
		}
		if m.IsFinal != nil && *m.IsFinal {
			s.finish(nil)
			return
		}
	}
}

func readErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("read elevenlabs: %w", err)
}

func (s *Session) finish(err error) {
	s.mu.Lock()
	if !s.closed {
		s.err = err
	}
	wasClosed := s.closed
	s.closed = true
	s.mu.Unlock()
	if err == nil {
		metricSynthesisTotal.WithLabelValues("ok").Inc()
	} else if !wasClosed {
		metricSynthesisTotal.WithLabelValues("error").Inc()
	}
	if !wasClosed && s.conn != nil {
		_ = s.conn.Close(ws.StatusNormalClosure, "done")
	}
}

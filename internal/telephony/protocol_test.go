package telephony

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	ws "nhooyr.io/websocket"
)

func TestParseFrameStart(t *testing.T) {
	raw := `{"event":"start","start":{"callSid":"CA123","streamSid":"MZ456"}}`
	f, err := ParseFrame([]byte(raw))
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if f.Start.CallSid != "CA123" || f.Start.StreamSid != "MZ456" {
		t.Errorf("unexpected start payload: %+v", f.Start)
	}
}

func TestParseFrameMedia(t *testing.T) {
	audio := []byte{0xFF, 0x7F, 0x00}
	raw := `{"event":"media","media":{"payload":"` + base64.StdEncoding.EncodeToString(audio) + `"}}`
	f, err := ParseFrame([]byte(raw))
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	got, err := f.Media.Audio()
	if err != nil {
		t.Fatalf("Audio: %v", err)
	}
	if string(got) != string(audio) {
		t.Errorf("decoded audio = %v, expected %v", got, audio)
	}
}

func TestParseFrameMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{nope`},
		{"no event", `{}`},
		{"unknown event", `{"event":"dtmf"}`},
		{"start without sid", `{"event":"start","start":{}}`},
		{"media without payload", `{"event":"media"}`},
		{"mark without name", `{"event":"mark","mark":{}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseFrame([]byte(tc.raw)); err == nil {
				t.Errorf("expected parse error for %s", tc.raw)
			}
		})
	}
}

func TestParseFrameStop(t *testing.T) {
	f, err := ParseFrame([]byte(`{"event":"stop"}`))
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if f.Event != EventStop {
		t.Errorf("event = %q", f.Event)
	}
}

type fakeSocket struct {
	frames []Frame
}

func (f *fakeSocket) Write(_ context.Context, _ ws.MessageType, p []byte) error {
	var fr Frame
	if err := json.Unmarshal(p, &fr); err != nil {
		return err
	}
	f.frames = append(f.frames, fr)
	return nil
}

func TestConnOutboundFrames(t *testing.T) {
	sock := &fakeSocket{}
	c := NewConn(sock, "MZ456")
	ctx := context.Background()

	if err := c.SendMedia(ctx, []byte{0x01, 0x02}); err != nil {
		t.Fatal(err)
	}
	if err := c.SendMark(ctx, "mark-1"); err != nil {
		t.Fatal(err)
	}
	if err := c.SendClear(ctx); err != nil {
		t.Fatal(err)
	}

	if len(sock.frames) != 3 {
		t.Fatalf("got %d frames, expected 3", len(sock.frames))
	}
	if sock.frames[0].Event != EventMedia || sock.frames[0].StreamSid != "MZ456" {
		t.Errorf("media frame: %+v", sock.frames[0])
	}
	if audio, _ := sock.frames[0].Media.Audio(); string(audio) != "\x01\x02" {
		t.Errorf("media payload round trip failed")
	}
	if sock.frames[1].Event != EventMark || sock.frames[1].Mark.Name != "mark-1" {
		t.Errorf("mark frame: %+v", sock.frames[1])
	}
	if sock.frames[2].Event != EventClear {
		t.Errorf("clear frame: %+v", sock.frames[2])
	}
}

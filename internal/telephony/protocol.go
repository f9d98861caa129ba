package telephony

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// The media-stream protocol is JSON text frames over one full-duplex
// websocket per call. Inbound events: start, media, mark, stop. Outbound:
// media, clear, mark. Audio rides base64-encoded mu-law 8kHz mono in fixed
// 20ms frames.

const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventMark      = "mark"
	EventStop      = "stop"
	EventClear     = "clear"
)

type Frame struct {
	Event     string        `json:"event"`
	StreamSid string        `json:"streamSid,omitempty"`
	Start     *StartPayload `json:"start,omitempty"`
	Media     *MediaPayload `json:"media,omitempty"`
	Mark      *MarkPayload  `json:"mark,omitempty"`
}

type StartPayload struct {
	CallSid   string `json:"callSid"`
	StreamSid string `json:"streamSid"`
}

type MediaPayload struct {
	Payload string `json:"payload"`
}

type MarkPayload struct {
	Name string `json:"name"`
}

// Audio decodes the base64 mu-law payload.
func (m *MediaPayload) Audio() ([]byte, error) {
	return base64.StdEncoding.DecodeString(m.Payload)
}

// ParseFrame validates an inbound text frame. Malformed frames are protocol
// errors the caller logs and drops without tearing down the session.
func ParseFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("unmarshal frame: %w", err)
	}
	switch f.Event {
	case EventStart:
		if f.Start == nil || f.Start.StreamSid == "" {
			return Frame{}, fmt.Errorf("start frame missing stream sid")
		}
	case EventMedia:
		if f.Media == nil || f.Media.Payload == "" {
			return Frame{}, fmt.Errorf("media frame missing payload")
		}
	case EventMark:
		if f.Mark == nil || f.Mark.Name == "" {
			return Frame{}, fmt.Errorf("mark frame missing name")
		}
	case EventStop, EventConnected:
	case "":
		return Frame{}, fmt.Errorf("frame missing event field")
	default:
		return Frame{}, fmt.Errorf("unknown event %q", f.Event)
	}
	return f, nil
}

func mediaFrame(streamSid string, audio []byte) Frame {
	return Frame{
		Event:     EventMedia,
		StreamSid: streamSid,
		Media:     &MediaPayload{Payload: base64.StdEncoding.EncodeToString(audio)},
	}
}

func clearFrame(streamSid string) Frame {
	return Frame{Event: EventClear, StreamSid: streamSid}
}

func markFrame(streamSid, name string) Frame {
	return Frame{Event: EventMark, StreamSid: streamSid, Mark: &MarkPayload{Name: name}}
}

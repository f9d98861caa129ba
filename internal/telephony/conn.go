package telephony

import (
	"context"
	"encoding/json"
	"sync"

	ws "nhooyr.io/websocket"
)

// socket is the slice of nhooyr's *websocket.Conn the outbound side needs.
type socket interface {
	Write(ctx context.Context, typ ws.MessageType, p []byte) error
}

// Conn serializes all outbound writes for one call. The websocket is the one
// genuinely shared resource within a call, so every media/clear/mark write
// goes through the same mutex; audio chunks leave in submission order.
type Conn struct {
	mu        sync.Mutex
	ws        socket
	streamSid string
}

func NewConn(ws socket, streamSid string) *Conn {
	return &Conn{ws: ws, streamSid: streamSid}
}

func (c *Conn) writeFrame(ctx context.Context, f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.Write(ctx, ws.MessageText, data)
}

// SendMedia forwards one synthesized audio chunk to the caller.
func (c *Conn) SendMedia(ctx context.Context, audio []byte) error {
	return c.writeFrame(ctx, mediaFrame(c.streamSid, audio))
}

// SendClear tells the far end to discard buffered, not-yet-played audio.
// Sent on interrupt before anything else so barge-in feels immediate.
func (c *Conn) SendClear(ctx context.Context) error {
	return c.writeFrame(ctx, clearFrame(c.streamSid))
}

// SendMark emits a named playback sentinel; the far end echoes it back once
// its buffer has drained past this point.
func (c *Conn) SendMark(ctx context.Context, name string) error {
	return c.writeFrame(ctx, markFrame(c.streamSid, name))
}

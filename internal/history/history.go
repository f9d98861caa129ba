package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var ErrBadCheckpoint = errors.New("checkpoint beyond history length")

// Entry is one committed dialogue turn. Exactly one of Text, Tool or
// ToolResult is set for assistant/tool traffic; plain user and assistant
// turns carry Text.
type Entry struct {
	Role       string
	Text       string
	Tool       *ToolCall
	ToolResult *ToolResult
}

// ToolCall records an assistant tool invocation.
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolResult records the backend's answer to a ToolCall, carried on a
// user-role entry per the agent API's conversation shape.
type ToolResult struct {
	ID      string
	Content string
}

// History is the ordered conversation log for one call. It must only ever
// reflect completed, committed turns: the turn controller takes a checkpoint
// before each turn and truncates back to it when the turn is aborted, so
// no partial assistant or tool content survives an interrupt.
//
// Appends come from the response pipeline while a turn is in flight; the
// controller only truncates after the pipeline has fully stopped, so the two
// never race. The mutex covers reads from health/debug surfaces.
type History struct {
	mu      sync.Mutex
	entries []Entry
}

func New() *History {
	return &History{}
}

func (h *History) Append(e Entry) {
	h.mu.Lock()
	h.entries = append(h.entries, e)
	h.mu.Unlock()
}

// AppendText is the common case: a plain spoken turn.
func (h *History) AppendText(role, text string) {
	h.Append(Entry{Role: role, Text: text})
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Checkpoint returns the current length. Taken by the controller immediately
// before a turn begins; valid only for the lifetime of that turn.
func (h *History) Checkpoint() int {
	return h.Len()
}

// TruncateTo discards every entry appended after the checkpoint. Rolling a
// history forward is not possible; a checkpoint larger than the current
// length is a programming error surfaced as ErrBadCheckpoint.
func (h *History) TruncateTo(checkpoint int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if checkpoint < 0 || checkpoint > len(h.entries) {
		return fmt.Errorf("%w: checkpoint=%d len=%d", ErrBadCheckpoint, checkpoint, len(h.entries))
	}
	h.entries = h.entries[:checkpoint]
	return nil
}

// Entries returns a copy of the log.
func (h *History) Entries() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// LastAssistantText returns the most recent plain assistant turn, or "".
func (h *History) LastAssistantText() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.entries) - 1; i >= 0; i-- {
		if h.entries[i].Role == "assistant" && h.entries[i].Text != "" {
			return h.entries[i].Text
		}
	}
	return ""
}

package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"byteai/callagent/internal/history"
)

// maxToolRounds bounds the tool loop so a misbehaving model cannot keep a
// caller waiting forever.
const maxToolRounds = 5

// Stream generates the assistant's response to the conversation so far,
// delivering ordered events through emit. Text arrives as increments; tool
// invocations are resolved synchronously and surface as a ToolCall event,
// then a ToolResult event, then a follow-up round of text. emit returning
// an error aborts the stream, as does ctx cancellation.
func (a *Agent) Stream(ctx context.Context, entries []history.Entry, emit func(Event) error) error {
	msgs := renderMessages(entries)

	for round := 0; round < maxToolRounds; round++ {
		res, err := a.stream(ctx, msgs, emit)
		if err != nil {
			return err
		}
		if len(res.toolCalls) == 0 {
			return nil
		}

		// Tools resolve synchronously before the follow-up round; the
		// caller never hears synthesized audio racing a tool side effect.
		assistantContent := make([]map[string]any, 0, len(res.toolCalls)+1)
		if res.text != "" {
			assistantContent = append(assistantContent, map[string]any{"type": "text", "text": res.text})
		}
		resultContent := make([]map[string]any, 0, len(res.toolCalls))
		for _, tc := range res.toolCalls {
			call := tc
			if err := emit(Event{Kind: EventToolCall, Tool: &call}); err != nil {
				return err
			}
			result := a.execute(call.Name, call.Input)
			out, err := json.Marshal(result)
			if err != nil {
				out = []byte(`{"error":"result encoding failed"}`)
			}
			if err := emit(Event{Kind: EventToolResult, ToolID: call.ID, Result: string(out)}); err != nil {
				return err
			}
			assistantContent = append(assistantContent, map[string]any{
				"type":  "tool_use",
				"id":    call.ID,
				"name":  call.Name,
				"input": call.Input,
			})
			resultContent = append(resultContent, map[string]any{
				"type":        "tool_result",
				"tool_use_id": call.ID,
				"content":     string(out),
			})
		}
		msgs = append(msgs,
			map[string]any{"role": "assistant", "content": assistantContent},
			map[string]any{"role": "user", "content": resultContent},
		)
	}
	return fmt.Errorf("tool loop exceeded %d rounds", maxToolRounds)
}

type streamResult struct {
	text      string
	toolCalls []history.ToolCall
}

func (a *Agent) stream(ctx context.Context, msgs []map[string]any, emit func(Event) error) (*streamResult, error) {
	body, err := json.Marshal(map[string]any{
		"model":       a.cfg.Model,
		"max_tokens":  a.cfg.MaxTokens,
		"temperature": 0.3,
		"system":      a.system,
		"messages":    msgs,
		"tools":       toolDefinitions(),
		"stream":      true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("Accept", "text/event-stream")

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		metricRequests.WithLabelValues("transport_error").Inc()
		return nil, fmt.Errorf("model request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		metricRequests.WithLabelValues(fmt.Sprintf("http_%d", resp.StatusCode)).Inc()
		return nil, fmt.Errorf("model request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	metricRequests.WithLabelValues("ok").Inc()

	res := &streamResult{}
	firstToken := true
	var toolBuf *toolAccumulator

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		ev, ok := parseStreamEvent([]byte(strings.TrimPrefix(line, "data: ")))
		if !ok {
			continue
		}
		switch ev.kind {
		case sseText:
			if firstToken {
				firstToken = false
				metricFirstTokenMS.Observe(float64(time.Since(start).Milliseconds()))
			}
			res.text += ev.text
			if err := emit(Event{Kind: EventText, Text: ev.text}); err != nil {
				return nil, err
			}
		case sseToolStart:
			toolBuf = &toolAccumulator{id: ev.toolID, name: ev.toolName}
		case sseToolInput:
			if toolBuf != nil {
				toolBuf.input.WriteString(ev.text)
			}
		case sseBlockStop:
			if toolBuf != nil {
				res.toolCalls = append(res.toolCalls, toolBuf.call())
				toolBuf = nil
			}
		case sseError:
			return nil, fmt.Errorf("model stream: %s", ev.text)
		case sseDone:
			return res, nil
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("model stream read: %w", err)
	}
	return res, nil
}

type toolAccumulator struct {
	id    string
	name  string
	input strings.Builder
}

func (t *toolAccumulator) call() history.ToolCall {
	in := t.input.String()
	if in == "" {
		in = "{}"
	}
	return history.ToolCall{ID: t.id, Name: t.name, Input: json.RawMessage(in)}
}

type sseKind int

const (
	sseText sseKind = iota
	sseToolStart
	sseToolInput
	sseBlockStop
	sseError
	sseDone
)

type sseEvent struct {
	kind     sseKind
	text     string
	toolID   string
	toolName string
}

// parseStreamEvent maps one SSE data payload to an internal event; the
// second return is false for payloads the caller should skip.
func parseStreamEvent(data []byte) (sseEvent, bool) {
	var raw struct {
		Type         string `json:"type"`
		ContentBlock struct {
			Type string `json:"type"`
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"content_block"`
		Delta struct {
			Type        string `json:"type"`
			Text        string `json:"text"`
			PartialJSON string `json:"partial_json"`
		} `json:"delta"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return sseEvent{}, false
	}
	switch raw.Type {
	case "content_block_start":
		if raw.ContentBlock.Type == "tool_use" {
			return sseEvent{kind: sseToolStart, toolID: raw.ContentBlock.ID, toolName: raw.ContentBlock.Name}, true
		}
	case "content_block_delta":
		switch raw.Delta.Type {
		case "text_delta":
			if raw.Delta.Text != "" {
				return sseEvent{kind: sseText, text: raw.Delta.Text}, true
			}
		case "input_json_delta":
			return sseEvent{kind: sseToolInput, text: raw.Delta.PartialJSON}, true
		}
	case "content_block_stop":
		return sseEvent{kind: sseBlockStop}, true
	case "error":
		return sseEvent{kind: sseError, text: raw.Error.Message}, true
	case "message_stop":
		return sseEvent{kind: sseDone}, true
	}
	return sseEvent{}, false
}

package agent

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"byteai/callagent/internal/history"
	"byteai/callagent/internal/kb"
	"byteai/callagent/internal/tools"
)

// Apology is spoken through the normal pipeline when the agent or a tool
// fails mid-turn; the turn then completes normally.
const Apology = "I'm sorry, I'm having trouble processing that. Could you please repeat?"

const systemPrompt = `You are a helpful AI assistant for ByteAI customer support, speaking on a live phone call.

Your role:
- Answer customer questions clearly and concisely
- Use the provided knowledge base to give accurate information
- Help customers book appointments, check status, or escalate issues
- Be friendly, professional, and empathetic

Critical guidelines for phone conversations:
- Keep responses SHORT (1-2 sentences max) - this is a phone call, not a chat
- Speak naturally, like a real human would on the phone
- Never use markdown, bullet points, or formatting - this will be read aloud
- Never spell out URLs or technical details that don't work in speech
- If you don't know something, say so and offer to connect them with support
- Always confirm actions before executing them

Available tools:
- book_appointment: Schedule appointments (needs date, time, name, phone)
- check_appointment: Look up existing appointments (needs phone number)
- escalate_to_human: Transfer to human support (needs reason)`

type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Greeting  string
}

// Toolset groups the synchronous tool backends the agent may invoke.
type Toolset struct {
	Appointments *tools.AppointmentStore
	Escalation   *tools.Escalation
}

// Agent drives the language-model conversation for calls. It is stateless
// across calls: conversation state lives in each call's History, and the
// knowledge base is baked into the system prompt once at startup.
type Agent struct {
	cfg    Config
	system string
	tools  *Toolset
	client *http.Client
}

func New(cfg Config, knowledge *kb.KnowledgeBase, ts *Toolset) *Agent {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-haiku-20241022"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 200
	}
	system := systemPrompt
	if knowledge != nil {
		system += knowledge.PromptSection()
	}
	return &Agent{
		cfg:    cfg,
		system: system,
		tools:  ts,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

// Greeting is the fixed opening line, spoken on stream start and recorded
// as an assistant turn so the model knows what was said.
func (a *Agent) Greeting() string {
	if a.cfg.Greeting != "" {
		return a.cfg.Greeting
	}
	return "Hello! Thanks for calling ByteAI. I'm your AI assistant. How can I help you today?"
}

// Event is one item of the agent's ordered response stream.
type Event struct {
	Kind   EventKind
	Text   string            // EventText: a text increment
	Tool   *history.ToolCall // EventToolCall
	Result string            // EventToolResult: JSON result for Tool.ID
	ToolID string            // EventToolResult
}

type EventKind int

const (
	EventText EventKind = iota
	EventToolCall
	EventToolResult
)

// execute resolves one tool invocation synchronously. Unknown tools and
// bad inputs come back as unsuccessful results the model can speak to.
func (a *Agent) execute(name string, input json.RawMessage) tools.Result {
	if a.tools == nil {
		return tools.Result{"error": "no tools configured"}
	}
	switch name {
	case "book_appointment":
		var in struct {
			Date  string `json:"date"`
			Time  string `json:"time"`
			Name  string `json:"name"`
			Phone string `json:"phone"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return tools.Result{"error": fmt.Sprintf("bad input: %v", err)}
		}
		return a.tools.Appointments.Book(in.Date, in.Time, in.Name, in.Phone)
	case "check_appointment":
		var in struct {
			Phone string `json:"phone"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return tools.Result{"error": fmt.Sprintf("bad input: %v", err)}
		}
		return a.tools.Appointments.Check(in.Phone)
	case "escalate_to_human":
		var in struct {
			Reason         string `json:"reason"`
			CallbackNumber string `json:"callback_number"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return tools.Result{"error": fmt.Sprintf("bad input: %v", err)}
		}
		return a.tools.Escalation.Escalate(in.Reason, in.CallbackNumber)
	default:
		return tools.Result{"error": fmt.Sprintf("unknown tool: %s", name)}
	}
}

func toolDefinitions() []map[string]any {
	return []map[string]any{
		{
			"name":        "book_appointment",
			"description": "Book an appointment for a customer. Requires date, time, customer name, and phone number.",
			"input_schema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"date":  map[string]any{"type": "string", "description": "Appointment date in YYYY-MM-DD format"},
					"time":  map[string]any{"type": "string", "description": "Appointment time in HH:MM format (24-hour)"},
					"name":  map[string]any{"type": "string", "description": "Customer name"},
					"phone": map[string]any{"type": "string", "description": "Customer phone number"},
				},
				"required": []string{"date", "time", "name", "phone"},
			},
		},
		{
			"name":        "check_appointment",
			"description": "Check appointment status for a customer by phone number.",
			"input_schema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"phone": map[string]any{"type": "string", "description": "Customer phone number"},
				},
				"required": []string{"phone"},
			},
		},
		{
			"name":        "escalate_to_human",
			"description": "Escalate the call to a human support agent. Use when the customer needs help beyond your capabilities.",
			"input_schema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"reason":          map[string]any{"type": "string", "description": "Reason for escalation"},
					"callback_number": map[string]any{"type": "string", "description": "Customer callback number"},
				},
				"required": []string{"reason"},
			},
		},
	}
}

// renderMessages converts history entries to the messages-API shape.
func renderMessages(entries []history.Entry) []map[string]any {
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		switch {
		case e.Tool != nil:
			out = append(out, map[string]any{
				"role": "assistant",
				"content": []map[string]any{{
					"type":  "tool_use",
					"id":    e.Tool.ID,
					"name":  e.Tool.Name,
					"input": e.Tool.Input,
				}},
			})
		case e.ToolResult != nil:
			out = append(out, map[string]any{
				"role": "user",
				"content": []map[string]any{{
					"type":        "tool_result",
					"tool_use_id": e.ToolResult.ID,
					"content":     e.ToolResult.Content,
				}},
			})
		default:
			out = append(out, map[string]any{"role": e.Role, "content": e.Text})
		}
	}
	return out
}

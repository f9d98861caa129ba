package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	ws "nhooyr.io/websocket"

	"byteai/callagent/internal/agent"
	"byteai/callagent/internal/config"
	"byteai/callagent/internal/health"
	"byteai/callagent/internal/history"
	"byteai/callagent/internal/registry"
	"byteai/callagent/internal/session"
)

type Handlers struct {
	cfg     config.Config
	ag      *agent.Agent
	reg     *registry.Registry
	callCfg session.Config
}

func NewHandlers(cfg config.Config, ag *agent.Agent, reg *registry.Registry, callCfg session.Config) *Handlers {
	return &Handlers{cfg: cfg, ag: ag, reg: reg, callCfg: callCfg}
}

// HandleVoiceWebhook answers the telephony provider's incoming-call webhook
// with instructions to open a media stream back to this server.
func (h *Handlers) HandleVoiceWebhook(w http.ResponseWriter, r *http.Request) {
	wsURL := h.cfg.Server.PublicWSURL
	if wsURL == "" {
		// Derive from the request host; works when the provider can reach
		// this server directly over TLS.
		wsURL = "wss://" + r.Host + "/ws/media"
	}
	twiml := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
    <Connect>
        <Stream url="%s" />
    </Connect>
</Response>`, wsURL)
	w.Header().Set("Content-Type", "application/xml")
	w.Write([]byte(twiml))
}

// HandleMediaWS upgrades to a websocket and runs the call session until the
// stream stops or the socket drops.
func (h *Handlers) HandleMediaWS(w http.ResponseWriter, r *http.Request) {
	sock, err := ws.Accept(w, r, &ws.AcceptOptions{
		// The telephony provider connects server-to-server with no Origin.
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("[api] websocket accept: %v", err)
		return
	}
	if err := session.Run(r.Context(), sock, h.ag, h.callCfg, h.reg); err != nil {
		log.Printf("[api] media session ended with error: %v", err)
		sock.Close(ws.StatusInternalError, "session error")
		return
	}
	sock.Close(ws.StatusNormalClosure, "")
}

// HandleHealth reports upstream collaborator status plus active call count.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	status := health.CheckAll(ctx, h.cfg)
	code := http.StatusOK
	if !status.OK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"ok":           status.OK,
		"checks":       status.Checks,
		"checked_at":   status.CheckedAt,
		"active_calls": h.reg.Count(),
	})
}

// HandleListCalls returns a snapshot of active calls.
func (h *Handlers) HandleListCalls(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"calls": h.reg.List()})
}

type chatRequest struct {
	Message string `json:"message"`
	History []struct {
		Role string `json:"role"`
		Text string `json:"text"`
	} `json:"history,omitempty"`
}

// HandleTestChat exercises the agent over plain HTTP, no audio involved.
// Only mounted when test endpoints are enabled.
func (h *Handlers) HandleTestChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message required", http.StatusBadRequest)
		return
	}

	entries := make([]history.Entry, 0, len(req.History)+1)
	for _, m := range req.History {
		entries = append(entries, history.Entry{Role: m.Role, Text: m.Text})
	}
	entries = append(entries, history.Entry{Role: "user", Text: req.Message})

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	var reply strings.Builder
	var toolCalls []string
	err := h.ag.Stream(ctx, entries, func(ev agent.Event) error {
		switch ev.Kind {
		case agent.EventText:
			reply.WriteString(ev.Text)
		case agent.EventToolCall:
			toolCalls = append(toolCalls, ev.Tool.Name)
		}
		return nil
	})
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reply":      reply.String(),
		"tool_calls": toolCalls,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}

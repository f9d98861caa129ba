package tools

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ticket is a pending hand-off to human support.
type Ticket struct {
	ID             string `json:"ticket_id"`
	Reason         string `json:"reason"`
	CallbackNumber string `json:"callback_number,omitempty"`
	CreatedAt      string `json:"created_at"`
	Status         string `json:"status"`
}

// Escalation files support tickets when the agent cannot help. In production
// this would post to a ticketing system; the file store keeps the contract
// identical while staying self-contained.
type Escalation struct {
	mu           sync.Mutex
	path         string
	supportPhone string
	now          func() time.Time
}

func NewEscalation(dataDir, supportPhone string) *Escalation {
	if supportPhone == "" {
		supportPhone = "+1-555-SUPPORT"
	}
	return &Escalation{
		path:         filepath.Join(dataDir, "support_tickets.json"),
		supportPhone: supportPhone,
		now:          time.Now,
	}
}

// Escalate files a ticket and tells the caller what happens next.
func (e *Escalation) Escalate(reason, callbackNumber string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := Ticket{
		ID:             "TICKET-" + uuid.NewString()[:8],
		Reason:         reason,
		CallbackNumber: callbackNumber,
		CreatedAt:      e.now().UTC().Format(time.RFC3339),
		Status:         "pending",
	}

	tickets := make(map[string]Ticket)
	if raw, err := os.ReadFile(e.path); err == nil {
		_ = json.Unmarshal(raw, &tickets)
	}
	tickets[t.ID] = t

	if err := os.MkdirAll(filepath.Dir(e.path), 0o755); err != nil {
		log.Printf("[tools] mkdir: %v", err)
		return Result{"success": false, "error": "Failed to create support ticket."}
	}
	raw, _ := json.MarshalIndent(tickets, "", "  ")
	if err := os.WriteFile(e.path, raw, 0o644); err != nil {
		log.Printf("[tools] write tickets: %v", err)
		return Result{"success": false, "error": "Failed to create support ticket."}
	}
	log.Printf("[tools] support ticket created id=%s reason=%q", t.ID, reason)

	callback := callbackNumber
	if callback == "" {
		callback = "the number you're calling from"
	}
	return Result{
		"success":       true,
		"ticket_id":     t.ID,
		"support_phone": e.supportPhone,
		"message":       fmt.Sprintf("I've created support ticket %s and our team will call you back soon at %s.", t.ID, callback),
	}
}

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

// Appointment is one booked slot, persisted to the JSON store.
type Appointment struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Status   string `json:"status"`
	BookedAt string `json:"booked_at"`
}

// AppointmentStore books and looks up appointments against a JSON file.
// Tool execution is synchronous by contract: the agent stream blocks until
// the result is available.
type AppointmentStore struct {
	mu    sync.Mutex
	path  string
	now   func() time.Time
	items map[string]Appointment
}

func NewAppointmentStore(dataDir string) *AppointmentStore {
	s := &AppointmentStore{
		path:  filepath.Join(dataDir, "appointments.json"),
		now:   time.Now,
		items: make(map[string]Appointment),
	}
	s.load()
	return s
}

func (s *AppointmentStore) load() {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[tools] read appointments: %v", err)
		}
		return
	}
	if err := json.Unmarshal(raw, &s.items); err != nil {
		log.Printf("[tools] parse appointments: %v", err)
		s.items = make(map[string]Appointment)
	}
}

func (s *AppointmentStore) persist() {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		log.Printf("[tools] mkdir: %v", err)
		return
	}
	raw, err := json.MarshalIndent(s.items, "", "  ")
	if err != nil {
		log.Printf("[tools] marshal appointments: %v", err)
		return
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		log.Printf("[tools] write appointments: %v", err)
	}
}

// Result is the JSON-serializable outcome handed back to the agent stream.
type Result map[string]any

// Book validates and stores a new appointment. Validation failures come back
// as unsuccessful Results, not errors: the agent relays them in speech.
func (s *AppointmentStore) Book(date, timeOfDay, name, phone string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return Result{"success": false, "error": "Invalid date format. Please use YYYY-MM-DD."}
	}
	slot, err := time.Parse("15:04", timeOfDay)
	if err != nil {
		return Result{"success": false, "error": "Invalid time format. Please use HH:MM, 24-hour."}
	}
	today := s.now().Truncate(24 * time.Hour)
	if day.Before(today) {
		return Result{"success": false, "error": "Appointments cannot be booked in the past."}
	}
	if h := slot.Hour(); h < 9 || h >= 17 {
		return Result{"success": false, "error": "Appointments are only available between 9 AM and 5 PM."}
	}

	apt := Appointment{
		ID:       "APT-" + uuid.NewString()[:8],
		Date:     date,
		Time:     timeOfDay,
		Name:     name,
		Phone:    phone,
		Status:   "confirmed",
		BookedAt: s.now().UTC().Format(time.RFC3339),
	}
	s.items[apt.ID] = apt
	s.persist()
	log.Printf("[tools] appointment booked id=%s date=%s time=%s", apt.ID, date, timeOfDay)

	return Result{
		"success":        true,
		"appointment_id": apt.ID,
		"date":           date,
		"time":           timeOfDay,
		"name":           name,
		"message":        fmt.Sprintf("Appointment confirmed for %s on %s at %s. Confirmation number %s.", name, date, timeOfDay, apt.ID),
	}
}

// Check returns the most recently booked appointment for a phone number.
func (s *AppointmentStore) Check(phone string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *Appointment
	for _, apt := range s.items {
		if apt.Phone != phone {
			continue
		}
		a := apt
		if latest == nil || a.BookedAt > latest.BookedAt {
			latest = &a
		}
	}
	if latest == nil {
		return Result{"success": false, "message": "No appointments found for that phone number."}
	}
	return Result{
		"success": true,
		"appointment": map[string]any{
			"id":     latest.ID,
			"date":   latest.Date,
			"time":   latest.Time,
			"name":   latest.Name,
			"status": latest.Status,
		},
		"message": fmt.Sprintf("Found an appointment for %s on %s at %s.", latest.Name, latest.Date, latest.Time),
	}
}

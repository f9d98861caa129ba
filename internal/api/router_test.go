package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"byteai/callagent/internal/config"
	"byteai/callagent/internal/registry"
	"byteai/callagent/internal/session"
)

func testHandlers(cfg config.Config) *Handlers {
	return NewHandlers(cfg, nil, registry.New(), session.Config{})
}

func TestHealthz(t *testing.T) {
	router := NewRouter(testHandlers(config.Config{}))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestVoiceWebhookReturnsStreamInstruction(t *testing.T) {
	var cfg config.Config
	cfg.Server.PublicWSURL = "wss://voice.example.com/ws/media"
	router := NewRouter(testHandlers(cfg))

	req := httptest.NewRequest(http.MethodPost, "/webhook/voice", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/xml" {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `<Stream url="wss://voice.example.com/ws/media" />`) {
		t.Errorf("stream url missing from body: %s", body)
	}
	if !strings.Contains(body, "<Connect>") {
		t.Errorf("connect verb missing: %s", body)
	}
}

func TestVoiceWebhookDerivesURLFromHost(t *testing.T) {
	router := NewRouter(testHandlers(config.Config{}))
	req := httptest.NewRequest(http.MethodPost, "/webhook/voice", nil)
	req.Host = "agent.example.com"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if !strings.Contains(rec.Body.String(), "wss://agent.example.com/ws/media") {
		t.Errorf("derived url missing: %s", rec.Body.String())
	}
}

func TestVoiceWebhookRejectsGet(t *testing.T) {
	router := NewRouter(testHandlers(config.Config{}))
	req := httptest.NewRequest(http.MethodGet, "/webhook/voice", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestTestChatHiddenByDefault(t *testing.T) {
	router := NewRouter(testHandlers(config.Config{}))
	req := httptest.NewRequest(http.MethodPost, "/test/chat", strings.NewReader(`{"message":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when test endpoints disabled", rec.Code)
	}
}

func TestListCallsEmpty(t *testing.T) {
	router := NewRouter(testHandlers(config.Config{}))
	req := httptest.NewRequest(http.MethodGet, "/calls", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"calls":[]`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestMetricsEndpointMounted(t *testing.T) {
	router := NewRouter(testHandlers(config.Config{}))
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

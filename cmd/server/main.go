package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"byteai/callagent/internal/agent"
	"byteai/callagent/internal/api"
	"byteai/callagent/internal/config"
	"byteai/callagent/internal/kb"
	"byteai/callagent/internal/registry"
	"byteai/callagent/internal/session"
	"byteai/callagent/internal/stt"
	"byteai/callagent/internal/tools"
	"byteai/callagent/internal/tts"
	"byteai/callagent/internal/vad"
)

func main() {
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	cfg := config.Load()

	knowledge, err := kb.Load(cfg.Knowledge.Path)
	if err != nil {
		log.Printf("knowledge base unavailable, continuing without it: %v", err)
	} else {
		log.Printf("knowledge base loaded: %d documents", knowledge.Count())
	}

	toolset := &agent.Toolset{
		Appointments: tools.NewAppointmentStore(cfg.Tools.DataDir),
		Escalation:   tools.NewEscalation(cfg.Tools.DataDir, cfg.Agent.SupportPhone),
	}
	ag := agent.New(agent.Config{
		APIKey:    cfg.Anthropic.APIKey,
		BaseURL:   cfg.Anthropic.BaseURL,
		Model:     cfg.Anthropic.Model,
		MaxTokens: cfg.Anthropic.MaxTokens,
		Greeting:  cfg.Agent.Greeting,
	}, knowledge, toolset)

	callCfg := session.Config{
		STT: stt.Config{
			APIKey:        cfg.Deepgram.APIKey,
			BaseURL:       cfg.Deepgram.BaseURL,
			Model:         cfg.Deepgram.Model,
			Language:      cfg.Deepgram.Language,
			EndpointingMs: cfg.Deepgram.EndpointingMs,
		},
		TTS: tts.Config{
			APIKey:  cfg.Eleven.APIKey,
			BaseURL: cfg.Eleven.BaseURL,
			VoiceID: cfg.Eleven.VoiceID,
			ModelID: cfg.Eleven.ModelID,
		},
		VAD: vad.Config{
			Threshold: cfg.VAD.Threshold,
			MinFrames: cfg.VAD.MinFrames,
		},
		MinFlushChars: cfg.Pipeline.MinFlushChars,
	}

	reg := registry.New()
	h := api.NewHandlers(cfg, ag, reg, callCfg)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(api.NewRouter(h)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Printf("shutdown signal received; stopping server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	log.Printf("server starting on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Println("server error:", err)
		os.Exit(1)
	}
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

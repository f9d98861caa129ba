package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	// Clear relevant envs
	os.Unsetenv("PORT")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("VAD_RMS_THRESHOLD")
	os.Unsetenv("VAD_MIN_FRAMES")
	os.Unsetenv("PIPELINE_MIN_FLUSH_CHARS")

	c := Load()

	if c.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", c.Server.Port)
	}
	if c.Server.LogLevel != "info" {
		t.Fatalf("expected default log level info, got %q", c.Server.LogLevel)
	}
	if c.VAD.Threshold != 1000.0 {
		t.Fatalf("expected default VAD threshold 1000, got %f", c.VAD.Threshold)
	}
	if c.VAD.MinFrames != 3 {
		t.Fatalf("expected default VAD min frames 3, got %d", c.VAD.MinFrames)
	}
	if c.Pipeline.MinFlushChars != 48 {
		t.Fatalf("expected default min flush chars 48, got %d", c.Pipeline.MinFlushChars)
	}
	if c.Anthropic.Model != "claude-3-5-haiku-20241022" {
		t.Fatalf("unexpected default model %q", c.Anthropic.Model)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("VAD_RMS_THRESHOLD", "1500")
	t.Setenv("VAD_MIN_FRAMES", "5")
	t.Setenv("ELEVENLABS_VOICE_ID", "custom-voice")

	c := Load()

	if c.Server.Port != "9999" {
		t.Fatalf("expected port 9999, got %q", c.Server.Port)
	}
	if c.VAD.Threshold != 1500.0 {
		t.Fatalf("expected VAD threshold 1500, got %f", c.VAD.Threshold)
	}
	if c.VAD.MinFrames != 5 {
		t.Fatalf("expected VAD min frames 5, got %d", c.VAD.MinFrames)
	}
	if c.Eleven.VoiceID != "custom-voice" {
		t.Fatalf("expected voice override, got %q", c.Eleven.VoiceID)
	}
}

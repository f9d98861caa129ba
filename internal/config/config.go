package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port           string
		LogLevel       string
		PublicWSURL    string
		EnableTestChat bool
	}
	Deepgram struct {
		APIKey        string
		BaseURL       string
		Model         string
		Language      string
		EndpointingMs int
	}
	Eleven struct {
		APIKey  string
		BaseURL string
		VoiceID string
		ModelID string
	}
	Anthropic struct {
		APIKey    string
		BaseURL   string
		Model     string
		MaxTokens int
	}
	Agent struct {
		Greeting     string
		SupportPhone string
	}
	VAD struct {
		// RMS over decoded linear samples; environment dependent, so tunable.
		Threshold float64
		MinFrames int
	}
	Pipeline struct {
		MinFlushChars int
	}
	Knowledge struct {
		Path string
	}
	Tools struct {
		DataDir string
	}
}

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.enable_test_chat", false)

	v.SetDefault("deepgram.base_url", "wss://api.deepgram.com/v1/listen")
	v.SetDefault("deepgram.model", "nova-2")
	v.SetDefault("deepgram.language", "en-US")
	v.SetDefault("deepgram.endpointing_ms", 300)

	v.SetDefault("elevenlabs.base_url", "wss://api.elevenlabs.io")
	v.SetDefault("elevenlabs.voice_id", "21m00Tcm4TlvDq8ikWAM")
	v.SetDefault("elevenlabs.model_id", "eleven_turbo_v2_5")

	v.SetDefault("anthropic.base_url", "https://api.anthropic.com")
	v.SetDefault("anthropic.model", "claude-3-5-haiku-20241022")
	v.SetDefault("anthropic.max_tokens", 200)

	v.SetDefault("agent.greeting", "Hello! Thanks for calling ByteAI. I'm your AI assistant. How can I help you today?")
	v.SetDefault("agent.support_phone", "+1-555-SUPPORT")

	v.SetDefault("vad.threshold", 1000.0)
	v.SetDefault("vad.min_frames", 3)

	v.SetDefault("pipeline.min_flush_chars", 48)

	v.SetDefault("knowledge.path", "./knowledge/sample_kb.json")
	v.SetDefault("tools.data_dir", "./data")

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")
	v.BindEnv("server.public_ws_url", "WEBSOCKET_URL")
	v.BindEnv("server.enable_test_chat", "ENABLE_TEST_ENDPOINTS")

	v.BindEnv("deepgram.api_key", "DEEPGRAM_API_KEY")
	v.BindEnv("deepgram.base_url", "DEEPGRAM_BASE_URL")
	v.BindEnv("deepgram.model", "DEEPGRAM_MODEL")
	v.BindEnv("deepgram.language", "DEEPGRAM_LANGUAGE")
	v.BindEnv("deepgram.endpointing_ms", "DEEPGRAM_ENDPOINTING_MS")

	v.BindEnv("elevenlabs.api_key", "ELEVENLABS_API_KEY")
	v.BindEnv("elevenlabs.base_url", "ELEVENLABS_BASE_URL")
	v.BindEnv("elevenlabs.voice_id", "ELEVENLABS_VOICE_ID")
	v.BindEnv("elevenlabs.model_id", "ELEVENLABS_MODEL_ID")

	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.base_url", "ANTHROPIC_BASE_URL")
	v.BindEnv("anthropic.model", "ANTHROPIC_MODEL")
	v.BindEnv("anthropic.max_tokens", "ANTHROPIC_MAX_TOKENS")

	v.BindEnv("agent.greeting", "AGENT_GREETING")
	v.BindEnv("agent.support_phone", "SUPPORT_PHONE")

	v.BindEnv("vad.threshold", "VAD_RMS_THRESHOLD")
	v.BindEnv("vad.min_frames", "VAD_MIN_FRAMES")

	v.BindEnv("pipeline.min_flush_chars", "PIPELINE_MIN_FLUSH_CHARS")

	v.BindEnv("knowledge.path", "KNOWLEDGE_BASE_PATH")
	v.BindEnv("tools.data_dir", "TOOLS_DATA_DIR")

	var c Config
	c.Server.Port = v.GetString("server.port")
	c.Server.LogLevel = v.GetString("server.log_level")
	c.Server.PublicWSURL = v.GetString("server.public_ws_url")
	c.Server.EnableTestChat = v.GetBool("server.enable_test_chat")

	c.Deepgram.APIKey = v.GetString("deepgram.api_key")
	c.Deepgram.BaseURL = v.GetString("deepgram.base_url")
	c.Deepgram.Model = v.GetString("deepgram.model")
	c.Deepgram.Language = v.GetString("deepgram.language")
	c.Deepgram.EndpointingMs = v.GetInt("deepgram.endpointing_ms")

	c.Eleven.APIKey = v.GetString("elevenlabs.api_key")
	c.Eleven.BaseURL = v.GetString("elevenlabs.base_url")
	c.Eleven.VoiceID = v.GetString("elevenlabs.voice_id")
	c.Eleven.ModelID = v.GetString("elevenlabs.model_id")

	c.Anthropic.APIKey = v.GetString("anthropic.api_key")
	c.Anthropic.BaseURL = v.GetString("anthropic.base_url")
	c.Anthropic.Model = v.GetString("anthropic.model")
	c.Anthropic.MaxTokens = v.GetInt("anthropic.max_tokens")

	c.Agent.Greeting = v.GetString("agent.greeting")
	c.Agent.SupportPhone = v.GetString("agent.support_phone")

	c.VAD.Threshold = v.GetFloat64("vad.threshold")
	c.VAD.MinFrames = v.GetInt("vad.min_frames")

	c.Pipeline.MinFlushChars = v.GetInt("pipeline.min_flush_chars")

	c.Knowledge.Path = v.GetString("knowledge.path")
	c.Tools.DataDir = v.GetString("tools.data_dir")

	log.Printf("config loaded: port=%s vad_threshold=%.0f vad_min_frames=%d", c.Server.Port, c.VAD.Threshold, c.VAD.MinFrames)
	return c
}

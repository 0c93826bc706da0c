package config

import (
	"strings"

	"github.com/koscakluka/ema-agent/core/texttospeech/cartesia"
	"github.com/koscakluka/ema-agent/core/texttospeech/deepgram"
)

// Config holds the voice agent settings
type Config struct {
	LiveKit LiveKitConfig

	// LLM
	OpenRouterAPIKey  string
	LLMModel          string
	LLMFallbackModels []string

	// Speech-to-text
	DeepgramAPIKey string
	DeepgramModel  string

	// Text-to-speech
	TTSProvider      string
	CartesiaAPIKey   string
	CartesiaVoiceID  string
	DeepgramTTSVoice string

	AgentName  string
	LogLevel   string
	PromptsDir string

	// Telemetry
	OTLPEndpoint string
	MetricsAddr  string
}

// LiveKitConfig is carried for deployments that still point at a LiveKit
// server. The console runtime does not connect to it.
type LiveKitConfig struct {
	URL       string
	APIKey    string
	APISecret string
}

const (
	KeyLiveKitURL        = "LIVEKIT_URL"
	KeyLiveKitAPIKey     = "LIVEKIT_API_KEY"
	KeyLiveKitAPISecret  = "LIVEKIT_API_SECRET"
	KeyOpenRouterAPIKey  = "OPENROUTER_API_KEY"
	KeyLLMModel          = "LLM_MODEL"
	KeyLLMFallbackModels = "LLM_FALLBACK_MODELS"
	KeyDeepgramAPIKey    = "DEEPGRAM_API_KEY"
	KeyDeepgramModel     = "DEEPGRAM_MODEL"
	KeyTTSProvider       = "TTS_PROVIDER"
	KeyCartesiaAPIKey    = "CARTESIA_API_KEY"
	KeyCartesiaVoiceID   = "CARTESIA_VOICE_ID"
	KeyDeepgramTTSVoice  = "DEEPGRAM_TTS_VOICE"
	KeyAgentName         = "AGENT_NAME"
	KeyLogLevel          = "LOG_LEVEL"
	KeyPromptsDir        = "PROMPTS_DIR"
	KeyOTLPEndpoint      = "OTEL_EXPORTER_OTLP_ENDPOINT"
	KeyMetricsAddr       = "METRICS_ADDR"
)

// Text-to-speech providers
const (
	TTSProviderCartesia = "cartesia"
	TTSProviderDeepgram = "deepgram"
)

var defaults = map[string]string{
	KeyLiveKitURL:        "ws://localhost:7880",
	KeyLiveKitAPIKey:     "devkey",
	KeyLiveKitAPISecret:  "secret",
	KeyOpenRouterAPIKey:  "",
	KeyLLMModel:          "openai/gpt-4o",
	KeyLLMFallbackModels: "anthropic/claude-sonnet-4,openai/gpt-4o-mini",
	KeyDeepgramAPIKey:    "",
	KeyDeepgramModel:     "nova-3",
	KeyTTSProvider:       TTSProviderCartesia,
	KeyCartesiaAPIKey:    "",
	KeyCartesiaVoiceID:   cartesia.DefaultVoiceID,
	KeyDeepgramTTSVoice:  string(deepgram.DefaultVoice),
	KeyAgentName:         "FTAI Voice Assistant",
	KeyLogLevel:          "INFO",
	KeyPromptsDir:        "prompts",
	KeyOTLPEndpoint:      "",
	KeyMetricsAddr:       "",
}

// DefaultConfig returns the settings used when neither the env file nor the
// environment set anything.
func DefaultConfig() *Config {
	return &Config{
		LiveKit: LiveKitConfig{
			URL:       defaults[KeyLiveKitURL],
			APIKey:    defaults[KeyLiveKitAPIKey],
			APISecret: defaults[KeyLiveKitAPISecret],
		},
		LLMModel:          defaults[KeyLLMModel],
		LLMFallbackModels: splitList(defaults[KeyLLMFallbackModels]),
		DeepgramModel:     defaults[KeyDeepgramModel],
		TTSProvider:       defaults[KeyTTSProvider],
		CartesiaVoiceID:   defaults[KeyCartesiaVoiceID],
		DeepgramTTSVoice:  defaults[KeyDeepgramTTSVoice],
		AgentName:         defaults[KeyAgentName],
		LogLevel:          defaults[KeyLogLevel],
		PromptsDir:        defaults[KeyPromptsDir],
	}
}

// Setting is one configuration value as shown to the operator.
type Setting struct {
	Key    string
	Value  string
	Secret bool
}

// Display returns the value with secrets masked.
func (s Setting) Display() string {
	if !s.Secret || s.Value == "" {
		return s.Value
	}
	if len(s.Value) <= 8 {
		return "****"
	}
	return s.Value[:4] + "****"
}

// Settings lists every setting in a stable order.
func (c *Config) Settings() []Setting {
	return []Setting{
		{Key: KeyLiveKitURL, Value: c.LiveKit.URL},
		{Key: KeyLiveKitAPIKey, Value: c.LiveKit.APIKey},
		{Key: KeyLiveKitAPISecret, Value: c.LiveKit.APISecret, Secret: true},
		{Key: KeyOpenRouterAPIKey, Value: c.OpenRouterAPIKey, Secret: true},
		{Key: KeyLLMModel, Value: c.LLMModel},
		{Key: KeyLLMFallbackModels, Value: strings.Join(c.LLMFallbackModels, ",")},
		{Key: KeyDeepgramAPIKey, Value: c.DeepgramAPIKey, Secret: true},
		{Key: KeyDeepgramModel, Value: c.DeepgramModel},
		{Key: KeyTTSProvider, Value: c.TTSProvider},
		{Key: KeyCartesiaAPIKey, Value: c.CartesiaAPIKey, Secret: true},
		{Key: KeyCartesiaVoiceID, Value: c.CartesiaVoiceID},
		{Key: KeyDeepgramTTSVoice, Value: c.DeepgramTTSVoice},
		{Key: KeyAgentName, Value: c.AgentName},
		{Key: KeyLogLevel, Value: c.LogLevel},
		{Key: KeyPromptsDir, Value: c.PromptsDir},
		{Key: KeyOTLPEndpoint, Value: c.OTLPEndpoint},
		{Key: KeyMetricsAddr, Value: c.MetricsAddr},
	}
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

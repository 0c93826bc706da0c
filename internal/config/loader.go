package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// DefaultEnvFile is read when no env file is given
const DefaultEnvFile = ".env"

// Load reads the optional env file and overlays the process environment on
// top of it. A missing env file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = DefaultEnvFile
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if _, err := os.Stat(envFile); err == nil {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read env file: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat env file: %w", err)
	}

	return &Config{
		LiveKit: LiveKitConfig{
			URL:       v.GetString(KeyLiveKitURL),
			APIKey:    v.GetString(KeyLiveKitAPIKey),
			APISecret: v.GetString(KeyLiveKitAPISecret),
		},
		OpenRouterAPIKey:  v.GetString(KeyOpenRouterAPIKey),
		LLMModel:          v.GetString(KeyLLMModel),
		LLMFallbackModels: splitList(v.GetString(KeyLLMFallbackModels)),
		DeepgramAPIKey:    v.GetString(KeyDeepgramAPIKey),
		DeepgramModel:     v.GetString(KeyDeepgramModel),
		TTSProvider:       strings.ToLower(v.GetString(KeyTTSProvider)),
		CartesiaAPIKey:    v.GetString(KeyCartesiaAPIKey),
		CartesiaVoiceID:   v.GetString(KeyCartesiaVoiceID),
		DeepgramTTSVoice:  v.GetString(KeyDeepgramTTSVoice),
		AgentName:         v.GetString(KeyAgentName),
		LogLevel:          v.GetString(KeyLogLevel),
		PromptsDir:        v.GetString(KeyPromptsDir),
		OTLPEndpoint:      v.GetString(KeyOTLPEndpoint),
		MetricsAddr:       v.GetString(KeyMetricsAddr),
	}, nil
}

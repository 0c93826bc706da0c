package entrypoint

import (
	"fmt"

	orchestration "github.com/koscakluka/ema-agent/core"
	"github.com/koscakluka/ema-agent/core/audio/miniaudio"
	"github.com/koscakluka/ema-agent/core/latency"
	"github.com/koscakluka/ema-agent/core/llms/openrouter"
	"github.com/koscakluka/ema-agent/core/speechtotext/deepgram"
	"github.com/koscakluka/ema-agent/core/texttospeech/cartesia"
	deepgramtts "github.com/koscakluka/ema-agent/core/texttospeech/deepgram"
	"github.com/koscakluka/ema-agent/internal/config"
)

// DefaultDependencies wires Deepgram, OpenRouter, the configured speech
// provider and the local audio devices.
func DefaultDependencies(reporter latency.Reporter) Dependencies {
	return Dependencies{
		NewSpeechToText: func(cfg *config.Config) (orchestration.SpeechToText, error) {
			return deepgram.NewTranscriptionClient(cfg.DeepgramAPIKey, deepgram.WithModel(cfg.DeepgramModel))
		},
		NewLLM: func(cfg *config.Config) (orchestration.LLMWithStream, error) {
			return openrouter.NewClient(cfg.OpenRouterAPIKey, cfg.LLMModel,
				openrouter.WithFallbackModels(cfg.LLMFallbackModels...),
				openrouter.WithAppTitle(cfg.AgentName),
			)
		},
		NewTextToSpeech: newTextToSpeech,
		NewAudioDevice: func(*config.Config) (AudioDevice, error) {
			return miniaudio.NewClient()
		},
		Reporter: reporter,
	}
}

func newTextToSpeech(cfg *config.Config) (orchestration.TextToSpeech, error) {
	switch cfg.TTSProvider {
	case config.TTSProviderCartesia, "":
		return cartesia.NewTextToSpeechClient(cfg.CartesiaAPIKey, cartesia.WithVoice(cfg.CartesiaVoiceID))
	case config.TTSProviderDeepgram:
		return deepgramtts.NewTextToSpeechClient(cfg.DeepgramAPIKey, deepgramtts.WithVoice(cfg.DeepgramTTSVoice))
	default:
		return nil, fmt.Errorf("unknown text-to-speech provider %q", cfg.TTSProvider)
	}
}

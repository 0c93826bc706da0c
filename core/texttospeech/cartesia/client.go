// Package cartesia implements streaming text-to-speech over the Cartesia
// websocket API.
package cartesia

import (
	"errors"
)

const (
	defaultEndpoint = "wss://api.cartesia.ai/tts/websocket"
	apiVersion      = "2024-11-13"
	defaultModel    = "sonic-2"
	defaultLanguage = "en"

	// DefaultVoiceID is a neutral English voice from the Cartesia library.
	DefaultVoiceID = "a0e99841-438c-4a64-b679-ae501e7d6091"
)

var ErrMissingAPIKey = errors.New("cartesia api key not provided")

type TextToSpeechClient struct {
	apiKey   string
	endpoint string
	model    string
	voiceID  string
	language string
}

type ClientOption func(*TextToSpeechClient)

func WithVoice(voiceID string) ClientOption {
	return func(c *TextToSpeechClient) {
		if voiceID != "" {
			c.voiceID = voiceID
		}
	}
}

func WithModel(model string) ClientOption {
	return func(c *TextToSpeechClient) {
		if model != "" {
			c.model = model
		}
	}
}

func WithLanguage(language string) ClientOption {
	return func(c *TextToSpeechClient) {
		if language != "" {
			c.language = language
		}
	}
}

// WithEndpoint overrides the websocket URL.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *TextToSpeechClient) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

func NewTextToSpeechClient(apiKey string, opts ...ClientOption) (*TextToSpeechClient, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	client := &TextToSpeechClient{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		model:    defaultModel,
		voiceID:  DefaultVoiceID,
		language: defaultLanguage,
	}
	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Package deepgram implements streaming text-to-speech over the Deepgram
// Aura websocket API.
package deepgram

import (
	"errors"
	"fmt"
	"slices"
)

const defaultEndpoint = "wss://api.deepgram.com/v1/speak"

type deepgramVoice string

const (
	VoiceThalia    deepgramVoice = "aura-2-thalia-en"
	VoiceAndromeda deepgramVoice = "aura-2-andromeda-en"
	VoiceHelena    deepgramVoice = "aura-2-helena-en"
	VoiceApollo    deepgramVoice = "aura-2-apollo-en"
	VoiceArcas     deepgramVoice = "aura-2-arcas-en"
	VoiceAries     deepgramVoice = "aura-2-aries-en"

	DefaultVoice = VoiceThalia
)

func GetAvailableVoices() []deepgramVoice {
	return []deepgramVoice{VoiceThalia, VoiceAndromeda, VoiceHelena, VoiceApollo, VoiceArcas, VoiceAries}
}

var ErrMissingAPIKey = errors.New("deepgram api key not provided")

type TextToSpeechClient struct {
	apiKey   string
	endpoint string
	voice    deepgramVoice
}

type ClientOption func(*TextToSpeechClient)

// WithVoice selects an Aura voice. Empty keeps the default.
func WithVoice(voice string) ClientOption {
	return func(c *TextToSpeechClient) {
		if voice != "" {
			c.voice = deepgramVoice(voice)
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
		voice:    DefaultVoice,
	}
	for _, opt := range opts {
		opt(client)
	}

	if !slices.Contains(GetAvailableVoices(), client.voice) {
		return nil, fmt.Errorf("invalid voice %q", client.voice)
	}

	return client, nil
}

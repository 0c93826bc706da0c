// Package deepgram implements streaming speech-to-text over the Deepgram
// live transcription websocket.
package deepgram

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-agent/core/audio"
)

const defaultEndpoint = "wss://api.deepgram.com/v1/listen"

var ErrMissingAPIKey = errors.New("deepgram api key not provided")

type TranscriptionClient struct {
	apiKey   string
	endpoint string
	model    string
	language string

	conn      *websocket.Conn
	connMu    sync.Mutex
	lastMsgTs time.Time

	// stream clock, guarded by connMu: how much audio has been written and
	// when the last of it was written
	streamEncoding audio.EncodingInfo
	streamSent     time.Duration
	streamSentAt   time.Time

	// transcript state, only touched by the message reader
	accumulatedTranscript string
	unendedSegment        bool
	lastSegmentEnd        time.Duration
	segmentAudio          time.Duration

	now func() time.Time
}

type ClientOption func(*TranscriptionClient)

// WithModel selects the Deepgram model, nova-3 by default.
func WithModel(model string) ClientOption {
	return func(c *TranscriptionClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithLanguage selects the transcription language, en-US by default.
func WithLanguage(language string) ClientOption {
	return func(c *TranscriptionClient) {
		if language != "" {
			c.language = language
		}
	}
}

// WithEndpoint overrides the listen websocket URL.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *TranscriptionClient) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

func NewTranscriptionClient(apiKey string, opts ...ClientOption) (*TranscriptionClient, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	client := &TranscriptionClient{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		model:    "nova-3",
		language: "en-US",
		now:      time.Now,

		streamEncoding: audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

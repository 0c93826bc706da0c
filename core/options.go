package orchestration

import (
	"context"

	"github.com/koscakluka/ema-agent/core/audio"
	"github.com/koscakluka/ema-agent/core/events"
	"github.com/koscakluka/ema-agent/core/llms"
	"github.com/koscakluka/ema-agent/core/speechtotext"
	"github.com/koscakluka/ema-agent/core/texttospeech"
)

type SessionOption func(*Session)

type SpeechToText interface {
	Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error
	SendAudio(audio []byte) error
}

func WithSpeechToText(client SpeechToText) SessionOption {
	return func(s *Session) { s.speechToText = client }
}

type LLMWithStream interface {
	PromptWithStream(ctx context.Context, prompt *string, opts ...llms.StreamingPromptOption) llms.Stream
}

func WithLLM(client LLMWithStream) SessionOption {
	return func(s *Session) { s.llm = client }
}

type TextToSpeech interface {
	NewSpeechGenerator(ctx context.Context, opts ...texttospeech.TextToSpeechOption) (texttospeech.SpeechGenerator, error)
}

func WithTextToSpeech(client TextToSpeech) SessionOption {
	return func(s *Session) { s.textToSpeech = client }
}

type AudioInput interface {
	EncodingInfo() audio.EncodingInfo
	Stream(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
}

func WithAudioInput(client AudioInput) SessionOption {
	return func(s *Session) { s.audioInput = client }
}

type AudioOutput interface {
	EncodingInfo() audio.EncodingInfo
	SendAudio(audio []byte) error
	ClearBuffer()
	// AwaitMark blocks until all audio sent so far has been played.
	AwaitMark(ctx context.Context) error
}

func WithAudioOutput(client AudioOutput) SessionOption {
	return func(s *Session) { s.audioOutput = client }
}

// StartOptions holds the session subscriptions. There is one callback per
// event kind and all of them run on the session's dispatch goroutine, so
// they must not block.
type StartOptions struct {
	onTranscript   func(events.UserTranscript)
	onStateChanged func(events.AgentStateChanged)
	onMetrics      func(events.MetricsCollected)

	withoutGreeting bool
}

type StartOption func(*StartOptions)

// WithTranscriptCallback subscribes to interim and final user transcripts.
func WithTranscriptCallback(callback func(events.UserTranscript)) StartOption {
	return func(o *StartOptions) { o.onTranscript = callback }
}

// WithStateChangedCallback subscribes to agent phase transitions.
func WithStateChangedCallback(callback func(events.AgentStateChanged)) StartOption {
	return func(o *StartOptions) { o.onStateChanged = callback }
}

// WithMetricsCallback subscribes to pipeline stage timings.
func WithMetricsCallback(callback func(events.MetricsCollected)) StartOption {
	return func(o *StartOptions) { o.onMetrics = callback }
}

// WithoutGreeting skips the agent's opening reply.
func WithoutGreeting() StartOption {
	return func(o *StartOptions) { o.withoutGreeting = true }
}

package entrypoint

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	orchestration "github.com/koscakluka/ema-agent/core"
	"github.com/koscakluka/ema-agent/core/audio"
	"github.com/koscakluka/ema-agent/core/events"
	"github.com/koscakluka/ema-agent/core/latency"
	"github.com/koscakluka/ema-agent/core/llms"
	"github.com/koscakluka/ema-agent/core/speechtotext"
	"github.com/koscakluka/ema-agent/core/texttospeech"
	"github.com/koscakluka/ema-agent/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSTT struct {
	mu      sync.Mutex
	options *speechtotext.TranscriptionOptions
}

func (f *fakeSTT) Transcribe(_ context.Context, opts ...speechtotext.TranscriptionOption) error {
	options := speechtotext.TranscriptionOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	f.mu.Lock()
	f.options = &options
	f.mu.Unlock()
	return nil
}

func (f *fakeSTT) SendAudio([]byte) error { return nil }

func (f *fakeSTT) ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.options != nil
}

func (f *fakeSTT) say(transcript string) {
	f.mu.Lock()
	options := *f.options
	f.mu.Unlock()

	options.TranscriptionCallback(transcript)
	options.MetricsCallback(events.STTMetrics{Duration: 120 * time.Millisecond})
}

type fakeLLM struct {
	mu      sync.Mutex
	prompts []*string
}

func (f *fakeLLM) PromptWithStream(_ context.Context, prompt *string, _ ...llms.StreamingPromptOption) llms.Stream {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return fakeStream{}
}

func (f *fakeLLM) promptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeStream struct{}

func (fakeStream) Chunks(context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		time.Sleep(time.Millisecond)
		yield(fakeChunk("Hello."), nil)
	}
}

type fakeChunk string

func (fakeChunk) FinishReason() *string { return nil }
func (c fakeChunk) Content() string     { return string(c) }

type fakeTTS struct{}

func (fakeTTS) NewSpeechGenerator(_ context.Context, opts ...texttospeech.TextToSpeechOption) (texttospeech.SpeechGenerator, error) {
	options := texttospeech.TextToSpeechOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	return &fakeGenerator{options: options}, nil
}

type fakeGenerator struct {
	options    texttospeech.TextToSpeechOptions
	characters int
}

func (g *fakeGenerator) SendText(text string) error {
	g.characters += len(text)
	return nil
}

func (g *fakeGenerator) EndOfText() error {
	time.Sleep(time.Millisecond)
	g.options.SpeechAudioCallback([]byte{0, 0})
	g.options.SpeechEndedCallback(texttospeech.SpeechEndedReport{Characters: g.characters, AudioBytes: 2})
	return nil
}

func (g *fakeGenerator) Cancel() error { return nil }
func (g *fakeGenerator) Close() error  { return nil }

type fakeDevice struct {
	mu     sync.Mutex
	closed bool
}

func (*fakeDevice) EncodingInfo() audio.EncodingInfo            { return audio.GetDefaultEncodingInfo() }
func (*fakeDevice) Stream(context.Context, func([]byte)) error { return nil }
func (*fakeDevice) StopCapture() error                         { return nil }
func (*fakeDevice) SendAudio([]byte) error                     { return nil }
func (*fakeDevice) ClearBuffer()                               {}
func (*fakeDevice) AwaitMark(context.Context) error            { return nil }

func (d *fakeDevice) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}

type measurements struct {
	mu    sync.Mutex
	kinds map[latency.MeasurementKind]int
}

func (m *measurements) Report(measurement latency.Measurement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.kinds == nil {
		m.kinds = map[latency.MeasurementKind]int{}
	}
	m.kinds[measurement.Kind]++
}

func (m *measurements) has(kinds ...latency.MeasurementKind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, kind := range kinds {
		if m.kinds[kind] == 0 {
			return false
		}
	}
	return true
}

type fakes struct {
	stt      *fakeSTT
	llm      *fakeLLM
	device   *fakeDevice
	reporter *measurements
	built    []string
}

func newFakes() *fakes {
	return &fakes{stt: &fakeSTT{}, llm: &fakeLLM{}, device: &fakeDevice{}, reporter: &measurements{}}
}

func (f *fakes) dependencies() Dependencies {
	return Dependencies{
		NewSpeechToText: func(*config.Config) (orchestration.SpeechToText, error) {
			f.built = append(f.built, "stt")
			return f.stt, nil
		},
		NewLLM: func(*config.Config) (orchestration.LLMWithStream, error) {
			f.built = append(f.built, "llm")
			return f.llm, nil
		},
		NewTextToSpeech: func(*config.Config) (orchestration.TextToSpeech, error) {
			f.built = append(f.built, "tts")
			return fakeTTS{}, nil
		},
		NewAudioDevice: func(*config.Config) (AudioDevice, error) {
			f.built = append(f.built, "audio")
			return f.device, nil
		},
		Reporter: f.reporter,
	}
}

func completeConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.OpenRouterAPIKey, cfg.DeepgramAPIKey, cfg.CartesiaAPIKey = "or", "dg", "ca"
	cfg.PromptsDir = t.TempDir()
	return cfg
}

func TestRunFailsFastOnMissingSecrets(t *testing.T) {
	f := newFakes()
	cfg := config.DefaultConfig()
	cfg.DeepgramAPIKey = "dg"

	err := Run(context.Background(), cfg, f.dependencies(), WithLogger(zerolog.Nop()))

	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrMissingSecrets))
	assert.Equal(t, "Missing required environment variables: OPENROUTER_API_KEY, CARTESIA_API_KEY", err.Error())
	assert.Empty(t, f.built, "no client may be built before secrets are validated")
}

func TestRunRequiresDependencies(t *testing.T) {
	deps := newFakes().dependencies()
	deps.NewTextToSpeech = nil

	err := Run(context.Background(), completeConfig(t), deps, WithLogger(zerolog.Nop()))
	assert.ErrorIs(t, err, ErrMissingDependency)
}

func TestRunStopsOnClientError(t *testing.T) {
	f := newFakes()
	deps := f.dependencies()
	deps.NewLLM = func(*config.Config) (orchestration.LLMWithStream, error) {
		return nil, errors.New("bad model")
	}

	err := Run(context.Background(), completeConfig(t), deps, WithLogger(zerolog.Nop()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create llm client")
	assert.Equal(t, []string{"stt"}, f.built)
}

func TestRunGreetsAndReportsLatency(t *testing.T) {
	f := newFakes()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := completeConfig(t)
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, f.dependencies(), WithLogger(zerolog.Nop())) }()

	require.Eventually(t, func() bool {
		return f.reporter.has(latency.MeasurementLLMTTFT, latency.MeasurementTTSTTFB, latency.MeasurementThinkToSpeak)
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancellation")
	}

	assert.Equal(t, 1, f.llm.promptCount())
	assert.Nil(t, f.llm.prompts[0], "greeting is driven by instructions only")
	assert.True(t, f.device.closed)
	assert.False(t, f.reporter.has(latency.MeasurementTotalLatency), "greeting has no user utterance")
}

func TestRunTracksUserTurns(t *testing.T) {
	f := newFakes()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := completeConfig(t)
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, cfg, f.dependencies(), WithoutGreeting(), WithLogger(zerolog.Nop()))
	}()

	require.Eventually(t, f.stt.ready, 2*time.Second, 5*time.Millisecond)
	f.stt.say("what time is it")

	require.Eventually(t, func() bool { return f.reporter.has(latency.MeasurementKinds...) }, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.Equal(t, 1, f.llm.promptCount())
	require.NotNil(t, f.llm.prompts[0])
	assert.Equal(t, "what time is it", *f.llm.prompts[0])
}

package orchestration

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-agent/core/audio"
	"github.com/koscakluka/ema-agent/core/events"
	"github.com/koscakluka/ema-agent/core/llms"
	"github.com/koscakluka/ema-agent/core/speechtotext"
	"github.com/koscakluka/ema-agent/core/texttospeech"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type stubSpeechToText struct {
	mu      sync.Mutex
	options speechtotext.TranscriptionOptions
	audio   [][]byte
	closed  bool
}

func (s *stubSpeechToText) Transcribe(_ context.Context, opts ...speechtotext.TranscriptionOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, opt := range opts {
		opt(&s.options)
	}
	return nil
}

func (s *stubSpeechToText) SendAudio(audio []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = append(s.audio, audio)
	return nil
}

func (s *stubSpeechToText) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// finalTranscript simulates the provider finalising an utterance.
func (s *stubSpeechToText) finalTranscript(transcript string, metrics events.STTMetrics) {
	s.mu.Lock()
	options := s.options
	s.mu.Unlock()

	if options.InterimTranscriptionCallback != nil {
		options.InterimTranscriptionCallback(transcript)
	}
	options.TranscriptionCallback(transcript)
	if options.MetricsCallback != nil {
		options.MetricsCallback(metrics)
	}
}

type promptCall struct {
	prompt  *string
	options llms.StreamingPromptOptions
}

type stubLLM struct {
	mu       sync.Mutex
	calls    []promptCall
	response []string
	model    string
	err      error
}

func (l *stubLLM) PromptWithStream(_ context.Context, prompt *string, opts ...llms.StreamingPromptOption) llms.Stream {
	options := llms.StreamingPromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, promptCall{prompt: prompt, options: options})
	return stubStream{chunks: l.response, model: l.model, err: l.err}
}

func (l *stubLLM) promptCalls() []promptCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]promptCall(nil), l.calls...)
}

type stubStream struct {
	chunks []string
	model  string
	err    error
}

func (s stubStream) Chunks(context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		for _, chunk := range s.chunks {
			if !yield(stubContentChunk{content: chunk, model: s.model}, nil) {
				return
			}
		}
		if s.err != nil {
			yield(nil, s.err)
		}
	}
}

type stubContentChunk struct {
	content string
	model   string
}

func (stubContentChunk) FinishReason() *string { return nil }
func (c stubContentChunk) Content() string    { return c.content }
func (c stubContentChunk) Model() string      { return c.model }

type stubTextToSpeech struct {
	mu         sync.Mutex
	generators []*stubSpeechGenerator
	err        error
}

func (t *stubTextToSpeech) NewSpeechGenerator(_ context.Context, opts ...texttospeech.TextToSpeechOption) (texttospeech.SpeechGenerator, error) {
	if t.err != nil {
		return nil, t.err
	}

	options := texttospeech.TextToSpeechOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	generator := &stubSpeechGenerator{options: options}
	t.mu.Lock()
	t.generators = append(t.generators, generator)
	t.mu.Unlock()
	return generator, nil
}

// stubSpeechGenerator synthesises all text on EndOfText: one audio frame per
// text chunk, followed by the ended report.
type stubSpeechGenerator struct {
	mu        sync.Mutex
	options   texttospeech.TextToSpeechOptions
	text      []string
	cancelled bool
}

func (g *stubSpeechGenerator) SendText(text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancelled {
		return errors.New("cancelled")
	}
	g.text = append(g.text, text)
	return nil
}

func (g *stubSpeechGenerator) EndOfText() error {
	g.mu.Lock()
	text := append([]string(nil), g.text...)
	g.mu.Unlock()

	characters := 0
	for _, chunk := range text {
		characters += len(chunk)
		g.options.SpeechAudioCallback([]byte(chunk))
	}
	g.options.SpeechEndedCallback(texttospeech.SpeechEndedReport{Characters: characters})
	return nil
}

func (g *stubSpeechGenerator) Cancel() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = true
	return nil
}

func (g *stubSpeechGenerator) Close() error { return nil }

type stubAudioDevice struct {
	mu       sync.Mutex
	played   [][]byte
	onAudio  func([]byte)
	cleared  int
	marks    int
	stopped  bool
	encoding audio.EncodingInfo
}

func (d *stubAudioDevice) EncodingInfo() audio.EncodingInfo {
	if d.encoding.IsZero() {
		return audio.GetDefaultEncodingInfo()
	}
	return d.encoding
}

func (d *stubAudioDevice) Stream(_ context.Context, onAudio func([]byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onAudio = onAudio
	return nil
}

func (d *stubAudioDevice) StopCapture() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	return nil
}

func (d *stubAudioDevice) SendAudio(audio []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.played = append(d.played, audio)
	return nil
}

func (d *stubAudioDevice) playedFrames() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.played)
}

func (d *stubAudioDevice) ClearBuffer() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cleared++
}

func (d *stubAudioDevice) AwaitMark(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.marks++
	return nil
}

// eventRecorder collects delivered events; callbacks run on the dispatcher
// goroutine so access is synchronised.
type eventRecorder struct {
	mu          sync.Mutex
	transcripts []events.UserTranscript
	states      []events.AgentStateChanged
	metrics     []events.MetricsCollected
}

func (r *eventRecorder) startOptions() []StartOption {
	return []StartOption{
		WithTranscriptCallback(func(e events.UserTranscript) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.transcripts = append(r.transcripts, e)
		}),
		WithStateChangedCallback(func(e events.AgentStateChanged) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.states = append(r.states, e)
		}),
		WithMetricsCallback(func(e events.MetricsCollected) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.metrics = append(r.metrics, e)
		}),
	}
}

func (r *eventRecorder) stateNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.states))
	for _, state := range r.states {
		names = append(names, state.OldState.String()+"->"+state.NewState.String())
	}
	return names
}

func (r *eventRecorder) collectedMetrics() []events.Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	metrics := make([]events.Metrics, 0, len(r.metrics))
	for _, m := range r.metrics {
		metrics = append(metrics, m.Metrics)
	}
	return metrics
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before timeout")
}

// steppingClock advances by step on every call.
func steppingClock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	current := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(step)
		return current
	}
}

// lockedBuffer collects log output written from session goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// captureLogs points the global zerolog logger at a buffer for the test.
func captureLogs(t *testing.T) *lockedBuffer {
	t.Helper()
	buf := &lockedBuffer{}
	original := log.Logger
	log.Logger = zerolog.New(buf)
	t.Cleanup(func() { log.Logger = original })
	return buf
}

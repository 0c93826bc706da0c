package deepgram

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/koscakluka/ema-agent/core/events"
	"github.com/koscakluka/ema-agent/core/speechtotext"
)

func newTestClient(t *testing.T, now time.Time) *TranscriptionClient {
	t.Helper()
	client, err := NewTranscriptionClient("test-key")
	if err != nil {
		t.Fatalf("expected client, got %v", err)
	}
	client.now = func() time.Time { return now }
	return client
}

func TestNewTranscriptionClientRequiresAPIKey(t *testing.T) {
	if _, err := NewTranscriptionClient(""); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestListenURLCarriesStreamingOptions(t *testing.T) {
	client, err := NewTranscriptionClient("test-key", WithModel("nova-2"), WithEndpoint("ws://localhost:1234/v1/listen"))
	if err != nil {
		t.Fatalf("expected client, got %v", err)
	}

	raw, err := client.listenURL(connectionOptions{sampleRate: 16000, encoding: "linear16", detectSpeechStart: true})
	if err != nil {
		t.Fatalf("expected url, got %v", err)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("expected parsable url, got %v", err)
	}

	if parsed.Host != "localhost:1234" {
		t.Fatalf("expected endpoint override, got %q", parsed.Host)
	}
	expected := map[string]string{
		"model":            "nova-2",
		"language":         "en-US",
		"encoding":         "linear16",
		"sample_rate":      "16000",
		"channels":         "1",
		"interim_results":  "true",
		"utterance_end_ms": "1000",
		"vad_events":       "true",
	}
	query := parsed.Query()
	for key, value := range expected {
		if got := query.Get(key); got != value {
			t.Fatalf("expected %s=%s, got %q", key, value, got)
		}
	}
}

func TestSpeechFinalEmitsTranscriptAndMetrics(t *testing.T) {
	startedAt := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	client := newTestClient(t, startedAt.Add(2500*time.Millisecond))
	client.streamSent = 2200 * time.Millisecond
	client.streamSentAt = startedAt.Add(2200 * time.Millisecond)

	var transcripts []string
	var metrics []events.STTMetrics
	ended := 0
	options := speechtotext.TranscriptionOptions{}
	speechtotext.WithTranscriptionCallback(func(transcript string) { transcripts = append(transcripts, transcript) })(&options)
	speechtotext.WithMetricsCallback(func(m events.STTMetrics) { metrics = append(metrics, m) })(&options)
	speechtotext.WithSpeechEndedCallback(func() { ended++ })(&options)

	client.processMessage([]byte(`{"type":"Results","start":0.2,"duration":0.8,"is_final":true,
		"channel":{"alternatives":[{"transcript":"hello"}]}}`), options)
	client.processMessage([]byte(`{"type":"Results","start":1.0,"duration":1.2,"is_final":true,"speech_final":true,
		"channel":{"alternatives":[{"transcript":"there"}]}}`), options)

	if len(transcripts) != 1 || transcripts[0] != "hello there" {
		t.Fatalf("expected accumulated transcript, got %v", transcripts)
	}
	if ended != 1 {
		t.Fatalf("expected speech ended once, got %d", ended)
	}
	if len(metrics) != 1 {
		t.Fatalf("expected one metrics value, got %d", len(metrics))
	}
	if metrics[0].Duration != 300*time.Millisecond {
		t.Fatalf("expected 300ms finalisation delay, got %v", metrics[0].Duration)
	}
	if metrics[0].AudioDuration != 2*time.Second {
		t.Fatalf("expected 2s of audio, got %v", metrics[0].AudioDuration)
	}
}

func TestFinalisationDelayIgnoresKeepAliveGaps(t *testing.T) {
	startedAt := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	client := newTestClient(t, startedAt)
	encoding := client.streamEncoding

	// one second of audio, a ten second gap without audio, then one more second
	client.advanceStream(encoding.BytesPerSecond(), startedAt.Add(time.Second))
	client.advanceStream(encoding.BytesPerSecond(), startedAt.Add(12*time.Second))
	client.now = func() time.Time { return startedAt.Add(12*time.Second + 400*time.Millisecond) }

	var metrics []events.STTMetrics
	options := speechtotext.TranscriptionOptions{}
	speechtotext.WithTranscriptionCallback(func(string) {})(&options)
	speechtotext.WithMetricsCallback(func(m events.STTMetrics) { metrics = append(metrics, m) })(&options)

	client.processMessage([]byte(`{"type":"Results","start":1.2,"duration":0.8,"is_final":true,"speech_final":true,
		"channel":{"alternatives":[{"transcript":"still here"}]}}`), options)

	if len(metrics) != 1 {
		t.Fatalf("expected one metrics value, got %d", len(metrics))
	}
	if metrics[0].Duration != 400*time.Millisecond {
		t.Fatalf("expected 400ms finalisation delay, got %v", metrics[0].Duration)
	}
}

func TestUtteranceEndFlushesPendingTranscript(t *testing.T) {
	client := newTestClient(t, time.Now())

	var transcripts []string
	options := speechtotext.TranscriptionOptions{}
	speechtotext.WithTranscriptionCallback(func(transcript string) { transcripts = append(transcripts, transcript) })(&options)

	client.processMessage([]byte(`{"type":"UtteranceEnd"}`), options)
	if len(transcripts) != 0 {
		t.Fatalf("expected no transcript without speech, got %v", transcripts)
	}

	client.processMessage([]byte(`{"type":"Results","start":0,"duration":1,"is_final":true,
		"channel":{"alternatives":[{"transcript":"what time is it"}]}}`), options)
	client.processMessage([]byte(`{"type":"UtteranceEnd"}`), options)

	if len(transcripts) != 1 || transcripts[0] != "what time is it" {
		t.Fatalf("expected flushed transcript, got %v", transcripts)
	}
}

func TestInterimResultsIncludeAccumulatedText(t *testing.T) {
	client := newTestClient(t, time.Now())

	var interim []string
	options := speechtotext.TranscriptionOptions{}
	speechtotext.WithInterimTranscriptionCallback(func(transcript string) { interim = append(interim, transcript) })(&options)

	client.processMessage([]byte(`{"type":"Results","is_final":true,"duration":0.5,
		"channel":{"alternatives":[{"transcript":"book a"}]}}`), options)
	client.processMessage([]byte(`{"type":"Results","is_final":false,
		"channel":{"alternatives":[{"transcript":"table"}]}}`), options)

	if len(interim) != 1 || interim[0] != "book a table" {
		t.Fatalf("expected interim transcript with prefix, got %v", interim)
	}
}

func TestMalformedMessageIsIgnored(t *testing.T) {
	client := newTestClient(t, time.Now())
	called := false
	options := speechtotext.TranscriptionOptions{}
	speechtotext.WithSpeechStartedCallback(func() { called = true })(&options)

	client.processMessage([]byte(`not json`), options)
	if called {
		t.Fatalf("expected malformed message to be ignored")
	}

	client.processMessage([]byte(`{"type":"SpeechStarted"}`), options)
	if !called {
		t.Fatalf("expected speech started callback")
	}
}

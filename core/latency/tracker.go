// Package latency derives per-turn latency measurements from session events.
//
// A [Tracker] observes three event streams of one session (transcripts,
// agent state changes and collected metrics) and reports:
//
//   - stt_latency: user finished speaking until the agent started thinking
//   - think_to_speak: agent started thinking until it started speaking
//   - total_latency: user finished speaking until the agent started speaking
//   - stt_duration, llm_ttft, tts_ttfb: stage timings forwarded from metrics
//
// A Tracker belongs to exactly one session and must only be driven from that
// session's event delivery goroutine.
package latency

import (
	"time"

	"github.com/koscakluka/ema-agent/core/events"
)

// Tracker holds the latency markers of one session.
//
// A final transcript that arrives while a turn is still being measured
// replaces the pending user-finished marker, so overlapping turns report
// latencies relative to the latest utterance.
type Tracker struct {
	reporter Reporter

	userFinishedAt    time.Time
	hasUserFinished   bool
	thinkingStartedAt time.Time
	hasThinking       bool
}

// NewTracker creates a tracker reporting to reporter. A nil reporter
// discards all measurements.
func NewTracker(reporter Reporter) *Tracker {
	if reporter == nil {
		reporter = discardReporter{}
	}
	return &Tracker{reporter: reporter}
}

// OnTranscript marks the moment the user finished speaking. Interim
// transcripts are ignored.
func (t *Tracker) OnTranscript(event events.UserTranscript) {
	if !event.IsFinal {
		return
	}

	t.userFinishedAt = event.Timestamp()
	t.hasUserFinished = true
}

// OnStateChanged records thinking and speaking transitions and reports the
// intervals that can be derived from the markers present.
func (t *Tracker) OnStateChanged(event events.AgentStateChanged) {
	now := event.Timestamp()

	switch event.NewState {
	case events.AgentStateThinking:
		t.thinkingStartedAt = now
		t.hasThinking = true
		if t.hasUserFinished {
			t.report(MeasurementSTTLatency, now.Sub(t.userFinishedAt))
		}

	case events.AgentStateSpeaking:
		if t.hasThinking {
			t.report(MeasurementThinkToSpeak, now.Sub(t.thinkingStartedAt))
		}
		if t.hasUserFinished {
			t.report(MeasurementTotalLatency, now.Sub(t.userFinishedAt))
		}
		t.userFinishedAt = time.Time{}
		t.hasUserFinished = false

	case events.AgentStateIdle, events.AgentStateListening:

	default:
	}
}

// OnMetrics forwards the headline timing of a stage report. Zero timings are
// skipped.
func (t *Tracker) OnMetrics(event events.MetricsCollected) {
	switch m := event.Metrics.(type) {
	case events.STTMetrics:
		if m.Duration > 0 {
			t.report(MeasurementSTTDuration, m.Duration)
		}
	case events.LLMMetrics:
		if m.TTFT > 0 {
			t.report(MeasurementLLMTTFT, m.TTFT)
		}
	case events.TTSMetrics:
		if m.TTFB > 0 {
			t.report(MeasurementTTSTTFB, m.TTFB)
		}
	}
}

// UserFinishedAt returns the pending user-finished marker, if any.
func (t *Tracker) UserFinishedAt() (time.Time, bool) {
	return t.userFinishedAt, t.hasUserFinished
}

// ThinkingStartedAt returns the last thinking marker, if any.
func (t *Tracker) ThinkingStartedAt() (time.Time, bool) {
	return t.thinkingStartedAt, t.hasThinking
}

// Reset clears both markers.
func (t *Tracker) Reset() {
	t.userFinishedAt, t.hasUserFinished = time.Time{}, false
	t.thinkingStartedAt, t.hasThinking = time.Time{}, false
}

func (t *Tracker) report(kind MeasurementKind, value time.Duration) {
	defer func() {
		// reporters run inline with event delivery and must never take the
		// session down
		_ = recover()
	}()
	t.reporter.Report(Measurement{Kind: kind, Value: value})
}

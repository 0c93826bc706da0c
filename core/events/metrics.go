package events

import "time"

// KindMetricsCollected identifies pipeline stage timing reports.
const KindMetricsCollected Kind = "metrics.collected"

// Metrics is a timing report of one pipeline stage. It is implemented only by
// [STTMetrics], [LLMMetrics] and [TTSMetrics].
type Metrics interface {
	metrics()
}

// STTMetrics reports speech-to-text timing for one final transcript.
type STTMetrics struct {
	// Duration is the delay between the end of the transcribed audio and the
	// arrival of its final transcript.
	Duration time.Duration
	// AudioDuration is the length of the transcribed audio.
	AudioDuration time.Duration
}

// LLMMetrics reports language model timing for one response.
type LLMMetrics struct {
	// TTFT is the time from sending the request to the first generated token.
	TTFT time.Duration
	// Duration is the time until the response stream completed.
	Duration time.Duration
	Model    string
}

// TTSMetrics reports speech synthesis timing for one response.
type TTSMetrics struct {
	// TTFB is the time from sending the first text to receiving the first
	// audio byte.
	TTFB time.Duration
	// Duration is the time until synthesis completed.
	Duration   time.Duration
	Characters int
}

func (STTMetrics) metrics() {}
func (LLMMetrics) metrics() {}
func (TTSMetrics) metrics() {}

// MetricsCollected carries a stage timing report.
type MetricsCollected struct {
	Base
	Metrics Metrics
}

// NewMetricsCollected creates a metrics collected event.
func NewMetricsCollected(metrics Metrics, opts ...Option) MetricsCollected {
	return MetricsCollected{Base: NewBase(KindMetricsCollected, opts...), Metrics: metrics}
}

package latency

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type MeasurementKind string

const (
	MeasurementSTTDuration  MeasurementKind = "stt_duration"
	MeasurementLLMTTFT      MeasurementKind = "llm_ttft"
	MeasurementTTSTTFB      MeasurementKind = "tts_ttfb"
	MeasurementSTTLatency   MeasurementKind = "stt_latency"
	MeasurementThinkToSpeak MeasurementKind = "think_to_speak"
	MeasurementTotalLatency MeasurementKind = "total_latency"
)

// MeasurementKinds lists every kind a [Tracker] can report.
var MeasurementKinds = []MeasurementKind{
	MeasurementSTTDuration,
	MeasurementLLMTTFT,
	MeasurementTTSTTFB,
	MeasurementSTTLatency,
	MeasurementThinkToSpeak,
	MeasurementTotalLatency,
}

var measurementDescriptions = map[MeasurementKind]string{
	MeasurementSTTDuration:  "STT duration",
	MeasurementLLMTTFT:      "LLM time to first token",
	MeasurementTTSTTFB:      "TTS time to first byte",
	MeasurementSTTLatency:   "user finished -> thinking",
	MeasurementThinkToSpeak: "thinking -> speaking",
	MeasurementTotalLatency: "user finished -> speaking",
}

// Description is a short human readable label of the measurement.
func (k MeasurementKind) Description() string {
	if description, ok := measurementDescriptions[k]; ok {
		return description
	}
	return string(k)
}

type Measurement struct {
	Kind  MeasurementKind
	Value time.Duration
}

// Milliseconds returns the measured value in fractional milliseconds.
func (m Measurement) Milliseconds() float64 {
	return float64(m.Value) / float64(time.Millisecond)
}

// Reporter receives measurements inline with session event delivery and must
// return quickly.
type Reporter interface {
	Report(Measurement)
}

// ReporterFunc adapts a function to a [Reporter].
type ReporterFunc func(Measurement)

func (f ReporterFunc) Report(m Measurement) { f(m) }

type discardReporter struct{}

func (discardReporter) Report(Measurement) {}

// MultiReporter fans a measurement out to every reporter in order. A
// panicking reporter does not stop the ones after it.
type MultiReporter []Reporter

func (r MultiReporter) Report(m Measurement) {
	for _, reporter := range r {
		if reporter != nil {
			reportSafely(reporter, m)
		}
	}
}

func reportSafely(reporter Reporter, m Measurement) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("measurement", string(m.Kind)).Str("panic", fmt.Sprint(r)).Msg("latency reporter panicked")
		}
	}()
	reporter.Report(m)
}

// LogReporter writes one line per measurement.
type LogReporter struct {
	logger zerolog.Logger
}

func NewLogReporter(logger zerolog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

func (r *LogReporter) Report(m Measurement) {
	r.logger.Info().
		Str("measurement", string(m.Kind)).
		Float64("ms", m.Milliseconds()).
		Msgf("%s: %.0fms", m.Kind.Description(), m.Milliseconds())
}

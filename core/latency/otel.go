package latency

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelReporter records measurements into one histogram per measurement kind.
type OTelReporter struct {
	histograms map[MeasurementKind]metric.Float64Histogram
	attrs      metric.MeasurementOption
}

// NewOTelReporter creates the histograms on the package meter. The optional
// attributes are attached to every recorded value.
func NewOTelReporter(attrs ...attribute.KeyValue) (*OTelReporter, error) {
	return NewOTelReporterWithMeter(meter, attrs...)
}

func NewOTelReporterWithMeter(m metric.Meter, attrs ...attribute.KeyValue) (*OTelReporter, error) {
	reporter := &OTelReporter{
		histograms: make(map[MeasurementKind]metric.Float64Histogram, len(MeasurementKinds)),
		attrs:      metric.WithAttributes(attrs...),
	}

	for _, kind := range MeasurementKinds {
		histogram, err := m.Float64Histogram(
			"voice_agent."+string(kind),
			metric.WithUnit("ms"),
			metric.WithDescription(kind.Description()),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s histogram: %w", kind, err)
		}
		reporter.histograms[kind] = histogram
	}

	return reporter, nil
}

func (r *OTelReporter) Report(m Measurement) {
	histogram, ok := r.histograms[m.Kind]
	if !ok {
		return
	}
	histogram.Record(context.Background(), m.Milliseconds(), r.attrs)
}

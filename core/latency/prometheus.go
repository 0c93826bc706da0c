package latency

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusReporter exposes measurements as a histogram labelled by
// measurement kind.
type PrometheusReporter struct {
	histogram *prometheus.HistogramVec
}

// NewPrometheusReporter creates the histogram and registers it with
// registerer. A nil registerer skips registration.
func NewPrometheusReporter(registerer prometheus.Registerer) (*PrometheusReporter, error) {
	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voice_agent_latency_milliseconds",
			Help:    "Voice pipeline latencies per conversational turn in milliseconds",
			Buckets: []float64{25, 50, 100, 200, 350, 500, 750, 1000, 1500, 2500, 5000},
		},
		[]string{"measurement"},
	)

	if registerer != nil {
		if err := registerer.Register(histogram); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				histogram = already.ExistingCollector.(*prometheus.HistogramVec)
			} else {
				return nil, err
			}
		}
	}

	return &PrometheusReporter{histogram: histogram}, nil
}

func (r *PrometheusReporter) Report(m Measurement) {
	r.histogram.WithLabelValues(string(m.Kind)).Observe(m.Milliseconds())
}

// Collector returns the underlying histogram.
func (r *PrometheusReporter) Collector() prometheus.Collector {
	return r.histogram
}

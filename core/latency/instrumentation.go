package latency

import (
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/koscakluka/ema-agent/core/latency"

var meter = otel.Meter(scopeName)

package agreement

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/collision-benchmark/internal/agreement"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

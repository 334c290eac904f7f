package matchmaking

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/iamasit07/hextron/backend/internal/domain"
)

const instrumentationName = "github.com/iamasit07/hextron/backend/internal/service/matchmaking"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	created metric.Int64Counter
	retired metric.Int64Counter
	active  metric.Int64UpDownCounter
}

func newMetrics() (*metrics, error) {
	m := meter()
	var (
		out metrics
		err error
	)

	out.created, err = m.Int64Counter(
		"hextron.matches.created",
		metric.WithDescription("Matches registered"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating created counter: %w", err)
	}

	out.retired, err = m.Int64Counter(
		"hextron.matches.retired",
		metric.WithDescription("Matches removed from the registry"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating retired counter: %w", err)
	}

	out.active, err = m.Int64UpDownCounter(
		"hextron.matches.active",
		metric.WithDescription("Matches with a running engine"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating active counter: %w", err)
	}

	return &out, nil
}

func withType(t domain.GameType) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("type", string(t)))
}

func withReason(reason string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("reason", reason))
}

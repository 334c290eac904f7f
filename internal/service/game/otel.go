package game

import (
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/iamasit07/hextron/backend/internal/service/game"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

func roundsCounter() metric.Int64Counter {
	c, err := meter().Int64Counter(
		"hextron.rounds.resolved",
		metric.WithDescription("Rounds played to an equality or a round end"),
	)
	if err != nil {
		log.Warnf("[ENGINE] creating rounds counter: %v", err)
		c, _ = noop.Meter{}.Int64Counter("hextron.rounds.resolved")
	}
	return c
}

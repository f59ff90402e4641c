package core

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"promisevault/native/treasury"
)

// txInstruments export transaction outcomes over OTLP next to the
// Prometheus registry.
type txInstruments struct {
	count    metric.Int64Counter
	duration metric.Float64Histogram
}

func newTxInstruments(meter metric.Meter) txInstruments {
	count, err := meter.Int64Counter("promisevault.tx.count",
		metric.WithDescription("Executed transactions by outcome."))
	if err != nil {
		count = noop.Int64Counter{}
	}
	duration, err := meter.Float64Histogram("promisevault.tx.duration",
		metric.WithDescription("Transaction execution time."),
		metric.WithUnit("s"))
	if err != nil {
		duration = noop.Float64Histogram{}
	}
	return txInstruments{count: count, duration: duration}
}

// record labels a commit "committed" and a rejection with its error category.
func (i txInstruments) record(ctx context.Context, category treasury.Category, elapsed time.Duration) {
	outcome := string(category)
	if outcome == "" {
		outcome = "committed"
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	i.count.Add(ctx, 1, attrs)
	i.duration.Record(ctx, elapsed.Seconds(), attrs)
}

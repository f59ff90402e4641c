package core

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"promisevault/native/treasury"
	"promisevault/storage"
)

func TestTxInstrumentsRecordOutcomes(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	instruments := newTxInstruments(provider.Meter("test"))
	ctx := context.Background()
	instruments.record(ctx, treasury.CategoryNone, 2*time.Millisecond)
	instruments.record(ctx, treasury.CategoryNone, 3*time.Millisecond)
	instruments.record(ctx, treasury.CategoryTiming, time.Millisecond)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	counts := map[string]int64{}
	var histograms int
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if m.Name != "promisevault.tx.count" {
					continue
				}
				for _, dp := range data.DataPoints {
					outcome, _ := dp.Attributes.Value(attribute.Key("outcome"))
					counts[outcome.AsString()] += dp.Value
				}
			case metricdata.Histogram[float64]:
				if m.Name == "promisevault.tx.duration" {
					for _, dp := range data.DataPoints {
						histograms += int(dp.Count)
					}
				}
			}
		}
	}
	if counts["committed"] != 2 || counts["timing"] != 1 {
		t.Fatalf("unexpected outcome counts: %v", counts)
	}
	if histograms != 3 {
		t.Fatalf("expected 3 duration samples, got %d", histograms)
	}
}

func TestRuntimeUsesConfiguredMeter(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	rt, err := NewRuntime(storage.NewMemDB(), Options{ChainID: testChainID, Meter: provider.Meter("test")})
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	rt.otelTx.record(context.Background(), treasury.CategoryInvalid, time.Millisecond)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Fatalf("expected runtime instruments on the configured meter")
	}
}

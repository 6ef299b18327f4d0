package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestInitMetricsInstrumentsRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))

	metrics, err := InitMetrics()
	if err != nil {
		t.Fatalf("InitMetrics: %v", err)
	}

	ctx := context.Background()
	metrics.ChunksIndexed.Add(ctx, 5)
	metrics.IndexDuration.Record(ctx, 1.5)
	metrics.SearchCounter.Add(ctx, 1)
	metrics.SearchDuration.Record(ctx, 0.1)
	metrics.EmbeddingCalls.Add(ctx, 2)
	metrics.CircuitBreakerState.Add(ctx, 1)
	metrics.OrphansSwept.Add(ctx, 3)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	recorded := map[string]metricdata.Metrics{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			recorded[m.Name] = m
		}
	}

	for _, name := range []string{
		"index.chunks.total",
		"index.duration",
		"search.requests.total",
		"search.duration",
		"embeddings.calls.total",
		"circuit_breaker.state_changes",
		"sweep.orphans.total",
	} {
		if _, ok := recorded[name]; !ok {
			t.Errorf("instrument %s recorded nothing", name)
		}
	}

	if m, ok := recorded["embeddings.calls.total"]; ok {
		sum, ok := m.Data.(metricdata.Sum[int64])
		if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 2 {
			t.Errorf("embeddings.calls.total = %+v, want one data point of 2", m.Data)
		}
	}
}

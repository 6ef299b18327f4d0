package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	ChunksIndexed       metric.Int64Counter
	IndexDuration       metric.Float64Histogram
	SearchCounter       metric.Int64Counter
	SearchDuration      metric.Float64Histogram
	EmbeddingCalls      metric.Int64Counter
	CircuitBreakerState metric.Int64Counter
	OrphansSwept        metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("notebook-rag-platform")

	chunksIndexed, err := meter.Int64Counter(
		"index.chunks.total",
		metric.WithDescription("Total chunks written by the indexer"),
	)
	if err != nil {
		return nil, err
	}

	indexDuration, err := meter.Float64Histogram(
		"index.duration",
		metric.WithDescription("Source indexing duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	searchCounter, err := meter.Int64Counter(
		"search.requests.total",
		metric.WithDescription("Total retrieval queries"),
	)
	if err != nil {
		return nil, err
	}

	searchDuration, err := meter.Float64Histogram(
		"search.duration",
		metric.WithDescription("Retrieval query duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	embeddingCalls, err := meter.Int64Counter(
		"embeddings.calls.total",
		metric.WithDescription("Total embedding model calls"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Embedding backend circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	orphansSwept, err := meter.Int64Counter(
		"sweep.orphans.total",
		metric.WithDescription("Orphan chunk/embedding rows removed by the sweeper"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ChunksIndexed:       chunksIndexed,
		IndexDuration:       indexDuration,
		SearchCounter:       searchCounter,
		SearchDuration:      searchDuration,
		EmbeddingCalls:      embeddingCalls,
		CircuitBreakerState: circuitBreakerState,
		OrphansSwept:        orphansSwept,
	}, nil
}

package ai

import (
	"context"
	"fmt"
	"time"

	"notebook-rag-platform/internal/config"
	"notebook-rag-platform/internal/logger"
	"notebook-rag-platform/internal/telemetry"
	"notebook-rag-platform/services"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// Embedder wraps the Gemini embedding model behind a circuit breaker
// and an RPM limiter. All vectors it produces share the model's fixed
// dimensionality; mixing models in one store is a programming error.
type Embedder struct {
	client      *genai.Client
	model       string
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	metrics     *telemetry.Metrics
}

var _ services.Embedder = (*Embedder)(nil)

func NewEmbedder(cfg *config.Config, metrics *telemetry.Metrics) (*Embedder, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	limits := rateLimitsForTier(cfg.GeminiTier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiEmbeddings",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			if metrics != nil {
				metrics.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(
					attribute.String("from", from.String()),
					attribute.String("to", to.String()),
				))
			}
		},
	})

	// RPM limit with some buffer
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), maxInt(limits.RPM/10, 1))

	return &Embedder{
		client:      client,
		model:       cfg.EmbeddingModel,
		breaker:     breaker,
		rateLimiter: rateLimiter,
		metrics:     metrics,
	}, nil
}

type RateLimits struct {
	RPM int // Requests per minute
	RPD int // Requests per day
}

func rateLimitsForTier(tier string) RateLimits {
	switch tier {
	case "tier1":
		return RateLimits{RPM: 1000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, RPD: 250}
	}
}

// Embed returns the embedding vector for one text. Backend failures
// surface as ModelUnavailable; a zero vector is never substituted
// since it would corrupt ranking.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text}, 1)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in input order, at most batchSize per
// backend call to bound resource use.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string, batchSize int) ([][]float32, error) {
	tracer := otel.Tracer("embedder")
	ctx, span := tracer.Start(ctx, "embedder.embed_batch")
	defer span.End()
	span.SetAttributes(
		attribute.Int("embed.texts", len(texts)),
		attribute.String("embed.model", e.model),
	)

	if batchSize <= 0 {
		batchSize = 1
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		if err := e.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}

		batch := texts[start:end]
		if e.metrics != nil {
			e.metrics.EmbeddingCalls.Add(ctx, 1)
		}
		result, err := e.breaker.Execute(func() (interface{}, error) {
			model := e.client.EmbeddingModel(e.model)
			b := model.NewBatch()
			for _, text := range batch {
				b.AddContent(genai.Text(text))
			}
			resp, err := model.BatchEmbedContents(ctx, b)
			if err != nil {
				return nil, err
			}
			if len(resp.Embeddings) != len(batch) {
				return nil, fmt.Errorf("expected %d embeddings, got %d", len(batch), len(resp.Embeddings))
			}
			return resp, nil
		})
		if err != nil {
			if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
				span.SetAttributes(attribute.Bool("embed.circuit_breaker_open", true))
			}
			span.SetAttributes(attribute.Bool("embed.error", true))
			return nil, fmt.Errorf("%w: %v", services.ErrModelUnavailable, err)
		}

		resp := result.(*genai.BatchEmbedContentsResponse)
		for _, emb := range resp.Embeddings {
			if emb == nil || len(emb.Values) == 0 {
				return nil, fmt.Errorf("%w: empty embedding returned", services.ErrModelUnavailable)
			}
			out = append(out, emb.Values)
		}
	}

	return out, nil
}

func (e *Embedder) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

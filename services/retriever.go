package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"notebook-rag-platform/internal/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// SearchResult is one ranked chunk returned to the caller.
type SearchResult struct {
	ChunkID    string            `json:"chunk_id"`
	SourceID   string            `json:"source_id"`
	Content    string            `json:"content"`
	Similarity float64           `json:"similarity"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// RetrieverService answers natural-language queries with the most
// semantically relevant chunks for one notebook and owner. Stateless
// per call; all persistent state lives in the store.
type RetrieverService struct {
	store       VectorStore
	embedder    Embedder
	defaultTopK int
	threshold   float64
	metrics     *telemetry.Metrics
}

func NewRetrieverService(store VectorStore, embedder Embedder, defaultTopK int, threshold float64, metrics *telemetry.Metrics) *RetrieverService {
	return &RetrieverService{
		store:       store,
		embedder:    embedder,
		defaultTopK: defaultTopK,
		threshold:   threshold,
		metrics:     metrics,
	}
}

// Search embeds the query, ranks the notebook's candidate chunks by
// cosine similarity, cuts to topK (default when topK <= 0) and then
// drops results under the similarity threshold.
//
// The threshold is applied after the top-K cut: if every top-K result
// is below threshold, lower-ranked results above it are never
// considered. Kept as-is; callers depend on the current semantics.
func (s *RetrieverService) Search(ctx context.Context, query, notebookID, ownerID string, topK int) ([]SearchResult, error) {
	tracer := otel.Tracer("retriever")
	ctx, span := tracer.Start(ctx, "retriever.search")
	defer span.End()
	start := time.Now()

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", ErrValidation)
	}
	if topK <= 0 {
		topK = s.defaultTopK
	}

	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// Both notebook and owner must match; owner scoping is the security
	// boundary, never the notebook id alone.
	candidates, err := s.store.QueryCandidates(ctx, notebookID, ownerID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("search.candidates", len(candidates)))

	results := make([]SearchResult, 0, len(candidates))
	for _, cand := range candidates {
		results = append(results, SearchResult{
			ChunkID:    cand.Chunk.ChunkID,
			SourceID:   cand.Chunk.SourceID,
			Content:    cand.Chunk.Text,
			Similarity: CosineSimilarity(queryVector, cand.Vector),
			Metadata:   cand.Chunk.Metadata,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > topK {
		results = results[:topK]
	}

	filtered := results[:0]
	for _, r := range results {
		if r.Similarity >= s.threshold {
			filtered = append(filtered, r)
		}
	}
	results = filtered

	if s.metrics != nil {
		s.metrics.SearchCounter.Add(ctx, 1)
		s.metrics.SearchDuration.Record(ctx, time.Since(start).Seconds())
	}
	span.SetAttributes(attribute.Int("search.results", len(results)))

	return results, nil
}

// FormatContext renders results as labeled blocks for prompt assembly,
// in input order. Empty input yields an empty string.
func FormatContext(results []SearchResult) string {
	if len(results) == 0 {
		return ""
	}

	blocks := make([]string, len(results))
	for i, r := range results {
		label := r.Metadata[MetadataFilename]
		if label == "" {
			label = fmt.Sprintf("Source %d", i+1)
		}
		blocks[i] = fmt.Sprintf("[%s | relevance %.2f]\n%s", label, r.Similarity, r.Content)
	}

	return strings.Join(blocks, "\n\n")
}

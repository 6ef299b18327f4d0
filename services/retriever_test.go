package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"notebook-rag-platform/models"
)

// unitVec builds a unit vector whose cosine similarity with {1,0,0} is
// exactly sim.
func unitVec(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim)), 0}
}

func addCandidate(store *memVectorStore, chunkID, sourceID, notebookID, ownerID, text string, sim float64) {
	store.chunks = append(store.chunks, models.SourceChunk{
		ChunkID:    chunkID,
		SourceID:   sourceID,
		NotebookID: notebookID,
		OwnerID:    ownerID,
		Text:       text,
		Metadata:   map[string]string{MetadataFilename: sourceID + ".txt"},
	})
	store.embeddings = append(store.embeddings, models.ChunkEmbedding{
		ChunkID:    chunkID,
		SourceID:   sourceID,
		NotebookID: notebookID,
		OwnerID:    ownerID,
		Vector:     unitVec(sim),
	})
}

func TestSearchEmptyQueryFailsBeforeEmbedding(t *testing.T) {
	store := newMemVectorStore()
	embedder := newStubEmbedder()
	retriever := NewRetrieverService(store, embedder, 5, 0.7, nil)

	for _, query := range []string{"", "   \t\n"} {
		_, err := retriever.Search(context.Background(), query, "nb1", "ownerA", 0)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("Search(%q) error = %v, want ErrValidation", query, err)
		}
	}
	if embedder.callCount() != 0 {
		t.Errorf("embedder called %d times for empty queries, want 0", embedder.callCount())
	}
}

func TestSearchRanksAndThresholds(t *testing.T) {
	store := newMemVectorStore()
	addCandidate(store, "c1", "s1", "nb1", "ownerA", "first", 0.92)
	addCandidate(store, "c2", "s1", "nb1", "ownerA", "second", 0.81)
	addCandidate(store, "c3", "s2", "nb1", "ownerA", "third", 0.65)

	retriever := NewRetrieverService(store, newStubEmbedder(), 5, 0.7, nil)

	results, err := retriever.Search(context.Background(), "question", "nb1", "ownerA", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (third is below the 0.7 threshold)", len(results))
	}
	if results[0].ChunkID != "c1" || results[1].ChunkID != "c2" {
		t.Errorf("results out of order: %s, %s", results[0].ChunkID, results[1].ChunkID)
	}
	if results[0].Similarity < results[1].Similarity {
		t.Error("results not sorted by descending similarity")
	}
	if math.Abs(results[0].Similarity-0.92) > 1e-6 {
		t.Errorf("similarity = %f, want ~0.92", results[0].Similarity)
	}
}

func TestSearchTopKCut(t *testing.T) {
	store := newMemVectorStore()
	sims := []float64{0.95, 0.93, 0.91, 0.89, 0.87, 0.85, 0.83}
	for i, sim := range sims {
		addCandidate(store, string(rune('a'+i)), "s1", "nb1", "ownerA", "text", sim)
	}

	retriever := NewRetrieverService(store, newStubEmbedder(), 5, 0.7, nil)

	// Default topK when the caller passes <= 0.
	results, err := retriever.Search(context.Background(), "q", "nb1", "ownerA", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 5 {
		t.Errorf("got %d results with default topK, want 5", len(results))
	}

	results, err = retriever.Search(context.Background(), "q", "nb1", "ownerA", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results with topK=2, want 2", len(results))
	}
}

func TestSearchAllTopKBelowThreshold(t *testing.T) {
	store := newMemVectorStore()
	addCandidate(store, "c1", "s1", "nb1", "ownerA", "a", 0.69)
	addCandidate(store, "c2", "s1", "nb1", "ownerA", "b", 0.50)

	retriever := NewRetrieverService(store, newStubEmbedder(), 5, 0.7, nil)

	results, err := retriever.Search(context.Background(), "q", "nb1", "ownerA", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0 when everything is under threshold", len(results))
	}
}

func TestSearchOwnerIsolation(t *testing.T) {
	// Two owners deliberately share the same notebook id value.
	store := newMemVectorStore()
	addCandidate(store, "cA", "sA", "shared-nb", "ownerA", "owner A text", 0.95)
	addCandidate(store, "cB", "sB", "shared-nb", "ownerB", "owner B text", 0.99)

	retriever := NewRetrieverService(store, newStubEmbedder(), 5, 0.7, nil)

	results, err := retriever.Search(context.Background(), "q", "shared-nb", "ownerA", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ChunkID != "cA" {
		t.Fatalf("owner isolation violated: %+v", results)
	}
	if store.lastQueryOwner != "ownerA" {
		t.Errorf("candidate fetch used owner %q, want ownerA", store.lastQueryOwner)
	}
}

func TestSearchModelUnavailablePropagates(t *testing.T) {
	store := newMemVectorStore()
	embedder := newStubEmbedder()
	embedder.fail = true

	retriever := NewRetrieverService(store, embedder, 5, 0.7, nil)

	_, err := retriever.Search(context.Background(), "q", "nb1", "ownerA", 5)
	if !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("error = %v, want ErrModelUnavailable", err)
	}
}

func TestFormatContext(t *testing.T) {
	if got := FormatContext(nil); got != "" {
		t.Errorf("FormatContext(nil) = %q, want empty", got)
	}

	results := []SearchResult{
		{
			ChunkID:    "c1",
			Content:    "First chunk body.",
			Similarity: 0.923,
			Metadata:   map[string]string{MetadataFilename: "guide.pdf"},
		},
		{
			ChunkID:    "c2",
			Content:    "Second chunk body.",
			Similarity: 0.81,
		},
	}

	out := FormatContext(results)
	blocks := strings.Split(out, "\n\n")
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if !strings.HasPrefix(blocks[0], "[guide.pdf | relevance 0.92]") {
		t.Errorf("first block label wrong: %q", blocks[0])
	}
	if !strings.Contains(blocks[0], "First chunk body.") {
		t.Errorf("first block missing content: %q", blocks[0])
	}
	if !strings.HasPrefix(blocks[1], "[Source 2 | relevance 0.81]") {
		t.Errorf("fallback label wrong: %q", blocks[1])
	}
}

package services

import (
	"context"

	"notebook-rag-platform/models"
)

// Candidate pairs a chunk with its embedding vector for in-memory
// ranking by the retriever.
type Candidate struct {
	Chunk  models.SourceChunk
	Vector []float32
}

// VectorStore is the persistence boundary for chunks and embeddings.
// Relational, document or dedicated vector backends all satisfy it.
// Implementations must scope every operation by owner.
type VectorStore interface {
	InsertChunks(ctx context.Context, chunks []models.SourceChunk) error
	InsertEmbeddings(ctx context.Context, embeddings []models.ChunkEmbedding) error
	// DeleteChunksBySource removes all chunks for the source/owner pair
	// and cascades to their embeddings. Idempotent.
	DeleteChunksBySource(ctx context.Context, sourceID, ownerID string) error
	// QueryCandidates returns all chunk/embedding pairs for the notebook
	// and owner. Ranking happens in the retriever; a large deployment
	// would push it into an index-native nearest-neighbor operator.
	QueryCandidates(ctx context.Context, notebookID, ownerID string) ([]Candidate, error)
}

// SourceStore reads sources; the indexer never writes them.
type SourceStore interface {
	// GetSource returns ErrNotFound when the source does not exist or is
	// not owned by ownerID.
	GetSource(ctx context.Context, sourceID, ownerID string) (*models.Source, error)
}

// Embedder maps text to fixed-dimension vectors. All vectors produced
// by one deployment share a single dimensionality.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch preserves input order and processes at most batchSize
	// texts per backend call.
	EmbedBatch(ctx context.Context, texts []string, batchSize int) ([][]float32, error)
}

// SourceLocker serializes index/reindex/deindex per source. Unlock is
// returned by Lock so a crashed holder cannot wedge a source (the
// redis implementation backs this with a TTL).
type SourceLocker interface {
	Lock(ctx context.Context, sourceID string) (unlock func(), err error)
}

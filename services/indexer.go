package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"notebook-rag-platform/internal/logger"
	"notebook-rag-platform/internal/telemetry"
	"notebook-rag-platform/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Metadata keys attached to every chunk at index time.
const (
	MetadataFilename = "filename"
	MetadataSourceID = "source_id"
)

// IndexerService builds and tears down the retrievable representation
// of sources. It owns the consistency contract between a source's
// current content and its indexed chunks: chunk sets are replaced
// wholesale, never merged.
type IndexerService struct {
	sources   SourceStore
	store     VectorStore
	embedder  Embedder
	chunker   *ChunkingService
	locker    SourceLocker
	batchSize int
	metrics   *telemetry.Metrics
}

func NewIndexerService(
	sources SourceStore,
	store VectorStore,
	embedder Embedder,
	chunker *ChunkingService,
	locker SourceLocker,
	batchSize int,
	metrics *telemetry.Metrics,
) *IndexerService {
	return &IndexerService{
		sources:   sources,
		store:     store,
		embedder:  embedder,
		chunker:   chunker,
		locker:    locker,
		batchSize: batchSize,
		metrics:   metrics,
	}
}

// Index chunks and embeds the source's current content and persists
// the result. Returns the number of chunks created. A source with
// empty content indexes successfully to zero chunks.
func (s *IndexerService) Index(ctx context.Context, sourceID, ownerID string) (int, error) {
	unlock, err := s.locker.Lock(ctx, sourceID)
	if err != nil {
		return 0, err
	}
	defer unlock()

	return s.indexLocked(ctx, sourceID, ownerID)
}

// Deindex deletes all chunks and embeddings for the source/owner pair.
// Idempotent: deindexing an already-deindexed source succeeds.
func (s *IndexerService) Deindex(ctx context.Context, sourceID, ownerID string) error {
	unlock, err := s.locker.Lock(ctx, sourceID)
	if err != nil {
		return err
	}
	defer unlock()

	return s.store.DeleteChunksBySource(ctx, sourceID, ownerID)
}

// Reindex is deindex followed by index under one per-source lock,
// invoked whenever a source's content is edited. Delete-then-insert
// rather than an atomic swap: a crash between the two steps leaves the
// source temporarily unindexed, never indexed with stale content.
func (s *IndexerService) Reindex(ctx context.Context, sourceID, ownerID string) (int, error) {
	unlock, err := s.locker.Lock(ctx, sourceID)
	if err != nil {
		return 0, err
	}
	defer unlock()

	if err := s.store.DeleteChunksBySource(ctx, sourceID, ownerID); err != nil {
		return 0, err
	}
	return s.indexLocked(ctx, sourceID, ownerID)
}

func (s *IndexerService) indexLocked(ctx context.Context, sourceID, ownerID string) (int, error) {
	tracer := otel.Tracer("indexer")
	ctx, span := tracer.Start(ctx, "indexer.index")
	defer span.End()
	span.SetAttributes(attribute.String("source.id", sourceID))
	start := time.Now()

	source, err := s.sources.GetSource(ctx, sourceID, ownerID)
	if err != nil {
		return 0, err
	}

	metadata := map[string]string{MetadataSourceID: source.ID}
	if source.Filename != "" {
		metadata[MetadataFilename] = source.Filename
	}

	chunks := s.chunker.ChunkText(source.Content, metadata)
	span.SetAttributes(attribute.Int("index.chunks", len(chunks)))
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("embed source %s: %w", sourceID, err)
	}

	now := time.Now()
	chunkRows := make([]models.SourceChunk, len(chunks))
	embeddingRows := make([]models.ChunkEmbedding, len(chunks))
	for i, c := range chunks {
		chunkID := uuid.NewString()
		chunkRows[i] = models.SourceChunk{
			ChunkID:    chunkID,
			SourceID:   source.ID,
			NotebookID: source.NotebookID,
			OwnerID:    source.OwnerID,
			Order:      c.Index,
			Text:       c.Content,
			Metadata:   c.Metadata,
			CreatedAt:  now,
		}
		embeddingRows[i] = models.ChunkEmbedding{
			ChunkID:    chunkID,
			SourceID:   source.ID,
			NotebookID: source.NotebookID,
			OwnerID:    source.OwnerID,
			Vector:     vectors[i],
			CreatedAt:  now,
		}
	}

	if err := s.store.InsertChunks(ctx, chunkRows); err != nil {
		return 0, s.cleanupPartial(ctx, sourceID, ownerID, fmt.Errorf("insert chunks: %w", err))
	}
	if err := s.store.InsertEmbeddings(ctx, embeddingRows); err != nil {
		return 0, s.cleanupPartial(ctx, sourceID, ownerID, fmt.Errorf("insert embeddings: %w", err))
	}

	if s.metrics != nil {
		s.metrics.ChunksIndexed.Add(ctx, int64(len(chunks)))
		s.metrics.IndexDuration.Record(ctx, time.Since(start).Seconds())
	}

	return len(chunks), nil
}

// cleanupPartial deletes whatever a failed index run managed to insert
// so a source is never left with a mixed chunk set. A cleanup failure
// is logged and surfaced alongside the original error, not hidden.
func (s *IndexerService) cleanupPartial(ctx context.Context, sourceID, ownerID string, cause error) error {
	if err := s.store.DeleteChunksBySource(ctx, sourceID, ownerID); err != nil {
		logger.Error("cleanup after failed index also failed", "source_id", sourceID, "error", err)
		return errors.Join(cause, fmt.Errorf("cleanup failed: %w", err))
	}
	return cause
}

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"notebook-rag-platform/models"
	"notebook-rag-platform/services"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	notebooksCollection  = "notebooks"
	sourcesCollection    = "sources"
	chunksCollection     = "source_chunks"
	embeddingsCollection = "chunk_embeddings"
)

// MongoStore backs the vector store and the notebook/source tables with
// MongoDB. Every read and write is owner-scoped.
type MongoStore struct {
	db *mongo.Database
}

var (
	_ services.VectorStore = (*MongoStore)(nil)
	_ services.SourceStore = (*MongoStore)(nil)
)

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	return &MongoStore{db: client.Database(dbName)}
}

// --- services.VectorStore ---

func (s *MongoStore) InsertChunks(ctx context.Context, chunks []models.SourceChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]interface{}, len(chunks))
	for i, c := range chunks {
		docs[i] = c
	}
	if _, err := s.db.Collection(chunksCollection).InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("%w: insert chunks: %v", services.ErrStorage, err)
	}
	return nil
}

func (s *MongoStore) InsertEmbeddings(ctx context.Context, embeddings []models.ChunkEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	docs := make([]interface{}, len(embeddings))
	for i, e := range embeddings {
		docs[i] = e
	}
	if _, err := s.db.Collection(embeddingsCollection).InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("%w: insert embeddings: %v", services.ErrStorage, err)
	}
	return nil
}

// DeleteChunksBySource removes the source's chunks and their embeddings.
// Embeddings go first so an interruption never leaves an embedding
// whose chunk is already gone on the query path.
func (s *MongoStore) DeleteChunksBySource(ctx context.Context, sourceID, ownerID string) error {
	filter := bson.M{"source_id": sourceID, "owner_id": ownerID}

	if _, err := s.db.Collection(embeddingsCollection).DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("%w: delete embeddings: %v", services.ErrStorage, err)
	}
	if _, err := s.db.Collection(chunksCollection).DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("%w: delete chunks: %v", services.ErrStorage, err)
	}
	return nil
}

// QueryCandidates joins each embedding in the notebook to its chunk.
// Both notebook and owner filters apply on the embedding side as well,
// so a notebook id colliding across owners leaks nothing.
func (s *MongoStore) QueryCandidates(ctx context.Context, notebookID, ownerID string) ([]services.Candidate, error) {
	filter := bson.M{"notebook_id": notebookID, "owner_id": ownerID}

	cursor, err := s.db.Collection(chunksCollection).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "source_id", Value: 1}, {Key: "order", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("%w: query chunks: %v", services.ErrStorage, err)
	}
	var chunks []models.SourceChunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, fmt.Errorf("%w: decode chunks: %v", services.ErrStorage, err)
	}

	cursor, err = s.db.Collection(embeddingsCollection).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: query embeddings: %v", services.ErrStorage, err)
	}
	var embeddings []models.ChunkEmbedding
	if err := cursor.All(ctx, &embeddings); err != nil {
		return nil, fmt.Errorf("%w: decode embeddings: %v", services.ErrStorage, err)
	}

	vectorsByChunk := make(map[string][]float32, len(embeddings))
	for _, e := range embeddings {
		vectorsByChunk[e.ChunkID] = e.Vector
	}

	candidates := make([]services.Candidate, 0, len(chunks))
	for _, c := range chunks {
		vector, ok := vectorsByChunk[c.ChunkID]
		if !ok {
			// Orphan chunk from an interrupted index run; skip it and let
			// the sweeper collect it.
			continue
		}
		candidates = append(candidates, services.Candidate{Chunk: c, Vector: vector})
	}
	return candidates, nil
}

// --- services.SourceStore ---

func (s *MongoStore) GetSource(ctx context.Context, sourceID, ownerID string) (*models.Source, error) {
	var source models.Source
	err := s.db.Collection(sourcesCollection).
		FindOne(ctx, bson.M{"_id": sourceID, "owner_id": ownerID}).
		Decode(&source)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: source %s", services.ErrNotFound, sourceID)
		}
		return nil, fmt.Errorf("%w: get source: %v", services.ErrStorage, err)
	}
	return &source, nil
}

// --- notebook / source management used by the routes layer ---

func (s *MongoStore) CreateNotebook(ctx context.Context, nb *models.Notebook) error {
	if _, err := s.db.Collection(notebooksCollection).InsertOne(ctx, nb); err != nil {
		return fmt.Errorf("%w: create notebook: %v", services.ErrStorage, err)
	}
	return nil
}

func (s *MongoStore) GetNotebook(ctx context.Context, notebookID, ownerID string) (*models.Notebook, error) {
	var nb models.Notebook
	err := s.db.Collection(notebooksCollection).
		FindOne(ctx, bson.M{"_id": notebookID, "owner_id": ownerID}).
		Decode(&nb)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: notebook %s", services.ErrNotFound, notebookID)
		}
		return nil, fmt.Errorf("%w: get notebook: %v", services.ErrStorage, err)
	}
	return &nb, nil
}

func (s *MongoStore) ListNotebooks(ctx context.Context, ownerID string) ([]models.Notebook, error) {
	cursor, err := s.db.Collection(notebooksCollection).
		Find(ctx, bson.M{"owner_id": ownerID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("%w: list notebooks: %v", services.ErrStorage, err)
	}
	notebooks := []models.Notebook{}
	if err := cursor.All(ctx, &notebooks); err != nil {
		return nil, fmt.Errorf("%w: decode notebooks: %v", services.ErrStorage, err)
	}
	return notebooks, nil
}

func (s *MongoStore) DeleteNotebook(ctx context.Context, notebookID, ownerID string) error {
	if _, err := s.db.Collection(notebooksCollection).
		DeleteOne(ctx, bson.M{"_id": notebookID, "owner_id": ownerID}); err != nil {
		return fmt.Errorf("%w: delete notebook: %v", services.ErrStorage, err)
	}
	return nil
}

func (s *MongoStore) CreateSource(ctx context.Context, source *models.Source) error {
	if _, err := s.db.Collection(sourcesCollection).InsertOne(ctx, source); err != nil {
		return fmt.Errorf("%w: create source: %v", services.ErrStorage, err)
	}
	return nil
}

func (s *MongoStore) ListSourcesByNotebook(ctx context.Context, notebookID, ownerID string) ([]models.Source, error) {
	cursor, err := s.db.Collection(sourcesCollection).
		Find(ctx, bson.M{"notebook_id": notebookID, "owner_id": ownerID})
	if err != nil {
		return nil, fmt.Errorf("%w: list sources: %v", services.ErrStorage, err)
	}
	sources := []models.Source{}
	if err := cursor.All(ctx, &sources); err != nil {
		return nil, fmt.Errorf("%w: decode sources: %v", services.ErrStorage, err)
	}
	return sources, nil
}

func (s *MongoStore) UpdateSourceContent(ctx context.Context, sourceID, ownerID, content string) error {
	res, err := s.db.Collection(sourcesCollection).UpdateOne(ctx,
		bson.M{"_id": sourceID, "owner_id": ownerID},
		bson.M{"$set": bson.M{
			"content":    content,
			"status":     models.SourceStatusPending,
			"updated_at": time.Now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("%w: update source: %v", services.ErrStorage, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: source %s", services.ErrNotFound, sourceID)
	}
	return nil
}

func (s *MongoStore) UpdateSourceStatus(ctx context.Context, sourceID, ownerID, status string) error {
	_, err := s.db.Collection(sourcesCollection).UpdateOne(ctx,
		bson.M{"_id": sourceID, "owner_id": ownerID},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("%w: update source status: %v", services.ErrStorage, err)
	}
	return nil
}

func (s *MongoStore) DeleteSource(ctx context.Context, sourceID, ownerID string) error {
	if _, err := s.db.Collection(sourcesCollection).
		DeleteOne(ctx, bson.M{"_id": sourceID, "owner_id": ownerID}); err != nil {
		return fmt.Errorf("%w: delete source: %v", services.ErrStorage, err)
	}
	return nil
}

// --- consistency sweep ---

// SweepOrphans deletes embeddings whose chunk is gone and chunks whose
// embedding is gone, in either direction the residue of an interrupted
// index run whose best-effort cleanup also failed. Returns the number
// of rows removed.
func (s *MongoStore) SweepOrphans(ctx context.Context) (int64, error) {
	chunkIDs, err := s.db.Collection(chunksCollection).Distinct(ctx, "chunk_id", bson.M{})
	if err != nil {
		return 0, fmt.Errorf("%w: distinct chunks: %v", services.ErrStorage, err)
	}
	embeddingIDs, err := s.db.Collection(embeddingsCollection).Distinct(ctx, "chunk_id", bson.M{})
	if err != nil {
		return 0, fmt.Errorf("%w: distinct embeddings: %v", services.ErrStorage, err)
	}

	chunkSet := make(map[string]bool, len(chunkIDs))
	for _, id := range chunkIDs {
		if str, ok := id.(string); ok {
			chunkSet[str] = true
		}
	}
	embeddingSet := make(map[string]bool, len(embeddingIDs))
	for _, id := range embeddingIDs {
		if str, ok := id.(string); ok {
			embeddingSet[str] = true
		}
	}

	var orphanEmbeddings, orphanChunks []string
	for id := range embeddingSet {
		if !chunkSet[id] {
			orphanEmbeddings = append(orphanEmbeddings, id)
		}
	}
	for id := range chunkSet {
		if !embeddingSet[id] {
			orphanChunks = append(orphanChunks, id)
		}
	}

	var removed int64
	if len(orphanEmbeddings) > 0 {
		res, err := s.db.Collection(embeddingsCollection).
			DeleteMany(ctx, bson.M{"chunk_id": bson.M{"$in": orphanEmbeddings}})
		if err != nil {
			return removed, fmt.Errorf("%w: sweep embeddings: %v", services.ErrStorage, err)
		}
		removed += res.DeletedCount
	}
	if len(orphanChunks) > 0 {
		res, err := s.db.Collection(chunksCollection).
			DeleteMany(ctx, bson.M{"chunk_id": bson.M{"$in": orphanChunks}})
		if err != nil {
			return removed, fmt.Errorf("%w: sweep chunks: %v", services.ErrStorage, err)
		}
		removed += res.DeletedCount
	}
	return removed, nil
}

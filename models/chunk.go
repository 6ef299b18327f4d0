package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SourceChunk is a denormalized chunk row kept in its own collection so
// candidate scans and vector filters stay cheap. Chunk sets are only
// ever replaced wholesale per source, never edited in place.
type SourceChunk struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	ChunkID    string             `bson:"chunk_id"`
	SourceID   string             `bson:"source_id"`
	NotebookID string             `bson:"notebook_id"`
	OwnerID    string             `bson:"owner_id"`
	Order      int                `bson:"order"`
	Text       string             `bson:"text"`
	Metadata   map[string]string  `bson:"metadata,omitempty"`
	CreatedAt  time.Time          `bson:"created_at"`
}

// ChunkEmbedding is the vector row paired 1:1 with a SourceChunk.
// Owner and notebook ids are denormalized from the chunk so query-time
// filtering never needs a join.
type ChunkEmbedding struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	ChunkID    string             `bson:"chunk_id"`
	SourceID   string             `bson:"source_id"`
	NotebookID string             `bson:"notebook_id"`
	OwnerID    string             `bson:"owner_id"`
	Vector     []float32          `bson:"vector"`
	CreatedAt  time.Time          `bson:"created_at"`
}

package models

import "time"

// Source is an owner-scoped text blob attached to a notebook. The
// indexer only reads it; content replacement triggers a reindex and
// deletion cascades to chunks and embeddings.
type Source struct {
	ID         string    `json:"id" bson:"_id"`
	OwnerID    string    `json:"owner_id" bson:"owner_id"`
	NotebookID string    `json:"notebook_id" bson:"notebook_id"`
	Filename   string    `json:"filename,omitempty" bson:"filename,omitempty"`
	Content    string    `json:"content" bson:"content"`
	Status     string    `json:"status" bson:"status"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at"`
}

// Source indexing statuses reported to the upload/edit surface.
const (
	SourceStatusPending  = "pending"
	SourceStatusIndexing = "indexing"
	SourceStatusIndexed  = "indexed"
	SourceStatusFailed   = "failed"
)

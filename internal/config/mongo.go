package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	if err := createIndexes(client, cfg.DBName); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

func createIndexes(client *mongo.Client, dbName string) error {
	ctx := context.Background()
	db := client.Database(dbName)

	// Notebooks collection indexes
	notebooksCol := db.Collection("notebooks")
	_, err := notebooksCol.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "title", Value: 1}}},
	})
	if err != nil {
		return err
	}

	// Sources collection indexes
	sourcesCol := db.Collection("sources")
	_, err = sourcesCol.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
		{Keys: bson.D{{Key: "notebook_id", Value: 1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "notebook_id", Value: 1}}},
	})
	if err != nil {
		return err
	}

	// Chunk collection indexes. Candidate scans filter on
	// (notebook_id, owner_id); cascade deletes filter on (source_id, owner_id).
	chunksCol := db.Collection("source_chunks")
	_, err = chunksCol.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "notebook_id", Value: 1}, {Key: "owner_id", Value: 1}}},
		{Keys: bson.D{{Key: "source_id", Value: 1}, {Key: "owner_id", Value: 1}}},
		{Keys: bson.D{{Key: "chunk_id", Value: 1}}},
	})
	if err != nil {
		return err
	}

	// Embedding collection mirrors the chunk filters.
	embeddingsCol := db.Collection("chunk_embeddings")
	_, err = embeddingsCol.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "notebook_id", Value: 1}, {Key: "owner_id", Value: 1}}},
		{Keys: bson.D{{Key: "source_id", Value: 1}, {Key: "owner_id", Value: 1}}},
		{Keys: bson.D{{Key: "chunk_id", Value: 1}}},
	})
	return err
}

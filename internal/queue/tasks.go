package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"notebook-rag-platform/internal/logger"
	"notebook-rag-platform/models"
	"notebook-rag-platform/services"
)

const (
	TaskIndexSource   = "source:index"
	TaskReindexSource = "source:reindex"
	TaskDeindexSource = "source:deindex"
)

type SourceTaskPayload struct {
	SourceID string `json:"source_id"`
	OwnerID  string `json:"owner_id"`
}

// Task creators

func NewIndexSourceTask(sourceID, ownerID string) (*asynq.Task, error) {
	payload, err := json.Marshal(SourceTaskPayload{SourceID: sourceID, OwnerID: ownerID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskIndexSource,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

func NewReindexSourceTask(sourceID, ownerID string) (*asynq.Task, error) {
	payload, err := json.Marshal(SourceTaskPayload{SourceID: sourceID, OwnerID: ownerID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskReindexSource,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("default"),
	), nil
}

func NewDeindexSourceTask(sourceID, ownerID string) (*asynq.Task, error) {
	payload, err := json.Marshal(SourceTaskPayload{SourceID: sourceID, OwnerID: ownerID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskDeindexSource,
		payload,
		asynq.MaxRetry(5),
		asynq.Timeout(2*time.Minute),
		asynq.Queue("default"),
	), nil
}

// SourceStatusStore records source lifecycle transitions for the
// upload/edit surface to report.
type SourceStatusStore interface {
	UpdateSourceStatus(ctx context.Context, sourceID, ownerID, status string) error
}

// TaskProcessor runs the indexing pipeline off the request path.
type TaskProcessor struct {
	indexer *services.IndexerService
	store   SourceStatusStore
}

func NewTaskProcessor(indexer *services.IndexerService, store SourceStatusStore) *TaskProcessor {
	return &TaskProcessor{indexer: indexer, store: store}
}

func (p *TaskProcessor) HandleIndexSource(ctx context.Context, t *asynq.Task) error {
	var payload SourceTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("indexing source", "source_id", payload.SourceID)
	p.markIndexing(ctx, payload)

	count, err := p.indexer.Index(ctx, payload.SourceID, payload.OwnerID)
	return p.finish(ctx, payload, count, err)
}

func (p *TaskProcessor) HandleReindexSource(ctx context.Context, t *asynq.Task) error {
	var payload SourceTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("reindexing source", "source_id", payload.SourceID)
	p.markIndexing(ctx, payload)

	count, err := p.indexer.Reindex(ctx, payload.SourceID, payload.OwnerID)
	return p.finish(ctx, payload, count, err)
}

func (p *TaskProcessor) HandleDeindexSource(ctx context.Context, t *asynq.Task) error {
	var payload SourceTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("deindexing source", "source_id", payload.SourceID)
	return p.indexer.Deindex(ctx, payload.SourceID, payload.OwnerID)
}

// markIndexing is best-effort: the "indexing" status is advisory and
// must not block the pipeline when the write fails.
func (p *TaskProcessor) markIndexing(ctx context.Context, payload SourceTaskPayload) {
	if err := p.store.UpdateSourceStatus(ctx, payload.SourceID, payload.OwnerID, models.SourceStatusIndexing); err != nil {
		logger.Warn("could not mark source indexing", "source_id", payload.SourceID, "error", err)
	}
}

func (p *TaskProcessor) finish(ctx context.Context, payload SourceTaskPayload, count int, err error) error {
	if err != nil {
		// A deleted source is not a task failure; everything else marks
		// the source failed so the owner sees "could not be processed for
		// search; you can retry" rather than a false success.
		if errors.Is(err, services.ErrNotFound) {
			logger.Warn("source vanished before indexing", "source_id", payload.SourceID)
			return nil
		}
		p.store.UpdateSourceStatus(ctx, payload.SourceID, payload.OwnerID, models.SourceStatusFailed)
		return err
	}

	logger.Info("source indexed", "source_id", payload.SourceID, "chunks", count)
	return p.store.UpdateSourceStatus(ctx, payload.SourceID, payload.OwnerID, models.SourceStatusIndexed)
}

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"engage-kb-platform/internal/logger"
	"engage-kb-platform/services"
)

const (
	TaskChunkDocument = "document:chunk"
)

type ChunkDocumentPayload struct {
	DocumentID string `json:"document_id"`
	Revision   int    `json:"revision"`
}

// NewChunkDocumentTask builds the background chunking task for one
// document revision. Chunking runs at most once per revision; a
// failed run marks the document failed instead of retrying.
func NewChunkDocumentTask(documentID string, revision int) (*asynq.Task, error) {
	payload, err := json.Marshal(ChunkDocumentPayload{
		DocumentID: documentID,
		Revision:   revision,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskChunkDocument,
		payload,
		asynq.MaxRetry(0),
		asynq.Timeout(5*time.Minute),
		asynq.Queue("ingest"),
	), nil
}

// Dispatcher enqueues chunking work onto asynq. It satisfies
// services.Dispatcher.
type Dispatcher struct {
	client *asynq.Client
}

func NewDispatcher(client *asynq.Client) *Dispatcher {
	return &Dispatcher{client: client}
}

func (d *Dispatcher) DispatchChunking(ctx context.Context, documentID string, revision int) error {
	task, err := NewChunkDocumentTask(documentID, revision)
	if err != nil {
		return fmt.Errorf("failed to build chunking task: %w", err)
	}

	info, err := d.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue chunking task: %w", err)
	}

	logger.Debug("Chunking task enqueued",
		"task_id", info.ID,
		"document_id", documentID,
		"revision", revision,
	)
	return nil
}

// Task handlers
type TaskProcessor struct {
	pipeline *services.IngestionService
}

func NewTaskProcessor(pipeline *services.IngestionService) *TaskProcessor {
	return &TaskProcessor{pipeline: pipeline}
}

func (p *TaskProcessor) HandleChunkDocument(ctx context.Context, t *asynq.Task) error {
	var payload ChunkDocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Processing document",
		"document_id", payload.DocumentID,
		"revision", payload.Revision,
	)

	return p.pipeline.ProcessDocument(ctx, payload.DocumentID, payload.Revision)
}

package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"engage-kb-platform/internal/logger"
	"engage-kb-platform/internal/store"
	"engage-kb-platform/internal/telemetry"
	"engage-kb-platform/models"
)

// Dispatcher hands a chunking unit of work off for detached execution.
// Production wires an asynq-backed dispatcher; tests run the work
// inline. The revision fences stale work after concurrent re-ingests.
type Dispatcher interface {
	DispatchChunking(ctx context.Context, documentID string, revision int) error
}

// IngestionService orchestrates the document lifecycle: synchronous
// metadata persistence, detached chunking, and cascade deletion.
type IngestionService struct {
	store      store.Store
	chunker    *Chunker
	dispatcher Dispatcher
	metrics    *telemetry.Metrics
}

func NewIngestionService(st store.Store, chunker *Chunker, dispatcher Dispatcher, metrics *telemetry.Metrics) *IngestionService {
	return &IngestionService{
		store:      st,
		chunker:    chunker,
		dispatcher: dispatcher,
		metrics:    metrics,
	}
}

// Ingest persists a new document and returns immediately; chunking
// runs detached. An empty content goes straight to completed with zero
// chunks. Storage errors on the synchronous path propagate to the
// caller, everything downstream only degrades the document's status.
func (s *IngestionService) Ingest(ctx context.Context, kbID, tenantID, title, content string) (*models.Document, error) {
	if _, err := s.store.GetKnowledgeBase(ctx, kbID); err != nil {
		return nil, fmt.Errorf("knowledge base %s: %w", kbID, err)
	}

	now := time.Now()
	doc := &models.Document{
		ID:              uuid.NewString(),
		KnowledgeBaseID: kbID,
		TenantID:        tenantID,
		Title:           title,
		Content:         content,
		Status:          models.StatusProcessing,
		Revision:        1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if strings.TrimSpace(content) == "" {
		doc.Status = models.StatusCompleted
	}

	if err := s.store.InsertDocument(ctx, doc); err != nil {
		return nil, err
	}
	if err := s.store.IncrementDocumentCount(ctx, kbID, 1); err != nil {
		// The count update is part of the synchronous contract; undo the
		// insert so a failed ingest leaves no half-created document.
		if derr := s.store.DeleteDocument(ctx, doc.ID); derr != nil {
			logger.Error("orphan document cleanup failed", "document_id", doc.ID, "error", derr)
		}
		return nil, fmt.Errorf("increment document count: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordDocumentIngested(kbID)
	}

	if doc.Status == models.StatusProcessing {
		s.dispatch(ctx, doc)
	}
	return doc, nil
}

// Reingest replaces a document's content wholesale. The revision bump
// is a single storage-side increment so concurrent re-ingests always
// mint distinct revisions; the document is back in processing with a
// zero chunk count before the old chunks go, so a failed cleanup never
// leaves a completed document whose chunks are missing.
func (s *IngestionService) Reingest(ctx context.Context, documentID, content string) (*models.Document, error) {
	doc, err := s.store.ResetDocumentForReingest(ctx, documentID, content)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", documentID, err)
	}

	if err := s.store.DeleteChunksByDocument(ctx, documentID); err != nil {
		s.markFailed(ctx, doc.ID, doc.Revision, fmt.Sprintf("stale chunk cleanup failed: %v", err))
		return nil, fmt.Errorf("delete chunks: %w", err)
	}

	if strings.TrimSpace(content) == "" {
		matched, err := s.store.MarkDocumentCompleted(ctx, doc.ID, doc.Revision, 0)
		if err != nil {
			return nil, err
		}
		if matched {
			doc.Status = models.StatusCompleted
			doc.ChunkCount = 0
		}
		return doc, nil
	}

	s.dispatch(ctx, doc)
	return doc, nil
}

// Delete removes a document, relying on the store cascading to its
// chunks, then recomputes the parent's document count from the live
// rows rather than decrementing a counter.
func (s *IngestionService) Delete(ctx context.Context, documentID string) error {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("document %s: %w", documentID, err)
	}
	if err := s.store.DeleteDocument(ctx, documentID); err != nil {
		return err
	}

	count, err := s.store.CountDocuments(ctx, doc.KnowledgeBaseID)
	if err != nil {
		return fmt.Errorf("recount documents: %w", err)
	}
	return s.store.SetDocumentCount(ctx, doc.KnowledgeBaseID, count)
}

// dispatch hands the chunking work off. A dispatch failure must not
// fail the ingest call the caller already considers accepted, so the
// document is degraded to failed instead.
func (s *IngestionService) dispatch(ctx context.Context, doc *models.Document) {
	if err := s.dispatcher.DispatchChunking(ctx, doc.ID, doc.Revision); err != nil {
		logger.Error("chunking dispatch failed", "document_id", doc.ID, "error", err)
		s.markFailed(ctx, doc.ID, doc.Revision, fmt.Sprintf("chunking could not be scheduled: %v", err))
	}
}

// ProcessDocument is the detached chunking unit of work. It chunks the
// document's content, bulk-inserts the chunks and completes the
// document, or degrades it to failed. The revision must match the one
// the work was dispatched for; stale work aborts without writing.
func (s *IngestionService) ProcessDocument(ctx context.Context, documentID string, revision int) error {
	started := time.Now()

	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("document %s: %w", documentID, err)
	}
	if doc.Revision != revision || doc.Status != models.StatusProcessing {
		logger.Warn("skipping stale chunking task",
			"document_id", documentID, "task_revision", revision, "revision", doc.Revision)
		return nil
	}

	// Each run gets its own attempt id. Delivery is at-least-once, so
	// two runs of the same revision can race; the id scopes cleanup to
	// this run's rows only.
	attemptID := uuid.NewString()
	pieces := s.chunker.Split(doc.Content)
	now := time.Now()
	chunks := make([]models.DocumentChunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = models.DocumentChunk{
			ID:              uuid.NewString(),
			DocumentID:      doc.ID,
			KnowledgeBaseID: doc.KnowledgeBaseID,
			TenantID:        doc.TenantID,
			ChunkIndex:      i,
			Content:         piece,
			TokenCount:      estimateTokens(piece),
			Revision:        revision,
			AttemptID:       attemptID,
			CreatedAt:       now,
		}
	}

	if err := s.store.InsertChunks(ctx, chunks); err != nil {
		s.markFailed(ctx, doc.ID, revision, fmt.Sprintf("chunk insert failed: %v", err))
		return err
	}

	matched, err := s.store.MarkDocumentCompleted(ctx, doc.ID, revision, len(chunks))
	if err != nil {
		s.markFailed(ctx, doc.ID, revision, fmt.Sprintf("status update failed: %v", err))
		return err
	}
	if !matched {
		// Lost to a newer revision or to a duplicate delivery of this
		// one. Remove only this run's rows; the winner's set stays.
		logger.Warn("chunking lost completion race, cleaning up",
			"document_id", doc.ID, "revision", revision, "attempt_id", attemptID)
		if err := s.store.DeleteChunksByAttempt(ctx, doc.ID, attemptID); err != nil {
			logger.Error("stale chunk cleanup failed", "document_id", doc.ID, "error", err)
		}
		return nil
	}

	if s.metrics != nil {
		s.metrics.RecordChunking(len(chunks), time.Since(started).Seconds(), models.StatusCompleted)
	}
	logger.Info("document chunked",
		"document_id", doc.ID, "chunks", len(chunks), "duration_ms", time.Since(started).Milliseconds())
	return nil
}

// markFailed records a failure on the document. The write itself is
// best-effort: if it also fails the error is logged and swallowed so a
// transient storage hiccup never crashes the worker.
func (s *IngestionService) markFailed(ctx context.Context, documentID string, revision int, msg string) {
	if _, err := s.store.MarkDocumentFailed(ctx, documentID, revision, msg); err != nil {
		logger.Error("failure status write failed", "document_id", documentID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.RecordChunking(0, 0, models.StatusFailed)
	}
}

// estimateTokens approximates token usage at ~4 runes per token.
func estimateTokens(text string) int {
	n := utf8.RuneCountInString(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}

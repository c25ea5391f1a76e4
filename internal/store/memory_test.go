package store

import (
	"context"
	"testing"
	"time"

	"engage-kb-platform/models"
)

func insertTestDocument(t *testing.T, s *MemoryStore, id string, revision int, status string) {
	t.Helper()
	doc := &models.Document{
		ID:              id,
		KnowledgeBaseID: "kb-1",
		TenantID:        "tenant-1",
		Status:          status,
		Revision:        revision,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if err := s.InsertDocument(context.Background(), doc); err != nil {
		t.Fatalf("insert document: %v", err)
	}
}

func TestMarkDocumentCompletedRevisionGuard(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	insertTestDocument(t, s, "d1", 2, models.StatusProcessing)

	matched, err := s.MarkDocumentCompleted(ctx, "d1", 1, 3)
	if err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if matched {
		t.Fatalf("stale revision must not match")
	}

	matched, err = s.MarkDocumentCompleted(ctx, "d1", 2, 3)
	if err != nil || !matched {
		t.Fatalf("current revision should match, got matched=%v err=%v", matched, err)
	}

	// Already completed: a second write is a no-op.
	matched, _ = s.MarkDocumentCompleted(ctx, "d1", 2, 3)
	if matched {
		t.Fatalf("completed document must not match again")
	}

	doc, _ := s.GetDocument(ctx, "d1")
	if doc.Status != models.StatusCompleted || doc.ChunkCount != 3 {
		t.Fatalf("unexpected document state: %+v", doc)
	}
}

func TestMarkDocumentFailedRevisionGuard(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	insertTestDocument(t, s, "d1", 1, models.StatusProcessing)

	matched, err := s.MarkDocumentFailed(ctx, "d1", 1, "boom")
	if err != nil || !matched {
		t.Fatalf("expected match, got matched=%v err=%v", matched, err)
	}
	doc, _ := s.GetDocument(ctx, "d1")
	if doc.Status != models.StatusFailed || doc.ErrorMessage != "boom" {
		t.Fatalf("unexpected document state: %+v", doc)
	}
}

func TestResetDocumentForReingestMintsDistinctRevisions(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	insertTestDocument(t, s, "d1", 1, models.StatusCompleted)

	revisions := make(chan int, 2)
	for i := 0; i < 2; i++ {
		go func() {
			doc, err := s.ResetDocumentForReingest(ctx, "d1", "新内容")
			if err != nil {
				t.Errorf("reset: %v", err)
				revisions <- -1
				return
			}
			revisions <- doc.Revision
		}()
	}
	a, b := <-revisions, <-revisions
	if a == b {
		t.Fatalf("both re-ingests minted revision %d", a)
	}

	doc, err := s.GetDocument(ctx, "d1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Revision != 3 || doc.Status != models.StatusProcessing || doc.ChunkCount != 0 {
		t.Fatalf("unexpected document after resets: %+v", doc)
	}
}

func TestDeleteChunksByAttemptScopesToOneRun(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.InsertChunks(ctx, []models.DocumentChunk{
		{ID: "c1", DocumentID: "d1", KnowledgeBaseID: "kb-1", Revision: 1, AttemptID: "a1", CreatedAt: time.Now()},
		{ID: "c2", DocumentID: "d1", KnowledgeBaseID: "kb-1", Revision: 1, AttemptID: "a2", CreatedAt: time.Now()},
	}); err != nil {
		t.Fatalf("insert chunks: %v", err)
	}

	if err := s.DeleteChunksByAttempt(ctx, "d1", "a2"); err != nil {
		t.Fatalf("delete by attempt: %v", err)
	}
	got, _ := s.RecentChunks(ctx, "kb-1", 0)
	if len(got) != 1 || got[0].ID != "c1" {
		t.Fatalf("expected only the first run's chunk, got %+v", got)
	}
}

func TestSearchChunksCaseInsensitive(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	chunks := []models.DocumentChunk{
		{ID: "c1", DocumentID: "d1", KnowledgeBaseID: "kb-1", Content: "API Rate Limits explained", CreatedAt: time.Now()},
		{ID: "c2", DocumentID: "d1", KnowledgeBaseID: "kb-1", Content: "退款政策说明", CreatedAt: time.Now()},
		{ID: "c3", DocumentID: "d1", KnowledgeBaseID: "kb-2", Content: "api usage in another base", CreatedAt: time.Now()},
	}
	if err := s.InsertChunks(ctx, chunks); err != nil {
		t.Fatalf("insert chunks: %v", err)
	}

	got, err := s.SearchChunks(ctx, "kb-1", []string{"api"}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "c1" {
		t.Fatalf("expected c1 only, got %+v", got)
	}

	got, _ = s.SearchChunks(ctx, "kb-1", nil, 5)
	if got != nil {
		t.Fatalf("no keywords should return no matches, got %+v", got)
	}
}

func TestDeleteDocumentCascades(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	insertTestDocument(t, s, "d1", 1, models.StatusCompleted)
	if err := s.InsertChunks(ctx, []models.DocumentChunk{
		{ID: "c1", DocumentID: "d1", KnowledgeBaseID: "kb-1", Content: "内容", CreatedAt: time.Now()},
	}); err != nil {
		t.Fatalf("insert chunks: %v", err)
	}

	if err := s.DeleteDocument(ctx, "d1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := s.RecentChunks(ctx, "kb-1", 0)
	if len(got) != 0 {
		t.Fatalf("chunks survived document delete: %+v", got)
	}
}

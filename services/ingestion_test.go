package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"engage-kb-platform/internal/store"
	"engage-kb-platform/models"
)

// inlineDispatcher runs the chunking work synchronously, standing in
// for the task queue.
type inlineDispatcher struct {
	svc *IngestionService
}

func (d *inlineDispatcher) DispatchChunking(ctx context.Context, documentID string, revision int) error {
	return d.svc.ProcessDocument(ctx, documentID, revision)
}

// recordingDispatcher captures dispatches without executing them.
type recordingDispatcher struct {
	calls []struct {
		DocumentID string
		Revision   int
	}
}

func (d *recordingDispatcher) DispatchChunking(_ context.Context, documentID string, revision int) error {
	d.calls = append(d.calls, struct {
		DocumentID string
		Revision   int
	}{documentID, revision})
	return nil
}

type failingDispatcher struct{}

func (failingDispatcher) DispatchChunking(context.Context, string, int) error {
	return errors.New("queue unavailable")
}

// gatedStore holds every chunk insert until release is closed, so a
// test can line up two chunking runs on either side of the completion
// write.
type gatedStore struct {
	store.Store
	arrived chan struct{}
	release chan struct{}
}

func (s *gatedStore) InsertChunks(ctx context.Context, chunks []models.DocumentChunk) error {
	s.arrived <- struct{}{}
	<-s.release
	return s.Store.InsertChunks(ctx, chunks)
}

// countFailStore rejects knowledge base count updates.
type countFailStore struct {
	store.Store
}

func (countFailStore) IncrementDocumentCount(context.Context, string, int) error {
	return errors.New("write unavailable")
}

// chunkDeleteFailStore rejects document-scoped chunk deletes.
type chunkDeleteFailStore struct {
	store.Store
}

func (chunkDeleteFailStore) DeleteChunksByDocument(context.Context, string) error {
	return errors.New("delete unavailable")
}

func newTestKB(t *testing.T, st store.Store) *models.KnowledgeBase {
	t.Helper()
	kb := &models.KnowledgeBase{
		ID:        "kb-1",
		TenantID:  "tenant-1",
		Name:      "帮助中心",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := st.CreateKnowledgeBase(context.Background(), kb); err != nil {
		t.Fatalf("create kb: %v", err)
	}
	return kb
}

func newInlineIngestion(st store.Store) *IngestionService {
	d := &inlineDispatcher{}
	svc := NewIngestionService(st, NewChunker(500, 50), d, nil)
	d.svc = svc
	return svc
}

func TestIngestChunksAndCompletes(t *testing.T) {
	st := store.NewMemoryStore()
	kb := newTestKB(t, st)
	svc := newInlineIngestion(st)

	content := strings.Repeat("退款政策说明。", 200) // 1400 runes
	doc, err := svc.Ingest(context.Background(), kb.ID, kb.TenantID, "退款政策", content)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	stored, err := st.GetDocument(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if stored.Status != models.StatusCompleted {
		t.Fatalf("status = %q, want completed (error: %q)", stored.Status, stored.ErrorMessage)
	}
	if stored.ChunkCount == 0 {
		t.Fatalf("expected chunks to be recorded")
	}

	chunks, err := st.RecentChunks(context.Background(), kb.ID, 0)
	if err != nil {
		t.Fatalf("recent chunks: %v", err)
	}
	if len(chunks) != stored.ChunkCount {
		t.Fatalf("stored %d chunks, document says %d", len(chunks), stored.ChunkCount)
	}
	for _, c := range chunks {
		if c.KnowledgeBaseID != kb.ID || c.TenantID != kb.TenantID {
			t.Fatalf("chunk missing denormalized kb/tenant: %+v", c)
		}
	}

	updatedKB, _ := st.GetKnowledgeBase(context.Background(), kb.ID)
	if updatedKB.DocumentCount != 1 {
		t.Fatalf("document count = %d, want 1", updatedKB.DocumentCount)
	}
}

func TestIngestEmptyContentCompletesImmediately(t *testing.T) {
	st := store.NewMemoryStore()
	kb := newTestKB(t, st)
	rec := &recordingDispatcher{}
	svc := NewIngestionService(st, NewChunker(500, 50), rec, nil)

	doc, err := svc.Ingest(context.Background(), kb.ID, kb.TenantID, "占位文档", "   ")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if doc.Status != models.StatusCompleted {
		t.Fatalf("status = %q, want completed", doc.Status)
	}
	if len(rec.calls) != 0 {
		t.Fatalf("empty content must not dispatch chunking")
	}
}

func TestIngestUnknownKnowledgeBase(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newInlineIngestion(st)

	if _, err := svc.Ingest(context.Background(), "missing", "tenant-1", "t", "content"); err == nil {
		t.Fatalf("expected error for unknown knowledge base")
	}
}

func TestIngestDispatchFailureDegradesToFailed(t *testing.T) {
	st := store.NewMemoryStore()
	kb := newTestKB(t, st)
	svc := NewIngestionService(st, NewChunker(500, 50), failingDispatcher{}, nil)

	doc, err := svc.Ingest(context.Background(), kb.ID, kb.TenantID, "标题", strings.Repeat("内容。", 300))
	if err != nil {
		t.Fatalf("ingest itself must not fail on dispatch error: %v", err)
	}

	stored, _ := st.GetDocument(context.Background(), doc.ID)
	if stored.Status != models.StatusFailed {
		t.Fatalf("status = %q, want failed", stored.Status)
	}
	if stored.ErrorMessage == "" {
		t.Fatalf("expected an error message on the failed document")
	}
}

func TestIngestCountUpdateFailurePropagates(t *testing.T) {
	base := store.NewMemoryStore()
	kb := newTestKB(t, base)
	rec := &recordingDispatcher{}
	svc := NewIngestionService(countFailStore{base}, NewChunker(500, 50), rec, nil)

	if _, err := svc.Ingest(context.Background(), kb.ID, kb.TenantID, "标题", "正文内容。"); err == nil {
		t.Fatalf("expected error when the count update fails")
	}
	if len(rec.calls) != 0 {
		t.Fatalf("chunking must not be dispatched after a failed ingest")
	}
	if n, _ := base.CountDocuments(context.Background(), kb.ID); n != 0 {
		t.Fatalf("failed ingest left %d documents behind", n)
	}
}

func TestDuplicateChunkingDeliveryKeepsWinningChunks(t *testing.T) {
	base := store.NewMemoryStore()
	kb := newTestKB(t, base)
	gate := &gatedStore{Store: base, arrived: make(chan struct{}), release: make(chan struct{})}
	svc := NewIngestionService(gate, NewChunker(500, 50), &recordingDispatcher{}, nil)

	doc, err := svc.Ingest(context.Background(), kb.ID, kb.TenantID, "配送说明", strings.Repeat("配送条款。", 300))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	// The queue redelivered the same task; both runs pass the revision
	// check before either reaches the completion write.
	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			done <- svc.ProcessDocument(context.Background(), doc.ID, 1)
		}()
	}
	<-gate.arrived
	<-gate.arrived
	close(gate.release)
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("process: %v", err)
		}
	}

	stored, _ := base.GetDocument(context.Background(), doc.ID)
	if stored.Status != models.StatusCompleted {
		t.Fatalf("status = %q, want completed", stored.Status)
	}
	chunks, _ := base.RecentChunks(context.Background(), kb.ID, 0)
	if len(chunks) == 0 {
		t.Fatalf("winning chunk set was deleted")
	}
	if len(chunks) != stored.ChunkCount {
		t.Fatalf("document records %d chunks, store has %d", stored.ChunkCount, len(chunks))
	}
}

func TestReingestReplacesChunks(t *testing.T) {
	st := store.NewMemoryStore()
	kb := newTestKB(t, st)
	svc := newInlineIngestion(st)

	doc, err := svc.Ingest(context.Background(), kb.ID, kb.TenantID, "配送说明", strings.Repeat("旧版内容。", 150))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	// Replacement content fits a single chunk.
	if _, err := svc.Reingest(context.Background(), doc.ID, strings.Repeat("新版内容。", 50)); err != nil {
		t.Fatalf("reingest: %v", err)
	}

	chunks, _ := st.RecentChunks(context.Background(), kb.ID, 0)
	if len(chunks) != 1 {
		t.Fatalf("expected exactly 1 chunk after reingest, got %d", len(chunks))
	}
	for _, c := range chunks {
		if strings.Contains(c.Content, "旧版内容") {
			t.Fatalf("stale chunk survived reingest: %q", c.Content)
		}
		if c.Revision != 2 {
			t.Fatalf("chunk revision = %d, want 2", c.Revision)
		}
	}

	stored, _ := st.GetDocument(context.Background(), doc.ID)
	if stored.Status != models.StatusCompleted || stored.Revision != 2 {
		t.Fatalf("document not completed at revision 2: %+v", stored)
	}
}

func TestReingestCleanupFailureNeverClaimsCompleted(t *testing.T) {
	base := store.NewMemoryStore()
	kb := newTestKB(t, base)
	svc := newInlineIngestion(base)

	doc, err := svc.Ingest(context.Background(), kb.ID, kb.TenantID, "退货说明", strings.Repeat("旧条款。", 200))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	broken := NewIngestionService(chunkDeleteFailStore{base}, NewChunker(500, 50), &recordingDispatcher{}, nil)
	if _, err := broken.Reingest(context.Background(), doc.ID, "新条款。"); err == nil {
		t.Fatalf("expected error when chunk cleanup fails")
	}

	stored, _ := base.GetDocument(context.Background(), doc.ID)
	if stored.Status != models.StatusFailed {
		t.Fatalf("status = %q, want failed after cleanup error", stored.Status)
	}
	if stored.ChunkCount != 0 {
		t.Fatalf("chunk count = %d, want 0 after reset", stored.ChunkCount)
	}
}

func TestStaleChunkingTaskIsFenced(t *testing.T) {
	st := store.NewMemoryStore()
	kb := newTestKB(t, st)
	rec := &recordingDispatcher{}
	svc := NewIngestionService(st, NewChunker(500, 50), rec, nil)

	doc, err := svc.Ingest(context.Background(), kb.ID, kb.TenantID, "标题", strings.Repeat("第一版。", 300))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if _, err := svc.Reingest(context.Background(), doc.ID, strings.Repeat("第二版。", 300)); err != nil {
		t.Fatalf("reingest: %v", err)
	}

	// The revision-1 task arrives late: it must not write anything.
	if err := svc.ProcessDocument(context.Background(), doc.ID, 1); err != nil {
		t.Fatalf("stale task should be a no-op, got %v", err)
	}
	chunks, _ := st.RecentChunks(context.Background(), kb.ID, 0)
	if len(chunks) != 0 {
		t.Fatalf("stale task wrote %d chunks", len(chunks))
	}

	// The current revision's task completes normally.
	if err := svc.ProcessDocument(context.Background(), doc.ID, 2); err != nil {
		t.Fatalf("current task: %v", err)
	}
	stored, _ := st.GetDocument(context.Background(), doc.ID)
	if stored.Status != models.StatusCompleted {
		t.Fatalf("status = %q, want completed", stored.Status)
	}
	chunks, _ = st.RecentChunks(context.Background(), kb.ID, 0)
	for _, c := range chunks {
		if !strings.Contains(c.Content, "第二版") {
			t.Fatalf("unexpected chunk content: %q", c.Content)
		}
	}
}

func TestDeleteRecomputesDocumentCount(t *testing.T) {
	st := store.NewMemoryStore()
	kb := newTestKB(t, st)
	svc := newInlineIngestion(st)

	docA, _ := svc.Ingest(context.Background(), kb.ID, kb.TenantID, "甲", strings.Repeat("甲内容。", 200))
	if _, err := svc.Ingest(context.Background(), kb.ID, kb.TenantID, "乙", strings.Repeat("乙内容。", 200)); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if err := svc.Delete(context.Background(), docA.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := st.GetDocument(context.Background(), docA.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("document should be gone, got %v", err)
	}
	chunks, _ := st.RecentChunks(context.Background(), kb.ID, 0)
	for _, c := range chunks {
		if c.DocumentID == docA.ID {
			t.Fatalf("chunk survived document delete")
		}
	}
	updatedKB, _ := st.GetKnowledgeBase(context.Background(), kb.ID)
	if updatedKB.DocumentCount != 1 {
		t.Fatalf("document count = %d, want 1", updatedKB.DocumentCount)
	}
}

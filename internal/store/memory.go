package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"engage-kb-platform/models"
)

// MemoryStore is an in-memory Store used by tests and single-node
// development setups. Ordering mirrors the Mongo implementation:
// chunks keep insertion order as the storage order, recency queries
// sort by creation time newest first.
type MemoryStore struct {
	mu             sync.RWMutex
	knowledgeBases map[string]models.KnowledgeBase
	documents      map[string]models.Document
	chunks         []models.DocumentChunk
	faqs           []models.FAQ
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		knowledgeBases: make(map[string]models.KnowledgeBase),
		documents:      make(map[string]models.Document),
	}
}

// Knowledge bases

func (s *MemoryStore) CreateKnowledgeBase(_ context.Context, kb *models.KnowledgeBase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.knowledgeBases[kb.ID] = *kb
	return nil
}

func (s *MemoryStore) GetKnowledgeBase(_ context.Context, id string) (*models.KnowledgeBase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kb, ok := s.knowledgeBases[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &kb, nil
}

func (s *MemoryStore) ListKnowledgeBases(_ context.Context, tenantID string) ([]models.KnowledgeBase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kbs := make([]models.KnowledgeBase, 0)
	for _, kb := range s.knowledgeBases {
		if kb.TenantID == tenantID {
			kbs = append(kbs, kb)
		}
	}
	return kbs, nil
}

func (s *MemoryStore) ListAllKnowledgeBases(_ context.Context) ([]models.KnowledgeBase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kbs := make([]models.KnowledgeBase, 0, len(s.knowledgeBases))
	for _, kb := range s.knowledgeBases {
		kbs = append(kbs, kb)
	}
	return kbs, nil
}

func (s *MemoryStore) IncrementDocumentCount(_ context.Context, kbID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kb, ok := s.knowledgeBases[kbID]
	if !ok {
		return ErrNotFound
	}
	kb.DocumentCount += delta
	kb.UpdatedAt = time.Now()
	s.knowledgeBases[kbID] = kb
	return nil
}

func (s *MemoryStore) SetDocumentCount(_ context.Context, kbID string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kb, ok := s.knowledgeBases[kbID]
	if !ok {
		return ErrNotFound
	}
	kb.DocumentCount = count
	kb.UpdatedAt = time.Now()
	s.knowledgeBases[kbID] = kb
	return nil
}

// Documents

func (s *MemoryStore) InsertDocument(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = *doc
	return nil
}

func (s *MemoryStore) GetDocument(_ context.Context, id string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}

func (s *MemoryStore) ResetDocumentForReingest(_ context.Context, id, content string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	doc.Revision++
	doc.Content = content
	doc.Status = models.StatusProcessing
	doc.ChunkCount = 0
	doc.ErrorMessage = ""
	doc.UpdatedAt = time.Now()
	s.documents[id] = doc
	return &doc, nil
}

func (s *MemoryStore) MarkDocumentCompleted(_ context.Context, id string, revision, chunkCount int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok || doc.Revision != revision || doc.Status != models.StatusProcessing {
		return false, nil
	}
	doc.Status = models.StatusCompleted
	doc.ChunkCount = chunkCount
	doc.ErrorMessage = ""
	doc.UpdatedAt = time.Now()
	s.documents[id] = doc
	return true, nil
}

func (s *MemoryStore) MarkDocumentFailed(_ context.Context, id string, revision int, errMsg string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok || doc.Revision != revision || doc.Status != models.StatusProcessing {
		return false, nil
	}
	doc.Status = models.StatusFailed
	doc.ErrorMessage = errMsg
	doc.UpdatedAt = time.Now()
	s.documents[id] = doc
	return true, nil
}

func (s *MemoryStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return ErrNotFound
	}
	delete(s.documents, id)
	s.deleteChunksLocked(func(c models.DocumentChunk) bool { return c.DocumentID == id })
	return nil
}

func (s *MemoryStore) CountDocuments(_ context.Context, kbID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, doc := range s.documents {
		if doc.KnowledgeBaseID == kbID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListStuckDocuments(_ context.Context, olderThan time.Time) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []models.Document
	for _, doc := range s.documents {
		if doc.Status == models.StatusProcessing && doc.UpdatedAt.Before(olderThan) {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// Chunks

func (s *MemoryStore) InsertChunks(_ context.Context, chunks []models.DocumentChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunks...)
	return nil
}

func (s *MemoryStore) DeleteChunksByDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteChunksLocked(func(c models.DocumentChunk) bool { return c.DocumentID == documentID })
	return nil
}

func (s *MemoryStore) DeleteChunksByAttempt(_ context.Context, documentID, attemptID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteChunksLocked(func(c models.DocumentChunk) bool {
		return c.DocumentID == documentID && c.AttemptID == attemptID
	})
	return nil
}

func (s *MemoryStore) deleteChunksLocked(match func(models.DocumentChunk) bool) {
	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if !match(c) {
			kept = append(kept, c)
		}
	}
	s.chunks = kept
}

func (s *MemoryStore) SearchChunks(_ context.Context, kbID string, keywords []string, limit int) ([]models.DocumentChunk, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}

	var out []models.DocumentChunk
	for _, c := range s.chunks {
		if c.KnowledgeBaseID != kbID {
			continue
		}
		content := strings.ToLower(c.Content)
		for _, kw := range lowered {
			if strings.Contains(content, kw) {
				out = append(out, c)
				break
			}
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) RecentChunks(_ context.Context, kbID string, limit int) ([]models.DocumentChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.DocumentChunk
	for _, c := range s.chunks {
		if c.KnowledgeBaseID == kbID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FAQs

func (s *MemoryStore) InsertFAQ(_ context.Context, faq *models.FAQ) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faqs = append(s.faqs, *faq)
	return nil
}

func (s *MemoryStore) GetFAQ(_ context.Context, id string) (*models.FAQ, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.faqs {
		if f.ID == id {
			faq := f
			return &faq, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateFAQ(_ context.Context, faq *models.FAQ) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.faqs {
		if f.ID == faq.ID {
			faq.UpdatedAt = time.Now()
			s.faqs[i] = *faq
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) DeleteFAQ(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.faqs {
		if f.ID == id {
			s.faqs = append(s.faqs[:i], s.faqs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) ListFAQs(_ context.Context, kbID string) ([]models.FAQ, error) {
	return s.filterFAQs(kbID, false), nil
}

func (s *MemoryStore) ListActiveFAQs(_ context.Context, kbID string) ([]models.FAQ, error) {
	return s.filterFAQs(kbID, true), nil
}

func (s *MemoryStore) filterFAQs(kbID string, activeOnly bool) []models.FAQ {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FAQ, 0)
	for _, f := range s.faqs {
		if f.KnowledgeBaseID != kbID {
			continue
		}
		if activeOnly && !f.Active {
			continue
		}
		out = append(out, f)
	}
	return out
}

package services

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"engage-kb-platform/internal/store"
	"engage-kb-platform/internal/telemetry"
	"engage-kb-platform/models"
)

// DefaultTopK caps the chunk candidates returned per query.
const DefaultTopK = 5

// RetrievalService answers "which passages are relevant to this
// query" with lexical matching. OR semantics across keywords and the
// recency/full-set fallbacks are deliberate: tenant corpora are small,
// so false positives beat empty result screens.
type RetrievalService struct {
	store   store.Store
	topK    int
	metrics *telemetry.Metrics
}

func NewRetrievalService(st store.Store, topK int, metrics *telemetry.Metrics) *RetrievalService {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &RetrievalService{store: st, topK: topK, metrics: metrics}
}

// Retrieve fetches candidate chunks and FAQs for the query. The
// knowledge base id must already be authorized against the caller's
// tenant. Retrieval is read-only and side-effect free.
func (s *RetrievalService) Retrieve(ctx context.Context, kbID, query string, topK int) (*models.RetrievalResult, error) {
	tracer := otel.Tracer("retrieval")
	ctx, span := tracer.Start(ctx, "retrieval.retrieve")
	defer span.End()

	if topK <= 0 {
		topK = s.topK
	}
	keywords := ExtractKeywords(query)
	span.SetAttributes(
		attribute.String("retrieval.kb_id", kbID),
		attribute.Int("retrieval.keywords", len(keywords)),
		attribute.Int("retrieval.top_k", topK),
	)

	chunks, fellBack, err := s.retrieveChunks(ctx, kbID, keywords, topK)
	if err != nil {
		return nil, fmt.Errorf("chunk retrieval: %w", err)
	}

	faqs, err := s.retrieveFAQs(ctx, kbID, keywords)
	if err != nil {
		return nil, fmt.Errorf("faq retrieval: %w", err)
	}

	result := &models.RetrievalResult{
		Chunks:  chunks,
		FAQs:    faqs,
		Sources: len(chunks) + len(faqs),
	}
	span.SetAttributes(
		attribute.Int("retrieval.chunks", len(chunks)),
		attribute.Int("retrieval.faqs", len(faqs)),
		attribute.Bool("retrieval.recency_fallback", fellBack),
	)
	if s.metrics != nil {
		s.metrics.RecordQuery(kbID, fellBack)
	}
	return result, nil
}

// retrieveChunks searches for lexical matches and falls back to the
// most recently created chunks when nothing matches, so the caller is
// never left with an empty result unless the corpus itself is empty.
func (s *RetrievalService) retrieveChunks(ctx context.Context, kbID string, keywords []string, topK int) ([]models.DocumentChunk, bool, error) {
	if len(keywords) > 0 {
		chunks, err := s.store.SearchChunks(ctx, kbID, keywords, topK)
		if err != nil {
			return nil, false, err
		}
		if len(chunks) > 0 {
			return chunks, false, nil
		}
	}
	chunks, err := s.store.RecentChunks(ctx, kbID, topK)
	if err != nil {
		return nil, false, err
	}
	return chunks, true, nil
}

// retrieveFAQs filters the active FAQ set by keyword; an empty
// filtered set falls back to the full active set, uncapped.
func (s *RetrievalService) retrieveFAQs(ctx context.Context, kbID string, keywords []string) ([]models.FAQ, error) {
	faqs, err := s.store.ListActiveFAQs(ctx, kbID)
	if err != nil {
		return nil, err
	}
	if len(keywords) == 0 {
		return faqs, nil
	}

	var matched []models.FAQ
	for _, faq := range faqs {
		if faqMatches(faq, keywords) {
			matched = append(matched, faq)
		}
	}
	if len(matched) > 0 {
		return matched, nil
	}
	return faqs, nil
}

func faqMatches(faq models.FAQ, keywords []string) bool {
	question := strings.ToLower(faq.Question)
	answer := strings.ToLower(faq.Answer)
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if strings.Contains(question, kw) || strings.Contains(answer, kw) {
			return true
		}
	}
	return false
}

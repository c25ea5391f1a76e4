package store

import (
	"context"
	"errors"
	"time"

	"engage-kb-platform/models"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Store is the document-store collaborator for the knowledge core.
// Every entity is tenant-scoped; callers are expected to have already
// authorized the knowledge base against the caller's tenant before
// reaching for chunk or FAQ data.
//
// Lexical chunk matching lives behind this interface so an alternative
// scorer (e.g. an embedding-backed one) could be substituted without
// touching the ingestion pipeline or the data model.
type Store interface {
	// Knowledge bases
	CreateKnowledgeBase(ctx context.Context, kb *models.KnowledgeBase) error
	GetKnowledgeBase(ctx context.Context, id string) (*models.KnowledgeBase, error)
	ListKnowledgeBases(ctx context.Context, tenantID string) ([]models.KnowledgeBase, error)
	ListAllKnowledgeBases(ctx context.Context) ([]models.KnowledgeBase, error)
	IncrementDocumentCount(ctx context.Context, kbID string, delta int) error
	SetDocumentCount(ctx context.Context, kbID string, count int) error

	// Documents
	InsertDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	// ResetDocumentForReingest atomically increments the document's
	// revision, stores the new content and puts it back into processing
	// state with a zero chunk count. The increment must be a single
	// storage-side operation so concurrent re-ingests never mint the
	// same revision. Returns the document as written.
	ResetDocumentForReingest(ctx context.Context, id, content string) (*models.Document, error)
	// MarkDocumentCompleted and MarkDocumentFailed are conditional on
	// the document still being at the given revision and in processing
	// state; they report whether the write matched so stale background
	// work can detect it lost the race.
	MarkDocumentCompleted(ctx context.Context, id string, revision, chunkCount int) (bool, error)
	MarkDocumentFailed(ctx context.Context, id string, revision int, errMsg string) (bool, error)
	DeleteDocument(ctx context.Context, id string) error
	CountDocuments(ctx context.Context, kbID string) (int, error)
	ListStuckDocuments(ctx context.Context, olderThan time.Time) ([]models.Document, error)

	// Chunks
	InsertChunks(ctx context.Context, chunks []models.DocumentChunk) error
	DeleteChunksByDocument(ctx context.Context, documentID string) error
	// DeleteChunksByAttempt removes only the rows written by one
	// chunking run, identified by its attempt id. Revision alone is not
	// a safe scope: duplicate deliveries of the same task share it.
	DeleteChunksByAttempt(ctx context.Context, documentID, attemptID string) error
	// SearchChunks returns up to limit chunks under the knowledge base
	// whose content contains any of the keywords, case-insensitively.
	SearchChunks(ctx context.Context, kbID string, keywords []string, limit int) ([]models.DocumentChunk, error)
	// RecentChunks returns the most recently created chunks for the
	// knowledge base, newest first.
	RecentChunks(ctx context.Context, kbID string, limit int) ([]models.DocumentChunk, error)

	// FAQs
	InsertFAQ(ctx context.Context, faq *models.FAQ) error
	GetFAQ(ctx context.Context, id string) (*models.FAQ, error)
	UpdateFAQ(ctx context.Context, faq *models.FAQ) error
	DeleteFAQ(ctx context.Context, id string) error
	ListFAQs(ctx context.Context, kbID string) ([]models.FAQ, error)
	ListActiveFAQs(ctx context.Context, kbID string) ([]models.FAQ, error)
}

package models

import "time"

// Document processing status constants
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// KnowledgeBase is a tenant-scoped container of documents and FAQs.
// DocumentCount is denormalized and recomputed after deletes so it
// self-heals drift from failed or concurrent operations.
type KnowledgeBase struct {
	ID            string            `bson:"_id" json:"id"`
	TenantID      string            `bson:"tenant_id" json:"tenant_id"`
	Name          string            `bson:"name" json:"name"`
	DocumentCount int               `bson:"document_count" json:"document_count"`
	Settings      map[string]string `bson:"settings,omitempty" json:"settings,omitempty"`
	CreatedAt     time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `bson:"updated_at" json:"updated_at"`
}

// Document is one ingested source text. Content may be empty when only
// a reference was stored; such documents complete immediately with zero
// chunks. Revision increments on every (re)ingest and fences stale
// background chunking work.
type Document struct {
	ID              string    `bson:"_id" json:"id"`
	KnowledgeBaseID string    `bson:"kb_id" json:"kb_id"`
	TenantID        string    `bson:"tenant_id" json:"tenant_id"`
	Title           string    `bson:"title" json:"title"`
	Content         string    `bson:"content,omitempty" json:"content,omitempty"`
	Status          string    `bson:"status" json:"status"` // processing, completed, failed
	ChunkCount      int       `bson:"chunk_count" json:"chunk_count"`
	ErrorMessage    string    `bson:"error_message,omitempty" json:"error_message,omitempty"`
	Revision        int       `bson:"revision" json:"-"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updated_at"`
}

// DocumentChunk is one retrievable unit of a document. Chunks are
// immutable; re-ingesting a document replaces its chunk set wholesale.
// KnowledgeBaseID and TenantID are denormalized so retrieval can filter
// without joining through documents. AttemptID identifies the chunking
// run that produced the row: task delivery is at-least-once, so a run
// that loses the completion race must remove only its own rows.
type DocumentChunk struct {
	ID              string    `bson:"_id" json:"id"`
	DocumentID      string    `bson:"document_id" json:"document_id"`
	KnowledgeBaseID string    `bson:"kb_id" json:"kb_id"`
	TenantID        string    `bson:"tenant_id" json:"tenant_id"`
	ChunkIndex      int       `bson:"chunk_index" json:"chunk_index"`
	Content         string    `bson:"content" json:"content"`
	TokenCount      int       `bson:"token_count" json:"token_count"` // estimated, not authoritative
	Revision        int       `bson:"revision" json:"-"`
	AttemptID       string    `bson:"attempt_id" json:"-"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
}

// FAQ is a manually curated question/answer pair. Only active FAQs
// participate in retrieval.
type FAQ struct {
	ID              string    `bson:"_id" json:"id"`
	KnowledgeBaseID string    `bson:"kb_id" json:"kb_id"`
	TenantID        string    `bson:"tenant_id" json:"tenant_id"`
	Question        string    `bson:"question" json:"question"`
	Answer          string    `bson:"answer" json:"answer"`
	Category        string    `bson:"category,omitempty" json:"category,omitempty"`
	Active          bool      `bson:"active" json:"active"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updated_at"`
}

// RetrievalResult carries the candidate passages for one query.
// Sources is the combined count exposed for observability.
type RetrievalResult struct {
	Chunks  []DocumentChunk `json:"chunks"`
	FAQs    []FAQ           `json:"faqs"`
	Sources int             `json:"sources"`
}

// Request/response shapes for the HTTP surface

type CreateKnowledgeBaseRequest struct {
	Name     string            `json:"name" binding:"required"`
	Settings map[string]string `json:"settings"`
}

type IngestRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content"`
}

type ReingestRequest struct {
	Content string `json:"content"`
}

type FAQRequest struct {
	Question string `json:"question" binding:"required"`
	Answer   string `json:"answer" binding:"required"`
	Category string `json:"category"`
	Active   *bool  `json:"active"`
}

type QueryRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k"`
}

type QueryResponse struct {
	Query   string `json:"query"`
	Answer  string `json:"answer"`
	Sources int    `json:"sources"`
}

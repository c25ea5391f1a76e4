package routes

import (
	"errors"
	"net/http"
	"time"

	"engage-kb-platform/internal/config"
	"engage-kb-platform/internal/logger"
	"engage-kb-platform/internal/store"
	"engage-kb-platform/middleware"
	"engage-kb-platform/models"
	"engage-kb-platform/services"
	"engage-kb-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KnowledgeDeps bundles what the knowledge base routes need.
type KnowledgeDeps struct {
	Config      *config.Config
	Store       store.Store
	Ingestion   *services.IngestionService
	Retrieval   *services.RetrievalService
	Synthesizer *services.Synthesizer
	Redis       *redis.Client
}

func SetupKnowledgeRoutes(router *gin.Engine, deps KnowledgeDeps, authMiddleware *middleware.AuthMiddleware) {
	kb := router.Group("/kb")
	kb.Use(authMiddleware.RequireAuth())

	// Create knowledge base
	kb.POST("", func(c *gin.Context) {
		var req models.CreateKnowledgeBaseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		now := time.Now()
		base := &models.KnowledgeBase{
			ID:        uuid.NewString(),
			TenantID:  middleware.GetTenantID(c),
			Name:      req.Name,
			Settings:  req.Settings,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := deps.Store.CreateKnowledgeBase(c.Request.Context(), base); err != nil {
			logger.Error("knowledge base create failed", "error", err)
			utils.RespondWithInternalError(c, "Failed to create knowledge base", nil)
			return
		}
		c.JSON(http.StatusCreated, base)
	})

	// List knowledge bases for the caller's tenant
	kb.GET("", func(c *gin.Context) {
		bases, err := deps.Store.ListKnowledgeBases(c.Request.Context(), middleware.GetTenantID(c))
		if err != nil {
			logger.Error("knowledge base list failed", "error", err)
			utils.RespondWithInternalError(c, "Failed to list knowledge bases", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"knowledge_bases": bases})
	})

	// Get one knowledge base
	kb.GET("/:id", func(c *gin.Context) {
		base, ok := authorizeKB(c, deps, c.Param("id"))
		if !ok {
			return
		}
		c.JSON(http.StatusOK, base)
	})

	// Ingest a raw text document
	kb.POST("/:id/documents", func(c *gin.Context) {
		base, ok := authorizeKB(c, deps, c.Param("id"))
		if !ok {
			return
		}

		var req models.IngestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		if int64(len(req.Content)) > deps.Config.MaxDocumentBytes {
			utils.RespondWithError(c, http.StatusRequestEntityTooLarge,
				"document_too_large",
				"Document content exceeds the maximum allowed size",
				gin.H{"max_bytes": deps.Config.MaxDocumentBytes})
			return
		}

		doc, err := deps.Ingestion.Ingest(c.Request.Context(), base.ID, base.TenantID, req.Title, req.Content)
		if err != nil {
			logger.Error("document ingest failed", "kb_id", base.ID, "error", err)
			utils.RespondWithInternalError(c, "Failed to ingest document", nil)
			return
		}
		c.JSON(http.StatusAccepted, doc)
	})

	// Document processing status
	kb.GET("/:id/documents/:docID", func(c *gin.Context) {
		_, ok := authorizeKB(c, deps, c.Param("id"))
		if !ok {
			return
		}

		doc, ok := loadDocument(c, deps, c.Param("id"), c.Param("docID"))
		if !ok {
			return
		}
		c.JSON(http.StatusOK, doc)
	})

	// Re-ingest replaces the document's content
	kb.PUT("/:id/documents/:docID", func(c *gin.Context) {
		_, ok := authorizeKB(c, deps, c.Param("id"))
		if !ok {
			return
		}
		doc, ok := loadDocument(c, deps, c.Param("id"), c.Param("docID"))
		if !ok {
			return
		}

		var req models.ReingestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		if int64(len(req.Content)) > deps.Config.MaxDocumentBytes {
			utils.RespondWithError(c, http.StatusRequestEntityTooLarge,
				"document_too_large",
				"Document content exceeds the maximum allowed size",
				gin.H{"max_bytes": deps.Config.MaxDocumentBytes})
			return
		}

		updated, err := deps.Ingestion.Reingest(c.Request.Context(), doc.ID, req.Content)
		if err != nil {
			logger.Error("document reingest failed", "document_id", doc.ID, "error", err)
			utils.RespondWithInternalError(c, "Failed to re-ingest document", nil)
			return
		}
		c.JSON(http.StatusAccepted, updated)
	})

	// Delete a document and its chunks
	kb.DELETE("/:id/documents/:docID", func(c *gin.Context) {
		_, ok := authorizeKB(c, deps, c.Param("id"))
		if !ok {
			return
		}
		doc, ok := loadDocument(c, deps, c.Param("id"), c.Param("docID"))
		if !ok {
			return
		}

		if err := deps.Ingestion.Delete(c.Request.Context(), doc.ID); err != nil {
			logger.Error("document delete failed", "document_id", doc.ID, "error", err)
			utils.RespondWithInternalError(c, "Failed to delete document", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": doc.ID})
	})

	// FAQ lifecycle
	kb.POST("/:id/faqs", func(c *gin.Context) {
		base, ok := authorizeKB(c, deps, c.Param("id"))
		if !ok {
			return
		}

		var req models.FAQRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		active := true
		if req.Active != nil {
			active = *req.Active
		}
		now := time.Now()
		faq := &models.FAQ{
			ID:              uuid.NewString(),
			KnowledgeBaseID: base.ID,
			TenantID:        base.TenantID,
			Question:        req.Question,
			Answer:          req.Answer,
			Category:        req.Category,
			Active:          active,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := deps.Store.InsertFAQ(c.Request.Context(), faq); err != nil {
			logger.Error("faq create failed", "kb_id", base.ID, "error", err)
			utils.RespondWithInternalError(c, "Failed to create FAQ", nil)
			return
		}
		c.JSON(http.StatusCreated, faq)
	})

	kb.GET("/:id/faqs", func(c *gin.Context) {
		base, ok := authorizeKB(c, deps, c.Param("id"))
		if !ok {
			return
		}

		faqs, err := deps.Store.ListFAQs(c.Request.Context(), base.ID)
		if err != nil {
			logger.Error("faq list failed", "kb_id", base.ID, "error", err)
			utils.RespondWithInternalError(c, "Failed to list FAQs", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"faqs": faqs})
	})

	kb.PUT("/:id/faqs/:faqID", func(c *gin.Context) {
		base, ok := authorizeKB(c, deps, c.Param("id"))
		if !ok {
			return
		}
		faq, ok := loadFAQ(c, deps, base.ID, c.Param("faqID"))
		if !ok {
			return
		}

		var req models.FAQRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		faq.Question = req.Question
		faq.Answer = req.Answer
		faq.Category = req.Category
		if req.Active != nil {
			faq.Active = *req.Active
		}
		faq.UpdatedAt = time.Now()
		if err := deps.Store.UpdateFAQ(c.Request.Context(), faq); err != nil {
			logger.Error("faq update failed", "faq_id", faq.ID, "error", err)
			utils.RespondWithInternalError(c, "Failed to update FAQ", nil)
			return
		}
		c.JSON(http.StatusOK, faq)
	})

	kb.DELETE("/:id/faqs/:faqID", func(c *gin.Context) {
		base, ok := authorizeKB(c, deps, c.Param("id"))
		if !ok {
			return
		}
		faq, ok := loadFAQ(c, deps, base.ID, c.Param("faqID"))
		if !ok {
			return
		}

		if err := deps.Store.DeleteFAQ(c.Request.Context(), faq.ID); err != nil {
			logger.Error("faq delete failed", "faq_id", faq.ID, "error", err)
			utils.RespondWithInternalError(c, "Failed to delete FAQ", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": faq.ID})
	})

	// Query: retrieve then synthesize. Retrieval failures degrade to an
	// empty context, never to an error response.
	query := kb.Group("")
	if deps.Redis != nil {
		query.Use(middleware.RateLimitMiddleware(deps.Redis, deps.Config))
	}
	query.POST("/:id/query", func(c *gin.Context) {
		base, ok := authorizeKB(c, deps, c.Param("id"))
		if !ok {
			return
		}

		var req models.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		result, err := deps.Retrieval.Retrieve(c.Request.Context(), base.ID, req.Query, req.TopK)
		if err != nil {
			logger.Error("retrieval failed, answering without context", "kb_id", base.ID, "error", err)
			result = &models.RetrievalResult{}
		}

		answer := deps.Synthesizer.Synthesize(c.Request.Context(), req.Query, result.Chunks, result.FAQs)
		c.JSON(http.StatusOK, models.QueryResponse{
			Query:   req.Query,
			Answer:  answer,
			Sources: result.Sources,
		})
	})
}

// authorizeKB loads the knowledge base and checks it belongs to the
// caller's tenant. A foreign or missing base answers 404 either way so
// existence does not leak across tenants.
func authorizeKB(c *gin.Context, deps KnowledgeDeps, kbID string) (*models.KnowledgeBase, bool) {
	base, err := deps.Store.GetKnowledgeBase(c.Request.Context(), kbID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondWithNotFound(c, "Knowledge base not found")
		} else {
			logger.Error("knowledge base lookup failed", "kb_id", kbID, "error", err)
			utils.RespondWithInternalError(c, "Failed to load knowledge base", nil)
		}
		return nil, false
	}
	if base.TenantID != middleware.GetTenantID(c) {
		utils.RespondWithNotFound(c, "Knowledge base not found")
		return nil, false
	}
	return base, true
}

func loadDocument(c *gin.Context, deps KnowledgeDeps, kbID, docID string) (*models.Document, bool) {
	doc, err := deps.Store.GetDocument(c.Request.Context(), docID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondWithNotFound(c, "Document not found")
		} else {
			logger.Error("document lookup failed", "document_id", docID, "error", err)
			utils.RespondWithInternalError(c, "Failed to load document", nil)
		}
		return nil, false
	}
	if doc.KnowledgeBaseID != kbID {
		utils.RespondWithNotFound(c, "Document not found")
		return nil, false
	}
	return doc, true
}

func loadFAQ(c *gin.Context, deps KnowledgeDeps, kbID, faqID string) (*models.FAQ, bool) {
	faq, err := deps.Store.GetFAQ(c.Request.Context(), faqID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondWithNotFound(c, "FAQ not found")
		} else {
			logger.Error("faq lookup failed", "faq_id", faqID, "error", err)
			utils.RespondWithInternalError(c, "Failed to load FAQ", nil)
		}
		return nil, false
	}
	if faq.KnowledgeBaseID != kbID {
		utils.RespondWithNotFound(c, "FAQ not found")
		return nil, false
	}
	return faq, true
}

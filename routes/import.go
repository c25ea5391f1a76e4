package routes

import (
	"io"
	"net/http"
	"net/url"
	"strings"

	"engage-kb-platform/internal/logger"
	"engage-kb-platform/middleware"
	"engage-kb-platform/services"
	"engage-kb-platform/utils"

	"github.com/gin-gonic/gin"
)

type importURLRequest struct {
	URL   string `json:"url" binding:"required"`
	Title string `json:"title"`
}

// SetupImportRoutes registers the PDF upload and URL import endpoints.
// Both reduce their source to plain text and feed the regular ingest
// path, so imported documents chunk and retrieve like any other.
func SetupImportRoutes(router *gin.Engine, deps KnowledgeDeps, authMiddleware *middleware.AuthMiddleware) {
	imports := router.Group("/kb")
	imports.Use(authMiddleware.RequireAuth())

	webImporter := services.NewWebImporter(0)

	imports.POST("/:id/documents/pdf", func(c *gin.Context) {
		base, ok := authorizeKB(c, deps, c.Param("id"))
		if !ok {
			return
		}

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "PDF file is required in the 'file' form field", gin.H{"error": err.Error()})
			return
		}
		defer file.Close()

		if header.Size > deps.Config.MaxUploadSize {
			utils.RespondWithError(c, http.StatusRequestEntityTooLarge,
				"upload_too_large",
				"Uploaded file exceeds the maximum allowed size",
				gin.H{"max_bytes": deps.Config.MaxUploadSize})
			return
		}

		content, err := io.ReadAll(io.LimitReader(file, deps.Config.MaxUploadSize+1))
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read uploaded file", nil)
			return
		}
		if int64(len(content)) > deps.Config.MaxUploadSize {
			utils.RespondWithError(c, http.StatusRequestEntityTooLarge,
				"upload_too_large",
				"Uploaded file exceeds the maximum allowed size",
				gin.H{"max_bytes": deps.Config.MaxUploadSize})
			return
		}

		text, pages, err := services.ExtractPDFText(content)
		if err != nil {
			logger.Error("pdf extraction failed", "kb_id", base.ID, "file", header.Filename, "error", err)
			utils.RespondWithError(c, http.StatusUnprocessableEntity,
				"pdf_extraction_failed",
				"Could not extract text from the uploaded PDF",
				gin.H{"error": err.Error()})
			return
		}

		title := c.PostForm("title")
		if title == "" {
			title = strings.TrimSuffix(header.Filename, ".pdf")
		}

		doc, err := deps.Ingestion.Ingest(c.Request.Context(), base.ID, base.TenantID, title, text)
		if err != nil {
			logger.Error("pdf ingest failed", "kb_id", base.ID, "error", err)
			utils.RespondWithInternalError(c, "Failed to ingest document", nil)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"document": doc,
			"pages":    pages,
		})
	})

	imports.POST("/:id/documents/url", func(c *gin.Context) {
		base, ok := authorizeKB(c, deps, c.Param("id"))
		if !ok {
			return
		}

		var req importURLRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		parsed, err := url.Parse(req.URL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			utils.RespondWithBadRequest(c, "URL must be an absolute http(s) URL", nil)
			return
		}

		page, err := webImporter.Fetch(c.Request.Context(), req.URL)
		if err != nil {
			logger.Error("url import failed", "kb_id", base.ID, "url", req.URL, "error", err)
			utils.RespondWithError(c, http.StatusUnprocessableEntity,
				"url_import_failed",
				"Could not fetch or parse the page",
				gin.H{"error": err.Error()})
			return
		}

		title := req.Title
		if title == "" {
			title = page.Title
		}

		doc, err := deps.Ingestion.Ingest(c.Request.Context(), base.ID, base.TenantID, title, page.Text)
		if err != nil {
			logger.Error("url ingest failed", "kb_id", base.ID, "error", err)
			utils.RespondWithInternalError(c, "Failed to ingest document", nil)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"document": doc,
			"source":   page.URL,
		})
	})
}

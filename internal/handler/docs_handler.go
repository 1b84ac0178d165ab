package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/proplens/go-crm-agent/internal/adapter/extract"
	"github.com/proplens/go-crm-agent/internal/domain"
	"github.com/proplens/go-crm-agent/internal/port"
	"github.com/proplens/go-crm-agent/internal/service"
)

// DocsHandler exposes brochure ingestion and semantic search.
type DocsHandler struct {
	ingest    *service.IngestService
	retrieval *service.RetrievalService
}

// NewDocsHandler creates a new documents handler.
func NewDocsHandler(ingest *service.IngestService, retrieval *service.RetrievalService) *DocsHandler {
	return &DocsHandler{ingest: ingest, retrieval: retrieval}
}

// Register sets up document routes.
func (h *DocsHandler) Register(router fiber.Router) {
	docs := router.Group("/docs")
	docs.Post("/upload", h.Upload)
	docs.Get("/search", h.Search)
}

// Upload ingests 1..n PDF brochures. The project name comes from the
// ?project= parameter or, failing that, the PDF Title metadata; uploads
// without either are rejected so every chunk has proper attribution.
func (h *DocsHandler) Upload(c fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil || len(form.File["files"]) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "at least one file is required"})
	}

	project := strings.TrimSpace(c.Query("project"))
	force := c.Query("force") == "true"

	var results []*domain.IngestReport
	totalChunks, totalPages, totalOCR := 0, 0, 0

	for _, fileHeader := range form.File["files"] {
		file, err := fileHeader.Open()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "could not read upload: " + fileHeader.Filename})
		}
		storedPath, documentID, _, err := h.ingest.StoreDocument(file, fileHeader.Filename, force)
		file.Close()
		if err != nil {
			if errors.Is(err, port.ErrNotPDF) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": port.ErrNotPDF.Error()})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}

		projectName := project
		if projectName == "" {
			projectName = extract.ReadTitle(storedPath)
		}
		if projectName == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "project name required for '" + fileHeader.Filename +
					"': provide ?project=... or set the PDF Title metadata",
			})
		}

		report, err := h.ingest.IngestPDF(c.Context(), storedPath, projectName)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		report.DocumentID = documentID
		report.StoredPath = storedPath
		report.OriginalFilename = fileHeader.Filename

		totalChunks += report.InsertedChunks
		totalPages += report.PagesProcessed
		totalOCR += report.OCRPages
		results = append(results, report)
	}

	return c.JSON(fiber.Map{
		"files":           results,
		"inserted_chunks": totalChunks,
		"pages_processed": totalPages,
		"ocr_pages":       totalOCR,
	})
}

// Search answers a semantic question over the ingested brochures.
func (h *DocsHandler) Search(c fiber.Ctx) error {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "q is required"})
	}

	k, err := strconv.Atoi(c.Query("k", "4"))
	if err != nil || k < 1 || k > 20 {
		k = service.DefaultTopK
	}
	project := strings.TrimSpace(c.Query("project"))

	answer, sources, err := h.retrieval.Answer(c.Context(), q, k, project)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"answer":  answer,
		"sources": sources,
	})
}

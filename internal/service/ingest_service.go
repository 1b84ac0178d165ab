package service

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/proplens/go-crm-agent/internal/domain"
	"github.com/proplens/go-crm-agent/internal/port"
)

// IngestService orchestrates one document's pipeline: extract pages, chunk,
// deduplicate, embed and upsert. Chunk ids are content hashes, so re-running
// the same document with the same parameters overwrites instead of
// duplicating.
type IngestService struct {
	extractor port.PageExtractor
	chunker   *TokenChunker
	ai        port.AIProvider
	index     port.VectorIndex
	docsDir   string
}

// NewIngestService creates an ingest service storing documents under docsDir.
func NewIngestService(extractor port.PageExtractor, chunker *TokenChunker, ai port.AIProvider, index port.VectorIndex, docsDir string) *IngestService {
	return &IngestService{
		extractor: extractor,
		chunker:   chunker,
		ai:        ai,
		index:     index,
		docsDir:   docsDir,
	}
}

// StoreDocument writes the uploaded bytes under the documents directory,
// named by their sha256 content hash. Re-uploading identical bytes reuses
// the stored file unless force is set. Returns the stored path, the content
// hash and whether the document already existed.
func (s *IngestService) StoreDocument(r io.Reader, originalName string, force bool) (string, string, bool, error) {
	if !strings.HasSuffix(strings.ToLower(originalName), ".pdf") {
		return "", "", false, port.ErrNotPDF
	}
	if err := os.MkdirAll(s.docsDir, 0o755); err != nil {
		return "", "", false, fmt.Errorf("create documents dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.docsDir, "upload-*.pdf")
	if err != nil {
		return "", "", false, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hasher), r); err != nil {
		tmp.Close()
		return "", "", false, fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", "", false, fmt.Errorf("close upload: %w", err)
	}

	documentID := hex.EncodeToString(hasher.Sum(nil))
	finalPath := filepath.Join(s.docsDir, documentID+".pdf")

	if _, err := os.Stat(finalPath); err == nil && !force {
		// same content already stored; keep it
		return finalPath, documentID, true, nil
	}
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		return "", "", false, fmt.Errorf("place document: %w", err)
	}
	return finalPath, documentID, false, nil
}

// IngestPDF runs the full pipeline for one stored document and reports what
// was inserted. Identical spans within the run are not double-embedded or
// double-upserted.
func (s *IngestService) IngestPDF(ctx context.Context, pdfPath, projectName string) (*domain.IngestReport, error) {
	projectName = strings.TrimSpace(projectName)
	if projectName == "" {
		return nil, port.ErrProjectRequired
	}

	pages, err := s.extractor.ExtractPages(ctx, pdfPath)
	if err != nil {
		return nil, fmt.Errorf("extract pages: %w", err)
	}

	source := filepath.Base(pdfPath)
	chunks := s.chunker.Chunk(pages, projectName, source)

	// de-dup identical spans within this run
	seen := make(map[string]struct{}, len(chunks))
	uniq := make([]domain.Chunk, 0, len(chunks))
	for _, c := range chunks {
		c.ID = ChunkID(c.Text, c.Metadata)
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		uniq = append(uniq, c)
	}

	ocrPages := 0
	for _, p := range pages {
		if p.OCR {
			ocrPages++
		}
	}

	report := &domain.IngestReport{
		ProjectName:    projectName,
		PagesProcessed: len(pages),
		OCRPages:       ocrPages,
	}
	if len(uniq) == 0 {
		slog.Warn("document produced no chunks", "path", pdfPath, "project", projectName)
		return report, nil
	}

	texts := make([]string, len(uniq))
	for i, c := range uniq {
		texts[i] = c.Text
	}
	vectors, err := s.ai.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(uniq) {
		return nil, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(uniq))
	}

	records := make([]domain.VectorRecord, len(uniq))
	for i, c := range uniq {
		records[i] = domain.VectorRecord{
			ID:          c.ID,
			Content:     c.Text,
			ProjectName: c.Metadata.ProjectName,
			Metadata: map[string]any{
				"project_name": c.Metadata.ProjectName,
				"source":       c.Metadata.Source,
				"page":         c.Metadata.Page,
				"char_count":   c.Metadata.CharCount,
				"token_count":  c.Metadata.TokenCount,
			},
			Vector: vectors[i],
		}
	}

	inserted, err := s.index.Upsert(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("upsert chunks: %w", err)
	}

	report.InsertedChunks = inserted
	slog.Info("document ingested",
		"source", source,
		"project", projectName,
		"pages", len(pages),
		"ocr_pages", ocrPages,
		"chunks", inserted,
	)
	return report, nil
}

// ChunkID derives the content-addressed identifier of a chunk from its
// provenance and the first 80 characters of its text. Identical spans get
// identical ids, which makes the upsert path idempotent.
func ChunkID(text string, meta domain.ChunkMetadata) string {
	prefix := text
	if len(prefix) > 80 {
		prefix = prefix[:80]
	}
	key := fmt.Sprintf("%s|%s|%d|%s", meta.ProjectName, meta.Source, meta.Page, prefix)
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proplens/go-crm-agent/internal/domain"
	"github.com/proplens/go-crm-agent/internal/port"
)

func newTestIngest(t *testing.T, extractor port.PageExtractor, index port.VectorIndex) *IngestService {
	t.Helper()
	chunker, err := NewTokenChunkerWithTokenizer(newWordTokenizer(), 10, 3)
	require.NoError(t, err)
	return NewIngestService(extractor, chunker, &fakeAI{}, index, t.TempDir())
}

func TestStoreDocumentContentAddressed(t *testing.T) {
	ingest := newTestIngest(t, &fakeExtractor{}, &fakeIndex{})

	path, docID, existed, err := ingest.StoreDocument(strings.NewReader("brochure bytes"), "Beachgate.PDF", false)
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Len(t, docID, 64, "sha256 hex digest")
	assert.Equal(t, docID+".pdf", filepath.Base(path))

	stored, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "brochure bytes", string(stored))

	// Same bytes under another filename resolve to the same document.
	path2, docID2, existed, err := ingest.StoreDocument(strings.NewReader("brochure bytes"), "copy.pdf", false)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, docID, docID2)
	assert.Equal(t, path, path2)

	// force re-stores instead of reusing.
	_, _, existed, err = ingest.StoreDocument(strings.NewReader("brochure bytes"), "copy.pdf", true)
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestStoreDocumentRejectsNonPDF(t *testing.T) {
	ingest := newTestIngest(t, &fakeExtractor{}, &fakeIndex{})

	_, _, _, err := ingest.StoreDocument(strings.NewReader("x"), "leads.csv", false)
	assert.ErrorIs(t, err, port.ErrNotPDF)
}

func TestIngestPDFRequiresProject(t *testing.T) {
	ingest := newTestIngest(t, &fakeExtractor{}, &fakeIndex{})

	_, err := ingest.IngestPDF(context.Background(), "/tmp/doc.pdf", "   ")
	assert.ErrorIs(t, err, port.ErrProjectRequired)
}

func TestIngestPDFEmbedsAndUpserts(t *testing.T) {
	index := &fakeIndex{}
	extractor := &fakeExtractor{pages: []domain.Page{
		wordPage(1, 1, 12),
		{Number: 2, Text: "w13 w14 w15", OCR: true, CharCount: 11},
	}}
	ingest := newTestIngest(t, extractor, index)

	report, err := ingest.IngestPDF(context.Background(), "/data/brochures/abc.pdf", "Beachgate")
	require.NoError(t, err)
	assert.Equal(t, 2, report.PagesProcessed)
	assert.Equal(t, 1, report.OCRPages)
	assert.Equal(t, 2, report.InsertedChunks)

	require.Len(t, index.upserted, 2)
	for _, rec := range index.upserted {
		assert.Len(t, rec.ID, 32, "md5 hex chunk id")
		assert.Equal(t, "Beachgate", rec.ProjectName)
		assert.Equal(t, "Beachgate", rec.Metadata["project_name"])
		assert.Equal(t, "abc.pdf", rec.Metadata["source"])
		assert.NotEmpty(t, rec.Vector)
	}
}

func TestIngestPDFDeduplicatesIdenticalSpans(t *testing.T) {
	index := &fakeIndex{}
	// Both pages carry the same short text on the same page number span,
	// so their chunks hash identically.
	extractor := &fakeExtractor{pages: []domain.Page{
		{Number: 1, Text: "pool gym spa"},
	}}
	ingest := newTestIngest(t, extractor, index)

	report, err := ingest.IngestPDF(context.Background(), "/data/a.pdf", "P")
	require.NoError(t, err)
	first := report.InsertedChunks

	// Re-ingesting yields the exact same ids, so the index overwrites.
	report2, err := ingest.IngestPDF(context.Background(), "/data/a.pdf", "P")
	require.NoError(t, err)
	assert.Equal(t, first, report2.InsertedChunks)

	ids := map[string]int{}
	for _, rec := range index.upserted {
		ids[rec.ID]++
	}
	for id, n := range ids {
		assert.Equal(t, 2, n, "chunk %s must hash identically across runs", id)
	}
}

func TestIngestPDFEmptyDocument(t *testing.T) {
	index := &fakeIndex{}
	ingest := newTestIngest(t, &fakeExtractor{}, index)

	report, err := ingest.IngestPDF(context.Background(), "/data/empty.pdf", "P")
	require.NoError(t, err)
	assert.Zero(t, report.InsertedChunks)
	assert.Empty(t, index.upserted, "nothing to embed, nothing upserted")
}

func TestIngestPDFExtractionErrorPropagates(t *testing.T) {
	ingest := newTestIngest(t, &fakeExtractor{err: errors.New("corrupt xref table")}, &fakeIndex{})

	_, err := ingest.IngestPDF(context.Background(), "/data/bad.pdf", "P")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt xref table")
}

func TestChunkIDStableAndProvenanceSensitive(t *testing.T) {
	meta := domain.ChunkMetadata{ProjectName: "Beachgate", Source: "a.pdf", Page: 3}

	id1 := ChunkID("infinity pool and gym", meta)
	id2 := ChunkID("infinity pool and gym", meta)
	assert.Equal(t, id1, id2)

	otherPage := meta
	otherPage.Page = 4
	assert.NotEqual(t, id1, ChunkID("infinity pool and gym", otherPage))

	otherProject := meta
	otherProject.ProjectName = "DLF West Park"
	assert.NotEqual(t, id1, ChunkID("infinity pool and gym", otherProject))

	// Only the first 80 characters of text participate.
	long := strings.Repeat("a", 80)
	assert.Equal(t, ChunkID(long+"x", meta), ChunkID(long+"y", meta))
}

package domain

// Page is one page of a brochure after text extraction and normalization.
// Pages are produced by the extractor and consumed once by the chunker;
// they are not persisted on their own.
type Page struct {
	Number    int    `json:"page"`
	Text      string `json:"text"`
	OCR       bool   `json:"has_ocr"`
	CharCount int    `json:"chars"`
}

// ChunkMetadata carries the provenance of a chunk through the vector index.
type ChunkMetadata struct {
	ProjectName string `json:"project_name"`
	Source      string `json:"source"`
	Page        int    `json:"page"`
	CharCount   int    `json:"char_count"`
	TokenCount  int    `json:"token_count"`
}

// Chunk is a token-bounded span of brochure text, the unit of retrieval.
// The ID is a content-addressed hash so re-ingesting identical content
// overwrites rather than duplicates.
type Chunk struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// IngestReport summarizes one document ingestion run.
type IngestReport struct {
	DocumentID       string `json:"document_id"`
	StoredPath       string `json:"stored_path"`
	ProjectName      string `json:"project_name"`
	OriginalFilename string `json:"original_filename"`
	InsertedChunks   int    `json:"inserted_chunks"`
	PagesProcessed   int    `json:"pages_processed"`
	OCRPages         int    `json:"ocr_pages"`
}

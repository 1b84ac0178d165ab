package service

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/proplens/go-crm-agent/internal/domain"
)

// Tokenizer encodes text to token ids and back. Satisfied by tiktoken; tests
// substitute a deterministic fake.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// DefaultChunkTokens is the default token budget per chunk.
const DefaultChunkTokens = 500

// DefaultChunkOverlap is the default number of tokens carried over between
// consecutive chunks.
const DefaultChunkOverlap = 50

// TokenChunker splits page sequences into token-bounded, overlapping chunks.
// Granular chunks retrieve better on image-heavy brochures than whole pages.
type TokenChunker struct {
	target    int
	overlap   int
	tokenizer Tokenizer
}

// NewTokenChunker creates a chunker using the named tiktoken encoding
// (e.g. "cl100k_base") for token boundaries.
func NewTokenChunker(encoding string, target, overlap int) (*TokenChunker, error) {
	tke, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("get encoding %q: %w", encoding, err)
	}
	return NewTokenChunkerWithTokenizer(&tiktokenTokenizer{tke: tke}, target, overlap)
}

// NewTokenChunkerWithTokenizer creates a chunker over an explicit tokenizer.
func NewTokenChunkerWithTokenizer(tokenizer Tokenizer, target, overlap int) (*TokenChunker, error) {
	if target <= 0 {
		target = DefaultChunkTokens
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= target {
		return nil, fmt.Errorf("overlap %d must be smaller than target %d", overlap, target)
	}
	return &TokenChunker{target: target, overlap: overlap, tokenizer: tokenizer}, nil
}

// Chunk walks the page sequence with a running buffer: each page's text is
// space-joined onto the buffer, and whenever the buffer reaches the target
// the first target tokens are emitted as a chunk tagged with the page where
// the buffer started. The trailing overlap tokens of each emitted chunk are
// kept verbatim as the seed of the next one so retrieval context is not cut
// mid-thought. Any non-empty remainder flushes as a final, shorter chunk
// tagged with the last page.
func (c *TokenChunker) Chunk(pages []domain.Page, projectName, source string) []domain.Chunk {
	var chunks []domain.Chunk
	var buf string
	startPage := 0

	for _, page := range pages {
		if startPage == 0 {
			startPage = page.Number
		}
		if buf != "" {
			buf += " "
		}
		buf += page.Text

		tokens := c.tokenizer.Encode(buf)
		for len(tokens) >= c.target {
			head := tokens[:c.target]
			rest := tokens[c.target:]

			chunks = c.appendChunk(chunks, c.tokenizer.Decode(head), len(head), projectName, source, startPage)
			startPage = page.Number

			if c.overlap > 0 && len(head) > c.overlap {
				seed := head[len(head)-c.overlap:]
				tokens = append(append(make([]int, 0, len(seed)+len(rest)), seed...), rest...)
			} else {
				tokens = rest
			}
		}
		buf = c.tokenizer.Decode(tokens)
	}

	if strings.TrimSpace(buf) != "" {
		lastPage := startPage
		if len(pages) > 0 {
			lastPage = pages[len(pages)-1].Number
		}
		chunks = c.appendChunk(chunks, buf, len(c.tokenizer.Encode(buf)), projectName, source, lastPage)
	}

	return chunks
}

func (c *TokenChunker) appendChunk(chunks []domain.Chunk, text string, tokenCount int, projectName, source string, page int) []domain.Chunk {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return chunks
	}
	return append(chunks, domain.Chunk{
		Text: trimmed,
		Metadata: domain.ChunkMetadata{
			ProjectName: projectName,
			Source:      source,
			Page:        page,
			CharCount:   len(trimmed),
			TokenCount:  tokenCount,
		},
	})
}

type tiktokenTokenizer struct {
	tke *tiktoken.Tiktoken
}

func (t *tiktokenTokenizer) Encode(text string) []int {
	return t.tke.Encode(text, nil, nil)
}

func (t *tiktokenTokenizer) Decode(tokens []int) string {
	return t.tke.Decode(tokens)
}

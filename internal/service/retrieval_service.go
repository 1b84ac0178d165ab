package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/proplens/go-crm-agent/internal/domain"
	"github.com/proplens/go-crm-agent/internal/port"
)

// DefaultTopK is the default number of chunks retrieved per question.
const DefaultTopK = 4

// DefaultMaxAnswerWords bounds the synthesized answer length.
const DefaultMaxAnswerWords = 150

// unknownProject labels sources whose chunk carries no project name, so the
// field is never absent in responses.
const unknownProject = "Unknown"

// RetrievalService answers brochure questions: top-k vector search, then a
// bounded-length synthesis of the retrieved context. When the chat capability
// is unavailable or fails, it degrades to word-exact truncation instead of
// failing the turn.
type RetrievalService struct {
	index    port.VectorIndex
	ai       port.AIProvider // nil disables summarization
	maxWords int
}

// NewRetrievalService creates a retrieval service. ai may be nil to always
// use the truncation fallback.
func NewRetrievalService(index port.VectorIndex, ai port.AIProvider, maxWords int) *RetrievalService {
	if maxWords <= 0 {
		maxWords = DefaultMaxAnswerWords
	}
	return &RetrievalService{index: index, ai: ai, maxWords: maxWords}
}

// Answer retrieves the top-k chunks for the query (optionally filtered by
// project) and synthesizes an answer with its source list.
func (s *RetrievalService) Answer(ctx context.Context, query string, k int, project string) (string, []domain.Source, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	hits, err := s.index.Search(ctx, query, k, project)
	if err != nil {
		return "", nil, fmt.Errorf("search brochures: %w", err)
	}

	texts := make([]string, 0, len(hits))
	for _, h := range hits {
		texts = append(texts, h.Content)
	}
	combined := strings.Join(texts, " ")

	answer := ""
	if combined != "" {
		if s.ai != nil {
			answer = s.summarize(ctx, query, combined)
		} else {
			answer = TruncateWords(combined, s.maxWords)
		}
	}

	sources := make([]domain.Source, 0, len(hits))
	for _, h := range hits {
		sources = append(sources, hitSource(h))
	}
	return answer, sources, nil
}

// summarize asks the chat capability for a concise answer, falling back to
// truncation on any failure. The word bound is enforced either way.
func (s *RetrievalService) summarize(ctx context.Context, query, contextText string) string {
	system := "You are a helpful assistant that answers questions about real estate properties " +
		"based on provided context. Be VERY concise - aim for approximately 150 words maximum. " +
		"Focus only on directly answering the question with the most relevant information."
	user := fmt.Sprintf(
		"Question: %s\n\nContext:\n%s\n\nProvide a clear, concise answer in approximately 150 words or less. "+
			"Use bullet points if listing multiple items.", query, contextText)

	reply, err := s.ai.Chat(ctx, system, user)
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			slog.Warn("summarization failed, truncating context", "error", err)
		}
		return TruncateWords(contextText, s.maxWords)
	}
	return TruncateWords(strings.TrimSpace(reply), s.maxWords)
}

// hitSource converts a search hit into a response source, normalizing the
// cosine distance to a [0,1] similarity. Cosine distance ranges from 0
// (identical) to 2 (opposite); the formula must be re-derived if the index
// ever changes metric.
func hitSource(h domain.SearchHit) domain.Source {
	similarity := 1.0 - h.Distance/2.0
	if similarity < 0 {
		similarity = 0
	}
	if similarity > 1 {
		similarity = 1
	}

	project := h.ProjectName
	if project == "" {
		project = unknownProject
	}

	page := 0
	if v, ok := h.Metadata["page"].(float64); ok {
		page = int(v)
	} else if v, ok := h.Metadata["page"].(int); ok {
		page = v
	}
	source, _ := h.Metadata["source"].(string)

	return domain.Source{
		Project:    project,
		Page:       page,
		Source:     source,
		Distance:   h.Distance,
		Similarity: similarity,
	}
}

// TruncateWords bounds text to maxWords words, appending an ellipsis marker
// when anything was cut. The bound is word-exact, not character-based.
func TruncateWords(text string, maxWords int) string {
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return text
	}
	return strings.Join(words[:maxWords], " ") + "..."
}

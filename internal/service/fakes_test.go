package service

import (
	"context"
	"strings"

	"github.com/proplens/go-crm-agent/internal/domain"
)

// fakeAI is a scriptable AIProvider for tests. Embeddings are deterministic
// single-component vectors keyed by input order.
type fakeAI struct {
	chatReply string
	chatErr   error
	embedErr  error

	chatCalls  []string // user prompts, in call order
	embedCalls [][]string
}

func (f *fakeAI) ModelName() string { return "fake-model" }

func (f *fakeAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	f.embedCalls = append(f.embedCalls, texts)
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{float32(i) + 1}
	}
	return vecs, nil
}

func (f *fakeAI) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.chatCalls = append(f.chatCalls, userPrompt)
	if f.chatErr != nil {
		return "", f.chatErr
	}
	return f.chatReply, nil
}

// fakeIndex records upserts and serves canned search hits.
type fakeIndex struct {
	hits      []domain.SearchHit
	searchErr error
	upsertErr error

	upserted   []domain.VectorRecord
	lastQuery  string
	lastK      int
	lastFilter string
}

func (f *fakeIndex) Upsert(ctx context.Context, records []domain.VectorRecord) (int, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.upserted = append(f.upserted, records...)
	return len(records), nil
}

func (f *fakeIndex) Search(ctx context.Context, query string, k int, projectName string) ([]domain.SearchHit, error) {
	f.lastQuery, f.lastK, f.lastFilter = query, k, projectName
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func (f *fakeIndex) Count(ctx context.Context) (int, error) {
	return len(f.upserted), nil
}

// fakeCheckpoints is an in-memory CheckpointStore.
type fakeCheckpoints struct {
	states map[string]*domain.ConversationState
	getErr error
	putErr error
}

func newFakeCheckpoints() *fakeCheckpoints {
	return &fakeCheckpoints{states: map[string]*domain.ConversationState{}}
}

func (f *fakeCheckpoints) Get(ctx context.Context, threadID string) (*domain.ConversationState, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.states[threadID], nil
}

func (f *fakeCheckpoints) Put(ctx context.Context, threadID string, state *domain.ConversationState) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.states[threadID] = state
	return nil
}

// fakeRunner serves canned query results.
type fakeRunner struct {
	columns []string
	rows    []map[string]any
	err     error

	queries []string
}

func (f *fakeRunner) RunQuery(ctx context.Context, query string) ([]string, []map[string]any, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.columns, f.rows, nil
}

// fakeExtractor serves canned pages.
type fakeExtractor struct {
	pages []domain.Page
	err   error
}

func (f *fakeExtractor) ExtractPages(ctx context.Context, pdfPath string) ([]domain.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

// wordTokenizer is a deterministic whitespace tokenizer: one token per word,
// ids assigned in first-seen order. Keeps chunker tests hermetic.
type wordTokenizer struct {
	ids   map[string]int
	words []string
}

func newWordTokenizer() *wordTokenizer {
	return &wordTokenizer{ids: map[string]int{}}
}

func (t *wordTokenizer) Encode(text string) []int {
	fields := strings.Fields(text)
	out := make([]int, 0, len(fields))
	for _, w := range fields {
		id, ok := t.ids[w]
		if !ok {
			id = len(t.words)
			t.ids[w] = id
			t.words = append(t.words, w)
		}
		out = append(out, id)
	}
	return out
}

func (t *wordTokenizer) Decode(tokens []int) string {
	parts := make([]string, len(tokens))
	for i, id := range tokens {
		parts[i] = t.words[id]
	}
	return strings.Join(parts, " ")
}

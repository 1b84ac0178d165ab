package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/proplens/go-crm-agent/internal/domain"
	"github.com/proplens/go-crm-agent/internal/port"
)

// Training item kinds stored in the SQL-training corpus.
const (
	trainingKindDDL     = "ddl"
	trainingKindExample = "sql"
)

// trainingTopK is how many training items are retrieved per question.
const trainingTopK = 6

// QueryGenService translates analytics questions into SQL. It composes two
// capabilities explicitly: a vector index holding the schema DDL and
// curated NL->SQL examples, and a chat model prompted with whichever of
// those are closest to the question.
type QueryGenService struct {
	index port.VectorIndex
	ai    port.AIProvider
}

// NewQueryGenService creates a query generation service.
func NewQueryGenService(index port.VectorIndex, ai port.AIProvider) *QueryGenService {
	return &QueryGenService{index: index, ai: ai}
}

const querygenSystemPrompt = "You translate natural language questions about a real estate CRM into SQL. " +
	"Use only the tables and columns shown in the provided schema. " +
	"Respond with a single read-only SELECT statement and nothing else. " +
	"Never mutate data."

// GenerateQuery produces one SELECT statement for the question, or an error
// when no usable query comes back. Safety validation is the executor's job.
func (s *QueryGenService) GenerateQuery(ctx context.Context, question string) (string, error) {
	hits, err := s.index.Search(ctx, question, trainingTopK, "")
	if err != nil {
		return "", fmt.Errorf("retrieve training context: %w", err)
	}

	var b strings.Builder
	for _, h := range hits {
		b.WriteString(h.Content)
		b.WriteString("\n\n")
	}
	user := fmt.Sprintf("Schema and examples:\n%sQuestion: %s\nSQL:", b.String(), question)

	reply, err := s.ai.Chat(ctx, querygenSystemPrompt, user)
	if err != nil {
		return "", fmt.Errorf("generate sql: %w", err)
	}

	query := StripCodeFence(reply)
	if strings.TrimSpace(query) == "" {
		return "", port.ErrNoQuery
	}

	slog.Debug("generated SQL", "question", question, "sql", query)
	return strings.TrimSpace(query), nil
}

// leadsDDL is the schema description seeded into the training corpus. Kept
// in sync with PostgresStore.Migrate by hand.
const leadsDDL = `CREATE TABLE leads (
	id BIGSERIAL PRIMARY KEY,
	crm_id VARCHAR(64),
	name VARCHAR(200) NOT NULL,
	email VARCHAR(254) NOT NULL,
	country_code VARCHAR(10),
	phone VARCHAR(50),
	unit_type VARCHAR(100),
	budget_min NUMERIC(15,2),
	budget_max NUMERIC(15,2),
	status VARCHAR(50), -- New | Connected | Qualified | Disqualified | FollowUp
	last_conversation_date DATE,
	last_conversation_summary TEXT,
	project_enquired VARCHAR(200),
	created_at TIMESTAMPTZ
)`

// trainingExamples pair analytics questions with known-good SQL.
var trainingExamples = []struct {
	Question string
	SQL      string
}{
	{
		"How many leads total?",
		"SELECT COUNT(*) AS count FROM leads",
	},
	{
		"How many leads by status?",
		"SELECT status, COUNT(*) AS count FROM leads GROUP BY status",
	},
	{
		"How many Connected leads do we have?",
		"SELECT COUNT(*) AS count FROM leads WHERE status = 'Connected'",
	},
	{
		"Show top 5 leads by budget_max",
		"SELECT * FROM leads WHERE budget_max IS NOT NULL ORDER BY budget_max DESC LIMIT 5",
	},
	{
		"Leads enquired about Beachgate project",
		"SELECT * FROM leads WHERE project_enquired ILIKE '%Beachgate%'",
	},
	{
		"Count leads with email addresses",
		"SELECT COUNT(*) AS count FROM leads WHERE email IS NOT NULL AND email != ''",
	},
	{
		"Show leads created in the last 30 days",
		"SELECT * FROM leads WHERE created_at >= NOW() - INTERVAL '30 days'",
	},
}

// Seed upserts the DDL and example pairs into the training corpus. Item ids
// are content hashes, so re-seeding is idempotent. Returns the number of
// items written.
func (s *QueryGenService) Seed(ctx context.Context) (int, error) {
	items := make([]trainingItem, 0, len(trainingExamples)+1)
	items = append(items, trainingItem{kind: trainingKindDDL, content: leadsDDL, embedText: leadsDDL})
	for _, ex := range trainingExamples {
		items = append(items, trainingItem{
			kind:      trainingKindExample,
			content:   fmt.Sprintf("Question: %s\nSQL: %s", ex.Question, ex.SQL),
			embedText: ex.Question,
		})
	}

	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.embedText
	}
	vectors, err := s.ai.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed training items: %w", err)
	}
	if len(vectors) != len(items) {
		return 0, fmt.Errorf("embed training items: got %d vectors for %d items", len(vectors), len(items))
	}

	records := make([]domain.VectorRecord, len(items))
	for i, it := range items {
		sum := md5.Sum([]byte(it.kind + "|" + it.content))
		records[i] = domain.VectorRecord{
			ID:       hex.EncodeToString(sum[:]),
			Content:  it.content,
			Metadata: map[string]any{"kind": it.kind},
			Vector:   vectors[i],
		}
	}

	written, err := s.index.Upsert(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("seed training corpus: %w", err)
	}
	slog.Info("training corpus seeded", "items", written)
	return written, nil
}

type trainingItem struct {
	kind      string
	content   string
	embedText string
}

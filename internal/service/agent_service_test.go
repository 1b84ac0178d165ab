package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proplens/go-crm-agent/internal/domain"
)

// fixedClassifier returns the same decision for every question.
type fixedClassifier struct {
	decision domain.RouteDecision
	history  []string
}

func (f *fixedClassifier) Classify(ctx context.Context, question string, history []string) domain.RouteDecision {
	f.history = history
	return f.decision
}

// fixedAnswerer returns canned retrieval output.
type fixedAnswerer struct {
	answer  string
	sources []domain.Source
	err     error
	called  bool
}

func (f *fixedAnswerer) Answer(ctx context.Context, query string, k int, project string) (string, []domain.Source, error) {
	f.called = true
	return f.answer, f.sources, f.err
}

// fixedQueryGen returns canned SQL.
type fixedQueryGen struct {
	sql    string
	err    error
	called bool
}

func (f *fixedQueryGen) GenerateQuery(ctx context.Context, question string) (string, error) {
	f.called = true
	return f.sql, f.err
}

// fixedExecutor returns a canned result.
type fixedExecutor struct {
	result *domain.QueryResult
	called bool
}

func (f *fixedExecutor) Execute(ctx context.Context, query string) *domain.QueryResult {
	f.called = true
	return f.result
}

func newTestAgent(classifier Classifier, retriever Answerer, querygen QueryGenerator, executor QueryExecutor, checkpoints *fakeCheckpoints) *AgentService {
	return NewAgentService(classifier, retriever, querygen, executor, checkpoints, 0.6, 3, 4)
}

func TestAskRAGTurn(t *testing.T) {
	retriever := &fixedAnswerer{
		answer:  "Beachgate has a pool and a gym.",
		sources: []domain.Source{{Project: "Beachgate", Page: 3, Similarity: 0.8}},
	}
	checkpoints := newFakeCheckpoints()
	agent := newTestAgent(
		&fixedClassifier{decision: domain.RouteDecision{Route: domain.RouteRAG, Confidence: 0.9, Reasons: "brochure question"}},
		retriever, &fixedQueryGen{}, &fixedExecutor{}, checkpoints,
	)

	state := agent.Ask(context.Background(), "t1", "What amenities does Beachgate have?")
	require.NotNil(t, state)
	assert.Equal(t, domain.RouteRAG, state.Route)
	assert.InDelta(t, 0.9, state.Confidence, 1e-9)
	assert.Equal(t, "Beachgate has a pool and a gym.", state.Answer)
	assert.Len(t, state.Sources, 1)
	assert.Empty(t, state.Error)
	assert.Same(t, state, checkpoints.states["t1"], "turn must be checkpointed")
}

func TestAskT2SQLTurn(t *testing.T) {
	executor := &fixedExecutor{result: &domain.QueryResult{
		Rows:     []map[string]any{{"count": int64(42)}},
		RowCount: 1,
		Columns:  []string{"count"},
	}}
	agent := newTestAgent(
		&fixedClassifier{decision: domain.RouteDecision{Route: domain.RouteT2SQL, Confidence: 0.95}},
		&fixedAnswerer{}, &fixedQueryGen{sql: "SELECT COUNT(*) AS count FROM leads"}, executor, newFakeCheckpoints(),
	)

	state := agent.Ask(context.Background(), "t1", "How many leads total?")
	assert.Equal(t, "SELECT COUNT(*) AS count FROM leads", state.SQL)
	assert.Equal(t, []string{"count"}, state.Columns)
	assert.Len(t, state.Rows, 1)
	assert.Empty(t, state.Error)
}

func TestAskLowConfidenceForcesClarify(t *testing.T) {
	retriever := &fixedAnswerer{answer: "should not run"}
	agent := newTestAgent(
		&fixedClassifier{decision: domain.RouteDecision{Route: domain.RouteRAG, Confidence: 0.4}},
		retriever, &fixedQueryGen{}, &fixedExecutor{}, newFakeCheckpoints(),
	)

	state := agent.Ask(context.Background(), "t1", "Tell me about the pricing structure")
	assert.False(t, retriever.called)
	assert.Contains(t, state.Answer, "Could you clarify")
	assert.NotContains(t, state.Answer, "Tip:", "long specific query gets no follow-up hint")
}

func TestAskClarifyHintForVagueFollowUp(t *testing.T) {
	agent := newTestAgent(
		&fixedClassifier{decision: domain.RouteDecision{Route: domain.RouteClarify, Confidence: 0.9}},
		&fixedAnswerer{}, &fixedQueryGen{}, &fixedExecutor{}, newFakeCheckpoints(),
	)

	state := agent.Ask(context.Background(), "t1", "What about that?")
	assert.Contains(t, state.Answer, "Could you clarify")
	assert.Contains(t, state.Answer, "Tip:")
}

func TestAskUnknownRouteDefaultsToRAG(t *testing.T) {
	retriever := &fixedAnswerer{answer: "retrieved"}
	agent := newTestAgent(
		&fixedClassifier{decision: domain.RouteDecision{Route: domain.Route("chitchat"), Confidence: 0.9}},
		retriever, &fixedQueryGen{}, &fixedExecutor{}, newFakeCheckpoints(),
	)

	state := agent.Ask(context.Background(), "t1", "hello there")
	assert.True(t, retriever.called)
	assert.Equal(t, "retrieved", state.Answer)
}

func TestAskT2SQLGenerationErrorReported(t *testing.T) {
	executor := &fixedExecutor{}
	agent := newTestAgent(
		&fixedClassifier{decision: domain.RouteDecision{Route: domain.RouteT2SQL, Confidence: 0.9}},
		&fixedAnswerer{}, &fixedQueryGen{err: errors.New("no SQL could be generated for this question")}, executor, newFakeCheckpoints(),
	)

	state := agent.Ask(context.Background(), "t1", "impossible question")
	assert.Equal(t, "no SQL could be generated for this question", state.Error)
	assert.False(t, executor.called)
	assert.Empty(t, state.Rows)
}

func TestAskT2SQLExecutionErrorReported(t *testing.T) {
	executor := &fixedExecutor{result: &domain.QueryResult{
		Rows: []map[string]any{}, Columns: []string{},
		Error: "dangerous keyword 'DROP' is not allowed",
	}}
	agent := newTestAgent(
		&fixedClassifier{decision: domain.RouteDecision{Route: domain.RouteT2SQL, Confidence: 0.9}},
		&fixedAnswerer{}, &fixedQueryGen{sql: "SELECT 1; DROP TABLE leads"}, executor, newFakeCheckpoints(),
	)

	state := agent.Ask(context.Background(), "t1", "break things")
	assert.Equal(t, "dangerous keyword 'DROP' is not allowed", state.Error)
	assert.Equal(t, "SELECT 1; DROP TABLE leads", state.SQL, "generated SQL stays visible for diagnostics")
	assert.Empty(t, state.Rows)
}

func TestAskCarriesBoundedHistory(t *testing.T) {
	classifier := &fixedClassifier{decision: domain.RouteDecision{Route: domain.RouteRAG, Confidence: 0.9}}
	checkpoints := newFakeCheckpoints()
	agent := newTestAgent(classifier, &fixedAnswerer{answer: "ok"}, &fixedQueryGen{}, &fixedExecutor{}, checkpoints)

	questions := []string{"q1", "q2", "q3", "q4", "q5"}
	for _, q := range questions {
		agent.Ask(context.Background(), "thread", q)
	}

	// The fifth turn sees at most the three preceding questions.
	assert.Equal(t, []string{"q2", "q3", "q4"}, classifier.history)

	state := checkpoints.states["thread"]
	require.NotNil(t, state)
	assert.Equal(t, "q5", state.Query)
}

func TestAskHistorySizes(t *testing.T) {
	tests := []struct {
		name        string
		historySize int
		want        []string
	}{
		{name: "zero disables history", historySize: 0, want: nil},
		{name: "one keeps only the last question", historySize: 1, want: []string{"q4"}},
		{name: "three keeps the last three", historySize: 3, want: []string{"q2", "q3", "q4"}},
		{name: "four keeps all four", historySize: 4, want: []string{"q1", "q2", "q3", "q4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classifier := &fixedClassifier{decision: domain.RouteDecision{Route: domain.RouteRAG, Confidence: 0.9}}
			agent := NewAgentService(classifier, &fixedAnswerer{answer: "ok"}, &fixedQueryGen{}, &fixedExecutor{},
				newFakeCheckpoints(), 0.6, tt.historySize, 4)

			for _, q := range []string{"q1", "q2", "q3", "q4", "q5"} {
				agent.Ask(context.Background(), "thread", q)
			}
			assert.Equal(t, tt.want, classifier.history)
		})
	}
}

func TestAskFreshThreadHasNoHistory(t *testing.T) {
	classifier := &fixedClassifier{decision: domain.RouteDecision{Route: domain.RouteRAG, Confidence: 0.9}}
	agent := newTestAgent(classifier, &fixedAnswerer{answer: "ok"}, &fixedQueryGen{}, &fixedExecutor{}, newFakeCheckpoints())

	agent.Ask(context.Background(), "fresh", "first")
	assert.Empty(t, classifier.history)
}

func TestAskCheckpointTroubleIsNotFatal(t *testing.T) {
	checkpoints := newFakeCheckpoints()
	checkpoints.getErr = errors.New("db down")
	checkpoints.putErr = errors.New("db down")
	agent := newTestAgent(
		&fixedClassifier{decision: domain.RouteDecision{Route: domain.RouteRAG, Confidence: 0.9}},
		&fixedAnswerer{answer: "still works"}, &fixedQueryGen{}, &fixedExecutor{}, checkpoints,
	)

	state := agent.Ask(context.Background(), "t1", "anything")
	assert.Equal(t, "still works", state.Answer)
	assert.Empty(t, state.Error)
}

func TestChooseNext(t *testing.T) {
	agent := newTestAgent(&fixedClassifier{}, &fixedAnswerer{}, &fixedQueryGen{}, &fixedExecutor{}, nil)

	tests := []struct {
		name     string
		decision domain.RouteDecision
		want     domain.Route
	}{
		{name: "confident rag", decision: domain.RouteDecision{Route: domain.RouteRAG, Confidence: 0.9}, want: domain.RouteRAG},
		{name: "confident t2sql", decision: domain.RouteDecision{Route: domain.RouteT2SQL, Confidence: 0.7}, want: domain.RouteT2SQL},
		{name: "confident clarify", decision: domain.RouteDecision{Route: domain.RouteClarify, Confidence: 0.8}, want: domain.RouteClarify},
		{name: "at the floor passes", decision: domain.RouteDecision{Route: domain.RouteT2SQL, Confidence: 0.6}, want: domain.RouteT2SQL},
		{name: "below the floor clarifies", decision: domain.RouteDecision{Route: domain.RouteT2SQL, Confidence: 0.59}, want: domain.RouteClarify},
		{name: "unknown label retrieves", decision: domain.RouteDecision{Route: domain.Route("smalltalk"), Confidence: 0.99}, want: domain.RouteRAG},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, agent.chooseNext(tt.decision))
		})
	}
}

func TestClarifyHintTokenTrimming(t *testing.T) {
	agent := newTestAgent(
		&fixedClassifier{decision: domain.RouteDecision{Route: domain.RouteClarify, Confidence: 0.9}},
		&fixedAnswerer{}, &fixedQueryGen{}, &fixedExecutor{}, newFakeCheckpoints(),
	)

	// Punctuation around a vague token still triggers the hint.
	state := agent.Ask(context.Background(), "t1", "more?!")
	assert.True(t, strings.Contains(state.Answer, "Tip:"))

	// Vague token inside a long query does not.
	state = agent.Ask(context.Background(), "t2", "tell me more about the payment plan schedule for Beachgate")
	assert.False(t, strings.Contains(state.Answer, "Tip:"))
}

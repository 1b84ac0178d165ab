package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/proplens/go-crm-agent/internal/domain"
	"github.com/proplens/go-crm-agent/internal/port"
)

// DefaultConfidenceFloor is the routing confidence below which a turn is
// redirected to clarification regardless of the classified label.
const DefaultConfidenceFloor = 0.6

// shortQueryWords bounds what counts as a "short" query for follow-up
// detection in the clarify branch.
const shortQueryWords = 5

// vagueTokens mark queries that probably back-reference an earlier turn.
var vagueTokens = map[string]struct{}{
	"that": {}, "this": {}, "it": {}, "more": {}, "else": {}, "one": {}, "them": {},
}

// Classifier routes one question given bounded prior-query history.
type Classifier interface {
	Classify(ctx context.Context, question string, history []string) domain.RouteDecision
}

// Answerer answers a brochure question with retrieval + synthesis.
type Answerer interface {
	Answer(ctx context.Context, query string, k int, project string) (string, []domain.Source, error)
}

// QueryGenerator turns an analytics question into a SQL query.
type QueryGenerator interface {
	GenerateQuery(ctx context.Context, question string) (string, error)
}

// QueryExecutor validates and runs generated SQL, reporting failures in the
// result rather than raising them.
type QueryExecutor interface {
	Execute(ctx context.Context, query string) *domain.QueryResult
}

// AgentService is the top-level turn pipeline: classify the question,
// dispatch to exactly one handler, and checkpoint the turn state by thread.
// Every branch terminates; no branch loops back to routing.
type AgentService struct {
	classifier  Classifier
	retriever   Answerer
	querygen    QueryGenerator
	executor    QueryExecutor
	checkpoints port.CheckpointStore

	confidenceFloor float64
	historySize     int
	topK            int
}

// NewAgentService wires the agent from its collaborators.
func NewAgentService(
	classifier Classifier,
	retriever Answerer,
	querygen QueryGenerator,
	executor QueryExecutor,
	checkpoints port.CheckpointStore,
	confidenceFloor float64,
	historySize int,
	topK int,
) *AgentService {
	if confidenceFloor <= 0 {
		confidenceFloor = DefaultConfidenceFloor
	}
	if historySize < 0 {
		historySize = DefaultHistorySize
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &AgentService{
		classifier:      classifier,
		retriever:       retriever,
		querygen:        querygen,
		executor:        executor,
		checkpoints:     checkpoints,
		confidenceFloor: confidenceFloor,
		historySize:     historySize,
		topK:            topK,
	}
}

// Ask runs one conversation turn and returns its final state. The state is
// always well-formed: request-scoped failures land in state.Error.
func (s *AgentService) Ask(ctx context.Context, threadID, question string) *domain.ConversationState {
	state := &domain.ConversationState{
		Query:   question,
		History: s.loadHistory(ctx, threadID),
	}

	decision := s.classifier.Classify(ctx, question, state.History)
	state.Route = decision.Route
	state.Confidence = decision.Confidence
	state.Reasons = decision.Reasons

	switch s.chooseNext(decision) {
	case domain.RouteT2SQL:
		s.nodeT2SQL(ctx, state)
	case domain.RouteClarify:
		s.nodeClarify(state)
	default:
		s.nodeRAG(ctx, state)
	}

	if s.checkpoints != nil {
		if err := s.checkpoints.Put(ctx, threadID, state); err != nil {
			slog.Warn("could not checkpoint conversation state", "thread_id", threadID, "error", err)
		}
	}
	return state
}

// loadHistory rebuilds the bounded prior-query history of the thread from
// its last checkpoint. Checkpoint trouble degrades to an empty history.
func (s *AgentService) loadHistory(ctx context.Context, threadID string) []string {
	if s.checkpoints == nil || threadID == "" {
		return nil
	}
	prev, err := s.checkpoints.Get(ctx, threadID)
	if err != nil {
		slog.Warn("could not retrieve conversation history", "thread_id", threadID, "error", err)
		return nil
	}
	if prev == nil {
		return nil
	}

	history := append([]string{}, prev.History...)
	if prev.Query != "" {
		history = append(history, prev.Query)
	}
	if len(history) > s.historySize {
		history = history[len(history)-s.historySize:]
	}
	if s.historySize == 0 {
		return nil
	}
	return history
}

// chooseNext picks the handler: low confidence always clarifies, otherwise
// the label decides, with retrieval as the default for anything unknown.
func (s *AgentService) chooseNext(decision domain.RouteDecision) domain.Route {
	if decision.Confidence < s.confidenceFloor {
		return domain.RouteClarify
	}
	switch decision.Route {
	case domain.RouteRAG, domain.RouteT2SQL, domain.RouteClarify:
		return decision.Route
	}
	return domain.RouteRAG
}

func (s *AgentService) nodeRAG(ctx context.Context, state *domain.ConversationState) {
	answer, sources, err := s.retriever.Answer(ctx, state.Query, s.topK, "")
	if err != nil {
		state.Error = err.Error()
		return
	}
	state.Answer = answer
	state.Sources = sources
}

func (s *AgentService) nodeT2SQL(ctx context.Context, state *domain.ConversationState) {
	query, err := s.querygen.GenerateQuery(ctx, state.Query)
	if err != nil {
		state.Error = err.Error()
		return
	}
	state.SQL = query

	result := s.executor.Execute(ctx, query)
	if result.Error != "" {
		state.Error = result.Error
		return
	}
	state.Rows = result.Rows
	state.Columns = result.Columns
}

const clarifyMessage = "I'm not quite sure how to best answer your question. " +
	"Could you clarify if you're asking about:\n" +
	"- Property information (amenities, features, floor plans)\n" +
	"- Lead analytics (counts, statistics, status breakdowns)"

const clarifyFollowUpHint = "\n\nTip: If you're asking a follow-up question, please include more context " +
	"or reference what you're asking about. For example:\n" +
	"  - 'Tell me more about Beachgate amenities'\n" +
	"  - 'What about DLF West Park pricing?'\n" +
	"  - 'Show me connected leads instead'"

// nodeClarify returns the fixed clarification message, with a follow-up
// hint appended when the query looks like a vague back-reference.
func (s *AgentService) nodeClarify(state *domain.ConversationState) {
	words := strings.Fields(state.Query)

	isShort := len(words) <= shortQueryWords
	isVague := false
	for _, w := range words {
		if _, ok := vagueTokens[strings.ToLower(strings.Trim(w, ".,!?"))]; ok {
			isVague = true
			break
		}
	}

	state.Answer = clarifyMessage
	if isShort && isVague {
		state.Answer += clarifyFollowUpHint
	}
}

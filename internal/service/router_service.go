package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/proplens/go-crm-agent/internal/domain"
	"github.com/proplens/go-crm-agent/internal/port"
)

// DefaultHistorySize is how many prior queries are folded into the
// classification prompt.
const DefaultHistorySize = 3

// RouterService classifies questions into {rag|t2sql|clarify} with an LLM.
// It never propagates classification failures: empty output, malformed JSON
// and call errors all degrade to a usable default decision.
type RouterService struct {
	ai          port.AIProvider
	historySize int
}

// NewRouterService creates a router over the given chat capability.
func NewRouterService(ai port.AIProvider, historySize int) *RouterService {
	if historySize < 0 {
		historySize = DefaultHistorySize
	}
	return &RouterService{ai: ai, historySize: historySize}
}

const routerSystemPrompt = "You classify user questions for a real estate CRM into {rag|t2sql|clarify}. " +
	"rag = brochure/docs semantic questions (amenities, floor plans, features). " +
	"t2sql = database analytics (counts, filters, aggregations over leads). " +
	"clarify = cannot decide confidently."

// Classify routes one question, folding in the most recent prior queries.
func (s *RouterService) Classify(ctx context.Context, question string, history []string) domain.RouteDecision {
	var parts []string
	if n := len(history); n > 0 {
		if n > s.historySize {
			history = history[n-s.historySize:]
		}
		parts = append(parts, "Previous questions: "+strings.Join(history, ", "))
	}
	parts = append(parts,
		"Current question: "+question,
		"Return strict JSON with keys route, confidence (0..1), reasons.",
	)

	reply, err := s.ai.Chat(ctx, routerSystemPrompt, strings.Join(parts, "\n"))
	if err != nil {
		slog.Error("router classification failed", "error", err)
		return fallbackDecision(fmt.Sprintf("Router error: %s", err))
	}

	decision, err := parseRouteDecision(reply)
	if err != nil {
		slog.Error("router returned unusable output", "error", err, "raw", reply)
		return fallbackDecision(err.Error())
	}
	return decision
}

// fallbackDecision is the safe default when classification cannot be
// trusted: retrieval at middling confidence, with a diagnostic.
func fallbackDecision(reason string) domain.RouteDecision {
	return domain.RouteDecision{
		Route:      domain.RouteRAG,
		Confidence: 0.5,
		Reasons:    reason,
	}
}

// parseRouteDecision extracts a decision from raw model output, stripping
// markdown code fences first. reasons may arrive as a list of strings.
func parseRouteDecision(raw string) (domain.RouteDecision, error) {
	content := StripCodeFence(raw)
	if content == "" {
		return domain.RouteDecision{}, fmt.Errorf("empty LLM response, defaulting to RAG")
	}

	var payload struct {
		Route      string          `json:"route"`
		Confidence float64         `json:"confidence"`
		Reasons    json.RawMessage `json:"reasons"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return domain.RouteDecision{}, fmt.Errorf("JSON parse error: %s", err)
	}

	switch domain.Route(payload.Route) {
	case domain.RouteRAG, domain.RouteT2SQL, domain.RouteClarify:
	default:
		return domain.RouteDecision{}, fmt.Errorf("unknown route %q", payload.Route)
	}

	return domain.RouteDecision{
		Route:      domain.Route(payload.Route),
		Confidence: payload.Confidence,
		Reasons:    normalizeReasons(payload.Reasons),
	}, nil
}

// normalizeReasons space-joins list-shaped reasons into one string.
func normalizeReasons(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, " ")
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	return strings.TrimSpace(string(raw))
}

// StripCodeFence unwraps ```json ... ``` and ``` ... ``` blocks that chat
// models like to wrap structured output in.
func StripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if idx := strings.Index(content, "```json"); idx >= 0 {
		content = content[idx+len("```json"):]
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
	} else if idx := strings.Index(content, "```"); idx >= 0 {
		content = content[idx+3:]
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
	}
	return strings.TrimSpace(content)
}

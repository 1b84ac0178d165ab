package handler

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/proplens/go-crm-agent/internal/service"
)

// AgentHandler exposes the conversational agent endpoint.
type AgentHandler struct {
	agent *service.AgentService
}

// NewAgentHandler creates a new agent handler.
func NewAgentHandler(agent *service.AgentService) *AgentHandler {
	return &AgentHandler{agent: agent}
}

// Register sets up agent routes.
func (h *AgentHandler) Register(router fiber.Router) {
	agent := router.Group("/agent")
	agent.Post("/query", h.Query)
}

// Query runs one agent turn. The thread id ties follow-up questions to their
// conversation; a fresh one is minted when the client does not send one.
func (h *AgentHandler) Query(c fiber.Ctx) error {
	var body struct {
		Question string `json:"question"`
		ThreadID string `json:"thread_id"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if strings.TrimSpace(body.Question) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "question is required"})
	}

	threadID := body.ThreadID
	if threadID == "" {
		threadID = uuid.New().String()
	}

	state := h.agent.Ask(c.Context(), threadID, body.Question)

	return c.JSON(fiber.Map{
		"thread_id":  threadID,
		"query":      state.Query,
		"route":      state.Route,
		"confidence": state.Confidence,
		"reasons":    state.Reasons,
		"sql":        state.SQL,
		"rows":       state.Rows,
		"columns":    state.Columns,
		"answer":     state.Answer,
		"sources":    state.Sources,
		"error":      state.Error,
	})
}

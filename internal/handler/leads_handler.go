package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/proplens/go-crm-agent/internal/adapter/store"
	"github.com/proplens/go-crm-agent/internal/domain"
)

// LeadsHandler exposes CRM lead import and shortlist filtering.
type LeadsHandler struct {
	store *store.PostgresStore
}

// NewLeadsHandler creates a new leads handler.
func NewLeadsHandler(pgStore *store.PostgresStore) *LeadsHandler {
	return &LeadsHandler{store: pgStore}
}

// Register sets up lead routes.
func (h *LeadsHandler) Register(router fiber.Router) {
	leads := router.Group("/leads")
	leads.Post("/import", h.Import)
	leads.Get("/shortlist", h.Shortlist)
}

// Import bulk-loads leads from a CSV export of the CRM spreadsheet.
func (h *LeadsHandler) Import(c fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is required"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "could not read upload"})
	}
	defer file.Close()

	inserted, err := h.store.ImportLeadsCSV(c.Context(), file)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"inserted": inserted})
}

// Shortlist filters leads by project, budget envelope, unit types, status
// and conversation date range.
func (h *LeadsHandler) Shortlist(c fiber.Ctx) error {
	filter := domain.ShortlistFilter{
		ProjectEnquired: strings.TrimSpace(c.Query("project")),
		Status:          strings.TrimSpace(c.Query("status")),
	}

	if v := c.Query("budget_min"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			filter.BudgetMin = &f
		}
	}
	if v := c.Query("budget_max"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			filter.BudgetMax = &f
		}
	}
	if v := c.Query("unit_type"); v != "" {
		filter.UnitTypes = strings.Split(v, ",")
	}
	if v := c.Query("date_from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.DateFrom = &t
		}
	}
	if v := c.Query("date_to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.DateTo = &t
		}
	}

	leads, err := h.store.ShortlistLeads(c.Context(), filter)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if leads == nil {
		leads = []domain.Lead{}
	}

	return c.JSON(fiber.Map{
		"count": len(leads),
		"leads": leads,
	})
}

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/retail-insights/backend/internal/orchestrator"
	"github.com/retail-insights/backend/pkg/logger"
)

type ReportHandler struct {
	engine *orchestrator.Orchestrator
}

func NewReportHandler(engine *orchestrator.Orchestrator) *ReportHandler {
	return &ReportHandler{
		engine: engine,
	}
}

// HandleUpload attaches uploaded report content to a session so later
// questions can reference it.
func (h *ReportHandler) HandleUpload(c *fiber.Ctx) error {
	var req struct {
		SessionID string `json:"session_id"`
		Content   string `json:"content"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.SessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id is required",
		})
	}
	if req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "content is required",
		})
	}

	text, err := h.engine.AttachReport(req.SessionID, req.Content)
	if err != nil {
		logger.Error("Failed to normalize report", zap.Error(err))
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "Could not parse report content",
		})
	}

	return c.JSON(fiber.Map{
		"session_id": req.SessionID,
		"status":     "attached",
		"chars":      len(text),
	})
}

// HandleExecutiveSummary generates a narrative summary of the full dataset.
func (h *ReportHandler) HandleExecutiveSummary(c *fiber.Ctx) error {
	summary, err := h.engine.GenerateExecutiveSummary(c.Context())
	if err != nil {
		logger.Error("Failed to generate executive summary", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to generate executive summary",
		})
	}

	return c.JSON(fiber.Map{
		"summary": summary,
	})
}

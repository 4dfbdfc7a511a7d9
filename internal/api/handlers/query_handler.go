package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/retail-insights/backend/internal/datastore"
	"github.com/retail-insights/backend/internal/orchestrator"
	"github.com/retail-insights/backend/internal/sqlgen"
	"github.com/retail-insights/backend/pkg/logger"
)

type QueryHandler struct {
	engine *orchestrator.Orchestrator
}

func NewQueryHandler(engine *orchestrator.Orchestrator) *QueryHandler {
	return &QueryHandler{
		engine: engine,
	}
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var req struct {
		Question      string `json:"question"`
		SessionID     string `json:"session_id"`
		ReportContext string `json:"report_context"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Question is required",
		})
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	if req.ReportContext != "" {
		if _, err := h.engine.AttachReport(req.SessionID, req.ReportContext); err != nil {
			logger.Error("Failed to normalize inline report context", zap.Error(err))
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "Could not parse report context",
			})
		}
	}

	answer, err := h.engine.ProcessQuery(c.Context(), req.SessionID, req.Question)
	if err != nil {
		return h.queryError(c, err)
	}

	return c.JSON(fiber.Map{
		"turn_id":    answer.TurnID,
		"session_id": req.SessionID,
		"answer":     answer.Text,
		"intent":     answer.Intent,
		"query":      answer.Query,
		"scores":     answer.Scores,
		"confidence": answer.Confidence,
		"latency_ms": answer.LatencyMS,
	})
}

func (h *QueryHandler) queryError(c *fiber.Ctx, err error) error {
	logger.Error("Failed to process query", zap.Error(err))

	var genErr *sqlgen.GenerationError
	var malformed *datastore.MalformedQueryError
	switch {
	case errors.Is(err, datastore.ErrStoreUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Data store is unavailable",
		})
	case errors.As(err, &genErr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "Could not generate a valid query for this question",
		})
	case errors.As(err, &malformed):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "Generated query was rejected by the data store",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process query",
		})
	}
}

func (h *QueryHandler) GetHistory(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "limit must be a non-negative integer",
			})
		}
		limit = n
	}

	turns := h.engine.History(c.Context(), sessionID, limit)

	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"turns":      turns,
		"count":      len(turns),
	})
}

func (h *QueryHandler) ClearMemory(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	h.engine.ClearMemory(c.Context(), sessionID)

	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"status":     "cleared",
	})
}

func (h *QueryHandler) GetEvaluation(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	summary := h.engine.EvaluationSummary(sessionID)

	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"evaluation": summary,
	})
}

func (h *QueryHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.engine.Stats(c.Context())
	if err != nil {
		logger.Error("Failed to compute summary stats", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Data store is unavailable",
		})
	}

	return c.JSON(stats)
}

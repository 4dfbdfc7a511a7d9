package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/retail-insights/backend/internal/orchestrator"
	"github.com/retail-insights/backend/pkg/logger"
)

type WebSocketHandler struct {
	engine *orchestrator.Orchestrator
}

func NewWebSocketHandler(engine *orchestrator.Orchestrator) *WebSocketHandler {
	return &WebSocketHandler{
		engine: engine,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	// One session per connection unless the client names its own.
	defaultSession := uuid.New().String()

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type      string `json:"type"`
			Content   string `json:"content"`
			SessionID string `json:"session_id"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Error("Failed to read WebSocket message", zap.Error(err))
			break
		}

		if msg.Type != "question" {
			continue
		}
		if msg.SessionID == "" {
			msg.SessionID = defaultSession
		}

		logger.Info("Processing WebSocket question",
			zap.String("session_id", msg.SessionID),
			zap.String("question", msg.Content),
		)

		err = h.streamResponse(c, msg.SessionID, msg.Content)
		if err != nil {
			logger.Error("Failed to stream response", zap.Error(err))
			h.sendError(c, "Failed to process question")
		}
	}
}

func (h *WebSocketHandler) streamResponse(c *websocket.Conn, sessionID, question string) error {
	ctx := context.Background()

	h.sendChunk(c, "status", "Analyzing your question...")

	answer, err := h.engine.ProcessQuery(ctx, sessionID, question)
	if err != nil {
		return err
	}

	words := splitIntoWords(answer.Text)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 {
			chunk += " "
		}

		err := h.sendChunk(c, "chunk", chunk)
		if err != nil {
			return err
		}
	}

	return h.sendComplete(c, sessionID, answer)
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	msg := map[string]interface{}{
		"type":    msgType,
		"content": content,
	}

	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, sessionID string, answer *orchestrator.Answer) error {
	msg := map[string]interface{}{
		"type":       "complete",
		"turn_id":    answer.TurnID,
		"session_id": sessionID,
		"intent":     answer.Intent,
		"query":      answer.Query,
		"scores":     answer.Scores,
		"confidence": answer.Confidence,
		"latency_ms": answer.LatencyMS,
	}

	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	msg := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}

	c.WriteJSON(msg)
}

func splitIntoWords(text string) []string {
	words := []string{}
	currentWord := ""

	for _, char := range text {
		if char == ' ' || char == '\n' {
			if currentWord != "" {
				words = append(words, currentWord)
				currentWord = ""
			}
			if char == '\n' {
				words = append(words, "\n")
			}
		} else {
			currentWord += string(char)
		}
	}

	if currentWord != "" {
		words = append(words, currentWord)
	}

	return words
}

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/ocr-eval/harness/internal/evaluation"
	"github.com/ocr-eval/harness/pkg/logger"
)

type WebSocketHandler struct {
	hub *evaluation.Hub
}

func NewWebSocketHandler(hub *evaluation.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// Upgrade rejects plain HTTP requests to the websocket route.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// HandleConnection streams run events to the client, optionally only those
// of the run named by the run_id query parameter.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	runID := c.Query("run_id")
	logger.Info("WebSocket connection established", zap.String("run_id", runID))

	events, unsubscribe := h.hub.Subscribe()
	defer func() {
		unsubscribe()
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	// The client never sends anything we act on; reading detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if runID != "" && e.RunID != runID {
				continue
			}
			if err := c.WriteJSON(e); err != nil {
				logger.Warn("Failed to write WebSocket message", zap.Error(err))
				return
			}
		}
	}
}

package handlers

import (
	"context"
	"encoding/json"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"go_audit_backend/pkg/logging"
	"go_audit_backend/platform/events"
)

type WSHandler struct {
	eventPublisher *events.EventPublisher
}

func NewWSHandler(eventPublisher *events.EventPublisher) *WSHandler {
	return &WSHandler{eventPublisher: eventPublisher}
}

func (h *WSHandler) WebSocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Not a websocket request"})
}

// HandleAuditEvents streams the progress feed of one audit session so a
// second client can follow a running pipeline.
func (h *WSHandler) HandleAuditEvents(c *websocket.Conn) {
	sessionID := c.Params("session_id")

	logging.Logger.Info("WebSocket connected", "sessionID", sessionID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eventChan, err := h.eventPublisher.SubscribeAuditEvents(ctx)
	if err != nil {
		logging.Logger.Error("failed to subscribe to events", "error", err)
		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"error":"failed to subscribe"}`))
		return
	}

	err = c.WriteJSON(fiber.Map{
		"type":       "connected",
		"message":    "WebSocket connected successfully",
		"session_id": sessionID,
	})
	if err != nil {
		return
	}

	for {
		select {
		case event := <-eventChan:
			if event == nil {
				return
			}
			if event.SessionID != sessionID {
				continue
			}
			data, _ := json.Marshal(event)
			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				logging.Logger.Error("failed to send WebSocket message", "error", err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

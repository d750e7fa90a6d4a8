package routes

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"go_audit_backend/handlers"
)

func RegisterWebSocketRoutes(app *fiber.App, wsHandler *handlers.WSHandler) {
	app.Use("/ws", wsHandler.WebSocketUpgrade)
	app.Get("/ws/audit/:session_id", websocket.New(wsHandler.HandleAuditEvents))
}

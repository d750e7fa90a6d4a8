package routes

import (
	"github.com/gofiber/fiber/v2"

	"go_audit_backend/handlers"
)

func RegisterAuditRoutes(app *fiber.App, auditHandler *handlers.AuditHandler) {
	api := app.Group("api")
	api.Post("/extract_audit_requirements", auditHandler.ExtractRequirements)
	api.Post("/audit", auditHandler.BatchAudit)
	api.Post("/audit_pre_split", auditHandler.PreSplitBatchAudit)
	api.Post("/audit_one", auditHandler.AuditOne)
	api.Get("/audit/:session_id", auditHandler.GetSession)
	api.Get("/audit/:session_id/document", auditHandler.GetSessionDocument)

	app.Get("/healthz", handlers.Healthz)
}

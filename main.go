package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"

	"go_audit_backend/bootstrap"
	"go_audit_backend/config"
	"go_audit_backend/middleware"
	"go_audit_backend/pkg/logging"
	"go_audit_backend/routes"
)

func main() {
	// 环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using process environment")
	}
	logging.Init()
	cfg := config.LoadConfig()

	boot, err := bootstrap.NewApp(cfg)
	if err != nil {
		log.Fatal(err)
	}

	app := fiber.New()
	app.Use(middleware.Logger())
	app.Use(middleware.CORS())

	routes.RegisterAuditRoutes(app, boot.Handlers.AuditHandler)
	routes.RegisterWebSocketRoutes(app, boot.Handlers.WSHandler)

	port := cfg.HttpPort
	if port == "" {
		port = "3000"
	}
	logging.Logger.Info("server listening", "port", port)
	if err := app.Listen(":" + port); err != nil {
		logging.Logger.Error("fail Listen", "error", err)
	}
	if err := boot.Shutdown(); err != nil {
		logging.Logger.Error("fail Shutdown", "error", err)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/shalak/assetgridapp/internal/api"
	"github.com/shalak/assetgridapp/internal/auth"
	"github.com/shalak/assetgridapp/internal/automation"
	"github.com/shalak/assetgridapp/internal/config"
	"github.com/shalak/assetgridapp/internal/store"
)

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded (port: %d, driver: %s)", cfg.Server.Port, cfg.Database.Driver)

	// 2. Connect to database
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	// 3. Bootstrap tables
	if err := db.Bootstrap(ctx); err != nil {
		log.Fatalf("Failed to bootstrap tables: %v", err)
	}
	log.Println("Tables ready")

	// 4. Build stores, action registry, and engine
	transactions := store.NewTransactionStore(db)
	automations := store.NewAutomationStore(db)
	registry := automation.NewRegistry()
	engine := automation.NewEngine(transactions, automations, registry, cfg.Automation.RunNowLimit)

	// 5. Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	// 6. Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 7. Register API routes behind auth
	authMW := auth.Middleware(cfg.JWTSecret)
	handler := api.NewHandler(transactions, automations, engine, registry)
	api.RegisterRoutes(app, handler, authMW)

	// 8. Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	log.Fatal(app.Listen(addr))
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	var appErr *automation.AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(automation.ErrorResponse{Error: appErr})
	}

	log.Printf("ERROR: %v", err)
	return c.Status(code).JSON(automation.ErrorResponse{
		Error: &automation.AppError{
			Code:    "INTERNAL_ERROR",
			Message: "Internal server error",
		},
	})
}

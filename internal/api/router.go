package api

import "github.com/gofiber/fiber/v2"

// RegisterRoutes adds the automation and transaction routes behind the given
// middleware (auth).
func RegisterRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	automations := app.Group("/api/automations", middleware...)
	automations.Get("/", h.ListAutomations)
	automations.Post("/", h.CreateAutomation)
	automations.Get("/:id", h.GetAutomation)
	automations.Put("/:id", h.UpdateAutomation)
	automations.Delete("/:id", h.DeleteAutomation)
	automations.Put("/:id/enabled", h.SetEnabled)
	automations.Post("/:id/run", h.RunAutomation)
	automations.Get("/:id/runs", h.ListRuns)

	transactions := app.Group("/api/transactions", middleware...)
	transactions.Post("/", h.CreateTransaction)
	transactions.Put("/:id", h.UpdateTransaction)
}

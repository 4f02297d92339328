package handlers

import (
	"fishing-competition-system/middleware"
	"fishing-competition-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupActivityRoutes(app *fiber.App, integrationService *services.IntegrationService) {
	// Activity ingestion always carries a user context from the gateway.
	secured := app.Group("/s", middleware.UserContextMiddleware())
	secured.Post("/activity", integrationService.RecordActivity)
}

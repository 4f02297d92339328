package handlers

import (
	"fishing-competition-system/middleware"
	"fishing-competition-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupSeasonRoutes(
	app *fiber.App,
	seasonService *services.SeasonService,
	leaderboardService *services.LeaderboardService,
	integrationService *services.IntegrationService,
	schedulerService *services.SchedulerService,
) {
	// 🔓 Public routes
	app.Get("/seasons", seasonService.GetAllSeasons)
	app.Get("/seasons/:id", seasonService.GetSeasonByID)
	app.Get("/seasons/:id/leaderboard", leaderboardService.GetLeaderboard)
	app.Get("/seasons/:id/archive", seasonService.GetSeasonArchive)

	// 🔐 Authenticated routes
	secured := app.Group("/s", middleware.UserContextMiddleware())
	secured.Post("/seasons/:id/join", integrationService.JoinSeason)
	secured.Delete("/seasons/:id/join", seasonService.LeaveSeason)

	// 🔒 Admin-only routes
	admin := secured.Group("/admin", middleware.RequireAdmin())
	admin.Post("/seasons", seasonService.CreateSeason)
	admin.Post("/maintenance/run", func(c *fiber.Ctx) error {
		schedulerService.RunMaintenanceCycle()
		return c.JSON(fiber.Map{"message": "maintenance cycle completed"})
	})
}

// handlers/progression_routes.go
package handlers

import (
	"fishing-competition-system/middleware"
	"fishing-competition-system/models"
	"fishing-competition-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupProgressionRoutes(
	app *fiber.App,
	progressionService *services.ProgressionService,
	badgeService *services.BadgeService,
	rewardService *services.RewardService,
) {
	// 🔐 Secured routes — require user context (userID, roles)
	// The gateway forwards paths like /api/v1/competitions/s/user/progress -> /s/user/progress
	securedGroup := app.Group("/s", middleware.UserContextMiddleware())

	securedGroup.Get("/user/progress", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		progress, err := progressionService.GetUserProgress(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch progress",
				"cause": err.Error(),
			})
		}
		return c.JSON(progress)
	})

	securedGroup.Get("/user/progress/badges", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var userBadges []models.UserBadge
		if err := badgeService.DB.
			Where("external_user_id = ?", userID).
			Order("awarded_at DESC").
			Find(&userBadges).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to get badges",
				"cause": err.Error(),
			})
		}

		var types []models.BadgeType
		if err := badgeService.DB.Find(&types).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to get badge types",
				"cause": err.Error(),
			})
		}
		typeByCode := map[string]models.BadgeType{}
		for _, t := range types {
			typeByCode[t.Code] = t
		}

		response := []fiber.Map{}
		for _, ub := range userBadges {
			bt := typeByCode[ub.BadgeCode]
			response = append(response, fiber.Map{
				"id":          ub.ID,
				"code":        ub.BadgeCode,
				"name":        bt.Name,
				"description": bt.Description,
				"icon_url":    bt.IconURL,
				"rarity":      bt.Rarity,
				"awarded_at":  ub.AwardedAt,
				"metadata":    ub.Metadata,
			})
		}
		return c.JSON(response)
	})

	// Reward endpoints
	securedGroup.Get("/user/rewards", rewardService.GetUserRewards)
	securedGroup.Get("/user/rewards/counts", rewardService.GetUserRewardCountsEndpoint)
	securedGroup.Get("/user/rewards/stream", rewardService.StreamUserRewardsSSE)
	securedGroup.Post("/rewards/:id/claim", rewardService.ClaimReward)
	securedGroup.Patch("/rewards/:id/viewed", rewardService.MarkRewardAsViewed)
	securedGroup.Patch("/rewards/viewed", rewardService.MarkAllRewardsAsViewed)

	// Admin endpoints
	adminGroup := securedGroup.Group("/admin", middleware.RequireAdmin())

	adminGroup.Post("/xp/grant", func(c *fiber.Ctx) error {
		type Req struct {
			UserID string `json:"user_id" validate:"required,uuid"`
			XP     int64  `json:"xp" validate:"required,min=1"`
			Reason string `json:"reason" validate:"max=255"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if req.UserID == "" || req.XP <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "user_id and a positive xp amount are required",
			})
		}

		if _, err := progressionService.AwardExperience(req.UserID, req.XP, req.Reason); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "XP award failed",
				"cause": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"message": "XP granted successfully",
			"user_id": req.UserID,
			"xp":      req.XP,
		})
	})
}

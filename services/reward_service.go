// services/reward_service.go
package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"fishing-competition-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RewardService serves the claimable prize rows the distributor creates at
// season completion. It never grants rewards itself.
type RewardService struct {
	DB *gorm.DB
}

func NewRewardService(db *gorm.DB) *RewardService {
	return &RewardService{DB: db}
}

// GetUserRewards fetches rewards for the *authenticated* user based on filters
func (s *RewardService) GetUserRewards(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	limitStr := c.Query("limit")     // e.g., limit=10
	claimedStr := c.Query("claimed") // claimed=all (default), claimed=true, claimed=false
	seasonID := c.Query("season_id")

	var limit *int
	if limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid limit parameter"})
		}
		limit = &l
	}

	var claimedFilter *bool
	switch strings.ToLower(claimedStr) {
	case "true":
		claimed := true
		claimedFilter = &claimed
	case "false":
		claimed := false
		claimedFilter = &claimed
		// Default ("all" or not provided) means no filter on claimed status
	}

	query := s.DB.Where("user_id = ?", userID)
	if claimedFilter != nil {
		query = query.Where("claimed = ?", *claimedFilter)
	}
	if seasonID != "" {
		query = query.Where("season_id = ?", seasonID)
	}

	var rewards []models.Reward
	dbQuery := query.Order("created_at DESC")
	if limit != nil {
		dbQuery = dbQuery.Limit(*limit)
	}

	if err := dbQuery.Find(&rewards).Error; err != nil {
		log.Printf("DB Error fetching user rewards: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch rewards"})
	}

	return c.JSON(rewards)
}

// GetUserRewardCountsEndpoint returns the total, unviewed and unclaimed
// reward counts for the authenticated user. Cheap enough to poll.
func (s *RewardService) GetUserRewardCountsEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	baseQuery := s.DB.Model(&models.Reward{}).Where("user_id = ?", userID)

	var totalCount int64
	if err := baseQuery.Count(&totalCount).Error; err != nil {
		log.Printf("DB Error counting total rewards: %v", err)
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "DB error counting total rewards"})
	}

	var unviewedCount int64
	if err := baseQuery.
		Where("viewed = ?", false).
		Count(&unviewedCount).Error; err != nil {
		log.Printf("DB Error counting unviewed rewards: %v", err)
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "DB error counting unviewed rewards"})
	}

	var unclaimedCount int64
	if err := baseQuery.
		Where("claimed = ?", false).
		Count(&unclaimedCount).Error; err != nil {
		log.Printf("DB Error counting unclaimed rewards: %v", err)
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "DB error counting unclaimed rewards"})
	}

	return c.JSON(fiber.Map{
		"total_count":     totalCount,
		"unviewed_count":  unviewedCount,
		"unclaimed_count": unclaimedCount,
	})
}

// ClaimReward handles the claiming of a reward by the user
func (s *RewardService) ClaimReward(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	rewardID := c.Params("id")

	if _, err := uuid.Parse(rewardID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid reward ID"})
	}

	var reward models.Reward
	if err := s.DB.Where("id = ? AND user_id = ?", rewardID, userID).First(&reward).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Reward not found or not owned by user"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if reward.Claimed {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Reward already claimed"})
	}

	reward.Claimed = true
	reward.Viewed = true
	if err := s.DB.Save(&reward).Error; err != nil {
		log.Printf("DB Error claiming reward: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to claim reward"})
	}

	return c.JSON(fiber.Map{"message": "Reward claimed successfully", "reward": reward})
}

// MarkRewardAsViewed marks a single reward as viewed (idempotent)
func (s *RewardService) MarkRewardAsViewed(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	rewardID := c.Params("id")

	if _, err := uuid.Parse(rewardID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid reward ID"})
	}

	var reward models.Reward
	if err := s.DB.Where("id = ? AND user_id = ?", rewardID, userID).First(&reward).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Reward not found or not owned"})
		}
		log.Printf("DB error fetching reward: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if !reward.Viewed {
		reward.Viewed = true
		if err := s.DB.Save(&reward).Error; err != nil {
			log.Printf("Failed to update viewed status: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to mark as viewed"})
		}
	}

	return c.JSON(fiber.Map{"message": "OK", "reward_id": reward.ID, "viewed": true})
}

// MarkAllRewardsAsViewed marks every unviewed reward for the user as viewed
func (s *RewardService) MarkAllRewardsAsViewed(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	result := s.DB.Model(&models.Reward{}).
		Where("user_id = ? AND viewed = ?", userID, false).
		Update("viewed", true)

	if result.Error != nil {
		log.Printf("Bulk mark viewed failed: %v", result.Error)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update rewards"})
	}

	return c.JSON(fiber.Map{
		"message":      "OK",
		"marked_count": result.RowsAffected,
	})
}

// StreamUserRewardsSSE streams newly granted rewards for the authenticated
// user, so a season completion shows up without a page refresh.
func (s *RewardService) StreamUserRewardsSSE(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	// Use fasthttp stream writer (THIS replaces Flush)
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		var lastMaxCreatedAt time.Time

		// Initialize cursor
		var latest models.Reward
		if err := s.DB.
			Where("user_id = ?", userID).
			Order("created_at DESC").
			First(&latest).Error; err == nil {
			lastMaxCreatedAt = latest.CreatedAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("SSE init error for user %s: %v", userID, err)
		}

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		w.Flush()

		for {
			select {
			case <-ticker.C:
				var newRewards []models.Reward

				err := s.DB.
					Where("user_id = ?", userID).
					Where("created_at > ?", lastMaxCreatedAt).
					Order("created_at ASC").
					Find(&newRewards).Error

				if err != nil {
					log.Printf("SSE query error for user %s: %v", userID, err)
					continue
				}

				if len(newRewards) == 0 {
					continue
				}

				lastMaxCreatedAt = newRewards[len(newRewards)-1].CreatedAt

				for _, r := range newRewards {
					payload, _ := json.Marshal(r)

					fmt.Fprintf(w,
						"event: reward\ndata: %s\n\n",
						payload,
					)
				}

				// This is the REAL "flush"
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-c.Context().Done():
				// Client closed connection
				return
			}
		}
	})

	return nil
}

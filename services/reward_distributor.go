package services

import (
	"fmt"
	"log"

	"fishing-competition-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RewardDistributor grants a completed season's reward tiers to its final
// ranking. Badge/trophy rendering is a downstream concern; this component's
// job is strictly the scoring-side grant.
type RewardDistributor struct {
	DB          *gorm.DB
	Progression *ProgressionService
}

func NewRewardDistributor(db *gorm.DB, progression *ProgressionService) *RewardDistributor {
	return &RewardDistributor{DB: db, Progression: progression}
}

// Distribute walks the season's reward tiers in the order configured. A
// tier's place list may name ranks beyond the field size; those are skipped.
// Per-participant grant failures are logged and never block the rest of the
// tier or later tiers.
func (d *RewardDistributor) Distribute(season *models.Season, ranked []models.SeasonParticipant) {
	for _, tier := range season.Rewards {
		for _, place := range tier.Places {
			if place < 1 || place > len(ranked) {
				continue
			}
			participant := ranked[place-1]
			if err := d.grant(season, participant.UserID, place, tier); err != nil {
				log.Printf("❌ [REWARDS] Failed to grant %q (place %d) to %s in season %s: %v",
					tier.Reward, place, participant.UserID, season.Name, err)
			}
		}
	}
}

func (d *RewardDistributor) grant(season *models.Season, userID string, place int, tier models.RewardTier) error {
	if tier.Value > 0 {
		reason := fmt.Sprintf("season_%s_place_%d", season.Name, place)
		if _, err := d.Progression.AwardExperience(userID, tier.Value, reason); err != nil {
			return err
		}
	}

	rewardType := models.RewardType(tier.Type)
	if rewardType == "" {
		rewardType = models.RewardTypeExperience
	}
	reward := models.Reward{
		ID:       uuid.NewString(),
		Title:    tier.Reward,
		Type:     rewardType,
		SeasonID: season.ID,
		UserID:   userID,
		Place:    place,
		Value:    tier.Value,
	}
	if err := d.DB.Create(&reward).Error; err != nil {
		return fmt.Errorf("failed to record reward row: %w", err)
	}

	log.Printf("🏆 Reward granted: %q (+%d XP) → %s (place %d, season %s)",
		tier.Reward, tier.Value, userID, place, season.Name)
	return nil
}

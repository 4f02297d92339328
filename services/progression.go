package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"fishing-competition-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseXPPerLevel anchors the level curve: L_n → L_n+1 costs
// floor(BaseXPPerLevel * n^1.2).
const BaseXPPerLevel = 100

func xpForNextLevel(currentLevel int) int64 {
	if currentLevel < 1 {
		currentLevel = 1
	}
	return int64(float64(BaseXPPerLevel) * math.Pow(float64(currentLevel), 1.2))
}

// TierThresholds: minimum level per tier.
// Deckhand→Mate at 10, Mate→Skipper at 25, etc.
var TierThresholds = map[int]int{
	1: 1,   // Deckhand (start)
	2: 10,  // Mate
	3: 25,  // Skipper
	4: 50,  // Captain
	5: 100, // Admiral
}

func determineTier(level int) int {
	for tier := 5; tier >= 1; tier-- {
		if level >= TierThresholds[tier] {
			return tier
		}
	}
	return 1
}

var tierNames = map[int]string{
	1: "Deckhand",
	2: "Mate",
	3: "Skipper",
	4: "Captain",
	5: "Admiral",
}

func tierName(tier int) string {
	if name, ok := tierNames[tier]; ok {
		return name
	}
	return "Deckhand"
}

type ProgressionService struct {
	DB *gorm.DB
}

func NewProgressionService(db *gorm.DB) *ProgressionService {
	return &ProgressionService{DB: db}
}

// EnsureProgressRecord ensures a UserProgress row exists (idempotent).
func (s *ProgressionService) EnsureProgressRecord(externalUserID string) (*models.UserProgress, error) {
	var prog models.UserProgress
	err := s.DB.Where("external_user_id = ?", externalUserID).First(&prog).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		prog = models.UserProgress{
			ID:               uuid.NewString(),
			ExternalUserID:   externalUserID,
			ExperiencePoints: 0,
			Level:            1,
			Tier:             1,
		}
		if err := s.DB.Create(&prog).Error; err != nil {
			return nil, err
		}
		return &prog, nil
	}
	if err != nil {
		return nil, err
	}
	return &prog, nil
}

// AwardExperience grants experience points with create-on-first-grant
// semantics: a user with no profile record yet starts at the granted value.
// Level and tier are recomputed inside the same transaction.
func (s *ProgressionService) AwardExperience(externalUserID string, xp int64, reason string) (*models.UserProgress, error) {
	var updated *models.UserProgress
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var prog models.UserProgress
		err := tx.Where("external_user_id = ?", externalUserID).First(&prog).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			prog = models.UserProgress{
				ID:             uuid.NewString(),
				ExternalUserID: externalUserID,
				Level:          1,
				Tier:           1,
			}
			if err := tx.Create(&prog).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		oldTier := prog.Tier
		prog.ExperiencePoints += xp

		// Level-up: accumulate until short of the next threshold.
		for prog.ExperiencePoints >= int64(BaseXPPerLevel)*int64(prog.Level)+xpForNextLevel(prog.Level) {
			prog.Level++
			now := time.Now()
			prog.LastLevelUpAt = &now
		}

		newTier := determineTier(prog.Level)
		if newTier > oldTier {
			now := time.Now()
			prog.Tier = newTier
			prog.LastTierUpAt = &now
		}

		if err := tx.Save(&prog).Error; err != nil {
			return err
		}

		updated = &models.UserProgress{}
		*updated = prog

		log.Printf("🎣 XP Awarded: %s → XP=%d, Lvl=%d, Tier=%s (reason: %s)",
			externalUserID, prog.ExperiencePoints, prog.Level, tierName(prog.Tier), reason)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RecordActivityCounter bumps the activity counter used by badge thresholds.
func (s *ProgressionService) RecordActivityCounter(externalUserID string) error {
	prog, err := s.EnsureProgressRecord(externalUserID)
	if err != nil {
		return err
	}
	return s.DB.Model(&models.UserProgress{}).
		Where("id = ?", prog.ID).
		Update("total_activities", gorm.Expr("total_activities + 1")).Error
}

// RecordCompetitionCounter bumps the competitions-joined counter.
func (s *ProgressionService) RecordCompetitionCounter(externalUserID string) error {
	prog, err := s.EnsureProgressRecord(externalUserID)
	if err != nil {
		return err
	}
	return s.DB.Model(&models.UserProgress{}).
		Where("id = ?", prog.ID).
		Update("total_competitions", gorm.Expr("total_competitions + 1")).Error
}

// GetUserProgress returns the progression summary plus competition wins.
func (s *ProgressionService) GetUserProgress(externalUserID string) (map[string]interface{}, error) {
	prog, err := s.EnsureProgressRecord(externalUserID)
	if err != nil {
		return nil, err
	}

	var competitionsWon int64
	if err := s.DB.Model(&models.Reward{}).
		Where("user_id = ? AND place = 1", externalUserID).
		Count(&competitionsWon).Error; err != nil {
		return nil, fmt.Errorf("failed to count competition wins: %w", err)
	}

	return map[string]interface{}{
		"id":                 prog.ID,
		"xp":                 prog.ExperiencePoints,
		"level":              prog.Level,
		"tier":               prog.Tier,
		"tier_name":          tierName(prog.Tier),
		"total_activities":   prog.TotalActivities,
		"total_competitions": prog.TotalCompetitions,
		"competitions_won":   competitionsWon,
		"last_level_up_at":   prog.LastLevelUpAt,
		"last_tier_up_at":    prog.LastTierUpAt,
	}, nil
}

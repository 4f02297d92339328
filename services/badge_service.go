package services

import (
	"fmt"
	"log"

	"fishing-competition-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BadgeService struct {
	DB *gorm.DB
}

func NewBadgeService(db *gorm.DB) *BadgeService {
	return &BadgeService{DB: db}
}

// SeedBadgeTypes upserts the built-in badge catalog at startup. Existing
// rows keep their code; re-seeding is a no-op.
func (s *BadgeService) SeedBadgeTypes() error {
	for _, trigger := range models.BadgeTriggers {
		row := trigger
		row.ID = uuid.NewString()
		if err := s.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

// CheckBadgesAfterActivity re-evaluates threshold badges once an activity
// has been scored. Satisfies the integration layer's BadgeChecker contract.
func (s *BadgeService) CheckBadgesAfterActivity(userID, activityType string, payload map[string]interface{}) error {
	return s.AutoAwardBadges(userID)
}

// AutoAwardBadges checks all badge triggers for a user after a progress update.
func (s *BadgeService) AutoAwardBadges(externalUserID string) error {
	var prog models.UserProgress
	if err := s.DB.Where("external_user_id = ?", externalUserID).First(&prog).Error; err != nil {
		return err
	}

	var awarded []string
	for _, trigger := range models.BadgeTriggers {
		if !s.meetsThreshold(&prog, trigger.Threshold) {
			continue
		}
		granted, err := s.AwardBadge(externalUserID, trigger.Code, "")
		if err != nil {
			return err
		}
		if granted {
			awarded = append(awarded, trigger.Name)
		}
	}

	if len(awarded) > 0 {
		log.Printf("🎖️ Badges awarded to %s: %v", externalUserID, awarded)
	}
	return nil
}

// AwardBadge grants a badge once; re-granting is a no-op. Returns whether a
// new badge row was created.
func (s *BadgeService) AwardBadge(externalUserID, badgeCode, metadata string) (bool, error) {
	var count int64
	if err := s.DB.Model(&models.UserBadge{}).
		Where("external_user_id = ? AND badge_code = ?", externalUserID, badgeCode).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	badge := models.UserBadge{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
		BadgeCode:      badgeCode,
		Metadata:       metadata,
	}
	if err := s.DB.Create(&badge).Error; err != nil {
		return false, err
	}
	log.Printf("🎖️ Badge awarded: %s → %s", badgeCode, externalUserID)
	return true, nil
}

// AwardPodiumBadge marks a top-3 season finish. Invoked by the rank_changed
// queue handler when a participant enters the podium.
func (s *BadgeService) AwardPodiumBadge(externalUserID, seasonID string, rank int) error {
	metadata := fmt.Sprintf(`{"season_id":%q,"rank":%d}`, seasonID, rank)
	_, err := s.AwardBadge(externalUserID, models.BadgeCodePodiumFinish, metadata)
	return err
}

func (s *BadgeService) meetsThreshold(prog *models.UserProgress, req map[string]int64) bool {
	for key, required := range req {
		switch key {
		case "total_activities":
			if prog.TotalActivities < required {
				return false
			}
		case "total_competitions":
			if prog.TotalCompetitions < required {
				return false
			}
		case "level":
			if int64(prog.Level) < required {
				return false
			}
		case "tier":
			if int64(prog.Tier) < required {
				return false
			}
		case "event": // special: granted by an explicit flow, not a counter
			return false
		}
	}
	return true
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// UserProgress tracks the experience-points accumulator for each angler
// (denormalized for performance). Created on first grant.
type UserProgress struct {
	ID             string `gorm:"primaryKey" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"` // links to profile service

	// Core progression
	ExperiencePoints int64 `json:"experience_points" gorm:"default:0"`
	Level            int   `json:"level" gorm:"default:1"`
	Tier             int   `json:"tier" gorm:"default:1"` // Deckhand(1)→Mate(2)→Skipper(3)→Captain(4)→Admiral(5)

	// Activity counters
	TotalActivities   int64 `json:"total_activities" gorm:"default:0"`
	TotalCompetitions int64 `json:"total_competitions" gorm:"default:0"`

	CompetitionsWon int64 `json:"competitions_won,omitempty" gorm:"-"`

	// Milestones
	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`
	LastTierUpAt  *time.Time `json:"last_tier_up_at,omitempty"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

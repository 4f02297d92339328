package models

import (
	"time"

	gorm "gorm.io/gorm"
)

// RewardType mirrors the tier types a season's reward config can carry.
type RewardType string

const (
	RewardTypeBadge      RewardType = "badge"
	RewardTypeTrophy     RewardType = "trophy"
	RewardTypeExperience RewardType = "experience"
)

// Reward is a claimable prize row created when the distributor grants a
// season reward tier. The experience points themselves land on
// UserProgress; this row is what the user sees and claims.
type Reward struct {
	ID       string     `gorm:"primaryKey" json:"id"`
	Title    string     `gorm:"not null" json:"title"`
	Type     RewardType `gorm:"not null" json:"type"`
	SeasonID string     `gorm:"index" json:"season_id"`
	UserID   string     `gorm:"index;not null" json:"user_id"`

	Place int   `json:"place"` // final rank the reward was granted for
	Value int64 `json:"value"` // experience points granted alongside

	Claimed bool `gorm:"default:false" json:"claimed"`
	Viewed  bool `gorm:"default:false;index" json:"viewed"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

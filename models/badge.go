package models

import (
	"time"
)

// BadgeType: static config (loaded from DB or seeded from BadgeTriggers)
type BadgeType struct {
	ID          string `gorm:"primaryKey"`
	Code        string `gorm:"uniqueIndex;not null"` // e.g., "FIRST_CATCH", "SEASON_CHAMP"
	Name        string `gorm:"not null"`             // "First Catch", "Season Champion"
	Description string
	IconURL     string           `gorm:"type:text"`
	Rarity      string           `gorm:"type:varchar(16);default:'common'"` // common, rare, epic, legendary
	Threshold   map[string]int64 `gorm:"serializer:json"`                   // e.g., {"total_activities": 10}, {"level": 25}
	CreatedAt   time.Time        `gorm:"autoCreateTime"`
}

// UserBadge: awarded instance (many-to-many)
type UserBadge struct {
	ID             string    `gorm:"primaryKey"`
	ExternalUserID string    `gorm:"index;not null"`
	BadgeCode      string    `gorm:"index;not null"`
	AwardedAt      time.Time `gorm:"autoCreateTime"`
	Metadata       string    `gorm:"type:text"` // JSON, e.g. {"season_id": "...", "rank": 2}
}

// Badge codes awarded directly by competition flows rather than thresholds.
const (
	BadgeCodeWelcomeAngler = "WELCOME_ANGLER"
	BadgeCodePodiumFinish  = "PODIUM_FINISH"
)

// BadgeTriggers are checked after every progression update.
var BadgeTriggers = []BadgeType{
	{
		Code:        BadgeCodeWelcomeAngler,
		Name:        "Welcome Aboard!",
		Description: "Joined your first competition",
		Rarity:      "common",
		Threshold:   map[string]int64{"event": 1}, // awarded on join
	},
	{
		Code:        BadgeCodePodiumFinish,
		Name:        "Podium Finish",
		Description: "Finished a season in the top 3",
		Rarity:      "rare",
		Threshold:   map[string]int64{"event": 1}, // awarded on podium entry
	},
	{
		Code:        "FIRST_CATCH",
		Name:        "First Catch",
		Description: "Logged your first activity",
		Rarity:      "common",
		Threshold:   map[string]int64{"total_activities": 1},
	},
	{
		Code:        "SEASON_REGULAR",
		Name:        "Season Regular",
		Description: "Competed in 5 seasons",
		Rarity:      "rare",
		Threshold:   map[string]int64{"total_competitions": 5},
	},
	{
		Code:        "LEVEL_25",
		Name:        "Seasoned Skipper",
		Description: "Reached Level 25",
		Rarity:      "epic",
		Threshold:   map[string]int64{"level": 25},
	},
	{
		Code:        "LEVEL_50",
		Name:        "Old Salt",
		Description: "Reached Level 50",
		Rarity:      "legendary",
		Threshold:   map[string]int64{"level": 50},
	},
}

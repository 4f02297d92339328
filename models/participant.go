package models

import "time"

// SeasonParticipant is one user's enrollment in one season.
// Rows are never deleted; opted-out users are flagged inactive and excluded
// from ranking and reward distribution.
//
// Invariant: TotalScore always equals the sum of CategoryScores values —
// both are only ever moved through the store's additive increment.
type SeasonParticipant struct {
	ID       string `gorm:"primaryKey" json:"id"`
	SeasonID string `gorm:"uniqueIndex:idx_season_user;not null" json:"season_id"`
	UserID   string `gorm:"uniqueIndex:idx_season_user;not null;index" json:"user_id"`

	TotalScore     int64            `json:"total_score" gorm:"default:0"`
	CategoryScores map[string]int64 `json:"category_scores" gorm:"serializer:json"`

	// Nil until the first ranking pass touches this participant.
	OverallRank *int `json:"overall_rank,omitempty"`

	IsActive       bool       `json:"is_active" gorm:"default:true"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
	JoinedAt       time.Time  `json:"joined_at" gorm:"autoCreateTime"`

	Timestamps
}

// RankChange reports one participant's movement from a ranking pass.
// PositionChange = old − new (positive = moved up); first-time rankings
// carry OldRank nil and PositionChange 0.
type RankChange struct {
	UserID         string `json:"user_id"`
	OldRank        *int   `json:"old_rank,omitempty"`
	NewRank        int    `json:"new_rank"`
	PositionChange int    `json:"position_change"`
}

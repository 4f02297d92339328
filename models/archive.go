package models

import "time"

// FinalStanding is one ranked row inside a SeasonArchive snapshot.
type FinalStanding struct {
	Rank           int              `json:"rank"`
	UserID         string           `json:"user_id"`
	Username       string           `json:"username,omitempty"`
	TotalScore     int64            `json:"total_score"`
	CategoryScores map[string]int64 `json:"category_scores,omitempty"`
}

// SeasonArchive is the write-once record of a completed season's outcome.
// Season metadata is denormalized so the archive stays readable even if the
// season row is ever mutated by an admin.
type SeasonArchive struct {
	ID       string `gorm:"primaryKey" json:"id"`
	SeasonID string `gorm:"uniqueIndex;not null" json:"season_id"`

	Name        string     `json:"name"`
	DisplayName string     `json:"display_name"`
	Type        SeasonType `json:"type" gorm:"type:varchar(16)"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     time.Time  `json:"end_date"`

	ParticipantCount int             `json:"participant_count"`
	FinalStandings   []FinalStanding `json:"final_standings" gorm:"serializer:json"`

	// Public URL of the JSON snapshot exported to R2, empty when export
	// is not configured.
	SnapshotURL string `json:"snapshot_url,omitempty"`

	ArchivedAt time.Time `json:"archived_at" gorm:"autoCreateTime"`
}

// ParticipationStats is an upserted per-season join counter, maintained by
// the participant_joined queue handler.
type ParticipationStats struct {
	ID           string     `gorm:"primaryKey" json:"id"`
	SeasonID     string     `gorm:"uniqueIndex;not null" json:"season_id"`
	TotalJoins   int64      `json:"total_joins" gorm:"default:0"`
	LastJoinedAt *time.Time `json:"last_joined_at,omitempty"`

	Timestamps
}

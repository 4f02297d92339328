package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SeasonType determines the recurrence pattern used by the scheduler.
type SeasonType string

const (
	SeasonTypeWeekly  SeasonType = "weekly"
	SeasonTypeMonthly SeasonType = "monthly"
	// Reserved for future recurrence patterns; the scheduler only
	// auto-creates weekly and monthly seasons.
	SeasonTypeSeasonal SeasonType = "seasonal"
	SeasonTypeAnnual   SeasonType = "annual"
)

// SeasonStatus is one-directional: upcoming → active → completed.
// Cancelled is a terminal escape hatch set by admins, never by the scheduler.
type SeasonStatus string

const (
	SeasonStatusUpcoming  SeasonStatus = "upcoming"
	SeasonStatusActive    SeasonStatus = "active"
	SeasonStatusCompleted SeasonStatus = "completed"
	SeasonStatusCancelled SeasonStatus = "cancelled"
)

// Scoring category tags a season can track.
const (
	CategoryMostActive        = "MOST_ACTIVE"
	CategoryBiggestCatch      = "BIGGEST_CATCH"
	CategorySpeciesSpecialist = "SPECIES_SPECIALIST"
	CategorySocialButterfly   = "SOCIAL_BUTTERFLY"
	CategoryBestMentor        = "BEST_MENTOR"
	CategoryTechniqueMaster   = "TECHNIQUE_MASTER"
	CategoryMonthlyChampions  = "MONTHLY_CHAMPIONS"
)

// ScoringRule configures one category within a season. Weight is a
// multiplier (typically 0–1, not enforced); MaxScore is the soft cap the
// scoring engine derives per-activity limits from.
type ScoringRule struct {
	Weight   float64 `json:"weight"`
	MaxScore int64   `json:"max_score"`
}

// PlaceList accepts both a single rank and an array of ranks in JSON,
// so a tier can designate one finisher or a set sharing the same reward.
type PlaceList []int

func (p *PlaceList) UnmarshalJSON(data []byte) error {
	var single int
	if err := json.Unmarshal(data, &single); err == nil {
		*p = PlaceList{single}
		return nil
	}
	var many []int
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("place must be a rank or an array of ranks: %w", err)
	}
	*p = PlaceList(many)
	return nil
}

// RewardTier grants a reward to the participant(s) finishing at Places.
// Value > 0 is granted as experience points; Reward/Type are the badge or
// trophy label rendered downstream.
type RewardTier struct {
	Places PlaceList `json:"place"`
	Reward string    `json:"reward"`
	Type   string    `json:"type"`
	Value  int64     `json:"value"`
}

// Season is a time-boxed competition.
// Invariant: registration_start_date ≤ registration_end_date ≤ start_date < end_date.
type Season struct {
	ID          string       `json:"id" gorm:"primaryKey"`
	Name        string       `json:"name" gorm:"uniqueIndex;not null"` // machine key, e.g. week_2025_01_27
	DisplayName string       `json:"display_name" gorm:"not null"`
	Type        SeasonType   `json:"type" gorm:"type:varchar(16);not null"`
	Status      SeasonStatus `json:"status" gorm:"type:varchar(16);default:'upcoming';index"`

	StartDate             time.Time `json:"start_date" gorm:"not null;index"`
	EndDate               time.Time `json:"end_date" gorm:"not null;index"`
	RegistrationStartDate time.Time `json:"registration_start_date"`
	RegistrationEndDate   time.Time `json:"registration_end_date"`

	IncludedCategories []string               `json:"included_categories" gorm:"serializer:json"`
	ScoringRules       map[string]ScoringRule `json:"scoring_rules" gorm:"serializer:json"`
	Rewards            []RewardTier           `json:"rewards" gorm:"serializer:json"`

	MaxParticipants int  `json:"max_participants" gorm:"default:0"` // 0 = unbounded
	MinParticipants int  `json:"min_participants" gorm:"default:0"` // advisory
	AutoEnroll      bool `json:"auto_enroll" gorm:"default:false"`
	IsPublic        bool `json:"is_public" gorm:"default:true"`

	// Set once the ending-soon fan-out has fired for this season.
	EndingSoonNotifiedAt *time.Time `json:"ending_soon_notified_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// ValidateWindow checks the season window invariant.
func (s *Season) ValidateWindow() error {
	if !s.StartDate.Before(s.EndDate) {
		return fmt.Errorf("start_date must be before end_date")
	}
	if s.RegistrationStartDate.After(s.RegistrationEndDate) {
		return fmt.Errorf("registration_start_date must not be after registration_end_date")
	}
	if s.RegistrationEndDate.After(s.StartDate) {
		return fmt.Errorf("registration_end_date must not be after start_date")
	}
	return nil
}

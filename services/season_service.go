package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"fishing-competition-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// Typed domain errors so the API layer can map enrollment failures to
// proper responses instead of leaking raw constraint violations.
var (
	ErrSeasonNotFound     = errors.New("season not found")
	ErrSeasonNotJoinable  = errors.New("season is not open for enrollment")
	ErrAlreadyEnrolled    = errors.New("user is already enrolled in this season")
	ErrSeasonFull         = errors.New("season has reached its participant limit")
	ErrRegistrationClosed = errors.New("season registration is closed")
)

type SeasonService struct {
	DB *gorm.DB
}

func NewSeasonService(db *gorm.DB) *SeasonService {
	return &SeasonService{DB: db}
}

// GetSeason fetches one season by ID.
func (s *SeasonService) GetSeason(seasonID string) (*models.Season, error) {
	var season models.Season
	if err := s.DB.First(&season, "id = ?", seasonID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSeasonNotFound
		}
		return nil, err
	}
	return &season, nil
}

// GetSeasonByName fetches a season by its unique machine key, e.g.
// "week_2025_01_27". Used by the scheduler's idempotent auto-creation.
func (s *SeasonService) GetSeasonByName(name string) (*models.Season, error) {
	var season models.Season
	if err := s.DB.First(&season, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSeasonNotFound
		}
		return nil, err
	}
	return &season, nil
}

// Enroll creates a participant row with zero scores. Duplicate enrollment
// maps to ErrAlreadyEnrolled whether caught by the pre-check or by the
// (season_id, user_id) uniqueness constraint.
func (s *SeasonService) Enroll(userID, seasonID string, now time.Time) (*models.SeasonParticipant, error) {
	season, err := s.GetSeason(seasonID)
	if err != nil {
		return nil, err
	}
	if season.Status != models.SeasonStatusUpcoming && season.Status != models.SeasonStatusActive {
		return nil, ErrSeasonNotJoinable
	}
	// Auto-enroll seasons bypass the registration window; everyone else may
	// join from registration open until the season ends.
	if !season.AutoEnroll {
		if now.Before(season.RegistrationStartDate) || !now.Before(season.EndDate) {
			return nil, ErrRegistrationClosed
		}
	}

	var existing models.SeasonParticipant
	err = s.DB.Where("season_id = ? AND user_id = ?", seasonID, userID).First(&existing).Error
	if err == nil {
		return nil, ErrAlreadyEnrolled
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Only active enrollments consume capacity; an opt-out frees the slot
	// even though the participant row is retained.
	if season.MaxParticipants > 0 {
		var count int64
		if err := s.DB.Model(&models.SeasonParticipant{}).
			Where("season_id = ? AND is_active = ?", seasonID, true).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if int(count) >= season.MaxParticipants {
			return nil, ErrSeasonFull
		}
	}

	participant := &models.SeasonParticipant{
		ID:             uuid.NewString(),
		SeasonID:       seasonID,
		UserID:         userID,
		TotalScore:     0,
		CategoryScores: map[string]int64{},
		IsActive:       true,
		JoinedAt:       now,
	}
	if err := s.DB.Create(participant).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyEnrolled
		}
		return nil, err
	}
	return participant, nil
}

// RecordScore increments the participant's total and merges the per-category
// points additively, keeping sum(category_scores) == total_score. A missing
// participant row is a silent no-op — callers resolve enrollment through
// ListActiveSeasonsForUser first.
//
// The total is bumped with a single SQL increment so concurrent scoring for
// the same participant never loses points. That UPDATE also takes the row
// lock for the rest of the transaction, so the category-map read below always
// sees the latest committed scores.
func (s *SeasonService) RecordScore(userID, seasonID string, categoryPoints map[string]int64, totalPoints int64, now time.Time) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.SeasonParticipant{}).
			Where("season_id = ? AND user_id = ?", seasonID, userID).
			Updates(map[string]interface{}{
				"total_score":      gorm.Expr("total_score + ?", totalPoints),
				"last_activity_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		var p models.SeasonParticipant
		if err := tx.Where("season_id = ? AND user_id = ?", seasonID, userID).First(&p).Error; err != nil {
			return err
		}
		if p.CategoryScores == nil {
			p.CategoryScores = map[string]int64{}
		}
		for category, points := range categoryPoints {
			p.CategoryScores[category] += points
		}
		return tx.Model(&p).Update("category_scores", p.CategoryScores).Error
	})
}

// ListActiveSeasonsForUser returns all ACTIVE seasons the user has an active
// participant row in.
func (s *SeasonService) ListActiveSeasonsForUser(userID string) ([]models.Season, error) {
	var seasons []models.Season
	err := s.DB.
		Joins("JOIN season_participants sp ON sp.season_id = seasons.id").
		Where("sp.user_id = ? AND sp.is_active = ? AND seasons.status = ?",
			userID, true, models.SeasonStatusActive).
		Find(&seasons).Error
	return seasons, err
}

// ListParticipantsRanked returns the season's active participants in ranking
// order: total_score DESC, tie-break joined_at ASC then user_id ASC so the
// ordering is deterministic regardless of storage order.
func (s *SeasonService) ListParticipantsRanked(seasonID string) ([]models.SeasonParticipant, error) {
	var participants []models.SeasonParticipant
	err := s.DB.
		Where("season_id = ? AND is_active = ?", seasonID, true).
		Order("total_score DESC, joined_at ASC, user_id ASC").
		Find(&participants).Error
	return participants, err
}

// RecomputeRanks assigns dense 1..N ranks over the season's active
// participants, persists only the ranks that changed, and reports every
// change. First-time rankings carry OldRank nil and PositionChange 0.
func (s *SeasonService) RecomputeRanks(seasonID string) ([]models.RankChange, error) {
	participants, err := s.ListParticipantsRanked(seasonID)
	if err != nil {
		return nil, err
	}

	var changes []models.RankChange
	for i := range participants {
		p := &participants[i]
		newRank := i + 1
		if p.OverallRank != nil && *p.OverallRank == newRank {
			continue
		}

		change := models.RankChange{UserID: p.UserID, NewRank: newRank}
		if p.OverallRank != nil {
			old := *p.OverallRank
			change.OldRank = &old
			change.PositionChange = old - newRank
		}

		if err := s.DB.Model(&models.SeasonParticipant{}).
			Where("id = ?", p.ID).
			Update("overall_rank", newRank).Error; err != nil {
			log.Printf("❌ [RANKS] Failed to persist rank %d for user %s in season %s: %v",
				newRank, p.UserID, seasonID, err)
			continue
		}
		changes = append(changes, change)
	}
	return changes, nil
}

// DeactivateParticipant soft-disables an enrollment; the row is retained but
// excluded from ranking and reward distribution.
func (s *SeasonService) DeactivateParticipant(userID, seasonID string) error {
	result := s.DB.Model(&models.SeasonParticipant{}).
		Where("season_id = ? AND user_id = ?", seasonID, userID).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSeasonNotFound
	}
	return nil
}

// ─── HTTP endpoints ─────────────────────────────────────────────────────────

// CreateSeason is the manual admin path; the scheduler covers recurring
// seasons. Name defaults to a slug of the display name.
func (s *SeasonService) CreateSeason(c *fiber.Ctx) error {
	type Req struct {
		Name                  string                        `json:"name"`
		DisplayName           string                        `json:"display_name"`
		Type                  models.SeasonType             `json:"type"`
		StartDate             time.Time                     `json:"start_date"`
		EndDate               time.Time                     `json:"end_date"`
		RegistrationStartDate time.Time                     `json:"registration_start_date"`
		RegistrationEndDate   time.Time                     `json:"registration_end_date"`
		IncludedCategories    []string                      `json:"included_categories"`
		ScoringRules          map[string]models.ScoringRule `json:"scoring_rules"`
		Rewards               []models.RewardTier           `json:"rewards"`
		MaxParticipants       int                           `json:"max_participants"`
		MinParticipants       int                           `json:"min_participants"`
		AutoEnroll            bool                          `json:"auto_enroll"`
		IsPublic              *bool                         `json:"is_public"`
	}

	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.DisplayName == "" {
		return c.Status(400).JSON(fiber.Map{"error": "display_name is required"})
	}
	if req.Type == "" {
		req.Type = models.SeasonTypeSeasonal
	}
	name := req.Name
	if name == "" {
		name = slug.Make(req.DisplayName)
	}
	for category, rule := range req.ScoringRules {
		if rule.Weight < 0 || rule.MaxScore < 0 {
			return c.Status(400).JSON(fiber.Map{"error": fmt.Sprintf("scoring rule for %s must not be negative", category)})
		}
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	season := &models.Season{
		ID:                    uuid.NewString(),
		Name:                  name,
		DisplayName:           req.DisplayName,
		Type:                  req.Type,
		Status:                models.SeasonStatusUpcoming,
		StartDate:             req.StartDate,
		EndDate:               req.EndDate,
		RegistrationStartDate: req.RegistrationStartDate,
		RegistrationEndDate:   req.RegistrationEndDate,
		IncludedCategories:    req.IncludedCategories,
		ScoringRules:          req.ScoringRules,
		Rewards:               req.Rewards,
		MaxParticipants:       req.MaxParticipants,
		MinParticipants:       req.MinParticipants,
		AutoEnroll:            req.AutoEnroll,
		IsPublic:              isPublic,
	}
	if err := season.ValidateWindow(); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	if err := s.DB.Create(season).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(409).JSON(fiber.Map{"error": "a season with this name already exists", "name": name})
		}
		log.Printf("❌ [SEASONS] Failed to create season %s: %v", name, err)
		return c.Status(500).JSON(fiber.Map{"error": "DB insert failed"})
	}
	return c.Status(201).JSON(season)
}

// GetAllSeasons lists public seasons, optionally filtered by ?status=.
func (s *SeasonService) GetAllSeasons(c *fiber.Ctx) error {
	db := s.DB.Where("is_public = ?", true)
	if status := c.Query("status"); status != "" {
		db = db.Where("status = ?", status)
	}

	var seasons []models.Season
	if err := db.Order("start_date DESC").Find(&seasons).Error; err != nil {
		log.Printf("❌ [SEASONS] Failed to list seasons: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch seasons"})
	}
	return c.JSON(seasons)
}

func (s *SeasonService) GetSeasonByID(c *fiber.Ctx) error {
	season, err := s.GetSeason(c.Params("id"))
	if err != nil {
		if errors.Is(err, ErrSeasonNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "season not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error fetching season"})
	}
	return c.JSON(season)
}

// GetSeasonArchive returns the immutable final snapshot of a completed season.
func (s *SeasonService) GetSeasonArchive(c *fiber.Ctx) error {
	var archive models.SeasonArchive
	if err := s.DB.First(&archive, "season_id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "season has not been archived"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error fetching archive"})
	}
	return c.JSON(archive)
}

// LeaveSeason lets a user opt out; the participant row survives for history.
func (s *SeasonService) LeaveSeason(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	if err := s.DeactivateParticipant(userID, c.Params("id")); err != nil {
		if errors.Is(err, ErrSeasonNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "not enrolled in this season"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "failed to leave season"})
	}
	return c.JSON(fiber.Map{"left": true})
}

package services

import (
	"errors"
	"log"
	"sync"
	"time"

	"fishing-competition-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// LeaderboardEntry is one ranked row in a season leaderboard snapshot.
type LeaderboardEntry struct {
	Rank           int              `json:"rank"`
	UserID         string           `json:"user_id"`
	Username       string           `json:"username,omitempty"`
	TotalScore     int64            `json:"total_score"`
	CategoryScores map[string]int64 `json:"category_scores,omitempty"`
}

type leaderboardSnapshot struct {
	entries     []LeaderboardEntry
	generatedAt time.Time
}

// LeaderboardService serves season leaderboards from an in-memory cache
// keyed by season ID. The integration layer invalidates entries after rank
// recomputes; stale reads inside that window are acceptable.
type LeaderboardService struct {
	DB      *gorm.DB
	Seasons *SeasonService

	mu    sync.RWMutex
	cache map[string]leaderboardSnapshot
}

func NewLeaderboardService(db *gorm.DB, seasons *SeasonService) *LeaderboardService {
	return &LeaderboardService{
		DB:      db,
		Seasons: seasons,
		cache:   map[string]leaderboardSnapshot{},
	}
}

// GetSeasonLeaderboard returns the cached snapshot, rebuilding on a miss.
func (s *LeaderboardService) GetSeasonLeaderboard(seasonID string) ([]LeaderboardEntry, error) {
	s.mu.RLock()
	snapshot, ok := s.cache[seasonID]
	s.mu.RUnlock()
	if ok {
		return snapshot.entries, nil
	}
	return s.rebuild(seasonID)
}

func (s *LeaderboardService) rebuild(seasonID string) ([]LeaderboardEntry, error) {
	ranked, err := s.Seasons.ListParticipantsRanked(seasonID)
	if err != nil {
		return nil, err
	}

	usernames := map[string]string{}
	if len(ranked) > 0 {
		ids := make([]string, len(ranked))
		for i, p := range ranked {
			ids[i] = p.UserID
		}
		var users []models.PlatformUser
		if err := s.DB.Where("external_user_id IN ?", ids).Find(&users).Error; err != nil {
			log.Printf("⚠️  [LEADERBOARD] Failed to resolve usernames for season %s: %v", seasonID, err)
		}
		for _, u := range users {
			usernames[u.ExternalUserID] = u.Username
		}
	}

	entries := make([]LeaderboardEntry, len(ranked))
	for i, p := range ranked {
		entries[i] = LeaderboardEntry{
			Rank:           i + 1,
			UserID:         p.UserID,
			Username:       usernames[p.UserID],
			TotalScore:     p.TotalScore,
			CategoryScores: p.CategoryScores,
		}
	}

	s.mu.Lock()
	s.cache[seasonID] = leaderboardSnapshot{entries: entries, generatedAt: time.Now()}
	s.mu.Unlock()
	return entries, nil
}

// InvalidateCache drops a season's snapshot; the next read rebuilds it.
func (s *LeaderboardService) InvalidateCache(seasonID string) {
	s.mu.Lock()
	delete(s.cache, seasonID)
	s.mu.Unlock()
}

// UpdateForUserActivity drops the snapshots of every active season the user
// competes in, so scores show up without waiting for a rank recompute.
func (s *LeaderboardService) UpdateForUserActivity(userID, activityType string, payload map[string]interface{}) error {
	seasons, err := s.Seasons.ListActiveSeasonsForUser(userID)
	if err != nil {
		return err
	}
	for _, season := range seasons {
		s.InvalidateCache(season.ID)
	}
	return nil
}

// GetLeaderboard is the public endpoint: GET /seasons/:id/leaderboard.
func (s *LeaderboardService) GetLeaderboard(c *fiber.Ctx) error {
	seasonID := c.Params("id")
	if _, err := s.Seasons.GetSeason(seasonID); err != nil {
		if errors.Is(err, ErrSeasonNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "season not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error fetching season"})
	}

	entries, err := s.GetSeasonLeaderboard(seasonID)
	if err != nil {
		log.Printf("❌ [LEADERBOARD] Failed to build leaderboard for %s: %v", seasonID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to build leaderboard"})
	}
	return c.JSON(fiber.Map{
		"season_id": seasonID,
		"entries":   entries,
	})
}

package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"fishing-competition-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Downstream collaborator contracts. The concrete achievement and
// notification implementations are HTTP clients; badges and leaderboards
// live in-process. All of them are fan-out targets whose failures must
// never surface to the primary write path.
type AchievementTracker interface {
	TrackEvent(ctx context.Context, userID, eventType string, payload map[string]interface{}, notify bool) error
}

type BadgeChecker interface {
	CheckBadgesAfterActivity(userID, activityType string, payload map[string]interface{}) error
	AwardBadge(userID, code, metadata string) (bool, error)
	AwardPodiumBadge(userID, seasonID string, rank int) error
}

type LeaderboardUpdater interface {
	UpdateForUserActivity(userID, activityType string, payload map[string]interface{}) error
	InvalidateCache(seasonID string)
}

type NotificationSender interface {
	Send(ctx context.Context, userID, notifType string, data map[string]interface{}) error
}

// SeasonCompleter is the scheduler's completion routine, invoked when an
// 'ended' lifecycle event arrives from outside the scheduler's own loop.
type SeasonCompleter interface {
	CompleteSeason(seasonID string) error
}

// Rank moves smaller than this don't warrant a notification; the
// leaderboard cache is invalidated either way.
const rankChangeNotifyThreshold = 3

// IntegrationService decouples the scoring hot path from slower downstream
// effects. Domain events are appended to an in-memory queue and drained on
// a fixed tick by the queue worker; direct system integrations run through
// the side-effect dispatcher, concurrently, with errors swallowed.
type IntegrationService struct {
	DB          *gorm.DB
	Seasons     *SeasonService
	Progression *ProgressionService
	Completer   SeasonCompleter

	Achievements AchievementTracker
	Badges       BadgeChecker
	Leaderboards LeaderboardUpdater
	Notifier     NotificationSender

	// RankDebounce collapses rapid score updates for the same season into
	// one recompute.
	RankDebounce time.Duration

	queueMu sync.Mutex
	queue   []models.CompetitionEvent

	drainMu  sync.Mutex
	draining bool

	rankMu     sync.Mutex
	rankTimers map[string]*time.Timer
}

func NewIntegrationService(
	db *gorm.DB,
	seasons *SeasonService,
	progression *ProgressionService,
	completer SeasonCompleter,
	achievements AchievementTracker,
	badges BadgeChecker,
	leaderboards LeaderboardUpdater,
	notifier NotificationSender,
) *IntegrationService {
	return &IntegrationService{
		DB:           db,
		Seasons:      seasons,
		Progression:  progression,
		Completer:    completer,
		Achievements: achievements,
		Badges:       badges,
		Leaderboards: leaderboards,
		Notifier:     notifier,
		RankDebounce: time.Second,
		rankTimers:   map[string]*time.Timer{},
	}
}

// ─── Side-effect dispatcher ─────────────────────────────────────────────────

type sideEffect struct {
	name string
	run  func() error
}

// runSideEffects executes independent effects concurrently and waits for
// all of them, logging per-effect outcomes. Errors never reach the caller:
// the primary write path has already succeeded by the time effects run.
func (s *IntegrationService) runSideEffects(tag string, effects ...sideEffect) {
	var wg sync.WaitGroup
	for _, effect := range effects {
		wg.Add(1)
		go func(e sideEffect) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("❌ [EFFECTS:%s] %s panicked: %v", tag, e.name, r)
				}
			}()
			if err := e.run(); err != nil {
				log.Printf("⚠️  [EFFECTS:%s] %s failed: %v", tag, e.name, err)
			}
		}(effect)
	}
	wg.Wait()
}

// ─── Inbound operations ─────────────────────────────────────────────────────

// RecordUserActivity scores one raw activity against every active season
// the user competes in, schedules debounced rank recomputes, queues
// activity_recorded events for scoring seasons, and triggers the system
// integrations once per call. Returns how many seasons were updated out of
// how many were active.
func (s *IntegrationService) RecordUserActivity(userID, activityType string, payload ActivityPayload) (int, int, error) {
	seasons, err := s.Seasons.ListActiveSeasonsForUser(userID)
	if err != nil {
		return 0, 0, err
	}

	now := time.Now()
	updated := 0
	for _, season := range seasons {
		totalPoints, categoryPoints := ComputePoints(activityType, payload, season.ScoringRules)
		if totalPoints <= 0 {
			continue
		}
		if err := s.Seasons.RecordScore(userID, season.ID, categoryPoints, totalPoints, now); err != nil {
			log.Printf("❌ [ACTIVITY] Failed to record score for %s in season %s: %v", userID, season.Name, err)
			continue
		}
		updated++
		s.scheduleRankRecompute(season.ID)
		s.QueueEvent(models.CompetitionEvent{
			Type:          models.EventActivityRecorded,
			UserID:        userID,
			CompetitionID: season.ID,
			Data: map[string]interface{}{
				"activity_type":   activityType,
				"points":          totalPoints,
				"category_points": categoryPoints,
			},
		})
	}

	effectPayload := map[string]interface{}{"activity_type": activityType, "seasons_updated": updated}
	s.runSideEffects("activity",
		sideEffect{"achievement-tracker", func() error {
			return s.Achievements.TrackEvent(context.Background(), userID, activityType, effectPayload, false)
		}},
		sideEffect{"badge-checker", func() error {
			return s.Badges.CheckBadgesAfterActivity(userID, activityType, effectPayload)
		}},
		sideEffect{"leaderboard-updater", func() error {
			return s.Leaderboards.UpdateForUserActivity(userID, activityType, effectPayload)
		}},
		sideEffect{"activity-counter", func() error {
			return s.Progression.RecordActivityCounter(userID)
		}},
	)

	return updated, len(seasons), nil
}

// HandleUserJoinCompetition enrolls the user and fans out the independent
// join effects. Enrollment errors propagate; effect failures never roll the
// enrollment back.
func (s *IntegrationService) HandleUserJoinCompetition(userID, seasonID string) (*models.SeasonParticipant, error) {
	participant, err := s.Seasons.Enroll(userID, seasonID, time.Now())
	if err != nil {
		return nil, err
	}

	s.QueueEvent(models.CompetitionEvent{
		Type:          models.EventParticipantJoined,
		UserID:        userID,
		CompetitionID: seasonID,
	})

	s.runSideEffects("join",
		sideEffect{"welcome-achievement", func() error {
			if _, err := s.Badges.AwardBadge(userID, models.BadgeCodeWelcomeAngler, ""); err != nil {
				return err
			}
			return s.Achievements.TrackEvent(context.Background(), userID, AchievementCompetitionJoined,
				map[string]interface{}{"season_id": seasonID}, true)
		}},
		sideEffect{"competition-counter", func() error {
			return s.Progression.RecordCompetitionCounter(userID)
		}},
		sideEffect{"join-notification", func() error {
			return s.Notifier.Send(context.Background(), userID, NotifCompetitionJoined,
				map[string]interface{}{"season_id": seasonID})
		}},
	)

	return participant, nil
}

// scheduleRankRecompute debounces rank recomputes per season: rapid score
// updates collapse into one pass instead of firing N redundant timers.
func (s *IntegrationService) scheduleRankRecompute(seasonID string) {
	s.rankMu.Lock()
	defer s.rankMu.Unlock()
	if _, pending := s.rankTimers[seasonID]; pending {
		return
	}
	s.rankTimers[seasonID] = time.AfterFunc(s.RankDebounce, func() {
		s.rankMu.Lock()
		delete(s.rankTimers, seasonID)
		s.rankMu.Unlock()
		if err := s.ProcessRankChanges(seasonID); err != nil {
			log.Printf("❌ [RANKS] Deferred recompute failed for season %s: %v", seasonID, err)
		}
	})
}

// ProcessRankChanges recomputes the season's ranking, queues rank_changed
// events, notifies big movers, and always invalidates the leaderboard
// cache — even when no change crossed the notification threshold.
func (s *IntegrationService) ProcessRankChanges(seasonID string) error {
	changes, err := s.Seasons.RecomputeRanks(seasonID)
	if err != nil {
		return err
	}

	for _, change := range changes {
		s.QueueEvent(models.CompetitionEvent{
			Type:          models.EventRankChanged,
			UserID:        change.UserID,
			CompetitionID: seasonID,
			Data: map[string]interface{}{
				"old_rank":        change.OldRank,
				"new_rank":        change.NewRank,
				"position_change": change.PositionChange,
			},
		})

		// First-time rankings (old rank nil) carry PositionChange 0 and are
		// not notifiable.
		move := change.PositionChange
		if move < 0 {
			move = -move
		}
		if move >= rankChangeNotifyThreshold {
			change := change
			s.runSideEffects("rank",
				sideEffect{"rank-notification", func() error {
					return s.Notifier.Send(context.Background(), change.UserID, NotifRankChanged,
						map[string]interface{}{
							"season_id":       seasonID,
							"new_rank":        change.NewRank,
							"position_change": change.PositionChange,
						})
				}},
			)
		}
	}

	s.Leaderboards.InvalidateCache(seasonID)
	return nil
}

// NotifyLifecycle fans a season phase out to all active participants and
// queues the matching lifecycle event. It never re-enters season
// completion, so the scheduler can call it safely from its own loop.
func (s *IntegrationService) NotifyLifecycle(seasonID string, phase models.LifecyclePhase) {
	season, err := s.Seasons.GetSeason(seasonID)
	if err != nil {
		log.Printf("❌ [LIFECYCLE] Unknown season %s for phase %s: %v", seasonID, phase, err)
		return
	}

	var notifType string
	var eventType models.EventType
	switch phase {
	case models.PhaseStarted:
		notifType, eventType = NotifCompetitionStarted, models.EventCompetitionStarted
	case models.PhaseEndingSoon:
		notifType, eventType = NotifCompetitionEndingSoon, ""
	case models.PhaseEnded:
		notifType, eventType = NotifCompetitionEnded, models.EventCompetitionEnded
	default:
		log.Printf("⚠️  [LIFECYCLE] Unknown phase %q for season %s", phase, seasonID)
		return
	}

	if eventType != "" {
		s.QueueEvent(models.CompetitionEvent{
			Type:          eventType,
			CompetitionID: seasonID,
		})
	}

	participants, err := s.Seasons.ListParticipantsRanked(seasonID)
	if err != nil {
		log.Printf("❌ [LIFECYCLE] Failed to load participants of %s: %v", seasonID, err)
		return
	}

	effects := make([]sideEffect, 0, len(participants))
	for _, p := range participants {
		userID := p.UserID
		effects = append(effects, sideEffect{"lifecycle-notification", func() error {
			return s.Notifier.Send(context.Background(), userID, notifType, map[string]interface{}{
				"season_id":   seasonID,
				"season_name": season.DisplayName,
				"phase":       string(phase),
			})
		}})
	}
	s.runSideEffects("lifecycle", effects...)
}

// HandleCompetitionLifecycleEvent is the externally-invoked lifecycle entry
// point. For 'ended' it defers entirely to the scheduler's completion
// routine, which performs its own fan-out exactly when a season actually
// transitions — calling this on an already-completed season is a no-op.
func (s *IntegrationService) HandleCompetitionLifecycleEvent(seasonID string, phase models.LifecyclePhase) error {
	if phase == models.PhaseEnded {
		return s.Completer.CompleteSeason(seasonID)
	}
	s.NotifyLifecycle(seasonID, phase)
	return nil
}

// ─── Event queue ────────────────────────────────────────────────────────────

// QueueEvent appends to the in-memory queue; the queue worker drains it.
func (s *IntegrationService) QueueEvent(event models.CompetitionEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	s.queueMu.Lock()
	s.queue = append(s.queue, event)
	s.queueMu.Unlock()
}

// QueueDepth reports the number of undrained events.
func (s *IntegrationService) QueueDepth() int {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	return len(s.queue)
}

// ProcessEventQueue drains the current batch. Single-flight: a tick firing
// while a drain is in progress is skipped entirely. The snapshot is taken
// and cleared atomically, so events arriving mid-drain wait for the next
// tick. Returns whether a drain actually ran.
func (s *IntegrationService) ProcessEventQueue() bool {
	s.drainMu.Lock()
	if s.draining {
		s.drainMu.Unlock()
		return false
	}
	s.draining = true
	s.drainMu.Unlock()

	defer func() {
		s.drainMu.Lock()
		s.draining = false
		s.drainMu.Unlock()
	}()

	s.queueMu.Lock()
	batch := s.queue
	s.queue = nil
	s.queueMu.Unlock()

	for _, event := range batch {
		s.processEvent(event)
	}
	return true
}

// processEvent dispatches one event inside its own error boundary; one bad
// event never stops the rest of the batch.
func (s *IntegrationService) processEvent(event models.CompetitionEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ [QUEUE] Event %s for season %s panicked: %v", event.Type, event.CompetitionID, r)
		}
	}()

	var err error
	switch event.Type {
	case models.EventActivityRecorded:
		err = s.Notifier.Send(context.Background(), event.UserID, NotifActivityScored, event.Data)

	case models.EventRankChanged:
		if newRank, ok := event.Data["new_rank"].(int); ok && newRank <= 3 {
			if err = s.Badges.AwardPodiumBadge(event.UserID, event.CompetitionID, newRank); err == nil {
				err = s.Achievements.TrackEvent(context.Background(), event.UserID, AchievementTopThreeFinish,
					map[string]interface{}{"season_id": event.CompetitionID, "rank": newRank}, true)
			}
		}

	case models.EventParticipantJoined:
		err = s.bumpParticipationStats(event.CompetitionID, event.Timestamp)

	case models.EventCompetitionStarted:
		err = s.ensureParticipationStats(event.CompetitionID)

	case models.EventCompetitionEnded:
		s.Leaderboards.InvalidateCache(event.CompetitionID)

	default:
		log.Printf("⚠️  [QUEUE] Unhandled event type %q", event.Type)
	}

	if err != nil {
		log.Printf("⚠️  [QUEUE] Event %s for season %s failed: %v", event.Type, event.CompetitionID, err)
	}
}

// bumpParticipationStats upserts the per-season join counter.
func (s *IntegrationService) bumpParticipationStats(seasonID string, joinedAt time.Time) error {
	stats := models.ParticipationStats{
		ID:           uuid.NewString(),
		SeasonID:     seasonID,
		TotalJoins:   1,
		LastJoinedAt: &joinedAt,
	}
	return s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "season_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_joins":    gorm.Expr("total_joins + 1"),
			"last_joined_at": joinedAt,
		}),
	}).Create(&stats).Error
}

func (s *IntegrationService) ensureParticipationStats(seasonID string) error {
	stats := models.ParticipationStats{
		ID:       uuid.NewString(),
		SeasonID: seasonID,
	}
	return s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "season_id"}},
		DoNothing: true,
	}).Create(&stats).Error
}

// ─── HTTP endpoints ─────────────────────────────────────────────────────────

// RecordActivity is POST /activity: the platform reports a raw user
// activity ("user logged a catch").
func (s *IntegrationService) RecordActivity(c *fiber.Ctx) error {
	type Req struct {
		ActivityType string          `json:"activity_type"`
		Payload      ActivityPayload `json:"payload"`
	}
	userID := c.Locals("user_id").(string)

	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.ActivityType == "" {
		return c.Status(400).JSON(fiber.Map{"error": "activity_type is required"})
	}

	updated, active, err := s.RecordUserActivity(userID, req.ActivityType, req.Payload)
	if err != nil {
		log.Printf("❌ [ACTIVITY] Failed for user %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to record activity"})
	}
	return c.JSON(fiber.Map{
		"competitions_updated": updated,
		"competitions_active":  active,
	})
}

// JoinSeason is POST /seasons/:id/join.
func (s *IntegrationService) JoinSeason(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	seasonID := c.Params("id")

	participant, err := s.HandleUserJoinCompetition(userID, seasonID)
	if err != nil {
		switch {
		case errors.Is(err, ErrSeasonNotFound):
			return c.Status(404).JSON(fiber.Map{"error": "season not found"})
		case errors.Is(err, ErrAlreadyEnrolled):
			return c.Status(409).JSON(fiber.Map{"error": "already enrolled in this season"})
		case errors.Is(err, ErrSeasonFull):
			return c.Status(403).JSON(fiber.Map{"error": "season is full"})
		case errors.Is(err, ErrRegistrationClosed):
			return c.Status(403).JSON(fiber.Map{"error": "registration is closed"})
		case errors.Is(err, ErrSeasonNotJoinable):
			return c.Status(400).JSON(fiber.Map{"error": "season is not open for enrollment"})
		default:
			log.Printf("❌ [JOIN] Failed for user %s season %s: %v", userID, seasonID, err)
			return c.Status(500).JSON(fiber.Map{"error": "failed to join season"})
		}
	}
	return c.Status(201).JSON(participant)
}

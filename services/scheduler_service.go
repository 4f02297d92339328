package services

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"fishing-competition-system/models"
	"fishing-competition-system/utils"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LifecycleNotifier is the narrow slice of the integration layer the
// scheduler needs: notification fan-out only. The scheduler runs season
// completion itself, so notifying can never re-enter the completion routine.
type LifecycleNotifier interface {
	NotifyLifecycle(seasonID string, phase models.LifecyclePhase)
}

// SchedulerService drives the season state machine on a fixed tick:
// promote UPCOMING → ACTIVE, auto-create recurring seasons ahead of need,
// fire ending-soon notices, and complete expired seasons. Constructed once
// at process start and injected where needed — no package-level state.
type SchedulerService struct {
	DB          *gorm.DB
	Seasons     *SeasonService
	Distributor *RewardDistributor

	// Now is the injected clock; tests swap it for a fixed time.
	Now func() time.Time

	// Interval between maintenance cycles (default hourly).
	Interval time.Duration

	notifier LifecycleNotifier

	mu        sync.Mutex
	isRunning bool
	sched     gocron.Scheduler
}

func NewSchedulerService(db *gorm.DB, seasons *SeasonService, distributor *RewardDistributor) *SchedulerService {
	return &SchedulerService{
		DB:          db,
		Seasons:     seasons,
		Distributor: distributor,
		Now:         time.Now,
		Interval:    time.Hour,
	}
}

// SetNotifier wires the integration layer after construction; the
// integration service in turn holds the scheduler for 'ended' handling.
func (s *SchedulerService) SetNotifier(n LifecycleNotifier) {
	s.notifier = n
}

// Start runs one maintenance cycle immediately, then on the fixed interval.
// Calling Start twice is a safe no-op.
func (s *SchedulerService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		log.Println("⚠️  [SCHEDULER] Start called while already running — ignored")
		return nil
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(s.Interval),
		gocron.NewTask(s.RunMaintenanceCycle),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	); err != nil {
		return fmt.Errorf("failed to schedule maintenance job: %w", err)
	}
	sched.Start()

	s.sched = sched
	s.isRunning = true
	log.Printf("✅ [SCHEDULER] Season maintenance running (every %s)", s.Interval)
	return nil
}

// Stop shuts the ticker down; in-flight cycles finish.
func (s *SchedulerService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return
	}
	if err := s.sched.Shutdown(); err != nil {
		log.Printf("⚠️  [SCHEDULER] Shutdown error: %v", err)
	}
	s.isRunning = false
}

// RunMaintenanceCycle performs one tick of the state machine. Step failures
// are logged and the remaining steps still run; the next tick retries.
func (s *SchedulerService) RunMaintenanceCycle() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ [SCHEDULER] Maintenance cycle panicked: %v", r)
		}
	}()

	now := s.Now()
	if err := s.activateDueSeasons(now); err != nil {
		log.Printf("❌ [SCHEDULER] Activation step failed: %v", err)
	}
	if err := s.ensureWeeklySeasons(now); err != nil {
		log.Printf("❌ [SCHEDULER] Weekly auto-creation failed: %v", err)
	}
	if err := s.ensureMonthlySeason(now); err != nil {
		log.Printf("❌ [SCHEDULER] Monthly auto-creation failed: %v", err)
	}
	if err := s.notifyEndingSoon(now); err != nil {
		log.Printf("❌ [SCHEDULER] Ending-soon step failed: %v", err)
	}
	s.completeExpiredSeasons(now)
}

// activateDueSeasons promotes every UPCOMING season whose start has passed.
func (s *SchedulerService) activateDueSeasons(now time.Time) error {
	var due []models.Season
	if err := s.DB.
		Where("status = ? AND start_date <= ?", models.SeasonStatusUpcoming, now).
		Find(&due).Error; err != nil {
		return err
	}

	for _, season := range due {
		if err := s.DB.Model(&models.Season{}).
			Where("id = ? AND status = ?", season.ID, models.SeasonStatusUpcoming).
			Update("status", models.SeasonStatusActive).Error; err != nil {
			log.Printf("❌ [SCHEDULER] Failed to activate season %s: %v", season.Name, err)
			continue
		}
		log.Printf("🟢 [SCHEDULER] Season activated: %s", season.Name)
		if s.notifier != nil {
			s.notifier.NotifyLifecycle(season.ID, models.PhaseStarted)
		}
	}
	return nil
}

// startOfISOWeek truncates to the Monday 00:00 of t's week.
func startOfISOWeek(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return day.AddDate(0, 0, -(weekday - 1))
}

// ensureWeeklySeasons creates the next two ISO weeks' seasons if missing.
// Existence is checked by the deterministic name key, so re-running a tick
// can never duplicate a week.
func (s *SchedulerService) ensureWeeklySeasons(now time.Time) error {
	for i := 1; i <= 2; i++ {
		weekStart := startOfISOWeek(now).AddDate(0, 0, 7*i)
		name := fmt.Sprintf("week_%s", weekStart.Format("2006_01_02"))

		if _, err := s.Seasons.GetSeasonByName(name); err == nil {
			continue
		} else if !errors.Is(err, ErrSeasonNotFound) {
			return err
		}

		season := &models.Season{
			ID:                    uuid.NewString(),
			Name:                  name,
			DisplayName:           fmt.Sprintf("Week of %s", weekStart.Format("January 2, 2006")),
			Type:                  models.SeasonTypeWeekly,
			Status:                models.SeasonStatusUpcoming,
			StartDate:             weekStart,
			EndDate:               weekStart.AddDate(0, 0, 7),
			RegistrationStartDate: weekStart.AddDate(0, 0, -3),
			RegistrationEndDate:   weekStart.AddDate(0, 0, -1),
			IncludedCategories:    []string{models.CategoryMostActive, models.CategoryBiggestCatch},
			ScoringRules: map[string]models.ScoringRule{
				models.CategoryMostActive:   {Weight: 0.5, MaxScore: 100},
				models.CategoryBiggestCatch: {Weight: 0.5, MaxScore: 100},
			},
			Rewards: []models.RewardTier{
				{Places: models.PlaceList{1}, Reward: "Weekly Champion", Type: string(models.RewardTypeBadge), Value: 100},
			},
			MaxParticipants: 50,
			MinParticipants: 5,
			IsPublic:        true,
		}
		if err := s.DB.Create(season).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue // lost a race with another tick; season exists
			}
			return fmt.Errorf("failed to create weekly season %s: %w", name, err)
		}
		log.Printf("📅 [SCHEDULER] Weekly season created: %s", name)
	}
	return nil
}

// ensureMonthlySeason creates next calendar month's season if missing.
func (s *SchedulerService) ensureMonthlySeason(now time.Time) error {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, 1, 0)
	name := fmt.Sprintf("month_%s", monthStart.Format("2006_01"))

	if _, err := s.Seasons.GetSeasonByName(name); err == nil {
		return nil
	} else if !errors.Is(err, ErrSeasonNotFound) {
		return err
	}

	season := &models.Season{
		ID:                    uuid.NewString(),
		Name:                  name,
		DisplayName:           fmt.Sprintf("%s Championship", monthStart.Format("January 2006")),
		Type:                  models.SeasonTypeMonthly,
		Status:                models.SeasonStatusUpcoming,
		StartDate:             monthStart,
		EndDate:               monthStart.AddDate(0, 1, 0),
		RegistrationStartDate: monthStart.AddDate(0, 0, -7),
		RegistrationEndDate:   monthStart.AddDate(0, 0, -1),
		IncludedCategories: []string{
			models.CategoryMonthlyChampions, models.CategoryMostActive, models.CategoryBiggestCatch,
		},
		ScoringRules: map[string]models.ScoringRule{
			models.CategoryMonthlyChampions: {Weight: 0.4, MaxScore: 300},
			models.CategoryMostActive:       {Weight: 0.3, MaxScore: 200},
			models.CategoryBiggestCatch:     {Weight: 0.3, MaxScore: 200},
		},
		Rewards: []models.RewardTier{
			{Places: models.PlaceList{1}, Reward: "Monthly Champion", Type: string(models.RewardTypeTrophy), Value: 500},
			{Places: models.PlaceList{2, 3}, Reward: "Monthly Podium", Type: string(models.RewardTypeBadge), Value: 250},
		},
		MaxParticipants: 200,
		MinParticipants: 20,
		IsPublic:        true,
	}
	if err := s.DB.Create(season).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return fmt.Errorf("failed to create monthly season %s: %w", name, err)
	}
	log.Printf("📅 [SCHEDULER] Monthly season created: %s", name)
	return nil
}

// notifyEndingSoon fires a one-time ending_soon fan-out for active seasons
// inside their final 24 hours.
func (s *SchedulerService) notifyEndingSoon(now time.Time) error {
	var ending []models.Season
	if err := s.DB.
		Where("status = ? AND end_date > ? AND end_date <= ? AND ending_soon_notified_at IS NULL",
			models.SeasonStatusActive, now, now.Add(24*time.Hour)).
		Find(&ending).Error; err != nil {
		return err
	}

	for _, season := range ending {
		if err := s.DB.Model(&models.Season{}).
			Where("id = ?", season.ID).
			Update("ending_soon_notified_at", now).Error; err != nil {
			log.Printf("❌ [SCHEDULER] Failed to mark ending-soon for %s: %v", season.Name, err)
			continue
		}
		if s.notifier != nil {
			s.notifier.NotifyLifecycle(season.ID, models.PhaseEndingSoon)
		}
	}
	return nil
}

// completeExpiredSeasons runs the completion routine on every ACTIVE season
// past its end date. Each season is isolated: one failure is logged and the
// batch continues.
func (s *SchedulerService) completeExpiredSeasons(now time.Time) {
	var expired []models.Season
	if err := s.DB.
		Where("status = ? AND end_date <= ?", models.SeasonStatusActive, now).
		Find(&expired).Error; err != nil {
		log.Printf("❌ [SCHEDULER] Failed to list expired seasons: %v", err)
		return
	}

	for _, season := range expired {
		if err := s.CompleteSeason(season.ID); err != nil {
			log.Printf("❌ [SCHEDULER] Failed to complete season %s: %v", season.Name, err)
		}
	}
}

// CompleteSeason is the completion routine: final ranking, reward
// distribution, archive snapshot, status flip. Running it on a season that
// is not ACTIVE (already completed, cancelled) is a safe no-op — no double
// archive, no duplicate grants.
func (s *SchedulerService) CompleteSeason(seasonID string) error {
	season, err := s.Seasons.GetSeason(seasonID)
	if err != nil {
		return err
	}
	if season.Status != models.SeasonStatusActive {
		return nil
	}

	ranked, err := s.Seasons.ListParticipantsRanked(seasonID)
	if err != nil {
		return fmt.Errorf("failed to load participants: %w", err)
	}
	if len(ranked) < season.MinParticipants {
		log.Printf("⚠️  [SCHEDULER] Season %s completing with %d participants (minimum %d)",
			season.Name, len(ranked), season.MinParticipants)
	}

	// Persist final ranks so participant rows agree with the archive.
	for i := range ranked {
		finalRank := i + 1
		ranked[i].OverallRank = &finalRank
		if err := s.DB.Model(&models.SeasonParticipant{}).
			Where("id = ?", ranked[i].ID).
			Update("overall_rank", finalRank).Error; err != nil {
			log.Printf("❌ [SCHEDULER] Failed to persist final rank for %s: %v", ranked[i].UserID, err)
		}
	}

	s.Distributor.Distribute(season, ranked)

	archive := s.buildArchive(season, ranked)
	if err := s.DB.Create(archive).Error; err != nil {
		return fmt.Errorf("failed to write season archive: %w", err)
	}

	if err := s.DB.Model(&models.Season{}).
		Where("id = ?", seasonID).
		Update("status", models.SeasonStatusCompleted).Error; err != nil {
		return fmt.Errorf("failed to mark season completed: %w", err)
	}

	log.Printf("🏁 [SCHEDULER] Season completed: %s (%d participants)", season.Name, len(ranked))
	if s.notifier != nil {
		s.notifier.NotifyLifecycle(seasonID, models.PhaseEnded)
	}
	return nil
}

// buildArchive denormalizes the season and its final standings, resolving
// usernames from the profile mirror, and exports a JSON snapshot to R2 when
// object storage is configured.
func (s *SchedulerService) buildArchive(season *models.Season, ranked []models.SeasonParticipant) *models.SeasonArchive {
	usernames := map[string]string{}
	if len(ranked) > 0 {
		ids := make([]string, len(ranked))
		for i, p := range ranked {
			ids[i] = p.UserID
		}
		var users []models.PlatformUser
		if err := s.DB.Where("external_user_id IN ?", ids).Find(&users).Error; err != nil {
			log.Printf("⚠️  [SCHEDULER] Failed to resolve usernames for archive %s: %v", season.Name, err)
		}
		for _, u := range users {
			usernames[u.ExternalUserID] = u.Username
		}
	}

	standings := make([]models.FinalStanding, len(ranked))
	for i, p := range ranked {
		standings[i] = models.FinalStanding{
			Rank:           i + 1,
			UserID:         p.UserID,
			Username:       usernames[p.UserID],
			TotalScore:     p.TotalScore,
			CategoryScores: p.CategoryScores,
		}
	}

	archive := &models.SeasonArchive{
		ID:               uuid.NewString(),
		SeasonID:         season.ID,
		Name:             season.Name,
		DisplayName:      season.DisplayName,
		Type:             season.Type,
		StartDate:        season.StartDate,
		EndDate:          season.EndDate,
		ParticipantCount: len(ranked),
		FinalStandings:   standings,
		ArchivedAt:       s.Now(),
	}

	if utils.R2Enabled() {
		key := fmt.Sprintf("archives/%s.json", season.Name)
		url, err := utils.UploadJSONToR2(key, archive)
		if err != nil {
			log.Printf("⚠️  [SCHEDULER] Archive snapshot export failed for %s: %v", season.Name, err)
		} else {
			archive.SnapshotURL = url
		}
	}
	return archive
}

package services

import (
	"fmt"
	"testing"
	"time"

	"fishing-competition-system/models"
)

func newTestScheduler(t *testing.T, now time.Time) *SchedulerService {
	t.Helper()
	db := newTestDB(t)
	seasons := NewSeasonService(db)
	progression := NewProgressionService(db)
	sched := NewSchedulerService(db, seasons, NewRewardDistributor(db, progression))
	sched.Now = func() time.Time { return now }
	return sched
}

func TestMaintenanceCreatesRecurringSeasons(t *testing.T) {
	// Wednesday 2025-06-04; the next two ISO weeks start 06-09 and 06-16.
	now := time.Date(2025, 6, 4, 10, 0, 0, 0, time.UTC)
	sched := newTestScheduler(t, now)

	sched.RunMaintenanceCycle()

	for _, name := range []string{"week_2025_06_09", "week_2025_06_16", "month_2025_07"} {
		season, err := sched.Seasons.GetSeasonByName(name)
		if err != nil {
			t.Fatalf("expected season %s to exist: %v", name, err)
		}
		if season.Status != models.SeasonStatusUpcoming {
			t.Fatalf("auto-created season %s must be upcoming, got %s", name, season.Status)
		}
		if err := season.ValidateWindow(); err != nil {
			t.Fatalf("auto-created season %s has an invalid window: %v", name, err)
		}
	}

	weekly, _ := sched.Seasons.GetSeasonByName("week_2025_06_09")
	if !weekly.StartDate.Equal(time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("weekly season must start on Monday, got %v", weekly.StartDate)
	}
	if weekly.MaxParticipants != 50 || weekly.MinParticipants != 5 {
		t.Fatalf("unexpected weekly capacity: max=%d min=%d", weekly.MaxParticipants, weekly.MinParticipants)
	}

	monthly, _ := sched.Seasons.GetSeasonByName("month_2025_07")
	if len(monthly.Rewards) != 2 {
		t.Fatalf("monthly season must carry two reward tiers, got %d", len(monthly.Rewards))
	}
	if len(monthly.Rewards[1].Places) != 2 {
		t.Fatalf("second monthly tier must cover places 2 and 3, got %v", monthly.Rewards[1].Places)
	}
}

func TestMaintenanceIsIdempotent(t *testing.T) {
	now := time.Date(2025, 6, 4, 10, 0, 0, 0, time.UTC)
	sched := newTestScheduler(t, now)

	sched.RunMaintenanceCycle()
	sched.RunMaintenanceCycle()
	sched.RunMaintenanceCycle()

	var count int64
	if err := sched.DB.Model(&models.Season{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("re-running maintenance must not duplicate seasons, got %d rows", count)
	}
}

func TestMaintenanceActivatesDueSeasons(t *testing.T) {
	now := time.Date(2025, 6, 4, 10, 0, 0, 0, time.UTC)
	sched := newTestScheduler(t, now)

	season := &models.Season{
		ID:          "due-season",
		Name:        "due_season",
		DisplayName: "Due Season",
		Type:        models.SeasonTypeWeekly,
		Status:      models.SeasonStatusUpcoming,
		StartDate:   now.Add(-time.Hour),
		EndDate:     now.AddDate(0, 0, 7),
	}
	if err := sched.DB.Create(season).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	sched.RunMaintenanceCycle()

	got, _ := sched.Seasons.GetSeason("due-season")
	if got.Status != models.SeasonStatusActive {
		t.Fatalf("expected season to be activated, got %s", got.Status)
	}
}

type recordingNotifier struct {
	calls []string
}

func (n *recordingNotifier) NotifyLifecycle(seasonID string, phase models.LifecyclePhase) {
	n.calls = append(n.calls, fmt.Sprintf("%s:%s", seasonID, phase))
}

func TestEndingSoonFiresOnce(t *testing.T) {
	now := time.Date(2025, 6, 4, 10, 0, 0, 0, time.UTC)
	sched := newTestScheduler(t, now)
	notifier := &recordingNotifier{}
	sched.SetNotifier(notifier)

	season := &models.Season{
		ID:          "ending-season",
		Name:        "ending_season",
		DisplayName: "Ending Season",
		Type:        models.SeasonTypeWeekly,
		Status:      models.SeasonStatusActive,
		StartDate:   now.AddDate(0, 0, -6),
		EndDate:     now.Add(12 * time.Hour),
	}
	if err := sched.DB.Create(season).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	sched.RunMaintenanceCycle()
	sched.RunMaintenanceCycle()

	var endingSoon int
	for _, call := range notifier.calls {
		if call == "ending-season:ending_soon" {
			endingSoon++
		}
	}
	if endingSoon != 1 {
		t.Fatalf("ending_soon must fire exactly once, fired %d times", endingSoon)
	}
}

func TestCompleteSeasonFullFlow(t *testing.T) {
	now := time.Date(2025, 6, 9, 1, 0, 0, 0, time.UTC)
	sched := newTestScheduler(t, now)
	notifier := &recordingNotifier{}
	sched.SetNotifier(notifier)

	season := &models.Season{
		ID:          "finished-season",
		Name:        "finished_season",
		DisplayName: "Finished Season",
		Type:        models.SeasonTypeWeekly,
		Status:      models.SeasonStatusActive,
		StartDate:   now.AddDate(0, 0, -7),
		EndDate:     now.Add(-time.Hour),
		Rewards: []models.RewardTier{
			{Places: models.PlaceList{1}, Reward: "Weekly Champion", Type: "badge", Value: 100},
			{Places: models.PlaceList{2, 3}, Reward: "Runner Up", Type: "badge", Value: 50},
		},
	}
	if err := sched.DB.Create(season).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	joinTime := season.StartDate
	for i, user := range []string{"first", "second", "third"} {
		if _, err := sched.Seasons.Enroll(user, season.ID, joinTime.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("enroll %s failed: %v", user, err)
		}
		score := int64(100 - i*10)
		sched.Seasons.RecordScore(user, season.ID, map[string]int64{models.CategoryMostActive: score}, score, joinTime)
	}

	sched.RunMaintenanceCycle()

	got, _ := sched.Seasons.GetSeason(season.ID)
	if got.Status != models.SeasonStatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}

	// Winner got the tier-1 reward, places 2 and 3 the shared tier.
	var rewards []models.Reward
	if err := sched.DB.Where("season_id = ?", season.ID).Order("place ASC").Find(&rewards).Error; err != nil {
		t.Fatalf("failed to load rewards: %v", err)
	}
	if len(rewards) != 3 {
		t.Fatalf("expected 3 reward rows, got %d", len(rewards))
	}
	if rewards[0].UserID != "first" || rewards[0].Value != 100 {
		t.Fatalf("unexpected winner reward: %+v", rewards[0])
	}
	if rewards[1].UserID != "second" || rewards[2].UserID != "third" {
		t.Fatalf("shared tier misassigned: %+v %+v", rewards[1], rewards[2])
	}

	// XP landed on progression.
	var prog models.UserProgress
	if err := sched.DB.Where("external_user_id = ?", "first").First(&prog).Error; err != nil {
		t.Fatalf("winner progress missing: %v", err)
	}
	if prog.ExperiencePoints != 100 {
		t.Fatalf("expected 100 XP on winner, got %d", prog.ExperiencePoints)
	}

	// Archive written with full standings.
	var archive models.SeasonArchive
	if err := sched.DB.Where("season_id = ?", season.ID).First(&archive).Error; err != nil {
		t.Fatalf("archive missing: %v", err)
	}
	if archive.ParticipantCount != 3 || len(archive.FinalStandings) != 3 {
		t.Fatalf("unexpected archive contents: %+v", archive)
	}
	if archive.FinalStandings[0].UserID != "first" || archive.FinalStandings[0].Rank != 1 {
		t.Fatalf("unexpected top standing: %+v", archive.FinalStandings[0])
	}

	// Ended fan-out fired.
	found := false
	for _, call := range notifier.calls {
		if call == "finished-season:ended" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected ended lifecycle fan-out")
	}
}

func TestCompleteSeasonIsIdempotent(t *testing.T) {
	now := time.Date(2025, 6, 9, 1, 0, 0, 0, time.UTC)
	sched := newTestScheduler(t, now)

	season := &models.Season{
		ID:          "twice-season",
		Name:        "twice_season",
		DisplayName: "Twice Season",
		Type:        models.SeasonTypeWeekly,
		Status:      models.SeasonStatusActive,
		StartDate:   now.AddDate(0, 0, -7),
		EndDate:     now.Add(-time.Hour),
		Rewards: []models.RewardTier{
			{Places: models.PlaceList{1}, Reward: "Champion", Type: "badge", Value: 100},
		},
	}
	if err := sched.DB.Create(season).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if _, err := sched.Seasons.Enroll("solo", season.ID, season.StartDate); err != nil {
		t.Fatalf("enroll failed: %v", err)
	}

	if err := sched.CompleteSeason(season.ID); err != nil {
		t.Fatalf("first completion failed: %v", err)
	}
	if err := sched.CompleteSeason(season.ID); err != nil {
		t.Fatalf("second completion must be a no-op, got %v", err)
	}

	var rewardCount, archiveCount int64
	sched.DB.Model(&models.Reward{}).Where("season_id = ?", season.ID).Count(&rewardCount)
	sched.DB.Model(&models.SeasonArchive{}).Where("season_id = ?", season.ID).Count(&archiveCount)
	if rewardCount != 1 || archiveCount != 1 {
		t.Fatalf("double completion leaked grants: rewards=%d archives=%d", rewardCount, archiveCount)
	}
}

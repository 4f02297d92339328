package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"fishing-competition-system/models"
)

type fakeAchievements struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeAchievements) TrackEvent(ctx context.Context, userID, eventType string, payload map[string]interface{}, notify bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, userID+":"+eventType)
	return nil
}

func (f *fakeAchievements) tracked(entry string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e == entry {
			return true
		}
	}
	return false
}

type fakeNotifier struct {
	mu sync.Mutex
	// block, when set, holds every Send until released once.
	block chan struct{}
	sent  []string
}

func (f *fakeNotifier) Send(ctx context.Context, userID, notifType string, data map[string]interface{}) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, userID+":"+notifType)
	return nil
}

func (f *fakeNotifier) count(entry string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.sent {
		if e == entry {
			n++
		}
	}
	return n
}

type fakeLeaderboards struct {
	mu          sync.Mutex
	invalidated []string
	updates     []string
}

func (f *fakeLeaderboards) UpdateForUserActivity(userID, activityType string, payload map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, userID)
	return nil
}

func (f *fakeLeaderboards) InvalidateCache(seasonID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, seasonID)
}

type fakeCompleter struct {
	mu        sync.Mutex
	completed []string
}

func (f *fakeCompleter) CompleteSeason(seasonID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, seasonID)
	return nil
}

type integrationFixture struct {
	svc          *IntegrationService
	seasons      *SeasonService
	achievements *fakeAchievements
	notifier     *fakeNotifier
	leaderboards *fakeLeaderboards
	completer    *fakeCompleter
	badges       *BadgeService
}

func newIntegrationFixture(t *testing.T) *integrationFixture {
	t.Helper()
	db := newTestDB(t)
	seasons := NewSeasonService(db)
	progression := NewProgressionService(db)
	badges := NewBadgeService(db)
	achievements := &fakeAchievements{}
	notifier := &fakeNotifier{}
	leaderboards := &fakeLeaderboards{}
	completer := &fakeCompleter{}

	svc := NewIntegrationService(db, seasons, progression, completer, achievements, badges, leaderboards, notifier)
	svc.RankDebounce = 5 * time.Millisecond

	return &integrationFixture{
		svc:          svc,
		seasons:      seasons,
		achievements: achievements,
		notifier:     notifier,
		leaderboards: leaderboards,
		completer:    completer,
		badges:       badges,
	}
}

func (fx *integrationFixture) seedActiveSeason(t *testing.T) *models.Season {
	t.Helper()
	svc := fx.seasons
	return seedSeason(t, svc, nil)
}

func TestRecordUserActivityScoresActiveSeason(t *testing.T) {
	fx := newIntegrationFixture(t)
	season := fx.seedActiveSeason(t)
	joinTime := season.StartDate.Add(time.Hour)

	if _, err := fx.seasons.Enroll("angler", season.ID, joinTime); err != nil {
		t.Fatalf("enroll failed: %v", err)
	}

	updated, active, err := fx.svc.RecordUserActivity("angler", ActivityTripCompleted, ActivityPayload{Duration: 2})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if updated != 1 || active != 1 {
		t.Fatalf("expected 1/1 seasons updated, got %d/%d", updated, active)
	}

	var p models.SeasonParticipant
	if err := fx.seasons.DB.Where("season_id = ? AND user_id = ?", season.ID, "angler").First(&p).Error; err != nil {
		t.Fatalf("participant missing: %v", err)
	}
	if p.TotalScore != 10 {
		t.Fatalf("expected 10 points recorded, got %d", p.TotalScore)
	}

	if fx.svc.QueueDepth() != 1 {
		t.Fatalf("expected one queued activity event, depth=%d", fx.svc.QueueDepth())
	}
	if !fx.achievements.tracked("angler:" + ActivityTripCompleted) {
		t.Fatal("achievement tracker must see the activity")
	}

	// Debounced recompute lands shortly after.
	time.Sleep(100 * time.Millisecond)
	if err := fx.seasons.DB.Where("season_id = ? AND user_id = ?", season.ID, "angler").First(&p).Error; err != nil {
		t.Fatalf("participant missing after recompute: %v", err)
	}
	if p.OverallRank == nil || *p.OverallRank != 1 {
		t.Fatalf("debounced recompute should assign rank 1, got %v", p.OverallRank)
	}
}

func TestRecordUserActivityZeroPointsNotQueued(t *testing.T) {
	fx := newIntegrationFixture(t)
	season := fx.seedActiveSeason(t) // scores MOST_ACTIVE only
	joinTime := season.StartDate.Add(time.Hour)

	if _, err := fx.seasons.Enroll("angler", season.ID, joinTime); err != nil {
		t.Fatalf("enroll failed: %v", err)
	}

	updated, active, err := fx.svc.RecordUserActivity("angler", ActivityPhotoShared, ActivityPayload{})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if updated != 0 || active != 1 {
		t.Fatalf("photo must not score in a MOST_ACTIVE-only season, got %d/%d", updated, active)
	}
	if fx.svc.QueueDepth() != 0 {
		t.Fatalf("zero-point activities must not enqueue events, depth=%d", fx.svc.QueueDepth())
	}
	// Downstream integrations still fire once per call.
	if !fx.achievements.tracked("angler:" + ActivityPhotoShared) {
		t.Fatal("achievement tracker must see the activity even when it scored nothing")
	}
}

func TestJoinFlow(t *testing.T) {
	fx := newIntegrationFixture(t)
	season := fx.seedActiveSeason(t)

	p, err := fx.svc.HandleUserJoinCompetition("angler", season.ID)
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if p.UserID != "angler" {
		t.Fatalf("unexpected participant %+v", p)
	}

	// Welcome badge and join notification are side effects of the join.
	var badge models.UserBadge
	if err := fx.badges.DB.Where("external_user_id = ? AND badge_code = ?", "angler", models.BadgeCodeWelcomeAngler).
		First(&badge).Error; err != nil {
		t.Fatalf("welcome badge missing: %v", err)
	}
	if fx.notifier.count("angler:"+NotifCompetitionJoined) != 1 {
		t.Fatal("expected one join notification")
	}
	if !fx.achievements.tracked("angler:" + AchievementCompetitionJoined) {
		t.Fatal("expected competition_joined achievement event")
	}

	// Draining the queue maintains the per-season join counter.
	if !fx.svc.ProcessEventQueue() {
		t.Fatal("drain should have run")
	}
	var stats models.ParticipationStats
	if err := fx.badges.DB.Where("season_id = ?", season.ID).First(&stats).Error; err != nil {
		t.Fatalf("participation stats missing: %v", err)
	}
	if stats.TotalJoins != 1 {
		t.Fatalf("expected 1 join recorded, got %d", stats.TotalJoins)
	}

	// Second join is rejected and leaves no second event behind.
	if _, err := fx.svc.HandleUserJoinCompetition("angler", season.ID); err == nil {
		t.Fatal("duplicate join must fail")
	}
	if fx.svc.QueueDepth() != 0 {
		t.Fatalf("failed join must not enqueue, depth=%d", fx.svc.QueueDepth())
	}
}

func TestProcessRankChangesNotificationThreshold(t *testing.T) {
	fx := newIntegrationFixture(t)
	season := fx.seedActiveSeason(t)
	base := season.StartDate.Add(time.Hour)

	users := []string{"a", "b", "c", "d"}
	for i, u := range users {
		if _, err := fx.seasons.Enroll(u, season.ID, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("enroll %s failed: %v", u, err)
		}
		score := int64(40 - i*10) // a=40 .. d=10
		fx.seasons.RecordScore(u, season.ID, map[string]int64{models.CategoryMostActive: score}, score, base)
	}

	// First pass: everyone is ranked for the first time, nobody is notified.
	if err := fx.svc.ProcessRankChanges(season.ID); err != nil {
		t.Fatalf("first rank pass failed: %v", err)
	}
	if got := fx.notifier.count("d:" + NotifRankChanged); got != 0 {
		t.Fatalf("first-time ranking must not notify, got %d", got)
	}

	// d jumps from 4th to 1st, a move of +3 — that crosses the threshold.
	fx.seasons.RecordScore("d", season.ID, map[string]int64{models.CategoryMostActive: 100}, 100, base)
	if err := fx.svc.ProcessRankChanges(season.ID); err != nil {
		t.Fatalf("second rank pass failed: %v", err)
	}
	if got := fx.notifier.count("d:" + NotifRankChanged); got != 1 {
		t.Fatalf("expected one rank notification for d, got %d", got)
	}
	// a slid 1 → 2, below the threshold.
	if got := fx.notifier.count("a:" + NotifRankChanged); got != 0 {
		t.Fatalf("small moves must not notify, got %d", got)
	}

	// Cache is invalidated on every pass, threshold or not.
	fx.leaderboards.mu.Lock()
	invalidations := len(fx.leaderboards.invalidated)
	fx.leaderboards.mu.Unlock()
	if invalidations != 2 {
		t.Fatalf("expected 2 cache invalidations, got %d", invalidations)
	}
}

func TestPodiumBadgeAwardedOnDrain(t *testing.T) {
	fx := newIntegrationFixture(t)

	fx.svc.QueueEvent(models.CompetitionEvent{
		Type:          models.EventRankChanged,
		UserID:        "angler",
		CompetitionID: "season-1",
		Data:          map[string]interface{}{"new_rank": 2, "position_change": 3},
	})
	fx.svc.ProcessEventQueue()

	var badge models.UserBadge
	if err := fx.badges.DB.Where("external_user_id = ? AND badge_code = ?", "angler", models.BadgeCodePodiumFinish).
		First(&badge).Error; err != nil {
		t.Fatalf("podium badge missing: %v", err)
	}
	if !fx.achievements.tracked("angler:" + AchievementTopThreeFinish) {
		t.Fatal("expected top_three_finish achievement event")
	}

	// Rank 5 never awards a podium badge.
	fx.svc.QueueEvent(models.CompetitionEvent{
		Type:          models.EventRankChanged,
		UserID:        "mid-pack",
		CompetitionID: "season-1",
		Data:          map[string]interface{}{"new_rank": 5, "position_change": 4},
	})
	fx.svc.ProcessEventQueue()

	var count int64
	fx.badges.DB.Model(&models.UserBadge{}).Where("external_user_id = ?", "mid-pack").Count(&count)
	if count != 0 {
		t.Fatal("rank 5 must not receive a podium badge")
	}
}

func TestLifecycleEndedDelegatesToCompleter(t *testing.T) {
	fx := newIntegrationFixture(t)
	season := fx.seedActiveSeason(t)

	if err := fx.svc.HandleCompetitionLifecycleEvent(season.ID, models.PhaseEnded); err != nil {
		t.Fatalf("lifecycle handling failed: %v", err)
	}

	fx.completer.mu.Lock()
	completed := len(fx.completer.completed)
	fx.completer.mu.Unlock()
	if completed != 1 {
		t.Fatalf("expected completion routine invoked once, got %d", completed)
	}
}

func TestLifecycleStartedFansOut(t *testing.T) {
	fx := newIntegrationFixture(t)
	season := fx.seedActiveSeason(t)
	base := season.StartDate.Add(time.Hour)

	fx.seasons.Enroll("one", season.ID, base)
	fx.seasons.Enroll("two", season.ID, base)

	fx.svc.NotifyLifecycle(season.ID, models.PhaseStarted)

	if fx.notifier.count("one:"+NotifCompetitionStarted) != 1 ||
		fx.notifier.count("two:"+NotifCompetitionStarted) != 1 {
		t.Fatalf("every participant must be notified, sent=%v", fx.notifier.sent)
	}
	if fx.svc.QueueDepth() != 1 {
		t.Fatalf("started lifecycle must queue one event, depth=%d", fx.svc.QueueDepth())
	}
}

func TestProcessEventQueueSingleFlight(t *testing.T) {
	fx := newIntegrationFixture(t)
	fx.notifier.block = make(chan struct{})

	fx.svc.QueueEvent(models.CompetitionEvent{
		Type:          models.EventActivityRecorded,
		UserID:        "angler",
		CompetitionID: "season-1",
		Data:          map[string]interface{}{"points": int64(10)},
	})

	started := make(chan bool)
	go func() {
		started <- fx.svc.ProcessEventQueue()
	}()

	// Give the drain time to block inside the notifier.
	time.Sleep(20 * time.Millisecond)

	// Events arriving mid-drain wait for the next tick.
	fx.svc.QueueEvent(models.CompetitionEvent{
		Type:          models.EventActivityRecorded,
		UserID:        "angler",
		CompetitionID: "season-1",
	})
	if fx.svc.ProcessEventQueue() {
		t.Fatal("overlapping drain must be skipped")
	}

	close(fx.notifier.block)
	if !<-started {
		t.Fatal("first drain should have run")
	}

	if fx.svc.QueueDepth() != 1 {
		t.Fatalf("mid-drain event must remain queued, depth=%d", fx.svc.QueueDepth())
	}
	if !fx.svc.ProcessEventQueue() {
		t.Fatal("follow-up drain should run once the first finishes")
	}
	if fx.svc.QueueDepth() != 0 {
		t.Fatalf("queue must be empty after the follow-up drain, depth=%d", fx.svc.QueueDepth())
	}
}

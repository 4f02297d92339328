package services

import (
	"testing"

	"fishing-competition-system/models"
)

func TestComputePointsTripCompleted(t *testing.T) {
	rules := map[string]models.ScoringRule{
		models.CategoryMostActive: {Weight: 0.5, MaxScore: 100},
	}

	// 2 hour trip: raw = min(2*10, 100*0.3) = 20, weighted = floor(20*0.5) = 10
	total, breakdown := ComputePoints(ActivityTripCompleted, ActivityPayload{Duration: 2}, rules)
	if total != 10 {
		t.Fatalf("expected 10 points, got %d", total)
	}
	if breakdown[models.CategoryMostActive] != 10 {
		t.Fatalf("expected MOST_ACTIVE breakdown of 10, got %d", breakdown[models.CategoryMostActive])
	}
}

func TestComputePointsTripDurationCap(t *testing.T) {
	rules := map[string]models.ScoringRule{
		models.CategoryMostActive: {Weight: 1.0, MaxScore: 100},
	}

	// 50 hour trip would be 500 raw; capped at 30% of max score = 30.
	total, _ := ComputePoints(ActivityTripCompleted, ActivityPayload{Duration: 50}, rules)
	if total != 30 {
		t.Fatalf("expected capped 30 points, got %d", total)
	}
}

func TestComputePointsFishCaughtCap(t *testing.T) {
	rules := map[string]models.ScoringRule{
		models.CategoryBiggestCatch: {Weight: 1.0, MaxScore: 100},
	}

	// 3.5 kg fish: min(3.5*5, 40) = 17.5, floored to 17.
	total, _ := ComputePoints(ActivityFishCaught, ActivityPayload{Weight: 3.5}, rules)
	if total != 17 {
		t.Fatalf("expected 17 points, got %d", total)
	}

	// 20 kg fish hits the 40% cap.
	total, _ = ComputePoints(ActivityFishCaught, ActivityPayload{Weight: 20}, rules)
	if total != 40 {
		t.Fatalf("expected capped 40 points, got %d", total)
	}
}

func TestComputePointsMultipleCategories(t *testing.T) {
	rules := map[string]models.ScoringRule{
		models.CategoryMostActive:       {Weight: 0.3, MaxScore: 200},
		models.CategoryMonthlyChampions: {Weight: 0.4, MaxScore: 300},
	}

	// Trip scores both MOST_ACTIVE and MONTHLY_CHAMPIONS.
	// MOST_ACTIVE: min(30, 60) = 30, *0.3 = 9
	// MONTHLY_CHAMPIONS: min(30, 90) = 30, *0.4 = 12
	total, breakdown := ComputePoints(ActivityTripCompleted, ActivityPayload{Duration: 3}, rules)
	if total != 21 {
		t.Fatalf("expected 21 total points, got %d", total)
	}
	if breakdown[models.CategoryMostActive] != 9 || breakdown[models.CategoryMonthlyChampions] != 12 {
		t.Fatalf("unexpected breakdown: %v", breakdown)
	}
}

func TestComputePointsNoMatchingCategory(t *testing.T) {
	rules := map[string]models.ScoringRule{
		models.CategoryBiggestCatch: {Weight: 1.0, MaxScore: 100},
	}

	total, breakdown := ComputePoints(ActivityPhotoShared, ActivityPayload{}, rules)
	if total != 0 {
		t.Fatalf("expected zero points for non-matching category, got %d", total)
	}
	if len(breakdown) != 0 {
		t.Fatalf("expected empty breakdown, got %v", breakdown)
	}
}

func TestComputePointsUnknownActivityType(t *testing.T) {
	rules := map[string]models.ScoringRule{
		models.CategoryMostActive: {Weight: 1.0, MaxScore: 100},
	}

	total, breakdown := ComputePoints("boat_washed", ActivityPayload{}, rules)
	if total != 0 || len(breakdown) != 0 {
		t.Fatalf("unknown activity type must score zero, got total=%d breakdown=%v", total, breakdown)
	}
}

func TestComputePointsZeroWeightOmitted(t *testing.T) {
	rules := map[string]models.ScoringRule{
		models.CategorySocialButterfly: {Weight: 0, MaxScore: 100},
	}

	total, breakdown := ComputePoints(ActivityPhotoShared, ActivityPayload{}, rules)
	if total != 0 {
		t.Fatalf("zero weight must score zero, got %d", total)
	}
	if _, present := breakdown[models.CategorySocialButterfly]; present {
		t.Fatal("zero-point categories must be omitted from the breakdown")
	}
}

func TestCategoryDisplayName(t *testing.T) {
	if got := CategoryDisplayName(models.CategoryBiggestCatch); got != "Biggest Catch" {
		t.Fatalf("expected 'Biggest Catch', got %q", got)
	}
	if got := CategoryDisplayName(models.CategoryMostActive); got != "Most Active" {
		t.Fatalf("expected 'Most Active', got %q", got)
	}
}

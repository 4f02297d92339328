package services

import (
	"math"
	"strings"

	"fishing-competition-system/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Activity types the platform reports into the competition engine.
const (
	ActivityTripCompleted       = "trip_completed"
	ActivityFishCaught          = "fish_caught"
	ActivityPhotoShared         = "photo_shared"
	ActivityMentorActivity      = "mentor_activity"
	ActivityTechniqueUsed       = "technique_used"
	ActivityAchievementUnlocked = "achievement_unlocked"
)

// ActivityPayload carries the activity-specific numbers the formulas read.
// Fields irrelevant to an activity type are simply ignored.
type ActivityPayload struct {
	Duration  float64 `json:"duration,omitempty"`  // trip duration in hours
	Weight    float64 `json:"weight,omitempty"`    // fish weight in kg
	Species   string  `json:"species,omitempty"`
	Technique string  `json:"technique,omitempty"`
}

// activityCategories maps each activity type to the scoring categories it
// can affect. Types not listed here score zero.
var activityCategories = map[string][]string{
	ActivityTripCompleted:       {models.CategoryMostActive, models.CategoryMonthlyChampions},
	ActivityFishCaught:          {models.CategoryBiggestCatch, models.CategorySpeciesSpecialist},
	ActivityPhotoShared:         {models.CategorySocialButterfly},
	ActivityMentorActivity:      {models.CategoryBestMentor},
	ActivityTechniqueUsed:       {models.CategoryTechniqueMaster},
	ActivityAchievementUnlocked: {models.CategoryMonthlyChampions},
}

// rawPoints computes the uncapped, unweighted value of one activity against
// one category's max score. Caps are fractions of the category cap so a
// single activity can never dominate a season.
func rawPoints(activityType string, payload ActivityPayload, maxScore int64) float64 {
	ceiling := float64(maxScore)
	switch activityType {
	case ActivityTripCompleted:
		return math.Min(payload.Duration*10, ceiling*0.3)
	case ActivityFishCaught:
		return math.Min(payload.Weight*5, ceiling*0.4)
	case ActivityPhotoShared:
		return math.Min(20, ceiling*0.2)
	default:
		return math.Min(15, ceiling*0.1)
	}
}

// ComputePoints maps one raw activity onto a season's scoring configuration.
// Pure and deterministic: no I/O, no side effects. Unknown activity types
// and seasons with no matching categories yield zero points with an empty
// breakdown — that is not an error.
func ComputePoints(activityType string, payload ActivityPayload, rules map[string]models.ScoringRule) (int64, map[string]int64) {
	categoryPoints := map[string]int64{}
	var total int64

	for _, category := range activityCategories[activityType] {
		rule, ok := rules[category]
		if !ok {
			continue
		}
		points := int64(math.Floor(rawPoints(activityType, payload, rule.MaxScore) * rule.Weight))
		if points <= 0 {
			continue
		}
		categoryPoints[category] = points
		total += points
	}

	return total, categoryPoints
}

var categoryTitler = cases.Title(language.English)

// CategoryDisplayName humanizes a category code for notifications and
// labels, e.g. "BIGGEST_CATCH" → "Biggest Catch".
func CategoryDisplayName(category string) string {
	return categoryTitler.String(strings.ToLower(strings.ReplaceAll(category, "_", " ")))
}

package services

import (
	"math"
	"time"

	"github.com/temcen/platerank/pkg/models"
)

// Base scores per strategy.
const (
	CollaborativeBaseScore = 0.8
	ContentBaseScore       = 0.7
	PopularBaseScore       = 0.6
	TrendingBaseScore      = 0.85
	SimilarBaseScore       = 0.9
)

// Item score weights.
const (
	PriceWeight    = 0.4
	CategoryWeight = 0.3
	DietaryWeight  = 0.2
	RatingWeight   = 0.1

	// CategorySaturation is the category weight at which the category term caps at 1.
	CategorySaturation = 10.0
	MaxRating          = 5.0
)

const (
	// ItemScoreMultiplier scales the item score added to a candidate's base score.
	ItemScoreMultiplier = 0.5
	DecayWindow         = 24 * time.Hour
	MinDecay            = 0.5
)

// ItemScore rates an item against a profile. The result is the weighted sum
// of the four terms and is not clamped.
func ItemScore(item models.MenuItem, restaurant *models.Restaurant, profile *PreferenceProfile) float64 {
	if profile == nil {
		profile = NewPreferenceProfile()
	}

	score := 0.0

	if profile.AvgSpend > 0 {
		proximity := math.Max(0, 1-math.Abs(item.Price-profile.AvgSpend)/profile.AvgSpend)
		score += proximity * PriceWeight
	}

	if item.Category != "" {
		if weight, ok := profile.Categories[item.Category]; ok {
			score += math.Min(1, weight/CategorySaturation) * CategoryWeight
		}
	}

	if profile.VegPreference != nil && item.IsVeg == *profile.VegPreference {
		score += DietaryWeight
	}

	if restaurant != nil && restaurant.Rating > 0 {
		score += restaurant.Rating / MaxRating * RatingWeight
	}

	return score
}

// Decay returns the multiplicative factor for a candidate computed at
// cachedAt. A zero cachedAt means a fresh candidate.
func Decay(cachedAt, now time.Time) float64 {
	if cachedAt.IsZero() {
		return 1
	}
	age := now.Sub(cachedAt)
	return math.Max(MinDecay, 1-float64(age)/float64(DecayWindow))
}

// CompositeScore is the final ranking value of a candidate.
func CompositeScore(c models.Candidate, profile *PreferenceProfile, now time.Time) float64 {
	score := c.BaseScore + ItemScoreMultiplier*ItemScore(c.Item, c.Restaurant, profile)
	return score * Decay(c.CachedAt, now)
}

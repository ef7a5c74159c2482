package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/platerank/internal/store"
	"github.com/temcen/platerank/pkg/models"
)

// Rating and price stand in for order volume in the profile-free strategies.
const (
	PopularRestaurantLimit  = 10
	PopularItemsPerVenue    = 2
	TrendingMinRating       = 4.0
	TrendingMinPrice        = 300.0
	TrendingRestaurantLimit = 5
	TrendingItemsPerVenue   = 2
	SimilarPriceDelta       = 50.0
	DefaultSimilarLimit     = 5
)

const (
	popularReason  = "Popular choice"
	trendingReason = "Trending now"
)

// PopularityStrategy serves the candidates that need no preference profile:
// popular, trending and similar-item lists.
type PopularityStrategy struct {
	restaurants store.RestaurantStore
	logger      *logrus.Logger
}

func NewPopularityStrategy(restaurants store.RestaurantStore, logger *logrus.Logger) *PopularityStrategy {
	return &PopularityStrategy{restaurants: restaurants, logger: logger}
}

// Popular takes the highest-priced available items of the top-rated restaurants.
func (s *PopularityStrategy) Popular(ctx context.Context, limit int) ([]models.Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}

	restaurants, err := s.restaurants.FindTopRatedActiveRestaurants(ctx, PopularRestaurantLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load top rated restaurants: %w", err)
	}

	var candidates []models.Candidate
	for i := range restaurants {
		restaurant := &restaurants[i]
		items := restaurant.AvailableItems()
		sort.SliceStable(items, func(a, b int) bool { return items[a].Price > items[b].Price })
		if len(items) > PopularItemsPerVenue {
			items = items[:PopularItemsPerVenue]
		}

		for _, item := range items {
			candidates = append(candidates, models.Candidate{
				Kind:       models.StrategyPopular,
				Restaurant: restaurant,
				Item:       item,
				BaseScore:  PopularBaseScore,
				Reason:     popularReason,
			})
		}
	}

	return truncateCandidates(candidates, limit), nil
}

// Trending takes premium items from highly rated restaurants. Enough
// restaurants are read to fill limit at two items each.
func (s *PopularityStrategy) Trending(ctx context.Context, limit int) ([]models.Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}

	venues := max(TrendingRestaurantLimit, int(math.Ceil(float64(limit)/TrendingItemsPerVenue)))
	restaurants, err := s.restaurants.FindRestaurantsByRating(ctx, TrendingMinRating, venues)
	if err != nil {
		return nil, fmt.Errorf("failed to load trending restaurants: %w", err)
	}

	var candidates []models.Candidate
	for i := range restaurants {
		restaurant := &restaurants[i]
		picked := 0
		for _, item := range restaurant.AvailableItems() {
			if picked == TrendingItemsPerVenue {
				break
			}
			if item.Price <= TrendingMinPrice {
				continue
			}
			picked++
			candidates = append(candidates, models.Candidate{
				Kind:       models.StrategyTrending,
				Restaurant: restaurant,
				Item:       item,
				BaseScore:  TrendingBaseScore,
				Reason:     trendingReason,
			})
		}
	}

	return truncateCandidates(candidates, limit), nil
}

// Similar returns other available items of the restaurant that share the
// reference item's category or sit within SimilarPriceDelta of its price.
// Unknown restaurants or items yield an empty list.
func (s *PopularityStrategy) Similar(ctx context.Context, restaurantID uuid.UUID, itemName string, limit int) ([]models.Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}

	restaurant, err := s.restaurants.GetRestaurantByID(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load restaurant %s: %w", restaurantID, err)
	}

	target, ok := restaurant.FindItem(itemName)
	if !ok {
		return nil, nil
	}

	reason := fmt.Sprintf("Similar to %s", itemName)
	targetName := models.NormalizeItemName(target.Name)
	var candidates []models.Candidate
	for _, item := range restaurant.AvailableItems() {
		if models.NormalizeItemName(item.Name) == targetName {
			continue
		}
		sameCategory := item.Category != "" && item.Category == target.Category
		if !sameCategory && math.Abs(item.Price-target.Price) >= SimilarPriceDelta {
			continue
		}
		candidates = append(candidates, models.Candidate{
			Kind:       models.StrategySimilar,
			Restaurant: restaurant,
			Item:       item,
			BaseScore:  SimilarBaseScore,
			Reason:     reason,
		})
		if len(candidates) == limit {
			break
		}
	}

	return candidates, nil
}

func truncateCandidates(candidates []models.Candidate, limit int) []models.Candidate {
	if len(candidates) > limit {
		return candidates[:limit]
	}
	return candidates
}

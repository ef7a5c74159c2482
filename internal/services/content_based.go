package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/temcen/platerank/internal/store"
	"github.com/temcen/platerank/pkg/models"
)

const (
	TopCuisineCount          = 3
	ContentRestaurantLimit   = 20
	SaturatedRestaurantCount = 5.0
	ContentItemsPerVenue     = 3
)

// ContentBasedStrategy recommends the best matching items from restaurants
// serving the user's preferred cuisines.
type ContentBasedStrategy struct {
	restaurants store.RestaurantStore
	logger      *logrus.Logger
}

func NewContentBasedStrategy(restaurants store.RestaurantStore, logger *logrus.Logger) *ContentBasedStrategy {
	return &ContentBasedStrategy{restaurants: restaurants, logger: logger}
}

func (s *ContentBasedStrategy) Recommend(ctx context.Context, profile *PreferenceProfile, limit int) ([]models.Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}

	cuisines := profile.TopCuisines(TopCuisineCount)
	if len(cuisines) == 0 {
		return nil, nil
	}

	restaurants, err := s.restaurants.FindActiveRestaurantsByCuisine(ctx, cuisines, ContentRestaurantLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load restaurants for cuisines %v: %w", cuisines, err)
	}

	reason := fmt.Sprintf("Matches your taste for %s", strings.Join(cuisines, ", "))
	seen := make(map[string]struct{})
	var candidates []models.Candidate

	for i := range restaurants {
		restaurant := &restaurants[i]
		if profile.Restaurants[restaurant.ID] > SaturatedRestaurantCount {
			continue
		}

		for _, item := range rankItems(restaurant, profile, ContentItemsPerVenue) {
			key := itemKey(restaurant.ID, item.Name)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			candidates = append(candidates, models.Candidate{
				Kind:       models.StrategyContent,
				Restaurant: restaurant,
				Item:       item,
				BaseScore:  ContentBaseScore,
				Reason:     reason,
			})
			if len(candidates) >= limit {
				return candidates, nil
			}
		}
	}

	return candidates, nil
}

// rankItems orders a restaurant's available items by ItemScore and keeps the
// first n. Equal scores keep menu order.
func rankItems(restaurant *models.Restaurant, profile *PreferenceProfile, n int) []models.MenuItem {
	items := restaurant.AvailableItems()
	scores := make(map[string]float64, len(items))
	for _, item := range items {
		scores[item.Name] = ItemScore(item, restaurant, profile)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return scores[items[i].Name] > scores[items[j].Name]
	})
	if len(items) > n {
		items = items[:n]
	}
	return items
}

package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/temcen/platerank/internal/cache"
	"github.com/temcen/platerank/internal/store"
	"github.com/temcen/platerank/pkg/models"
)

// SimilarityEngine scores pairs of users by the Jaccard coefficient of the
// restaurants they ordered from. Scores are cached per unordered pair.
type SimilarityEngine struct {
	orders  store.OrderStore
	cache   *cache.TTLCache[cache.UserPair, float64]
	metrics *RecommendationMetrics
	logger  *logrus.Logger
}

func NewSimilarityEngine(
	orders store.OrderStore,
	similarityCache *cache.TTLCache[cache.UserPair, float64],
	metrics *RecommendationMetrics,
	logger *logrus.Logger,
) *SimilarityEngine {
	return &SimilarityEngine{
		orders:  orders,
		cache:   similarityCache,
		metrics: metrics,
		logger:  logger,
	}
}

// Similarity returns a score in [0,1]. Either user having no orders yields 0.
func (e *SimilarityEngine) Similarity(ctx context.Context, a, b uuid.UUID) (float64, error) {
	key := cache.PairKey(a, b)
	if score, ok := e.cache.Get(key); ok {
		e.metrics.CacheHit("similarity")
		return score, nil
	}
	e.metrics.CacheMiss("similarity")

	var ordersA, ordersB []models.Order
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ordersA, err = e.orders.FindOrdersByUser(gctx, a, 0, false)
		return err
	})
	g.Go(func() error {
		var err error
		ordersB, err = e.orders.FindOrdersByUser(gctx, b, 0, false)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("failed to load order histories: %w", err)
	}

	score := 0.0
	if len(ordersA) > 0 && len(ordersB) > 0 {
		score = Jaccard(restaurantSet(ordersA), restaurantSet(ordersB))
	}

	e.cache.Set(key, score)
	return score, nil
}

// InvalidateUser drops every cached pair involving the user.
func (e *SimilarityEngine) InvalidateUser(userID uuid.UUID) int {
	return e.cache.DeleteFunc(func(p cache.UserPair) bool {
		return p.Contains(userID)
	})
}

func (e *SimilarityEngine) Clear() {
	e.cache.Clear()
}

// Jaccard returns |a ∩ b| / |a ∪ b|, or 0 when both sets are empty.
func Jaccard(a, b map[uuid.UUID]struct{}) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}

	intersection := 0
	for id := range a {
		if _, ok := b[id]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func restaurantSet(orders []models.Order) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(orders))
	for _, o := range orders {
		set[o.RestaurantID] = struct{}{}
	}
	return set
}

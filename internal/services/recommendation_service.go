package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/temcen/platerank/internal/cache"
	"github.com/temcen/platerank/internal/config"
	"github.com/temcen/platerank/internal/store"
	"github.com/temcen/platerank/pkg/models"
)

var (
	// ErrServiceUnavailable is returned when even the fallback reads fail.
	ErrServiceUnavailable = errors.New("recommendations unavailable")
	ErrAdminRequired      = errors.New("admin authorization required")
)

const DefaultCacheTTL = 30 * time.Minute

// trendingKey is the recommendation cache key for non-personalized lists.
var trendingKey = uuid.Nil

type cachedList struct {
	recs  []models.ScoredRecommendation
	limit int
}

// prefix returns a copy of the first limit entries, or false when the entry
// was computed for a smaller limit.
func (c cachedList) prefix(limit int) ([]models.ScoredRecommendation, bool) {
	if limit > c.limit {
		return nil, false
	}
	n := min(limit, len(c.recs))
	return append([]models.ScoredRecommendation(nil), c.recs[:n]...), true
}

// RecommendationService is the entry point of the engine: personalized,
// similar-item and trending queries plus cache administration.
type RecommendationService struct {
	orders        store.OrderStore
	users         store.UserLookup
	similarity    *SimilarityEngine
	collaborative *CollaborativeStrategy
	content       *ContentBasedStrategy
	popularity    *PopularityStrategy

	recCache *cache.TTLCache[uuid.UUID, cachedList]
	simCache *cache.TTLCache[cache.UserPair, float64]

	config  *config.RecommendationConfig
	metrics *RecommendationMetrics
	logger  *logrus.Logger
	now     func() time.Time
}

func NewRecommendationService(
	orders store.OrderStore,
	restaurants store.RestaurantStore,
	users store.UserLookup,
	sampler store.UserSampler,
	cfg *config.RecommendationConfig,
	metrics *RecommendationMetrics,
	logger *logrus.Logger,
) *RecommendationService {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	recCache := cache.NewTTLCache[uuid.UUID, cachedList](ttl)
	simCache := cache.NewTTLCache[cache.UserPair, float64](ttl)
	similarity := NewSimilarityEngine(orders, simCache, metrics, logger)

	return &RecommendationService{
		orders:        orders,
		users:         users,
		similarity:    similarity,
		collaborative: NewCollaborativeStrategy(sampler, orders, similarity, cfg.SimilarityWorkers, logger),
		content:       NewContentBasedStrategy(restaurants, logger),
		popularity:    NewPopularityStrategy(restaurants, logger),
		recCache:      recCache,
		simCache:      simCache,
		config:        cfg,
		metrics:       metrics,
		logger:        logger,
		now:           time.Now,
	}
}

// WithClock replaces the time source of the service and both caches.
func (s *RecommendationService) WithClock(now func() time.Time) *RecommendationService {
	s.now = now
	s.recCache.WithClock(now)
	s.simCache.WithClock(now)
	return s
}

func (s *RecommendationService) normalizeLimit(limit int) int {
	if limit <= 0 {
		limit = s.config.DefaultLimit
	}
	if s.config.MaxLimit > 0 && limit > s.config.MaxLimit {
		limit = s.config.MaxLimit
	}
	return limit
}

// GetPersonalizedRecommendations ranks items for a user. Anonymous users,
// unknown users and users without history get the trending list.
func (s *RecommendationService) GetPersonalizedRecommendations(ctx context.Context, userID uuid.UUID, limit int) ([]models.ScoredRecommendation, error) {
	limit = s.normalizeLimit(limit)
	start := s.now()
	if userID == uuid.Nil {
		return s.fallbackToTrending(ctx, limit, start)
	}

	logger := s.logger.WithField("user_id", userID)

	if entry, ok := s.recCache.Get(userID); ok {
		if recs, ok := entry.prefix(limit); ok {
			s.metrics.CacheHit("recommendations")
			s.metrics.ObserveRequest("personalized", "cache_hit", s.now().Sub(start))
			logger.Debug("Recommendation cache hit")
			return recs, nil
		}
	}

	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Debug("Unknown user, serving trending items")
			return s.fallbackToTrending(ctx, limit, start)
		}
		logger.WithError(err).Warn("User lookup failed, continuing with order history")
	}

	orders, err := s.orders.FindOrdersByUser(ctx, userID, HistoryLimit, true)
	if err != nil {
		logger.WithError(err).Warn("Failed to load order history, serving trending items")
		return s.fallbackToTrending(ctx, limit, start)
	}
	if len(orders) == 0 {
		return s.fallbackToTrending(ctx, limit, start)
	}

	profile := ExtractPreferences(orders)
	candidates := s.gatherCandidates(ctx, userID, profile, limit)

	recs := Fuse(candidates, profile, limit, s.now())
	if len(recs) == 0 {
		logger.Info("No personalized candidates, serving trending items")
		return s.fallbackToTrending(ctx, limit, start)
	}

	s.metrics.CacheMiss("recommendations")
	s.recCache.Set(userID, cachedList{recs: recs, limit: limit})

	latency := s.now().Sub(start)
	s.metrics.ObserveRequest("personalized", "computed", latency)
	logger.WithFields(logrus.Fields{
		"count":   len(recs),
		"latency": latency,
	}).Info("Generated personalized recommendations")

	return append([]models.ScoredRecommendation(nil), recs...), nil
}

// fallbackToTrending answers a personalized request with the trending list.
// Cache metrics are recorded by GetTrendingItems.
func (s *RecommendationService) fallbackToTrending(ctx context.Context, limit int, start time.Time) ([]models.ScoredRecommendation, error) {
	recs, err := s.GetTrendingItems(ctx, limit)
	outcome := "trending_fallback"
	if err != nil {
		outcome = "unavailable"
	}
	s.metrics.ObserveRequest("personalized", outcome, s.now().Sub(start))
	return recs, err
}

// gatherCandidates runs the three strategies concurrently and concatenates
// their output in collaborative, content, popular order. A failed strategy
// contributes nothing.
func (s *RecommendationService) gatherCandidates(ctx context.Context, userID uuid.UUID, profile *PreferenceProfile, limit int) []models.Candidate {
	if s.config.StrategyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.StrategyTimeout)
		defer cancel()
	}

	var collaborative, content, popular []models.Candidate
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		collaborative = s.runStrategy(userID, string(models.StrategyCollaborative), func() ([]models.Candidate, error) {
			return s.collaborative.Recommend(gctx, userID, profile, limit)
		})
		return nil
	})
	g.Go(func() error {
		content = s.runStrategy(userID, string(models.StrategyContent), func() ([]models.Candidate, error) {
			return s.content.Recommend(gctx, profile, limit)
		})
		return nil
	})
	g.Go(func() error {
		popular = s.runStrategy(userID, string(models.StrategyPopular), func() ([]models.Candidate, error) {
			return s.popularity.Popular(gctx, limit/2)
		})
		return nil
	})
	_ = g.Wait()

	candidates := make([]models.Candidate, 0, len(collaborative)+len(content)+len(popular))
	candidates = append(candidates, collaborative...)
	candidates = append(candidates, content...)
	candidates = append(candidates, popular...)
	return candidates
}

func (s *RecommendationService) runStrategy(userID uuid.UUID, name string, run func() ([]models.Candidate, error)) []models.Candidate {
	candidates, err := run()
	if err != nil {
		s.metrics.StrategyFailed(name)
		s.logger.WithError(err).WithFields(logrus.Fields{
			"strategy": name,
			"user_id":  userID,
		}).Warn("Recommendation strategy failed")
		return nil
	}
	s.metrics.Candidates(name, len(candidates))
	return candidates
}

// GetTrendingItems returns the trending list, falling back to popular items
// when trending yields nothing. ErrServiceUnavailable means the fallback read
// failed too.
func (s *RecommendationService) GetTrendingItems(ctx context.Context, limit int) ([]models.ScoredRecommendation, error) {
	limit = s.normalizeLimit(limit)
	start := s.now()

	if entry, ok := s.recCache.Get(trendingKey); ok {
		if recs, ok := entry.prefix(limit); ok {
			s.metrics.CacheHit("recommendations")
			s.metrics.ObserveRequest("trending", "cache_hit", s.now().Sub(start))
			return recs, nil
		}
	}
	s.metrics.CacheMiss("recommendations")

	candidates, err := s.popularity.Trending(ctx, limit)
	if err != nil {
		s.metrics.StrategyFailed(string(models.StrategyTrending))
		s.logger.WithError(err).Warn("Trending items unavailable, falling back to popular items")
	}

	if len(candidates) == 0 {
		candidates, err = s.popularity.Popular(ctx, limit)
		if err != nil {
			s.metrics.StrategyFailed(string(models.StrategyPopular))
			s.metrics.ObserveRequest("trending", "unavailable", s.now().Sub(start))
			s.logger.WithError(err).Error("Popular items unavailable")
			return nil, ErrServiceUnavailable
		}
	}

	recs := Fuse(candidates, nil, limit, s.now())
	if len(recs) > 0 {
		s.recCache.Set(trendingKey, cachedList{recs: recs, limit: limit})
	}

	s.metrics.ObserveRequest("trending", "computed", s.now().Sub(start))
	return append([]models.ScoredRecommendation(nil), recs...), nil
}

// GetSimilarItems returns items of the same restaurant resembling itemName.
// Unknown restaurants or items yield an empty list.
func (s *RecommendationService) GetSimilarItems(ctx context.Context, restaurantID uuid.UUID, itemName string, limit int) ([]models.ScoredRecommendation, error) {
	if limit <= 0 {
		limit = DefaultSimilarLimit
	}
	limit = s.normalizeLimit(limit)
	start := s.now()

	candidates, err := s.popularity.Similar(ctx, restaurantID, itemName, limit)
	if err != nil {
		s.metrics.StrategyFailed(string(models.StrategySimilar))
		s.metrics.ObserveRequest("similar", "unavailable", s.now().Sub(start))
		s.logger.WithError(err).WithFields(logrus.Fields{
			"restaurant_id": restaurantID,
			"item_name":     itemName,
		}).Error("Similar items unavailable")
		return nil, ErrServiceUnavailable
	}

	s.metrics.ObserveRequest("similar", "computed", s.now().Sub(start))
	return Fuse(candidates, nil, limit, s.now()), nil
}

// ClearCaches empties the recommendation and similarity caches. The caller
// must have verified admin authorization.
func (s *RecommendationService) ClearCaches(ctx context.Context, authorized bool) error {
	if !authorized {
		return ErrAdminRequired
	}

	recs, sims := s.recCache.Len(), s.simCache.Len()
	s.recCache.Clear()
	s.similarity.Clear()

	s.logger.WithFields(logrus.Fields{
		"recommendation_entries": recs,
		"similarity_entries":     sims,
	}).Info("Recommendation caches cleared")
	return nil
}

// InvalidateUser drops the user's cached list and every similarity pair
// that involves the user.
func (s *RecommendationService) InvalidateUser(userID uuid.UUID) {
	s.recCache.Delete(userID)
	pairs := s.similarity.InvalidateUser(userID)
	s.metrics.UserInvalidated()

	s.logger.WithFields(logrus.Fields{
		"user_id":          userID,
		"similarity_pairs": pairs,
	}).Debug("Invalidated user recommendation state")
}

// CacheSizes reports the number of entries held by each cache.
func (s *RecommendationService) CacheSizes() (recommendations, similarity int) {
	return s.recCache.Len(), s.simCache.Len()
}

// RunSweeper evicts expired cache entries every SweepInterval until ctx is
// cancelled.
func (s *RecommendationService) RunSweeper(ctx context.Context) {
	interval := s.config.SweepInterval
	if interval <= 0 {
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.recCache.Run(ctx, interval)
	}()
	go func() {
		defer wg.Done()
		s.simCache.Run(ctx, interval)
	}()
	wg.Wait()
}

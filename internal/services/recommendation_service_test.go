package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/platerank/internal/cache"
	"github.com/temcen/platerank/internal/store/storetest"
	"github.com/temcen/platerank/pkg/models"
)

func TestPersonalized_MargheritaScenario(t *testing.T) {
	f := newFixture(t)
	svc, _, _ := f.service(nil)

	recs, err := svc.GetPersonalizedRecommendations(t.Context(), f.alice, 5)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Margherita Pizza", "Penne Arrabbiata", "Pepperoni Pizza", "Farmhouse Pizza", "Bruschetta",
	}, names(recs))

	margheritas := 0
	fromSole := false
	seen := make(map[string]bool)
	for i, rec := range recs {
		key := itemKey(rec.Restaurant.ID, rec.Item.Name)
		assert.False(t, seen[key], "duplicate %s", key)
		seen[key] = true

		if rec.Restaurant.ID == f.roma.ID && rec.Item.Name == "Margherita Pizza" {
			margheritas++
		}
		if rec.Restaurant.ID == f.sole.ID && rec.Kind == models.StrategyContent {
			fromSole = true
		}
		if i > 0 {
			assert.GreaterOrEqual(t, recs[i-1].Score, rec.Score)
		}
	}
	assert.Equal(t, 1, margheritas)
	assert.True(t, fromSole, "expected an Italian candidate from another restaurant")
}

func TestPersonalized_CollaborativeCandidatesWinTies(t *testing.T) {
	f := newFixture(t)
	bob := uuid.New()
	f.store.AddUser(models.User{ID: bob})
	f.addOrder(bob, f.roma, "Garlic Bread", 1, time.Hour)
	f.addOrder(bob, f.wok, "Hakka Noodles", 1, 2*time.Hour)

	svc, _, _ := f.service(nil)
	recs, err := svc.GetPersonalizedRecommendations(t.Context(), f.alice, 10)
	require.NoError(t, err)

	var hakka *models.ScoredRecommendation
	for i := range recs {
		if recs[i].Item.Name == "Hakka Noodles" {
			hakka = &recs[i]
		}
	}
	require.NotNil(t, hakka)
	assert.Equal(t, models.StrategyCollaborative, hakka.Kind)
	assert.Equal(t, []string{"personalized"}, hakka.Kind.Tags())
}

func TestPersonalized_NoHistoryMatchesTrending(t *testing.T) {
	f := newFixture(t)
	svc, _, _ := f.service(nil)

	personalized, err := svc.GetPersonalizedRecommendations(t.Context(), f.newcomer, 10)
	require.NoError(t, err)

	trending, err := svc.GetTrendingItems(t.Context(), 10)
	require.NoError(t, err)

	assert.Equal(t, trending, personalized)
	assert.Equal(t, []string{"Peking Duck", "Dim Sum Platter", "Pepperoni Pizza", "Farmhouse Pizza"}, names(trending))
}

func TestPersonalized_UnknownAndAnonymousUsersGetTrending(t *testing.T) {
	f := newFixture(t)
	svc, _, _ := f.service(nil)

	trending, err := svc.GetTrendingItems(t.Context(), 10)
	require.NoError(t, err)

	unknown, err := svc.GetPersonalizedRecommendations(t.Context(), uuid.New(), 10)
	require.NoError(t, err)
	assert.Equal(t, trending, unknown)

	anonymous, err := svc.GetPersonalizedRecommendations(t.Context(), uuid.Nil, 10)
	require.NoError(t, err)
	assert.Equal(t, trending, anonymous)
}

func TestPersonalized_CacheWithinTTL(t *testing.T) {
	f := newFixture(t)
	reg := prometheus.NewRegistry()
	svc, clk, metrics := f.service(reg)

	first, err := svc.GetPersonalizedRecommendations(t.Context(), f.alice, 5)
	require.NoError(t, err)
	reads := f.store.OrderReads()

	clk.Advance(29 * time.Minute)
	second, err := svc.GetPersonalizedRecommendations(t.Context(), f.alice, 5)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, reads, f.store.OrderReads())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheHits.WithLabelValues("recommendations")))

	// A smaller limit is served from the same entry.
	prefix, err := svc.GetPersonalizedRecommendations(t.Context(), f.alice, 3)
	require.NoError(t, err)
	assert.Equal(t, first[:3], prefix)
	assert.Equal(t, reads, f.store.OrderReads())

	clk.Advance(time.Minute)
	_, err = svc.GetPersonalizedRecommendations(t.Context(), f.alice, 5)
	require.NoError(t, err)
	assert.Greater(t, f.store.OrderReads(), reads)
}

func TestPersonalized_LargerLimitRecomputes(t *testing.T) {
	f := newFixture(t)
	svc, _, _ := f.service(nil)

	small, err := svc.GetPersonalizedRecommendations(t.Context(), f.alice, 2)
	require.NoError(t, err)
	assert.Len(t, small, 2)
	reads := f.store.OrderReads()

	large, err := svc.GetPersonalizedRecommendations(t.Context(), f.alice, 6)
	require.NoError(t, err)
	assert.Len(t, large, 6)
	assert.Greater(t, f.store.OrderReads(), reads)
}

func TestPersonalized_CachedListIsNotShared(t *testing.T) {
	f := newFixture(t)
	svc, _, _ := f.service(nil)

	first, err := svc.GetPersonalizedRecommendations(t.Context(), f.alice, 5)
	require.NoError(t, err)
	first[0].Score = -1

	second, err := svc.GetPersonalizedRecommendations(t.Context(), f.alice, 5)
	require.NoError(t, err)
	assert.NotEqual(t, -1.0, second[0].Score)
}

func TestClearCaches(t *testing.T) {
	f := newFixture(t)
	bob := uuid.New()
	f.store.AddUser(models.User{ID: bob})
	f.addOrder(bob, f.roma, "Lasagna", 1, time.Hour)

	svc, _, _ := f.service(nil)

	_, err := svc.GetPersonalizedRecommendations(t.Context(), f.alice, 5)
	require.NoError(t, err)
	recs, sims := svc.CacheSizes()
	assert.Equal(t, 1, recs)
	assert.Positive(t, sims)

	err = svc.ClearCaches(t.Context(), false)
	assert.ErrorIs(t, err, ErrAdminRequired)
	recs, _ = svc.CacheSizes()
	assert.Equal(t, 1, recs)

	require.NoError(t, svc.ClearCaches(t.Context(), true))
	recs, sims = svc.CacheSizes()
	assert.Zero(t, recs)
	assert.Zero(t, sims)

	reads := f.store.OrderReads()
	_, err = svc.GetPersonalizedRecommendations(t.Context(), f.alice, 5)
	require.NoError(t, err)
	assert.Greater(t, f.store.OrderReads(), reads)
}

func TestInvalidateUser(t *testing.T) {
	f := newFixture(t)
	bob := uuid.New()
	f.store.AddUser(models.User{ID: bob})
	f.addOrder(bob, f.roma, "Lasagna", 1, time.Hour)

	reg := prometheus.NewRegistry()
	svc, _, metrics := f.service(reg)

	_, err := svc.GetPersonalizedRecommendations(t.Context(), f.alice, 5)
	require.NoError(t, err)
	_, err = svc.GetPersonalizedRecommendations(t.Context(), bob, 5)
	require.NoError(t, err)
	recs, _ := svc.CacheSizes()
	require.Equal(t, 2, recs)

	svc.InvalidateUser(f.alice)

	recs, _ = svc.CacheSizes()
	assert.Equal(t, 1, recs)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.invalidations))

	assert.Zero(t, svc.simCache.DeleteFunc(func(p cache.UserPair) bool {
		return p.Contains(f.alice)
	}))
}

func TestPersonalized_StrategyFailureDegrades(t *testing.T) {
	f := newFixture(t)
	f.store.FailUsers = errors.New("users unavailable")

	reg := prometheus.NewRegistry()
	svc, _, metrics := f.service(reg)

	recs, err := svc.GetPersonalizedRecommendations(t.Context(), f.alice, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, recs)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.strategyFailures.WithLabelValues("collaborative")))
}

func TestPersonalized_OrderReadFailureFallsBackToTrending(t *testing.T) {
	f := newFixture(t)
	f.store.FailOrders = errors.New("orders unavailable")
	svc, _, _ := f.service(nil)

	recs, err := svc.GetPersonalizedRecommendations(t.Context(), f.alice, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Peking Duck", "Dim Sum Platter", "Pepperoni Pizza", "Farmhouse Pizza"}, names(recs))
	for _, rec := range recs {
		assert.Equal(t, models.StrategyTrending, rec.Kind)
	}
}

func TestPersonalized_Unavailable(t *testing.T) {
	f := newFixture(t)
	f.store.FailRestaurants = errors.New("restaurants unavailable")
	svc, _, _ := f.service(nil)

	_, err := svc.GetPersonalizedRecommendations(t.Context(), f.alice, 5)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestTrending_FallsBackToPopular(t *testing.T) {
	f := newFixture(t)
	for _, r := range []models.Restaurant{f.roma, f.sole, f.wok} {
		r.Rating = 3.9
		f.store.UpdateRestaurant(r)
	}
	svc, _, _ := f.service(nil)

	recs, err := svc.GetTrendingItems(t.Context(), 3)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	for _, rec := range recs {
		assert.Equal(t, models.StrategyPopular, rec.Kind)
		assert.Equal(t, []string{"popular"}, rec.Kind.Tags())
	}
}

func TestSimilarItems(t *testing.T) {
	f := newFixture(t)
	svc, _, _ := f.service(nil)

	recs, err := svc.GetSimilarItems(t.Context(), f.roma.ID, "Margherita Pizza", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Pepperoni Pizza", "Bruschetta"}, names(recs))
	for _, rec := range recs {
		assert.InDelta(t, SimilarBaseScore+ItemScoreMultiplier*(4.5/5)*RatingWeight, rec.Score, 1e-9)
	}

	recs, err = svc.GetSimilarItems(t.Context(), uuid.New(), "Margherita Pizza", 5)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSimilarItems_Unavailable(t *testing.T) {
	f := newFixture(t)
	f.store.FailRestaurants = errors.New("restaurants unavailable")
	svc, _, _ := f.service(nil)

	_, err := svc.GetSimilarItems(t.Context(), f.roma.ID, "Margherita Pizza", 5)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestRunSweeper(t *testing.T) {
	f := newFixture(t)
	cfg := testRecommendationConfig()
	cfg.SweepInterval = 10 * time.Millisecond
	cfg.CacheTTL = 20 * time.Millisecond
	svc := NewRecommendationService(f.store, f.store, f.store, f.store, cfg, nil, testLogger())

	_, err := svc.GetPersonalizedRecommendations(t.Context(), f.alice, 5)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		svc.RunSweeper(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		recs, sims := svc.CacheSizes()
		return recs == 0 && sims == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

// stalledCuisineStore never answers cuisine queries before the context ends.
type stalledCuisineStore struct {
	*storetest.MemoryStore
}

func (s stalledCuisineStore) FindActiveRestaurantsByCuisine(ctx context.Context, _ []string, _ int) ([]models.Restaurant, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestPersonalized_StrategyTimeoutDropsSlowStrategy(t *testing.T) {
	f := newFixture(t)

	bob := uuid.New()
	f.store.AddUser(models.User{ID: bob})
	f.addOrder(bob, f.roma, "Garlic Bread", 1, time.Hour)
	f.addOrder(bob, f.wok, "Hakka Noodles", 2, 2*time.Hour)

	cfg := testRecommendationConfig()
	cfg.StrategyTimeout = 200 * time.Millisecond

	reg := prometheus.NewRegistry()
	metrics := NewRecommendationMetrics(reg)
	svc := NewRecommendationService(f.store, stalledCuisineStore{f.store}, f.store, f.store, cfg, metrics, testLogger()).
		WithClock(func() time.Time { return f.now })

	start := time.Now()
	recs, err := svc.GetPersonalizedRecommendations(t.Context(), f.alice, 5)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	require.NotEmpty(t, recs)
	kinds := make(map[models.StrategyKind]bool)
	for _, r := range recs {
		kinds[r.Kind] = true
	}
	assert.False(t, kinds[models.StrategyContent])
	assert.True(t, kinds[models.StrategyCollaborative])
	assert.True(t, kinds[models.StrategyPopular])
	assert.Contains(t, names(recs), "Hakka Noodles")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.strategyFailures.WithLabelValues("content")))
}

func TestPersonalized_RequestMetrics(t *testing.T) {
	f := newFixture(t)
	reg := prometheus.NewRegistry()
	svc, _, metrics := f.service(reg)

	_, err := svc.GetPersonalizedRecommendations(t.Context(), f.newcomer, 5)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("personalized", "trending_fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("trending", "computed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheMisses.WithLabelValues("recommendations")))

	_, err = svc.GetPersonalizedRecommendations(t.Context(), f.alice, 5)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("personalized", "computed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.cacheMisses.WithLabelValues("recommendations")))

	_, err = svc.GetPersonalizedRecommendations(t.Context(), f.alice, 5)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("personalized", "cache_hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheHits.WithLabelValues("recommendations")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.cacheMisses.WithLabelValues("recommendations")))
}

func TestPersonalized_UnavailableMetrics(t *testing.T) {
	f := newFixture(t)
	f.store.FailRestaurants = errors.New("restaurants unavailable")
	reg := prometheus.NewRegistry()
	svc, _, metrics := f.service(reg)

	_, err := svc.GetPersonalizedRecommendations(t.Context(), f.newcomer, 5)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("personalized", "unavailable")))
}

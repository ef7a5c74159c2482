package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RecommendationMetrics holds the engine's Prometheus collectors. A nil
// *RecommendationMetrics records nothing.
type RecommendationMetrics struct {
	requests         *prometheus.CounterVec
	latency          *prometheus.HistogramVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	strategyFailures *prometheus.CounterVec
	candidates       *prometheus.HistogramVec
	invalidations    prometheus.Counter
}

func NewRecommendationMetrics(reg prometheus.Registerer) *RecommendationMetrics {
	m := &RecommendationMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendation_requests_total",
			Help: "Recommendation requests by operation and outcome",
		}, []string{"operation", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recommendation_latency_seconds",
			Help:    "Recommendation computation latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendation_cache_hits_total",
			Help: "Cache hits by cache",
		}, []string{"cache"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendation_cache_misses_total",
			Help: "Cache misses by cache",
		}, []string{"cache"}),
		strategyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendation_strategy_failures_total",
			Help: "Strategy runs that failed and contributed nothing",
		}, []string{"strategy"}),
		candidates: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recommendation_strategy_candidates",
			Help:    "Candidates produced per strategy run",
			Buckets: []float64{0, 1, 5, 10, 20, 50},
		}, []string{"strategy"}),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recommendation_user_invalidations_total",
			Help: "Per-user cache invalidations triggered by order events",
		}),
	}

	if reg != nil {
		collectors := []prometheus.Collector{
			m.requests, m.latency, m.cacheHits, m.cacheMisses,
			m.strategyFailures, m.candidates, m.invalidations,
		}
		for _, c := range collectors {
			if err := reg.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					panic(err)
				}
			}
		}
	}

	return m
}

func (m *RecommendationMetrics) ObserveRequest(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *RecommendationMetrics) CacheHit(cache string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(cache).Inc()
}

func (m *RecommendationMetrics) CacheMiss(cache string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(cache).Inc()
}

func (m *RecommendationMetrics) StrategyFailed(strategy string) {
	if m == nil {
		return
	}
	m.strategyFailures.WithLabelValues(strategy).Inc()
}

func (m *RecommendationMetrics) Candidates(strategy string, n int) {
	if m == nil {
		return
	}
	m.candidates.WithLabelValues(strategy).Observe(float64(n))
}

func (m *RecommendationMetrics) UserInvalidated() {
	if m == nil {
		return
	}
	m.invalidations.Inc()
}

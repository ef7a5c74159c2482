package services

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/temcen/platerank/internal/config"
	"github.com/temcen/platerank/internal/database"
	"github.com/temcen/platerank/internal/messaging"
	"github.com/temcen/platerank/internal/store"
	"github.com/temcen/platerank/internal/validation"
)

const UserSamplerGraph = "graph"

type Services struct {
	Auth            *AuthService
	Health          *HealthService
	RateLimit       *RateLimitService
	Metrics         *RecommendationMetrics
	Recommendations *RecommendationService
	OrderEvents     *messaging.OrderEventConsumer
}

func New(cfg *config.Config, logger *logrus.Logger, db *database.Database, reg prometheus.Registerer) (*Services, error) {
	authService := NewAuthService(&cfg.Auth, logger, db.Redis)
	rateLimitService := NewRateLimitService(&cfg.Auth.RateLimit, logger, db.Redis)
	metrics := NewRecommendationMetrics(reg)

	pg := store.NewPostgresStore(db.PG)

	var sampler store.UserSampler = pg
	if cfg.Recommendation.UserSampler == UserSamplerGraph {
		if db.Neo4j != nil {
			sampler = store.NewGraphUserSampler(db.Neo4j)
			logger.Info("Using graph user sampler")
		} else {
			logger.Warn("Graph user sampler requested but Neo4j is unavailable, using Postgres")
		}
	}

	recommendations := NewRecommendationService(pg, pg, pg, sampler, &cfg.Recommendation, metrics, logger)

	critical := map[string]HealthCheck{
		"postgresql": func(ctx context.Context) error { return db.PG.Ping(ctx) },
	}
	nonCritical := map[string]HealthCheck{
		"redis": func(ctx context.Context) error { return db.Redis.Ping(ctx).Err() },
	}
	if db.Neo4j != nil {
		nonCritical["neo4j"] = db.Neo4j.VerifyConnectivity
	}
	healthService := NewHealthService(critical, nonCritical, reg, logger).
		WithPool(db.PG).
		WithCacheSizes(recommendations.CacheSizes)

	var orderEvents *messaging.OrderEventConsumer
	if len(cfg.Kafka.Brokers) > 0 {
		validator, err := validation.NewSchemaValidator()
		if err != nil {
			return nil, err
		}
		orderEvents = messaging.NewOrderEventConsumer(&cfg.Kafka, validator, recommendations, logger)
	} else {
		logger.Info("No Kafka brokers configured, order event invalidation disabled")
	}

	return &Services{
		Auth:            authService,
		Health:          healthService,
		RateLimit:       rateLimitService,
		Metrics:         metrics,
		Recommendations: recommendations,
		OrderEvents:     orderEvents,
	}, nil
}

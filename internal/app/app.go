package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/temcen/platerank/internal/config"
	"github.com/temcen/platerank/internal/database"
	"github.com/temcen/platerank/internal/handlers"
	"github.com/temcen/platerank/internal/middleware"
	"github.com/temcen/platerank/internal/services"
)

type App struct {
	config   *config.Config
	logger   *logrus.Logger
	db       *database.Database
	services *services.Services
	handlers *handlers.Handlers
	router   *gin.Engine

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg *config.Config) (*App, error) {
	app := &App{
		config: cfg,
		logger: setupLogger(cfg),
	}

	// Initialize database connections
	db, err := database.New(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	var reg prometheus.Registerer
	if cfg.Monitoring.Enabled {
		reg = prometheus.DefaultRegisterer
	}

	services, err := services.New(cfg, app.logger, db, reg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.services = services

	app.handlers = handlers.New(cfg, app.logger, services)
	app.setupRouter()

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// Start launches the cache sweeper and, when Kafka is configured, the
// order-event consumer. Both stop on Shutdown.
func (a *App) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.services.Recommendations.RunSweeper(ctx)
	}()

	if a.services.OrderEvents != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.services.OrderEvents.Run(ctx); err != nil {
				a.logger.WithError(err).Error("Order event consumer stopped")
			}
		}()
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("Background workers did not stop before the shutdown deadline")
	}

	if a.services.OrderEvents != nil {
		if err := a.services.OrderEvents.Close(); err != nil {
			a.logger.WithError(err).Warn("Error closing order event consumer")
		}
	}

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing database connections")
		return err
	}

	return nil
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func (a *App) setupRouter() {
	if a.config.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.Logger(a.logger))
	router.Use(middleware.Recovery(a.logger))
	router.Use(middleware.CORS(&a.config.Security.CORS))

	router.GET("/health", a.handlers.Health.Check)

	if a.config.Monitoring.Enabled {
		router.GET(a.config.Monitoring.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	recommendations := router.Group("/api/v1/recommendations")
	{
		recommendations.GET("/similar/:restaurantId/:itemName", a.handlers.Recommendation.GetSimilar)
		recommendations.GET("/trending", a.handlers.Recommendation.GetTrending)

		authenticated := recommendations.Group("")
		authenticated.Use(middleware.Auth(a.services.Auth, a.logger))
		authenticated.Use(middleware.RateLimit(a.services.RateLimit, a.logger))
		{
			authenticated.GET("/personalized", a.handlers.Recommendation.GetPersonalized)
			authenticated.POST("/clear-cache", a.handlers.Recommendation.ClearCache)
		}
	}

	a.router = router
}

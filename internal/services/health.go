package services

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// HealthCheck checks one dependency.
type HealthCheck func(ctx context.Context) error

type HealthService struct {
	critical    map[string]HealthCheck
	nonCritical map[string]HealthCheck
	pool        *pgxpool.Pool
	cacheSizes  func() (int, int)
	timeout     time.Duration
	logger      *logrus.Logger

	healthCheckStatus   *prometheus.GaugeVec
	lastHealthCheck     *prometheus.GaugeVec
	dbConnectionMetrics *prometheus.GaugeVec
}

type HealthStatus struct {
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Services    map[string]string      `json:"services"`
	Critical    []string               `json:"critical_failures,omitempty"`
	NonCritical []string               `json:"non_critical_failures,omitempty"`
	Latency     time.Duration          `json:"latency,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// NewHealthService builds a health checker. A failing critical check makes
// the service unhealthy; a failing non-critical one only degrades it.
func NewHealthService(critical, nonCritical map[string]HealthCheck, reg prometheus.Registerer, logger *logrus.Logger) *HealthService {
	hs := &HealthService{
		critical:    critical,
		nonCritical: nonCritical,
		timeout:     5 * time.Second,
		logger:      logger,
	}

	hs.healthCheckStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "health_check_status",
		Help: "Health check status (1 = healthy, 0 = unhealthy)",
	}, []string{"service"})

	hs.lastHealthCheck = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "health_check_timestamp",
		Help: "Timestamp of last health check",
	}, []string{"service"})

	hs.dbConnectionMetrics = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "database_connection_pool_usage",
		Help: "Database connection pool usage",
	}, []string{"database", "state"})

	if reg != nil {
		for name, c := range map[string]prometheus.Collector{
			"health_check_status":            hs.healthCheckStatus,
			"health_check_timestamp":         hs.lastHealthCheck,
			"database_connection_pool_usage": hs.dbConnectionMetrics,
		} {
			if err := reg.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					logger.WithError(err).Warnf("Failed to register %s metric", name)
				}
			}
		}
	}

	return hs
}

// WithPool reports Postgres pool statistics on every check.
func (s *HealthService) WithPool(pool *pgxpool.Pool) *HealthService {
	s.pool = pool
	return s
}

// WithCacheSizes adds recommendation cache sizes to the check details.
func (s *HealthService) WithCacheSizes(sizes func() (int, int)) *HealthService {
	s.cacheSizes = sizes
	return s
}

func (s *HealthService) CheckHealth(ctx context.Context) *HealthStatus {
	start := time.Now()
	status := &HealthStatus{
		Timestamp: start,
		Services:  make(map[string]string),
		Details:   make(map[string]interface{}),
	}

	allCriticalHealthy := true
	for name, check := range s.critical {
		if err := s.run(ctx, check); err != nil {
			status.Services[name] = "unhealthy"
			status.Critical = append(status.Critical, name)
			allCriticalHealthy = false
			s.logger.WithError(err).Errorf("Critical service %s is unhealthy", name)
			s.UpdateHealthMetrics(name, false)
		} else {
			status.Services[name] = "healthy"
			s.UpdateHealthMetrics(name, true)
		}
	}

	for name, check := range s.nonCritical {
		if err := s.run(ctx, check); err != nil {
			status.Services[name] = "unhealthy"
			status.NonCritical = append(status.NonCritical, name)
			s.logger.WithError(err).Warnf("Non-critical service %s is unhealthy", name)
			s.UpdateHealthMetrics(name, false)
		} else {
			status.Services[name] = "healthy"
			s.UpdateHealthMetrics(name, true)
		}
	}

	switch {
	case !allCriticalHealthy:
		status.Status = "unhealthy"
	case len(status.NonCritical) > 0:
		status.Status = "degraded"
	default:
		status.Status = "healthy"
	}

	if s.cacheSizes != nil {
		recs, sims := s.cacheSizes()
		status.Details["recommendation_cache_entries"] = recs
		status.Details["similarity_cache_entries"] = sims
	}
	s.collectPoolMetrics()

	status.Latency = time.Since(start)
	return status
}

func (s *HealthService) run(ctx context.Context, check HealthCheck) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return check(ctx)
}

func (s *HealthService) collectPoolMetrics() {
	if s.pool == nil {
		return
	}

	stats := s.pool.Stat()
	s.dbConnectionMetrics.WithLabelValues("postgresql", "acquired_conns").Set(float64(stats.AcquiredConns()))
	s.dbConnectionMetrics.WithLabelValues("postgresql", "idle_conns").Set(float64(stats.IdleConns()))
	s.dbConnectionMetrics.WithLabelValues("postgresql", "max_conns").Set(float64(stats.MaxConns()))
	s.dbConnectionMetrics.WithLabelValues("postgresql", "total_conns").Set(float64(stats.TotalConns()))
}

// UpdateHealthMetrics updates health check metrics
func (s *HealthService) UpdateHealthMetrics(serviceName string, healthy bool) {
	if healthy {
		s.healthCheckStatus.WithLabelValues(serviceName).Set(1)
	} else {
		s.healthCheckStatus.WithLabelValues(serviceName).Set(0)
	}
	s.lastHealthCheck.WithLabelValues(serviceName).Set(float64(time.Now().Unix()))
}

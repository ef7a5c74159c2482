package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/platerank/internal/config"
	"github.com/temcen/platerank/pkg/models"
)

// RateLimitService enforces a per-user sliding window kept in a Redis sorted
// set. Redis failures are permissive.
type RateLimitService struct {
	config      *config.RateLimitConfig
	logger      *logrus.Logger
	redisClient *redis.Client
}

func NewRateLimitService(cfg *config.RateLimitConfig, logger *logrus.Logger, redisClient *redis.Client) *RateLimitService {
	return &RateLimitService{
		config:      cfg,
		logger:      logger,
		redisClient: redisClient,
	}
}

func (s *RateLimitService) CheckLimit(ctx context.Context, userID, role string) *models.RateLimitInfo {
	limit := s.limitForRole(role)
	window := s.config.Window

	key := fmt.Sprintf("rate_limit:user:%s", userID)
	now := time.Now()
	windowStart := now.Add(-window)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pipe := s.redisClient.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.WithError(err).Error("Failed to execute rate limit pipeline")
		return &models.RateLimitInfo{
			Limit:     limit,
			Remaining: limit,
			ResetTime: now.Add(window).Unix(),
		}
	}

	remaining := max(limit-int(countCmd.Val()), 0)

	return &models.RateLimitInfo{
		Limit:     limit,
		Remaining: remaining,
		ResetTime: now.Add(window).Unix(),
	}
}

// IsAllowed reports whether the request fits in the window. The count read
// excludes the request being checked.
func (s *RateLimitService) IsAllowed(ctx context.Context, userID, role string) (bool, *models.RateLimitInfo) {
	info := s.CheckLimit(ctx, userID, role)
	return info.Remaining > 0, info
}

func (s *RateLimitService) limitForRole(role string) int {
	if role == models.RoleAdmin {
		return s.config.Admin
	}
	return s.config.Default
}

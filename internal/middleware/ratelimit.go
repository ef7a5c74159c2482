package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/platerank/pkg/models"
)

type RateLimiter interface {
	IsAllowed(ctx context.Context, userID, role string) (bool, *models.RateLimitInfo)
}

// RateLimit throttles authenticated users. It must run after Auth.
func RateLimit(limiter RateLimiter, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, ok := GetUserFromContext(c)
		if !ok {
			logger.Error("Rate limit middleware called without user context")
			c.Next()
			return
		}

		allowed, info := limiter.IsAllowed(c.Request.Context(), userID.String(), role)

		c.Header("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime, 10))

		if !allowed {
			logger.WithFields(logrus.Fields{
				"user_id": userID,
				"role":    role,
				"limit":   info.Limit,
			}).Warn("Rate limit exceeded")

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "RATE_LIMIT_EXCEEDED",
					"message": "Rate limit exceeded. Please try again later.",
				},
				"rate_limit": info,
			})
			return
		}

		c.Next()
	}
}

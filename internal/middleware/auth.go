package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/platerank/pkg/models"
)

const (
	userIDKey   = "user_id"
	userRoleKey = "user_role"
)

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(ctx context.Context, tokenString string) (*models.JWTClaims, error)
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// Auth requires a valid JWT and stores the user id and role on the context.
func Auth(validator TokenValidator, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "MISSING_AUTHORIZATION", "Authorization header is required")
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			abortUnauthorized(c, "INVALID_AUTHORIZATION_FORMAT", "Authorization header must be in format 'Bearer <token>'")
			return
		}

		claims, err := validator.ValidateToken(c.Request.Context(), tokenParts[1])
		if err != nil {
			logger.WithError(err).Warn("Invalid JWT token")
			abortUnauthorized(c, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Set(userRoleKey, claims.Role)
		c.Next()
	}
}

// GetUserFromContext returns the authenticated user, if any.
func GetUserFromContext(c *gin.Context) (uuid.UUID, string, bool) {
	value, exists := c.Get(userIDKey)
	if !exists {
		return uuid.Nil, "", false
	}
	userID, ok := value.(uuid.UUID)
	if !ok {
		return uuid.Nil, "", false
	}
	return userID, c.GetString(userRoleKey), true
}

func IsAdmin(c *gin.Context) bool {
	_, role, ok := GetUserFromContext(c)
	return ok && role == models.RoleAdmin
}

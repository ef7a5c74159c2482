package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/platerank/internal/middleware"
	"github.com/temcen/platerank/internal/services"
	"github.com/temcen/platerank/pkg/models"
)

type RecommendationHandler struct {
	recommendations services.RecommendationServiceInterface
	validator       *validator.Validate
	maxLimit        int
	logger          *logrus.Logger
	now             func() time.Time
}

func NewRecommendationHandler(
	recommendations services.RecommendationServiceInterface,
	maxLimit int,
	logger *logrus.Logger,
) *RecommendationHandler {
	return &RecommendationHandler{
		recommendations: recommendations,
		validator:       validator.New(),
		maxLimit:        maxLimit,
		logger:          logger,
		now:             time.Now,
	}
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// parseLimit returns 0 when the query carries no limit, leaving the default
// to the service.
func (h *RecommendationHandler) parseLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}

	rule, message := "min=1", "limit must be at least 1"
	if h.maxLimit > 0 {
		rule = fmt.Sprintf("min=1,max=%d", h.maxLimit)
		message = fmt.Sprintf("limit must be between 1 and %d", h.maxLimit)
	}
	if err := h.validator.Var(limit, rule); err != nil {
		return 0, errors.New(message)
	}
	return limit, nil
}

func (h *RecommendationHandler) respondServiceError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, services.ErrAdminRequired):
		respondError(c, http.StatusForbidden, "ADMIN_REQUIRED", "Admin access required")
	case errors.Is(err, services.ErrServiceUnavailable):
		respondError(c, http.StatusServiceUnavailable, "RECOMMENDATIONS_UNAVAILABLE", message)
	default:
		h.logger.WithError(err).Error(message)
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", message)
	}
}

func (h *RecommendationHandler) GetPersonalized(c *gin.Context) {
	userID, _, ok := middleware.GetUserFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	limit, err := h.parseLimit(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PARAMS", err.Error())
		return
	}

	recs, err := h.recommendations.GetPersonalizedRecommendations(c.Request.Context(), userID, limit)
	if err != nil {
		h.respondServiceError(c, err, "Failed to generate recommendations")
		return
	}

	items := models.NewRecommendationItems(recs)
	c.JSON(http.StatusOK, models.PersonalizedResponse{
		Success:         true,
		Recommendations: items,
		Count:           len(items),
		GeneratedAt:     h.now(),
	})
}

func (h *RecommendationHandler) GetSimilar(c *gin.Context) {
	restaurantID, err := uuid.Parse(c.Param("restaurantId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PARAMS", "Invalid restaurant ID format")
		return
	}

	itemName := c.Param("itemName")
	if itemName == "" {
		respondError(c, http.StatusBadRequest, "INVALID_PARAMS", "Item name is required")
		return
	}

	limit, err := h.parseLimit(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PARAMS", err.Error())
		return
	}
	if limit == 0 {
		limit = services.DefaultSimilarLimit
	}

	recs, err := h.recommendations.GetSimilarItems(c.Request.Context(), restaurantID, itemName, limit)
	if err != nil {
		h.respondServiceError(c, err, "Failed to get similar items")
		return
	}

	c.JSON(http.StatusOK, models.SimilarItemsResponse{
		Success:      true,
		SimilarItems: models.NewRecommendationItems(recs),
		OriginalItem: itemName,
	})
}

func (h *RecommendationHandler) GetTrending(c *gin.Context) {
	limit, err := h.parseLimit(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PARAMS", err.Error())
		return
	}

	recs, err := h.recommendations.GetTrendingItems(c.Request.Context(), limit)
	if err != nil {
		h.respondServiceError(c, err, "Failed to get trending items")
		return
	}

	c.JSON(http.StatusOK, models.TrendingResponse{
		Success:       true,
		TrendingItems: models.NewRecommendationItems(recs),
		UpdatedAt:     h.now(),
	})
}

func (h *RecommendationHandler) ClearCache(c *gin.Context) {
	if err := h.recommendations.ClearCaches(c.Request.Context(), middleware.IsAdmin(c)); err != nil {
		h.respondServiceError(c, err, "Failed to clear cache")
		return
	}

	userID, _, _ := middleware.GetUserFromContext(c)
	h.logger.WithField("user_id", userID).Info("Recommendation cache cleared")

	c.JSON(http.StatusOK, models.ClearCacheResponse{
		Success:   true,
		Message:   "Recommendation cache cleared",
		ClearedAt: h.now(),
	})
}

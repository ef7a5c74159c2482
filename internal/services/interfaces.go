package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/temcen/platerank/pkg/models"
)

// RecommendationServiceInterface is the facade consumed by the HTTP layer.
type RecommendationServiceInterface interface {
	GetPersonalizedRecommendations(ctx context.Context, userID uuid.UUID, limit int) ([]models.ScoredRecommendation, error)
	GetSimilarItems(ctx context.Context, restaurantID uuid.UUID, itemName string, limit int) ([]models.ScoredRecommendation, error)
	GetTrendingItems(ctx context.Context, limit int) ([]models.ScoredRecommendation, error)
	ClearCaches(ctx context.Context, authorized bool) error
}

var _ RecommendationServiceInterface = (*RecommendationService)(nil)

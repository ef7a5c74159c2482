package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type StrategyKind string

const (
	StrategyCollaborative StrategyKind = "collaborative"
	StrategyContent       StrategyKind = "content"
	StrategyPopular       StrategyKind = "popular"
	StrategyTrending      StrategyKind = "trending"
	StrategySimilar       StrategyKind = "similar"
)

// Tags returns the display tags for a strategy kind.
func (k StrategyKind) Tags() []string {
	switch k {
	case StrategyTrending:
		return []string{"trending"}
	case StrategyPopular:
		return []string{"popular"}
	case StrategySimilar:
		return []string{"similar"}
	default:
		return []string{"personalized"}
	}
}

// Candidate is a prospective recommendation produced by a single strategy.
type Candidate struct {
	Kind       StrategyKind `json:"type"`
	Restaurant *Restaurant  `json:"restaurant"`
	Item       MenuItem     `json:"item"`
	BaseScore  float64      `json:"base_score"`
	Reason     string       `json:"reason"`
	// CachedAt is set when a candidate is reused from an earlier computation;
	// it drives the score decay.
	CachedAt time.Time `json:"cached_at,omitempty"`
}

type ScoredRecommendation struct {
	Candidate
	Score float64 `json:"score"`
}

type RestaurantSummary struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Rating float64   `json:"rating"`
}

// RecommendationItem is the wire representation of a ScoredRecommendation.
type RecommendationItem struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Price       float64           `json:"price"`
	Image       string            `json:"image,omitempty"`
	Restaurant  RestaurantSummary `json:"restaurant"`
	Type        StrategyKind      `json:"type"`
	Score       string            `json:"score"`
	Reason      string            `json:"reason"`
	Tags        []string          `json:"tags"`
}

func NewRecommendationItem(rec ScoredRecommendation) RecommendationItem {
	item := RecommendationItem{
		ID:          rec.Item.ID,
		Name:        rec.Item.Name,
		Description: rec.Item.Description,
		Price:       rec.Item.Price,
		Image:       rec.Item.Image,
		Type:        rec.Kind,
		Score:       fmt.Sprintf("%.2f", rec.Score),
		Reason:      rec.Reason,
		Tags:        rec.Kind.Tags(),
	}
	if rec.Restaurant != nil {
		item.Restaurant = RestaurantSummary{
			ID:     rec.Restaurant.ID,
			Name:   rec.Restaurant.Name,
			Rating: rec.Restaurant.Rating,
		}
		if item.Image == "" {
			item.Image = rec.Restaurant.Image
		}
	}
	return item
}

func NewRecommendationItems(recs []ScoredRecommendation) []RecommendationItem {
	items := make([]RecommendationItem, 0, len(recs))
	for _, rec := range recs {
		items = append(items, NewRecommendationItem(rec))
	}
	return items
}

type PersonalizedResponse struct {
	Success         bool                 `json:"success"`
	Recommendations []RecommendationItem `json:"recommendations"`
	Count           int                  `json:"count"`
	GeneratedAt     time.Time            `json:"generated_at"`
}

type SimilarItemsResponse struct {
	Success      bool                 `json:"success"`
	SimilarItems []RecommendationItem `json:"similar_items"`
	OriginalItem string               `json:"original_item"`
}

type TrendingResponse struct {
	Success       bool                 `json:"success"`
	TrendingItems []RecommendationItem `json:"trending_items"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

type ClearCacheResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	ClearedAt time.Time `json:"cleared_at"`
}

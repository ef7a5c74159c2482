// Package store holds the read-only collaborators the recommendation engine
// consumes: orders, restaurants and users.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/temcen/platerank/pkg/models"
)

var ErrNotFound = errors.New("not found")

// OrderStore reads historical orders. Returned orders carry their restaurant.
type OrderStore interface {
	// FindOrdersByUser returns up to limit orders for the user; limit <= 0
	// means no limit.
	FindOrdersByUser(ctx context.Context, userID uuid.UUID, limit int, recentFirst bool) ([]models.Order, error)
}

type RestaurantStore interface {
	FindActiveRestaurantsByCuisine(ctx context.Context, cuisines []string, limit int) ([]models.Restaurant, error)
	FindTopRatedActiveRestaurants(ctx context.Context, limit int) ([]models.Restaurant, error)
	FindRestaurantsByRating(ctx context.Context, minRating float64, limit int) ([]models.Restaurant, error)
	GetRestaurantByID(ctx context.Context, id uuid.UUID) (*models.Restaurant, error)
}

type UserLookup interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type UserSampler interface {
	SampleUsers(ctx context.Context, excludeUserID uuid.UUID, limit int) ([]models.User, error)
}

type UserStore interface {
	UserLookup
	UserSampler
}

// Package storetest provides an in-memory implementation of the store
// interfaces for tests. It is not wired into the server.
package storetest

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/temcen/platerank/internal/store"
	"github.com/temcen/platerank/pkg/models"
)

var (
	_ store.OrderStore      = (*MemoryStore)(nil)
	_ store.RestaurantStore = (*MemoryStore)(nil)
	_ store.UserStore       = (*MemoryStore)(nil)
)

// MemoryStore is an in-process implementation of every store interface. Fail*
// fields inject errors for the matching reads.
type MemoryStore struct {
	mu          sync.RWMutex
	users       []models.User
	restaurants []models.Restaurant
	orders      []models.Order

	FailOrders      error
	FailRestaurants error
	FailUsers       error

	orderReads int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) AddUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, u)
}

func (s *MemoryStore) AddRestaurant(r models.Restaurant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restaurants = append(s.restaurants, r)
}

// AddOrder stores an order; the restaurant is resolved from RestaurantID when
// not already set.
func (s *MemoryStore) AddOrder(o models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.Restaurant == nil {
		for i := range s.restaurants {
			if s.restaurants[i].ID == o.RestaurantID {
				r := s.restaurants[i]
				o.Restaurant = &r
				break
			}
		}
	}
	s.orders = append(s.orders, o)
}

// UpdateRestaurant replaces the restaurant with the same id.
func (s *MemoryStore) UpdateRestaurant(r models.Restaurant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.restaurants {
		if s.restaurants[i].ID == r.ID {
			s.restaurants[i] = r
		}
	}
}

// OrderReads counts FindOrdersByUser calls.
func (s *MemoryStore) OrderReads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orderReads
}

func (s *MemoryStore) FindOrdersByUser(_ context.Context, userID uuid.UUID, limit int, recentFirst bool) ([]models.Order, error) {
	s.mu.Lock()
	s.orderReads++
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.FailOrders != nil {
		return nil, s.FailOrders
	}

	var out []models.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if recentFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) FindActiveRestaurantsByCuisine(_ context.Context, cuisines []string, limit int) ([]models.Restaurant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.FailRestaurants != nil {
		return nil, s.FailRestaurants
	}

	wanted := make(map[string]bool, len(cuisines))
	for _, c := range cuisines {
		wanted[c] = true
	}

	var out []models.Restaurant
	for _, r := range s.restaurants {
		if !r.IsActive {
			continue
		}
		for _, c := range r.Cuisines {
			if wanted[c] {
				out = append(out, r)
				break
			}
		}
	}
	return truncate(out, limit), nil
}

func (s *MemoryStore) FindTopRatedActiveRestaurants(ctx context.Context, limit int) ([]models.Restaurant, error) {
	return s.FindRestaurantsByRating(ctx, 0, limit)
}

func (s *MemoryStore) FindRestaurantsByRating(_ context.Context, minRating float64, limit int) ([]models.Restaurant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.FailRestaurants != nil {
		return nil, s.FailRestaurants
	}

	var out []models.Restaurant
	for _, r := range s.restaurants {
		if r.IsActive && r.Rating >= minRating {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	return truncate(out, limit), nil
}

func (s *MemoryStore) GetRestaurantByID(_ context.Context, id uuid.UUID) (*models.Restaurant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.FailRestaurants != nil {
		return nil, s.FailRestaurants
	}

	for _, r := range s.restaurants {
		if r.ID == id {
			found := r
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *MemoryStore) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.FailUsers != nil {
		return nil, s.FailUsers
	}

	for _, u := range s.users {
		if u.ID == id {
			found := u
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *MemoryStore) SampleUsers(_ context.Context, excludeUserID uuid.UUID, limit int) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.FailUsers != nil {
		return nil, s.FailUsers
	}

	var out []models.User
	for _, u := range s.users {
		if u.ID != excludeUserID {
			out = append(out, u)
		}
	}
	return truncate(out, limit), nil
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

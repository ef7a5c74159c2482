package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/temcen/platerank/pkg/models"
)

// DatabaseQuerier is the subset of pgxpool.Pool used by PostgresStore.
type DatabaseQuerier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// PostgresStore reads orders, restaurants and users from Postgres.
type PostgresStore struct {
	db DatabaseQuerier
}

func NewPostgresStore(db DatabaseQuerier) *PostgresStore {
	return &PostgresStore{db: db}
}

const restaurantColumns = `id, name, image, cuisines, rating, is_active`

func (s *PostgresStore) FindOrdersByUser(ctx context.Context, userID uuid.UUID, limit int, recentFirst bool) ([]models.Order, error) {
	direction := "ASC"
	if recentFirst {
		direction = "DESC"
	}

	query := fmt.Sprintf(`
		SELECT o.id, o.user_id, o.restaurant_id, o.created_at,
			r.name, r.image, r.cuisines, r.rating, r.is_active
		FROM orders o
		JOIN restaurants r ON r.id = o.restaurant_id
		WHERE o.user_id = $1
		ORDER BY o.created_at %s
		LIMIT $2`, direction)

	rows, err := s.db.Query(ctx, query, userID, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("orders query failed: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var (
			o         models.Order
			r         models.Restaurant
			createdAt time.Time
		)
		if err := rows.Scan(&o.ID, &o.UserID, &o.RestaurantID, &createdAt,
			&r.Name, &r.Image, &r.Cuisines, &r.Rating, &r.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		r.ID = o.RestaurantID
		o.Restaurant = &r
		o.CreatedAt = createdAt
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("orders query failed: %w", err)
	}

	if len(orders) == 0 {
		return orders, nil
	}

	if err := s.loadOrderItems(ctx, orders, index); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *PostgresStore) loadOrderItems(ctx context.Context, orders []models.Order, index map[uuid.UUID]int) error {
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID.String())
	}

	rows, err := s.db.Query(ctx, `
		SELECT order_id, COALESCE(menu_item_id, '00000000-0000-0000-0000-000000000000'::uuid),
			name, description, category, unit_price, quantity, is_veg, image
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position`, ids)
	if err != nil {
		return fmt.Errorf("order items query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID uuid.UUID
			line    models.OrderItem
		)
		if err := rows.Scan(&orderID, &line.Item.ID, &line.Item.Name, &line.Item.Description,
			&line.Item.Category, &line.UnitPrice, &line.Quantity, &line.Item.IsVeg, &line.Item.Image); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		line.Item.Price = line.UnitPrice
		line.Item.IsAvailable = true

		i, ok := index[orderID]
		if !ok {
			continue
		}
		orders[i].Items = append(orders[i].Items, line)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("order items query failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindActiveRestaurantsByCuisine(ctx context.Context, cuisines []string, limit int) ([]models.Restaurant, error) {
	query := `SELECT ` + restaurantColumns + `
		FROM restaurants
		WHERE is_active = true AND cuisines && $1
		LIMIT $2`
	return s.queryRestaurants(ctx, query, cuisines, limitArg(limit))
}

func (s *PostgresStore) FindTopRatedActiveRestaurants(ctx context.Context, limit int) ([]models.Restaurant, error) {
	query := `SELECT ` + restaurantColumns + `
		FROM restaurants
		WHERE is_active = true
		ORDER BY rating DESC
		LIMIT $1`
	return s.queryRestaurants(ctx, query, limitArg(limit))
}

func (s *PostgresStore) FindRestaurantsByRating(ctx context.Context, minRating float64, limit int) ([]models.Restaurant, error) {
	query := `SELECT ` + restaurantColumns + `
		FROM restaurants
		WHERE is_active = true AND rating >= $1
		ORDER BY rating DESC
		LIMIT $2`
	return s.queryRestaurants(ctx, query, minRating, limitArg(limit))
}

func (s *PostgresStore) GetRestaurantByID(ctx context.Context, id uuid.UUID) (*models.Restaurant, error) {
	query := `SELECT ` + restaurantColumns + `
		FROM restaurants
		WHERE id = $1`
	restaurants, err := s.queryRestaurants(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(restaurants) == 0 {
		return nil, fmt.Errorf("restaurant %s: %w", id, ErrNotFound)
	}
	return &restaurants[0], nil
}

func (s *PostgresStore) queryRestaurants(ctx context.Context, query string, args ...interface{}) ([]models.Restaurant, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("restaurants query failed: %w", err)
	}
	defer rows.Close()

	var restaurants []models.Restaurant
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var r models.Restaurant
		if err := rows.Scan(&r.ID, &r.Name, &r.Image, &r.Cuisines, &r.Rating, &r.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan restaurant: %w", err)
		}
		index[r.ID] = len(restaurants)
		restaurants = append(restaurants, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("restaurants query failed: %w", err)
	}

	if len(restaurants) == 0 {
		return restaurants, nil
	}

	if err := s.loadMenus(ctx, restaurants, index); err != nil {
		return nil, err
	}
	return restaurants, nil
}

func (s *PostgresStore) loadMenus(ctx context.Context, restaurants []models.Restaurant, index map[uuid.UUID]int) error {
	ids := make([]string, 0, len(restaurants))
	for _, r := range restaurants {
		ids = append(ids, r.ID.String())
	}

	rows, err := s.db.Query(ctx, `
		SELECT restaurant_id, id, name, description, category, price, image, is_veg, is_available
		FROM menu_items
		WHERE restaurant_id = ANY($1::uuid[])
		ORDER BY restaurant_id, position`, ids)
	if err != nil {
		return fmt.Errorf("menu query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			restaurantID uuid.UUID
			item         models.MenuItem
		)
		if err := rows.Scan(&restaurantID, &item.ID, &item.Name, &item.Description, &item.Category,
			&item.Price, &item.Image, &item.IsVeg, &item.IsAvailable); err != nil {
			return fmt.Errorf("failed to scan menu item: %w", err)
		}
		if i, ok := index[restaurantID]; ok {
			restaurants[i].Menu = append(restaurants[i].Menu, item)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("menu query failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	users, err := s.queryUsers(ctx, `
		SELECT id, name, role, created_at
		FROM users
		WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return &users[0], nil
}

func (s *PostgresStore) SampleUsers(ctx context.Context, excludeUserID uuid.UUID, limit int) ([]models.User, error) {
	return s.queryUsers(ctx, `
		SELECT id, name, role, created_at
		FROM users
		WHERE id <> $1
		LIMIT $2`, excludeUserID, limitArg(limit))
}

func (s *PostgresStore) queryUsers(ctx context.Context, query string, args ...interface{}) ([]models.User, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("users query failed: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users query failed: %w", err)
	}
	return users, nil
}

// limitArg maps a non-positive limit to NULL, which Postgres treats as
// LIMIT ALL.
func limitArg(limit int) interface{} {
	if limit <= 0 {
		return nil
	}
	return limit
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Order is an immutable record owned by the order store.
type Order struct {
	ID           uuid.UUID   `json:"id" db:"id"`
	UserID       uuid.UUID   `json:"user_id" db:"user_id"`
	RestaurantID uuid.UUID   `json:"restaurant_id" db:"restaurant_id"`
	Restaurant   *Restaurant `json:"restaurant,omitempty"`
	Items        []OrderItem `json:"items"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
}

type OrderItem struct {
	Item      MenuItem `json:"item"`
	Quantity  int      `json:"quantity" db:"quantity"`
	UnitPrice float64  `json:"unit_price" db:"unit_price"`
}

type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// OrderPlacedEvent is published by the ordering system whenever a user
// completes an order.
type OrderPlacedEvent struct {
	EventType    string    `json:"event_type"`
	OrderID      uuid.UUID `json:"order_id"`
	UserID       uuid.UUID `json:"user_id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	CreatedAt    time.Time `json:"created_at"`
}

package models

import (
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

type Restaurant struct {
	ID       uuid.UUID  `json:"id" db:"id"`
	Name     string     `json:"name" db:"name"`
	Image    string     `json:"image,omitempty" db:"image"`
	Cuisines []string   `json:"cuisines" db:"cuisines"`
	Rating   float64    `json:"rating" db:"rating"`
	IsActive bool       `json:"is_active" db:"is_active"`
	Menu     []MenuItem `json:"menu,omitempty"`
}

// MenuItem is a read-only snapshot of a dish. Items have no stable identity
// across restaurants, so (restaurant id, name) is used as the key.
type MenuItem struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	Category    string    `json:"category,omitempty" db:"category"`
	Price       float64   `json:"price" db:"price"`
	Image       string    `json:"image,omitempty" db:"image"`
	IsVeg       bool      `json:"is_veg" db:"is_veg"`
	IsAvailable bool      `json:"is_available" db:"is_available"`
}

// AvailableItems returns the menu items currently orderable, in menu order.
func (r *Restaurant) AvailableItems() []MenuItem {
	items := make([]MenuItem, 0, len(r.Menu))
	for _, item := range r.Menu {
		if item.IsAvailable {
			items = append(items, item)
		}
	}
	return items
}

// NormalizeItemName is the canonical (NFC) form of an item name. Item identity
// always compares normalized names.
func NormalizeItemName(name string) string {
	return norm.NFC.String(name)
}

// FindItem looks up a menu item by name.
func (r *Restaurant) FindItem(name string) (MenuItem, bool) {
	name = NormalizeItemName(name)
	for _, item := range r.Menu {
		if NormalizeItemName(item.Name) == name {
			return item, true
		}
	}
	return MenuItem{}, false
}

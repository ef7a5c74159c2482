package services

import (
	"sort"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/temcen/platerank/pkg/models"
)

// HistoryLimit bounds the order history read for a profile.
const HistoryLimit = 50

type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// PreferenceProfile summarises a user's order history. Weights are summed
// item quantities.
type PreferenceProfile struct {
	Cuisines    map[string]float64    `json:"cuisines"`
	Restaurants map[uuid.UUID]float64 `json:"restaurants"`
	Categories  map[string]float64    `json:"categories"`
	PriceRange  PriceRange            `json:"price_range"`
	AvgSpend    float64               `json:"avg_spend"`
	// VegPreference is nil unless a dietary preference is known. It is never
	// inferred from history.
	VegPreference *bool `json:"veg_preference,omitempty"`
}

func NewPreferenceProfile() *PreferenceProfile {
	return &PreferenceProfile{
		Cuisines:    make(map[string]float64),
		Restaurants: make(map[uuid.UUID]float64),
		Categories:  make(map[string]float64),
	}
}

// ExtractPreferences builds a profile from orders. Callers route empty
// histories to the popularity strategies instead.
func ExtractPreferences(orders []models.Order) *PreferenceProfile {
	profile := NewPreferenceProfile()

	var prices, quantities []float64
	for _, order := range orders {
		restaurantID := order.RestaurantID
		var cuisines []string
		if order.Restaurant != nil {
			restaurantID = order.Restaurant.ID
			cuisines = order.Restaurant.Cuisines
		}
		if _, ok := profile.Restaurants[restaurantID]; !ok {
			profile.Restaurants[restaurantID] = 0
		}

		for _, line := range order.Items {
			qty := float64(line.Quantity)
			if qty <= 0 {
				continue
			}

			for _, cuisine := range cuisines {
				profile.Cuisines[cuisine] += qty
			}
			profile.Restaurants[restaurantID] += qty
			if line.Item.Category != "" {
				profile.Categories[line.Item.Category] += qty
			}

			price := line.UnitPrice
			if price == 0 {
				price = line.Item.Price
			}
			prices = append(prices, price)
			quantities = append(quantities, qty)
		}
	}

	if len(prices) > 0 {
		profile.AvgSpend = stat.Mean(prices, quantities)
		profile.PriceRange = PriceRange{Min: floats.Min(prices), Max: floats.Max(prices)}
	}

	return profile
}

// TopCuisines returns up to n cuisines by descending weight, ties by name.
func (p *PreferenceProfile) TopCuisines(n int) []string {
	cuisines := make([]string, 0, len(p.Cuisines))
	for c := range p.Cuisines {
		cuisines = append(cuisines, c)
	}
	sort.Slice(cuisines, func(i, j int) bool {
		wi, wj := p.Cuisines[cuisines[i]], p.Cuisines[cuisines[j]]
		if wi != wj {
			return wi > wj
		}
		return cuisines[i] < cuisines[j]
	})
	if len(cuisines) > n {
		cuisines = cuisines[:n]
	}
	return cuisines
}

func (p *PreferenceProfile) HasOrderedFrom(restaurantID uuid.UUID) bool {
	_, ok := p.Restaurants[restaurantID]
	return ok
}

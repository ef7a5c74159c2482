package services

import (
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/temcen/platerank/internal/config"
	"github.com/temcen/platerank/internal/store/storetest"
	"github.com/temcen/platerank/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func menuItem(name, category string, price float64, available bool) models.MenuItem {
	return models.MenuItem{
		ID:          uuid.New(),
		Name:        name,
		Category:    category,
		Price:       price,
		IsVeg:       true,
		IsAvailable: available,
	}
}

// fixture is a small catalogue: two Italian restaurants, a Chinese one and
// an Indian one below the trending rating.
type fixture struct {
	store *storetest.MemoryStore

	roma     models.Restaurant // Italian, 4.5
	sole     models.Restaurant // Italian, 4.0
	wok      models.Restaurant // Chinese, 4.8
	spice    models.Restaurant // Indian, 3.5
	alice    uuid.UUID         // one order of 2x Margherita Pizza from roma
	newcomer uuid.UUID         // no orders
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:    storetest.NewMemoryStore(),
		alice:    uuid.New(),
		newcomer: uuid.New(),
		now:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	f.roma = models.Restaurant{
		ID: uuid.New(), Name: "Pizzeria Roma", Cuisines: []string{"Italian"}, Rating: 4.5, IsActive: true,
		Menu: []models.MenuItem{
			menuItem("Margherita Pizza", "Pizza", 250, true),
			menuItem("Garlic Bread", "Sides", 120, true),
			menuItem("Pepperoni Pizza", "Pizza", 320, true),
			menuItem("Bruschetta", "Starters", 210, true),
			menuItem("Lasagna", "Pasta", 300, true),
			menuItem("Calzone", "Pizza", 280, false),
			menuItem("Tiramisu", "Dessert", 240, false),
		},
	}
	f.sole = models.Restaurant{
		ID: uuid.New(), Name: "Trattoria Sole", Cuisines: []string{"Italian"}, Rating: 4.0, IsActive: true,
		Menu: []models.MenuItem{
			menuItem("Penne Arrabbiata", "Pasta", 260, true),
			menuItem("Farmhouse Pizza", "Pizza", 320, true),
		},
	}
	f.wok = models.Restaurant{
		ID: uuid.New(), Name: "Golden Wok", Cuisines: []string{"Chinese"}, Rating: 4.8, IsActive: true,
		Menu: []models.MenuItem{
			menuItem("Hakka Noodles", "Noodles", 220, true),
			menuItem("Peking Duck", "Mains", 650, true),
			menuItem("Dim Sum Platter", "Starters", 340, true),
		},
	}
	f.spice = models.Restaurant{
		ID: uuid.New(), Name: "Spice Route", Cuisines: []string{"Indian"}, Rating: 3.5, IsActive: true,
		Menu: []models.MenuItem{
			menuItem("Butter Chicken", "Curry", 350, true),
		},
	}

	for _, r := range []models.Restaurant{f.roma, f.sole, f.wok, f.spice} {
		f.store.AddRestaurant(r)
	}

	f.store.AddUser(models.User{ID: f.alice, Name: "Alice"})
	f.store.AddUser(models.User{ID: f.newcomer, Name: "Newcomer"})

	margherita, _ := f.roma.FindItem("Margherita Pizza")
	f.store.AddOrder(models.Order{
		ID:           uuid.New(),
		UserID:       f.alice,
		RestaurantID: f.roma.ID,
		Items:        []models.OrderItem{{Item: margherita, Quantity: 2, UnitPrice: 250}},
		CreatedAt:    f.now.Add(-48 * time.Hour),
	})

	return f
}

// addOrder records a single-line order for user at restaurant r.
func (f *fixture) addOrder(user uuid.UUID, r models.Restaurant, itemName string, qty int, age time.Duration) {
	item, _ := r.FindItem(itemName)
	f.store.AddOrder(models.Order{
		ID:           uuid.New(),
		UserID:       user,
		RestaurantID: r.ID,
		Items:        []models.OrderItem{{Item: item, Quantity: qty, UnitPrice: item.Price}},
		CreatedAt:    f.now.Add(-age),
	})
}

func testRecommendationConfig() *config.RecommendationConfig {
	return &config.RecommendationConfig{
		CacheTTL:          30 * time.Minute,
		SweepInterval:     time.Minute,
		SimilarityWorkers: 4,
		StrategyTimeout:   2 * time.Second,
		DefaultLimit:      10,
		MaxLimit:          50,
	}
}

// clock is a mutable time source shared by the service and its caches.
type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func (f *fixture) service(reg prometheus.Registerer) (*RecommendationService, *clock, *RecommendationMetrics) {
	clk := &clock{t: f.now}
	metrics := NewRecommendationMetrics(reg)
	svc := NewRecommendationService(f.store, f.store, f.store, f.store, testRecommendationConfig(), metrics, testLogger()).
		WithClock(clk.Now)
	return svc, clk, metrics
}

func names(recs []models.ScoredRecommendation) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Item.Name)
	}
	return out
}

func candidateNames(candidates []models.Candidate) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.Item.Name)
	}
	return out
}

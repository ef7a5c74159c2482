package services

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/temcen/platerank/pkg/models"
)

// itemKey identifies a menu item by restaurant and NFC-normalised name.
func itemKey(restaurantID uuid.UUID, name string) string {
	return restaurantID.String() + "_" + models.NormalizeItemName(name)
}

func candidateKey(c models.Candidate) string {
	id := uuid.Nil
	if c.Restaurant != nil {
		id = c.Restaurant.ID
	}
	return itemKey(id, c.Item.Name)
}

// Deduplicate keeps the first candidate for each (restaurant, item name).
func Deduplicate(candidates []models.Candidate) []models.Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		key := candidateKey(c)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Fuse deduplicates, scores and ranks candidates. Ties keep input order, so
// earlier strategies win.
func Fuse(candidates []models.Candidate, profile *PreferenceProfile, limit int, now time.Time) []models.ScoredRecommendation {
	unique := Deduplicate(candidates)

	ranked := make([]models.ScoredRecommendation, 0, len(unique))
	for _, c := range unique {
		ranked = append(ranked, models.ScoredRecommendation{
			Candidate: c,
			Score:     CompositeScore(c, profile, now),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	if limit >= 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

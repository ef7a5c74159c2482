package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/temcen/platerank/internal/store"
	"github.com/temcen/platerank/pkg/models"
)

const (
	SimilarityThreshold      = 0.3
	CandidateUserSample      = 100
	NearUserLimit            = 10
	NearUserOrderLimit       = 10
	DefaultSimilarityWorkers = 8

	collaborativeReason = "Users with similar taste ordered this"
)

type nearUser struct {
	id    uuid.UUID
	score float64
}

// CollaborativeStrategy recommends what similar users ordered from
// restaurants the target user has not tried.
type CollaborativeStrategy struct {
	users      store.UserSampler
	orders     store.OrderStore
	similarity *SimilarityEngine
	workers    int
	logger     *logrus.Logger
}

func NewCollaborativeStrategy(
	users store.UserSampler,
	orders store.OrderStore,
	similarity *SimilarityEngine,
	workers int,
	logger *logrus.Logger,
) *CollaborativeStrategy {
	if workers <= 0 {
		workers = DefaultSimilarityWorkers
	}
	return &CollaborativeStrategy{
		users:      users,
		orders:     orders,
		similarity: similarity,
		workers:    workers,
		logger:     logger,
	}
}

func (s *CollaborativeStrategy) Recommend(ctx context.Context, userID uuid.UUID, profile *PreferenceProfile, limit int) ([]models.Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}

	near, err := s.nearUsers(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(near) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{})
	var candidates []models.Candidate

	for _, n := range near {
		orders, err := s.orders.FindOrdersByUser(ctx, n.id, NearUserOrderLimit, true)
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"user_id":   userID,
				"near_user": n.id,
			}).Warn("Failed to load near user orders")
			continue
		}

		for _, order := range orders {
			if profile.HasOrderedFrom(order.RestaurantID) {
				continue
			}
			for _, line := range order.Items {
				key := itemKey(order.RestaurantID, line.Item.Name)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}

				candidates = append(candidates, models.Candidate{
					Kind:       models.StrategyCollaborative,
					Restaurant: order.Restaurant,
					Item:       line.Item,
					BaseScore:  CollaborativeBaseScore,
					Reason:     collaborativeReason,
				})
				if len(candidates) >= limit {
					return candidates, nil
				}
			}
		}
	}

	return candidates, nil
}

// nearUsers samples candidate users and keeps the most similar ones above the
// threshold. Similarity is computed by a bounded worker group; a failed pair
// counts as dissimilar.
func (s *CollaborativeStrategy) nearUsers(ctx context.Context, userID uuid.UUID) ([]nearUser, error) {
	sample, err := s.users.SampleUsers(ctx, userID, CandidateUserSample)
	if err != nil {
		return nil, fmt.Errorf("failed to sample users: %w", err)
	}

	scores := make([]float64, len(sample))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, u := range sample {
		if u.ID == userID {
			continue
		}
		g.Go(func() error {
			score, err := s.similarity.Similarity(gctx, userID, u.ID)
			if err != nil {
				s.logger.WithError(err).WithField("candidate", u.ID).Debug("Similarity unavailable")
				return nil
			}
			scores[i] = score
			return nil
		})
	}
	_ = g.Wait()

	var near []nearUser
	for i, u := range sample {
		if scores[i] > SimilarityThreshold {
			near = append(near, nearUser{id: u.ID, score: scores[i]})
		}
	}

	sort.SliceStable(near, func(i, j int) bool { return near[i].score > near[j].score })
	if len(near) > NearUserLimit {
		near = near[:NearUserLimit]
	}
	return near, nil
}

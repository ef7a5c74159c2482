package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/temcen/platerank/pkg/models"
)

// GraphUserSampler samples near-user candidates from the order graph
// (:User)-[:ORDERED_FROM]->(:Restaurant). Users sharing at least one
// restaurant with the target come first; the remainder is filled with
// arbitrary users so the sample size matches the relational sampler.
type GraphUserSampler struct {
	driver neo4j.DriverWithContext
}

func NewGraphUserSampler(driver neo4j.DriverWithContext) *GraphUserSampler {
	return &GraphUserSampler{driver: driver}
}

const coCustomersQuery = `
	MATCH (target:User {user_id: $userId})-[:ORDERED_FROM]->(:Restaurant)<-[:ORDERED_FROM]-(other:User)
	WHERE other.user_id <> $userId
	WITH DISTINCT other
	RETURN other.user_id AS user_id, coalesce(other.name, '') AS name, coalesce(other.role, '') AS role
	LIMIT $limit`

const fillUsersQuery = `
	MATCH (other:User)
	WHERE other.user_id <> $userId AND NOT other.user_id IN $seen
	RETURN other.user_id AS user_id, coalesce(other.name, '') AS name, coalesce(other.role, '') AS role
	LIMIT $limit`

func (g *GraphUserSampler) SampleUsers(ctx context.Context, excludeUserID uuid.UUID, limit int) ([]models.User, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	users, err := g.run(ctx, session, coCustomersQuery, map[string]interface{}{
		"userId": excludeUserID.String(),
		"limit":  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("co-customer sampling failed: %w", err)
	}

	remaining := limit - len(users)
	if remaining <= 0 {
		return users, nil
	}

	seen := make([]string, 0, len(users))
	for _, u := range users {
		seen = append(seen, u.ID.String())
	}

	fill, err := g.run(ctx, session, fillUsersQuery, map[string]interface{}{
		"userId": excludeUserID.String(),
		"seen":   seen,
		"limit":  remaining,
	})
	if err != nil {
		return nil, fmt.Errorf("user sampling failed: %w", err)
	}

	return append(users, fill...), nil
}

func (g *GraphUserSampler) run(ctx context.Context, session neo4j.SessionWithContext, query string, params map[string]interface{}) ([]models.User, error) {
	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}

	var users []models.User
	for result.Next(ctx) {
		user, err := userFromRecord(result.Record().AsMap())
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func userFromRecord(values map[string]interface{}) (models.User, error) {
	raw, ok := values["user_id"].(string)
	if !ok {
		return models.User{}, fmt.Errorf("user_id missing from graph record")
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return models.User{}, fmt.Errorf("invalid user_id %q: %w", raw, err)
	}

	user := models.User{ID: id}
	if name, ok := values["name"].(string); ok {
		user.Name = name
	}
	if role, ok := values["role"].(string); ok {
		user.Role = role
	}
	return user, nil
}

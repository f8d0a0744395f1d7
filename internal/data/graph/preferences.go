package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/lishiyo/twincore-prototype-sub000/internal/domain"
)

// PreferenceScope optionally narrows preference lookup to a project or session.
type PreferenceScope struct {
	ProjectID string
	SessionID string
}

// PreferenceStatements is the graph tier of preference resolution. Three
// queries run in order, each bounded by the remaining limit:
//
//	a) user's chunks with a STATES_PREFERENCE link to a matching topic,
//	b) same pattern through MENTIONS,
//	c) any chunk the user created (relevance left to the vector tier).
//
// Twin interactions never surface from this tier.
func (s *Store) PreferenceStatements(ctx context.Context, userID, topic string, limit int, scope *PreferenceScope) ([]domain.Chunk, error) {
	const op = "graph.preference_statements"
	if limit <= 0 {
		limit = 10
	}

	projectID := ""
	sessionID := ""
	if scope != nil {
		projectID = scope.ProjectID
		sessionID = scope.SessionID
	}

	topicTier := `
MATCH (u:User {user_id: $user_id})-[:CREATED]->(c:Chunk)-[:%s]->(t:Topic)
WHERE (toLower(t.name) CONTAINS toLower($topic) OR toLower($topic) CONTAINS toLower(t.name))
  AND coalesce(c.is_twin_interaction, false) = false
  AND ($project_id = '' OR c.project_id = $project_id)
  AND ($session_id = '' OR c.session_id = $session_id)
WITH DISTINCT c
RETURN properties(c) AS props
ORDER BY c.timestamp DESC
LIMIT $limit
`
	fallbackTier := `
MATCH (u:User {user_id: $user_id})-[:CREATED]->(c:Chunk)
WHERE coalesce(c.is_twin_interaction, false) = false
  AND ($project_id = '' OR c.project_id = $project_id)
  AND ($session_id = '' OR c.session_id = $session_id)
WITH DISTINCT c
RETURN properties(c) AS props
ORDER BY c.timestamp DESC
LIMIT $limit
`

	session := s.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		tiers := []string{
			fmt.Sprintf(topicTier, RelStatesPreference),
			fmt.Sprintf(topicTier, RelMentions),
			fallbackTier,
		}

		seen := map[string]struct{}{}
		out := make([]domain.Chunk, 0, limit)
		for _, q := range tiers {
			remaining := limit - len(out)
			if remaining <= 0 {
				break
			}
			res, err := tx.Run(ctx, q, map[string]any{
				"user_id":    userID,
				"topic":      topic,
				"project_id": projectID,
				"session_id": sessionID,
				"limit":      remaining,
			})
			if err != nil {
				return nil, err
			}
			for res.Next(ctx) {
				record := res.Record()
				rawProps, _ := record.Get("props")
				props, _ := rawProps.(map[string]any)
				chunk := chunkFromNodeProps(props)
				if chunk.ChunkID == "" {
					continue
				}
				if _, dup := seen[chunk.ChunkID]; dup {
					continue
				}
				seen[chunk.ChunkID] = struct{}{}
				out = append(out, chunk)
			}
			if err := res.Err(); err != nil {
				return nil, err
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, classifyError(op, err)
	}
	return result.([]domain.Chunk), nil
}

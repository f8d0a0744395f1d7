package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/lishiyo/twincore-prototype-sub000/internal/domain"
)

// TopicFilters scopes a topic-content query. The twin-interaction flag is
// deliberately absent here: it applies only in the vector fallback tier.
type TopicFilters struct {
	UserID         string
	ProjectID      string
	SessionID      string
	IncludePrivate bool
	Limit          int
}

type TopicContent struct {
	Chunk domain.Chunk `json:"chunk"`
	Topic string       `json:"topic"`
}

// Sorting lives on the WITH projection: under DISTINCT, ORDER BY can only
// reference projected variables, never the pre-projection ones.
const contentByTopicQuery = `
MATCH (c:Chunk)-[r:MENTIONS|STATES_PREFERENCE]->(t:Topic)
WHERE (toLower(t.name) CONTAINS toLower($topic) OR toLower($topic) CONTAINS toLower(t.name))
  AND ($user_id = '' OR c.user_id = $user_id)
  AND ($project_id = '' OR c.project_id = $project_id)
  AND ($session_id = '' OR c.session_id = $session_id)
  AND ($include_private OR coalesce(c.is_private, false) = false)
WITH DISTINCT c, t.name AS topic, CASE type(r) WHEN 'STATES_PREFERENCE' THEN 0 ELSE 1 END AS rank
ORDER BY rank, c.timestamp DESC
LIMIT $limit
RETURN properties(c) AS props, topic
`

// ContentByTopic returns chunks linked to topics whose name fuzzily contains
// (or is contained by) the requested topic. STATES_PREFERENCE links rank
// ahead of plain MENTIONS.
func (s *Store) ContentByTopic(ctx context.Context, topicName string, filters TopicFilters) ([]TopicContent, error) {
	const op = "graph.content_by_topic"
	limit := filters.Limit
	if limit <= 0 {
		limit = 10
	}

	params := map[string]any{
		"topic":           topicName,
		"user_id":         filters.UserID,
		"project_id":      filters.ProjectID,
		"session_id":      filters.SessionID,
		"include_private": filters.IncludePrivate,
		"limit":           limit,
	}

	session := s.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, contentByTopicQuery, params)
		if err != nil {
			return nil, err
		}
		var out []TopicContent
		seen := map[string]struct{}{}
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
			topic, _ := record.Get("topic")
			out = append(out, TopicContent{Chunk: chunk, Topic: recString(topic)})
		}
		return out, res.Err()
	})
	if err != nil {
		return nil, classifyError(op, err)
	}
	out := result.([]TopicContent)
	if out == nil {
		out = []TopicContent{}
	}
	return out, nil
}

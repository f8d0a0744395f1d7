package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/lishiyo/twincore-prototype-sub000/internal/domain"
)

const (
	minRelatedDepth = 1
	maxRelatedDepth = 5
)

// RelEdge is one direct relationship of a returned chunk.
type RelEdge struct {
	Type          string `json:"type"`
	NeighborID    string `json:"neighbor_id"`
	NeighborLabel string `json:"neighbor_label"`
}

type RelatedChunk struct {
	Chunk    domain.Chunk `json:"chunk"`
	Outgoing []RelEdge    `json:"outgoing_rels"`
	Incoming []RelEdge    `json:"incoming_rels"`
}

// RelatedContent finds chunks connected to the seed chunk by
//  1. a direct path of length 1..maxDepth (optionally restricted to the
//     relationship-type whitelist),
//  2. a shared non-chunk entity one hop out on each side,
//  3. when maxDepth >= 2, a shared-entity pair with one intermediate hop.
//
// The privacy flag applies to destination chunks only, never intermediates.
// A missing seed chunk yields an empty result, not an error.
func (s *Store) RelatedContent(ctx context.Context, chunkID string, types []string, maxDepth int, includePrivate bool, limit int) ([]RelatedChunk, error) {
	const op = "graph.related_content"
	if maxDepth < minRelatedDepth {
		maxDepth = minRelatedDepth
	}
	if maxDepth > maxRelatedDepth {
		maxDepth = maxRelatedDepth
	}
	if limit <= 0 {
		limit = 10
	}
	for _, t := range types {
		if err := validateIdentifier(t); err != nil {
			return nil, err
		}
	}
	typeList := types
	if typeList == nil {
		typeList = []string{}
	}

	// The variable-length bound cannot be a parameter; maxDepth is clamped above.
	directQuery := fmt.Sprintf(`
MATCH (c1:Chunk {chunk_id: $chunk_id})
MATCH path = (c1)-[*1..%d]-(c2:Chunk)
WHERE c1 <> c2
  AND (size($types) = 0 OR all(rel IN relationships(path) WHERE type(rel) IN $types))
  AND ($include_private OR coalesce(c2.is_private, false) = false)
RETURN DISTINCT properties(c2) AS props
LIMIT $limit
`, maxDepth)

	sharedDepth1Query := `
MATCH (c1:Chunk {chunk_id: $chunk_id})--(e)--(c2:Chunk)
WHERE NOT e:Chunk
  AND c1 <> c2
  AND ($include_private OR coalesce(c2.is_private, false) = false)
RETURN DISTINCT properties(c2) AS props
LIMIT $limit
`

	sharedDepth2Query := `
MATCH (c1:Chunk {chunk_id: $chunk_id})--(e1)--(e2)--(c2:Chunk)
WHERE NOT e1:Chunk AND NOT e2:Chunk
  AND c1 <> c2
  AND ($include_private OR coalesce(c2.is_private, false) = false)
RETURN DISTINCT properties(c2) AS props
LIMIT $limit
`

	params := map[string]any{
		"chunk_id":        chunkID,
		"types":           typeList,
		"include_private": includePrivate,
		"limit":           limit,
	}

	session := s.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		exists, err := chunkExists(ctx, tx, chunkID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return []RelatedChunk{}, nil
		}

		queries := []string{directQuery, sharedDepth1Query}
		if maxDepth >= 2 {
			queries = append(queries, sharedDepth2Query)
		}

		seen := map[string]struct{}{}
		ordered := make([]domain.Chunk, 0, limit)
		for _, q := range queries {
			if len(ordered) >= limit {
				break
			}
			res, err := tx.Run(ctx, q, params)
			if err != nil {
				return nil, err
			}
			for res.Next(ctx) {
				record := res.Record()
				rawProps, _ := record.Get("props")
				props, _ := rawProps.(map[string]any)
				chunk := chunkFromNodeProps(props)
				if chunk.ChunkID == "" || chunk.ChunkID == chunkID {
					continue
				}
				if _, dup := seen[chunk.ChunkID]; dup {
					continue
				}
				seen[chunk.ChunkID] = struct{}{}
				ordered = append(ordered, chunk)
				if len(ordered) >= limit {
					break
				}
			}
			if err := res.Err(); err != nil {
				return nil, err
			}
		}
		if len(ordered) == 0 {
			return []RelatedChunk{}, nil
		}

		edges, err := directEdges(ctx, tx, chunkIDs(ordered))
		if err != nil {
			return nil, err
		}
		out := make([]RelatedChunk, 0, len(ordered))
		for _, chunk := range ordered {
			rc := RelatedChunk{Chunk: chunk}
			if e, ok := edges[chunk.ChunkID]; ok {
				rc.Outgoing = e.outgoing
				rc.Incoming = e.incoming
			}
			out = append(out, rc)
		}
		return out, nil
	})
	if err != nil {
		return nil, classifyError(op, err)
	}
	return result.([]RelatedChunk), nil
}

func chunkExists(ctx context.Context, tx neo4j.ManagedTransaction, chunkID string) (bool, error) {
	res, err := tx.Run(ctx, `
MATCH (c:Chunk {chunk_id: $chunk_id})
RETURN count(c) AS n
`, map[string]any{"chunk_id": chunkID})
	if err != nil {
		return false, err
	}
	record, err := res.Single(ctx)
	if err != nil {
		return false, err
	}
	n, _ := record.Get("n")
	count, _ := n.(int64)
	return count > 0, nil
}

type edgePair struct {
	outgoing []RelEdge
	incoming []RelEdge
}

// directEdges lists every direct relationship (type, neighbor primary key,
// neighbor label) for the given chunks in one query.
func directEdges(ctx context.Context, tx neo4j.ManagedTransaction, ids []string) (map[string]edgePair, error) {
	res, err := tx.Run(ctx, `
UNWIND $ids AS cid
MATCH (c:Chunk {chunk_id: cid})
OPTIONAL MATCH (c)-[ro]->(no)
WITH cid, c, collect(DISTINCT {
  type: type(ro),
  neighbor_label: head(labels(no)),
  neighbor_id: coalesce(no.chunk_id, no.user_id, no.session_id, no.project_id, no.document_id, no.message_id, no.topic_id, no.preference_id, no.team_id, no.org_id, no.name, '')
}) AS outgoing
OPTIONAL MATCH (ni)-[ri]->(c)
RETURN cid, outgoing, collect(DISTINCT {
  type: type(ri),
  neighbor_label: head(labels(ni)),
  neighbor_id: coalesce(ni.chunk_id, ni.user_id, ni.session_id, ni.project_id, ni.document_id, ni.message_id, ni.topic_id, ni.preference_id, ni.team_id, ni.org_id, ni.name, '')
}) AS incoming
`, map[string]any{"ids": ids})
	if err != nil {
		return nil, err
	}

	out := map[string]edgePair{}
	for res.Next(ctx) {
		record := res.Record()
		cid, _ := record.Get("cid")
		rawOut, _ := record.Get("outgoing")
		rawIn, _ := record.Get("incoming")
		out[recString(cid)] = edgePair{
			outgoing: toRelEdges(rawOut),
			incoming: toRelEdges(rawIn),
		}
	}
	return out, res.Err()
}

func toRelEdges(raw any) []RelEdge {
	var out []RelEdge
	for _, m := range recMaps(raw) {
		relType := recString(m["type"])
		if relType == "" {
			// Null row from an OPTIONAL MATCH with no relationships.
			continue
		}
		out = append(out, RelEdge{
			Type:          relType,
			NeighborID:    recString(m["neighbor_id"]),
			NeighborLabel: recString(m["neighbor_label"]),
		})
	}
	return out
}

func chunkIDs(chunks []domain.Chunk) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.ChunkID)
	}
	return out
}

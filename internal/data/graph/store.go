package graph

import (
	"context"
	"errors"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/lishiyo/twincore-prototype-sub000/internal/domain"
	"github.com/lishiyo/twincore-prototype-sub000/internal/platform/logger"
	"github.com/lishiyo/twincore-prototype-sub000/internal/platform/neo4jdb"
)

// Node labels and relationship types of the memory graph.
const (
	LabelUser         = "User"
	LabelProject      = "Project"
	LabelSession      = "Session"
	LabelDocument     = "Document"
	LabelMessage      = "Message"
	LabelChunk        = "Chunk"
	LabelTopic        = "Topic"
	LabelOrganization = "Organization"
	LabelTeam         = "Team"
	LabelPreference   = "Preference"

	RelAuthored         = "AUTHORED"
	RelCreated          = "CREATED"
	RelOwns             = "OWNS"
	RelUploaded         = "UPLOADED"
	RelParticipatedIn   = "PARTICIPATED_IN"
	RelMemberOf         = "MEMBER_OF"
	RelManages          = "MANAGES"
	RelPartOf           = "PART_OF"
	RelPostedIn         = "POSTED_IN"
	RelAttachedTo       = "ATTACHED_TO"
	RelMentions         = "MENTIONS"
	RelStatesPreference = "STATES_PREFERENCE"
	RelStated           = "STATED"
	RelRelatedTo        = "RELATED_TO"
	RelDerivedFrom      = "DERIVED_FROM"
	RelLedTo            = "LED_TO"
	RelContextChunk     = "CONTEXT_CHUNK"
)

// Store is the knowledge-graph DAL. All operations run in managed sessions on
// the shared driver; writes are single-transaction.
type Store struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func NewStore(client *neo4jdb.Client, log *logger.Logger) *Store {
	return &Store{
		client: client,
		log:    log.With("service", "MemoryGraph"),
	}
}

func (s *Store) writeSession(ctx context.Context) neo4j.SessionWithContext {
	return s.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.client.Database,
	})
}

func (s *Store) readSession(ctx context.Context) neo4j.SessionWithContext {
	return s.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.client.Database,
	})
}

// EnsureSchema installs the uniqueness constraint for every entity label.
// Idempotent; safe on every boot.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const op = "graph.ensure_schema"
	stmts := []string{
		`CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (n:User) REQUIRE n.user_id IS UNIQUE`,
		`CREATE CONSTRAINT project_id_unique IF NOT EXISTS FOR (n:Project) REQUIRE n.project_id IS UNIQUE`,
		`CREATE CONSTRAINT session_id_unique IF NOT EXISTS FOR (n:Session) REQUIRE n.session_id IS UNIQUE`,
		`CREATE CONSTRAINT document_id_unique IF NOT EXISTS FOR (n:Document) REQUIRE n.document_id IS UNIQUE`,
		`CREATE CONSTRAINT message_id_unique IF NOT EXISTS FOR (n:Message) REQUIRE n.message_id IS UNIQUE`,
		`CREATE CONSTRAINT chunk_id_unique IF NOT EXISTS FOR (n:Chunk) REQUIRE n.chunk_id IS UNIQUE`,
		`CREATE CONSTRAINT topic_name_unique IF NOT EXISTS FOR (n:Topic) REQUIRE n.name IS UNIQUE`,
		`CREATE CONSTRAINT org_id_unique IF NOT EXISTS FOR (n:Organization) REQUIRE n.org_id IS UNIQUE`,
		`CREATE CONSTRAINT team_id_unique IF NOT EXISTS FOR (n:Team) REQUIRE n.team_id IS UNIQUE`,
		`CREATE CONSTRAINT preference_id_unique IF NOT EXISTS FOR (n:Preference) REQUIRE n.preference_id IS UNIQUE`,
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	for _, q := range stmts {
		res, err := session.Run(ctx, q, nil)
		if err != nil {
			return classifyError(op, err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return classifyError(op, err)
		}
	}
	return nil
}

// WipeAll detaches and deletes every node. Admin-only.
func (s *Store) WipeAll(ctx context.Context) (nodesDeleted, edgesDeleted int, err error) {
	const op = "graph.wipe_all"
	session := s.writeSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (n) DETACH DELETE n`, nil)
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		counters := summary.Counters()
		return []int{counters.NodesDeleted(), counters.RelationshipsDeleted()}, nil
	})
	if err != nil {
		return 0, 0, classifyError(op, err)
	}
	counts := result.([]int)
	s.log.Info("graph wiped", "nodes_deleted", counts[0], "edges_deleted", counts[1])
	return counts[0], counts[1], nil
}

// classifyError folds driver failures into the service error categories:
// connectivity and cluster-transient faults are retryable, client errors
// (constraint violations, bad cypher) are permanent.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.E(domain.KindCancelled, op, err)
	}
	var neoErr *db.Neo4jError
	if neo4j.IsConnectivityError(err) || (errors.As(err, &neoErr) && neoErr.IsRetriableTransient()) {
		return domain.E(domain.KindStoreTransient, op, err)
	}
	if errors.As(err, &neoErr) {
		if neoErr.IsRetriable() {
			return domain.E(domain.KindStoreTransient, op, err)
		}
		return domain.E(domain.KindStorePermanent, op, err)
	}
	return domain.E(domain.KindStoreTransient, op, err)
}

// Record mapping helpers; driver values come back as any.

func recString(v any) string {
	s, _ := v.(string)
	return s
}

func recBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func recStrings(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func recMaps(v any) []map[string]any {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// chunkFromNodeProps rebuilds a domain chunk from a Chunk node's properties.
// The graph stores timestamps as RFC3339 strings.
func chunkFromNodeProps(props map[string]any) domain.Chunk {
	c := domain.Chunk{
		ChunkID:           recString(props["chunk_id"]),
		Text:              recString(props["text"]),
		SourceType:        domain.SourceType(recString(props["source_type"])),
		UserID:            recString(props["user_id"]),
		ProjectID:         recString(props["project_id"]),
		SessionID:         recString(props["session_id"]),
		DocID:             recString(props["doc_id"]),
		MessageID:         recString(props["message_id"]),
		IsPrivate:         recBool(props["is_private"]),
		IsTwinInteraction: recBool(props["is_twin_interaction"]),
	}
	if raw := recString(props["timestamp"]); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			c.Timestamp = ts
		}
	}
	return c
}

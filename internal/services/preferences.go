package services

import (
	"context"
	"strings"

	"github.com/lishiyo/twincore-prototype-sub000/internal/data/graph"
	"github.com/lishiyo/twincore-prototype-sub000/internal/domain"
	"github.com/lishiyo/twincore-prototype-sub000/internal/platform/logger"
	"github.com/lishiyo/twincore-prototype-sub000/internal/platform/qdrant"
)

// PreferenceQuery resolves one user's stance on one decision topic.
type PreferenceQuery struct {
	UserID         string
	DecisionTopic  string
	ProjectID      string
	SessionID      string
	Limit          int
	IncludeTwin    bool
	ScoreThreshold *float64
}

// PreferenceStatement is one ranked statement with its provenance tier.
type PreferenceStatement struct {
	ChunkID    string         `json:"chunk_id"`
	Text       string         `json:"text"`
	SourceType string         `json:"source_type"`
	Timestamp  string         `json:"timestamp"`
	ProjectID  string         `json:"project_id,omitempty"`
	SessionID  string         `json:"session_id,omitempty"`
	DocID      string         `json:"doc_id,omitempty"`
	Score      *float64       `json:"score,omitempty"`
	Source     string         `json:"source"`
	Metadata   map[string]any `json:"metadata"`
}

type PreferenceResult struct {
	UserID               string                `json:"user_id"`
	DecisionTopic        string                `json:"decision_topic"`
	HasPreferences       bool                  `json:"has_preferences"`
	PreferenceStatements []PreferenceStatement `json:"preference_statements"`
	GraphResultsCount    int                   `json:"graph_results_count"`
	VectorResultsCount   int                   `json:"vector_results_count"`
}

// PreferenceResolver merges two evidence tiers: explicit graph preference
// links and semantic vector hits against the topic text. Graph evidence wins
// when both tiers return the same chunk.
type PreferenceResolver struct {
	log      *logger.Logger
	embedder Embedder
	vectors  VectorIndex
	graph    Graph
	cfg      RetrievalConfig
}

func NewPreferenceResolver(log *logger.Logger, embedder Embedder, vectors VectorIndex, g Graph, cfg RetrievalConfig) *PreferenceResolver {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	return &PreferenceResolver{
		log:      log.With("service", "PreferenceResolver"),
		embedder: embedder,
		vectors:  vectors,
		graph:    g,
		cfg:      cfg,
	}
}

// Resolve runs both tiers and merges by chunk id. Either tier may fail
// independently; the envelope still carries whatever the other produced, and
// only a double failure is an error.
func (r *PreferenceResolver) Resolve(ctx context.Context, q PreferenceQuery) (*PreferenceResult, error) {
	const op = "preferences.resolve"
	if strings.TrimSpace(q.UserID) == "" {
		return nil, domain.Errorf(domain.KindInvalidInput, op, "user_id is required")
	}
	if strings.TrimSpace(q.DecisionTopic) == "" {
		return nil, domain.Errorf(domain.KindInvalidInput, op, "decision_topic is required")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = r.cfg.DefaultLimit
	}

	var scope *graph.PreferenceScope
	if q.ProjectID != "" || q.SessionID != "" {
		scope = &graph.PreferenceScope{ProjectID: q.ProjectID, SessionID: q.SessionID}
	}

	graphChunks, graphErr := r.graph.PreferenceStatements(ctx, q.UserID, q.DecisionTopic, limit, scope)
	if graphErr != nil {
		if domain.KindOf(graphErr) == domain.KindCancelled {
			return nil, graphErr
		}
		r.log.Warn("preference graph tier failed",
			"user_id", q.UserID,
			"decision_topic", q.DecisionTopic,
			"error", graphErr,
		)
	}

	vectorHits, vectorErr := r.vectorTier(ctx, q, limit)
	if vectorErr != nil {
		if domain.KindOf(vectorErr) == domain.KindCancelled {
			return nil, vectorErr
		}
		r.log.Warn("preference vector tier failed",
			"user_id", q.UserID,
			"decision_topic", q.DecisionTopic,
			"error", vectorErr,
		)
	}
	if graphErr != nil && vectorErr != nil {
		return nil, domain.Wrap(op, graphErr, domain.KindStoreTransient)
	}

	statements := make([]PreferenceStatement, 0, len(graphChunks)+len(vectorHits))
	seen := make(map[string]struct{}, len(graphChunks))
	for _, c := range graphChunks {
		seen[c.ChunkID] = struct{}{}
		statements = append(statements, preferenceStatement(c, nil, "graph"))
	}
	vectorCount := 0
	for _, hit := range vectorHits {
		if _, dup := seen[hit.Chunk.ChunkID]; dup {
			continue
		}
		score := hit.Score
		statements = append(statements, preferenceStatement(hit.Chunk, &score, "vector"))
		vectorCount++
	}
	if len(statements) > limit {
		statements = statements[:limit]
	}

	return &PreferenceResult{
		UserID:               q.UserID,
		DecisionTopic:        q.DecisionTopic,
		HasPreferences:       len(statements) > 0,
		PreferenceStatements: statements,
		GraphResultsCount:    len(graphChunks),
		VectorResultsCount:   vectorCount,
	}, nil
}

func (r *PreferenceResolver) vectorTier(ctx context.Context, q PreferenceQuery, limit int) ([]domain.ScoredChunk, error) {
	vector, err := r.embedder.EmbedOne(ctx, q.DecisionTopic)
	if err != nil {
		return nil, err
	}
	filters := []domain.Filter{
		domain.Eq{Field: domain.FieldUserID, Value: q.UserID},
	}
	if q.ProjectID != "" {
		filters = append(filters, domain.Eq{Field: domain.FieldProjectID, Value: q.ProjectID})
	}
	if q.SessionID != "" {
		filters = append(filters, domain.Eq{Field: domain.FieldSessionID, Value: q.SessionID})
	}
	threshold := r.cfg.DefaultScoreThreshold
	if q.ScoreThreshold != nil {
		threshold = *q.ScoreThreshold
	}
	return r.vectors.Search(ctx, qdrant.SearchParams{
		Vector:                  vector,
		Limit:                   limit,
		Filters:                 filters,
		IncludePrivate:          true,
		IncludeTwinInteractions: q.IncludeTwin,
		ScoreThreshold:          threshold,
	})
}

func preferenceStatement(c domain.Chunk, score *float64, source string) PreferenceStatement {
	out := chunkToRetrieved(c)
	return PreferenceStatement{
		ChunkID:    out.ChunkID,
		Text:       out.Text,
		SourceType: out.SourceType,
		Timestamp:  out.Timestamp,
		ProjectID:  out.ProjectID,
		SessionID:  out.SessionID,
		DocID:      out.DocID,
		Score:      score,
		Source:     source,
		Metadata:   out.Metadata,
	}
}

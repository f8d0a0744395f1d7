package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lishiyo/twincore-prototype-sub000/internal/data/graph"
	"github.com/lishiyo/twincore-prototype-sub000/internal/domain"
	"github.com/lishiyo/twincore-prototype-sub000/internal/platform/logger"
	"github.com/lishiyo/twincore-prototype-sub000/internal/platform/qdrant"
)

// visibilityPolicy is the one per-endpoint decision the engine owns: what the
// two visibility flags default to when the caller leaves them unset, whether
// private inclusion is forced, and whether the query text itself is ingested.
type visibilityPolicy struct {
	includePrivateDefault bool
	includeTwinDefault    bool
	forcePrivate          bool
	ingestsQuery          bool
}

var (
	sharedContextPolicy = visibilityPolicy{}
	userContextPolicy   = visibilityPolicy{includePrivateDefault: true, includeTwinDefault: true}
	privateMemoryPolicy = visibilityPolicy{
		includePrivateDefault: true,
		includeTwinDefault:    true,
		forcePrivate:          true,
		ingestsQuery:          true,
	}
	groupContextPolicy = visibilityPolicy{}
	topicPolicy        = visibilityPolicy{}
)

type RetrievalConfig struct {
	DefaultLimit          int
	DefaultScoreThreshold float64
}

// RetrievalEngine composes vector search and graph traversal into the
// retrieval flavors. It never swallows store errors except at the explicit
// degradation points: graph enrichment, group participant fan-out, and the
// topic graph tier.
type RetrievalEngine struct {
	log         *logger.Logger
	embedder    Embedder
	vectors     VectorIndex
	graph       Graph
	coordinator *Coordinator
	cfg         RetrievalConfig
}

func NewRetrievalEngine(log *logger.Logger, embedder Embedder, vectors VectorIndex, g Graph, coordinator *Coordinator, cfg RetrievalConfig) *RetrievalEngine {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	return &RetrievalEngine{
		log:         log.With("service", "RetrievalEngine"),
		embedder:    embedder,
		vectors:     vectors,
		graph:       g,
		coordinator: coordinator,
		cfg:         cfg,
	}
}

// ContextQuery parameterizes the context-flavored retrievals.
type ContextQuery struct {
	Query          string
	UserID         string
	ProjectID      string
	SessionID      string
	DocID          string
	SourceTypes    []string
	Limit          int
	IncludePrivate *bool
	IncludeTwin    *bool
	IncludeGraph   bool
	ScoreThreshold *float64
}

// RetrievedChunk is the wire shape of one hit.
type RetrievedChunk struct {
	ChunkID    string         `json:"chunk_id"`
	Text       string         `json:"text"`
	SourceType string         `json:"source_type"`
	Timestamp  string         `json:"timestamp"`
	UserID     string         `json:"user_id,omitempty"`
	ProjectID  string         `json:"project_id,omitempty"`
	SessionID  string         `json:"session_id,omitempty"`
	DocID      string         `json:"doc_id,omitempty"`
	DocName    string         `json:"doc_name,omitempty"`
	MessageID  string         `json:"message_id,omitempty"`
	Score      *float64       `json:"score,omitempty"`
	Metadata   map[string]any `json:"metadata"`
}

type ContextResult struct {
	Chunks         []RetrievedChunk      `json:"chunks"`
	Total          int                   `json:"total"`
	ProjectContext *graph.ProjectContext `json:"project_context,omitempty"`
	Participants   []graph.Participant   `json:"participants,omitempty"`
}

// RetrieveContext is the shared-context flavor: private and twin content are
// excluded unless the caller opts in.
func (e *RetrievalEngine) RetrieveContext(ctx context.Context, q ContextQuery) (*ContextResult, error) {
	const op = "retrieval.retrieve_context"
	if strings.TrimSpace(q.Query) == "" {
		return nil, domain.Errorf(domain.KindInvalidInput, op, "query is required")
	}

	result, err := e.search(ctx, op, q, sharedContextPolicy)
	if err != nil {
		return nil, err
	}
	if q.IncludeGraph {
		e.enrich(ctx, q, result)
	}
	return result, nil
}

// RetrieveUserContext scopes shared context to one user, defaulting both
// visibility flags to true: a user sees their own private and twin content.
func (e *RetrievalEngine) RetrieveUserContext(ctx context.Context, userID string, q ContextQuery) (*ContextResult, error) {
	const op = "retrieval.retrieve_user_context"
	if strings.TrimSpace(userID) == "" {
		return nil, domain.Errorf(domain.KindInvalidInput, op, "user_id is required")
	}
	if strings.TrimSpace(q.Query) == "" {
		return nil, domain.Errorf(domain.KindInvalidInput, op, "query is required")
	}
	q.UserID = userID

	result, err := e.search(ctx, op, q, userContextPolicy)
	if err != nil {
		return nil, err
	}
	if q.IncludeGraph {
		e.enrich(ctx, q, result)
	}
	return result, nil
}

// RetrievePrivateMemory runs a user-scoped search with private inclusion
// forced on, and ingests the query itself as a twin interaction first. The
// ingest is best-effort: its failure is logged and the search proceeds.
func (e *RetrievalEngine) RetrievePrivateMemory(ctx context.Context, userID string, q ContextQuery) (*ContextResult, error) {
	const op = "retrieval.retrieve_private_memory"
	if strings.TrimSpace(userID) == "" {
		return nil, domain.Errorf(domain.KindInvalidInput, op, "user_id is required")
	}
	if strings.TrimSpace(q.Query) == "" {
		return nil, domain.Errorf(domain.KindInvalidInput, op, "query is required")
	}
	q.UserID = userID

	queryChunk := domain.Chunk{
		ChunkID:           uuid.NewString(),
		Text:              q.Query,
		SourceType:        domain.SourceQuery,
		UserID:            userID,
		ProjectID:         q.ProjectID,
		SessionID:         q.SessionID,
		Timestamp:         time.Now().UTC(),
		IsPrivate:         true,
		IsTwinInteraction: true,
	}
	if err := e.coordinator.IngestChunk(ctx, queryChunk); err != nil {
		if domain.KindOf(err) == domain.KindCancelled {
			return nil, err
		}
		e.log.Warn("query self-ingest failed, continuing with search",
			"user_id", userID,
			"chunk_id", queryChunk.ChunkID,
			"error", err,
		)
	}

	return e.search(ctx, op, q, privateMemoryPolicy)
}

func (e *RetrievalEngine) search(ctx context.Context, op string, q ContextQuery, policy visibilityPolicy) (*ContextResult, error) {
	vector, err := e.embedder.EmbedOne(ctx, q.Query)
	if err != nil {
		return nil, domain.Wrap(op, err, domain.KindEmbeddingFailure)
	}

	includePrivate := policy.includePrivateDefault
	if q.IncludePrivate != nil {
		includePrivate = *q.IncludePrivate
	}
	if policy.forcePrivate {
		includePrivate = true
	}
	includeTwin := policy.includeTwinDefault
	if q.IncludeTwin != nil {
		includeTwin = *q.IncludeTwin
	}

	hits, err := e.vectors.Search(ctx, qdrant.SearchParams{
		Vector:                  vector,
		Limit:                   e.limit(q.Limit),
		Filters:                 contextFilters(q),
		IncludePrivate:          includePrivate,
		IncludeTwinInteractions: includeTwin,
		ScoreThreshold:          e.threshold(q.ScoreThreshold),
	})
	if err != nil {
		return nil, domain.Wrap(op, err, domain.KindStoreTransient)
	}

	chunks := make([]RetrievedChunk, 0, len(hits))
	for _, hit := range hits {
		chunks = append(chunks, toRetrievedChunk(hit))
	}
	return &ContextResult{Chunks: chunks, Total: len(chunks)}, nil
}

// enrich attaches graph context to a result set. Enrichment failures never
// fail the primary results; they are logged and the field stays empty.
func (e *RetrievalEngine) enrich(ctx context.Context, q ContextQuery, result *ContextResult) {
	if q.ProjectID != "" {
		pc, err := e.graph.ProjectContextFor(ctx, q.ProjectID)
		if err != nil {
			e.log.Warn("project context enrichment failed", "project_id", q.ProjectID, "error", err)
		} else {
			result.ProjectContext = pc
		}
	}
	if q.SessionID != "" {
		participants, err := e.graph.SessionParticipants(ctx, q.SessionID)
		if err != nil {
			e.log.Warn("participant enrichment failed", "session_id", q.SessionID, "error", err)
		} else {
			result.Participants = participants
		}
	}
}

func contextFilters(q ContextQuery) []domain.Filter {
	var filters []domain.Filter
	if q.UserID != "" {
		filters = append(filters, domain.Eq{Field: domain.FieldUserID, Value: q.UserID})
	}
	if q.ProjectID != "" {
		filters = append(filters, domain.Eq{Field: domain.FieldProjectID, Value: q.ProjectID})
	}
	if q.SessionID != "" {
		filters = append(filters, domain.Eq{Field: domain.FieldSessionID, Value: q.SessionID})
	}
	if q.DocID != "" {
		filters = append(filters, domain.Eq{Field: domain.FieldDocID, Value: q.DocID})
	}
	if len(q.SourceTypes) > 0 {
		values := make([]any, 0, len(q.SourceTypes))
		for _, st := range q.SourceTypes {
			values = append(values, st)
		}
		filters = append(filters, domain.AnyOf{Field: domain.FieldSourceType, Values: values})
	}
	return filters
}

func (e *RetrievalEngine) limit(requested int) int {
	if requested > 0 {
		return requested
	}
	return e.cfg.DefaultLimit
}

func (e *RetrievalEngine) threshold(requested *float64) float64 {
	if requested != nil {
		return *requested
	}
	return e.cfg.DefaultScoreThreshold
}

func toRetrievedChunk(hit domain.ScoredChunk) RetrievedChunk {
	score := hit.Score
	out := chunkToRetrieved(hit.Chunk)
	out.Score = &score
	return out
}

func chunkToRetrieved(c domain.Chunk) RetrievedChunk {
	ts := ""
	if !c.Timestamp.IsZero() {
		ts = c.Timestamp.UTC().Format(time.RFC3339)
	}
	metadata := c.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return RetrievedChunk{
		ChunkID:    c.ChunkID,
		Text:       c.Text,
		SourceType: string(c.SourceType),
		Timestamp:  ts,
		UserID:     c.UserID,
		ProjectID:  c.ProjectID,
		SessionID:  c.SessionID,
		DocID:      c.DocID,
		DocName:    c.DocName,
		MessageID:  c.MessageID,
		Metadata:   metadata,
	}
}

// ---------------- Group context ----------------

type GroupQuery struct {
	Query          string
	SessionID      string
	ProjectID      string
	TeamID         string
	LimitPerUser   int
	IncludePrivate *bool
	IncludeTwin    *bool
}

type GroupUserResult struct {
	UserID  string           `json:"user_id"`
	Name    string           `json:"name,omitempty"`
	Results []RetrievedChunk `json:"results"`
	Error   string           `json:"error,omitempty"`
}

type GroupResult struct {
	Scope   string            `json:"scope"`
	ScopeID string            `json:"scope_id"`
	Users   []GroupUserResult `json:"users"`
}

// RetrieveGroupContext fans one query out across every participant of the
// scope, one concurrent search per user. A failing per-user search is
// isolated into its envelope; siblings keep running.
func (e *RetrievalEngine) RetrieveGroupContext(ctx context.Context, q GroupQuery) (*GroupResult, error) {
	const op = "retrieval.retrieve_group_context"
	if strings.TrimSpace(q.Query) == "" {
		return nil, domain.Errorf(domain.KindInvalidInput, op, "query is required")
	}

	scopes := 0
	for _, id := range []string{q.SessionID, q.ProjectID, q.TeamID} {
		if strings.TrimSpace(id) != "" {
			scopes++
		}
	}
	if scopes != 1 {
		return nil, domain.Errorf(domain.KindInvalidInput, op,
			"exactly one of session_id, project_id, team_id is required, got %d", scopes)
	}

	var (
		participants []graph.Participant
		scope        string
		scopeID      string
		err          error
	)
	switch {
	case q.SessionID != "":
		scope, scopeID = "session", q.SessionID
		participants, err = e.graph.SessionParticipants(ctx, q.SessionID)
	case q.ProjectID != "":
		scope, scopeID = "project", q.ProjectID
		participants, err = e.graph.ProjectParticipants(ctx, q.ProjectID)
	default:
		return nil, domain.Errorf(domain.KindInvalidInput, op, "team scope is reserved and not yet supported")
	}
	if err != nil {
		return nil, domain.Wrap(op, err, domain.KindStoreTransient)
	}
	if len(participants) == 0 {
		return &GroupResult{Scope: scope, ScopeID: scopeID, Users: []GroupUserResult{}}, nil
	}

	vector, err := e.embedder.EmbedOne(ctx, q.Query)
	if err != nil {
		return nil, domain.Wrap(op, err, domain.KindEmbeddingFailure)
	}

	includePrivate := groupContextPolicy.includePrivateDefault
	if q.IncludePrivate != nil {
		includePrivate = *q.IncludePrivate
	}
	includeTwin := groupContextPolicy.includeTwinDefault
	if q.IncludeTwin != nil {
		includeTwin = *q.IncludeTwin
	}
	limitPerUser := q.LimitPerUser
	if limitPerUser <= 0 {
		limitPerUser = 5
	}

	// Slots are pre-allocated so result order stays stable with respect to
	// the participant list regardless of completion order.
	users := make([]GroupUserResult, len(participants))
	g, gctx := errgroup.WithContext(ctx)
	for i, participant := range participants {
		i, participant := i, participant
		g.Go(func() error {
			filters := []domain.Filter{
				domain.Eq{Field: domain.FieldUserID, Value: participant.UserID},
			}
			switch scope {
			case "session":
				filters = append(filters, domain.Eq{Field: domain.FieldSessionID, Value: scopeID})
			case "project":
				filters = append(filters, domain.Eq{Field: domain.FieldProjectID, Value: scopeID})
			}

			entry := GroupUserResult{
				UserID:  participant.UserID,
				Name:    participant.Name,
				Results: []RetrievedChunk{},
			}
			hits, searchErr := e.vectors.Search(gctx, qdrant.SearchParams{
				Vector:                  vector,
				Limit:                   limitPerUser,
				Filters:                 filters,
				IncludePrivate:          includePrivate,
				IncludeTwinInteractions: includeTwin,
			})
			if searchErr != nil {
				// Isolated: the envelope records the failure, siblings continue.
				e.log.Warn("group fan-out search failed",
					"user_id", participant.UserID,
					"scope", scope,
					"error", searchErr,
				)
				entry.Error = searchErr.Error()
			} else {
				for _, hit := range hits {
					entry.Results = append(entry.Results, toRetrievedChunk(hit))
				}
			}
			users[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, domain.Wrap(op, err, domain.KindStoreTransient)
	}
	if ctx.Err() != nil {
		return nil, domain.E(domain.KindCancelled, op, ctx.Err())
	}
	return &GroupResult{Scope: scope, ScopeID: scopeID, Users: users}, nil
}

// ---------------- Related content ----------------

type RelatedQuery struct {
	ChunkID        string
	Types          []string
	Depth          int
	IncludePrivate bool
	Limit          int
}

// RetrieveRelated is pure graph traversal; no embedding is involved.
func (e *RetrievalEngine) RetrieveRelated(ctx context.Context, q RelatedQuery) ([]graph.RelatedChunk, error) {
	const op = "retrieval.retrieve_related"
	if strings.TrimSpace(q.ChunkID) == "" {
		return nil, domain.Errorf(domain.KindInvalidInput, op, "chunk_id is required")
	}
	related, err := e.graph.RelatedContent(ctx, q.ChunkID, q.Types, q.Depth, q.IncludePrivate, q.Limit)
	if err != nil {
		return nil, domain.Wrap(op, err, domain.KindStoreTransient)
	}
	return related, nil
}

// ---------------- Topic ----------------

type TopicQuery struct {
	UserID         string
	ProjectID      string
	SessionID      string
	Limit          int
	IncludePrivate *bool
	IncludeTwin    *bool
}

type TopicResult struct {
	Chunks []RetrievedChunk `json:"chunks"`
	Total  int              `json:"total"`
	Source string           `json:"source"`
}

// RetrieveByTopic prefers the graph's explicit topic links; when the graph
// has none (or fails), it falls back to a vector search using the topic text
// itself. A failing fallback yields an empty result, not an error.
func (e *RetrievalEngine) RetrieveByTopic(ctx context.Context, topic string, q TopicQuery) (*TopicResult, error) {
	const op = "retrieval.retrieve_by_topic"
	if strings.TrimSpace(topic) == "" {
		return nil, domain.Errorf(domain.KindInvalidInput, op, "topic is required")
	}

	includePrivate := topicPolicy.includePrivateDefault
	if q.IncludePrivate != nil {
		includePrivate = *q.IncludePrivate
	}

	// The graph tier has no twin-interaction flag; it applies only below.
	matches, err := e.graph.ContentByTopic(ctx, topic, graph.TopicFilters{
		UserID:         q.UserID,
		ProjectID:      q.ProjectID,
		SessionID:      q.SessionID,
		IncludePrivate: includePrivate,
		Limit:          e.limit(q.Limit),
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindCancelled {
			return nil, err
		}
		e.log.Warn("topic graph tier failed, falling back to vector search", "topic", topic, "error", err)
	} else if len(matches) > 0 {
		chunks := make([]RetrievedChunk, 0, len(matches))
		for _, m := range matches {
			chunks = append(chunks, chunkToRetrieved(m.Chunk))
		}
		return &TopicResult{Chunks: chunks, Total: len(chunks), Source: "graph"}, nil
	}

	result, err := e.search(ctx, op, ContextQuery{
		Query:          topic,
		UserID:         q.UserID,
		ProjectID:      q.ProjectID,
		SessionID:      q.SessionID,
		Limit:          q.Limit,
		IncludePrivate: q.IncludePrivate,
		IncludeTwin:    q.IncludeTwin,
	}, topicPolicy)
	if err != nil {
		if domain.KindOf(err) == domain.KindCancelled {
			return nil, err
		}
		e.log.Warn("topic vector fallback failed, returning empty", "topic", topic, "error", err)
		return &TopicResult{Chunks: []RetrievedChunk{}, Total: 0, Source: "vector"}, nil
	}
	return &TopicResult{Chunks: result.Chunks, Total: result.Total, Source: "vector"}, nil
}
